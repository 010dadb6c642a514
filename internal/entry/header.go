package entry

import "fmt"

// Trace files open with one Entry-sized header record so that every
// file offset stays record-aligned. The magic lives in the address
// field, the format version in the id field, and the record size in
// the length field, letting a reader reject traces written with a
// different layout before interpreting any record.
const (
	// Magic is "SLCTRC\0\0" read as a little-endian uint64.
	Magic = uint64(0x0000435254434C53)

	// FormatVersion is bumped whenever the record layout changes.
	FormatVersion = 1
)

// Header constructs the header record written as the first record of
// every trace file.
func Header() Entry {
	return Entry{
		Kind:    KindHeader,
		ID:      FormatVersion,
		Address: Magic,
		Length:  Size,
	}
}

// VerifyHeader checks that e is a well-formed header record for the
// layout this package reads.
func VerifyHeader(e Entry) error {
	if e.Kind != KindHeader {
		return fmt.Errorf("first record has kind %s, want %s", e.Kind, KindHeader)
	}

	if e.Address != Magic {
		return fmt.Errorf("bad trace magic %#x", e.Address)
	}

	if e.ID != FormatVersion {
		return fmt.Errorf("unsupported trace format version %d, want %d", e.ID, FormatVersion)
	}

	if e.Length != Size {
		return fmt.Errorf("trace written with record size %d, reader expects %d", e.Length, Size)
	}

	return nil
}
