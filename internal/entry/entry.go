package entry

import (
	"encoding/binary"
	"fmt"
)

// Kind identifies the kind of trace record.
type Kind uint8

const (
	KindHeader           Kind = 1
	KindBasicBlock       Kind = 2
	KindLoad             Kind = 3
	KindStore            Kind = 4
	KindCall             Kind = 5
	KindReturn           Kind = 6
	KindInvariantFailure Kind = 7
	KindSelect           Kind = 8
	KindEndOfTrace       Kind = 9

	maxKind = KindEndOfTrace
)

// String returns the human-readable name of the record kind.
func (k Kind) String() string {
	switch k {
	case KindHeader:
		return "header"
	case KindBasicBlock:
		return "basic_block"
	case KindLoad:
		return "load"
	case KindStore:
		return "store"
	case KindCall:
		return "call"
	case KindReturn:
		return "return"
	case KindInvariantFailure:
		return "invariant_failure"
	case KindSelect:
		return "select"
	case KindEndOfTrace:
		return "end_of_trace"
	default:
		return fmt.Sprintf("unknown(%d)", k)
	}
}

// Valid reports whether k is a defined record kind.
func (k Kind) Valid() bool {
	return k >= KindHeader && k <= maxKind
}

// Size is the fixed on-disk size of one Entry in bytes. Every record in
// a trace file occupies exactly this many bytes; the cache window size
// must be a multiple of it.
const Size = 24

// SentinelCallID tags a basic-block-termination record whose function
// had no matching frame on the call stack, i.e. the outermost entry
// point of the traced program.
const SentinelCallID = ^uint32(0)

// Entry is one fixed-size trace record. The Address and Length fields
// are reused across kinds: Address holds a function pointer for
// block/call/return records, a memory address for load/store records,
// and the chosen-operand flag for select records; Length holds the
// byte length of a memory access for load/store records and the
// matched call id for basic-block-termination records.
type Entry struct {
	Kind    Kind
	ID      uint32
	Address uint64
	Length  uint64
}

// On-disk layout, little-endian:
//
//	offset 0: kind (uint8, 3 bytes pad)
//	offset 4: id (uint32)
//	offset 8: address (uint64)
//	offset 16: length (uint64)

// Marshal encodes e into b, which must be at least Size bytes long.
// It performs no allocation.
func Marshal(b []byte, e Entry) {
	_ = b[Size-1]
	b[0] = byte(e.Kind)
	b[1], b[2], b[3] = 0, 0, 0
	binary.LittleEndian.PutUint32(b[4:8], e.ID)
	binary.LittleEndian.PutUint64(b[8:16], e.Address)
	binary.LittleEndian.PutUint64(b[16:24], e.Length)
}

// Unmarshal decodes one record from b, which must be at least Size
// bytes long.
func Unmarshal(b []byte) Entry {
	_ = b[Size-1]

	return Entry{
		Kind:    Kind(b[0]),
		ID:      binary.LittleEndian.Uint32(b[4:8]),
		Address: binary.LittleEndian.Uint64(b[8:16]),
		Length:  binary.LittleEndian.Uint64(b[16:24]),
	}
}

// BasicBlock constructs a basic-block-termination record. callID is the
// id of the call that invoked the block's function, 0 for non-final
// blocks, or SentinelCallID for the outermost frame.
func BasicBlock(id uint32, fn uint64, callID uint32) Entry {
	return Entry{Kind: KindBasicBlock, ID: id, Address: fn, Length: uint64(callID)}
}

// Load constructs a memory-read record covering length bytes at addr.
func Load(id uint32, addr, length uint64) Entry {
	return Entry{Kind: KindLoad, ID: id, Address: addr, Length: length}
}

// Store constructs a memory-write record covering length bytes at addr.
func Store(id uint32, addr, length uint64) Entry {
	return Entry{Kind: KindStore, ID: id, Address: addr, Length: length}
}

// Call constructs a call-site record for a call to the function at fn.
func Call(id uint32, fn uint64) Entry {
	return Entry{Kind: KindCall, ID: id, Address: fn}
}

// Return constructs a caller-side return record for the call site id.
func Return(id uint32, fn uint64) Entry {
	return Entry{Kind: KindReturn, ID: id, Address: fn}
}

// InvariantFailure constructs a marker record for a failed invariant
// detected at instruction id.
func InvariantFailure(id uint32) Entry {
	return Entry{Kind: KindInvariantFailure, ID: id}
}

// Select constructs a record capturing which operand a select chose.
func Select(id uint32, flag uint8) Entry {
	return Entry{Kind: KindSelect, ID: id, Address: uint64(flag)}
}

// EndOfTrace constructs the terminal record of a trace.
func EndOfTrace() Entry {
	return Entry{Kind: KindEndOfTrace}
}
