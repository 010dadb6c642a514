package entry

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

var (
	// ErrTruncated is returned when a trace stream ends in the middle
	// of a record.
	ErrTruncated = errors.New("trace truncated mid-record")
)

// Reader decodes a trace stream record by record. The header record is
// consumed and verified at construction; Next never yields it.
type Reader struct {
	r          io.Reader
	buf        [Size]byte
	terminated bool
	closers    []io.Closer
}

// NewReader wraps r, reading and verifying the trace header.
func NewReader(r io.Reader) (*Reader, error) {
	tr := &Reader{r: r}

	hdr, err := tr.read()
	if err != nil {
		return nil, fmt.Errorf("reading trace header: %w", err)
	}

	if err := VerifyHeader(hdr); err != nil {
		return nil, err
	}

	return tr, nil
}

// Open opens a trace file for reading. Files with a .zst suffix are
// transparently decompressed.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening trace file: %w", err)
	}

	var src io.Reader = f

	closers := []io.Closer{f}

	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(f)
		if err != nil {
			f.Close()

			return nil, fmt.Errorf("opening zstd stream: %w", err)
		}

		src = dec
		closers = append(closers, dec.IOReadCloser())
	}

	tr, err := NewReader(src)
	if err != nil {
		f.Close()

		return nil, err
	}

	tr.closers = closers

	return tr, nil
}

// Next returns the next record. It returns io.EOF when the stream is
// exhausted and ErrTruncated when the stream ends mid-record.
func (r *Reader) Next() (Entry, error) {
	e, err := r.read()
	if err != nil {
		return Entry{}, err
	}

	if e.Kind == KindEndOfTrace {
		r.terminated = true
	}

	return e, nil
}

// Terminated reports whether an end-of-trace record has been seen.
func (r *Reader) Terminated() bool {
	return r.terminated
}

// ReadAll drains the stream, returning every remaining record.
func (r *Reader) ReadAll() ([]Entry, error) {
	var out []Entry

	for {
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}

		if err != nil {
			return out, err
		}

		out = append(out, e)
	}
}

// Close releases any file handles held by an Open'd reader.
func (r *Reader) Close() error {
	var err error

	// Close in reverse: decompressor before the underlying file.
	for i := len(r.closers) - 1; i >= 0; i-- {
		if cerr := r.closers[i].Close(); cerr != nil && err == nil {
			err = cerr
		}
	}

	return err
}

func (r *Reader) read() (Entry, error) {
	n, err := io.ReadFull(r.r, r.buf[:])
	if errors.Is(err, io.EOF) {
		return Entry{}, io.EOF
	}

	if errors.Is(err, io.ErrUnexpectedEOF) {
		return Entry{}, fmt.Errorf("%w: %d trailing bytes", ErrTruncated, n)
	}

	if err != nil {
		return Entry{}, err
	}

	return Unmarshal(r.buf[:]), nil
}
