package entry

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeTrace(t *testing.T, entries ...Entry) []byte {
	t.Helper()

	var buf bytes.Buffer

	var b [Size]byte

	Marshal(b[:], Header())
	buf.Write(b[:])

	for _, e := range entries {
		Marshal(b[:], e)
		buf.Write(b[:])
	}

	return buf.Bytes()
}

func TestReaderRoundTrip(t *testing.T) {
	want := []Entry{
		Load(1, 0x2000, 8),
		Call(2, 0x1000),
		Return(2, 0x1000),
		EndOfTrace(),
	}

	r, err := NewReader(bytes.NewReader(encodeTrace(t, want...)))
	require.NoError(t, err)

	got, err := r.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.True(t, r.Terminated())
}

func TestReaderRejectsBadHeader(t *testing.T) {
	var b [Size]byte

	Marshal(b[:], Load(1, 0x2000, 8))

	_, err := NewReader(bytes.NewReader(b[:]))
	assert.Error(t, err)
}

func TestReaderTruncated(t *testing.T) {
	data := encodeTrace(t, Load(1, 0x2000, 8))

	r, err := NewReader(bytes.NewReader(data[:len(data)-5]))
	require.NoError(t, err)

	_, err = r.Next()
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestReaderUnterminated(t *testing.T) {
	r, err := NewReader(bytes.NewReader(encodeTrace(t, Load(1, 0x2000, 8))))
	require.NoError(t, err)

	got, err := r.ReadAll()
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.False(t, r.Terminated())
}

func TestOpenZstd(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trace.bin.zst")

	f, err := os.Create(path)
	require.NoError(t, err)

	enc, err := zstd.NewWriter(f)
	require.NoError(t, err)

	data := encodeTrace(t, Store(9, 0x3000, 4), EndOfTrace())

	_, err = io.Copy(enc, bytes.NewReader(data))
	require.NoError(t, err)
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	r, err := Open(path)
	require.NoError(t, err)

	defer r.Close()

	got, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, Store(9, 0x3000, 4), got[0])
	assert.True(t, r.Terminated())
}
