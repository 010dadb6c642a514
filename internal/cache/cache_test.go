package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slicetrace/slicetrace/internal/entry"
)

func testLog() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	return log
}

func openTestCache(t *testing.T, windowEntries int) (*Cache, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "trace.bin")

	c, err := Open(testLog(), Config{
		Path:        path,
		WindowBytes: windowEntries * entry.Size,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		c.Close()
	})

	return c, path
}

func readBack(t *testing.T, path string) []entry.Entry {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Zero(t, len(data)%entry.Size, "file not record-aligned")

	out := make([]entry.Entry, 0, len(data)/entry.Size)
	for off := 0; off < len(data); off += entry.Size {
		out = append(out, entry.Unmarshal(data[off:]))
	}

	return out
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{Path: "trace.bin", WindowBytes: 10 * entry.Size}
	require.NoError(t, cfg.Validate())

	cfg.WindowBytes = entry.Size + 1
	assert.ErrorContains(t, cfg.Validate(), "does not divide")

	cfg.WindowBytes = 0
	assert.ErrorContains(t, cfg.Validate(), "positive")

	cfg = Config{WindowBytes: entry.Size}
	assert.ErrorContains(t, cfg.Validate(), "path")
}

func TestOpenRejectsIndivisibleWindow(t *testing.T) {
	_, err := Open(testLog(), Config{
		Path:        filepath.Join(t.TempDir(), "trace.bin"),
		WindowBytes: entry.Size*4 + 1,
	})
	assert.Error(t, err)
}

func TestAppendAndClose(t *testing.T) {
	c, path := openTestCache(t, 16)

	want := []entry.Entry{
		entry.Load(1, 0x2000, 8),
		entry.Store(2, 0x3000, 4),
		entry.EndOfTrace(),
	}

	for _, e := range want {
		require.NoError(t, c.Append(e))
	}

	require.NoError(t, c.Close())

	assert.Equal(t, want, readBack(t, path))
	assert.Equal(t, uint64(3), c.Entries())
	assert.Equal(t, uint64(0), c.Rotations())
}

func TestRotationPreservesOrder(t *testing.T) {
	const windowEntries = 4

	c, path := openTestCache(t, windowEntries)

	rotations := 0
	c.OnRotate = func() { rotations++ }

	// Three windows worth plus a partial fourth.
	const n = windowEntries*3 + 2

	for i := 1; i <= n; i++ {
		require.NoError(t, c.Append(entry.Load(uint32(i), uint64(i)*16, 8)))
	}

	require.NoError(t, c.Close())

	got := readBack(t, path)
	require.Len(t, got, n)

	for i, e := range got {
		assert.Equal(t, uint32(i+1), e.ID, "record %d out of order", i)
		assert.Equal(t, uint64(i+1)*16, e.Address)
	}

	assert.Equal(t, uint64(3), c.Rotations())
	assert.Equal(t, 3, rotations)
}

func TestCloseTruncatesUnwrittenTail(t *testing.T) {
	c, path := openTestCache(t, 1024)

	require.NoError(t, c.Append(entry.Load(1, 0x2000, 8)))
	require.NoError(t, c.Close())

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(entry.Size), fi.Size())
}

func TestCloseIdempotent(t *testing.T) {
	c, path := openTestCache(t, 8)

	require.NoError(t, c.Append(entry.EndOfTrace()))
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	assert.Len(t, readBack(t, path), 1)
	assert.Error(t, c.Append(entry.EndOfTrace()))
}

func TestCapacity(t *testing.T) {
	c, _ := openTestCache(t, 8)
	assert.Equal(t, 8, c.Capacity())
}
