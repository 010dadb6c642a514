// Package cache persists trace records through a double-buffered,
// memory-mapped append log. Records are staged in the currently mapped
// window of the trace file; when the window fills, it is sealed
// (synced and unmapped) and the next window is mapped in its place.
//
// The cache is single-writer by design. No locking protects the write
// cursor; callers must guarantee that appends are serialized.
package cache

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/slicetrace/slicetrace/internal/entry"
)

// Cache is a memory-mapped append log of trace records.
type Cache struct {
	log logrus.FieldLogger
	f   *os.File

	windowBytes int
	capacity    int // records per window

	seg    segment
	index  int // next record slot in the current window
	closed bool

	entries   uint64
	rotations uint64

	// OnRotate, if set, is invoked after each window rotation.
	OnRotate func()
}

// segment is one mapped window of the trace file. The mapping always
// covers [fileOffset, fileOffset+len(data)) of the file.
type segment struct {
	data       []byte
	fileOffset int64
}

// Open creates or truncates the trace file at cfg.Path, extends it to
// one window, and maps the first window read-write.
func Open(log logrus.FieldLogger, cfg Config) (*Cache, error) {
	if cfg.WindowBytes == 0 {
		cfg.WindowBytes = DefaultWindowBytes
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating cache config: %w", err)
	}

	f, err := os.OpenFile(cfg.Path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return nil, fmt.Errorf("opening trace file %s: %w", cfg.Path, err)
	}

	c := &Cache{
		log:         log.WithField("component", "cache"),
		f:           f,
		windowBytes: cfg.WindowBytes,
		capacity:    cfg.WindowBytes / entry.Size,
	}

	if err := c.mapWindow(0); err != nil {
		f.Close()

		return nil, err
	}

	c.log.WithFields(logrus.Fields{
		"path":         cfg.Path,
		"window_bytes": cfg.WindowBytes,
		"capacity":     c.capacity,
	}).Info("Opened trace file")

	return c, nil
}

// Append writes e into the next record slot, rotating to a fresh
// window first if the current one is full. Rotation runs to completion
// before the record is written, so the first record of a new window is
// the logical successor of the last record of the sealed one.
func (c *Cache) Append(e entry.Entry) error {
	if c.closed {
		return fmt.Errorf("append on closed cache")
	}

	if c.index == c.capacity {
		if err := c.rotate(); err != nil {
			return err
		}
	}

	entry.Marshal(c.seg.data[c.index*entry.Size:], e)
	c.index++
	c.entries++

	return nil
}

// rotate seals the current window and maps the next one.
func (c *Cache) rotate() error {
	if err := c.seal(); err != nil {
		return err
	}

	if err := c.mapWindow(c.seg.fileOffset + int64(c.windowBytes)); err != nil {
		return err
	}

	c.rotations++

	if c.OnRotate != nil {
		c.OnRotate()
	}

	return nil
}

// seal synchronously flushes the current window to disk and unmaps it.
func (c *Cache) seal() error {
	if err := unix.Msync(c.seg.data, unix.MS_SYNC); err != nil {
		return fmt.Errorf("syncing trace window at offset %d: %w", c.seg.fileOffset, err)
	}

	if err := unix.Munmap(c.seg.data); err != nil {
		return fmt.Errorf("unmapping trace window at offset %d: %w", c.seg.fileOffset, err)
	}

	c.seg.data = nil

	return nil
}

// mapWindow extends the file to cover the window starting at offset
// and maps it read-write.
func (c *Cache) mapWindow(offset int64) error {
	if err := c.f.Truncate(offset + int64(c.windowBytes)); err != nil {
		return fmt.Errorf("extending trace file to %d bytes: %w", offset+int64(c.windowBytes), err)
	}

	data, err := unix.Mmap(
		int(c.f.Fd()), offset, c.windowBytes,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED,
	)
	if err != nil {
		return fmt.Errorf("mapping trace window at offset %d: %w", offset, err)
	}

	c.seg = segment{data: data, fileOffset: offset}
	c.index = 0

	return nil
}

// Close seals the final window and truncates the file to the written
// byte length, dropping the unwritten tail of the last window so
// readers see exactly the appended records. Close is idempotent.
func (c *Cache) Close() error {
	if c.closed {
		return nil
	}

	c.closed = true

	if err := c.seal(); err != nil {
		return err
	}

	size := c.seg.fileOffset + int64(c.index)*entry.Size

	if err := c.f.Truncate(size); err != nil {
		return fmt.Errorf("truncating trace file to %d bytes: %w", size, err)
	}

	if err := c.f.Close(); err != nil {
		return fmt.Errorf("closing trace file: %w", err)
	}

	c.log.WithFields(logrus.Fields{
		"entries": c.entries,
		"bytes":   size,
	}).Info("Sealed trace file")

	return nil
}

// Entries returns the total number of records appended.
func (c *Cache) Entries() uint64 { return c.entries }

// Rotations returns the number of window rotations performed.
func (c *Cache) Rotations() uint64 { return c.rotations }

// Capacity returns the number of record slots per window.
func (c *Cache) Capacity() int { return c.capacity }
