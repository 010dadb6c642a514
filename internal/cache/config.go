package cache

import (
	"fmt"

	"github.com/slicetrace/slicetrace/internal/entry"
)

// DefaultWindowBytes is the default size of one mapped trace window.
const DefaultWindowBytes = 256 * 1024 * 1024 // 256MB

// Config configures the entry cache.
type Config struct {
	// Path is the destination trace file. Created or truncated on open.
	Path string `yaml:"path"`

	// WindowBytes is the size of each memory-mapped window of the
	// trace file. Must be a positive multiple of the record size.
	// Defaults to 256MB.
	WindowBytes int `yaml:"window_bytes"`
}

// Validate checks the configuration for consistency. A window size
// that the record size does not evenly divide is a configuration
// error, not a runtime fault: the cache writes records by index into
// the mapped window and cannot operate across a partial trailing slot.
func (c *Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("path is required")
	}

	if c.WindowBytes <= 0 {
		return fmt.Errorf("window_bytes must be positive")
	}

	if c.WindowBytes%entry.Size != 0 {
		return fmt.Errorf(
			"record size %d does not divide window_bytes %d",
			entry.Size, c.WindowBytes,
		)
	}

	return nil
}
