package shadow

import "fmt"

// Default stack depths. Block nesting beyond this bound indicates
// pathological recursion the runtime refuses to trace.
const (
	DefaultBlockStackDepth = 4096
	DefaultCallStackDepth  = 4096
)

// Config configures the shadow stack tracker.
type Config struct {
	// BlockStackDepth bounds basic-block nesting. Overflow is fatal.
	// Defaults to 4096.
	BlockStackDepth int `yaml:"block_stack_depth"`

	// CallStackDepth bounds tracked call nesting. Overflow drops the
	// frame and logs. Defaults to 4096.
	CallStackDepth int `yaml:"call_stack_depth"`
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.BlockStackDepth <= 0 {
		return fmt.Errorf("block_stack_depth must be positive")
	}

	if c.CallStackDepth <= 0 {
		return fmt.Errorf("call_stack_depth must be positive")
	}

	return nil
}
