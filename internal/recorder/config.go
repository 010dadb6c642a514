package recorder

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/slicetrace/slicetrace/internal/cache"
	"github.com/slicetrace/slicetrace/internal/shadow"
	"github.com/slicetrace/slicetrace/internal/telemetry"
)

// Config is the top-level configuration for the tracing runtime.
type Config struct {
	// LogLevel sets the logging verbosity (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	// Trace configures the trace file and its mapped windows.
	Trace cache.Config `yaml:"trace"`

	// Shadow configures the shadow stack bounds.
	Shadow shadow.Config `yaml:"shadow"`

	// Metrics configures the optional self-metrics listener.
	Metrics telemetry.Config `yaml:"metrics"`

	// GateToHandlerThread restricts recording to the designated
	// handler thread. The identity mechanism is always maintained;
	// this switch only enables the gating predicate. Defaults to
	// false: every thread's events are recorded.
	GateToHandlerThread bool `yaml:"gate_to_handler_thread"`

	// HandleSignals controls whether the runtime installs handlers
	// that seal the trace on abnormal termination. Defaults to true
	// when unset.
	HandleSignals *bool `yaml:"handle_signals"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Trace: cache.Config{
			WindowBytes: cache.DefaultWindowBytes,
		},
		Shadow: shadow.Config{
			BlockStackDepth: shadow.DefaultBlockStackDepth,
			CallStackDepth:  shadow.DefaultCallStackDepth,
		},
	}
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg := DefaultConfig()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for required fields and
// consistency.
func (c *Config) Validate() error {
	if err := c.Trace.Validate(); err != nil {
		return err
	}

	return c.Shadow.Validate()
}

// handleSignals resolves the HandleSignals default.
func (c *Config) handleSignals() bool {
	if c.HandleSignals == nil {
		return true
	}

	return *c.HandleSignals
}
