// Package tracing is the public surface of the execution-tracing
// runtime. Instrumented programs call Init once at startup, the hook
// functions from the instrumentation points the compiler inserted, and
// Close (usually deferred from main) at exit:
//
//	func main() {
//		tracing.Init("trace.bin")
//		defer tracing.Close()
//		// ... instrumented code ...
//	}
//
// The recording path is single-writer: hooks must be invoked in
// program order from one thread (or gated to one, see
// Config.GateToHandlerThread). Only SetHandlerThread is safe to call
// concurrently with other hooks.
package tracing

import (
	"unsafe"

	"github.com/sirupsen/logrus"

	"github.com/slicetrace/slicetrace/internal/recorder"
)

// Config is the runtime configuration. See the yaml tags for the
// config-file schema.
type Config = recorder.Config

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return recorder.DefaultConfig()
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	return recorder.LoadConfig(path)
}

// def is the process-wide recorder. Written once by Init before any
// hook fires; hooks read it without synchronization under the
// single-writer contract.
var def *recorder.Recorder

// Init initializes the runtime with defaults, recording to the trace
// file at path. It aborts the process with a diagnostic if the trace
// sink cannot be established. Calling Init twice is a no-op.
func Init(path string) {
	cfg := recorder.DefaultConfig()
	cfg.Trace.Path = path

	InitWithConfig(cfg)
}

// InitWithConfig initializes the runtime with an explicit Config.
func InitWithConfig(cfg *Config) {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	if def != nil {
		log.Warn("Tracing runtime already initialized")

		return
	}

	r, err := recorder.New(log, cfg)
	if err != nil {
		log.WithError(err).Fatal("Initializing tracing runtime")
	}

	def = r
}

// Close seals the trace file: in-flight blocks are drained into
// synthetic termination records, the end-of-trace marker is appended,
// and the final window is synced. Safe to call more than once; only
// the first call does the work.
func Close() {
	if def == nil {
		return
	}

	if err := def.Close(); err != nil {
		logrus.WithError(err).Error("Sealing trace file")
	}
}

// StartBlock records entry into basic block id of the function at fn.
func StartBlock(id uint32, fn uintptr) {
	if def == nil {
		return
	}

	def.StartBlock(id, fn)
}

// EndBlock records completion of basic block id. last marks the
// function's final block, whose terminator is a return.
func EndBlock(id uint32, fn uintptr, last bool) {
	if def == nil {
		return
	}

	def.EndBlock(id, fn, last)
}

// Load records a read of length bytes at addr by instruction id.
func Load(id uint32, addr uintptr, length uint64) {
	if def == nil {
		return
	}

	def.Load(id, addr, length)
}

// Store records a write of length bytes at addr by instruction id.
func Store(id uint32, addr uintptr, length uint64) {
	if def == nil {
		return
	}

	def.Store(id, addr, length)
}

// StringLoad records a read of the NUL-terminated string at p.
func StringLoad(id uint32, p unsafe.Pointer) {
	if def == nil {
		return
	}

	def.StringLoad(id, p)
}

// StringStore records a write of the NUL-terminated string at p.
func StringStore(id uint32, p unsafe.Pointer) {
	if def == nil {
		return
	}

	def.StringStore(id, p)
}

// ConcatStore records the write performed by concatenating the string
// at src onto the string at dst.
func ConcatStore(id uint32, dst, src unsafe.Pointer) {
	if def == nil {
		return
	}

	def.ConcatStore(id, dst, src)
}

// Call records that call site id invoked the traced function at fn.
func Call(id uint32, fn uintptr) {
	if def == nil {
		return
	}

	def.Call(id, fn)
}

// ExternalCall records a call into a function with no traced body.
func ExternalCall(id uint32, fn uintptr) {
	if def == nil {
		return
	}

	def.ExternalCall(id, fn)
}

// Return records, at call site id, that control returned to the caller.
func Return(id uint32, fn uintptr) {
	if def == nil {
		return
	}

	def.Return(id, fn)
}

// Select records which operand the select instruction id chose.
func Select(id uint32, flag uint8) {
	if def == nil {
		return
	}

	def.Select(id, flag)
}

// InvariantFailure records an invariant violation at instruction id.
func InvariantFailure(id uint32) {
	if def == nil {
		return
	}

	def.InvariantFailure(id)
}

// SetHandlerThread marks the calling OS thread as the handler thread
// whose events are significant when gating is enabled.
func SetHandlerThread() {
	if def == nil {
		return
	}

	def.SetHandlerThread()
}
