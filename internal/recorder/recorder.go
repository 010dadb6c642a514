// Package recorder implements the hook dispatch surface of the tracing
// runtime. A Recorder owns the entry cache, the shadow stack tracker,
// and the handler-thread identity, and exposes one method per
// instrumentation hook. It is the single owner of all mutable tracing
// state: the recording path is single-writer and only the thread
// identity is protected by a lock.
//
// No failure ever propagates out of a hook into instrumented code.
// Recoverable conditions are logged; unrecoverable ones abort the
// whole process with a diagnostic.
package recorder

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/slicetrace/slicetrace/internal/cache"
	"github.com/slicetrace/slicetrace/internal/entry"
	"github.com/slicetrace/slicetrace/internal/shadow"
	"github.com/slicetrace/slicetrace/internal/telemetry"
)

// Recorder records instrumentation events to a trace file.
type Recorder struct {
	log     logrus.FieldLogger
	cfg     *Config
	cache   *cache.Cache
	tracker *shadow.Tracker
	metrics *telemetry.Metrics

	// Handler-thread identity. Written at init and by
	// SetHandlerThread, read by every hook when gating is enabled.
	idMu       sync.Mutex
	handlerTID uint64
	idUpdates  int

	// fatalf aborts the process with a diagnostic. Overridable so
	// tests can observe the fatal paths without dying.
	fatalf func(format string, args ...any)

	closeOnce sync.Once
	closeErr  error
}

// New opens the trace file and initializes the recorder. The calling
// thread becomes the initial handler thread. Callers must treat an
// error as fatal: the runtime cannot proceed without a trace sink.
func New(log logrus.FieldLogger, cfg *Config) (*Recorder, error) {
	if cfg.Trace.WindowBytes == 0 {
		cfg.Trace.WindowBytes = cache.DefaultWindowBytes
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c, err := cache.Open(log, cfg.Trace)
	if err != nil {
		return nil, err
	}

	r := &Recorder{
		log:     log.WithField("component", "recorder"),
		cfg:     cfg,
		cache:   c,
		tracker: shadow.NewTracker(log, cfg.Shadow),
		metrics: telemetry.New(log, cfg.Metrics),
	}

	r.fatalf = r.log.Fatalf

	c.OnRotate = r.metrics.Rotations.Inc

	// The initializing thread is the handler thread until a
	// designated handler announces itself.
	r.handlerTID = gettid()
	r.idUpdates = 1

	r.append(entry.Header())

	if cfg.handleSignals() {
		r.installSignalHandlers()
	}

	if err := r.metrics.Start(context.Background()); err != nil {
		// Metrics are auxiliary; never take the traced program down
		// over a listener.
		r.log.WithError(err).Warn("Metrics listener failed to start")
	}

	return r, nil
}

// append forwards a record to the cache. Cache failures are fatal: a
// trace with silently missing records is worse than no trace.
func (r *Recorder) append(e entry.Entry) {
	if err := r.cache.Append(e); err != nil {
		r.fatalf("appending trace record: %v", err)

		return
	}

	r.metrics.EntriesAppended.WithLabelValues(e.Kind.String()).Inc()
}

// gated reports whether recording is disabled for the calling thread.
func (r *Recorder) gated() bool {
	if !r.cfg.GateToHandlerThread {
		return false
	}

	r.idMu.Lock()
	tid := r.handlerTID
	r.idMu.Unlock()

	return gettid() != tid
}

// SetHandlerThread records the calling OS thread as the handler thread
// whose events are significant for recording.
func (r *Recorder) SetHandlerThread() {
	r.idMu.Lock()
	defer r.idMu.Unlock()

	r.handlerTID = gettid()
	r.idUpdates++

	if r.idUpdates > 2 {
		r.log.WithField("updates", r.idUpdates).
			Warn("Handler thread reassigned more than once")
	}
}

// Close drains the shadow stacks into synthetic block-termination
// records, appends the end-of-trace marker, and seals the trace file.
// It runs the real teardown at most once; later invocations (a second
// deferred call, a racing signal path) are no-ops.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		r.closeErr = r.close()
	})

	return r.closeErr
}

func (r *Recorder) close() error {
	r.log.Info("Sealing trace file")

	// Capture the blocks still in flight so partial traces from
	// crashed runs stay analyzable.
	r.tracker.Drain(func(f shadow.Frame) {
		r.append(entry.BasicBlock(f.ID, f.Addr, 0))
	})

	r.append(entry.EndOfTrace())

	if err := r.metrics.Stop(); err != nil {
		r.log.WithError(err).Warn("Stopping metrics listener")
	}

	return r.cache.Close()
}

// Entries returns the total number of records appended, including the
// header.
func (r *Recorder) Entries() uint64 { return r.cache.Entries() }

// Rotations returns the number of trace window rotations performed.
func (r *Recorder) Rotations() uint64 { return r.cache.Rotations() }

// Tracker exposes the shadow stack tracker for tests and diagnostics.
func (r *Recorder) Tracker() *shadow.Tracker { return r.tracker }

// SetFatalf overrides the process-abort function. Test hook.
func (r *Recorder) SetFatalf(f func(format string, args ...any)) {
	r.fatalf = f
}
