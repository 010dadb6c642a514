// Package telemetry exposes Prometheus self-metrics for the tracing
// runtime. Collection is always on; the HTTP listener only starts when
// an address is configured, since a runtime linked into someone else's
// program must not open sockets unasked.
package telemetry

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Config configures the metrics listener.
type Config struct {
	// Addr is the listen address for the metrics server. Empty
	// disables the listener.
	Addr string `yaml:"addr"`
}

// Metrics holds the runtime's self-metrics.
type Metrics struct {
	log      logrus.FieldLogger
	addr     string
	server   *http.Server
	listener net.Listener
	registry *prometheus.Registry

	EntriesAppended *prometheus.CounterVec // kind
	Rotations       prometheus.Counter
	CallStackDrops  prometheus.Counter
	Mismatches      prometheus.Counter
	BlockStackDepth prometheus.Gauge
	CallStackDepth  prometheus.Gauge

	running atomic.Bool
}

// New creates the metrics set on a private registry.
func New(log logrus.FieldLogger, cfg Config) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		log:      log.WithField("component", "telemetry"),
		addr:     cfg.Addr,
		registry: reg,

		EntriesAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slicetrace",
			Name:      "entries_appended_total",
			Help:      "Total trace records appended, by record kind.",
		}, []string{"kind"}),
		Rotations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "slicetrace",
			Name:      "window_rotations_total",
			Help:      "Total trace window rotations.",
		}),
		CallStackDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "slicetrace",
			Name:      "call_stack_drops_total",
			Help:      "Call frames dropped due to call stack overflow.",
		}),
		Mismatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "slicetrace",
			Name:      "call_block_mismatches_total",
			Help:      "Returning blocks whose function did not match the top call frame.",
		}),
		BlockStackDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "slicetrace",
			Name:      "block_stack_depth",
			Help:      "Current basic block shadow stack depth.",
		}),
		CallStackDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "slicetrace",
			Name:      "call_stack_depth",
			Help:      "Current function call shadow stack depth.",
		}),
	}

	reg.MustRegister(
		m.EntriesAppended,
		m.Rotations,
		m.CallStackDrops,
		m.Mismatches,
		m.BlockStackDepth,
		m.CallStackDepth,
	)

	return m
}

// Start begins serving /metrics if an address is configured.
func (m *Metrics) Start(_ context.Context) error {
	if m.addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(
		m.registry,
		promhttp.HandlerOpts{},
	))

	ln, err := net.Listen("tcp", m.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", m.addr, err)
	}

	m.listener = ln

	m.server = &http.Server{
		Handler: mux,
	}

	m.running.Store(true)

	go func() {
		m.log.WithField("addr", ln.Addr().String()).
			Info("Metrics server started")

		if err := m.server.Serve(ln); err != nil &&
			err != http.ErrServerClosed {
			m.log.WithError(err).Error("Metrics server failed")
		}

		m.running.Store(false)
	}()

	return nil
}

// Addr returns the bound listen address, if any.
func (m *Metrics) Addr() string {
	if m.listener != nil {
		return m.listener.Addr().String()
	}

	return m.addr
}

// Stop shuts down the metrics server.
func (m *Metrics) Stop() error {
	if m.server == nil {
		return nil
	}

	return m.server.Close()
}
