// Package telemetry publishes reactive-graph metrics and traces.
//
// The collector is a passive observer: it consumes the instrumentation
// hooks for cell lifecycle and flush statistics, and exposes recording
// functions for the write paths the hooks cannot see. The core never
// imports this package.
package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ripple-dev/ripple/pkg/ripple"
)

// MetricsConfig configures the Prometheus collector.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "ripple").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for flush drain passes.
	// Default: 1, 2, 4, 8, 16, 32.
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus collector.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the drain-pass histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

// defaultMetricsConfig returns the default metrics configuration.
func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace:   "ripple",
		Subsystem:   "",
		ConstLabels: nil,
		Buckets:     []float64{1, 2, 4, 8, 16, 32},
		Registry:    prometheus.DefaultRegisterer,
	}
}

// Metrics holds the Prometheus metrics for a reactive graph.
type Metrics struct {
	cellsCreated  *prometheus.CounterVec
	cellsDisposed prometheus.Counter
	liveCells     prometheus.Gauge
	writes        prometheus.Counter
	notifications prometheus.Counter
	flushes       prometheus.Counter
	drainPasses   prometheus.Histogram
	recomputes    prometheus.Counter
	effectRuns    prometheus.Counter
}

// globalMetrics is the singleton collector, created on first Enable.
var (
	globalMetrics   *Metrics
	globalMetricsMu sync.Mutex
)

// initMetrics initializes the Prometheus metrics.
func initMetrics(config MetricsConfig) *Metrics {
	factory := promauto.With(config.Registry)

	return &Metrics{
		cellsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "cells_created_total",
			Help:        "Total number of cells created, by kind",
			ConstLabels: config.ConstLabels,
		}, []string{"kind"}),

		cellsDisposed: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "cells_disposed_total",
			Help:        "Total number of cells disposed",
			ConstLabels: config.ConstLabels,
		}),

		liveCells: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "live_cells",
			Help:        "Cells created minus cells disposed",
			ConstLabels: config.ConstLabels,
		}),

		writes: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "writes_total",
			Help:        "Total number of atom writes recorded",
			ConstLabels: config.ConstLabels,
		}),

		notifications: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "notifications_total",
			Help:        "Total listener notifications delivered by batch flushes",
			ConstLabels: config.ConstLabels,
		}),

		flushes: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "flushes_total",
			Help:        "Total number of batch flushes that delivered notifications",
			ConstLabels: config.ConstLabels,
		}),

		drainPasses: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "flush_drain_passes",
			Help:        "Drain passes per batch flush; cascades add passes",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		recomputes: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "recomputations_total",
			Help:        "Total number of derived recomputations recorded",
			ConstLabels: config.ConstLabels,
		}),

		effectRuns: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "effect_runs_total",
			Help:        "Total number of effect body runs recorded",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// NewMetrics creates a collector without attaching it. Most callers want
// Enable; NewMetrics exists so tests and embedders can scope a collector
// to a private registry.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	return initMetrics(config)
}

// Attach subscribes the collector to the instrumentation hooks and
// returns a detach function.
func (m *Metrics) Attach() func() {
	offCreate := ripple.OnCreate(func(info ripple.CellInfo) {
		m.cellsCreated.WithLabelValues(info.Kind.String()).Inc()
		m.liveCells.Inc()
	})
	offDispose := ripple.OnDispose(func(uint64) {
		m.cellsDisposed.Inc()
		m.liveCells.Dec()
	})
	offFlush := ripple.OnFlush(func(st ripple.FlushStats) {
		m.flushes.Inc()
		m.drainPasses.Observe(float64(st.Passes))
		m.notifications.Add(float64(st.Delivered))
	})

	return func() {
		offCreate()
		offDispose()
		offFlush()
	}
}

// RecordWrite counts one atom write.
func (m *Metrics) RecordWrite() { m.writes.Inc() }

// RecordRecompute counts one derived recomputation.
func (m *Metrics) RecordRecompute() { m.recomputes.Inc() }

// RecordEffectRun counts one effect body run.
func (m *Metrics) RecordEffectRun() { m.effectRuns.Inc() }

// Enable initializes the singleton collector and attaches it to the
// instrumentation hooks. Later calls return the existing collector;
// promauto panics on duplicate registration, so one collector per
// process registry is the rule.
//
// Example:
//
//	telemetry.Enable(telemetry.WithNamespace("myapp"))
//	http.Handle("/metrics", promhttp.Handler())
func Enable(opts ...MetricsOption) *Metrics {
	globalMetricsMu.Lock()
	defer globalMetricsMu.Unlock()

	if globalMetrics == nil {
		globalMetrics = NewMetrics(opts...)
		globalMetrics.Attach()
	}
	return globalMetrics
}

// RecordWrite counts one atom write on the singleton collector.
// Call this from application write paths that need write-rate visibility.
func RecordWrite() {
	if globalMetrics != nil {
		globalMetrics.RecordWrite()
	}
}

// RecordRecompute counts one derived recomputation on the singleton
// collector.
func RecordRecompute() {
	if globalMetrics != nil {
		globalMetrics.RecordRecompute()
	}
}

// RecordEffectRun counts one effect body run on the singleton collector.
func RecordEffectRun() {
	if globalMetrics != nil {
		globalMetrics.RecordEffectRun()
	}
}
