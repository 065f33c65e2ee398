// Package metrics exposes append-only counters and histograms — safe to
// increment from any goroutine without additional locking. Each Registry
// registers against its own prometheus.Registry, never prometheus's global
// default registry, so multiple engine instances (one per symbol, or one
// per test)
// never collide on metric names.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry bundles every collector the core emits into, plus the
// prometheus.Registry they are registered against.
type Registry struct {
	reg *prometheus.Registry

	BookErrors        *prometheus.CounterVec
	QueueOverflows    *prometheus.CounterVec
	DetectorEmissions *prometheus.CounterVec
	DetectorQuarantines *prometheus.CounterVec
	TradeLatency      prometheus.Histogram
	AnomalyCount      *prometheus.CounterVec
	SignalsConfirmed  prometheus.Counter
	SignalsDropped    *prometheus.CounterVec
}

// New constructs a Registry and registers every collector against a
// fresh prometheus.Registry instance.
func New() *Registry {
	reg := prometheus.NewRegistry()

	m := &Registry{
		reg: reg,
		BookErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orderflow_book_errors_total",
			Help: "Depth updates rejected by the order book, per symbol.",
		}, []string{"symbol"}),
		QueueOverflows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orderflow_queue_overflows_total",
			Help: "Dropped messages due to a full bounded channel, by queue name.",
		}, []string{"queue"}),
		DetectorEmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orderflow_detector_emissions_total",
			Help: "SignalCandidate emissions per detector.",
		}, []string{"detector"}),
		DetectorQuarantines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orderflow_detector_quarantines_total",
			Help: "Detectors that crossed error_rate_threshold and were quarantined.",
		}, []string{"detector"}),
		TradeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "orderflow_trade_processing_seconds",
			Help:    "Wall-clock time to enrich and run one trade through all detectors.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
		AnomalyCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orderflow_anomalies_total",
			Help: "AnomalyEvent emissions by type and severity.",
		}, []string{"type", "severity"}),
		SignalsConfirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orderflow_signals_confirmed_total",
			Help: "ConfirmedSignal emissions after all SignalManager gates passed.",
		}),
		SignalsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orderflow_signals_dropped_total",
			Help: "SignalCandidates dropped by SignalManager, by gate reason.",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		m.BookErrors,
		m.QueueOverflows,
		m.DetectorEmissions,
		m.DetectorQuarantines,
		m.TradeLatency,
		m.AnomalyCount,
		m.SignalsConfirmed,
		m.SignalsDropped,
	)

	return m
}

// Gatherer exposes the underlying registry for an HTTP /metrics handler.
func (m *Registry) Gatherer() prometheus.Gatherer { return m.reg }
