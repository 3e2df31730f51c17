// Package metrics exposes tracking and session-pool counters on a private Prometheus registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "freighttracker"

// Metrics implements the tracker and session pool observers.
type Metrics struct {
	registry *prometheus.Registry

	attempts        *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	tracks          *prometheus.CounterVec
	trackDuration   prometheus.Histogram

	sessionsCreated   prometheus.Counter
	sessionsDiscarded *prometheus.CounterVec
	sessionsInUse     prometheus.Gauge
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "adapter_attempts_total",
			Help:      "Carrier adapter invocations by outcome.",
		}, []string{"adapter", "outcome"}),
		attemptDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "adapter_attempt_duration_seconds",
			Help:      "Wall time of one carrier adapter invocation.",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"adapter"}),
		tracks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracks_total",
			Help:      "Multi-source tracking requests by result.",
		}, []string{"result"}),
		trackDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "track_duration_seconds",
			Help:      "Wall time of a full multi-source tracking request.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		sessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session_pool",
			Name:      "created_total",
			Help:      "Sessions created by the pool.",
		}),
		sessionsDiscarded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session_pool",
			Name:      "discarded_total",
			Help:      "Sessions dropped by the pool, by reason.",
		}, []string{"reason"}),
		sessionsInUse: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session_pool",
			Name:      "in_use",
			Help:      "Sessions currently leased to adapters.",
		}),
	}
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveAttempt(adapter, outcome string, took time.Duration) {
	m.attempts.WithLabelValues(adapter, outcome).Inc()
	m.attemptDuration.WithLabelValues(adapter).Observe(took.Seconds())
}

func (m *Metrics) ObserveTrack(result string, took time.Duration) {
	m.tracks.WithLabelValues(result).Inc()
	m.trackDuration.Observe(took.Seconds())
}

func (m *Metrics) SessionCreated() {
	m.sessionsCreated.Inc()
}

func (m *Metrics) SessionDiscarded(reason string) {
	m.sessionsDiscarded.WithLabelValues(reason).Inc()
}

func (m *Metrics) SessionsInUse(n int) {
	m.sessionsInUse.Set(float64(n))
}
