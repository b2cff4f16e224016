package observability

import (
	"context"
	"net/http"

	"github.com/aretw0/tempo/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tempo"

// Metrics holds the playback collectors.
type Metrics struct {
	registry *prometheus.Registry

	runs        *prometheus.CounterVec
	snapshots   *prometheus.CounterVec
	staleWrites prometheus.Counter
	dropped     *prometheus.CounterVec
	stepSeconds *prometheus.HistogramVec
	speed       prometheus.Gauge
	active      prometheus.Gauge
}

// NewMetrics creates the collectors in a fresh registry, together with the
// standard Go and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Runs by lifecycle event (started, completed, cancelled, failed).",
		}, []string{"algorithm", "event"}),
		snapshots: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_published_total",
			Help:      "Snapshots delivered to observers.",
		}, []string{"algorithm"}),
		staleWrites: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_writes_total",
			Help:      "Snapshot publishes discarded because the run's token was stale.",
		}),
		dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Events dropped by slow downstream sinks.",
		}, []string{"sink"}),
		stepSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Time to pull, apply and publish one step (excluding pacing).",
			Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}, []string{"algorithm"}),
		speed: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "speed_milliseconds",
			Help:      "Most recently set delay between steps.",
		}),
		active: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_runs",
			Help:      "Runs started and not yet finished.",
		}),
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Dropped counts one event dropped by sink (e.g. "redis", "sse").
func (m *Metrics) Dropped(sink string) {
	m.dropped.WithLabelValues(sink).Inc()
}

// Hooks returns lifecycle hooks recording into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	finish := func(event string) func(context.Context, *domain.RunEvent) {
		return func(_ context.Context, e *domain.RunEvent) {
			m.runs.WithLabelValues(e.Algorithm, event).Inc()
			m.active.Dec()
		}
	}
	return domain.LifecycleHooks{
		OnStart: func(_ context.Context, e *domain.RunEvent) {
			m.runs.WithLabelValues(e.Algorithm, "started").Inc()
			m.active.Inc()
			m.speed.Set(float64(e.Speed))
		},
		OnSnapshot: func(_ context.Context, e *domain.RunEvent) {
			m.snapshots.WithLabelValues(e.Algorithm).Inc()
			m.stepSeconds.WithLabelValues(e.Algorithm).Observe(e.Elapsed.Seconds())
		},
		OnComplete: finish("completed"),
		OnCancel:   finish("cancelled"),
		OnFail:     finish("failed"),
		OnStaleWrite: func(context.Context, *domain.RunEvent) {
			m.staleWrites.Inc()
		},
		OnSpeed: func(_ context.Context, e *domain.RunEvent) {
			m.speed.Set(float64(e.Speed))
		},
	}
}
