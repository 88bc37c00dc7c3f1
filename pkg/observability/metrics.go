package observability

import (
	"context"
	"net/http"

	"github.com/aretw0/docbridge/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "docbridge"

// Metrics holds the bridge collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	turns        *prometheus.CounterVec
	turnDuration *prometheus.HistogramVec
	activeTurns  prometheus.Gauge
	fetches      *prometheus.CounterVec
	flushes      *prometheus.CounterVec
	flushedItems prometheus.Histogram
	deletes      *prometheus.CounterVec
}

// NewMetrics creates and registers the bridge collectors, plus the Go runtime and
// process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		turns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "turns_total",
				Help:      "Total number of completed turns",
			},
			[]string{"result"},
		),
		turnDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "turn_duration_seconds",
				Help:      "Duration of turns, lock wait excluded",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"result"},
		),
		activeTurns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_turns",
			Help:      "Number of turns currently running",
		}),
		fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "snapshot_fetches_total",
				Help:      "Total number of snapshot fetches from the host",
			},
			[]string{"result"},
		),
		flushes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "snapshot_flushes_total",
				Help:      "Total number of snapshot flushes to the host",
			},
			[]string{"result"},
		),
		flushedItems: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "snapshot_flush_items",
			Help:      "Top-level item count of flushed snapshots",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 6),
		}),
		deletes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "node_deletes_total",
				Help:      "Total number of nodes released on the host",
			},
			[]string{"result"},
		),
	}

	m.registry.MustRegister(
		m.turns, m.turnDuration, m.activeTurns,
		m.fetches, m.flushes, m.flushedItems, m.deletes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ActiveTurns returns the gauge of running turns.
func (m *Metrics) ActiveTurns() prometheus.Gauge {
	return m.activeTurns
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Hooks returns lifecycle hooks that record every event.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTurnStart: func(ctx context.Context, e *domain.TurnEvent) {
			m.activeTurns.Inc()
		},
		OnTurnEnd: func(ctx context.Context, e *domain.TurnEvent) {
			m.activeTurns.Dec()
			r := result(e.Err)
			m.turns.WithLabelValues(r).Inc()
			m.turnDuration.WithLabelValues(r).Observe(e.Duration.Seconds())
		},
		OnFetch: func(ctx context.Context, e *domain.SnapshotEvent) {
			m.fetches.WithLabelValues(result(e.Err)).Inc()
		},
		OnFlush: func(ctx context.Context, e *domain.SnapshotEvent) {
			m.flushes.WithLabelValues(result(e.Err)).Inc()
			if e.Err == nil {
				m.flushedItems.Observe(float64(e.Items))
			}
		},
		OnDelete: func(ctx context.Context, e *domain.NodeEvent) {
			m.deletes.WithLabelValues(result(e.Err)).Inc()
		},
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
