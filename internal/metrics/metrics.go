package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "shortlink"

// Outcome labels for ReplenishRuns.
const (
	ReplenishFilled  = "filled"
	ReplenishSkipped = "skipped"
	ReplenishLocked  = "locked"
	ReplenishFailed  = "failed"
)

// Outcome labels for ConsumedEvents.
const (
	ConsumeInserted  = "inserted"
	ConsumeDuplicate = "duplicate"
	ConsumeDropped   = "dropped"
	ConsumeRetried   = "retried"
)

// Metrics groups the collectors shared by the service components.
type Metrics struct {
	PoolSize             prometheus.Gauge
	CodesGenerated       prometheus.Counter
	EmergencyAllocations prometheus.Counter
	ReplenishRuns        *prometheus.CounterVec
	PublishFailures      prometheus.Counter
	ConsumedEvents       *prometheus.CounterVec
	CacheLookups         *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers all collectors on reg.
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		PoolSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "keypool",
			Name:      "size",
			Help:      "Codes available in the shared pool at the last replenish check.",
		}),
		CodesGenerated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "keypool",
			Name:      "codes_generated_total",
			Help:      "Codes inserted into the pool by this instance.",
		}),
		EmergencyAllocations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "keypool",
			Name:      "emergency_allocations_total",
			Help:      "Codes derived on demand because the pool was empty.",
		}),
		ReplenishRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "keypool",
			Name:      "replenish_runs_total",
			Help:      "Replenish cycles by outcome.",
		}, []string{"outcome"}),
		PublishFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "persistence",
			Name:      "publish_failures_total",
			Help:      "Persistence events that exhausted every publish attempt.",
		}),
		ConsumedEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "persistence",
			Name:      "consumed_events_total",
			Help:      "Persistence events handled by outcome.",
		}, []string{"outcome"}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Redirect cache lookups by result.",
		}, []string{"result"}),
		gatherer: reg,
	}
}

// NewNop returns collectors bound to a private registry. Used in tests.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
