// Package metrics defines the engine's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "graduator"

type Metrics struct {
	sweepDuration   prometheus.Histogram
	poolOutcomes    *prometheus.CounterVec
	transactions    *prometheus.CounterVec
	referenceMisses prometheus.Counter
	priceCache      *prometheus.CounterVec
}

// New registers the collectors on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		sweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of migration sweeps",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		poolOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_pools_total",
			Help:      "Pools processed by the migration sweep, by outcome",
		}, []string{"outcome"}),
		transactions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Submitted transactions by step and result",
		}, []string{"step", "result"}),
		referenceMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reference_price_misses_total",
			Help:      "Valuations served without a reference USD price",
		}),
		priceCache: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_cache_requests_total",
			Help:      "Reference price cache lookups by result",
		}, []string{"result"}),
	}
}

func (m *Metrics) ObserveSweep(d time.Duration) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(d.Seconds())
}

func (m *Metrics) PoolOutcome(outcome string) {
	if m == nil {
		return
	}
	m.poolOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Transaction(step string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.transactions.WithLabelValues(step, result).Inc()
}

func (m *Metrics) ReferenceMiss() {
	if m == nil {
		return
	}
	m.referenceMisses.Inc()
}

// PriceCache records a cache lookup result: hit, miss or error.
func (m *Metrics) PriceCache(result string) {
	if m == nil {
		return
	}
	m.priceCache.WithLabelValues(result).Inc()
}
