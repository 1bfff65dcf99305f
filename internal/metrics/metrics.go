// Package metrics exposes Prometheus counters for carrier resolution.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "termmeta"
	subsystem = "resolver"
)

// Resolution outcomes used as the "outcome" label.
const (
	OutcomeDisabled     = "disabled"
	OutcomeCacheHit     = "cache_hit"
	OutcomeDurableHit   = "durable_hit"
	OutcomeBackfilled   = "backfilled"
	OutcomeTermNotFound = "term_not_found"
	OutcomeUnavailable  = "carrier_unavailable"
)

// ResolverMetrics holds the resolver counters. A nil *ResolverMetrics is valid and
// records nothing.
type ResolverMetrics struct {
	resolutions    *prometheus.CounterVec
	durableLookups *prometheus.CounterVec
	backfills      *prometheus.CounterVec
	invalidations  *prometheus.CounterVec
	cacheEntries   prometheus.Gauge
}

// NewResolverMetrics creates the counters and registers them with reg.
func NewResolverMetrics(reg prometheus.Registerer) (*ResolverMetrics, error) {
	m := &ResolverMetrics{
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "resolutions_total",
			Help:      "Total number of resolve calls by taxonomy and outcome",
		}, []string{"taxonomy", "outcome"}),
		durableLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "durable_lookups_total",
			Help:      "Total number of relationship store queries",
		}, []string{"taxonomy"}),
		backfills: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "backfills_total",
			Help:      "Total number of carrier creation attempts by result",
		}, []string{"taxonomy", "result"}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "invalidations_total",
			Help:      "Total number of cache entries evicted",
		}, []string{"taxonomy"}),
		cacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cache_entries",
			Help:      "Number of entries currently held in the resolution cache",
		}),
	}

	for _, c := range []prometheus.Collector{m.resolutions, m.durableLookups, m.backfills, m.invalidations, m.cacheEntries} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register resolver metric: %w", err)
		}
	}
	return m, nil
}

// ObserveResolution counts one resolve call.
func (m *ResolverMetrics) ObserveResolution(taxonomy, outcome string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(taxonomy, outcome).Inc()
}

// ObserveDurableLookup counts one relationship store query.
func (m *ResolverMetrics) ObserveDurableLookup(taxonomy string) {
	if m == nil {
		return
	}
	m.durableLookups.WithLabelValues(taxonomy).Inc()
}

// ObserveBackfill counts one creation attempt; result is "ok", "deferred" or "error".
func (m *ResolverMetrics) ObserveBackfill(taxonomy, result string) {
	if m == nil {
		return
	}
	m.backfills.WithLabelValues(taxonomy, result).Inc()
}

// ObserveInvalidation counts evicted cache entries.
func (m *ResolverMetrics) ObserveInvalidation(taxonomy string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.invalidations.WithLabelValues(taxonomy).Add(float64(n))
}

// SetCacheEntries records the current cache size.
func (m *ResolverMetrics) SetCacheEntries(n int) {
	if m == nil {
		return
	}
	m.cacheEntries.Set(float64(n))
}
