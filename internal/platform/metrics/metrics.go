package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for identity search.
type Metrics struct {
	SearchesIssued      prometheus.Counter
	CacheHits           prometheus.Counter
	CacheMisses         prometheus.Counter
	CacheEvictions      prometheus.Counter
	StaleResponses      prometheus.Counter
	ResolutionFailures  *prometheus.CounterVec
	ResolutionDuration  *prometheus.HistogramVec
	ActiveSessions      prometheus.Gauge
	ResolverBreakerOpen prometheus.Gauge
	SelectionsPublished prometheus.Counter
}

// New registers all metrics with the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers all metrics with reg. Tests pass a fresh
// prometheus.NewRegistry() so repeated construction does not collide.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SearchesIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "idsearch_searches_issued_total",
			Help: "Total number of resolution requests issued after the debounce window",
		}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "idsearch_cache_hits_total",
			Help: "Total number of search queries answered from the in-memory cache",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "idsearch_cache_misses_total",
			Help: "Total number of search queries not found or expired in the in-memory cache",
		}),
		CacheEvictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "idsearch_cache_evictions_total",
			Help: "Total number of cache entries evicted because the cache was full",
		}),
		StaleResponses: factory.NewCounter(prometheus.CounterOpts{
			Name: "idsearch_stale_responses_total",
			Help: "Total number of resolution responses discarded because a newer request superseded them",
		}),
		ResolutionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idsearch_resolution_failures_total",
			Help: "Total number of failed identity resolutions by error category",
		}, []string{"category"}),
		ResolutionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "idsearch_resolution_duration_seconds",
			Help:    "Duration of identity resolution calls by route",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"route"}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "idsearch_active_sessions",
			Help: "Current number of open live search sessions",
		}),
		ResolverBreakerOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "idsearch_resolver_breaker_open",
			Help: "1 when the identity resolver circuit breaker is open",
		}),
		SelectionsPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "idsearch_selections_published_total",
			Help: "Total number of identity selection events published",
		}),
	}
}

func (m *Metrics) IncrementSearchesIssued() {
	m.SearchesIssued.Inc()
}

func (m *Metrics) RecordCacheLookup(hit bool) {
	if hit {
		m.CacheHits.Inc()
		return
	}
	m.CacheMisses.Inc()
}

func (m *Metrics) IncrementCacheEvictions() {
	m.CacheEvictions.Inc()
}

func (m *Metrics) IncrementStaleResponses() {
	m.StaleResponses.Inc()
}

func (m *Metrics) IncrementResolutionFailures(category string) {
	m.ResolutionFailures.WithLabelValues(category).Inc()
}

// ObserveResolution records the duration of a resolution call.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveResolution(route string, start time.Time) {
	m.ResolutionDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
}

func (m *Metrics) SessionOpened() {
	m.ActiveSessions.Inc()
}

func (m *Metrics) SessionClosed() {
	m.ActiveSessions.Dec()
}

func (m *Metrics) SetResolverBreakerOpen(open bool) {
	if open {
		m.ResolverBreakerOpen.Set(1)
		return
	}
	m.ResolverBreakerOpen.Set(0)
}

func (m *Metrics) IncrementSelectionsPublished() {
	m.SelectionsPublished.Inc()
}
