package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics aggregates the Prometheus collectors exported by the analytics
// core. A nil *Metrics is valid and records nothing, so components can be
// constructed without a registry in tests.
type Metrics struct {
	cacheHits     *prometheus.CounterVec
	cacheMisses   *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec
	runsTotal     *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
}

// NewMetrics registers the core collectors with the supplied registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "genelab",
			Name:      "cache_hits_total",
			Help:      "Result cache hits by request kind.",
		}, []string{"kind"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "genelab",
			Name:      "cache_misses_total",
			Help:      "Result cache misses by request kind.",
		}, []string{"kind"}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "genelab",
			Name:      "query_duration_seconds",
			Help:      "Interactive chart/stat query latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "genelab",
			Name:      "recipe_runs_total",
			Help:      "Recipe run outcomes by recipe key and final status.",
		}, []string{"recipe", "status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "genelab",
			Name:      "recipe_run_duration_seconds",
			Help:      "Recipe run execution time.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"recipe"}),
	}
	reg.MustRegister(m.cacheHits, m.cacheMisses, m.queryDuration, m.runsTotal, m.runDuration)
	return m
}

// CacheHit records one cache hit for a request kind.
func (m *Metrics) CacheHit(kind string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(kind).Inc()
}

// CacheMiss records one cache miss for a request kind.
func (m *Metrics) CacheMiss(kind string) {
	if m == nil {
		return
	}
	m.cacheMisses.WithLabelValues(kind).Inc()
}

// ObserveQuery records the latency of one interactive query.
func (m *Metrics) ObserveQuery(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.queryDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// ObserveRun records a finished recipe run with its final status.
func (m *Metrics) ObserveRun(recipe, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(recipe, status).Inc()
	m.runDuration.WithLabelValues(recipe).Observe(d.Seconds())
}
