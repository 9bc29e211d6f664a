// Package metrics exposes the search core's Prometheus instrumentation:
// query volume and latency, per-shard failure counts, admission
// rejections, and degraded-result counts, per SPEC_FULL's ambient
// observability stack.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every counter/histogram the search core records. A nil
// *Metrics is valid and every Record*/Inc* method on it is a no-op, so
// callers that don't wire metrics (tests, a metrics-disabled config)
// don't need a separate code path.
type Metrics struct {
	registry *prometheus.Registry

	queriesTotal       *prometheus.CounterVec
	queryLatency       *prometheus.HistogramVec
	shardErrorsTotal   *prometheus.CounterVec
	admissionRejected  prometheus.Counter
	degradedQueries    prometheus.Counter
	hydrateDropsTotal  prometheus.Counter
	circuitOpenTotal   *prometheus.CounterVec
	rankingStageErrors *prometheus.CounterVec
}

// New builds a fresh Metrics instance registered against its own
// registry. namespace is the Prometheus metric name prefix (e.g.
// "stract_searcher").
func New(namespace string) *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.queriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Total number of search queries served.",
		},
		[]string{"outcome"},
	)

	m.queryLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_latency_seconds",
			Help:      "Query latency from coordinator admission to response, in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
		[]string{"outcome"},
	)

	m.shardErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shard_errors_total",
			Help:      "Total number of failed shard RPCs, by method.",
		},
		[]string{"method"},
	)

	m.admissionRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "admission_rejected_total",
		Help:      "Total number of queries rejected immediately by the admission semaphore.",
	})

	m.degradedQueries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "degraded_queries_total",
		Help:      "Total number of queries answered with one or more shards unreachable.",
	})

	m.hydrateDropsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "hydrate_drops_total",
		Help:      "Total number of result docs dropped from a page because retrieve failed for them.",
	})

	m.circuitOpenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_open_total",
			Help:      "Total number of times a replica was skipped because its circuit breaker was open.",
		},
		[]string{"replica"},
	)

	m.rankingStageErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ranking_stage_errors_total",
			Help:      "Total number of ranking stage failures that fell back to the prior stage's ordering.",
		},
		[]string{"stage"},
	)

	m.registry.MustRegister(
		m.queriesTotal,
		m.queryLatency,
		m.shardErrorsTotal,
		m.admissionRejected,
		m.degradedQueries,
		m.hydrateDropsTotal,
		m.circuitOpenTotal,
		m.rankingStageErrors,
	)
	return m
}

// RecordQuery records one completed query's outcome and latency.
// outcome is "ok" or "degraded".
func (m *Metrics) RecordQuery(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.queriesTotal.WithLabelValues(outcome).Inc()
	m.queryLatency.WithLabelValues(outcome).Observe(duration.Seconds())
	if outcome == "degraded" {
		m.degradedQueries.Inc()
	}
}

// RecordShardError records a failed shard RPC for the given method
// name ("search", "retrieve", "size", "get_webpage", "get_homepage").
func (m *Metrics) RecordShardError(method string) {
	if m == nil {
		return
	}
	m.shardErrorsTotal.WithLabelValues(method).Inc()
}

// RecordAdmissionRejected records an immediate "busy" rejection.
func (m *Metrics) RecordAdmissionRejected() {
	if m == nil {
		return
	}
	m.admissionRejected.Inc()
}

// RecordHydrateDrop records a displayed doc dropped from a page because
// its retrieve call failed.
func (m *Metrics) RecordHydrateDrop() {
	if m == nil {
		return
	}
	m.hydrateDropsTotal.Inc()
}

// RecordCircuitOpen records a replica skipped because its breaker is open.
func (m *Metrics) RecordCircuitOpen(replica string) {
	if m == nil {
		return
	}
	m.circuitOpenTotal.WithLabelValues(replica).Inc()
}

// RecordRankingStageError records a ranking stage being skipped after
// failing, per §7's "model failures" handling.
func (m *Metrics) RecordRankingStageError(stage string) {
	if m == nil {
		return
	}
	m.rankingStageErrors.WithLabelValues(stage).Inc()
}

// Handler serves the registry in the Prometheus text exposition format.
// A nil Metrics serves 503, so wiring it unconditionally into an HTTP
// mux is safe even when metrics are disabled.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, e.g. for tests that want
// to scrape specific metric families.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}
