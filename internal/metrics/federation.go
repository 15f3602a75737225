package metrics

import "github.com/prometheus/client_golang/prometheus"

// Federation Prometheus metrics.
var (
	SourceQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fedcat",
			Name:      "source_queries_total",
			Help:      "Queries dispatched to federated sources",
		},
		[]string{"source", "status"}, // ok / error / unavailable / panic
	)

	SourceQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fedcat",
			Name:      "source_query_duration_seconds",
			Help:      "Per-source query duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"source"},
	)

	SourceResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fedcat",
			Name:      "source_results_total",
			Help:      "Results streamed from each source",
		},
		[]string{"source"},
	)

	ResourceRetrievalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fedcat",
			Name:      "resource_retrievals_total",
			Help:      "Per-source resource retrieval attempts",
		},
		[]string{"source", "outcome"}, // ok / not_found / not_supported / io_error
	)

	ResourceCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fedcat",
			Name:      "resource_cache_total",
			Help:      "Resource cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	IngestTransactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fedcat",
			Name:      "ingest_transactions_total",
			Help:      "Local catalog ingest transactions seen by the pre-ingest plugins",
		},
		[]string{"source", "kind"}, // create / update / delete
	)
)

var fedMetricsRegistered bool

// RegisterFederationMetrics registers federation metrics. Must be called once from main.
func RegisterFederationMetrics() {
	if fedMetricsRegistered {
		return
	}
	prometheus.MustRegister(SourceQueriesTotal)
	prometheus.MustRegister(SourceQueryDuration)
	prometheus.MustRegister(SourceResultsTotal)
	prometheus.MustRegister(ResourceRetrievalsTotal)
	prometheus.MustRegister(ResourceCacheTotal)
	prometheus.MustRegister(IngestTransactionsTotal)
	fedMetricsRegistered = true
}
