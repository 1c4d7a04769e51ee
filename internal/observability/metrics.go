package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SearchRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "product_search_request_duration_seconds",
			Help:    "Search service operation duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.2, 0.5, 1, 2.5},
		},
		[]string{"operation", "status"},
	)

	SearchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "product_search_requests_total",
			Help: "Total number of search service operations",
		},
		[]string{"operation", "status"},
	)

	DegradedResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "product_search_degraded_total",
			Help: "Searches answered with an empty result because the engine failed",
		},
		[]string{"reason"},
	)

	ParseSourceTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "product_search_parse_total",
			Help: "Natural-language parses by the parser that produced the result",
		},
		[]string{"source"},
	)

	SuggestionsReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "product_search_suggestions_returned",
			Help:    "Number of suggestions returned per request",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 20},
		},
	)

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_cache_hits_total",
			Help: "Total number of Redis cache hits",
		},
		[]string{"kind"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_cache_misses_total",
			Help: "Total number of Redis cache misses",
		},
		[]string{"kind"},
	)

	EngineQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "es_query_duration_seconds",
			Help:    "Elasticsearch query duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.15, 0.2, 0.5, 1},
		},
		[]string{"index", "status"},
	)

	CHQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ch_query_duration_seconds",
			Help:    "ClickHouse query duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"query_type", "status"},
	)

	HistoryWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_history_writes_total",
			Help: "Search history records written, by outcome",
		},
		[]string{"status"},
	)

	IndexingLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "indexing_lag_seconds",
			Help: "Current indexing pipeline lag in seconds",
		},
	)

	IndexingEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexing_events_total",
			Help: "Total number of indexing events processed",
		},
		[]string{"operation", "status"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	SlowQueryCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slow_query_total",
			Help: "Total number of slow queries",
		},
		[]string{"severity", "query_type"},
	)

	KafkaConsumerLag = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kafka_consumer_group_lag",
			Help: "Kafka consumer group lag by topic/partition",
		},
		[]string{"topic", "partition"},
	)

	ESClusterHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "es_cluster_health_status",
			Help: "ES cluster health, 1 for the current status color",
		},
		[]string{"color"},
	)
)
