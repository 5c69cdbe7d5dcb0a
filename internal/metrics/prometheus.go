package metrics

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ainews_search_duration_seconds",
			Help:    "Search processing duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"kind"},
	)

	SearchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ainews_search_total",
			Help: "Total number of searches processed",
		},
		[]string{"kind", "status"},
	)

	SearchResults = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ainews_search_results_count",
			Help:    "Number of records returned per search",
			Buckets: []float64{0, 1, 5, 10, 20, 50, 100, 200},
		},
	)

	RelevanceScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ainews_relevance_score",
			Help:    "Relevance scores assigned by the classifier",
			Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)

	DocumentsClassified = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ainews_documents_classified_total",
			Help: "Total documents classified",
		},
		[]string{"in_domain"},
	)

	DuplicatesDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ainews_duplicates_dropped_total",
			Help: "Total documents dropped as near duplicates",
		},
	)

	RecordsUpserted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ainews_records_upserted_total",
			Help: "Total records written to the retrieval index",
		},
		[]string{"status"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ainews_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ainews_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ainews_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	IngestionCycles = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ainews_ingestion_cycles_total",
			Help: "Total ingestion batches processed",
		},
	)
)

var registerOnce sync.Once

// Init registers every collector with the default registry. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(SearchDuration)
		prometheus.MustRegister(SearchTotal)
		prometheus.MustRegister(SearchResults)
		prometheus.MustRegister(RelevanceScore)
		prometheus.MustRegister(DocumentsClassified)
		prometheus.MustRegister(DuplicatesDropped)
		prometheus.MustRegister(RecordsUpserted)
		prometheus.MustRegister(CacheHits)
		prometheus.MustRegister(CacheMisses)
		prometheus.MustRegister(BreakerState)
		prometheus.MustRegister(IngestionCycles)
	})
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
