package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_curator_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_curator_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_curator_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_curator_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_curator_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_curator_db_transaction_duration_seconds",
			Help:    "Database transaction duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"outcome"}, // "commit", "rollback"
	)
)

// Scan metrics
var (
	ScansTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_curator_scans_total",
			Help: "Total number of scan jobs started",
		},
	)

	ScanIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_curator_scan_running",
			Help: "Whether a scan job is currently running (1 = running, 0 = idle)",
		},
	)

	ScanFilesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_curator_scan_files_processed_total",
			Help: "Total number of files handled by scan jobs",
		},
		[]string{"outcome"}, // "processed", "skipped", "failed"
	)

	ScanLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_curator_scan_last_run_timestamp",
			Help: "Timestamp of the last completed scan job",
		},
	)

	ScanLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_curator_scan_last_run_duration_seconds",
			Help: "Duration of the last completed scan job in seconds",
		},
	)

	ScanErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_curator_scan_errors_total",
			Help: "Total number of job-level scan errors",
		},
	)
)

// Extractor metrics
var (
	ExtractorDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_curator_extractor_duration_seconds",
			Help:    "Feature extractor invocation duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"extractor"},
	)

	ExtractorErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_curator_extractor_errors_total",
			Help: "Total number of extractor failures",
		},
		[]string{"extractor"},
	)
)

// Vector index metrics
var (
	VectorIndexSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_curator_vector_index_size",
			Help: "Number of embedding records in the vector index",
		},
	)

	VectorSearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_curator_vector_search_duration_seconds",
			Help:    "Vector index search duration in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)

	SemanticSearchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_curator_semantic_searches_total",
			Help: "Total number of semantic search queries",
		},
	)
)

// Thumbnail metrics
var (
	ThumbnailsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_curator_thumbnails_generated_total",
			Help: "Total number of thumbnails generated",
		},
		[]string{"source"}, // "image", "video"
	)

	ThumbnailCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_curator_thumbnail_cache_hits_total",
			Help: "Total number of thumbnail cache hits",
		},
	)
)
