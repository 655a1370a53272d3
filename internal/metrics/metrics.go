// Package metrics defines the Prometheus instrumentation for the ingest
// and derivative-asset pipelines.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_ingest_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_ingest_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_ingest_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)
)

// Ingest metrics
var (
	IngestRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_ingest_runs_total",
			Help: "Total number of ingest runs",
		},
	)

	IngestItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_items_total",
			Help: "Ingest item outcomes by result",
		},
		[]string{"result"}, // created, duplicate, skipped, error
	)

	IngestLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_ingest_last_run_duration_seconds",
			Help: "Duration of the last ingest run in seconds",
		},
	)

	ProbeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_ingest_probe_duration_seconds",
			Help:    "ffprobe invocation duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)
)

// Derivative asset metrics
var (
	AssetRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_ingest_asset_runs_total",
			Help: "Total number of derivative-asset pipeline runs",
		},
	)

	AssetsGeneratedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_assets_generated_total",
			Help: "Derivative assets generated by kind",
		},
		[]string{"kind"}, // thumb, contact_sheet
	)

	AssetErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_ingest_asset_errors_total",
			Help: "Total number of derivative-asset generation errors",
		},
	)

	FrameExtractDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_ingest_frame_extract_duration_seconds",
			Help:    "ffmpeg frame extraction duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)
)

// Worker pool metrics
var (
	PoolTasksInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_ingest_pool_tasks_in_flight",
			Help: "Tasks submitted to a worker pool but not yet finished",
		},
		[]string{"pool"},
	)

	PoolTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_pool_tasks_total",
			Help: "Worker pool task outcomes",
		},
		[]string{"pool", "status"}, // completed, failed
	)
)
