package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// APIRequestsTotal counts HTTP requests by method, route and status.
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetcast_api_requests_total",
		Help: "Total HTTP API requests.",
	}, []string{"method", "endpoint", "status"})

	// APIRequestDuration observes HTTP request latency.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fleetcast_api_request_duration_seconds",
		Help:    "HTTP API request duration.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	// APIActiveConnections tracks in-flight HTTP requests.
	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fleetcast_api_active_connections",
		Help: "In-flight HTTP API requests.",
	})

	// SchedulerTicksTotal counts executed job firings per job.
	SchedulerTicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetcast_scheduler_ticks_total",
		Help: "Job firings that began executing.",
	}, []string{"job"})

	// SchedulerSkipsTotal counts ticks coalesced because the previous run was still going.
	SchedulerSkipsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetcast_scheduler_skips_total",
		Help: "Job ticks dropped because the job was still running.",
	}, []string{"job"})

	// SchedulerErrorsTotal counts job bodies that returned an error or panicked.
	SchedulerErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetcast_scheduler_errors_total",
		Help: "Job executions that failed.",
	}, []string{"job"})

	// JobDuration observes job body execution time per job.
	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fleetcast_job_duration_seconds",
		Help:    "Scheduled job execution duration.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"job"})

	// DatabaseQueryDuration observes GORM operation latency by operation and table.
	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fleetcast_db_query_duration_seconds",
		Help:    "Database operation duration.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// DatabaseErrorsTotal counts failed database operations.
	DatabaseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetcast_db_errors_total",
		Help: "Database operations that returned an error.",
	}, []string{"operation"})

	// DatabaseConnectionsActive reports open connections in the pool.
	DatabaseConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fleetcast_db_connections_active",
		Help: "Open database connections.",
	})
)

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
