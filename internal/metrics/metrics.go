// Package metrics registers the Prometheus collectors for the API and worker
// processes. Everything lives in the default registry served at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ingest results.
const (
	IngestAccepted = "accepted"
	IngestRejected = "rejected"
	IngestFailed   = "failed"
)

var (
	ingestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docflow_ingest_total",
			Help: "Uploads handled by the ingestion coordinator, by result",
		},
		[]string{"result"},
	)

	tasksFinishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docflow_tasks_finished_total",
			Help: "Tasks that reached a terminal status",
		},
		[]string{"status"},
	)

	taskProcessingSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "docflow_task_processing_seconds",
		Help:    "Time from picking up a job to its terminal status",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	jobsRetriedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docflow_jobs_retried_total",
		Help: "Jobs republished after a transient failure",
	})

	jobsDeadLetteredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docflow_jobs_dead_lettered_total",
			Help: "Jobs sent to the dead-letter queue, by reason",
		},
		[]string{"reason"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docflow_http_requests_total",
			Help: "HTTP requests served by the API",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docflow_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

func IngestResult(result string) {
	ingestTotal.WithLabelValues(result).Inc()
}

func TaskFinished(status string, started time.Time) {
	tasksFinishedTotal.WithLabelValues(status).Inc()
	taskProcessingSeconds.Observe(time.Since(started).Seconds())
}

func JobRetried() {
	jobsRetriedTotal.Inc()
}

func JobDeadLettered(reason string) {
	jobsDeadLetteredTotal.WithLabelValues(reason).Inc()
}
