package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"courier/internal/pkg/config"
)

// Job names carried on the "job" label of every worker job metric.
const (
	JobSend    = "send"
	JobCleanup = "cleanup"
)

// Run statuses carried on the "status" label of worker_job_runs_total.
// StatusSkipped marks runs the store circuit refused to start.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusSkipped = "skipped"
)

// WorkerMetrics provides Prometheus metrics for the worker process. It embeds
// the shared configuration metrics and adds per-job execution tracking, with
// the scheduled jobs (send, cleanup) distinguished by the "job" label.
//
// Embedded (from config.Metrics):
//   - worker_config_load_timestamp
//   - worker_config_validation_errors_total
//   - worker_config_fallbacks_total
//   - worker_config_fallback_active
//
// Job metrics:
//   - worker_job_runs_total{job,status}: runs by job and outcome
//   - worker_job_duration_seconds{job}: run duration histogram
//   - worker_job_dispatches_processed_total{job}: dispatches touched per job
//   - worker_job_last_success_timestamp{job}: Unix time of the last clean run
type WorkerMetrics struct {
	*config.Metrics

	// JobRunsTotal counts job runs by job name and status.
	JobRunsTotal *prometheus.CounterVec

	// JobDurationSeconds observes run durations per job. Buckets cover the
	// expected range from an empty-queue send pass to a large cleanup.
	JobDurationSeconds *prometheus.HistogramVec

	// DispatchesProcessedTotal counts dispatches handled per job: claimed
	// dispatches for send passes, deleted rows for cleanup.
	DispatchesProcessedTotal *prometheus.CounterVec

	// JobLastSuccessTimestamp holds the Unix time of the last successful
	// run per job. A stale value is the alerting signal for a wedged
	// schedule.
	JobLastSuccessTimestamp *prometheus.GaugeVec
}

// NewWorkerMetrics creates the worker metric set. Collectors register with
// the default Prometheus registry on creation, so construct it once per
// process.
func NewWorkerMetrics() *WorkerMetrics {
	return &WorkerMetrics{
		Metrics: config.NewMetrics("worker"),

		JobRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_job_runs_total",
			Help: "Total number of worker job runs by job and status",
		}, []string{"job", "status"}),

		JobDurationSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "worker_job_duration_seconds",
			Help:    "Duration of worker job runs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}, []string{"job"}),

		DispatchesProcessedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_job_dispatches_processed_total",
			Help: "Total number of dispatches processed by worker jobs",
		}, []string{"job"}),

		JobLastSuccessTimestamp: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "worker_job_last_success_timestamp",
			Help: "Unix timestamp of the last successful worker job run",
		}, []string{"job"}),
	}
}

// MustRegister is a no-op kept for symmetry with explicit-registry setups;
// collectors are already registered via promauto in NewWorkerMetrics.
func (m *WorkerMetrics) MustRegister() {}

// RecordJobRun counts one run of the named job with the given status
// (StatusSuccess or StatusFailure).
func (m *WorkerMetrics) RecordJobRun(job, status string) {
	m.JobRunsTotal.WithLabelValues(job, status).Inc()
}

// RecordJobDuration observes the duration of one run of the named job.
func (m *WorkerMetrics) RecordJobDuration(job string, seconds float64) {
	m.JobDurationSeconds.WithLabelValues(job).Observe(seconds)
}

// RecordDispatchesProcessed adds the number of dispatches one run handled.
func (m *WorkerMetrics) RecordDispatchesProcessed(job string, count int) {
	m.DispatchesProcessedTotal.WithLabelValues(job).Add(float64(count))
}

// RecordLastSuccess marks the current time as the named job's last clean
// completion.
func (m *WorkerMetrics) RecordLastSuccess(job string) {
	m.JobLastSuccessTimestamp.WithLabelValues(job).SetToCurrentTime()
}
