package jobs

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Job outcomes recorded under learnhub_jobs_processed_total{status}.
const (
	outcomeCompleted = "completed"
	outcomeRetry     = "retry"
	outcomeFailed    = "failed"
	outcomeError     = "error"
)

func jobsCounter(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "learnhub",
		Subsystem: "jobs",
		Name:      name,
		Help:      help,
	}, labels)
}

var (
	jobsEnqueued  = jobsCounter("enqueued_total", "Jobs accepted by a backend.", "backend", "queue", "job_name")
	jobsProcessed = jobsCounter("processed_total", "Job attempts settled by workers, by outcome.", "queue", "job_name", "status")
	jobsRetried   = jobsCounter("retry_total", "Retries scheduled after a failed attempt.", "queue", "job_name")
	jobsFailed    = jobsCounter("failed_total", "Jobs moved to failed after their last attempt.", "queue", "job_name")
	jobsSkipped   = jobsCounter("skipped_total", "Jobs completed as no-ops because their precondition no longer held.", "queue", "job_name")

	jobsAttemptSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "learnhub",
		Subsystem: "jobs",
		Name:      "attempt_duration_seconds",
		Help:      "Handler duration per attempt.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"queue", "job_name"})

	jobsInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "learnhub",
		Subsystem: "jobs",
		Name:      "inflight",
		Help:      "Jobs currently held by a worker.",
	}, []string{"queue"})
)

func label(v string) string {
	if v = strings.TrimSpace(v); v == "" {
		return "unknown"
	}
	return v
}

func recordJobEnqueued(backend string, job *Job) {
	if job != nil {
		jobsEnqueued.WithLabelValues(label(backend), label(job.Queue), label(job.Name)).Inc()
	}
}

func recordJobSkipped(queue, jobName string) {
	jobsSkipped.WithLabelValues(label(queue), label(jobName)).Inc()
}

// recordOutcome counts one settled attempt. Retries and terminal failures also
// bump their dedicated counters.
func recordOutcome(job *Job, outcome string) {
	queue, name := label(job.Queue), label(job.Name)
	jobsProcessed.WithLabelValues(queue, name, outcome).Inc()
	switch outcome {
	case outcomeRetry:
		jobsRetried.WithLabelValues(queue, name).Inc()
	case outcomeFailed:
		jobsFailed.WithLabelValues(queue, name).Inc()
	}
}

func observeAttempt(job *Job, d time.Duration) {
	jobsAttemptSeconds.WithLabelValues(label(job.Queue), label(job.Name)).Observe(d.Seconds())
}

// trackInFlight raises the in-flight gauge for queue and returns its release.
func trackInFlight(queue string) func() {
	g := jobsInFlight.WithLabelValues(label(queue))
	g.Inc()
	return g.Dec
}
