package jobs

import (
	"context"
	"time"
)

// FailedJob is a job that exhausted its attempts and is retained for inspection.
type FailedJob struct {
	Job      *Job
	Reason   string
	FailedAt time.Time
}

// FailedStore exposes the bounded set of failed jobs kept per queue.
// Failed jobs are never retried automatically; RetryFailed is an operator action.
type FailedStore interface {
	ListFailed(ctx context.Context, queue string, limit int) ([]*FailedJob, error)
	RetryFailed(ctx context.Context, queue string, ids []string) (int, error)
}

func failedJobFrom(job *Job) *FailedJob {
	entry := &FailedJob{Job: cloneJob(job)}
	if job == nil {
		return entry
	}
	entry.Reason = job.Headers[HeaderJobFailureReason]
	if raw := job.Headers[HeaderJobFailedAt]; raw != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			entry.FailedAt = parsed
		}
	}
	return entry
}
