package jobs

import (
	"strings"
	"time"
)

// Queue defaults applied to every job unless overridden per call.
const (
	DefaultKeepCompleted = 50
	DefaultKeepFailed    = 10
	DefaultAttempts      = 3
	DefaultBackoffDelay  = 2 * time.Second
)

// JobOptions controls how one job is scheduled, retried and retained.
type JobOptions struct {
	JobID         string
	Delay         time.Duration
	Attempts      int
	Backoff       BackoffPolicy
	KeepCompleted int
	KeepFailed    int
	// CorrelationID defaults to the request id carried by the enqueue context.
	CorrelationID string
}

// DefaultJobOptions returns the queue defaults: keep the last 50 completed and
// 10 failed jobs, 3 attempts, exponential backoff starting at 2s.
func DefaultJobOptions() JobOptions {
	return JobOptions{
		Attempts:      DefaultAttempts,
		Backoff:       BackoffPolicy{Type: BackoffExponential, Delay: DefaultBackoffDelay},
		KeepCompleted: DefaultKeepCompleted,
		KeepFailed:    DefaultKeepFailed,
	}
}

// JobOption mutates JobOptions.
type JobOption func(*JobOptions)

// WithDelay schedules the job to become ready after d.
func WithDelay(d time.Duration) JobOption {
	return func(o *JobOptions) { o.Delay = d }
}

// WithAttempts overrides the maximum number of attempts.
func WithAttempts(attempts int) JobOption {
	return func(o *JobOptions) { o.Attempts = attempts }
}

// WithBackoff overrides the retry backoff.
func WithBackoff(kind BackoffType, delay time.Duration) JobOption {
	return func(o *JobOptions) { o.Backoff = BackoffPolicy{Type: kind, Delay: delay} }
}

// WithJobID sets an explicit job id; enqueueing a second job with the same id fails with ErrConflict.
func WithJobID(id string) JobOption {
	return func(o *JobOptions) { o.JobID = strings.TrimSpace(id) }
}

// WithRetention overrides how many completed and failed jobs the queue keeps.
func WithRetention(keepCompleted, keepFailed int) JobOption {
	return func(o *JobOptions) {
		o.KeepCompleted = keepCompleted
		o.KeepFailed = keepFailed
	}
}

// WithCorrelationID tags the job for log and trace correlation.
func WithCorrelationID(id string) JobOption {
	return func(o *JobOptions) { o.CorrelationID = strings.TrimSpace(id) }
}

func (o JobOptions) validate() error {
	if o.Delay < 0 {
		return jobsError(ErrValidation, "delay must be >= 0")
	}
	if o.Attempts <= 0 {
		return jobsError(ErrValidation, "attempts must be > 0")
	}
	if o.Backoff.Delay < 0 {
		return jobsError(ErrValidation, "backoff delay must be >= 0")
	}
	switch o.Backoff.Type {
	case BackoffExponential, BackoffFixed:
	default:
		return jobsError(ErrValidation, "unsupported backoff type "+string(o.Backoff.Type))
	}
	if o.KeepCompleted < 0 || o.KeepFailed < 0 {
		return jobsError(ErrValidation, "retention must be >= 0")
	}
	return nil
}
