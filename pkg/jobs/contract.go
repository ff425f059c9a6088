package jobs

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// DefaultContentType is the content type of JSON job payloads.
const DefaultContentType = "application/json"

// Job header keys written by backends while a job moves between states.
const (
	HeaderJobFailureReason = "job_failure_reason"
	HeaderJobFailedAt      = "job_failed_at"
	HeaderJobRetried       = "job_retried"
)

// leaseExpiredReason is recorded when a worker stops renewing its lease.
const leaseExpiredReason = "lease expired"

// attemptLimit is the job's attempt budget, with DefaultAttempts for unset budgets.
func attemptLimit(job *Job) int {
	if job.MaxAttempts <= 0 {
		return DefaultAttempts
	}
	return job.MaxAttempts
}

// JobState is the lifecycle state of a job.
type JobState string

const (
	StateWaiting   JobState = "waiting"
	StateDelayed   JobState = "delayed"
	StateActive    JobState = "active"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
)

// BackoffType selects how retry delays grow between attempts.
type BackoffType string

const (
	BackoffExponential BackoffType = "exponential"
	BackoffFixed       BackoffType = "fixed"
)

// BackoffPolicy describes the delay applied before a failed job is retried.
type BackoffPolicy struct {
	Type  BackoffType   `json:"type"`
	Delay time.Duration `json:"delay"`
}

// Next returns the delay before the given retry (1 for the first retry), capped at max.
func (p BackoffPolicy) Next(retry int, max time.Duration) time.Duration {
	switch p.Type {
	case BackoffFixed:
		if max > 0 && p.Delay > max {
			return max
		}
		return p.Delay
	default:
		return exponentialBackoff(retry, p.Delay, max)
	}
}

// Job describes one unit of deferred work. The payload is immutable once enqueued:
// backends only ever rewrite Attempt, RunAt and Headers.
type Job struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Queue         string            `json:"queue"`
	Payload       []byte            `json:"payload"`
	Headers       map[string]string `json:"headers,omitempty"`
	ContentType   string            `json:"content_type,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	RunAt         time.Time         `json:"run_at"`
	Attempt       int               `json:"attempt"`
	MaxAttempts   int               `json:"max_attempts"`
	Backoff       BackoffPolicy     `json:"backoff"`
	KeepCompleted int               `json:"keep_completed"`
	KeepFailed    int               `json:"keep_failed"`
	CreatedAt     time.Time         `json:"created_at"`
}

// Validate checks the fields every backend relies on.
func (j *Job) Validate() error {
	if j == nil {
		return jobsError(ErrValidation, "job is nil")
	}
	if strings.TrimSpace(j.ID) == "" {
		return jobsError(ErrValidation, "job id is required")
	}
	if strings.TrimSpace(j.Name) == "" {
		return jobsError(ErrValidation, "job name is required")
	}
	if strings.TrimSpace(j.Queue) == "" {
		return jobsError(ErrValidation, "job queue is required")
	}
	if len(j.Payload) == 0 {
		return jobsError(ErrValidation, "job payload is required")
	}
	if j.Attempt < 0 {
		return jobsError(ErrValidation, "job attempt must be >= 0")
	}
	if j.MaxAttempts < 0 {
		return jobsError(ErrValidation, "job max attempts must be >= 0")
	}
	if j.MaxAttempts > 0 && j.Attempt > j.MaxAttempts {
		return jobsError(ErrValidation, "job attempt cannot exceed max attempts")
	}
	if j.Backoff.Delay < 0 {
		return jobsError(ErrValidation, "job backoff delay must be >= 0")
	}
	if j.KeepCompleted < 0 || j.KeepFailed < 0 {
		return jobsError(ErrValidation, "job retention must be >= 0")
	}
	return nil
}

// Decode unmarshals the JSON payload into out.
func (j *Job) Decode(out any) error {
	if j == nil {
		return jobsError(ErrValidation, "job is nil")
	}
	if err := json.Unmarshal(j.Payload, out); err != nil {
		return errors.Join(jobsError(ErrValidation, "decode job payload failed"), err)
	}
	return nil
}

// MarshalPayloadJSON marshals a payload the way AddJob stores it.
func MarshalPayloadJSON(payload any) ([]byte, error) {
	if raw, ok := payload.([]byte); ok {
		if !json.Valid(raw) {
			return nil, jobsError(ErrValidation, "raw job payload is not valid json")
		}
		return cloneBytes(raw), nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Join(jobsError(ErrValidation, "marshal job payload failed"), err)
	}
	return data, nil
}

func cloneJob(job *Job) *Job {
	if job == nil {
		return nil
	}
	copyJob := *job
	copyJob.Payload = cloneBytes(job.Payload)
	copyJob.Headers = cloneHeaders(job.Headers)
	return &copyJob
}

func cloneLease(lease *Lease) *Lease {
	if lease == nil {
		return nil
	}
	copyLease := *lease
	return &copyLease
}

func cloneHeaders(input map[string]string) map[string]string {
	if len(input) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(input))
	for k, v := range input {
		out[k] = v
	}
	return out
}

func cloneBytes(input []byte) []byte {
	if len(input) == 0 {
		return nil
	}
	out := make([]byte, len(input))
	copy(out, input)
	return out
}
