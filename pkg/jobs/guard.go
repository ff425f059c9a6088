package jobs

import (
	"context"
	"strings"

	"github.com/learnhub/learnhub/pkg/observability/logger"
)

// Decision is the outcome of re-validating a job's precondition at execution time.
type Decision struct {
	Proceed bool
	Reason  string
}

// Proceed lets the guarded handler run.
func Proceed() Decision { return Decision{Proceed: true} }

// Skip completes the job as a no-op.
func Skip(reason string) Decision { return Decision{Reason: strings.TrimSpace(reason)} }

// Precondition re-reads whatever state the job depends on. A returned error is
// treated as a failed attempt and retried.
type Precondition func(ctx context.Context, job *Job) (Decision, error)

// Guard wraps a handler for delayed jobs whose precondition may change while the
// job waits. The precondition is checked at execution time, never at enqueue time.
func Guard(pre Precondition, next Handler) Handler {
	return func(ctx context.Context, job *Job) error {
		decision, err := pre(ctx, job)
		if err != nil {
			return err
		}
		if !decision.Proceed {
			logger.FromContext(ctx, nil).Info("job skipped, precondition no longer holds",
				"queue", job.Queue,
				"job_id", job.ID,
				"job_name", job.Name,
				"reason", decision.Reason,
			)
			recordJobSkipped(job.Queue, job.Name)
			return nil
		}
		return next(ctx, job)
	}
}
