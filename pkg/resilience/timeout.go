package resilience

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout reports that fn did not finish within its budget.
var ErrTimeout = errors.New("operation timed out")

// WithTimeout runs fn under a derived deadline and waits for whichever comes
// first. Expiry of that deadline yields ErrTimeout; a cancelled parent yields
// the parent's error. fn is never called when timeout is not positive.
func WithTimeout(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	if timeout <= 0 {
		return ErrTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := make(chan error, 1)
	go func() { result <- fn(runCtx) }()

	select {
	case err := <-result:
		return err
	case <-runCtx.Done():
	}

	// A result that raced the deadline still wins unless fn only echoed it.
	select {
	case err := <-result:
		if !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
	default:
	}
	if parentErr := ctx.Err(); parentErr != nil {
		return parentErr
	}
	return ErrTimeout
}
