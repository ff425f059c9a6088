package jobs

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation classifies invalid jobs, payloads and options.
	ErrValidation = errors.New("jobs validation error")
	// ErrConflict classifies state conflicts such as duplicate job ids or handlers.
	ErrConflict = errors.New("jobs conflict")
	// ErrNotFound classifies missing jobs, queues or leases.
	ErrNotFound = errors.New("jobs not found")
	// ErrRetryable classifies transient store failures; callers may retry the operation.
	ErrRetryable = errors.New("jobs retryable error")
	// ErrInvalidArgument classifies invalid caller arguments.
	ErrInvalidArgument = errors.New("jobs invalid argument")
	// ErrNotInitialized classifies use of a nil or unconfigured component.
	ErrNotInitialized = errors.New("jobs not initialized")
	// ErrClosed classifies operations on a closed registry or backend.
	ErrClosed = errors.New("jobs closed")
	// ErrPermanent marks handler failures that retrying cannot fix; the job fails immediately.
	ErrPermanent = errors.New("jobs permanent failure")
)

// Permanent marks err so the worker fails the job without further attempts.
func Permanent(err error) error {
	if err == nil || errors.Is(err, ErrPermanent) {
		return err
	}
	return errors.Join(ErrPermanent, err)
}

func jobsError(kind error, message string) error {
	if message == "" {
		return kind
	}
	return fmt.Errorf("%w: %s", kind, message)
}
