package otp

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRateLimited is returned while the resend cooldown for an email is active.
	ErrRateLimited = errors.New("otp rate limited")
	// ErrNotFound is returned when no pending registration data exists.
	ErrNotFound = errors.New("otp data not found")
	// ErrInvalidArgument classifies invalid caller arguments.
	ErrInvalidArgument = errors.New("otp invalid argument")
)

// RateLimitError reports the remaining cooldown before a new code can be requested.
type RateLimitError struct {
	Remaining time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("please wait %s before requesting a new code", FormatWait(e.Remaining))
}

// Unwrap makes errors.Is(err, ErrRateLimited) hold.
func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// RemainingSeconds is the cooldown rounded up to whole seconds.
func (e *RateLimitError) RemainingSeconds() int {
	return ceilSeconds(e.Remaining)
}

// FormatWait renders d as mm:ss, rounding up to the next second.
func FormatWait(d time.Duration) string {
	secs := ceilSeconds(d)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

func otpError(kind error, message string) error {
	return fmt.Errorf("%w: %s", kind, message)
}
