package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State represents the circuit breaker state
type State int

const (
	// StateClosed allows all requests through
	StateClosed State = iota
	// StateOpen blocks all requests
	StateOpen
	// StateHalfOpen lets a single probe through to test recovery
	StateHalfOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitBreakerOpen is returned when the circuit breaker is open
var ErrCircuitBreakerOpen = errors.New("circuit breaker is open")

// Settings configures a CircuitBreaker.
type Settings struct {
	// Name identifies the protected dependency in state change callbacks.
	Name string
	// MaxFailures is the number of consecutive failures that opens the circuit.
	MaxFailures int
	// ResetTimeout is how long the circuit stays open before a probe is allowed.
	ResetTimeout time.Duration
	// IsFailure decides whether an error counts against the circuit. Nil counts every error.
	IsFailure func(error) bool
	// OnStateChange is called after every transition, outside the breaker lock.
	OnStateChange func(name string, from, to State)
}

// CircuitBreaker stops calling a failing dependency until it had time to recover.
type CircuitBreaker struct {
	settings Settings
	now      func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// NewCircuitBreaker creates a breaker that opens after maxFailures consecutive
// failures and probes again after timeout.
func NewCircuitBreaker(maxFailures int, timeout time.Duration) *CircuitBreaker {
	return NewCircuitBreakerWithSettings(Settings{MaxFailures: maxFailures, ResetTimeout: timeout})
}

// NewCircuitBreakerWithSettings creates a breaker from settings.
func NewCircuitBreakerWithSettings(settings Settings) *CircuitBreaker {
	if settings.MaxFailures <= 0 {
		settings.MaxFailures = 1
	}
	return &CircuitBreaker{
		settings: settings,
		now:      time.Now,
		state:    StateClosed,
	}
}

// Name returns the configured breaker name.
func (cb *CircuitBreaker) Name() string { return cb.settings.Name }

// Execute runs fn if the circuit allows it. Errors from fn are returned unchanged.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.before(); err != nil {
		return err
	}
	err := fn(ctx)
	cb.after(err)
	return err
}

func (cb *CircuitBreaker) before() error {
	cb.mu.Lock()
	var transition func()
	defer func() {
		cb.mu.Unlock()
		if transition != nil {
			transition()
		}
	}()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.settings.ResetTimeout {
			return ErrCircuitBreakerOpen
		}
		transition = cb.setStateLocked(StateHalfOpen)
		cb.probing = true
		return nil
	default:
		if cb.probing {
			return ErrCircuitBreakerOpen
		}
		cb.probing = true
		return nil
	}
}

func (cb *CircuitBreaker) after(err error) {
	failed := err != nil && (cb.settings.IsFailure == nil || cb.settings.IsFailure(err))

	cb.mu.Lock()
	var transition func()
	defer func() {
		cb.mu.Unlock()
		if transition != nil {
			transition()
		}
	}()

	wasProbe := cb.state == StateHalfOpen
	cb.probing = false
	if !failed {
		cb.failures = 0
		if wasProbe {
			transition = cb.setStateLocked(StateClosed)
		}
		return
	}

	cb.failures++
	if wasProbe || cb.failures >= cb.settings.MaxFailures {
		cb.openedAt = cb.now()
		cb.failures = 0
		transition = cb.setStateLocked(StateOpen)
	}
}

// setStateLocked changes the state and returns the callback to run after unlocking.
func (cb *CircuitBreaker) setStateLocked(to State) func() {
	from := cb.state
	if from == to {
		return nil
	}
	cb.state = to
	if cb.settings.OnStateChange == nil {
		return nil
	}
	name := cb.settings.Name
	return func() { cb.settings.OnStateChange(name, from, to) }
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// GetFailures returns the consecutive failure count
func (cb *CircuitBreaker) GetFailures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Reset closes the circuit and clears the failure count
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	transition := cb.setStateLocked(StateClosed)
	cb.failures = 0
	cb.probing = false
	cb.mu.Unlock()
	if transition != nil {
		transition()
	}
}
