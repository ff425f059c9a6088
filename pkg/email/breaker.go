package email

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/learnhub/learnhub/pkg/observability/logger"
	"github.com/learnhub/learnhub/pkg/resilience"
)

var (
	emailSendTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "learnhub_email_send_total",
			Help: "Total number of email send attempts by provider and result",
		},
		[]string{"provider", "result"},
	)

	emailCircuitState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "learnhub_email_circuit_state",
			Help: "Email provider circuit state (0 closed, 1 open, 2 half-open)",
		},
		[]string{"provider"},
	)
)

// BreakerConfig configures GuardedProvider.
type BreakerConfig struct {
	MaxFailures  int
	ResetTimeout time.Duration
}

// GuardedProvider stops calling a failing provider for a while so queued email
// jobs back off instead of piling up on a dead upstream. Rejected sends return
// resilience.ErrCircuitBreakerOpen, which the job worker retries like any
// transport error.
type GuardedProvider struct {
	name    string
	next    Provider
	breaker *resilience.CircuitBreaker
}

// NewGuardedProvider wraps next with a circuit breaker.
func NewGuardedProvider(name string, next Provider, cfg BreakerConfig, log logger.Logger) *GuardedProvider {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	emailCircuitState.WithLabelValues(name).Set(float64(resilience.StateClosed))
	breaker := resilience.NewCircuitBreakerWithSettings(resilience.Settings{
		Name:         name,
		MaxFailures:  cfg.MaxFailures,
		ResetTimeout: cfg.ResetTimeout,
		IsFailure: func(err error) bool {
			return !errors.Is(err, ErrInvalidMessage) && !errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to resilience.State) {
			emailCircuitState.WithLabelValues(name).Set(float64(to))
			log.Warn("email provider circuit changed state", "provider", name, "from", from.String(), "to", to.String())
		},
	})
	return &GuardedProvider{name: name, next: next, breaker: breaker}
}

// Send sends through the wrapped provider unless the circuit is open.
func (p *GuardedProvider) Send(ctx context.Context, message Message) error {
	err := p.breaker.Execute(ctx, func(ctx context.Context) error {
		return p.next.Send(ctx, message)
	})
	switch {
	case err == nil:
		emailSendTotal.WithLabelValues(p.name, "sent").Inc()
	case errors.Is(err, resilience.ErrCircuitBreakerOpen):
		emailSendTotal.WithLabelValues(p.name, "rejected").Inc()
	default:
		emailSendTotal.WithLabelValues(p.name, "error").Inc()
	}
	return err
}

// State returns the breaker state.
func (p *GuardedProvider) State() resilience.State {
	return p.breaker.GetState()
}

// Close closes the wrapped provider.
func (p *GuardedProvider) Close() error {
	return p.next.Close()
}
