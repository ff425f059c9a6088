package jobs

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/learnhub/learnhub/pkg/observability/logger"
	"github.com/learnhub/learnhub/pkg/observability/tracing"
	"github.com/learnhub/learnhub/pkg/resilience"
	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultWorkerConcurrency    = 4
	DefaultWorkerReserveTimeout = time.Second
	DefaultWorkerStopTimeout    = 10 * time.Second
	DefaultWorkerMaxBackoff     = 10 * time.Minute
	DefaultWorkerAttemptTimeout = 60 * time.Second

	minLeaseRenewInterval = 100 * time.Millisecond
	reserveErrorPause     = 100 * time.Millisecond
)

// Handler processes one job. A returned error schedules a retry while
// attempts remain; errors wrapping ErrPermanent fail the job at once.
type Handler func(ctx context.Context, job *Job) error

// WorkerConfig sizes a worker. Zero fields take the Default* values.
type WorkerConfig struct {
	Queues         []string
	Concurrency    int
	LeaseTTL       time.Duration
	ReserveTimeout time.Duration
	StopTimeout    time.Duration
	// AttemptTimeout bounds a single handler call.
	AttemptTimeout time.Duration
	MaxBackoff     time.Duration
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultWorkerConcurrency
	}
	c.LeaseTTL = orDefault(c.LeaseTTL, DefaultLeaseTTL)
	c.ReserveTimeout = orDefault(c.ReserveTimeout, DefaultWorkerReserveTimeout)
	c.StopTimeout = orDefault(c.StopTimeout, DefaultWorkerStopTimeout)
	c.AttemptTimeout = orDefault(c.AttemptTimeout, DefaultWorkerAttemptTimeout)
	c.MaxBackoff = orDefault(c.MaxBackoff, DefaultWorkerMaxBackoff)

	queues := c.Queues[:0:0]
	for _, q := range c.Queues {
		if q = strings.TrimSpace(q); q != "" {
			queues = append(queues, q)
		}
	}
	c.Queues = queues
	return c
}

// Worker is the lifecycle every queue consumer exposes.
type Worker interface {
	Register(jobName string, handler Handler) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// RuntimeWorker runs Concurrency consumers per queue and dispatches each
// reserved job to the handler registered for its name.
type RuntimeWorker struct {
	backend Backend
	log     logger.Logger
	cfg     WorkerConfig

	handlersMu sync.RWMutex
	handlers   map[string]Handler

	stateMu sync.Mutex
	halt    context.CancelFunc
	active  sync.WaitGroup
}

// NewWorker validates cfg and returns an idle worker.
func NewWorker(backend Backend, log logger.Logger, cfg WorkerConfig) (*RuntimeWorker, error) {
	switch {
	case backend == nil:
		return nil, jobsError(ErrInvalidArgument, "backend is required")
	case log == nil:
		return nil, jobsError(ErrInvalidArgument, "logger is required")
	}
	cfg = cfg.withDefaults()
	if len(cfg.Queues) == 0 {
		return nil, jobsError(ErrInvalidArgument, "at least one non-empty queue is required")
	}
	return &RuntimeWorker{backend: backend, log: log, cfg: cfg, handlers: make(map[string]Handler)}, nil
}

// Register binds handler to jobName. Each name can be bound once.
func (w *RuntimeWorker) Register(jobName string, handler Handler) error {
	if w == nil {
		return jobsError(ErrNotInitialized, "worker is not initialized")
	}
	name := strings.TrimSpace(jobName)
	if name == "" {
		return jobsError(ErrInvalidArgument, "job name is required")
	}
	if handler == nil {
		return jobsError(ErrInvalidArgument, "handler is required")
	}

	w.handlersMu.Lock()
	defer w.handlersMu.Unlock()
	if _, taken := w.handlers[name]; taken {
		return jobsError(ErrConflict, fmt.Sprintf("handler already registered for job %q", name))
	}
	w.handlers[name] = handler
	return nil
}

func (w *RuntimeWorker) handlerFor(jobName string) Handler {
	w.handlersMu.RLock()
	defer w.handlersMu.RUnlock()
	return w.handlers[strings.TrimSpace(jobName)]
}

// Start runs the consumers and blocks until ctx ends or Stop is called, then
// drains in-flight jobs for at most StopTimeout.
func (w *RuntimeWorker) Start(ctx context.Context) error {
	if w == nil {
		return jobsError(ErrNotInitialized, "worker is not initialized")
	}
	if ctx == nil {
		return jobsError(ErrInvalidArgument, "context is required")
	}

	w.stateMu.Lock()
	if w.halt != nil {
		w.stateMu.Unlock()
		return jobsError(ErrConflict, "worker already running")
	}
	runCtx, halt := context.WithCancel(ctx)
	w.halt = halt
	for _, queue := range w.cfg.Queues {
		w.active.Add(w.cfg.Concurrency)
		for i := 0; i < w.cfg.Concurrency; i++ {
			go w.consume(runCtx, queue)
		}
	}
	w.stateMu.Unlock()

	w.log.Info("jobs worker started", "queues", w.cfg.Queues, "concurrency", w.cfg.Concurrency)
	<-runCtx.Done()

	drainCtx, cancel := context.WithTimeout(context.Background(), w.cfg.StopTimeout)
	defer cancel()
	return w.Stop(drainCtx)
}

// Stop halts the consumers and waits for in-flight jobs until ctx ends. The
// backend is left open for its owner to close.
func (w *RuntimeWorker) Stop(ctx context.Context) error {
	if w == nil {
		return nil
	}
	w.stateMu.Lock()
	halt := w.halt
	w.halt = nil
	w.stateMu.Unlock()
	if halt == nil {
		return nil
	}
	halt()

	drained := make(chan struct{})
	go func() {
		w.active.Wait()
		close(drained)
	}()
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-drained:
		w.log.Info("jobs worker stopped", "queues", w.cfg.Queues)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// consume reserves and runs jobs from queue until ctx ends or the backend closes.
func (w *RuntimeWorker) consume(ctx context.Context, queue string) {
	defer w.active.Done()

	for ctx.Err() == nil {
		job, lease, err := w.reserve(ctx, queue)
		switch {
		case errors.Is(err, ErrClosed):
			return
		case err != nil:
			w.log.Warn("jobs reserve failed", "queue", queue, "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(reserveErrorPause):
			}
			continue
		case job == nil || lease == nil:
			continue
		}

		release := trackInFlight(queue)
		// Settling must outlive shutdown or the lease would dangle until expiry.
		if err := w.run(context.WithoutCancel(ctx), job, lease); err != nil {
			w.log.Warn("jobs processing failed", "queue", queue, "job_id", job.ID, "job_name", job.Name, "error", err)
			recordOutcome(job, outcomeError)
		}
		release()
	}
}

// reserve polls queue for ReserveTimeout. An empty poll returns no job and no error.
func (w *RuntimeWorker) reserve(ctx context.Context, queue string) (*Job, *Lease, error) {
	pollCtx, cancel := context.WithTimeout(ctx, w.cfg.ReserveTimeout)
	defer cancel()
	job, lease, err := w.backend.Reserve(pollCtx, queue, w.cfg.LeaseTTL)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, nil, nil
	}
	return job, lease, err
}

// run executes one attempt under a span and settles the lease.
func (w *RuntimeWorker) run(ctx context.Context, job *Job, lease *Lease) error {
	ctx, span := tracing.StartMessagingSpan(ctx, tracing.SpanOperationMsgProcess,
		tracing.WithMessagingSystem("jobs"),
		tracing.WithMessagingDestination(job.Queue),
		tracing.WithMessagingMessageID(job.ID),
		tracing.WithMessagingPayloadSize(len(job.Payload)),
	)
	defer span.End()
	span.SetAttributes(
		attribute.String("jobs.job_name", strings.TrimSpace(job.Name)),
		attribute.Int("jobs.attempt", job.Attempt+1),
		attribute.Int("jobs.max_attempts", job.MaxAttempts),
	)

	handler := w.handlerFor(job.Name)
	if handler == nil {
		missing := fmt.Errorf("handler not registered for job %q", job.Name)
		tracing.RecordError(span, missing)
		return w.retryOrFail(ctx, job, lease, missing)
	}

	started := time.Now()
	stopRenewal := w.keepLease(ctx, lease)
	attemptErr := w.invoke(ctx, job, handler)
	if renewErr := stopRenewal(); renewErr != nil {
		attemptErr = errors.Join(attemptErr, renewErr)
	}
	observeAttempt(job, time.Since(started))

	if attemptErr != nil {
		tracing.RecordError(span, attemptErr)
		return w.retryOrFail(ctx, job, lease, attemptErr)
	}
	if err := w.backend.Ack(ctx, lease); err != nil {
		tracing.RecordError(span, err)
		return fmt.Errorf("ack failed: %w", err)
	}
	recordOutcome(job, outcomeCompleted)
	tracing.RecordSuccess(span)
	return nil
}

// invoke calls handler under AttemptTimeout with a job-scoped logger in ctx.
// Panics become attempt errors.
func (w *RuntimeWorker) invoke(ctx context.Context, job *Job, handler Handler) error {
	if job.CorrelationID != "" {
		ctx = logger.ContextWithRequestID(ctx, job.CorrelationID)
	}
	jobLog := w.log.WithContext(ctx).With("queue", job.Queue, "job_id", job.ID, "job_name", job.Name, "attempt", job.Attempt+1)
	ctx = logger.ContextWithLogger(ctx, jobLog)
	return resilience.WithTimeout(ctx, w.cfg.AttemptTimeout, func(attemptCtx context.Context) (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("panic while handling job: %v; stack=%s", rec, debug.Stack())
			}
		}()
		return handler(attemptCtx, cloneJob(job))
	})
}

func (w *RuntimeWorker) retryOrFail(ctx context.Context, job *Job, lease *Lease, cause error) error {
	limit := attemptLimit(job)
	made := job.Attempt + 1
	permanent := errors.Is(cause, ErrPermanent)

	if made < limit && !permanent {
		delay := job.Backoff.Next(made, w.cfg.MaxBackoff)
		if err := w.backend.Nack(ctx, lease, time.Now().UTC().Add(delay), cause); err != nil {
			return fmt.Errorf("nack failed: %w", err)
		}
		w.log.Warn("job attempt failed, retry scheduled",
			"queue", job.Queue, "job_id", job.ID, "job_name", job.Name,
			"attempt", made, "max_attempts", limit, "backoff", delay.String(), "error", cause)
		recordOutcome(job, outcomeRetry)
		return nil
	}

	if err := w.backend.Fail(ctx, lease, cause); err != nil {
		return fmt.Errorf("fail transition failed: %w", err)
	}
	w.log.Error("job failed",
		"queue", job.Queue, "job_id", job.ID, "job_name", job.Name,
		"attempts", made, "permanent", permanent, "error", cause)
	recordOutcome(job, outcomeFailed)
	return nil
}

// keepLease renews lease every LeaseTTL/2 while a handler runs. The returned
// function stops renewal and reports the first renewal failure, if any.
func (w *RuntimeWorker) keepLease(ctx context.Context, lease *Lease) func() error {
	if lease == nil {
		return func() error { return nil }
	}
	interval := w.cfg.LeaseTTL / 2
	if interval < minLeaseRenewInterval {
		interval = minLeaseRenewInterval
	}

	ctx, cancel := context.WithCancel(ctx)
	result := make(chan error, 1)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				result <- nil
				return
			case <-ticker.C:
				err := w.backend.Renew(ctx, lease, w.cfg.LeaseTTL)
				if err != nil && ctx.Err() == nil {
					result <- fmt.Errorf("renew lease failed: %w", err)
					return
				}
			}
		}
	}()

	return func() error {
		cancel()
		return <-result
	}
}

// exponentialBackoff returns initial doubled retry-1 times, capped at max.
func exponentialBackoff(retry int, initial, max time.Duration) time.Duration {
	if initial <= 0 {
		return 0
	}
	if max <= 0 {
		max = DefaultWorkerMaxBackoff
	}
	delay := initial
	for i := 1; i < retry && delay < max; i++ {
		delay *= 2
	}
	if delay > max {
		return max
	}
	return delay
}
