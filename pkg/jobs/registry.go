package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/learnhub/learnhub/pkg/observability/logger"
	"github.com/learnhub/learnhub/pkg/observability/tracing"
)

// RegistryConfig configures the queues created by a QueueRegistry.
type RegistryConfig struct {
	// Defaults are applied to every job; per-call JobOptions override them.
	Defaults JobOptions
	Worker   WorkerConfig
}

func (c *RegistryConfig) normalize() {
	defaults := DefaultJobOptions()
	if c.Defaults.Attempts <= 0 {
		c.Defaults.Attempts = defaults.Attempts
	}
	if c.Defaults.Backoff.Type == "" {
		c.Defaults.Backoff.Type = defaults.Backoff.Type
	}
	if c.Defaults.Backoff.Delay <= 0 {
		c.Defaults.Backoff.Delay = defaults.Backoff.Delay
	}
	if c.Defaults.KeepCompleted <= 0 {
		c.Defaults.KeepCompleted = defaults.KeepCompleted
	}
	if c.Defaults.KeepFailed <= 0 {
		c.Defaults.KeepFailed = defaults.KeepFailed
	}
	c.Defaults.JobID = ""
	c.Defaults.Delay = 0
}

// JobHandle identifies an enqueued job. Enqueueing is fire-and-forget; callers that
// need the outcome poll QueueRegistry.JobState with the handle.
type JobHandle struct {
	ID    string
	Queue string
	Name  string
	RunAt time.Time
}

// Queue is a named queue handle with its default job options.
type Queue struct {
	name     string
	defaults JobOptions
	registry *QueueRegistry

	mu     sync.Mutex
	worker *RuntimeWorker
	done   chan error
}

// Name returns the queue name.
func (q *Queue) Name() string { return q.name }

// Defaults returns the job options applied to every job of this queue.
func (q *Queue) Defaults() JobOptions { return q.defaults }

// Add enqueues a job on this queue.
func (q *Queue) Add(ctx context.Context, jobName string, payload any, opts ...JobOption) (*JobHandle, error) {
	return q.registry.addJob(ctx, q, jobName, payload, opts...)
}

// QueueRegistry lazily creates named queues on a shared backend and runs one worker
// per queue that has handlers. It is constructed once at startup and passed to the
// components that enqueue or process jobs.
type QueueRegistry struct {
	backend Backend
	log     logger.Logger
	config  RegistryConfig

	mu      sync.Mutex
	queues  map[string]*Queue
	runCtx  context.Context
	running bool
	closed  bool
}

// NewQueueRegistry creates a registry over backend.
func NewQueueRegistry(backend Backend, log logger.Logger, cfg RegistryConfig) (*QueueRegistry, error) {
	if backend == nil {
		return nil, jobsError(ErrInvalidArgument, "backend is required")
	}
	if log == nil {
		return nil, jobsError(ErrInvalidArgument, "logger is required")
	}
	cfg.normalize()
	if err := cfg.Defaults.validate(); err != nil {
		return nil, err
	}
	return &QueueRegistry{
		backend: backend,
		log:     log,
		config:  cfg,
		queues:  map[string]*Queue{},
	}, nil
}

// Backend returns the shared backend.
func (r *QueueRegistry) Backend() Backend { return r.backend }

// GetQueue returns the cached queue for name, creating it on first use.
func (r *QueueRegistry) GetQueue(name string) (*Queue, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, jobsError(ErrInvalidArgument, "queue name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, jobsError(ErrClosed, "queue registry is closed")
	}
	return r.queueLocked(name), nil
}

// AddJob enqueues payload (marshalled as JSON) under jobName on the named queue.
// A nil error only means the job is durably stored; its outcome is not reported back.
func (r *QueueRegistry) AddJob(ctx context.Context, queueName, jobName string, payload any, opts ...JobOption) (*JobHandle, error) {
	queue, err := r.GetQueue(queueName)
	if err != nil {
		return nil, err
	}
	return r.addJob(ctx, queue, jobName, payload, opts...)
}

func (r *QueueRegistry) addJob(ctx context.Context, queue *Queue, jobName string, payload any, opts ...JobOption) (*JobHandle, error) {
	jobName = strings.TrimSpace(jobName)
	if jobName == "" {
		return nil, jobsError(ErrInvalidArgument, "job name is required")
	}
	options := queue.defaults
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	if err := options.validate(); err != nil {
		return nil, err
	}
	if options.CorrelationID == "" {
		options.CorrelationID = logger.RequestIDFromContext(ctx)
	}
	data, err := MarshalPayloadJSON(payload)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	job := &Job{
		ID:            options.JobID,
		Name:          jobName,
		Queue:         queue.name,
		Payload:       data,
		ContentType:   DefaultContentType,
		CorrelationID: options.CorrelationID,
		RunAt:         now.Add(options.Delay),
		MaxAttempts:   options.Attempts,
		Backoff:       options.Backoff,
		KeepCompleted: options.KeepCompleted,
		KeepFailed:    options.KeepFailed,
		CreatedAt:     now,
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	ctx, span := tracing.StartMessagingSpan(ctx, tracing.SpanOperationMsgPublish,
		tracing.WithMessagingSystem("jobs"),
		tracing.WithMessagingDestination(job.Queue),
		tracing.WithMessagingMessageID(job.ID),
		tracing.WithMessagingPayloadSize(len(job.Payload)),
	)
	err = r.backend.Enqueue(ctx, job)
	tracing.End(span, err)
	if err != nil {
		r.log.WithContext(ctx).Error("enqueue job failed", "queue", job.Queue, "job_name", job.Name, "job_id", job.ID, "error", err)
		return nil, err
	}
	r.log.WithContext(ctx).Debug("job enqueued", "queue", job.Queue, "job_name", job.Name, "job_id", job.ID, "run_at", job.RunAt, "correlation_id", job.CorrelationID)
	return &JobHandle{ID: job.ID, Queue: job.Queue, Name: job.Name, RunAt: job.RunAt}, nil
}

// ProcessJob binds handler to jobName on the named queue. When the registry is
// already running, the queue's worker starts immediately.
func (r *QueueRegistry) ProcessJob(queueName, jobName string, handler Handler) error {
	queueName = strings.TrimSpace(queueName)
	if queueName == "" {
		return jobsError(ErrInvalidArgument, "queue name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return jobsError(ErrClosed, "queue registry is closed")
	}
	queue := r.queueLocked(queueName)

	queue.mu.Lock()
	if queue.worker == nil {
		workerCfg := r.config.Worker
		workerCfg.Queues = []string{queue.name}
		worker, err := NewWorker(r.backend, r.log.With("queue", queue.name), workerCfg)
		if err != nil {
			queue.mu.Unlock()
			return err
		}
		queue.worker = worker
	}
	worker := queue.worker
	queue.mu.Unlock()

	if err := worker.Register(jobName, handler); err != nil {
		return err
	}
	if r.running {
		r.startQueueLocked(queue)
	}
	return nil
}

// Start launches the workers of every queue with handlers. It returns immediately.
func (r *QueueRegistry) Start(ctx context.Context) error {
	if ctx == nil {
		return jobsError(ErrInvalidArgument, "context is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return jobsError(ErrClosed, "queue registry is closed")
	}
	if r.running {
		return jobsError(ErrConflict, "queue registry already running")
	}
	r.runCtx = ctx
	r.running = true
	for _, queue := range r.queues {
		r.startQueueLocked(queue)
	}
	return nil
}

// JobState reports the state of a previously enqueued job. Jobs trimmed by the
// retention policy report ErrNotFound.
func (r *QueueRegistry) JobState(ctx context.Context, handle *JobHandle) (JobState, error) {
	if handle == nil {
		return "", jobsError(ErrInvalidArgument, "job handle is required")
	}
	return r.backend.State(ctx, handle.Queue, handle.ID)
}

// CloseAll stops every worker, waiting for in-flight jobs within ctx, then closes
// the backend. It is meant for process shutdown and is safe to call twice.
func (r *QueueRegistry) CloseAll(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.running = false
	queues := make([]*Queue, 0, len(r.queues))
	for _, queue := range r.queues {
		queues = append(queues, queue)
	}
	r.mu.Unlock()

	var errs []error
	for _, queue := range queues {
		queue.mu.Lock()
		worker, done := queue.worker, queue.done
		queue.mu.Unlock()
		if worker == nil {
			continue
		}
		if err := worker.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop worker for queue %s: %w", queue.name, err))
			continue
		}
		if done != nil {
			select {
			case err := <-done:
				if err != nil {
					errs = append(errs, fmt.Errorf("worker for queue %s: %w", queue.name, err))
				}
			case <-ctx.Done():
				errs = append(errs, fmt.Errorf("worker for queue %s: %w", queue.name, ctx.Err()))
			}
		}
	}
	if err := r.backend.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close jobs backend: %w", err))
	}
	r.log.Info("queue registry closed", "queues", len(queues))
	return errors.Join(errs...)
}

// queueLocked must be called with r.mu held.
func (r *QueueRegistry) queueLocked(name string) *Queue {
	queue, ok := r.queues[name]
	if !ok {
		queue = &Queue{name: name, defaults: r.config.Defaults, registry: r}
		r.queues[name] = queue
		r.log.Debug("queue created", "queue", name)
	}
	return queue
}

// startQueueLocked must be called with r.mu held.
func (r *QueueRegistry) startQueueLocked(queue *Queue) {
	queue.mu.Lock()
	defer queue.mu.Unlock()
	if queue.worker == nil || queue.done != nil {
		return
	}
	done := make(chan error, 1)
	queue.done = done
	worker, ctx := queue.worker, r.runCtx
	go func() {
		done <- worker.Start(ctx)
	}()
}

// FailedJobs lists the failed jobs retained for queueName, newest first.
func (r *QueueRegistry) FailedJobs(ctx context.Context, queueName string, limit int) ([]*FailedJob, error) {
	store, ok := r.backend.(FailedStore)
	if !ok {
		return nil, jobsError(ErrInvalidArgument, "jobs backend does not retain failed jobs")
	}
	return store.ListFailed(ctx, strings.TrimSpace(queueName), limit)
}

// RetryFailed moves the given failed jobs back to waiting with a fresh attempt budget.
func (r *QueueRegistry) RetryFailed(ctx context.Context, queueName string, ids []string) (int, error) {
	store, ok := r.backend.(FailedStore)
	if !ok {
		return 0, jobsError(ErrInvalidArgument, "jobs backend does not retain failed jobs")
	}
	return store.RetryFailed(ctx, strings.TrimSpace(queueName), ids)
}
