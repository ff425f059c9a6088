package jobs

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/learnhub/learnhub/pkg/observability/logger"
)

const defaultMemoryPollInterval = 20 * time.Millisecond

// MemoryBackendConfig configures the in-process backend.
type MemoryBackendConfig struct {
	PollInterval time.Duration
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

func (c *MemoryBackendConfig) normalize() {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultMemoryPollInterval
	}
	if c.Now == nil {
		c.Now = func() time.Time { return time.Now().UTC() }
	}
}

type memoryRecord struct {
	job   *Job
	state JobState
}

type memoryLease struct {
	jobID    string
	queue    string
	expireAt time.Time
}

type memoryQueue struct {
	ready     []string
	delayed   map[string]time.Time
	completed []string
	failed    []string
}

// MemoryBackend keeps queues in process memory. It has the same lease, retry and
// retention semantics as RedisBackend but nothing survives a restart.
type MemoryBackend struct {
	log    logger.Logger
	config MemoryBackendConfig

	mu      sync.Mutex
	queues  map[string]*memoryQueue
	records map[string]*memoryRecord
	leases  map[string]*memoryLease
	changed chan struct{}
	closed  bool
}

// NewMemoryBackend creates an in-process backend.
func NewMemoryBackend(log logger.Logger, cfg MemoryBackendConfig) (*MemoryBackend, error) {
	if log == nil {
		return nil, jobsError(ErrInvalidArgument, "logger is required")
	}
	cfg.normalize()
	return &MemoryBackend{
		log:     log,
		config:  cfg,
		queues:  map[string]*memoryQueue{},
		records: map[string]*memoryRecord{},
		leases:  map[string]*memoryLease{},
		changed: make(chan struct{}),
	}, nil
}

// Enqueue stores the job as waiting, or delayed when RunAt is in the future.
func (b *MemoryBackend) Enqueue(ctx context.Context, job *Job) error {
	if ctx == nil {
		return jobsError(ErrInvalidArgument, "context is required")
	}
	if job == nil {
		return jobsError(ErrInvalidArgument, "job is required")
	}
	jobCopy := cloneJob(job)
	if err := jobCopy.Validate(); err != nil {
		return err
	}
	now := b.config.Now()
	if jobCopy.CreatedAt.IsZero() {
		jobCopy.CreatedAt = now
	}
	if jobCopy.RunAt.IsZero() {
		jobCopy.RunAt = jobCopy.CreatedAt
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return jobsError(ErrClosed, "memory backend is closed")
	}
	key := memoryRecordKey(jobCopy.Queue, jobCopy.ID)
	if _, exists := b.records[key]; exists {
		return jobsError(ErrConflict, "job "+jobCopy.ID+" already exists in queue "+jobCopy.Queue)
	}
	record := &memoryRecord{job: jobCopy}
	b.records[key] = record
	b.schedule(record, now)
	recordJobEnqueued("memory", jobCopy)
	return nil
}

// Reserve blocks until a job is ready or ctx is done.
func (b *MemoryBackend) Reserve(ctx context.Context, queue string, leaseFor time.Duration) (*Job, *Lease, error) {
	if ctx == nil {
		return nil, nil, jobsError(ErrInvalidArgument, "context is required")
	}
	queue = strings.TrimSpace(queue)
	if queue == "" {
		return nil, nil, jobsError(ErrInvalidArgument, "queue is required")
	}
	if leaseFor <= 0 {
		leaseFor = DefaultLeaseTTL
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return nil, nil, jobsError(ErrClosed, "memory backend is closed")
		}
		now := b.config.Now()
		b.recoverExpiredLeases(now)
		q := b.queue(queue)
		b.promoteDue(queue, q, now)
		if len(q.ready) > 0 {
			jobID := q.ready[0]
			q.ready = q.ready[1:]
			record := b.records[memoryRecordKey(queue, jobID)]
			if record == nil {
				b.mu.Unlock()
				continue
			}
			record.state = StateActive
			token := randomToken()
			b.leases[token] = &memoryLease{jobID: jobID, queue: queue, expireAt: now.Add(leaseFor)}
			job := cloneJob(record.job)
			b.mu.Unlock()
			return job, &Lease{
				JobID:    jobID,
				Token:    token,
				Queue:    queue,
				ExpireAt: now.Add(leaseFor),
				Attempt:  job.Attempt,
			}, nil
		}
		changed := b.changed
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-changed:
		case <-time.After(b.config.PollInterval):
		}
	}
}

// Ack marks the leased job completed.
func (b *MemoryBackend) Ack(_ context.Context, lease *Lease) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	record, err := b.takeLease(lease)
	if err != nil {
		return err
	}
	record.state = StateCompleted
	q := b.queue(record.job.Queue)
	q.completed = b.retain(record.job.Queue, append([]string{record.job.ID}, q.completed...), record.job.KeepCompleted)
	return nil
}

// Nack puts the leased job back with an incremented attempt counter.
func (b *MemoryBackend) Nack(_ context.Context, lease *Lease, nextRunAt time.Time, reason error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	record, err := b.takeLease(lease)
	if err != nil {
		return err
	}
	now := b.config.Now()
	job := record.job
	job.Attempt++
	if job.Headers == nil {
		job.Headers = map[string]string{}
	}
	if reason != nil {
		job.Headers[HeaderJobFailureReason] = reason.Error()
	}
	job.Headers[HeaderJobFailedAt] = now.Format(time.RFC3339Nano)
	job.RunAt = nextRunAt.UTC()
	if job.RunAt.IsZero() {
		job.RunAt = now
	}
	b.schedule(record, now)
	return nil
}

// Renew extends the lease.
func (b *MemoryBackend) Renew(_ context.Context, lease *Lease, leaseFor time.Duration) error {
	if lease == nil || strings.TrimSpace(lease.Token) == "" {
		return jobsError(ErrInvalidArgument, "lease token is required")
	}
	if leaseFor <= 0 {
		leaseFor = DefaultLeaseTTL
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	state, ok := b.leases[lease.Token]
	if !ok {
		return jobsError(ErrNotFound, "lease not found")
	}
	state.expireAt = b.config.Now().Add(leaseFor)
	return nil
}

// Fail marks the leased job failed and keeps it in the bounded failed set.
func (b *MemoryBackend) Fail(_ context.Context, lease *Lease, reason error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	record, err := b.takeLease(lease)
	if err != nil {
		return err
	}
	job := record.job
	job.Attempt++
	if job.Headers == nil {
		job.Headers = map[string]string{}
	}
	if reason != nil {
		job.Headers[HeaderJobFailureReason] = reason.Error()
	}
	job.Headers[HeaderJobFailedAt] = b.config.Now().Format(time.RFC3339Nano)
	record.state = StateFailed
	q := b.queue(job.Queue)
	q.failed = b.retain(job.Queue, append([]string{job.ID}, q.failed...), job.KeepFailed)
	return nil
}

// State returns the current state of a job still known to the backend.
func (b *MemoryBackend) State(_ context.Context, queue, jobID string) (JobState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	record, ok := b.records[memoryRecordKey(strings.TrimSpace(queue), strings.TrimSpace(jobID))]
	if !ok {
		return "", jobsError(ErrNotFound, "job "+jobID+" not found")
	}
	return record.state, nil
}

// Get returns a copy of a retained job.
func (b *MemoryBackend) Get(_ context.Context, queue, jobID string) (*Job, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	record, ok := b.records[memoryRecordKey(strings.TrimSpace(queue), strings.TrimSpace(jobID))]
	if !ok {
		return nil, jobsError(ErrNotFound, "job "+jobID+" not found")
	}
	return cloneJob(record.job), nil
}

// ListFailed returns the most recent failed jobs first.
func (b *MemoryBackend) ListFailed(_ context.Context, queue string, limit int) ([]*FailedJob, error) {
	if limit <= 0 {
		limit = 50
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	q := b.queue(strings.TrimSpace(queue))
	out := make([]*FailedJob, 0, len(q.failed))
	for _, id := range q.failed {
		if len(out) == limit {
			break
		}
		if record, ok := b.records[memoryRecordKey(queue, id)]; ok {
			out = append(out, failedJobFrom(record.job))
		}
	}
	return out, nil
}

// RetryFailed moves failed jobs back to waiting with a fresh attempt budget.
func (b *MemoryBackend) RetryFailed(_ context.Context, queue string, ids []string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	queue = strings.TrimSpace(queue)
	q := b.queue(queue)
	retried := 0
	now := b.config.Now()
	for _, id := range ids {
		idx := indexOf(q.failed, strings.TrimSpace(id))
		if idx < 0 {
			continue
		}
		q.failed = append(q.failed[:idx], q.failed[idx+1:]...)
		record := b.records[memoryRecordKey(queue, id)]
		if record == nil {
			continue
		}
		record.job.Attempt = 0
		record.job.RunAt = now
		if record.job.Headers == nil {
			record.job.Headers = map[string]string{}
		}
		record.job.Headers[HeaderJobRetried] = "true"
		b.schedule(record, now)
		retried++
	}
	return retried, nil
}

// HealthCheck reports whether the backend is open.
func (b *MemoryBackend) HealthCheck(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return jobsError(ErrClosed, "memory backend is closed")
	}
	return nil
}

// Close releases waiting reservers; subsequent calls fail with ErrClosed.
func (b *MemoryBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	b.notify()
	return nil
}

// schedule must be called with b.mu held.
func (b *MemoryBackend) schedule(record *memoryRecord, now time.Time) {
	q := b.queue(record.job.Queue)
	if record.job.RunAt.After(now) {
		record.state = StateDelayed
		q.delayed[record.job.ID] = record.job.RunAt
	} else {
		record.state = StateWaiting
		q.ready = append(q.ready, record.job.ID)
	}
	b.notify()
}

func (b *MemoryBackend) promoteDue(queue string, q *memoryQueue, now time.Time) {
	if len(q.delayed) == 0 {
		return
	}
	due := make([]string, 0)
	for id, runAt := range q.delayed {
		if !runAt.After(now) {
			due = append(due, id)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return q.delayed[due[i]].Before(q.delayed[due[j]])
	})
	for _, id := range due {
		delete(q.delayed, id)
		q.ready = append(q.ready, id)
		if record := b.records[memoryRecordKey(queue, id)]; record != nil {
			record.state = StateWaiting
		}
	}
}

func (b *MemoryBackend) recoverExpiredLeases(now time.Time) {
	for token, lease := range b.leases {
		if lease.expireAt.After(now) {
			continue
		}
		delete(b.leases, token)
		record := b.records[memoryRecordKey(lease.queue, lease.jobID)]
		if record == nil {
			continue
		}
		job := record.job
		job.Attempt++
		if job.Headers == nil {
			job.Headers = map[string]string{}
		}
		job.Headers[HeaderJobFailureReason] = leaseExpiredReason
		job.Headers[HeaderJobFailedAt] = now.Format(time.RFC3339Nano)
		q := b.queue(lease.queue)
		if job.Attempt >= attemptLimit(job) {
			b.log.Warn("jobs lease expired, attempts exhausted", "queue", lease.queue, "job_id", lease.jobID, "attempts", job.Attempt)
			record.state = StateFailed
			q.failed = b.retain(lease.queue, append([]string{job.ID}, q.failed...), job.KeepFailed)
			continue
		}
		b.log.Warn("jobs lease expired, job returned to waiting", "queue", lease.queue, "job_id", lease.jobID, "attempt", job.Attempt)
		record.state = StateWaiting
		q.ready = append(q.ready, lease.jobID)
	}
}

func (b *MemoryBackend) takeLease(lease *Lease) (*memoryRecord, error) {
	if b.closed {
		return nil, jobsError(ErrClosed, "memory backend is closed")
	}
	if lease == nil || strings.TrimSpace(lease.Token) == "" {
		return nil, jobsError(ErrInvalidArgument, "lease token is required")
	}
	state, ok := b.leases[lease.Token]
	if !ok {
		return nil, jobsError(ErrNotFound, "lease not found")
	}
	delete(b.leases, lease.Token)
	record, ok := b.records[memoryRecordKey(state.queue, state.jobID)]
	if !ok {
		return nil, jobsError(ErrNotFound, "leased job not found")
	}
	return record, nil
}

// retain trims ids (most recent first) to keep entries and forgets the rest.
func (b *MemoryBackend) retain(queue string, ids []string, keep int) []string {
	if keep < 0 {
		keep = 0
	}
	if len(ids) <= keep {
		return ids
	}
	for _, id := range ids[keep:] {
		delete(b.records, memoryRecordKey(queue, id))
	}
	return append([]string(nil), ids[:keep]...)
}

func (b *MemoryBackend) queue(name string) *memoryQueue {
	q, ok := b.queues[name]
	if !ok {
		q = &memoryQueue{delayed: map[string]time.Time{}}
		b.queues[name] = q
	}
	return q
}

func (b *MemoryBackend) notify() {
	close(b.changed)
	b.changed = make(chan struct{})
}

func memoryRecordKey(queue, jobID string) string {
	return queue + "\x00" + jobID
}

func indexOf(values []string, target string) int {
	for idx, value := range values {
		if value == target {
			return idx
		}
	}
	return -1
}
