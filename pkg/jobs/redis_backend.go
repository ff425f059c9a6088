package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/learnhub/learnhub/pkg/observability/logger"
	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix           = "learnhub:jobs"
	defaultRedisOperationTimeout = 5 * time.Second
	defaultRedisPollInterval     = 100 * time.Millisecond
	defaultRedisTransferBatch    = 100
)

var (
	redisEnqueueScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
local runAtMs = tonumber(ARGV[2])
local nowMs = tonumber(ARGV[3])
if runAtMs <= nowMs then
  redis.call("HSET", KEYS[1], "data", ARGV[1], "state", "waiting")
  redis.call("RPUSH", KEYS[2], ARGV[4])
else
  redis.call("HSET", KEYS[1], "data", ARGV[1], "state", "delayed")
  redis.call("ZADD", KEYS[3], runAtMs, ARGV[4])
end
return 1
`)

	redisReserveScript = redis.NewScript(`
local delayed = KEYS[1]
local ready = KEYS[2]
local active = KEYS[3]
local jobPrefix = ARGV[1]
local leasePrefix = ARGV[2]
local nowMs = tonumber(ARGV[3])
local batch = tonumber(ARGV[4])
local leaseMs = tonumber(ARGV[5])
local token = ARGV[6]
local failed = KEYS[4]
local defaultAttempts = tonumber(ARGV[7])
local stalledReason = ARGV[8]
local stalledAt = ARGV[9]

local stalled = redis.call("ZRANGEBYSCORE", active, "-inf", nowMs, "LIMIT", 0, batch)
for _, id in ipairs(stalled) do
  redis.call("ZREM", active, id)
  local jobKey = jobPrefix .. id
  local raw = redis.call("HGET", jobKey, "data")
  local ok, job = pcall(cjson.decode, raw or "")
  if ok and type(job) == "table" then
    job["attempt"] = (tonumber(job["attempt"]) or 0) + 1
    if type(job["headers"]) ~= "table" then
      job["headers"] = {}
    end
    job["headers"]["job_failure_reason"] = stalledReason
    job["headers"]["job_failed_at"] = stalledAt
    local limit = tonumber(job["max_attempts"]) or 0
    if limit <= 0 then
      limit = defaultAttempts
    end
    if job["attempt"] >= limit then
      local keep = tonumber(job["keep_failed"]) or 0
      if keep <= 0 then
        redis.call("DEL", jobKey)
      else
        redis.call("HSET", jobKey, "data", cjson.encode(job), "state", "failed")
        redis.call("LPUSH", failed, id)
        local stale = redis.call("LRANGE", failed, keep, -1)
        for _, staleID in ipairs(stale) do
          redis.call("DEL", jobPrefix .. staleID)
        end
        redis.call("LTRIM", failed, 0, keep - 1)
      end
    else
      redis.call("HSET", jobKey, "data", cjson.encode(job), "state", "waiting")
      redis.call("RPUSH", ready, id)
    end
  elseif raw then
    redis.call("HSET", jobKey, "state", "waiting")
    redis.call("RPUSH", ready, id)
  end
end

local due = redis.call("ZRANGEBYSCORE", delayed, "-inf", nowMs, "LIMIT", 0, batch)
for _, id in ipairs(due) do
  redis.call("ZREM", delayed, id)
  redis.call("HSET", jobPrefix .. id, "state", "waiting")
  redis.call("RPUSH", ready, id)
end

while true do
  local id = redis.call("LPOP", ready)
  if not id then
    return nil
  end
  local data = redis.call("HGET", jobPrefix .. id, "data")
  if data then
    redis.call("HSET", jobPrefix .. id, "state", "active")
    redis.call("SET", leasePrefix .. token, id, "PX", leaseMs)
    redis.call("ZADD", active, nowMs + leaseMs, id)
    return {id, data}
  end
end
`)

	redisRenewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
  return 0
end
redis.call("PEXPIRE", KEYS[1], ARGV[2])
redis.call("ZADD", KEYS[2], "XX", ARGV[3], ARGV[1])
return 1
`)

	redisFinishScript = redis.NewScript(`
local lease = KEYS[1]
local active = KEYS[2]
local list = KEYS[3]
local jobKey = KEYS[4]
local id = ARGV[1]
local state = ARGV[2]
local keep = tonumber(ARGV[3])
local data = ARGV[4]
local jobPrefix = ARGV[5]

if redis.call("GET", lease) ~= id then
  return 0
end
redis.call("DEL", lease)
redis.call("ZREM", active, id)

if keep <= 0 then
  redis.call("DEL", jobKey)
  return 1
end
if data ~= "" then
  redis.call("HSET", jobKey, "data", data)
end
redis.call("HSET", jobKey, "state", state)
redis.call("LPUSH", list, id)
local stale = redis.call("LRANGE", list, keep, -1)
for _, staleID in ipairs(stale) do
  redis.call("DEL", jobPrefix .. staleID)
end
redis.call("LTRIM", list, 0, keep - 1)
return 1
`)

	redisRequeueScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
  return 0
end
redis.call("DEL", KEYS[1])
redis.call("ZREM", KEYS[2], ARGV[1])

local runAtMs = tonumber(ARGV[3])
local nowMs = tonumber(ARGV[4])
if runAtMs <= nowMs then
  redis.call("HSET", KEYS[3], "data", ARGV[2], "state", "waiting")
  redis.call("RPUSH", KEYS[4], ARGV[1])
else
  redis.call("HSET", KEYS[3], "data", ARGV[2], "state", "delayed")
  redis.call("ZADD", KEYS[5], runAtMs, ARGV[1])
end
return 1
`)

	redisRetryFailedScript = redis.NewScript(`
if redis.call("LREM", KEYS[1], 1, ARGV[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[2], "data", ARGV[2], "state", "waiting")
redis.call("RPUSH", KEYS[3], ARGV[1])
return 1
`)
)

// RedisBackendConfig configures the Redis-backed jobs backend.
type RedisBackendConfig struct {
	URL              string
	Prefix           string
	OperationTimeout time.Duration
	PollInterval     time.Duration
	TransferBatch    int
}

func (c *RedisBackendConfig) normalize() {
	if strings.TrimSpace(c.Prefix) == "" {
		c.Prefix = defaultRedisPrefix
	}
	if c.OperationTimeout <= 0 {
		c.OperationTimeout = defaultRedisOperationTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultRedisPollInterval
	}
	if c.TransferBatch <= 0 {
		c.TransferBatch = defaultRedisTransferBatch
	}
}

// RedisBackend stores queues in Redis.
//
// Per queue it keeps a ready list, a delayed zset scored by run time, an active
// zset scored by lease expiry, bounded completed/failed lists and one hash per job
// holding its encoded data and state. Every transition runs as a Lua script.
type RedisBackend struct {
	client    redis.UniversalClient
	ownClient bool
	log       logger.Logger
	config    RedisBackendConfig

	mu     sync.RWMutex
	closed bool
}

// NewRedisBackend dials Redis from cfg.URL and creates a backend owning the client.
func NewRedisBackend(cfg RedisBackendConfig, log logger.Logger) (*RedisBackend, error) {
	if log == nil {
		return nil, jobsError(ErrInvalidArgument, "logger is required")
	}
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, jobsError(ErrInvalidArgument, "redis url is required")
	}
	cfg.normalize()

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, errors.Join(jobsError(ErrValidation, "parse redis url failed"), err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.OperationTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Join(jobsError(ErrRetryable, "ping redis failed"), err)
	}

	return &RedisBackend{
		client:    client,
		ownClient: true,
		log:       log,
		config:    cfg,
	}, nil
}

// NewRedisBackendWithClient creates a backend on a shared client. Close leaves the client open.
func NewRedisBackendWithClient(client redis.UniversalClient, cfg RedisBackendConfig, log logger.Logger) (*RedisBackend, error) {
	if client == nil {
		return nil, jobsError(ErrInvalidArgument, "redis client is required")
	}
	if log == nil {
		return nil, jobsError(ErrInvalidArgument, "logger is required")
	}
	cfg.normalize()
	return &RedisBackend{client: client, log: log, config: cfg}, nil
}

// Enqueue stores the job as waiting, or delayed when RunAt is in the future.
func (b *RedisBackend) Enqueue(ctx context.Context, job *Job) error {
	if err := b.ensureOpen(); err != nil {
		return err
	}
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
	now := time.Now().UTC()
	if jobCopy.CreatedAt.IsZero() {
		jobCopy.CreatedAt = now
	}
	if jobCopy.RunAt.IsZero() {
		jobCopy.RunAt = jobCopy.CreatedAt
	}

	encoded, err := json.Marshal(jobCopy)
	if err != nil {
		return errors.Join(jobsError(ErrValidation, "marshal job failed"), err)
	}

	opCtx, cancel := b.operationContext(ctx)
	defer cancel()
	created, err := redisEnqueueScript.Run(
		opCtx,
		b.client,
		[]string{b.jobKey(jobCopy.Queue, jobCopy.ID), b.readyKey(jobCopy.Queue), b.delayedKey(jobCopy.Queue)},
		string(encoded),
		jobCopy.RunAt.UnixMilli(),
		now.UnixMilli(),
		jobCopy.ID,
	).Int()
	if err != nil {
		return errors.Join(jobsError(ErrRetryable, "enqueue job failed"), err)
	}
	if created == 0 {
		return jobsError(ErrConflict, fmt.Sprintf("job %s already exists in queue %s", jobCopy.ID, jobCopy.Queue))
	}
	recordJobEnqueued("redis", jobCopy)
	return nil
}

// Reserve polls until a job is ready or ctx is done. Due delayed jobs are moved
// to the ready list first. A stalled lease counts as an attempt: the job goes
// back to ready, or to the failed list once its attempts are used up.
func (b *RedisBackend) Reserve(ctx context.Context, queue string, leaseFor time.Duration) (*Job, *Lease, error) {
	if err := b.ensureOpen(); err != nil {
		return nil, nil, err
	}
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
	leaseMilliseconds := leaseFor.Milliseconds()
	if leaseMilliseconds <= 0 {
		leaseMilliseconds = 1
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		token := randomToken()
		now := time.Now().UTC()
		opCtx, cancel := b.operationContext(ctx)
		result, reserveErr := redisReserveScript.Run(
			opCtx,
			b.client,
			[]string{b.delayedKey(queue), b.readyKey(queue), b.activeKey(queue), b.failedKey(queue)},
			b.jobKeyPrefix(queue),
			b.leaseKeyPrefix(queue),
			now.UnixMilli(),
			b.config.TransferBatch,
			leaseMilliseconds,
			token,
			DefaultAttempts,
			leaseExpiredReason,
			now.Format(time.RFC3339Nano),
		).StringSlice()
		cancel()
		if reserveErr != nil && !errors.Is(reserveErr, redis.Nil) {
			return nil, nil, errors.Join(jobsError(ErrRetryable, "reserve job failed"), reserveErr)
		}
		if errors.Is(reserveErr, redis.Nil) || len(result) != 2 {
			select {
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			case <-time.After(b.config.PollInterval):
				continue
			}
		}

		job, err := decodeRedisJob(result[1])
		if err != nil {
			b.log.Warn("discarding malformed queued job", "queue", queue, "job_id", result[0], "error", err)
			_ = b.Fail(ctx, &Lease{JobID: result[0], Token: token, Queue: queue}, err)
			continue
		}
		return job, &Lease{
			JobID:    job.ID,
			Token:    token,
			Queue:    queue,
			ExpireAt: now.Add(leaseFor),
			Attempt:  job.Attempt,
		}, nil
	}
}

// Ack marks the leased job completed and trims the completed list.
func (b *RedisBackend) Ack(ctx context.Context, lease *Lease) error {
	job, err := b.readLeasedJob(ctx, lease)
	if err != nil {
		return err
	}
	return b.finish(ctx, lease, StateCompleted, b.completedKey(lease.Queue), job.KeepCompleted, "")
}

// Nack puts the leased job back with an incremented attempt counter.
func (b *RedisBackend) Nack(ctx context.Context, lease *Lease, nextRunAt time.Time, reason error) error {
	job, err := b.readLeasedJob(ctx, lease)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	job.Attempt++
	stampFailure(job, reason, now)
	job.RunAt = nextRunAt.UTC()
	if job.RunAt.IsZero() {
		job.RunAt = now
	}
	encoded, err := json.Marshal(job)
	if err != nil {
		return errors.Join(jobsError(ErrValidation, "marshal retry job failed"), err)
	}

	opCtx, cancel := b.operationContext(ctx)
	defer cancel()
	moved, err := redisRequeueScript.Run(
		opCtx,
		b.client,
		[]string{
			b.leaseKey(lease.Queue, lease.Token),
			b.activeKey(lease.Queue),
			b.jobKey(lease.Queue, job.ID),
			b.readyKey(lease.Queue),
			b.delayedKey(lease.Queue),
		},
		job.ID,
		string(encoded),
		job.RunAt.UnixMilli(),
		now.UnixMilli(),
	).Int()
	if err != nil {
		return errors.Join(jobsError(ErrRetryable, "requeue job failed"), err)
	}
	if moved == 0 {
		return jobsError(ErrNotFound, "lease not found")
	}
	return nil
}

// Renew extends the lease and its stall deadline.
func (b *RedisBackend) Renew(ctx context.Context, lease *Lease, leaseFor time.Duration) error {
	if err := b.ensureOpen(); err != nil {
		return err
	}
	if err := validateLease(lease); err != nil {
		return err
	}
	if leaseFor <= 0 {
		leaseFor = DefaultLeaseTTL
	}
	opCtx, cancel := b.operationContext(ctx)
	defer cancel()
	renewed, err := redisRenewScript.Run(
		opCtx,
		b.client,
		[]string{b.leaseKey(lease.Queue, lease.Token), b.activeKey(lease.Queue)},
		lease.JobID,
		leaseFor.Milliseconds(),
		time.Now().UTC().Add(leaseFor).UnixMilli(),
	).Int()
	if err != nil {
		return errors.Join(jobsError(ErrRetryable, "renew lease failed"), err)
	}
	if renewed == 0 {
		return jobsError(ErrNotFound, "lease not found")
	}
	return nil
}

// Fail marks the leased job failed and trims the failed list.
func (b *RedisBackend) Fail(ctx context.Context, lease *Lease, reason error) error {
	job, err := b.readLeasedJob(ctx, lease)
	if err != nil {
		// malformed data cannot be decoded; keep the raw hash and only flip state
		if !errors.Is(err, ErrValidation) {
			return err
		}
		return b.finish(ctx, lease, StateFailed, b.failedKey(lease.Queue), DefaultKeepFailed, "")
	}
	job.Attempt++
	stampFailure(job, reason, time.Now().UTC())
	encoded, err := json.Marshal(job)
	if err != nil {
		return errors.Join(jobsError(ErrValidation, "marshal failed job failed"), err)
	}
	return b.finish(ctx, lease, StateFailed, b.failedKey(lease.Queue), job.KeepFailed, string(encoded))
}

// State returns the current state of a job still retained in Redis.
func (b *RedisBackend) State(ctx context.Context, queue, jobID string) (JobState, error) {
	if err := b.ensureOpen(); err != nil {
		return "", err
	}
	opCtx, cancel := b.operationContext(ctx)
	defer cancel()
	state, err := b.client.HGet(opCtx, b.jobKey(queue, jobID), "state").Result()
	if errors.Is(err, redis.Nil) {
		return "", jobsError(ErrNotFound, "job "+jobID+" not found")
	}
	if err != nil {
		return "", errors.Join(jobsError(ErrRetryable, "read job state failed"), err)
	}
	return JobState(state), nil
}

// Get returns a retained job.
func (b *RedisBackend) Get(ctx context.Context, queue, jobID string) (*Job, error) {
	if err := b.ensureOpen(); err != nil {
		return nil, err
	}
	opCtx, cancel := b.operationContext(ctx)
	defer cancel()
	raw, err := b.client.HGet(opCtx, b.jobKey(queue, jobID), "data").Result()
	if errors.Is(err, redis.Nil) {
		return nil, jobsError(ErrNotFound, "job "+jobID+" not found")
	}
	if err != nil {
		return nil, errors.Join(jobsError(ErrRetryable, "read job failed"), err)
	}
	return decodeRedisJob(raw)
}

// ListFailed returns the most recent failed jobs first.
func (b *RedisBackend) ListFailed(ctx context.Context, queue string, limit int) ([]*FailedJob, error) {
	if err := b.ensureOpen(); err != nil {
		return nil, err
	}
	queue = strings.TrimSpace(queue)
	if queue == "" {
		return nil, jobsError(ErrInvalidArgument, "queue is required")
	}
	if limit <= 0 {
		limit = 50
	}

	opCtx, cancel := b.operationContext(ctx)
	ids, err := b.client.LRange(opCtx, b.failedKey(queue), 0, int64(limit-1)).Result()
	cancel()
	if err != nil {
		return nil, errors.Join(jobsError(ErrRetryable, "list failed jobs failed"), err)
	}

	entries := make([]*FailedJob, 0, len(ids))
	for _, id := range ids {
		job, getErr := b.Get(ctx, queue, id)
		if getErr != nil {
			if errors.Is(getErr, ErrNotFound) || errors.Is(getErr, ErrValidation) {
				continue
			}
			return nil, getErr
		}
		entries = append(entries, failedJobFrom(job))
	}
	return entries, nil
}

// RetryFailed moves failed jobs back to waiting with a fresh attempt budget.
func (b *RedisBackend) RetryFailed(ctx context.Context, queue string, ids []string) (int, error) {
	if err := b.ensureOpen(); err != nil {
		return 0, err
	}
	queue = strings.TrimSpace(queue)
	if queue == "" {
		return 0, jobsError(ErrInvalidArgument, "queue is required")
	}

	retried := 0
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		job, err := b.Get(ctx, queue, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return retried, err
		}
		job.Attempt = 0
		job.RunAt = time.Now().UTC()
		if job.Headers == nil {
			job.Headers = map[string]string{}
		}
		job.Headers[HeaderJobRetried] = "true"
		encoded, err := json.Marshal(job)
		if err != nil {
			return retried, errors.Join(jobsError(ErrValidation, "marshal retried job failed"), err)
		}

		opCtx, cancel := b.operationContext(ctx)
		moved, err := redisRetryFailedScript.Run(
			opCtx,
			b.client,
			[]string{b.failedKey(queue), b.jobKey(queue, id), b.readyKey(queue)},
			id,
			string(encoded),
		).Int()
		cancel()
		if err != nil {
			return retried, errors.Join(jobsError(ErrRetryable, "retry failed job failed"), err)
		}
		retried += moved
	}
	return retried, nil
}

// HealthCheck verifies Redis connectivity.
func (b *RedisBackend) HealthCheck(ctx context.Context) error {
	if err := b.ensureOpen(); err != nil {
		return err
	}
	opCtx, cancel := b.operationContext(ctx)
	defer cancel()
	return b.client.Ping(opCtx).Err()
}

// Close closes the Redis client when the backend owns it.
func (b *RedisBackend) Close() error {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()
	if !b.ownClient {
		return nil
	}
	return b.client.Close()
}

func (b *RedisBackend) ensureOpen() error {
	if b == nil || b.client == nil {
		return jobsError(ErrNotInitialized, "redis backend is not initialized")
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return jobsError(ErrClosed, "redis backend is closed")
	}
	return nil
}

func (b *RedisBackend) operationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, b.config.OperationTimeout)
}

func (b *RedisBackend) readLeasedJob(ctx context.Context, lease *Lease) (*Job, error) {
	if err := b.ensureOpen(); err != nil {
		return nil, err
	}
	if err := validateLease(lease); err != nil {
		return nil, err
	}
	opCtx, cancel := b.operationContext(ctx)
	raw, err := b.client.HGet(opCtx, b.jobKey(lease.Queue, lease.JobID), "data").Result()
	cancel()
	if errors.Is(err, redis.Nil) {
		return nil, jobsError(ErrNotFound, "leased job not found")
	}
	if err != nil {
		return nil, errors.Join(jobsError(ErrRetryable, "read leased job failed"), err)
	}
	return decodeRedisJob(raw)
}

func (b *RedisBackend) finish(ctx context.Context, lease *Lease, state JobState, listKey string, keep int, data string) error {
	opCtx, cancel := b.operationContext(ctx)
	defer cancel()
	finished, err := redisFinishScript.Run(
		opCtx,
		b.client,
		[]string{
			b.leaseKey(lease.Queue, lease.Token),
			b.activeKey(lease.Queue),
			listKey,
			b.jobKey(lease.Queue, lease.JobID),
		},
		lease.JobID,
		string(state),
		keep,
		data,
		b.jobKeyPrefix(lease.Queue),
	).Int()
	if err != nil {
		return errors.Join(jobsError(ErrRetryable, "settle lease failed"), err)
	}
	if finished == 0 {
		return jobsError(ErrNotFound, "lease not found")
	}
	return nil
}

func decodeRedisJob(raw string) (*Job, error) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, errors.Join(jobsError(ErrValidation, "decode job failed"), err)
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return &job, nil
}

func validateLease(lease *Lease) error {
	if lease == nil || strings.TrimSpace(lease.Token) == "" {
		return jobsError(ErrInvalidArgument, "lease token is required")
	}
	if strings.TrimSpace(lease.Queue) == "" || strings.TrimSpace(lease.JobID) == "" {
		return jobsError(ErrInvalidArgument, "lease queue and job id are required")
	}
	return nil
}

func stampFailure(job *Job, reason error, at time.Time) {
	if job.Headers == nil {
		job.Headers = map[string]string{}
	}
	if reason != nil {
		job.Headers[HeaderJobFailureReason] = reason.Error()
	}
	job.Headers[HeaderJobFailedAt] = at.Format(time.RFC3339Nano)
}

func (b *RedisBackend) queueKey(queue string) string {
	return b.prefix() + ":queue:" + strings.TrimSpace(queue)
}

func (b *RedisBackend) readyKey(queue string) string     { return b.queueKey(queue) + ":ready" }
func (b *RedisBackend) delayedKey(queue string) string   { return b.queueKey(queue) + ":delayed" }
func (b *RedisBackend) activeKey(queue string) string    { return b.queueKey(queue) + ":active" }
func (b *RedisBackend) completedKey(queue string) string { return b.queueKey(queue) + ":completed" }
func (b *RedisBackend) failedKey(queue string) string    { return b.queueKey(queue) + ":failed" }
func (b *RedisBackend) jobKeyPrefix(queue string) string { return b.queueKey(queue) + ":job:" }
func (b *RedisBackend) leaseKeyPrefix(queue string) string {
	return b.queueKey(queue) + ":lease:"
}

func (b *RedisBackend) jobKey(queue, jobID string) string {
	return b.jobKeyPrefix(queue) + strings.TrimSpace(jobID)
}

func (b *RedisBackend) leaseKey(queue, token string) string {
	return b.leaseKeyPrefix(queue) + strings.TrimSpace(token)
}

func (b *RedisBackend) prefix() string {
	return strings.TrimRight(strings.TrimSpace(b.config.Prefix), ":")
}
