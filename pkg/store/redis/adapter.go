// Package redis provides the shared Redis connection and the key/value
// primitives used for short-lived state such as one-time codes and cooldown locks.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/learnhub/learnhub/pkg/observability/logger"
)

const (
	defaultOperationTimeout = 5 * time.Second
	defaultDialTimeout      = 5 * time.Second
)

var (
	// ErrNotFound is returned when a key does not exist.
	ErrNotFound = errors.New("redis key not found")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("redis adapter is closed")
)

// compareAndDeleteScript deletes KEYS[1] only when it holds ARGV[1].
var compareAndDeleteScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Config holds Redis connection configuration
type Config struct {
	URL              string
	MaxConns         int
	OperationTimeout time.Duration
}

// Adapter wraps a pooled Redis client.
type Adapter struct {
	client    redis.UniversalClient
	ownClient bool
	logger    logger.Logger
	config    Config

	mu     sync.RWMutex
	closed bool
}

// NewAdapter dials Redis from cfg.URL and verifies the connection.
func NewAdapter(cfg Config, log logger.Logger) (*Adapter, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("redis URL is required")
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = defaultOperationTimeout
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		opts.PoolSize = cfg.MaxConns
	}
	opts.DialTimeout = defaultDialTimeout
	opts.ReadTimeout = cfg.OperationTimeout
	opts.WriteTimeout = cfg.OperationTimeout

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), defaultDialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	log.Info("Redis connection established",
		"max_conns", opts.PoolSize,
		"operation_timeout", cfg.OperationTimeout,
	)

	return &Adapter{client: client, ownClient: true, logger: log, config: cfg}, nil
}

// NewAdapterWithClient wraps an existing client. Close leaves the client open.
func NewAdapterWithClient(client redis.UniversalClient, cfg Config, log logger.Logger) (*Adapter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = defaultOperationTimeout
	}
	return &Adapter{client: client, logger: log, config: cfg}, nil
}

// Client returns the underlying client, shared with the jobs backend.
func (a *Adapter) Client() redis.UniversalClient {
	return a.client
}

// Get returns the value stored at key, or ErrNotFound.
func (a *Adapter) Get(ctx context.Context, key string) (string, error) {
	if err := a.ensureOpen(); err != nil {
		return "", err
	}
	ctx, cancel := a.operationContext(ctx)
	defer cancel()

	val, err := a.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return val, nil
}

// SetWithTTL stores value at key, replacing any previous value, expiring after ttl.
func (a *Adapter) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if err := a.ensureOpen(); err != nil {
		return err
	}
	ctx, cancel := a.operationContext(ctx)
	defer cancel()

	if err := a.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s with TTL: %w", key, err)
	}
	return nil
}

// SetNX stores value at key only if the key does not exist. It reports whether the key was set.
func (a *Adapter) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	if err := a.ensureOpen(); err != nil {
		return false, err
	}
	ctx, cancel := a.operationContext(ctx)
	defer cancel()

	ok, err := a.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to set key %s if absent: %w", key, err)
	}
	return ok, nil
}

// TTL returns the remaining time to live of key, or ErrNotFound when the key is
// missing. Keys without expiry report a negative duration.
func (a *Adapter) TTL(ctx context.Context, key string) (time.Duration, error) {
	if err := a.ensureOpen(); err != nil {
		return 0, err
	}
	ctx, cancel := a.operationContext(ctx)
	defer cancel()

	ttl, err := a.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read ttl of key %s: %w", key, err)
	}
	// go-redis passes the -2 (missing) and -1 (no expiry) replies through unscaled.
	if ttl == -2 {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return ttl, nil
}

// CompareAndDelete atomically deletes key when it holds expected. It reports whether a delete happened.
func (a *Adapter) CompareAndDelete(ctx context.Context, key, expected string) (bool, error) {
	if err := a.ensureOpen(); err != nil {
		return false, err
	}
	ctx, cancel := a.operationContext(ctx)
	defer cancel()

	deleted, err := compareAndDeleteScript.Run(ctx, a.client, []string{key}, expected).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to compare and delete key %s: %w", key, err)
	}
	return deleted == 1, nil
}

// Delete removes keys from Redis
func (a *Adapter) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := a.ensureOpen(); err != nil {
		return err
	}
	ctx, cancel := a.operationContext(ctx)
	defer cancel()

	if err := a.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete keys: %w", err)
	}
	return nil
}

// HealthCheck verifies the Redis connection is healthy with a timeout
func (a *Adapter) HealthCheck(ctx context.Context) error {
	if err := a.ensureOpen(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := a.client.Ping(ctx).Err(); err != nil {
		a.logger.Error("Redis health check failed", "error", err)
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// Close closes the connection when the adapter owns it.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	if !a.ownClient {
		return nil
	}
	if err := a.client.Close(); err != nil {
		a.logger.Error("failed to close Redis connection", "error", err)
		return fmt.Errorf("failed to close redis connection: %w", err)
	}
	a.logger.Info("Redis connection closed")
	return nil
}

func (a *Adapter) ensureOpen() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}
	return nil
}

func (a *Adapter) operationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, a.config.OperationTimeout)
}
