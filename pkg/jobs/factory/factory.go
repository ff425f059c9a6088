// Package factory builds the jobs backend and queue registry from configuration.
package factory

import (
	"fmt"
	"strings"

	"github.com/learnhub/learnhub/pkg/config"
	"github.com/learnhub/learnhub/pkg/jobs"
	"github.com/learnhub/learnhub/pkg/observability/logger"
	"github.com/redis/go-redis/v9"
)

const (
	BackendRedis  = config.JobsBackendRedis
	BackendMemory = config.JobsBackendMemory
)

// Config configures jobs backend selection.
type Config = config.JobsConfig

// NewBackend creates the backend named by cfg.Backend. The redis backend reuses
// client when one is given so the OTP store and the queues share a pool; the
// backend then leaves closing the client to its owner.
func NewBackend(cfg Config, redisCfg config.RedisConfig, client redis.UniversalClient, log logger.Logger) (jobs.Backend, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = BackendRedis
	}

	switch backend {
	case BackendRedis:
		backendCfg := jobs.RedisBackendConfig{
			URL:              strings.TrimSpace(redisCfg.URL),
			Prefix:           strings.TrimSpace(cfg.Prefix),
			OperationTimeout: cfg.OperationTimeout,
		}
		if client != nil {
			return jobs.NewRedisBackendWithClient(client, backendCfg, log)
		}
		return jobs.NewRedisBackend(backendCfg, log)
	case BackendMemory:
		return jobs.NewMemoryBackend(log, jobs.MemoryBackendConfig{})
	default:
		return nil, fmt.Errorf("unsupported jobs.backend %q (supported: %s, %s)", cfg.Backend, BackendRedis, BackendMemory)
	}
}

// RegistryConfig maps the jobs configuration onto queue registry settings.
func RegistryConfig(cfg Config) jobs.RegistryConfig {
	return jobs.RegistryConfig{
		Defaults: jobs.JobOptions{
			Attempts:      cfg.Defaults.Attempts,
			Backoff:       jobs.BackoffPolicy{Type: jobs.BackoffExponential, Delay: cfg.Defaults.BackoffDelay},
			KeepCompleted: cfg.Defaults.KeepCompleted,
			KeepFailed:    cfg.Defaults.KeepFailed,
		},
		Worker: jobs.WorkerConfig{
			Concurrency:    cfg.Worker.Concurrency,
			LeaseTTL:       cfg.Worker.LeaseTTL,
			ReserveTimeout: cfg.Worker.ReserveTimeout,
			StopTimeout:    cfg.Worker.StopTimeout,
			AttemptTimeout: cfg.Worker.AttemptTimeout,
			MaxBackoff:     cfg.Worker.MaxBackoff,
		},
	}
}

// NewRegistry creates the backend and the queue registry on top of it.
func NewRegistry(cfg Config, redisCfg config.RedisConfig, client redis.UniversalClient, log logger.Logger) (*jobs.QueueRegistry, error) {
	backend, err := NewBackend(cfg, redisCfg, client, log)
	if err != nil {
		return nil, err
	}
	registry, err := jobs.NewQueueRegistry(backend, log, RegistryConfig(cfg))
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	return registry, nil
}
