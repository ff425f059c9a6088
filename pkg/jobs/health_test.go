package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/learnhub/learnhub/pkg/health"
)

func TestNewBackendHealthChecker(t *testing.T) {
	backend := newTestMemoryBackend(t, nil)
	checker := NewBackendHealthChecker("", backend, time.Second)
	if checker.Name() != "jobs-backend" {
		t.Fatalf("unexpected checker name: %s", checker.Name())
	}
	result := checker.Check(context.Background())
	if result.Status != health.StatusHealthy {
		t.Fatalf("expected healthy result, got %s", result.Status)
	}
}

func TestNewBackendHealthChecker_Unhealthy(t *testing.T) {
	backend := newFakeBackend(1)
	checker := NewBackendHealthChecker("queue-store", &unhealthyBackend{fakeBackend: backend}, time.Second)
	if checker.Name() != "queue-store" {
		t.Fatalf("unexpected checker name: %s", checker.Name())
	}
	result := checker.Check(context.Background())
	if result.Status != health.StatusUnhealthy {
		t.Fatalf("expected unhealthy result, got %s", result.Status)
	}
}

type unhealthyBackend struct {
	*fakeBackend
}

func (b *unhealthyBackend) HealthCheck(context.Context) error {
	return errors.New("redis: connection refused")
}
