package redis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/learnhub/learnhub/pkg/observability/logger"
	"github.com/learnhub/learnhub/pkg/testutil"
)

func TestNewAdapter_InvalidURL(t *testing.T) {
	_, err := NewAdapter(Config{URL: "invalid://url", OperationTimeout: time.Second}, logger.Nop())
	if err == nil {
		t.Fatal("expected error for invalid URL")
	}
}

func TestNewAdapter_EmptyURL(t *testing.T) {
	_, err := NewAdapter(Config{}, logger.Nop())
	if err == nil || err.Error() != "redis URL is required" {
		t.Fatalf("expected 'redis URL is required', got %v", err)
	}
}

func TestNewAdapter_RequiresLogger(t *testing.T) {
	_, err := NewAdapter(Config{URL: "redis://localhost:6379/0"}, nil)
	if err == nil || !strings.Contains(err.Error(), "logger is required") {
		t.Fatalf("expected logger error, got %v", err)
	}
}

func TestNewAdapterWithClient_RequiresClient(t *testing.T) {
	if _, err := NewAdapterWithClient(nil, Config{}, logger.Nop()); err == nil {
		t.Fatal("expected error for nil client")
	}
}

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	url := testutil.StartRedis(t)
	adapter, err := NewAdapter(Config{URL: url, MaxConns: 5, OperationTimeout: 2 * time.Second}, logger.Nop())
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	t.Cleanup(func() { _ = adapter.Close() })
	return adapter
}

func TestAdapter_Integration(t *testing.T) {
	adapter := newTestAdapter(t)
	ctx := context.Background()

	t.Run("get missing key", func(t *testing.T) {
		if _, err := adapter.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("set with ttl", func(t *testing.T) {
		if err := adapter.SetWithTTL(ctx, "otp:a@x.com", "1234", 2*time.Minute); err != nil {
			t.Fatalf("set: %v", err)
		}
		value, err := adapter.Get(ctx, "otp:a@x.com")
		if err != nil || value != "1234" {
			t.Fatalf("expected 1234, got %q (%v)", value, err)
		}
		ttl, err := adapter.TTL(ctx, "otp:a@x.com")
		if err != nil {
			t.Fatalf("ttl: %v", err)
		}
		if ttl <= 119*time.Second || ttl > 2*time.Minute {
			t.Fatalf("expected ttl close to 2m, got %v", ttl)
		}
	})

	t.Run("ttl of missing key", func(t *testing.T) {
		if _, err := adapter.TTL(ctx, "nope"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("set if absent", func(t *testing.T) {
		ok, err := adapter.SetNX(ctx, "lock:a@x.com", "1", time.Minute)
		if err != nil || !ok {
			t.Fatalf("expected first SetNX to win, got %v (%v)", ok, err)
		}
		ok, err = adapter.SetNX(ctx, "lock:a@x.com", "1", time.Minute)
		if err != nil || ok {
			t.Fatalf("expected second SetNX to lose, got %v (%v)", ok, err)
		}
	})

	t.Run("compare and delete", func(t *testing.T) {
		if err := adapter.SetWithTTL(ctx, "otp:b@x.com", "4321", time.Minute); err != nil {
			t.Fatalf("set: %v", err)
		}
		deleted, err := adapter.CompareAndDelete(ctx, "otp:b@x.com", "0000")
		if err != nil || deleted {
			t.Fatalf("expected mismatch to keep key, got %v (%v)", deleted, err)
		}
		deleted, err = adapter.CompareAndDelete(ctx, "otp:b@x.com", "4321")
		if err != nil || !deleted {
			t.Fatalf("expected match to delete key, got %v (%v)", deleted, err)
		}
		deleted, err = adapter.CompareAndDelete(ctx, "otp:b@x.com", "4321")
		if err != nil || deleted {
			t.Fatalf("expected second delete to be a no-op, got %v (%v)", deleted, err)
		}
	})

	t.Run("health check", func(t *testing.T) {
		if err := adapter.HealthCheck(ctx); err != nil {
			t.Fatalf("health check: %v", err)
		}
	})
}

func TestAdapter_SharedClientStaysOpen(t *testing.T) {
	owner := newTestAdapter(t)
	shared, err := NewAdapterWithClient(owner.Client(), Config{}, logger.Nop())
	if err != nil {
		t.Fatalf("new shared adapter: %v", err)
	}
	if err := shared.Close(); err != nil {
		t.Fatalf("close shared: %v", err)
	}
	if _, err := shared.Get(context.Background(), "k"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after close, got %v", err)
	}
	if err := owner.HealthCheck(context.Background()); err != nil {
		t.Fatalf("expected owner client to stay open, got %v", err)
	}
}
