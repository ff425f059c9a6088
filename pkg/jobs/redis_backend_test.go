package jobs

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/learnhub/learnhub/pkg/observability/logger"
	"github.com/learnhub/learnhub/pkg/testutil"
)

func TestRedisBackendConfigNormalize(t *testing.T) {
	cfg := RedisBackendConfig{}
	cfg.normalize()

	if cfg.Prefix != "learnhub:jobs" {
		t.Fatalf("unexpected default prefix: %s", cfg.Prefix)
	}
	if cfg.OperationTimeout <= 0 {
		t.Fatal("expected positive operation timeout")
	}
	if cfg.PollInterval <= 0 {
		t.Fatal("expected positive poll interval")
	}
	if cfg.TransferBatch <= 0 {
		t.Fatal("expected positive transfer batch")
	}
}

func TestNewRedisBackend_ValidationErrors(t *testing.T) {
	if _, err := NewRedisBackend(RedisBackendConfig{
		URL: "redis://localhost:6379",
	}, nil); err == nil {
		t.Fatal("expected logger validation error")
	}

	_, err := NewRedisBackend(RedisBackendConfig{}, logger.Nop())
	if err == nil || !strings.Contains(err.Error(), "redis url is required") {
		t.Fatalf("expected missing redis url error, got %v", err)
	}

	_, err = NewRedisBackend(RedisBackendConfig{
		URL: "://bad-url",
	}, logger.Nop())
	if err == nil {
		t.Fatal("expected invalid redis url error")
	}

	if _, err := NewRedisBackendWithClient(nil, RedisBackendConfig{}, logger.Nop()); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for nil client, got %v", err)
	}
}

func TestRedisBackendKeyBuilders(t *testing.T) {
	backend := &RedisBackend{
		config: RedisBackendConfig{
			Prefix:           "learnhub:jobs:",
			OperationTimeout: time.Second,
		},
	}

	cases := map[string]string{
		backend.readyKey("email"):            "learnhub:jobs:queue:email:ready",
		backend.delayedKey("email"):          "learnhub:jobs:queue:email:delayed",
		backend.activeKey("email"):           "learnhub:jobs:queue:email:active",
		backend.completedKey("email"):        "learnhub:jobs:queue:email:completed",
		backend.failedKey("email"):           "learnhub:jobs:queue:email:failed",
		backend.jobKey("email", "id-1"):      "learnhub:jobs:queue:email:job:id-1",
		backend.leaseKey("email", "token-1"): "learnhub:jobs:queue:email:lease:token-1",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("unexpected key: got %s want %s", got, want)
		}
	}
}

func newRedisBackendForTest(t *testing.T) *RedisBackend {
	t.Helper()
	url := testutil.StartRedis(t)
	backend, err := NewRedisBackend(RedisBackendConfig{URL: url, PollInterval: 10 * time.Millisecond}, logger.Nop())
	if err != nil {
		t.Fatalf("new redis backend: %v", err)
	}
	t.Cleanup(func() { _ = backend.Close() })
	return backend
}

func TestRedisBackend_Integration(t *testing.T) {
	backend := newRedisBackendForTest(t)
	ctx := context.Background()

	t.Run("lifecycle", func(t *testing.T) {
		job := testJob("lifecycle-1")
		if err := backend.Enqueue(ctx, job); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
		if err := backend.Enqueue(ctx, job); !errors.Is(err, ErrConflict) {
			t.Fatalf("expected ErrConflict for duplicate id, got %v", err)
		}

		reserveCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		reserved, lease, err := backend.Reserve(reserveCtx, "email", time.Minute)
		if err != nil {
			t.Fatalf("reserve: %v", err)
		}
		if reserved.ID != job.ID || string(reserved.Payload) != string(job.Payload) {
			t.Fatalf("unexpected reserved job: %+v", reserved)
		}
		if state, _ := backend.State(ctx, "email", job.ID); state != StateActive {
			t.Fatalf("expected active, got %s", state)
		}

		if err := backend.Nack(ctx, lease, time.Now().Add(-time.Millisecond), errors.New("smtp down")); err != nil {
			t.Fatalf("nack: %v", err)
		}
		reserved, lease, err = backend.Reserve(reserveCtx, "email", time.Minute)
		if err != nil {
			t.Fatalf("reserve after nack: %v", err)
		}
		if reserved.Attempt != 1 {
			t.Fatalf("expected attempt 1 after nack, got %d", reserved.Attempt)
		}

		if err := backend.Ack(ctx, lease); err != nil {
			t.Fatalf("ack: %v", err)
		}
		if state, _ := backend.State(ctx, "email", job.ID); state != StateCompleted {
			t.Fatalf("expected completed, got %s", state)
		}
	})

	t.Run("delayed", func(t *testing.T) {
		job := testJob("delayed-1")
		job.Queue = "delayed"
		job.RunAt = time.Now().Add(300 * time.Millisecond)
		if err := backend.Enqueue(ctx, job); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
		if state, _ := backend.State(ctx, "delayed", job.ID); state != StateDelayed {
			t.Fatalf("expected delayed, got %s", state)
		}

		reserveCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		started := time.Now()
		reserved, _, err := backend.Reserve(reserveCtx, "delayed", time.Minute)
		if err != nil {
			t.Fatalf("reserve: %v", err)
		}
		if reserved.ID != job.ID {
			t.Fatalf("unexpected job: %s", reserved.ID)
		}
		if waited := time.Since(started); waited < 200*time.Millisecond {
			t.Fatalf("delayed job delivered too early after %s", waited)
		}
	})

	t.Run("failed retention", func(t *testing.T) {
		for _, id := range []string{"bad-1", "bad-2"} {
			job := testJob(id)
			job.Queue = "failing"
			job.KeepFailed = 1
			if err := backend.Enqueue(ctx, job); err != nil {
				t.Fatalf("enqueue: %v", err)
			}
			reserveCtx, cancel := context.WithTimeout(ctx, time.Second)
			_, lease, err := backend.Reserve(reserveCtx, "failing", time.Minute)
			cancel()
			if err != nil {
				t.Fatalf("reserve: %v", err)
			}
			if err := backend.Fail(ctx, lease, errors.New("boom")); err != nil {
				t.Fatalf("fail: %v", err)
			}
		}

		failed, err := backend.ListFailed(ctx, "failing", 10)
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(failed) != 1 || failed[0].Job.ID != "bad-2" || failed[0].Reason != "boom" {
			t.Fatalf("unexpected failed jobs: %+v", failed)
		}
		if _, err := backend.State(ctx, "failing", "bad-1"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected trimmed job to be gone, got %v", err)
		}

		retried, err := backend.RetryFailed(ctx, "failing", []string{"bad-2"})
		if err != nil || retried != 1 {
			t.Fatalf("retry failed: retried=%d err=%v", retried, err)
		}
		if state, _ := backend.State(ctx, "failing", "bad-2"); state != StateWaiting {
			t.Fatalf("expected waiting after retry, got %s", state)
		}
	})

	t.Run("stalled lease", func(t *testing.T) {
		job := testJob("stalled-1")
		job.Queue = "stalled"
		if err := backend.Enqueue(ctx, job); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
		reserveCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if _, _, err := backend.Reserve(reserveCtx, "stalled", 50*time.Millisecond); err != nil {
			t.Fatalf("reserve: %v", err)
		}
		time.Sleep(100 * time.Millisecond)
		reserved, _, err := backend.Reserve(reserveCtx, "stalled", time.Minute)
		if err != nil {
			t.Fatalf("reserve stalled job: %v", err)
		}
		if reserved.ID != job.ID {
			t.Fatalf("expected stalled job to be redelivered, got %s", reserved.ID)
		}
		if reserved.Attempt != 1 || reserved.Headers[HeaderJobFailureReason] != "lease expired" {
			t.Fatalf("expected the stall counted as an attempt, got attempt %d headers %v", reserved.Attempt, reserved.Headers)
		}
	})

	t.Run("stalls exhaust attempts", func(t *testing.T) {
		job := testJob("stalled-2")
		job.Queue = "stalling"
		job.MaxAttempts = 2
		if err := backend.Enqueue(ctx, job); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
		for delivery := 0; delivery < 2; delivery++ {
			reserveCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			reserved, _, err := backend.Reserve(reserveCtx, "stalling", 50*time.Millisecond)
			cancel()
			if err != nil {
				t.Fatalf("reserve %d: %v", delivery+1, err)
			}
			if reserved.Attempt != delivery {
				t.Fatalf("delivery %d: expected attempt %d, got %d", delivery+1, delivery, reserved.Attempt)
			}
			time.Sleep(100 * time.Millisecond)
		}

		reserveCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
		defer cancel()
		if _, _, err := backend.Reserve(reserveCtx, "stalling", time.Minute); !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected no redelivery after the last attempt, got %v", err)
		}
		if state, _ := backend.State(ctx, "stalling", job.ID); state != StateFailed {
			t.Fatalf("expected failed, got %s", state)
		}
		failed, err := backend.ListFailed(ctx, "stalling", 10)
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(failed) != 1 || failed[0].Job.Attempt != 2 || failed[0].Reason != "lease expired" {
			t.Fatalf("unexpected failed entries: %+v", failed)
		}
		if string(failed[0].Job.Payload) != string(job.Payload) {
			t.Fatalf("payload changed while failing: %q", failed[0].Job.Payload)
		}
	})
}
