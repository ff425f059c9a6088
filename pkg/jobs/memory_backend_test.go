package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/learnhub/learnhub/pkg/observability/logger"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestMemoryBackend(t *testing.T, clock *testClock) *MemoryBackend {
	t.Helper()
	cfg := MemoryBackendConfig{PollInterval: 5 * time.Millisecond}
	if clock != nil {
		cfg.Now = clock.Now
	}
	backend, err := NewMemoryBackend(logger.Nop(), cfg)
	if err != nil {
		t.Fatalf("new memory backend: %v", err)
	}
	t.Cleanup(func() { _ = backend.Close() })
	return backend
}

func testJob(id string) *Job {
	return &Job{
		ID:            id,
		Name:          "send-email",
		Queue:         "email",
		Payload:       []byte(`{"to":"a@x.com"}`),
		MaxAttempts:   3,
		Backoff:       BackoffPolicy{Type: BackoffExponential, Delay: 2 * time.Second},
		KeepCompleted: DefaultKeepCompleted,
		KeepFailed:    DefaultKeepFailed,
	}
}

func reserveNow(t *testing.T, backend *MemoryBackend, queue string) (*Job, *Lease) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	job, lease, err := backend.Reserve(ctx, queue, time.Minute)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	return job, lease
}

func TestMemoryBackend_EnqueueReserveAck(t *testing.T) {
	backend := newTestMemoryBackend(t, nil)
	ctx := context.Background()

	if err := backend.Enqueue(ctx, testJob("job-1")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if state, err := backend.State(ctx, "email", "job-1"); err != nil || state != StateWaiting {
		t.Fatalf("expected waiting, got %s (%v)", state, err)
	}

	job, lease := reserveNow(t, backend, "email")
	if job.ID != "job-1" || lease.JobID != "job-1" {
		t.Fatalf("unexpected reservation: job=%s lease=%s", job.ID, lease.JobID)
	}
	if state, _ := backend.State(ctx, "email", "job-1"); state != StateActive {
		t.Fatalf("expected active, got %s", state)
	}
	if err := backend.Ack(ctx, lease); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if state, _ := backend.State(ctx, "email", "job-1"); state != StateCompleted {
		t.Fatalf("expected completed, got %s", state)
	}
	if err := backend.Ack(ctx, lease); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected settled lease to be gone, got %v", err)
	}
}

func TestMemoryBackend_DuplicateJobID(t *testing.T) {
	backend := newTestMemoryBackend(t, nil)
	if err := backend.Enqueue(context.Background(), testJob("job-1")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := backend.Enqueue(context.Background(), testJob("job-1")); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestMemoryBackend_PayloadIsImmutable(t *testing.T) {
	backend := newTestMemoryBackend(t, nil)
	job := testJob("job-1")
	if err := backend.Enqueue(context.Background(), job); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	job.Payload[0] = 'X'

	reserved, _ := reserveNow(t, backend, "email")
	if string(reserved.Payload) != `{"to":"a@x.com"}` {
		t.Fatalf("stored payload changed: %s", reserved.Payload)
	}
}

func TestMemoryBackend_DelayedJobBecomesReady(t *testing.T) {
	clock := newTestClock()
	backend := newTestMemoryBackend(t, clock)
	ctx := context.Background()

	job := testJob("job-delayed")
	job.RunAt = clock.Now().Add(time.Hour)
	if err := backend.Enqueue(ctx, job); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if state, _ := backend.State(ctx, "email", job.ID); state != StateDelayed {
		t.Fatalf("expected delayed, got %s", state)
	}

	shortCtx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	if _, _, err := backend.Reserve(shortCtx, "email", time.Minute); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected delayed job to stay hidden, got %v", err)
	}

	clock.Advance(time.Hour)
	reserved, _ := reserveNow(t, backend, "email")
	if reserved.ID != job.ID {
		t.Fatalf("expected delayed job after its run time, got %s", reserved.ID)
	}
}

func TestMemoryBackend_NackIncrementsAttempt(t *testing.T) {
	clock := newTestClock()
	backend := newTestMemoryBackend(t, clock)
	ctx := context.Background()

	if err := backend.Enqueue(ctx, testJob("job-1")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	_, lease := reserveNow(t, backend, "email")
	if err := backend.Nack(ctx, lease, clock.Now().Add(2*time.Second), errors.New("smtp down")); err != nil {
		t.Fatalf("nack: %v", err)
	}
	if state, _ := backend.State(ctx, "email", "job-1"); state != StateDelayed {
		t.Fatalf("expected delayed after nack, got %s", state)
	}

	clock.Advance(2 * time.Second)
	job, _ := reserveNow(t, backend, "email")
	if job.Attempt != 1 {
		t.Fatalf("expected attempt 1, got %d", job.Attempt)
	}
	if job.Headers[HeaderJobFailureReason] != "smtp down" {
		t.Fatalf("expected failure reason header, got %q", job.Headers[HeaderJobFailureReason])
	}
}

func TestMemoryBackend_ExpiredLeaseReturnsJob(t *testing.T) {
	clock := newTestClock()
	backend := newTestMemoryBackend(t, clock)
	ctx := context.Background()

	if err := backend.Enqueue(ctx, testJob("job-1")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	_, lease := reserveNow(t, backend, "email")

	clock.Advance(2 * time.Minute)
	job, _ := reserveNow(t, backend, "email")
	if job.ID != "job-1" {
		t.Fatalf("expected stalled job to be redelivered, got %s", job.ID)
	}
	if err := backend.Ack(ctx, lease); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired lease to be rejected, got %v", err)
	}
}

func TestMemoryBackend_RepeatedStallsFailTheJob(t *testing.T) {
	clock := newTestClock()
	backend := newTestMemoryBackend(t, clock)
	ctx := context.Background()

	if err := backend.Enqueue(ctx, testJob("job-1")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	for want := 0; want < 3; want++ {
		job, _ := reserveNow(t, backend, "email")
		if job.Attempt != want {
			t.Fatalf("delivery %d: expected attempt %d, got %d", want+1, want, job.Attempt)
		}
		if want > 0 && job.Headers[HeaderJobFailureReason] != "lease expired" {
			t.Fatalf("expected lease expiry recorded, got %q", job.Headers[HeaderJobFailureReason])
		}
		clock.Advance(2 * time.Minute)
	}

	reserveCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if job, _, err := backend.Reserve(reserveCtx, "email", time.Minute); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected no redelivery after the last attempt, got %v (%v)", job, err)
	}
	if state, _ := backend.State(ctx, "email", "job-1"); state != StateFailed {
		t.Fatalf("expected failed, got %s", state)
	}
	failed, err := backend.ListFailed(ctx, "email", 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(failed) != 1 || failed[0].Job.Attempt != 3 || failed[0].Reason != "lease expired" {
		t.Fatalf("unexpected failed entries: %+v", failed)
	}
	if !failed[0].FailedAt.Equal(clock.Now()) {
		t.Fatalf("expected failure time %v, got %v", clock.Now(), failed[0].FailedAt)
	}
}

func TestMemoryBackend_RetentionTrimsCompletedAndFailed(t *testing.T) {
	backend := newTestMemoryBackend(t, nil)
	ctx := context.Background()

	for idx := 0; idx < 4; idx++ {
		job := testJob(fmt.Sprintf("done-%d", idx))
		job.KeepCompleted = 2
		if err := backend.Enqueue(ctx, job); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
		_, lease := reserveNow(t, backend, "email")
		if err := backend.Ack(ctx, lease); err != nil {
			t.Fatalf("ack: %v", err)
		}
	}
	if _, err := backend.State(ctx, "email", "done-0"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected oldest completed job to be trimmed, got %v", err)
	}
	if state, err := backend.State(ctx, "email", "done-3"); err != nil || state != StateCompleted {
		t.Fatalf("expected newest completed job retained, got %s (%v)", state, err)
	}

	for idx := 0; idx < 3; idx++ {
		job := testJob(fmt.Sprintf("bad-%d", idx))
		job.KeepFailed = 1
		if err := backend.Enqueue(ctx, job); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
		_, lease := reserveNow(t, backend, "email")
		if err := backend.Fail(ctx, lease, errors.New("boom")); err != nil {
			t.Fatalf("fail: %v", err)
		}
	}
	failed, err := backend.ListFailed(ctx, "email", 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(failed) != 1 || failed[0].Job.ID != "bad-2" {
		t.Fatalf("expected only the newest failed job, got %+v", failed)
	}
	if failed[0].Reason != "boom" {
		t.Fatalf("expected failure reason, got %q", failed[0].Reason)
	}
}

func TestMemoryBackend_RetryFailed(t *testing.T) {
	backend := newTestMemoryBackend(t, nil)
	ctx := context.Background()

	if err := backend.Enqueue(ctx, testJob("job-1")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	_, lease := reserveNow(t, backend, "email")
	if err := backend.Fail(ctx, lease, errors.New("boom")); err != nil {
		t.Fatalf("fail: %v", err)
	}

	retried, err := backend.RetryFailed(ctx, "email", []string{"job-1", "missing"})
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if retried != 1 {
		t.Fatalf("expected one retried job, got %d", retried)
	}
	job, _ := reserveNow(t, backend, "email")
	if job.Attempt != 0 || job.Headers[HeaderJobRetried] != "true" {
		t.Fatalf("expected fresh attempt budget, got attempt=%d headers=%v", job.Attempt, job.Headers)
	}
}

func TestMemoryBackend_CloseUnblocksReserve(t *testing.T) {
	backend := newTestMemoryBackend(t, nil)
	errCh := make(chan error, 1)
	go func() {
		_, _, err := backend.Reserve(context.Background(), "email", time.Minute)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	if err := backend.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	select {
	case err := <-errCh:
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("expected ErrClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("reserve did not return after close")
	}
	if err := backend.HealthCheck(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected unhealthy closed backend, got %v", err)
	}
}
