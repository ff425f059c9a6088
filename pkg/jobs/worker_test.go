package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/learnhub/learnhub/pkg/observability/logger"
	"github.com/learnhub/learnhub/pkg/resilience"
)

type settlement struct {
	action string
	jobID  string
	runAt  time.Time
	reason error
}

// fakeBackend hands pushed jobs to Reserve and records how every lease was settled.
type fakeBackend struct {
	ready chan *Job

	mu      sync.Mutex
	settled []settlement
	renewed int
	closed  int
}

func newFakeBackend(buffer int) *fakeBackend {
	return &fakeBackend{ready: make(chan *Job, buffer)}
}

func (b *fakeBackend) push(job *Job) { b.ready <- cloneJob(job) }

func (b *fakeBackend) Enqueue(context.Context, *Job) error { return nil }

func (b *fakeBackend) Reserve(ctx context.Context, _ string, leaseFor time.Duration) (*Job, *Lease, error) {
	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	case job := <-b.ready:
		lease := &Lease{
			JobID:    job.ID,
			Token:    "lease-" + job.ID,
			Queue:    job.Queue,
			ExpireAt: time.Now().UTC().Add(leaseFor),
			Attempt:  job.Attempt,
		}
		return job, lease, nil
	}
}

func (b *fakeBackend) record(action string, lease *Lease, runAt time.Time, reason error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.settled = append(b.settled, settlement{action: action, jobID: lease.JobID, runAt: runAt, reason: reason})
	return nil
}

func (b *fakeBackend) Ack(_ context.Context, lease *Lease) error {
	return b.record("ack", lease, time.Time{}, nil)
}

func (b *fakeBackend) Nack(_ context.Context, lease *Lease, nextRunAt time.Time, reason error) error {
	return b.record("nack", lease, nextRunAt, reason)
}

func (b *fakeBackend) Fail(_ context.Context, lease *Lease, reason error) error {
	return b.record("fail", lease, time.Time{}, reason)
}

func (b *fakeBackend) Renew(context.Context, *Lease, time.Duration) error {
	b.mu.Lock()
	b.renewed++
	b.mu.Unlock()
	return nil
}

func (b *fakeBackend) State(context.Context, string, string) (JobState, error) {
	return "", jobsError(ErrNotFound, "fake backend keeps no state")
}

func (b *fakeBackend) HealthCheck(context.Context) error { return nil }

func (b *fakeBackend) Close() error {
	b.mu.Lock()
	b.closed++
	b.mu.Unlock()
	return nil
}

func (b *fakeBackend) settlements(action string) []settlement {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []settlement
	for _, s := range b.settled {
		if s.action == action {
			out = append(out, s)
		}
	}
	return out
}

// awaitSettlements polls until n leases were settled with action.
func awaitSettlements(t *testing.T, b *fakeBackend, action string, n int) []settlement {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		got := b.settlements(action)
		if len(got) >= n {
			return got
		}
		if time.Now().After(deadline) {
			t.Fatalf("waited for %d %s settlements, saw %d", n, action, len(got))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func newTestWorker(t *testing.T, b Backend, cfg WorkerConfig) *RuntimeWorker {
	t.Helper()
	if len(cfg.Queues) == 0 {
		cfg.Queues = []string{"email"}
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 1
	}
	w, err := NewWorker(b, logger.Nop(), cfg)
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}
	return w
}

// runWorker starts w in the background. The returned stop cancels it and
// checks that Start returned cleanly; it also runs on test cleanup.
func runWorker(t *testing.T, w *RuntimeWorker) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			select {
			case err := <-done:
				if err != nil {
					t.Errorf("worker returned %v", err)
				}
			case <-time.After(2 * time.Second):
				t.Error("worker did not stop")
			}
		})
	}
	t.Cleanup(stop)
	return stop
}

func emailJob(id string) *Job {
	return &Job{
		ID:          id,
		Name:        "send-email",
		Queue:       "email",
		Payload:     []byte(`{"to":"a@x.com"}`),
		MaxAttempts: 3,
		Backoff:     BackoffPolicy{Type: BackoffExponential, Delay: 2 * time.Second},
	}
}

func TestWorker_CompletedJobIsAcked(t *testing.T) {
	backend := newFakeBackend(2)
	w := newTestWorker(t, backend, WorkerConfig{})

	var got atomic.Value
	if err := w.Register("send-email", func(_ context.Context, job *Job) error {
		got.Store(string(job.Payload))
		return nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	stop := runWorker(t, w)

	backend.push(emailJob("otp-1"))
	acks := awaitSettlements(t, backend, "ack", 1)
	stop()

	if acks[0].jobID != "otp-1" {
		t.Fatalf("acked %s, want otp-1", acks[0].jobID)
	}
	if payload, _ := got.Load().(string); payload != `{"to":"a@x.com"}` {
		t.Fatalf("handler saw payload %q", payload)
	}
	if n := len(backend.settlements("nack")) + len(backend.settlements("fail")); n != 0 {
		t.Fatalf("expected only an ack, got %d other settlements", n)
	}
	if backend.closed != 0 {
		t.Fatal("worker closed a backend it does not own")
	}
}

func TestWorker_FailedAttemptRetriesUntilExhausted(t *testing.T) {
	backend := newFakeBackend(4)
	w := newTestWorker(t, backend, WorkerConfig{AttemptTimeout: time.Second, MaxBackoff: time.Minute})
	if err := w.Register("send-email", func(context.Context, *Job) error {
		return errors.New("smtp: 421 service not available")
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	runWorker(t, w)

	before := time.Now().UTC()
	backend.push(emailJob("first-attempt"))
	last := emailJob("last-attempt")
	last.Attempt = 2
	backend.push(last)

	nacks := awaitSettlements(t, backend, "nack", 1)
	fails := awaitSettlements(t, backend, "fail", 1)

	if nacks[0].jobID != "first-attempt" || fails[0].jobID != "last-attempt" {
		t.Fatalf("nacked %s and failed %s", nacks[0].jobID, fails[0].jobID)
	}
	if delay := nacks[0].runAt.Sub(before); delay < 2*time.Second || delay > 3*time.Second {
		t.Fatalf("first retry should be about 2s out, got %s", delay)
	}
}

func TestWorker_PermanentErrorFailsAtOnce(t *testing.T) {
	backend := newFakeBackend(1)
	w := newTestWorker(t, backend, WorkerConfig{})
	if err := w.Register("send-email", func(context.Context, *Job) error {
		return Permanent(errors.New("recipient is required"))
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	runWorker(t, w)

	backend.push(emailJob("no-recipient"))
	fails := awaitSettlements(t, backend, "fail", 1)
	if !errors.Is(fails[0].reason, ErrPermanent) {
		t.Fatalf("fail reason %v does not wrap ErrPermanent", fails[0].reason)
	}
	if n := len(backend.settlements("nack")); n != 0 {
		t.Fatalf("permanent error was retried %d times", n)
	}
}

func TestWorker_UnknownJobNameUsesAnAttempt(t *testing.T) {
	backend := newFakeBackend(1)
	w := newTestWorker(t, backend, WorkerConfig{})
	runWorker(t, w)

	job := emailJob("orphan")
	job.Name = "resume-upload"
	job.MaxAttempts = 1
	backend.push(job)

	fails := awaitSettlements(t, backend, "fail", 1)
	if fails[0].jobID != "orphan" {
		t.Fatalf("failed %s, want orphan", fails[0].jobID)
	}
}

func TestWorker_HungHandlerTimesOut(t *testing.T) {
	backend := newFakeBackend(1)
	w := newTestWorker(t, backend, WorkerConfig{AttemptTimeout: 30 * time.Millisecond})
	if err := w.Register("send-email", func(context.Context, *Job) error {
		time.Sleep(300 * time.Millisecond)
		return nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	runWorker(t, w)

	backend.push(emailJob("hung"))
	nacks := awaitSettlements(t, backend, "nack", 1)
	if !errors.Is(nacks[0].reason, resilience.ErrTimeout) {
		t.Fatalf("expected timeout reason, got %v", nacks[0].reason)
	}
}

func TestWorker_HandlerPanicBecomesRetry(t *testing.T) {
	backend := newFakeBackend(1)
	w := newTestWorker(t, backend, WorkerConfig{})
	if err := w.Register("send-email", func(context.Context, *Job) error {
		panic("template missing")
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	runWorker(t, w)

	backend.push(emailJob("panics"))
	nacks := awaitSettlements(t, backend, "nack", 1)
	if nacks[0].reason == nil {
		t.Fatal("expected the panic to be recorded as the retry reason")
	}
}

func TestWorker_RegisterRules(t *testing.T) {
	w := newTestWorker(t, newFakeBackend(1), WorkerConfig{})
	noop := func(context.Context, *Job) error { return nil }

	if err := w.Register(" send-email ", noop); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := w.Register("send-email", noop); !errors.Is(err, ErrConflict) {
		t.Fatalf("second registration: expected ErrConflict, got %v", err)
	}
	if err := w.Register("", noop); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("blank name: expected ErrInvalidArgument, got %v", err)
	}
	if err := w.Register("resume-upload", nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("nil handler: expected ErrInvalidArgument, got %v", err)
	}
}

func TestWorker_StartTwiceConflicts(t *testing.T) {
	w := newTestWorker(t, newFakeBackend(1), WorkerConfig{})
	if err := w.Stop(context.Background()); err != nil {
		t.Fatalf("stop before start: %v", err)
	}
	runWorker(t, w)

	deadline := time.Now().Add(time.Second)
	for {
		w.stateMu.Lock()
		running := w.halt != nil
		w.stateMu.Unlock()
		if running {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("worker never reported running")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := w.Start(context.Background()); !errors.Is(err, ErrConflict) {
		t.Fatalf("second Start: expected ErrConflict, got %v", err)
	}
}

func TestNewWorker_Validation(t *testing.T) {
	if _, err := NewWorker(nil, logger.Nop(), WorkerConfig{Queues: []string{"email"}}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("nil backend: %v", err)
	}
	if _, err := NewWorker(newFakeBackend(1), nil, WorkerConfig{Queues: []string{"email"}}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("nil logger: %v", err)
	}
	if _, err := NewWorker(newFakeBackend(1), logger.Nop(), WorkerConfig{}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("no queues: %v", err)
	}
}

func TestExponentialBackoff(t *testing.T) {
	for retry, want := range map[int]time.Duration{
		1:  2 * time.Second,
		2:  4 * time.Second,
		3:  8 * time.Second,
		10: 10 * time.Second,
	} {
		if got := exponentialBackoff(retry, 2*time.Second, 10*time.Second); got != want {
			t.Fatalf("retry %d: got %s, want %s", retry, got, want)
		}
	}
	if got := exponentialBackoff(3, 0, time.Minute); got != 0 {
		t.Fatalf("zero base delay should give zero backoff, got %s", got)
	}
}

func TestWorker_RunsJobsInParallel(t *testing.T) {
	const total = 6
	backend := newFakeBackend(total)
	w := newTestWorker(t, backend, WorkerConfig{Concurrency: 3})

	var running, peak int32
	if err := w.Register("send-email", func(context.Context, *Job) error {
		now := atomic.AddInt32(&running, 1)
		defer atomic.AddInt32(&running, -1)
		for {
			seen := atomic.LoadInt32(&peak)
			if now <= seen || atomic.CompareAndSwapInt32(&peak, seen, now) {
				break
			}
		}
		time.Sleep(40 * time.Millisecond)
		return nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	runWorker(t, w)

	for i := 0; i < total; i++ {
		backend.push(emailJob(fmt.Sprintf("bulk-%d", i)))
	}
	awaitSettlements(t, backend, "ack", total)

	if p := atomic.LoadInt32(&peak); p < 2 {
		t.Fatalf("expected at least 2 concurrent handlers, peak was %d", p)
	}
}

func TestWorker_LongHandlerKeepsLease(t *testing.T) {
	backend := newFakeBackend(1)
	w := newTestWorker(t, backend, WorkerConfig{LeaseTTL: 80 * time.Millisecond})
	if err := w.Register("send-email", func(context.Context, *Job) error {
		time.Sleep(250 * time.Millisecond)
		return nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	stop := runWorker(t, w)

	backend.push(emailJob("slow-upload"))
	awaitSettlements(t, backend, "ack", 1)
	stop()

	backend.mu.Lock()
	renewed := backend.renewed
	backend.mu.Unlock()
	if renewed == 0 {
		t.Fatal("expected the lease to be renewed while the handler ran")
	}
}
