package instructor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/learnhub/learnhub/pkg/jobs"
	"github.com/learnhub/learnhub/pkg/observability/logger"
	"github.com/learnhub/learnhub/pkg/tasks"
)

type enqueued struct {
	queue, name string
	payload     any
	options     jobs.JobOptions
}

type recordingEnqueuer struct {
	err  error
	jobs []enqueued
}

func (e *recordingEnqueuer) AddJob(_ context.Context, queueName, jobName string, payload any, opts ...jobs.JobOption) (*jobs.JobHandle, error) {
	if e.err != nil {
		return nil, e.err
	}
	var o jobs.JobOptions
	for _, opt := range opts {
		opt(&o)
	}
	e.jobs = append(e.jobs, enqueued{queue: queueName, name: jobName, payload: payload, options: o})
	return &jobs.JobHandle{ID: o.JobID, Queue: queueName, Name: jobName}, nil
}

func newTestService(t *testing.T, enqueuer Enqueuer) (*Service, *MemoryRepository) {
	t.Helper()
	repo := NewMemoryRepository()
	svc, err := NewService(repo, enqueuer, ServiceConfig{}, logger.Nop())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	if err := repo.Create(context.Background(), &Instructor{ID: "X", Name: "Amy", Email: "Amy@X.com ", Status: StatusPending, CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("create: %v", err)
	}
	return svc, repo
}

func TestService_DeclineSchedulesDelayedDeletion(t *testing.T) {
	enqueuer := &recordingEnqueuer{}
	svc, repo := newTestService(t, enqueuer)

	handle, err := svc.Decline(context.Background(), "X")
	if err != nil {
		t.Fatalf("decline: %v", err)
	}
	if handle == nil || len(enqueuer.jobs) != 1 {
		t.Fatalf("expected one job, got %+v", enqueuer.jobs)
	}
	job := enqueuer.jobs[0]
	if job.queue != tasks.QueueInstructorCleanup || job.name != tasks.JobDeleteDeclinedInstructor {
		t.Fatalf("unexpected job target: %+v", job)
	}
	if job.options.Delay != DefaultDeclineGracePeriod {
		t.Fatalf("expected %s delay, got %s", DefaultDeclineGracePeriod, job.options.Delay)
	}
	payload, ok := job.payload.(tasks.DeleteDeclinedPayload)
	if !ok || payload.InstructorID != "X" || payload.DeclinedAt == nil {
		t.Fatalf("unexpected payload: %#v", job.payload)
	}

	got, _ := repo.Get(context.Background(), "X")
	if got.Status != StatusRejected || got.DeclinedAt == nil || !got.DeclinedAt.Equal(*payload.DeclinedAt) {
		t.Fatalf("unexpected instructor after decline: %+v", got)
	}

	if _, err := svc.Decline(context.Background(), "X"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on second decline, got %v", err)
	}
}

func TestService_DeclineEnqueueFailureLeavesStatus(t *testing.T) {
	svc, repo := newTestService(t, &recordingEnqueuer{err: errors.New("redis down")})

	if _, err := svc.Decline(context.Background(), "X"); err == nil {
		t.Fatal("expected enqueue error")
	}
	got, _ := repo.Get(context.Background(), "X")
	if got.Status != StatusPending {
		t.Fatalf("expected status unchanged, got %s", got.Status)
	}
}

func TestService_ReinstateAndApprove(t *testing.T) {
	svc, repo := newTestService(t, &recordingEnqueuer{})
	ctx := context.Background()

	if err := svc.Reinstate(ctx, "X"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition reinstating a pending instructor, got %v", err)
	}
	if _, err := svc.Decline(ctx, "X"); err != nil {
		t.Fatalf("decline: %v", err)
	}
	if err := svc.Reinstate(ctx, "X"); err != nil {
		t.Fatalf("reinstate: %v", err)
	}
	got, _ := repo.Get(ctx, "X")
	if got.Status != StatusPending || got.DeclinedAt != nil {
		t.Fatalf("unexpected instructor after reinstate: %+v", got)
	}
	if err := svc.Approve(ctx, "X"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := svc.Approve(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryRepository_EmailIsUniqueAndNormalized(t *testing.T) {
	_, repo := newTestService(t, &recordingEnqueuer{})
	ctx := context.Background()

	got, err := repo.GetByEmail(ctx, "amy@x.com")
	if err != nil || got.ID != "X" {
		t.Fatalf("expected lookup by normalized email, got %+v %v", got, err)
	}
	err = repo.Create(ctx, &Instructor{ID: "Z", Name: "Other", Email: "AMY@x.com", Status: StatusPending})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := repo.Create(ctx, &Instructor{ID: "Q", Email: "q@x.com"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestMemoryRepository_DeleteDeclinedIsConditional(t *testing.T) {
	_, repo := newTestService(t, &recordingEnqueuer{})
	ctx := context.Background()
	declinedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := repo.DeleteDeclined(ctx, "X", &declinedAt); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("pending instructor: expected ErrInvalidTransition, got %v", err)
	}
	if err := repo.UpdateStatus(ctx, "X", []Status{StatusPending}, StatusRejected, declinedAt.Add(time.Hour)); err != nil {
		t.Fatalf("decline: %v", err)
	}
	if err := repo.DeleteDeclined(ctx, "X", &declinedAt); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("newer decline: expected ErrInvalidTransition, got %v", err)
	}
	later := declinedAt.Add(time.Hour)
	if err := repo.DeleteDeclined(ctx, "X", &later); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.DeleteDeclined(ctx, "X", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}
}
