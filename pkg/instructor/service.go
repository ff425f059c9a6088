package instructor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/learnhub/learnhub/pkg/jobs"
	"github.com/learnhub/learnhub/pkg/observability/logger"
	"github.com/learnhub/learnhub/pkg/tasks"
)

// DefaultDeclineGracePeriod is how long a declined instructor is kept before deletion.
const DefaultDeclineGracePeriod = 72 * time.Hour

// Enqueuer schedules background jobs.
type Enqueuer interface {
	AddJob(ctx context.Context, queueName, jobName string, payload any, opts ...jobs.JobOption) (*jobs.JobHandle, error)
}

// ServiceConfig configures the review flow.
type ServiceConfig struct {
	DeclineGracePeriod time.Duration
}

// Service applies admin review decisions.
type Service struct {
	repo     Repository
	enqueuer Enqueuer
	grace    time.Duration
	log      logger.Logger
	now      func() time.Time
}

// NewService creates a review service.
func NewService(repo Repository, enqueuer Enqueuer, cfg ServiceConfig, log logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, errors.New("instructor repository is required")
	}
	if enqueuer == nil {
		return nil, errors.New("job enqueuer is required")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}
	if cfg.DeclineGracePeriod <= 0 {
		cfg.DeclineGracePeriod = DefaultDeclineGracePeriod
	}
	return &Service{
		repo:     repo,
		enqueuer: enqueuer,
		grace:    cfg.DeclineGracePeriod,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Get returns an instructor.
func (s *Service) Get(ctx context.Context, id string) (*Instructor, error) {
	return s.repo.Get(ctx, strings.TrimSpace(id))
}

// Decline rejects the instructor and schedules deletion after the grace period.
// The deletion job re-checks the status when it runs, so Reinstate within the
// grace period cancels it.
func (s *Service) Decline(ctx context.Context, id string) (*jobs.JobHandle, error) {
	id = strings.TrimSpace(id)
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == StatusRejected {
		return nil, fmt.Errorf("%w: instructor %s is already declined", ErrInvalidTransition, id)
	}

	declinedAt := s.now()
	// The job is enqueued before the status flips. If the update then fails the
	// job finds a non-rejected instructor and skips.
	handle, err := s.enqueuer.AddJob(ctx,
		tasks.QueueInstructorCleanup,
		tasks.JobDeleteDeclinedInstructor,
		tasks.DeleteDeclinedPayload{InstructorID: id, DeclinedAt: &declinedAt},
		jobs.WithDelay(s.grace),
		jobs.WithJobID(declineJobID(id, declinedAt)),
	)
	if err != nil {
		return nil, fmt.Errorf("schedule declined instructor deletion: %w", err)
	}
	if err := s.repo.UpdateStatus(ctx, id, []Status{StatusPending, StatusApproved}, StatusRejected, declinedAt); err != nil {
		return nil, err
	}

	s.log.Info("instructor declined",
		"instructor_id", id,
		"job_id", handle.ID,
		"delete_after", declinedAt.Add(s.grace).Format(time.RFC3339),
	)
	return handle, nil
}

// Reinstate moves a declined instructor back to pending review.
func (s *Service) Reinstate(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if err := s.repo.UpdateStatus(ctx, id, []Status{StatusRejected}, StatusPending, s.now()); err != nil {
		return err
	}
	s.log.Info("instructor reinstated", "instructor_id", id)
	return nil
}

// Approve accepts a pending or declined instructor.
func (s *Service) Approve(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if err := s.repo.UpdateStatus(ctx, id, []Status{StatusPending, StatusRejected}, StatusApproved, s.now()); err != nil {
		return err
	}
	s.log.Info("instructor approved", "instructor_id", id)
	return nil
}

func declineJobID(id string, at time.Time) string {
	return "decline-" + id + "-" + strconv.FormatInt(at.UnixMilli(), 10)
}
