package processors

import (
	"context"
	"errors"
	"fmt"

	"github.com/learnhub/learnhub/pkg/instructor"
	"github.com/learnhub/learnhub/pkg/jobs"
	"github.com/learnhub/learnhub/pkg/observability/logger"
	"github.com/learnhub/learnhub/pkg/tasks"
)

// DeleteDeclinedInstructorProcessor removes instructors whose decline grace period
// ran out. The instructor is re-read when the job runs; anything other than a
// still-declined instructor skips the job.
type DeleteDeclinedInstructorProcessor struct {
	instructors instructor.Repository
	objects     ObjectRemover
	log         logger.Logger
}

// NewDeleteDeclinedInstructorProcessor creates the processor. objects may be nil.
func NewDeleteDeclinedInstructorProcessor(instructors instructor.Repository, objects ObjectRemover, log logger.Logger) (*DeleteDeclinedInstructorProcessor, error) {
	if instructors == nil {
		return nil, errors.New("instructor repository is required")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}
	return &DeleteDeclinedInstructorProcessor{instructors: instructors, objects: objects, log: log}, nil
}

// Handler returns the guarded job handler.
func (p *DeleteDeclinedInstructorProcessor) Handler() jobs.Handler {
	return jobs.Guard(p.stillDeclined, p.delete)
}

func (p *DeleteDeclinedInstructorProcessor) stillDeclined(ctx context.Context, job *jobs.Job) (jobs.Decision, error) {
	payload, err := tasks.DecodeDeleteDeclined(job)
	if err != nil {
		return jobs.Decision{}, jobs.Permanent(err)
	}
	current, err := p.instructors.Get(ctx, payload.InstructorID)
	if err != nil {
		if errors.Is(err, instructor.ErrNotFound) {
			return jobs.Skip("instructor already deleted"), nil
		}
		return jobs.Decision{}, fmt.Errorf("load instructor: %w", err)
	}
	if current.Status != instructor.StatusRejected {
		return jobs.Skip("instructor is " + string(current.Status)), nil
	}
	if payload.DeclinedAt != nil && current.DeclinedAt != nil && current.DeclinedAt.After(*payload.DeclinedAt) {
		return jobs.Skip("instructor was declined again later"), nil
	}
	return jobs.Proceed(), nil
}

func (p *DeleteDeclinedInstructorProcessor) delete(ctx context.Context, job *jobs.Job) error {
	payload, err := tasks.DecodeDeleteDeclined(job)
	if err != nil {
		return jobs.Permanent(err)
	}
	log := p.log.WithContext(ctx).With("job_id", job.ID, "instructor_id", payload.InstructorID)

	current, err := p.instructors.Get(ctx, payload.InstructorID)
	if err != nil {
		if errors.Is(err, instructor.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load instructor: %w", err)
	}
	err = p.instructors.DeleteDeclined(ctx, payload.InstructorID, payload.DeclinedAt)
	switch {
	case errors.Is(err, instructor.ErrNotFound):
		return nil
	case errors.Is(err, instructor.ErrInvalidTransition):
		log.Info("declined instructor kept, status changed before delete")
		return nil
	case err != nil:
		return fmt.Errorf("delete instructor: %w", err)
	}
	log.Info("declined instructor deleted")

	p.removeResume(ctx, log, current.ResumeURL)
	return nil
}

func (p *DeleteDeclinedInstructorProcessor) removeResume(ctx context.Context, log logger.Logger, resumeURL string) {
	if p.objects == nil || resumeURL == "" {
		return
	}
	key, ok := p.objects.KeyFromURL(resumeURL)
	if !ok {
		return
	}
	if err := p.objects.Delete(ctx, key); err != nil {
		log.Warn("failed to delete resume object", "key", key, "error", err)
	}
}
