package processors

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/learnhub/learnhub/pkg/jobs"
	"github.com/learnhub/learnhub/pkg/observability/logger"
	"github.com/learnhub/learnhub/pkg/tasks"
)

// DiscardUploadProcessor removes resumes parked by registrations that were
// never verified. Verification renames the file, so a file still at its parked
// path when the job runs has no owner.
type DiscardUploadProcessor struct {
	log logger.Logger
}

// NewDiscardUploadProcessor creates the processor.
func NewDiscardUploadProcessor(log logger.Logger) (*DiscardUploadProcessor, error) {
	if log == nil {
		return nil, errors.New("logger is required")
	}
	return &DiscardUploadProcessor{log: log}, nil
}

// Handler returns the guarded job handler.
func (p *DiscardUploadProcessor) Handler() jobs.Handler {
	return jobs.Guard(p.stillParked, p.discard)
}

func (p *DiscardUploadProcessor) stillParked(_ context.Context, job *jobs.Job) (jobs.Decision, error) {
	payload, err := tasks.DecodeDiscardUpload(job)
	if err != nil {
		return jobs.Decision{}, jobs.Permanent(err)
	}
	if _, err := os.Stat(payload.FilePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return jobs.Skip("upload already claimed or removed"), nil
		}
		return jobs.Decision{}, fmt.Errorf("stat upload: %w", err)
	}
	return jobs.Proceed(), nil
}

func (p *DiscardUploadProcessor) discard(ctx context.Context, job *jobs.Job) error {
	payload, err := tasks.DecodeDiscardUpload(job)
	if err != nil {
		return jobs.Permanent(err)
	}
	if err := os.Remove(payload.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove abandoned upload: %w", err)
	}
	p.log.WithContext(ctx).Info("abandoned registration upload removed", "job_id", job.ID, "path", payload.FilePath)
	return nil
}
