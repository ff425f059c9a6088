package processors

import (
	"context"
	"errors"
	"fmt"

	"github.com/learnhub/learnhub/pkg/email"
	"github.com/learnhub/learnhub/pkg/jobs"
	"github.com/learnhub/learnhub/pkg/observability/logger"
	"github.com/learnhub/learnhub/pkg/tasks"
)

// EmailProcessor sends pre-rendered emails. A retried job may deliver the same
// email twice; sends are not deduplicated.
type EmailProcessor struct {
	mailer email.Provider
	log    logger.Logger
}

// NewEmailProcessor creates the processor.
func NewEmailProcessor(mailer email.Provider, log logger.Logger) (*EmailProcessor, error) {
	if mailer == nil {
		return nil, errors.New("email provider is required")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}
	return &EmailProcessor{mailer: mailer, log: log}, nil
}

// Handle processes one send-email job. Transport errors are returned so the job retries.
func (p *EmailProcessor) Handle(ctx context.Context, job *jobs.Job) error {
	payload, err := tasks.DecodeEmail(job)
	if err != nil {
		return jobs.Permanent(err)
	}

	err = p.mailer.Send(ctx, email.Message{
		To:       []string{payload.To},
		Subject:  payload.Subject,
		HTMLBody: payload.HTML,
	})
	if err != nil {
		if errors.Is(err, email.ErrInvalidMessage) {
			return jobs.Permanent(err)
		}
		return fmt.Errorf("send email: %w", err)
	}
	p.log.WithContext(ctx).Info("email sent", "job_id", job.ID, "subject", payload.Subject, "attempt", job.Attempt+1)
	return nil
}
