// Package processors implements the handlers bound to the platform's job kinds.
package processors

import (
	"context"
	"errors"
	"io"

	"github.com/learnhub/learnhub/pkg/email"
	"github.com/learnhub/learnhub/pkg/instructor"
	"github.com/learnhub/learnhub/pkg/jobs"
	"github.com/learnhub/learnhub/pkg/observability/logger"
	s3store "github.com/learnhub/learnhub/pkg/store/s3"
	"github.com/learnhub/learnhub/pkg/tasks"
)

// Uploader stores files in object storage.
type Uploader interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (*s3store.Object, error)
}

// ObjectRemover deletes stored objects. It is optional; when nil, resume objects
// of deleted instructors are kept.
type ObjectRemover interface {
	KeyFromURL(objectURL string) (string, bool)
	Delete(ctx context.Context, key string) error
}

// Registrar binds handlers to queues.
type Registrar interface {
	ProcessJob(queueName, jobName string, handler jobs.Handler) error
}

// Dependencies are the collaborators of all processors.
type Dependencies struct {
	Instructors  instructor.Repository
	Uploader     Uploader
	Objects      ObjectRemover
	Mailer       email.Provider
	ResumeFolder string
	Logger       logger.Logger
}

// Register binds every processor to its queue and job name.
func Register(registry Registrar, deps Dependencies) error {
	if registry == nil {
		return errors.New("queue registry is required")
	}
	resume, err := NewResumeUploadProcessor(deps.Uploader, deps.Instructors, deps.ResumeFolder, deps.Logger)
	if err != nil {
		return err
	}
	mailer, err := NewEmailProcessor(deps.Mailer, deps.Logger)
	if err != nil {
		return err
	}
	cleanup, err := NewDeleteDeclinedInstructorProcessor(deps.Instructors, deps.Objects, deps.Logger)
	if err != nil {
		return err
	}
	discard, err := NewDiscardUploadProcessor(deps.Logger)
	if err != nil {
		return err
	}

	bindings := []struct {
		queue, job string
		handler    jobs.Handler
	}{
		{tasks.QueueInstructorRegistration, tasks.JobResumeUpload, resume.Handle},
		{tasks.QueueEmail, tasks.JobSendEmail, mailer.Handle},
		{tasks.QueueInstructorCleanup, tasks.JobDeleteDeclinedInstructor, cleanup.Handler()},
		{tasks.QueueInstructorCleanup, tasks.JobDiscardUpload, discard.Handler()},
	}
	for _, b := range bindings {
		if err := registry.ProcessJob(b.queue, b.job, b.handler); err != nil {
			return err
		}
	}
	return nil
}
