package processors

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/learnhub/learnhub/pkg/instructor"
	"github.com/learnhub/learnhub/pkg/jobs"
	"github.com/learnhub/learnhub/pkg/observability/logger"
	"github.com/learnhub/learnhub/pkg/tasks"
)

// DefaultResumeFolder is the object key prefix of uploaded resumes.
const DefaultResumeFolder = "resumes"

const defaultContentType = "application/octet-stream"

// ResumeUploadProcessor moves an uploaded resume from local disk to object storage
// and records its URL on the instructor.
//
// The temp file is removed once the job is done with it: after a success, after a
// permanent failure, or after the last attempt fails. Earlier failed attempts
// leave it in place for the retry.
type ResumeUploadProcessor struct {
	uploader    Uploader
	instructors instructor.Repository
	folder      string
	log         logger.Logger
	removeFile  func(string) error
}

// NewResumeUploadProcessor creates the processor.
func NewResumeUploadProcessor(uploader Uploader, instructors instructor.Repository, folder string, log logger.Logger) (*ResumeUploadProcessor, error) {
	if uploader == nil {
		return nil, errors.New("uploader is required")
	}
	if instructors == nil {
		return nil, errors.New("instructor repository is required")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}
	folder = strings.Trim(strings.TrimSpace(folder), "/")
	if folder == "" {
		folder = DefaultResumeFolder
	}
	return &ResumeUploadProcessor{
		uploader:    uploader,
		instructors: instructors,
		folder:      folder,
		log:         log,
		removeFile:  os.Remove,
	}, nil
}

// Handle processes one resume-upload job.
func (p *ResumeUploadProcessor) Handle(ctx context.Context, job *jobs.Job) (err error) {
	log := p.log.WithContext(ctx).With("job_id", job.ID, "attempt", job.Attempt+1)

	payload, err := tasks.DecodeResumeUpload(job)
	if err != nil {
		if filepath.IsAbs(payload.FilePath) {
			p.cleanup(log, payload.FilePath)
		}
		return jobs.Permanent(err)
	}
	log = log.With("instructor_id", payload.InstructorID)

	defer func() {
		if err == nil || errors.Is(err, jobs.ErrPermanent) || finalAttempt(job) {
			p.cleanup(log, payload.FilePath)
		}
	}()

	if _, err := p.instructors.Get(ctx, payload.InstructorID); err != nil {
		if errors.Is(err, instructor.ErrNotFound) {
			log.Info("instructor no longer exists, skipping resume upload")
			return nil
		}
		return fmt.Errorf("load instructor: %w", err)
	}

	file, err := os.Open(payload.FilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return jobs.Permanent(fmt.Errorf("resume file missing: %w", err))
		}
		return fmt.Errorf("open resume: %w", err)
	}
	defer file.Close()

	key := p.objectKey(payload.OriginalName)
	object, err := p.uploader.Upload(ctx, key, file, contentTypeFor(payload.OriginalName))
	if err != nil {
		return fmt.Errorf("upload resume: %w", err)
	}

	if err := p.instructors.SetResumeURL(ctx, payload.InstructorID, object.URL); err != nil {
		if errors.Is(err, instructor.ErrNotFound) {
			log.Info("instructor deleted during upload, resume url not stored", "key", object.Key)
			return nil
		}
		return fmt.Errorf("store resume url: %w", err)
	}

	log.Info("resume uploaded", "key", object.Key)
	return nil
}

func (p *ResumeUploadProcessor) objectKey(originalName string) string {
	name := sanitizeFileName(originalName)
	return path.Join(p.folder, uuid.NewString()+"-"+name)
}

func (p *ResumeUploadProcessor) cleanup(log logger.Logger, filePath string) {
	if err := p.removeFile(filePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("failed to remove temp resume file", "path", filePath, "error", err)
	}
}

func finalAttempt(job *jobs.Job) bool {
	return job.MaxAttempts <= 0 || job.Attempt+1 >= job.MaxAttempts
}

func contentTypeFor(name string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		return ct
	}
	return defaultContentType
}

func sanitizeFileName(name string) string {
	name = filepath.Base(strings.TrimSpace(strings.ReplaceAll(name, "\\", "/")))
	if name == "." || name == "/" || name == "" {
		return "resume"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
