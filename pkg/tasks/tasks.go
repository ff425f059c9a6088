// Package tasks names the queues and job kinds of the platform and defines
// their JSON payloads.
package tasks

import (
	"errors"
	"fmt"
	"net/mail"
	"path/filepath"
	"strings"
	"time"

	"github.com/learnhub/learnhub/pkg/jobs"
)

// Queue names.
const (
	QueueInstructorRegistration = "instructor-registration"
	QueueEmail                  = "email"
	QueueInstructorCleanup      = "instructor-cleanup"
)

// Job names.
const (
	JobResumeUpload             = "resume-upload"
	JobSendEmail                = "send-email"
	JobDeleteDeclinedInstructor = "delete-declined-instructor"
	JobDiscardUpload            = "discard-registration-upload"
)

// ResumeUploadPayload moves a resume from the local upload directory to object storage.
type ResumeUploadPayload struct {
	InstructorID string `json:"instructorId"`
	FilePath     string `json:"filePath"`
	OriginalName string `json:"originalName"`
	Email        string `json:"email"`
}

// Validate checks the fields the processor relies on.
func (p ResumeUploadPayload) Validate() error {
	var errs []error
	if strings.TrimSpace(p.InstructorID) == "" {
		errs = append(errs, errors.New("instructorId is required"))
	}
	if strings.TrimSpace(p.FilePath) == "" {
		errs = append(errs, errors.New("filePath is required"))
	} else if !filepath.IsAbs(p.FilePath) {
		errs = append(errs, fmt.Errorf("filePath %q must be absolute", p.FilePath))
	}
	if strings.TrimSpace(p.OriginalName) == "" {
		errs = append(errs, errors.New("originalName is required"))
	}
	return validationError(errs)
}

// EmailPayload is a rendered transactional email.
type EmailPayload struct {
	To             string `json:"to"`
	Subject        string `json:"subject"`
	HTML           string `json:"html"`
	InstructorName string `json:"instructorName,omitempty"`
}

// Validate checks the fields the processor relies on.
func (p EmailPayload) Validate() error {
	var errs []error
	if _, err := mail.ParseAddress(strings.TrimSpace(p.To)); err != nil {
		errs = append(errs, fmt.Errorf("to %q is not a valid address", p.To))
	}
	if strings.TrimSpace(p.Subject) == "" {
		errs = append(errs, errors.New("subject is required"))
	}
	if strings.TrimSpace(p.HTML) == "" {
		errs = append(errs, errors.New("html is required"))
	}
	return validationError(errs)
}

// DeleteDeclinedPayload identifies the declined instructor to remove.
type DeleteDeclinedPayload struct {
	InstructorID string `json:"instructorId"`
	// DeclinedAt pins the decline this job was scheduled for. A later decline
	// schedules its own job, so older jobs skip.
	DeclinedAt *time.Time `json:"declinedAt,omitempty"`
}

// Validate checks the fields the processor relies on.
func (p DeleteDeclinedPayload) Validate() error {
	if strings.TrimSpace(p.InstructorID) == "" {
		return validationError([]error{errors.New("instructorId is required")})
	}
	return nil
}

// DiscardUploadPayload names a parked resume whose registration was never verified.
type DiscardUploadPayload struct {
	FilePath string `json:"filePath"`
}

// Validate checks the fields the processor relies on.
func (p DiscardUploadPayload) Validate() error {
	if !filepath.IsAbs(strings.TrimSpace(p.FilePath)) {
		return validationError([]error{fmt.Errorf("filePath %q must be absolute", p.FilePath)})
	}
	return nil
}

// DecodeResumeUpload decodes and validates a resume-upload job.
func DecodeResumeUpload(job *jobs.Job) (ResumeUploadPayload, error) {
	var p ResumeUploadPayload
	err := decode(job, &p)
	return p, err
}

// DecodeEmail decodes and validates a send-email job.
func DecodeEmail(job *jobs.Job) (EmailPayload, error) {
	var p EmailPayload
	err := decode(job, &p)
	return p, err
}

// DecodeDeleteDeclined decodes and validates a delete-declined-instructor job.
func DecodeDeleteDeclined(job *jobs.Job) (DeleteDeclinedPayload, error) {
	var p DeleteDeclinedPayload
	err := decode(job, &p)
	return p, err
}

// DecodeDiscardUpload decodes and validates a discard-registration-upload job.
func DecodeDiscardUpload(job *jobs.Job) (DiscardUploadPayload, error) {
	var p DiscardUploadPayload
	err := decode(job, &p)
	return p, err
}

func decode[T interface{ Validate() error }](job *jobs.Job, out *T) error {
	if err := job.Decode(out); err != nil {
		return err
	}
	return (*out).Validate()
}

func validationError(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", jobs.ErrValidation, errors.Join(errs...))
}
