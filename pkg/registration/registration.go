// Package registration runs instructor sign-up: the form is held while the
// email is confirmed with a one-time code, then the instructor is created and
// the resume upload is queued.
package registration

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/learnhub/learnhub/pkg/instructor"
	"github.com/learnhub/learnhub/pkg/jobs"
	"github.com/learnhub/learnhub/pkg/observability/logger"
	"github.com/learnhub/learnhub/pkg/otp"
	"github.com/learnhub/learnhub/pkg/tasks"
)

var (
	// ErrValidation classifies invalid registration forms.
	ErrValidation = errors.New("registration validation error")
	// ErrInvalidCode is returned when the code is wrong, expired or already used.
	ErrInvalidCode = errors.New("invalid or expired verification code")
	// ErrExpired is returned when the pending registration is gone.
	ErrExpired = errors.New("registration expired, please register again")
	// ErrAlreadyRegistered is returned by Verify when the instructor was created
	// concurrently. The caller already proved ownership of the address.
	ErrAlreadyRegistered = errors.New("email is already registered")
)

// DefaultUploadRetention is how long a parked resume waits for verification
// before the discard job removes it. It outlives the OTP temp data.
const DefaultUploadRetention = otp.DefaultTempDataTTL + 10*time.Minute

// claimedPrefix marks uploads taken over by a verified registration.
const claimedPrefix = "claimed-"

// Form is a pending instructor registration.
type Form struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone,omitempty"`
	Expertise  string `json:"expertise,omitempty"`
	ResumePath string `json:"resumePath,omitempty"`
	ResumeName string `json:"resumeName,omitempty"`
}

// Validate checks required fields.
func (f Form) Validate() error {
	var errs []error
	if strings.TrimSpace(f.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(f.Email)); err != nil {
		errs = append(errs, errors.New("email is not valid"))
	}
	if f.ResumePath != "" && !filepath.IsAbs(f.ResumePath) {
		errs = append(errs, errors.New("resume path must be absolute"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrValidation, errors.Join(errs...))
	}
	return nil
}

// OTP is the subset of the OTP service used here.
type OTP interface {
	SendOTP(ctx context.Context, address, name, subject string) error
	VerifyOTP(ctx context.Context, address, code string) (bool, error)
	StoreTempData(ctx context.Context, address string, data any) error
	GetTempData(ctx context.Context, address string, out any) error
	DeleteTempData(ctx context.Context, address string) error
}

// Enqueuer schedules background jobs.
type Enqueuer interface {
	AddJob(ctx context.Context, queueName, jobName string, payload any, opts ...jobs.JobOption) (*jobs.JobHandle, error)
}

// Config tunes the registration flow.
type Config struct {
	// Subject is the OTP email subject.
	Subject string
	// UploadRetention delays the discard job of a parked resume. It must exceed
	// the OTP temp data TTL.
	UploadRetention time.Duration
}

// Service runs the registration flow.
type Service struct {
	otp         OTP
	instructors instructor.Repository
	enqueuer    Enqueuer
	cfg         Config
	log         logger.Logger
}

// NewService creates the registration service.
func NewService(codes OTP, instructors instructor.Repository, enqueuer Enqueuer, cfg Config, log logger.Logger) (*Service, error) {
	if codes == nil {
		return nil, errors.New("otp service is required")
	}
	if instructors == nil {
		return nil, errors.New("instructor repository is required")
	}
	if enqueuer == nil {
		return nil, errors.New("job enqueuer is required")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}
	if strings.TrimSpace(cfg.Subject) == "" {
		cfg.Subject = otp.DefaultSubject
	}
	if cfg.UploadRetention <= 0 {
		cfg.UploadRetention = DefaultUploadRetention
	}
	return &Service{otp: codes, instructors: instructors, enqueuer: enqueuer, cfg: cfg, log: log}, nil
}

// Start emails a verification code and holds the form. The form replaces a
// pending one only once the code went out, so a rate-limited attempt leaves the
// earlier registration intact. An address that already belongs to an
// instructor gets the same answer without a code.
func (s *Service) Start(ctx context.Context, form Form) error {
	form.Email = instructor.NormalizeEmail(form.Email)
	form.Name = strings.TrimSpace(form.Name)
	if form.ResumePath != "" && strings.TrimSpace(form.ResumeName) == "" {
		form.ResumeName = filepath.Base(form.ResumePath)
	}
	if err := form.Validate(); err != nil {
		return err
	}
	log := s.log.WithContext(ctx)
	if _, err := s.instructors.GetByEmail(ctx, form.Email); err == nil {
		log.Debug("registration for an existing instructor ignored")
		s.discardUpload(ctx, form.ResumePath)
		return nil
	} else if !errors.Is(err, instructor.ErrNotFound) {
		return err
	}

	var pending Form
	if err := s.otp.GetTempData(ctx, form.Email, &pending); err != nil && !errors.Is(err, otp.ErrNotFound) {
		return err
	}
	if err := s.otp.SendOTP(ctx, form.Email, form.Name, s.cfg.Subject); err != nil {
		return err
	}
	if err := s.otp.StoreTempData(ctx, form.Email, form); err != nil {
		return err
	}
	if pending.ResumePath != "" && pending.ResumePath != form.ResumePath {
		s.discardUpload(ctx, pending.ResumePath)
	}

	if form.ResumePath != "" {
		_, err := s.enqueuer.AddJob(ctx, tasks.QueueInstructorCleanup, tasks.JobDiscardUpload,
			tasks.DiscardUploadPayload{FilePath: form.ResumePath},
			jobs.WithDelay(s.cfg.UploadRetention),
		)
		if err != nil {
			log.Warn("failed to schedule upload discard", "path", form.ResumePath, "error", err)
		}
	}
	return nil
}

func (s *Service) discardUpload(ctx context.Context, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.WithContext(ctx).Warn("failed to remove unused upload", "path", path, "error", err)
	}
}

// claimUpload moves a parked resume out of the discard job's reach.
func claimUpload(path string) (string, error) {
	claimed := filepath.Join(filepath.Dir(path), claimedPrefix+filepath.Base(path))
	if err := os.Rename(path, claimed); err != nil {
		return "", err
	}
	return claimed, nil
}

// Verify consumes the code, creates the instructor and queues the resume upload.
// When the upload cannot be queued the created instructor is returned with the error.
func (s *Service) Verify(ctx context.Context, address, code string) (*instructor.Instructor, error) {
	address = instructor.NormalizeEmail(address)
	ok, err := s.otp.VerifyOTP(ctx, address, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCode
	}

	var form Form
	if err := s.otp.GetTempData(ctx, address, &form); err != nil {
		if errors.Is(err, otp.ErrNotFound) {
			return nil, ErrExpired
		}
		return nil, err
	}

	now := time.Now().UTC()
	created := &instructor.Instructor{
		ID:        uuid.NewString(),
		Name:      form.Name,
		Email:     address,
		Phone:     form.Phone,
		Expertise: form.Expertise,
		Status:    instructor.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.instructors.Create(ctx, created); err != nil {
		if errors.Is(err, instructor.ErrConflict) {
			return nil, ErrAlreadyRegistered
		}
		return nil, err
	}
	log := s.log.WithContext(ctx).With("instructor_id", created.ID)
	if err := s.otp.DeleteTempData(ctx, address); err != nil {
		log.Warn("failed to delete registration data", "error", err)
	}

	if form.ResumePath != "" {
		claimed, err := claimUpload(form.ResumePath)
		if err != nil {
			return created, fmt.Errorf("claim resume: %w", err)
		}
		_, err = s.enqueuer.AddJob(ctx, tasks.QueueInstructorRegistration, tasks.JobResumeUpload, tasks.ResumeUploadPayload{
			InstructorID: created.ID,
			FilePath:     claimed,
			OriginalName: form.ResumeName,
			Email:        address,
		})
		if err != nil {
			return created, fmt.Errorf("queue resume upload: %w", err)
		}
	}
	log.Info("instructor registered")
	return created, nil
}

// Resend emails a fresh code for a pending registration. Unknown emails succeed
// without sending anything, so the response does not reveal who is registering.
func (s *Service) Resend(ctx context.Context, address string) error {
	address = instructor.NormalizeEmail(address)
	var form Form
	if err := s.otp.GetTempData(ctx, address, &form); err != nil {
		if errors.Is(err, otp.ErrNotFound) {
			s.log.WithContext(ctx).Debug("resend requested without pending registration")
			return nil
		}
		return err
	}
	return s.otp.SendOTP(ctx, address, form.Name, s.cfg.Subject)
}
