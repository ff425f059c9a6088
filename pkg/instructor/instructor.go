// Package instructor manages instructor accounts and their review lifecycle.
package instructor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when no instructor matches.
	ErrNotFound = errors.New("instructor not found")
	// ErrConflict is returned when an instructor with the same email exists.
	ErrConflict = errors.New("instructor already exists")
	// ErrInvalidTransition is returned when a status change is not allowed from the current status.
	ErrInvalidTransition = errors.New("instructor status transition not allowed")
	// ErrValidation classifies invalid instructor data.
	ErrValidation = errors.New("instructor validation error")
)

// Status is the review status of an instructor.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Instructor is a registered instructor.
type Instructor struct {
	ID         string     `bson:"_id" json:"id"`
	Name       string     `bson:"name" json:"name"`
	Email      string     `bson:"email" json:"email"`
	Phone      string     `bson:"phone,omitempty" json:"phone,omitempty"`
	Expertise  string     `bson:"expertise,omitempty" json:"expertise,omitempty"`
	Status     Status     `bson:"status" json:"status"`
	ResumeURL  string     `bson:"resumeUrl,omitempty" json:"resumeUrl,omitempty"`
	DeclinedAt *time.Time `bson:"declinedAt,omitempty" json:"declinedAt,omitempty"`
	CreatedAt  time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time  `bson:"updatedAt" json:"updatedAt"`
}

// Validate checks required fields.
func (i *Instructor) Validate() error {
	if i == nil {
		return fmt.Errorf("%w: instructor is nil", ErrValidation)
	}
	var errs []error
	if strings.TrimSpace(i.ID) == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if strings.TrimSpace(i.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if strings.TrimSpace(i.Email) == "" {
		errs = append(errs, errors.New("email is required"))
	}
	switch i.Status {
	case StatusPending, StatusApproved, StatusRejected:
	default:
		errs = append(errs, fmt.Errorf("unknown status %q", i.Status))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrValidation, errors.Join(errs...))
	}
	return nil
}

// Repository persists instructors.
type Repository interface {
	Create(ctx context.Context, in *Instructor) error
	Get(ctx context.Context, id string) (*Instructor, error)
	GetByEmail(ctx context.Context, email string) (*Instructor, error)
	SetResumeURL(ctx context.Context, id, url string) error
	// UpdateStatus moves the instructor to status when its current status is one of from.
	// It returns ErrInvalidTransition when the current status does not match.
	UpdateStatus(ctx context.Context, id string, from []Status, to Status, at time.Time) error
	// DeleteDeclined removes the instructor only while it is rejected and its
	// decline is not newer than declinedAt (nil matches any decline). It returns
	// ErrInvalidTransition when the instructor exists but no longer qualifies.
	DeleteDeclined(ctx context.Context, id string, declinedAt *time.Time) error
}

// NormalizeEmail lowercases and trims an address for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
