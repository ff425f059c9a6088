// Package notification persists user notifications and pushes them to the
// owner's live connections.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/learnhub/learnhub/pkg/repository"
)

var (
	// ErrNotFound is returned when the notification does not exist for the user.
	ErrNotFound = errors.New("notification not found")
	// ErrValidation classifies invalid notifications.
	ErrValidation = errors.New("notification validation error")
)

// Type is the severity shown by the client.
type Type string

const (
	TypeInfo    Type = "info"
	TypeSuccess Type = "success"
	TypeWarning Type = "warning"
	TypeError   Type = "error"
)

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	switch t {
	case TypeInfo, TypeSuccess, TypeWarning, TypeError:
		return true
	}
	return false
}

// Notification is a user-facing message.
type Notification struct {
	ID        string    `bson:"_id" json:"id"`
	UserID    string    `bson:"userId" json:"userId"`
	Title     string    `bson:"title" json:"title"`
	Message   string    `bson:"message" json:"message"`
	Type      Type      `bson:"type" json:"type"`
	Read      bool      `bson:"read" json:"read"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

// Validate checks required fields.
func (n *Notification) Validate() error {
	var errs []error
	if strings.TrimSpace(n.ID) == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if strings.TrimSpace(n.UserID) == "" {
		errs = append(errs, errors.New("userId is required"))
	}
	if strings.TrimSpace(n.Title) == "" {
		errs = append(errs, errors.New("title is required"))
	}
	if strings.TrimSpace(n.Message) == "" {
		errs = append(errs, errors.New("message is required"))
	}
	if !n.Type.Valid() {
		errs = append(errs, fmt.Errorf("unknown type %q", n.Type))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrValidation, errors.Join(errs...))
	}
	return nil
}

// Page is one page of a user's notifications, newest first.
type Page struct {
	Notifications []Notification      `json:"notifications"`
	Pagination    repository.PageInfo `json:"pagination"`
}

// Repository persists notifications.
type Repository interface {
	Insert(ctx context.Context, n *Notification) error
	List(ctx context.Context, userID string, page repository.Pagination) (*Page, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
}

// Live channel event names.
const (
	EventJoin         = "join"
	EventNotification = "notification"
)

// Event is a frame on the live channel.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// JoinData is the payload of the join event a client sends after connecting.
type JoinData struct {
	UserID string `json:"userId"`
}
