package notification

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/learnhub/learnhub/pkg/observability/logger"
	"github.com/learnhub/learnhub/pkg/repository"
)

// Input is a notification to create.
type Input struct {
	UserID  string `json:"userId"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Type    Type   `json:"type"`
}

// Service persists notifications and pushes them to connected owners. Delivery
// is live when the owner is connected; otherwise the notification waits for the
// next paginated fetch.
type Service struct {
	repo Repository
	hub  *Hub
	log  logger.Logger
	now  func() time.Time
}

// NewService creates the service.
func NewService(repo Repository, hub *Hub, log logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, errors.New("notification repository is required")
	}
	if hub == nil {
		return nil, errors.New("notification hub is required")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{repo: repo, hub: hub, log: log, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Hub returns the live subscription hub.
func (s *Service) Hub() *Hub { return s.hub }

// Create stores the notification and pushes it to the owner's live connections.
func (s *Service) Create(ctx context.Context, in Input) (*Notification, error) {
	if in.Type == "" {
		in.Type = TypeInfo
	}
	n := &Notification{
		ID:        uuid.NewString(),
		UserID:    strings.TrimSpace(in.UserID),
		Title:     strings.TrimSpace(in.Title),
		Message:   strings.TrimSpace(in.Message),
		Type:      in.Type,
		CreatedAt: s.now(),
	}
	if err := s.repo.Insert(ctx, n); err != nil {
		return nil, err
	}

	delivered, err := s.hub.Push(n.UserID, Event{Event: EventNotification, Data: n})
	if err != nil {
		s.log.WithContext(ctx).Warn("failed to push notification", "notification_id", n.ID, "error", err)
	}
	s.log.WithContext(ctx).Debug("notification created", "notification_id", n.ID, "user_id", n.UserID, "live_deliveries", delivered)
	return n, nil
}

// List returns a page of the user's notifications, newest first.
func (s *Service) List(ctx context.Context, userID string, page, limit int) (*Page, error) {
	return s.repo.List(ctx, userID, repository.NewPagination(page, limit))
}

// MarkRead marks one notification of userID as read.
func (s *Service) MarkRead(ctx context.Context, userID, id string) error {
	return s.repo.MarkRead(ctx, userID, strings.TrimSpace(id))
}

// MarkAllRead marks every notification of userID as read.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID)
}

// UnreadCount returns the number of unread notifications of userID.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.repo.UnreadCount(ctx, userID)
}

// SendTest creates a diagnostic notification for userID.
func (s *Service) SendTest(ctx context.Context, userID string) (*Notification, error) {
	return s.Create(ctx, Input{
		UserID:  userID,
		Title:   "Test notification",
		Message: "Live notifications are working.",
		Type:    TypeInfo,
	})
}
