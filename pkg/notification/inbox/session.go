package inbox

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/learnhub/learnhub/pkg/notification"
	"github.com/learnhub/learnhub/pkg/observability/logger"
)

// Channel is an open live connection for one user.
type Channel interface {
	// Events yields pushed notifications and is closed when the connection ends.
	Events() <-chan notification.Notification
	Close() error
}

// Connector opens a live channel and announces userID on it.
type Connector interface {
	Connect(ctx context.Context, userID string) (Channel, error)
}

// Session ties the live channel and the cache to the signed-in user.
type Session struct {
	cache     *Cache
	connector Connector
	log       logger.Logger

	mu      sync.Mutex
	userID  string
	channel Channel
	pumped  chan struct{}
}

// NewSession creates a session with no user.
func NewSession(cache *Cache, connector Connector, log logger.Logger) (*Session, error) {
	if cache == nil {
		return nil, errors.New("inbox cache is required")
	}
	if connector == nil {
		return nil, errors.New("live connector is required")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}
	return &Session{cache: cache, connector: connector, log: log}, nil
}

// UserID returns the current user, empty when signed out.
func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// SetUser switches the session to userID. The previous channel is closed and
// the cache reset; a non-empty userID then gets a new channel and page 1.
// Setting the current user again is a no-op.
func (s *Session) SetUser(ctx context.Context, userID string) error {
	s.mu.Lock()
	if userID == s.userID {
		s.mu.Unlock()
		return nil
	}
	s.teardownLocked()
	if userID == "" {
		s.mu.Unlock()
		return nil
	}

	channel, err := s.connector.Connect(ctx, userID)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("connect live channel: %w", err)
	}
	s.userID = userID
	s.channel = channel
	s.pumped = make(chan struct{})
	go s.pump(channel, s.pumped)
	s.mu.Unlock()

	s.log.WithContext(ctx).Debug("inbox session started", "user_id", userID)
	return s.cache.Load(ctx, 1)
}

// Close signs the session out.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.teardownLocked()
}

func (s *Session) teardownLocked() error {
	var err error
	if s.channel != nil {
		err = s.channel.Close()
		<-s.pumped
		s.channel = nil
		s.pumped = nil
	}
	s.userID = ""
	s.cache.Reset()
	return err
}

func (s *Session) pump(channel Channel, done chan<- struct{}) {
	defer close(done)
	for n := range channel.Events() {
		s.cache.ApplyPush(n)
	}
}
