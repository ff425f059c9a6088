package inbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/learnhub/learnhub/pkg/notification"
	"github.com/learnhub/learnhub/pkg/observability/logger"
)

type fakeChannel struct {
	userID string
	events chan notification.Notification
	once   sync.Once
	closed bool
}

func (c *fakeChannel) Events() <-chan notification.Notification { return c.events }

func (c *fakeChannel) Close() error {
	c.once.Do(func() {
		c.closed = true
		close(c.events)
	})
	return nil
}

type fakeConnector struct {
	mu       sync.Mutex
	channels []*fakeChannel
	err      error
}

func (f *fakeConnector) Connect(_ context.Context, userID string) (Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	ch := &fakeChannel{userID: userID, events: make(chan notification.Notification)}
	f.channels = append(f.channels, ch)
	return ch, nil
}

func newTestSession(t *testing.T, api *fakeAPI, connector *fakeConnector) (*Session, *Cache) {
	t.Helper()
	cache := newTestCache(t, api, nil)
	session, err := NewSession(cache, connector, logger.Nop())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return session, cache
}

func TestSession_SetUserConnectsAndLoads(t *testing.T) {
	api := &fakeAPI{pages: map[int][]notification.Notification{1: items("p1", 2, false)}, totalPages: 1}
	connector := &fakeConnector{}
	session, cache := newTestSession(t, api, connector)

	if err := session.SetUser(context.Background(), "u-1"); err != nil {
		t.Fatalf("SetUser: %v", err)
	}
	if len(connector.channels) != 1 || connector.channels[0].userID != "u-1" {
		t.Fatalf("channels = %+v", connector.channels)
	}
	if got := len(cache.Snapshot().Notifications); got != 2 {
		t.Fatalf("page 1 not loaded, len = %d", got)
	}

	connector.channels[0].events <- notification.Notification{ID: "live-1"}
	deadline := time.Now().Add(time.Second)
	for cache.Snapshot().Notifications[0].ID != "live-1" {
		if time.Now().After(deadline) {
			t.Fatal("push never reached the cache")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := session.SetUser(context.Background(), "u-1"); err != nil || len(connector.channels) != 1 {
		t.Fatalf("same user must not reconnect: %v, %d channels", err, len(connector.channels))
	}
}

func TestSession_UserChangeTearsDown(t *testing.T) {
	api := &fakeAPI{pages: map[int][]notification.Notification{1: items("p1", 2, false)}}
	connector := &fakeConnector{}
	session, cache := newTestSession(t, api, connector)
	ctx := context.Background()

	_ = session.SetUser(ctx, "u-1")
	if err := session.SetUser(ctx, "u-2"); err != nil {
		t.Fatalf("SetUser: %v", err)
	}
	if !connector.channels[0].closed || connector.channels[1].userID != "u-2" {
		t.Fatal("expected the first channel closed and a second one for u-2")
	}
	if session.UserID() != "u-2" {
		t.Fatalf("user = %q", session.UserID())
	}

	if err := session.SetUser(ctx, ""); err != nil {
		t.Fatalf("SetUser(\"\"): %v", err)
	}
	if !connector.channels[1].closed {
		t.Fatal("logout must close the channel")
	}
	if state := cache.Snapshot(); len(state.Notifications) != 0 || state.Page != 1 {
		t.Fatalf("state not reset: %+v", state)
	}
}

func TestSession_ConnectFailureLeavesSignedOut(t *testing.T) {
	connector := &fakeConnector{err: errors.New("dial refused")}
	session, _ := newTestSession(t, &fakeAPI{}, connector)

	if err := session.SetUser(context.Background(), "u-1"); err == nil {
		t.Fatal("expected connect error")
	}
	if session.UserID() != "" {
		t.Fatalf("user = %q", session.UserID())
	}
	if err := session.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
