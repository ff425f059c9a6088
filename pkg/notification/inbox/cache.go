// Package inbox keeps a client's view of its notifications consistent with
// the server: paginated fetches, live pushes and optimistic read flags.
package inbox

import (
	"context"
	"errors"
	"sync"

	"github.com/learnhub/learnhub/pkg/notification"
	"github.com/learnhub/learnhub/pkg/observability/logger"
	"github.com/learnhub/learnhub/pkg/repository"
)

// API is the notification REST surface the cache reconciles against.
type API interface {
	List(ctx context.Context, page, limit int) (*notification.Page, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) error
}

// State is a snapshot of the visible inbox.
type State struct {
	Notifications []notification.Notification
	Page          int
	TotalPages    int
}

// UnreadCount counts unread notifications in the visible list.
func (s State) UnreadCount() int {
	unread := 0
	for _, n := range s.Notifications {
		if !n.Read {
			unread++
		}
	}
	return unread
}

// CacheConfig configures a Cache.
type CacheConfig struct {
	// PageSize is the limit sent with every fetch.
	PageSize int
	// OnAlert is called for every live push, whether or not it becomes visible.
	OnAlert func(notification.Notification)
}

// Cache holds the visible page of notifications.
type Cache struct {
	api      API
	log      logger.Logger
	pageSize int
	onAlert  func(notification.Notification)

	mu    sync.Mutex
	state State
	// generation is bumped by Load and Reset so older fetches are dropped.
	generation uint64

	inflight sync.WaitGroup
}

// NewCache creates an empty cache viewing page 1.
func NewCache(api API, cfg CacheConfig, log logger.Logger) (*Cache, error) {
	if api == nil {
		return nil, errors.New("inbox api is required")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = repository.DefaultPageSize
	}
	return &Cache{
		api:      api,
		log:      log,
		pageSize: cfg.PageSize,
		onAlert:  cfg.OnAlert,
		state:    State{Page: 1},
	}, nil
}

// Snapshot returns a copy of the current state.
func (c *Cache) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.state
	out.Notifications = append([]notification.Notification(nil), c.state.Notifications...)
	return out
}

// UnreadCount is derived from the visible list.
func (c *Cache) UnreadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.UnreadCount()
}

// Load fetches page and replaces the visible list with it. Only the most
// recently started Load applies; an older one that finishes later, or one
// overtaken by Reset, returns nil and changes nothing.
func (c *Cache) Load(ctx context.Context, page int) error {
	if page < 1 {
		page = 1
	}
	c.mu.Lock()
	c.generation++
	generation := c.generation
	c.mu.Unlock()

	result, err := c.api.List(ctx, page, c.pageSize)

	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation {
		return nil
	}
	if err != nil {
		return err
	}
	c.state = State{
		Notifications: append([]notification.Notification(nil), result.Notifications...),
		Page:          page,
		TotalPages:    result.Pagination.TotalPages,
	}
	return nil
}

// ApplyPush handles a live notification. On page 1 it is prepended unless
// already listed; on any other page the list is left alone. The alert
// callback fires in both cases.
func (c *Cache) ApplyPush(n notification.Notification) {
	c.mu.Lock()
	if c.state.Page == 1 && !c.contains(n.ID) {
		list := make([]notification.Notification, 0, len(c.state.Notifications)+1)
		list = append(list, n)
		c.state.Notifications = append(list, c.state.Notifications...)
	}
	c.mu.Unlock()

	if c.onAlert != nil {
		c.onAlert(n)
	}
}

func (c *Cache) contains(id string) bool {
	for _, existing := range c.state.Notifications {
		if existing.ID == id {
			return true
		}
	}
	return false
}

// MarkRead flips the read flag locally and tells the server in the
// background. A failed server call is logged; the local flip stays.
func (c *Cache) MarkRead(ctx context.Context, id string) {
	c.mu.Lock()
	for i := range c.state.Notifications {
		if c.state.Notifications[i].ID == id {
			c.state.Notifications[i].Read = true
		}
	}
	c.mu.Unlock()

	c.background(ctx, "notification_id", id, func(ctx context.Context) error {
		return c.api.MarkRead(ctx, id)
	})
}

// MarkAllRead flips every visible notification to read and tells the server,
// but only when something is unread. It reports whether a call was made.
func (c *Cache) MarkAllRead(ctx context.Context) bool {
	c.mu.Lock()
	if c.state.UnreadCount() == 0 {
		c.mu.Unlock()
		return false
	}
	for i := range c.state.Notifications {
		c.state.Notifications[i].Read = true
	}
	c.mu.Unlock()

	c.background(ctx, "scope", "all", c.api.MarkAllRead)
	return true
}

func (c *Cache) background(ctx context.Context, key, value string, call func(context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		if err := call(ctx); err != nil {
			c.log.WithContext(ctx).Warn("failed to sync read state", key, value, "error", err)
		}
	}()
}

// Reset clears the state back to an empty page 1.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.state = State{Page: 1}
}

// Wait blocks until background server calls have finished.
func (c *Cache) Wait() {
	c.inflight.Wait()
}
