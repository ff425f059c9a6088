package inbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/learnhub/learnhub/pkg/notification"
	"github.com/learnhub/learnhub/pkg/observability/logger"
	"github.com/learnhub/learnhub/pkg/repository"
)

type fakeAPI struct {
	mu          sync.Mutex
	pages       map[int][]notification.Notification
	totalPages  int
	listGate    chan struct{}
	pageGates   map[int]chan struct{}
	listed      chan int
	markErr     error
	markRead    []string
	markAllRead int
}

func (f *fakeAPI) List(_ context.Context, page, limit int) (*notification.Page, error) {
	if f.listed != nil {
		f.listed <- page
	}
	if f.listGate != nil {
		<-f.listGate
	}
	if gate := f.pageGates[page]; gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return &notification.Page{
		Notifications: append([]notification.Notification(nil), f.pages[page]...),
		Pagination:    repository.PageInfo{Page: page, Limit: limit, TotalPages: f.totalPages},
	}, nil
}

func (f *fakeAPI) MarkRead(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markRead = append(f.markRead, id)
	return f.markErr
}

func (f *fakeAPI) MarkAllRead(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markAllRead++
	return f.markErr
}

func items(prefix string, n int, read bool) []notification.Notification {
	out := make([]notification.Notification, n)
	for i := range out {
		out[i] = notification.Notification{ID: fmt.Sprintf("%s-%d", prefix, i), Title: "t", Message: "m", Read: read}
	}
	return out
}

func newTestCache(t *testing.T, api *fakeAPI, onAlert func(notification.Notification)) *Cache {
	t.Helper()
	cache, err := NewCache(api, CacheConfig{PageSize: 5, OnAlert: onAlert}, logger.Nop())
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	return cache
}

func TestCache_LoadReplacesWholesale(t *testing.T) {
	api := &fakeAPI{pages: map[int][]notification.Notification{1: items("p1", 5, false), 2: items("p2", 2, true)}, totalPages: 2}
	cache := newTestCache(t, api, nil)

	if err := cache.Load(context.Background(), 1); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cache.Load(context.Background(), 2); err != nil {
		t.Fatalf("Load: %v", err)
	}
	state := cache.Snapshot()
	if state.Page != 2 || state.TotalPages != 2 || len(state.Notifications) != 2 || state.Notifications[0].ID != "p2-0" {
		t.Fatalf("unexpected state: %+v", state)
	}
	if cache.UnreadCount() != 0 {
		t.Fatalf("unread = %d", cache.UnreadCount())
	}
}

func TestCache_ApplyPush(t *testing.T) {
	api := &fakeAPI{pages: map[int][]notification.Notification{1: items("p1", 3, false), 2: items("p2", 3, false)}, totalPages: 2}
	var alerts []string
	cache := newTestCache(t, api, func(n notification.Notification) { alerts = append(alerts, n.ID) })
	ctx := context.Background()

	_ = cache.Load(ctx, 1)
	cache.ApplyPush(notification.Notification{ID: "new-1"})
	state := cache.Snapshot()
	if len(state.Notifications) != 4 || state.Notifications[0].ID != "new-1" {
		t.Fatalf("page 1 push not prepended: %+v", state.Notifications)
	}
	if cache.UnreadCount() != 4 {
		t.Fatalf("unread = %d", cache.UnreadCount())
	}

	cache.ApplyPush(notification.Notification{ID: "new-1"})
	if got := len(cache.Snapshot().Notifications); got != 4 {
		t.Fatalf("duplicate push listed twice, len = %d", got)
	}

	_ = cache.Load(ctx, 2)
	cache.ApplyPush(notification.Notification{ID: "new-2"})
	state = cache.Snapshot()
	if len(state.Notifications) != 3 || state.Notifications[0].ID != "p2-0" {
		t.Fatalf("page 2 list changed: %+v", state.Notifications)
	}

	if want := []string{"new-1", "new-1", "new-2"}; fmt.Sprint(alerts) != fmt.Sprint(want) {
		t.Fatalf("alerts = %v, want %v", alerts, want)
	}
}

func TestCache_MarkReadKeepsLocalFlipWhenServerFails(t *testing.T) {
	api := &fakeAPI{pages: map[int][]notification.Notification{1: items("p1", 2, false)}, markErr: errors.New("boom")}
	cache := newTestCache(t, api, nil)
	_ = cache.Load(context.Background(), 1)

	cache.MarkRead(context.Background(), "p1-0")
	cache.Wait()

	state := cache.Snapshot()
	if !state.Notifications[0].Read || state.Notifications[1].Read {
		t.Fatalf("unexpected read flags: %+v", state.Notifications)
	}
	if cache.UnreadCount() != 1 {
		t.Fatalf("unread = %d", cache.UnreadCount())
	}
	if len(api.markRead) != 1 || api.markRead[0] != "p1-0" {
		t.Fatalf("server calls = %v", api.markRead)
	}
}

func TestCache_MarkReadSurvivesCanceledCaller(t *testing.T) {
	api := &fakeAPI{pages: map[int][]notification.Notification{1: items("p1", 1, false)}}
	cache := newTestCache(t, api, nil)
	_ = cache.Load(context.Background(), 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cache.MarkRead(ctx, "p1-0")
	cache.Wait()

	if len(api.markRead) != 1 {
		t.Fatalf("server calls = %v", api.markRead)
	}
}

func TestCache_MarkAllReadOnlyWhenUnread(t *testing.T) {
	api := &fakeAPI{pages: map[int][]notification.Notification{1: items("p1", 3, false)}}
	cache := newTestCache(t, api, nil)
	ctx := context.Background()
	_ = cache.Load(ctx, 1)

	if !cache.MarkAllRead(ctx) {
		t.Fatal("expected a server call with unread notifications")
	}
	cache.Wait()
	if cache.UnreadCount() != 0 {
		t.Fatalf("unread = %d", cache.UnreadCount())
	}
	if cache.MarkAllRead(ctx) {
		t.Fatal("expected no server call when everything is read")
	}
	cache.Wait()
	if api.markAllRead != 1 {
		t.Fatalf("markAllRead calls = %d", api.markAllRead)
	}
}

func TestCache_ResetDropsInFlightLoad(t *testing.T) {
	api := &fakeAPI{pages: map[int][]notification.Notification{1: items("p1", 3, false)}, listGate: make(chan struct{})}
	cache := newTestCache(t, api, nil)

	done := make(chan error, 1)
	go func() { done <- cache.Load(context.Background(), 1) }()
	// Give Load time to read the generation before the reset.
	time.Sleep(20 * time.Millisecond)
	cache.Reset()
	close(api.listGate)

	if err := <-done; err != nil {
		t.Fatalf("Load: %v", err)
	}
	if state := cache.Snapshot(); len(state.Notifications) != 0 || state.Page != 1 {
		t.Fatalf("stale load applied after reset: %+v", state)
	}
}

func TestCache_OnlyLatestLoadApplies(t *testing.T) {
	api := &fakeAPI{
		pages:      map[int][]notification.Notification{1: items("p1", 5, false), 2: items("p2", 2, true)},
		totalPages: 2,
		pageGates:  map[int]chan struct{}{1: make(chan struct{}), 2: make(chan struct{})},
		listed:     make(chan int, 2),
	}
	cache := newTestCache(t, api, nil)
	ctx := context.Background()

	first := make(chan error, 1)
	go func() { first <- cache.Load(ctx, 1) }()
	<-api.listed
	second := make(chan error, 1)
	go func() { second <- cache.Load(ctx, 2) }()
	<-api.listed

	close(api.pageGates[2])
	if err := <-second; err != nil {
		t.Fatalf("Load page 2: %v", err)
	}
	close(api.pageGates[1])
	if err := <-first; err != nil {
		t.Fatalf("Load page 1: %v", err)
	}

	state := cache.Snapshot()
	if state.Page != 2 || len(state.Notifications) != 2 || state.Notifications[0].ID != "p2-0" {
		t.Fatalf("slower earlier load overwrote the latest page: %+v", state)
	}
}
