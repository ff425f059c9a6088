package notification

import (
	"context"
	"sort"
	"sync"

	"github.com/learnhub/learnhub/pkg/repository"
)

// MemoryRepository keeps notifications in process memory. Used by tests and local runs.
type MemoryRepository struct {
	mu     sync.RWMutex
	byUser map[string][]Notification
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byUser: map[string][]Notification{}}
}

func (r *MemoryRepository) Insert(_ context.Context, n *Notification) error {
	if err := n.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	list := append(r.byUser[n.UserID], *n)
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID > list[j].ID
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	r.byUser[n.UserID] = list
	return nil
}

func (r *MemoryRepository) List(_ context.Context, userID string, page repository.Pagination) (*Page, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := r.byUser[userID]
	out := &Page{Notifications: []Notification{}, Pagination: page.Info(int64(len(all)))}
	start := page.Offset()
	if start >= len(all) {
		return out, nil
	}
	end := min(start+page.Limit(), len(all))
	out.Notifications = append(out.Notifications, all[start:end]...)
	return out, nil
}

func (r *MemoryRepository) MarkRead(_ context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.byUser[userID]
	for i := range list {
		if list[i].ID == id {
			list[i].Read = true
			return nil
		}
	}
	return ErrNotFound
}

func (r *MemoryRepository) MarkAllRead(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var changed int64
	list := r.byUser[userID]
	for i := range list {
		if !list[i].Read {
			list[i].Read = true
			changed++
		}
	}
	return changed, nil
}

func (r *MemoryRepository) UnreadCount(_ context.Context, userID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var unread int64
	for _, n := range r.byUser[userID] {
		if !n.Read {
			unread++
		}
	}
	return unread, nil
}
