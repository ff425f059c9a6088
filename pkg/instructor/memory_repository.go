package instructor

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryRepository keeps instructors in process memory. Used by tests and local runs.
type MemoryRepository struct {
	mu   sync.RWMutex
	byID map[string]Instructor
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: map[string]Instructor{}}
}

// Create stores a new instructor.
func (r *MemoryRepository) Create(_ context.Context, in *Instructor) error {
	if err := in.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[in.ID]; exists {
		return ErrConflict
	}
	email := NormalizeEmail(in.Email)
	for _, existing := range r.byID {
		if NormalizeEmail(existing.Email) == email {
			return ErrConflict
		}
	}
	cp := *in
	cp.Email = email
	r.byID[in.ID] = cp
	return nil
}

// Get returns a copy of the instructor.
func (r *MemoryRepository) Get(_ context.Context, id string) (*Instructor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	in, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &in, nil
}

// GetByEmail returns the instructor registered with email.
func (r *MemoryRepository) GetByEmail(_ context.Context, email string) (*Instructor, error) {
	email = NormalizeEmail(email)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, in := range r.byID {
		if in.Email == email {
			cp := in
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// SetResumeURL stores the uploaded resume location.
func (r *MemoryRepository) SetResumeURL(_ context.Context, id, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	in, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	in.ResumeURL = url
	in.UpdatedAt = time.Now().UTC()
	r.byID[id] = in
	return nil
}

// UpdateStatus changes the status when the current one is in from.
func (r *MemoryRepository) UpdateStatus(_ context.Context, id string, from []Status, to Status, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	in, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	if !slices.Contains(from, in.Status) {
		return ErrInvalidTransition
	}
	in.Status = to
	in.UpdatedAt = at
	if to == StatusRejected {
		declinedAt := at
		in.DeclinedAt = &declinedAt
	} else {
		in.DeclinedAt = nil
	}
	r.byID[id] = in
	return nil
}

// DeleteDeclined removes the instructor while it is rejected by a decline no
// newer than declinedAt.
func (r *MemoryRepository) DeleteDeclined(_ context.Context, id string, declinedAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	in, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	if in.Status != StatusRejected {
		return ErrInvalidTransition
	}
	if declinedAt != nil && in.DeclinedAt != nil && in.DeclinedAt.After(*declinedAt) {
		return ErrInvalidTransition
	}
	delete(r.byID, id)
	return nil
}
