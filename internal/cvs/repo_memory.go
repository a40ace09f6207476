package cvs

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]CV // id -> cv
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string]CV)}
}

// Create stores a new CV.
func (r *MemoryRepo) Create(ctx context.Context, cv CV) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.data[cv.ID]; exists {
		return ErrInvalidInput
	}
	cv.Content = cv.Content.Clone()
	r.data[cv.ID] = cv
	return nil
}

// GetByID returns a CV by ID for an owner.
func (r *MemoryRepo) GetByID(ctx context.Context, ownerID, id string) (CV, error) {
	if err := ctx.Err(); err != nil {
		return CV{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	cv, ok := r.data[id]
	if !ok || cv.OwnerID != ownerID {
		return CV{}, ErrNotFound
	}
	cv.Content = cv.Content.Clone()
	return cv, nil
}

// ListByOwner returns the owner's CVs, newest first.
func (r *MemoryRepo) ListByOwner(ctx context.Context, ownerID string) ([]CV, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]CV, 0)
	for _, cv := range r.data {
		if cv.OwnerID == ownerID {
			cv.Content = cv.Content.Clone()
			out = append(out, cv)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Update applies a partial update and returns the stored CV.
func (r *MemoryRepo) Update(ctx context.Context, ownerID, id string, upd Update, at time.Time) (CV, error) {
	if err := ctx.Err(); err != nil {
		return CV{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cv, ok := r.data[id]
	if !ok || cv.OwnerID != ownerID {
		return CV{}, ErrNotFound
	}
	if upd.Title != nil {
		cv.Title = *upd.Title
	}
	if upd.Content != nil {
		cv.Content = upd.Content.Clone()
	}
	cv.UpdatedAt = at
	r.data[id] = cv
	cv.Content = cv.Content.Clone()
	return cv, nil
}

// Delete removes a CV.
func (r *MemoryRepo) Delete(ctx context.Context, ownerID, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cv, ok := r.data[id]
	if !ok || cv.OwnerID != ownerID {
		return ErrNotFound
	}
	delete(r.data, id)
	return nil
}

// CountByOwner returns how many CVs an owner has.
func (r *MemoryRepo) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, cv := range r.data {
		if cv.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

var _ Repo = (*MemoryRepo)(nil)
