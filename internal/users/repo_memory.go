package users

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo keeps users in process. Upsert follows the same merge rules as
// PGRepo: empty profile fields keep the stored value.
type MemoryRepo struct {
	mu    sync.RWMutex
	users map[string]User
	now   func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{users: make(map[string]User), now: time.Now}
}

func (r *MemoryRepo) Upsert(ctx context.Context, user User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := r.now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.users[user.ID]
	if !ok {
		stored = User{ID: user.ID, CreatedAt: now}
	}
	stored.Email = user.Email
	stored.Provider = user.Provider
	if user.DisplayName != "" {
		stored.DisplayName = user.DisplayName
	}
	if user.PhotoURL != "" {
		stored.PhotoURL = user.PhotoURL
	}
	stored.LastLoginAt = now
	r.users[user.ID] = stored
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, userID string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if user, ok := r.users[userID]; ok {
		return user, nil
	}
	return User{}, ErrNotFound
}

var _ Repo = (*MemoryRepo)(nil)
