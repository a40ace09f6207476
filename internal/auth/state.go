package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// StateStore keeps OAuth state values, each with the UI path to return to,
// until the callback consumes them.
type StateStore interface {
	Put(ctx context.Context, state, next string, ttl time.Duration) error
	// Consume removes state and returns its path. ok is false when the state
	// was never issued or has expired.
	Consume(ctx context.Context, state string) (next string, ok bool, err error)
}

type pendingState struct {
	next    string
	expires time.Time
}

type memoryStateStore struct {
	mu    sync.Mutex
	items map[string]pendingState
	now   func() time.Time
}

// NewMemoryStateStore returns a process-local StateStore.
func NewMemoryStateStore() StateStore {
	return &memoryStateStore{items: make(map[string]pendingState), now: time.Now}
}

func (s *memoryStateStore) Put(_ context.Context, state, next string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, p := range s.items {
		if now.After(p.expires) {
			delete(s.items, k)
		}
	}
	s.items[state] = pendingState{next: next, expires: now.Add(ttl)}
	return nil
}

func (s *memoryStateStore) Consume(_ context.Context, state string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.items[state]
	if !ok {
		return "", false, nil
	}
	delete(s.items, state)
	if s.now().After(p.expires) {
		return "", false, nil
	}
	return p.next, true, nil
}

type redisStateStore struct {
	client *redis.Client
}

// NewRedisStateStore stores OAuth state in Redis so any replica can serve the callback.
func NewRedisStateStore(client *redis.Client) StateStore {
	return &redisStateStore{client: client}
}

func stateKey(state string) string { return "oauth:state:" + state }

func (s *redisStateStore) Put(ctx context.Context, state, next string, ttl time.Duration) error {
	return s.client.Set(ctx, stateKey(state), next, ttl).Err()
}

func (s *redisStateStore) Consume(ctx context.Context, state string) (string, bool, error) {
	next, err := s.client.GetDel(ctx, stateKey(state)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return next, true, nil
}
