package auth

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// defaultRevocationTTL applies when a token carries no expiry.
const defaultRevocationTTL = 30 * 24 * time.Hour

// RevocationStore remembers signed-out token ids until the tokens expire.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type memoryRevocations struct {
	mu    sync.Mutex
	items map[string]time.Time
	now   func() time.Time
}

// NewMemoryRevocations returns a process-local RevocationStore.
func NewMemoryRevocations() RevocationStore {
	return &memoryRevocations{items: make(map[string]time.Time), now: time.Now}
}

func (m *memoryRevocations) Revoke(_ context.Context, tokenID string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if expiresAt.IsZero() {
		expiresAt = now.Add(defaultRevocationTTL)
	}
	for id, exp := range m.items {
		if now.After(exp) {
			delete(m.items, id)
		}
	}
	m.items[tokenID] = expiresAt
	return nil
}

func (m *memoryRevocations) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.items[tokenID]
	return ok && m.now().Before(exp), nil
}

type redisRevocations struct {
	client *redis.Client
}

// NewRedisRevocations keeps the revoked token ids in Redis with the token's remaining lifetime.
func NewRedisRevocations(client *redis.Client) RevocationStore {
	return &redisRevocations{client: client}
}

func revokedKey(tokenID string) string {
	return "blacklist:jti:" + tokenID
}

func (r *redisRevocations) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if expiresAt.IsZero() || ttl <= 0 {
		ttl = defaultRevocationTTL
	}
	return r.client.Set(ctx, revokedKey(tokenID), "1", ttl).Err()
}

func (r *redisRevocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, revokedKey(tokenID)).Result()
	return n > 0, err
}
