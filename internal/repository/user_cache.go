package repository

import (
	"sync"
	"time"

	"github.com/spec-kit/ticket-bridge/internal/domain"
)

// UserCache holds one snapshot of the ticketing user directory. The snapshot
// is replaced whole; it is stale when its key differs from the requested
// key or its TTL has elapsed.
type UserCache struct {
	mu        sync.RWMutex
	users     []domain.User
	fetchedAt time.Time
	key       string
	ttl       time.Duration
	now       func() time.Time
}

// NewUserCache creates an empty cache.
func NewUserCache(ttl time.Duration) *UserCache {
	return &UserCache{ttl: ttl, now: time.Now}
}

// Get returns the snapshot when it is fresh for key.
func (c *UserCache) Get(key string) ([]domain.User, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.fetchedAt.IsZero() || c.key != key {
		return nil, false
	}
	if c.ttl > 0 && c.now().Sub(c.fetchedAt) >= c.ttl {
		return nil, false
	}
	return append([]domain.User(nil), c.users...), true
}

// Store replaces the snapshot.
func (c *UserCache) Store(key string, users []domain.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users = append([]domain.User(nil), users...)
	c.key = key
	c.fetchedAt = c.now()
}

// Invalidate drops the snapshot.
func (c *UserCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users = nil
	c.fetchedAt = time.Time{}
	c.key = ""
}

// Size returns the number of cached users.
func (c *UserCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.users)
}
