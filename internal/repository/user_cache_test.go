package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/ticket-bridge/internal/domain"
)

func TestUserCacheFreshness(t *testing.T) {
	now := time.Date(2026, 5, 5, 12, 0, 0, 0, time.UTC)
	cache := NewUserCache(10 * time.Minute)
	cache.now = func() time.Time { return now }

	_, ok := cache.Get("tenant-a")
	assert.False(t, ok, "empty cache is never fresh")

	cache.Store("tenant-a", []domain.User{{ID: "u1", Email: "a@x.com"}})
	users, ok := cache.Get("tenant-a")
	assert.True(t, ok)
	assert.Len(t, users, 1)

	_, ok = cache.Get("tenant-b")
	assert.False(t, ok, "different key invalidates")

	now = now.Add(10 * time.Minute)
	_, ok = cache.Get("tenant-a")
	assert.False(t, ok, "ttl elapsed")
}

func TestUserCacheInvalidate(t *testing.T) {
	cache := NewUserCache(time.Hour)
	cache.Store("k", []domain.User{{ID: "u1"}, {ID: "u2"}})
	assert.Equal(t, 2, cache.Size())

	cache.Invalidate()
	assert.Zero(t, cache.Size())
	_, ok := cache.Get("k")
	assert.False(t, ok)
}
