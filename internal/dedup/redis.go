package dedup

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "bridge:dedup:"

// RedisBackend shares dedup entries between bridge instances. Expiry is left
// to Redis key TTLs set to the window.
type RedisBackend struct {
	client redis.Cmdable
	prefix string
}

// NewRedisBackend wraps a go-redis client.
func NewRedisBackend(client redis.Cmdable, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisBackend{client: client, prefix: prefix}
}

// Seen implements Backend with SET NX PX.
func (r *RedisBackend) Seen(ctx context.Context, key string, now time.Time, window time.Duration) (bool, error) {
	stored, err := r.client.SetNX(ctx, r.prefix+key, now.UnixMilli(), window).Result()
	if err != nil {
		return false, err
	}
	return !stored, nil
}

// Forget implements Backend.
func (r *RedisBackend) Forget(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}
