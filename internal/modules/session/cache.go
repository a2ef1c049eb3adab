// README: Redis cache of resolved sessions, keyed by role and token.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"isuride/internal/types"
)

const keyPrefix = "session:"

type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCache(rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

func cacheKey(role Role, token string) string {
	return keyPrefix + string(role) + ":" + token
}

// Get returns the cached id, or "" on a miss.
func (c *Cache) Get(ctx context.Context, role Role, token string) (types.ID, error) {
	v, err := c.rdb.Get(ctx, cacheKey(role, token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return types.ID(v), nil
}

func (c *Cache) Set(ctx context.Context, p Principal, token string) error {
	return c.rdb.Set(ctx, cacheKey(p.Role, token), string(p.ID), c.ttl).Err()
}

// Flush removes every cached session.
func (c *Cache) Flush(ctx context.Context) error {
	iter := c.rdb.Scan(ctx, 0, keyPrefix+"*", 256).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}
