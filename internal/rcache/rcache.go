package rcache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zipgallery/zipgallery/internal/model"
)

// Cache remembers published gallery URLs keyed by requester and archive
// digest, so re-submitting the same archive returns the existing page
// without uploading anything.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New creates a Cache writing entries with the given TTL.
func New(rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

// Lookup returns the cached gallery URL, or "" on a miss.
func (c *Cache) Lookup(ctx context.Context, requesterID, digest string) (string, error) {
	val, err := c.rdb.Get(ctx, model.GalleryCacheKey(requesterID, digest)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("cache lookup: %w", err)
	}
	return val, nil
}

// Store caches a published gallery URL.
func (c *Cache) Store(ctx context.Context, requesterID, digest, url string) error {
	if err := c.rdb.Set(ctx, model.GalleryCacheKey(requesterID, digest), url, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache store: %w", err)
	}
	return nil
}
