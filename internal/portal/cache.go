package portal

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// PageCache short-lived Redis cache of detail pages keyed by remote id.
// Best effort only: a cache failure degrades to a portal fetch, never to a
// run failure.
type PageCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewPageCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *PageCache {
	return &PageCache{client: client, ttl: ttl, logger: logger}
}

func pageKey(remoteID int64) string {
	return fmt.Sprintf("cehupo:page:%d", remoteID)
}

// Get returns a cached page and whether it was present.
func (c *PageCache) Get(ctx context.Context, remoteID int64) (string, bool) {
	val, err := c.client.Get(ctx, pageKey(remoteID)).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug("page cache read failed", zap.Int64("remote_id", remoteID), zap.Error(err))
		}
		return "", false
	}
	return val, true
}

// Set stores a fetched page with the configured TTL.
func (c *PageCache) Set(ctx context.Context, remoteID int64, page string) {
	if err := c.client.Set(ctx, pageKey(remoteID), page, c.ttl).Err(); err != nil {
		c.logger.Debug("page cache write failed", zap.Int64("remote_id", remoteID), zap.Error(err))
	}
}
