// Package cache holds the optional Redis-backed campaign view cache. Every
// method is a no-op on a nil *CampaignCache, which is what callers get when
// Redis is not configured.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// NewClient connects to url, returning nil when url is empty.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

// CampaignCache stores rendered campaign views. A cached view may be up to
// the configured TTL stale and never outlives the campaign's deadline, so a
// cached ACTIVE campaign is never served after it should have closed.
type CampaignCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewCampaignCache(rdb redis.Cmdable, ttl time.Duration) *CampaignCache {
	if rdb == nil || ttl <= 0 {
		return nil
	}

	return &CampaignCache{rdb: rdb, ttl: ttl}
}

func key(id uuid.UUID) string {
	return "campaign:view:" + id.String()
}

func (c *CampaignCache) Get(ctx context.Context, id uuid.UUID) ([]byte, bool) {
	if c == nil {
		return nil, false
	}

	b, err := c.rdb.Get(ctx, key(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("campaign cache get failed", "campaign_id", id, "error", err)
		}

		return nil, false
	}

	return b, true
}

func (c *CampaignCache) Set(ctx context.Context, id uuid.UUID, view []byte, deadline, now time.Time) {
	if c == nil {
		return
	}

	ttl := TTL(c.ttl, deadline, now)
	if ttl <= 0 {
		return
	}

	if err := c.rdb.Set(ctx, key(id), view, ttl).Err(); err != nil {
		slog.Warn("campaign cache set failed", "campaign_id", id, "error", err)
	}
}

func (c *CampaignCache) Invalidate(ctx context.Context, id uuid.UUID) {
	if c == nil {
		return
	}

	if err := c.rdb.Del(ctx, key(id)).Err(); err != nil {
		slog.Warn("campaign cache invalidate failed", "campaign_id", id, "error", err)
	}
}

// TTL is the lifetime of a view cached at now: at most limit, and never past
// the deadline. Terminal campaigns pass a zero deadline and get the full limit.
func TTL(limit time.Duration, deadline, now time.Time) time.Duration {
	if deadline.IsZero() {
		return limit
	}

	return min(limit, deadline.Sub(now))
}
