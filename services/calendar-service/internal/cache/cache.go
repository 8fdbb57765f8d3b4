package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// AvailabilityCache is a Redis read cache for resolved availability and slot
// responses. Every calendar has a version counter; writes bump it, which
// shifts the cache keys of all cached ranges instead of scanning for them.
// Stale entries expire via TTL.
type AvailabilityCache struct {
	rdb    *redis.Client
	logger *slog.Logger
	ttl    time.Duration
}

func New(rdb *redis.Client, logger *slog.Logger, ttl time.Duration) *AvailabilityCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &AvailabilityCache{rdb: rdb, logger: logger, ttl: ttl}
}

// Enabled reports whether a Redis client was configured; the cache degrades
// to a no-op without one.
func (c *AvailabilityCache) Enabled() bool {
	return c != nil && c.rdb != nil
}

func (c *AvailabilityCache) Get(ctx context.Context, calendarID, key string) ([]byte, bool) {
	if !c.Enabled() {
		return nil, false
	}
	full, err := c.entryKey(ctx, calendarID, key)
	if err != nil {
		return nil, false
	}
	payload, err := c.rdb.Get(ctx, full).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("availability cache read failed", "err", err)
		}
		return nil, false
	}
	return payload, true
}

func (c *AvailabilityCache) Set(ctx context.Context, calendarID, key string, payload []byte) {
	if !c.Enabled() {
		return
	}
	full, err := c.entryKey(ctx, calendarID, key)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, full, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("availability cache write failed", "err", err)
	}
}

// Bump invalidates all cached entries for the calendar by advancing its
// version counter.
func (c *AvailabilityCache) Bump(ctx context.Context, calendarID string) {
	if !c.Enabled() {
		return
	}
	if err := c.rdb.Incr(ctx, versionKey(calendarID)).Err(); err != nil {
		c.logger.Warn("availability cache bump failed", "err", err)
	}
}

func (c *AvailabilityCache) entryKey(ctx context.Context, calendarID, key string) (string, error) {
	ver, err := c.rdb.Get(ctx, versionKey(calendarID)).Int64()
	if err != nil && err != redis.Nil {
		return "", err
	}
	return fmt.Sprintf("avail:%s:v%d:%s", calendarID, ver, key), nil
}

func versionKey(calendarID string) string {
	return "avail:ver:" + calendarID
}
