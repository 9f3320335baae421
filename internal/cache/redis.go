// Package cache keeps rendered list projections in Redis.
//
// Keys embed a per-kind generation number. Every committed change bumps the
// generation, so stale entries are simply never read again and expire by TTL.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sujalbistaa/slidont/internal/moderation"
	"github.com/sujalbistaa/slidont/pkg/logger"
)

const keyPrefix = "slidont"

// Cache is a best-effort list cache. A nil *Cache is valid and caches nothing.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New connects to the Redis instance at url and verifies it with a ping.
func New(ctx context.Context, url string, ttl time.Duration) (*Cache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	logger.Info(ctx, "Redis client initialized", "pool_size", opts.PoolSize, "ttl", ttl.String())
	return NewWithClient(rdb, ttl), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

func generationKey(kind string) string {
	return fmt.Sprintf("%s:gen:%s", keyPrefix, kind)
}

func listKey(kind, slug, view string, gen int64) string {
	return fmt.Sprintf("%s:list:%s:%s:%s:g%d", keyPrefix, kind, slug, view, gen)
}

func (c *Cache) generation(ctx context.Context, kind string) (int64, error) {
	s, err := c.rdb.Get(ctx, generationKey(kind)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(s, 10, 64)
}

// GetList returns the current generation of kind and, on a hit, decodes the
// cached projection into dst. Any Redis error is a miss with generation -1.
func (c *Cache) GetList(ctx context.Context, kind, slug, view string, dst any) (int64, bool) {
	if c == nil {
		return 0, false
	}
	gen, err := c.generation(ctx, kind)
	if err != nil {
		logger.Debug(ctx, "Redis get generation failed", "error", err, "kind", kind)
		return -1, false
	}
	b, err := c.rdb.Get(ctx, listKey(kind, slug, view, gen)).Bytes()
	if errors.Is(err, redis.Nil) {
		return gen, false
	}
	if err != nil {
		logger.Debug(ctx, "Redis get list failed", "error", err, "kind", kind)
		return gen, false
	}
	if err := json.Unmarshal(b, dst); err != nil {
		logger.Debug(ctx, "Redis unmarshal list failed", "error", err, "kind", kind)
		return gen, false
	}
	return gen, true
}

// SetList stores a projection under gen, the generation observed before it
// was loaded. A write that lands in between moves readers past gen, so the
// stale projection is never served.
func (c *Cache) SetList(ctx context.Context, kind, slug, view string, gen int64, v any) {
	if c == nil || gen < 0 {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		logger.Debug(ctx, "Marshal list for cache failed", "error", err)
		return
	}
	if err := c.rdb.Set(ctx, listKey(kind, slug, view, gen), b, c.ttl).Err(); err != nil {
		logger.Debug(ctx, "Redis set list failed", "error", err, "kind", kind)
	}
}

// Invalidate moves kind to a new generation.
func (c *Cache) Invalidate(ctx context.Context, kind string) {
	if c == nil {
		return
	}
	if err := c.rdb.Incr(ctx, generationKey(kind)).Err(); err != nil {
		logger.Warn(ctx, "Redis invalidate failed", "error", err, "kind", kind)
	}
}

// Notify invalidates the projections of the changed kind.
func (c *Cache) Notify(ctx context.Context, ch moderation.Change) {
	c.Invalidate(ctx, ch.Kind)
}

func (c *Cache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}
