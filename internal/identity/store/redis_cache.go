// Package store shares resolution results between processes.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"idsearch/internal/identity/models"
	pstrings "idsearch/pkg/platform/strings"
)

const (
	// KeyPrefix namespaces every cached resolution.
	KeyPrefix  = "idsearch:resolve:"
	DefaultTTL = 5 * time.Minute
)

// Resolver is the operation being cached.
type Resolver interface {
	Resolve(ctx context.Context, query string) ([]models.Identity, error)
}

// RedisCache caches successful resolutions of the wrapped resolver in Redis.
// Redis problems never fail a resolution; they are logged and bypassed.
type RedisCache struct {
	next   Resolver
	client redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

// Option configures a RedisCache.
type Option func(*RedisCache)

func WithTTL(ttl time.Duration) Option {
	return func(c *RedisCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *RedisCache) {
		c.logger = logger
	}
}

// NewRedisCache wraps next.
func NewRedisCache(next Resolver, client redis.Cmdable, opts ...Option) (*RedisCache, error) {
	if next == nil {
		return nil, errors.New("resolver is required")
	}
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	c := &RedisCache{
		next:   next,
		client: client,
		ttl:    DefaultTTL,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Key returns the Redis key a query is cached under.
func Key(query string) string {
	return KeyPrefix + pstrings.Normalize(query)
}

// Resolve answers from Redis when possible and otherwise asks the wrapped
// resolver. Failed resolutions are not cached.
func (c *RedisCache) Resolve(ctx context.Context, query string) ([]models.Identity, error) {
	if pstrings.Normalize(query) == "" {
		return c.next.Resolve(ctx, query)
	}
	key := Key(query)

	if results, ok := c.lookup(ctx, key); ok {
		return results, nil
	}

	results, err := c.next.Resolve(ctx, query)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(results)
	if err != nil {
		c.logger.WarnContext(ctx, "encode cached identities", "key", key, "error", err)
		return results, nil
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "redis cache write failed", "key", key, "error", err)
	}
	return results, nil
}

func (c *RedisCache) lookup(ctx context.Context, key string) ([]models.Identity, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.logger.WarnContext(ctx, "redis cache read failed", "key", key, "error", err)
		return nil, false
	}

	var results []models.Identity
	if err := json.Unmarshal(raw, &results); err != nil {
		c.logger.WarnContext(ctx, "discarding unreadable cache entry", "key", key, "error", err)
		c.client.Del(ctx, key)
		return nil, false
	}
	if results == nil {
		results = []models.Identity{}
	}
	return results, true
}
