// Package cache provides a Redis read-through cache for list endpoints.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/weblog/api/config"
	"github.com/weblog/api/internal/metrics"
)

const (
	PostsAllKey = "posts:all"
	AuthorsKey  = "users:all"
)

func PostsByCategoryKey(category string) string {
	return "posts:category:" + category
}

func PostsByAuthorKey(userID int) string {
	return fmt.Sprintf("posts:author:%d", userID)
}

// Cache wraps a Redis client. A nil *Cache, or one without a client, passes
// every lookup straight through to the loader.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func New(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	return &Cache{client: client, ttl: ttl, logger: logger}
}

// Connect dials cfg.URL. An empty URL disables caching and returns a nil
// *Cache.
func Connect(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (*Cache, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return New(client, cfg.TTL, logger), nil
}

// Aside returns the cached value for key in dest, or calls load to fill dest
// and stores the result. Redis failures are logged and never returned.
func (c *Cache) Aside(ctx context.Context, key string, dest any, load func() error) error {
	if c == nil || c.client == nil {
		return load()
	}

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if jsonErr := json.Unmarshal(raw, dest); jsonErr == nil {
			metrics.CacheLookups.WithLabelValues("hit").Inc()
			return nil
		}
		metrics.CacheLookups.WithLabelValues("error").Inc()
	case errors.Is(err, redis.Nil):
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	default:
		metrics.CacheLookups.WithLabelValues("error").Inc()
		c.logger.WarnContext(ctx, "cache get failed", "key", key, "error", err)
	}

	if err := load(); err != nil {
		return err
	}

	data, err := json.Marshal(dest)
	if err != nil {
		return nil
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "cache set failed", "key", key, "error", err)
	}
	return nil
}

// Invalidate drops keys. Failures are logged.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if c == nil || c.client == nil || len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.WarnContext(ctx, "cache invalidate failed", "keys", keys, "error", err)
	}
}

// Ping reports whether Redis is reachable. A disabled cache is healthy.
func (c *Cache) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
