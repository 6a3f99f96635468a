// Package cache provides a fail-open Redis cache-aside layer.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"blogapi/observability"

	"github.com/redis/go-redis/v9"
)

const (
	TagsTTL       = 5 * time.Minute
	PopularTTL    = time.Minute
	keyPrefix     = "blog:"
	PopularPrefix = keyPrefix + "popular:"
)

func TagsKey() string {
	return keyPrefix + "tags"
}

func PopularKey(timeframe string, limit int) string {
	return fmt.Sprintf("%s%s:%d", PopularPrefix, timeframe, limit)
}

// Cache is safe to use when nil or disconnected; every call then falls through.
type Cache struct {
	client *redis.Client
}

// New connects to addr, which is either host:port or a redis:// URL. An empty
// or unreachable address yields a disabled cache rather than an error.
func New(addr string) *Cache {
	if addr == "" {
		return &Cache{}
	}

	var opts *redis.Options
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			observability.Logger().Warn("invalid REDIS_URL, continuing without cache", "error", err)
			return &Cache{}
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr}
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		observability.Logger().Warn("redis unreachable, continuing without cache", "error", err)
		_ = client.Close()
		return &Cache{}
	}

	observability.Logger().Info("redis connected")
	return &Cache{client: client}
}

func NewWithClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Enabled() bool {
	return c != nil && c.client != nil
}

// Aside reads key into dest, or on a miss calls fetch (which must fill dest)
// and stores the result for ttl. Redis failures never fail the call.
func (c *Cache) Aside(ctx context.Context, key string, dest interface{}, ttl time.Duration, fetch func() error) error {
	if !c.Enabled() {
		return fetch()
	}

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if jsonErr := json.Unmarshal(raw, dest); jsonErr == nil {
			return nil
		}
		observability.FromContext(ctx).Warn("discarding undecodable cache entry", "key", key)
	case !errors.Is(err, redis.Nil):
		observability.FromContext(ctx).Warn("cache read failed", "key", key, "error", err)
	}

	if err := fetch(); err != nil {
		return err
	}

	payload, err := json.Marshal(dest)
	if err != nil {
		return nil
	}
	if err := c.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		observability.FromContext(ctx).Warn("cache write failed", "key", key, "error", err)
	}
	return nil
}

func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if !c.Enabled() || len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		observability.FromContext(ctx).Warn("cache invalidation failed", "keys", keys, "error", err)
	}
}

// InvalidatePrefix deletes every key starting with prefix.
func (c *Cache) InvalidatePrefix(ctx context.Context, prefix string) {
	if !c.Enabled() {
		return
	}

	iter := c.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		observability.FromContext(ctx).Warn("cache scan failed", "prefix", prefix, "error", err)
		return
	}
	c.Invalidate(ctx, keys...)
}

func (c *Cache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Close()
}
