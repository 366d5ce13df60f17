// Package cache is a Redis cache-aside layer for ranking responses.
//
// Keys are namespaced by a version number stored in Redis. Invalidate bumps the
// version, so every entry written before it becomes unreachable at once and
// ages out through its TTL. A request reads the version once and passes it to
// both Get and Set, so a response built before an invalidation is never stored
// under the newer version.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Taichi-iskw/yt-rank/internal/logger"
	"github.com/Taichi-iskw/yt-rank/internal/telemetry"
)

const (
	keyPrefix  = "ytrank:ranking"
	versionKey = keyPrefix + ":version"

	// DefaultTTL applies when no TTL is configured
	DefaultTTL = 5 * time.Minute
)

// Cache wraps a Redis client. A Cache with a nil client, and a nil *Cache,
// turn every operation into a no-op.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
	tel *telemetry.Telemetry
}

// New connects to redisURL. An empty URL, an invalid URL or a failed ping
// returns a disabled cache rather than an error.
func New(redisURL string, ttl time.Duration, tel *telemetry.Telemetry) *Cache {
	log := logger.With("cache")

	if redisURL == "" {
		log.Info().Msg("no redis URL configured, caching disabled")
		return &Cache{ttl: ttl, tel: tel}
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Warn().Err(err).Msg("invalid redis URL, caching disabled")
		return &Cache{ttl: ttl, tel: tel}
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis connection failed, caching disabled")
		_ = rdb.Close()
		return &Cache{ttl: ttl, tel: tel}
	}

	log.Info().Msg("redis connected, caching enabled")
	return NewWithClient(rdb, ttl, tel)
}

// NewWithClient wraps an existing client
func NewWithClient(rdb *redis.Client, ttl time.Duration, tel *telemetry.Telemetry) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{rdb: rdb, ttl: ttl, tel: tel}
}

// Enabled reports whether a Redis client is attached
func (c *Cache) Enabled() bool {
	return c != nil && c.rdb != nil
}

// Version returns the current key version; 0 when none was ever set or the
// cache is disabled
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if !c.Enabled() {
		return 0, nil
	}

	version, err := c.rdb.Get(ctx, versionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("cache version: %w", err)
	}
	return version, nil
}

// Get decodes the value cached for key under version into dest. It reports
// false on a miss or when the cache is disabled.
func (c *Cache) Get(ctx context.Context, version int64, key string, dest any) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}

	data, err := c.rdb.Get(ctx, formatKey(version, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		c.tel.CacheMiss()
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		// A payload from an older binary is treated as a miss
		c.tel.CacheMiss()
		return false, nil
	}

	c.tel.CacheHit()
	return true, nil
}

// Set stores value under key and version for the configured TTL
func (c *Cache) Set(ctx context.Context, version int64, key string, value any) error {
	if !c.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}

	if err := c.rdb.Set(ctx, formatKey(version, key), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Invalidate drops every cached ranking response by bumping the key version
func (c *Cache) Invalidate(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	if err := c.rdb.Incr(ctx, versionKey).Err(); err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}

// Ping checks the connection; a disabled cache is always healthy
func (c *Cache) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}

// Close shuts down the Redis connection
func (c *Cache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.rdb.Close()
}

func formatKey(version int64, key string) string {
	return fmt.Sprintf("%s:v%d:%s", keyPrefix, version, key)
}
