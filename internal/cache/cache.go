// Package cache stores rendered manifest bundles in Redis so the render service can
// answer repeated requests without rebuilding them.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pbar1/ssh-benchmark/internal/metrics"
	"github.com/pbar1/ssh-benchmark/internal/topology"
)

// NewClient creates a Redis client from a redis:// URL
func NewClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opt.MaxRetries = 1
	opt.DialTimeout = 2 * time.Second
	return redis.NewClient(opt), nil
}

// BundleCache wraps a Redis client. A BundleCache without a client is disabled: every
// lookup misses and nothing is stored.
type BundleCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// New creates a bundle cache. client may be nil.
func New(client *redis.Client, ttl time.Duration, logger *zap.Logger) *BundleCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BundleCache{client: client, ttl: ttl, logger: logger}
}

// Enabled reports whether the cache is backed by Redis.
func (c *BundleCache) Enabled() bool {
	return c != nil && c.client != nil
}

// Ping performs a health check on the Redis connection
func (c *BundleCache) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *BundleCache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Close()
}

// Get returns the cached bundle for cfg.
func (c *BundleCache) Get(ctx context.Context, cfg topology.ScaleConfiguration) ([]byte, bool) {
	if !c.Enabled() {
		return nil, false
	}
	key, err := BundleKey(cfg)
	if err != nil {
		c.logger.Warn("cache key failed", zap.Error(err))
		metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
		return nil, false
	}

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
		return nil, false
	case err != nil:
		c.logger.Warn("cache lookup failed", zap.String("key", key), zap.Error(err))
		metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
		return nil, false
	}

	metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
	return data, true
}

// Set stores bundle for cfg. Failures are logged, never returned.
func (c *BundleCache) Set(ctx context.Context, cfg topology.ScaleConfiguration, bundle []byte) {
	if !c.Enabled() {
		return
	}
	key, err := BundleKey(cfg)
	if err != nil {
		c.logger.Warn("cache key failed", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, key, bundle, c.ttl).Err(); err != nil {
		c.logger.Warn("cache store failed", zap.String("key", key), zap.Error(err))
		return
	}
	c.logger.Debug("bundle cached", zap.String("key", key), zap.Int("bytes", len(bundle)), zap.Duration("ttl", c.ttl))
}

// Fetch returns the cached bundle for cfg, calling render and storing its result on a
// miss. The bool reports a cache hit.
func (c *BundleCache) Fetch(ctx context.Context, cfg topology.ScaleConfiguration, render func() ([]byte, error)) ([]byte, bool, error) {
	if data, ok := c.Get(ctx, cfg); ok {
		return data, true, nil
	}
	data, err := render()
	if err != nil {
		return nil, false, err
	}
	c.Set(ctx, cfg, data)
	return data, false, nil
}
