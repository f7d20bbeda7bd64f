package cache

import (
	"context"
	"io"
	"path"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/81adi8/erp-sub005/pkg/observability"
)

// TieredCache is a read-through cache with three tiers: a process-local LRU
// (L1, sub-second TTL), a distributed Store (L2), and the caller-supplied
// fetch function (L3, the source of truth).
//
// Any L2 failure is logged and treated as a miss or no-op: cache
// unavailability degrades to direct-store latency, never to a hard failure.
type TieredCache struct {
	l1      *lru.LRU[string, string]
	store   Store
	logger  *observability.Logger
	metrics *observability.Metrics
}

// Fetcher loads a value from the backing store on a full cache miss.
type Fetcher func(ctx context.Context) (string, error)

// NewTieredCache creates a tiered cache. l1Size bounds the L1 entry count
// (FIFO-ish eviction on overflow via LRU); l1TTL must not exceed any L2 TTL
// used with this cache.
func NewTieredCache(store Store, l1Size int, l1TTL time.Duration, logger *observability.Logger, metrics *observability.Metrics) *TieredCache {
	if l1Size <= 0 {
		l1Size = 1024
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, io.Discard)
	}

	return &TieredCache{
		l1:      lru.NewLRU[string, string](l1Size, nil, l1TTL),
		store:   store,
		logger:  logger,
		metrics: metrics,
	}
}

// Get returns the cached value for key, checking L1 then L2. An L2 error is
// logged and reported as a miss.
func (c *TieredCache) Get(ctx context.Context, key string) (string, bool) {
	if val, ok := c.l1.Get(key); ok {
		c.recordHit("l1", key)
		return val, true
	}
	c.recordMiss("l1", key)

	val, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.recordError("l2", "get")
		c.logger.WithError(err).WithField("key", key).Warn("cache store get failed, treating as miss")
		return "", false
	}
	if !ok {
		c.recordMiss("l2", key)
		return "", false
	}

	c.recordHit("l2", key)
	c.l1.Add(key, val)
	return val, true
}

// Set writes the value through L2 then L1, in that order, so a crash between
// the two leaves a temporarily cold L1 but never a missing L2 entry.
func (c *TieredCache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if err := c.store.Set(ctx, key, value, ttl); err != nil {
		c.recordError("l2", "set")
		c.logger.WithError(err).WithField("key", key).Warn("cache store set failed")
	}
	c.l1.Add(key, value)
}

// GetOrSet returns the cached value for key, invoking fetch on a full miss
// and populating L2 then L1 with the result. Only the fetcher's error is ever
// propagated to the caller.
func (c *TieredCache) GetOrSet(ctx context.Context, key string, ttl time.Duration, fetch Fetcher) (string, error) {
	if val, ok := c.Get(ctx, key); ok {
		return val, nil
	}

	val, err := fetch(ctx)
	if err != nil {
		return "", err
	}

	c.Set(ctx, key, val, ttl)
	return val, nil
}

// Delete removes the given keys from both tiers.
func (c *TieredCache) Delete(ctx context.Context, keys ...string) {
	for _, key := range keys {
		c.l1.Remove(key)
	}
	if err := c.store.Del(ctx, keys...); err != nil {
		c.recordError("l2", "del")
		c.logger.WithError(err).Warn("cache store delete failed")
	}
}

// DeletePattern removes every key matching the glob pattern from both tiers,
// using a cursor-based scan on L2. It returns the number of L2 keys deleted.
func (c *TieredCache) DeletePattern(ctx context.Context, pattern string) int {
	for _, key := range c.l1.Keys() {
		if matched, _ := path.Match(pattern, key); matched {
			c.l1.Remove(key)
		}
	}

	count := 0
	err := c.store.Scan(ctx, pattern, func(key string) error {
		if err := c.store.Del(ctx, key); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		c.recordError("l2", "scan")
		c.logger.WithError(err).WithField("pattern", pattern).Warn("cache pattern delete failed")
	}
	return count
}

// Store exposes the L2 store for components that need its primitives
// (atomic consume, counters).
func (c *TieredCache) Store() Store {
	return c.store
}

// PurgeLocal drops every L1 entry. Used after bulk invalidations where
// per-key matching is not worth the walk.
func (c *TieredCache) PurgeLocal() {
	c.l1.Purge()
}

func namespace(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return "other"
}

func (c *TieredCache) recordHit(tier, key string) {
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.WithLabelValues(tier, namespace(key)).Inc()
	}
}

func (c *TieredCache) recordMiss(tier, key string) {
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.WithLabelValues(tier, namespace(key)).Inc()
	}
}

func (c *TieredCache) recordError(tier, op string) {
	if c.metrics != nil {
		c.metrics.CacheErrorsTotal.WithLabelValues(tier, op).Inc()
	}
}
