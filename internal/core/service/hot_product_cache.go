package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/rl1809/hot-product/internal/core/domain"
	"github.com/rl1809/hot-product/internal/metrics"
	"github.com/rl1809/hot-product/internal/port"
)

const (
	hotProductKeyPrefix  = "hot_product:"
	hotProductLockPrefix = "hot_product_lock:"

	// nullMarker is cached for ids confirmed absent in the store
	nullMarker = "<null>"

	unlockTimeout       = time.Second
	fallbackReadTimeout = 2 * time.Second
)

type HotCacheConfig struct {
	HotIDs    []int64
	TTL       time.Duration
	TTLJitter time.Duration
	NullTTL   time.Duration
	LockWait  time.Duration
	LockHold  time.Duration
	Backoff   time.Duration
}

func DefaultHotCacheConfig() HotCacheConfig {
	return HotCacheConfig{
		HotIDs:    []int64{39600},
		TTL:       10 * time.Minute,
		TTLJitter: 2 * time.Minute,
		NullTTL:   15 * time.Minute,
		LockWait:  time.Second,
		LockHold:  5 * time.Second,
		Backoff:   50 * time.Millisecond,
	}
}

type lookupResult int

const (
	lookupMiss lookupResult = iota
	lookupHit
	lookupNull
)

// HotProductCache is a read-through cache for a configured set of hot product
// ids. Concurrent misses on one id are funneled through a distributed lock so
// that only the lock holder reads the store.
type HotProductCache struct {
	store   port.ProductRepository
	cache   port.CacheRepository
	cfg     HotCacheConfig
	hot     map[int64]struct{}
	log     zerolog.Logger
	metrics *metrics.Metrics
}

func NewHotProductCache(store port.ProductRepository, cache port.CacheRepository, cfg HotCacheConfig, logger zerolog.Logger, m *metrics.Metrics) *HotProductCache {
	hot := make(map[int64]struct{}, len(cfg.HotIDs))
	for _, id := range cfg.HotIDs {
		hot[id] = struct{}{}
	}
	if m == nil {
		m = metrics.Nop()
	}
	return &HotProductCache{
		store:   store,
		cache:   cache,
		cfg:     cfg,
		hot:     hot,
		log:     logger.With().Str("component", "hot_product_cache").Logger(),
		metrics: m,
	}
}

func (c *HotProductCache) IsHot(id int64) bool {
	_, ok := c.hot[id]
	return ok
}

// Get returns the product or nil when it does not exist. Cache and lock
// failures degrade to a direct store read.
func (c *HotProductCache) Get(ctx context.Context, id int64) (*domain.Product, error) {
	if !c.IsHot(id) {
		return c.readStore(ctx, id, "bypass")
	}

	key := productKey(id)
	if p, res := c.lookup(ctx, key); res != lookupMiss {
		return p, nil
	}

	lock := lockKey(id)
	token, ok, err := c.cache.TryLock(ctx, lock, c.cfg.LockWait, c.cfg.LockHold)
	if err != nil {
		c.metrics.CacheErrors.WithLabelValues("lock").Inc()
		c.log.Warn().Err(err).Int64("product_id", id).Msg("lock wait interrupted, reading store directly")
		return c.fallbackRead(ctx, id)
	}
	if !ok {
		return c.afterLockTimeout(ctx, id, key)
	}
	defer c.unlock(ctx, lock, token)

	// another holder may have filled the entry while we waited
	if p, res := c.lookup(ctx, key); res != lookupMiss {
		return p, nil
	}

	p, err := c.readStore(ctx, id, "locked")
	if err != nil {
		return nil, err
	}
	if p == nil {
		c.put(ctx, key, []byte(nullMarker), c.withJitter(c.cfg.NullTTL))
		return nil, nil
	}

	data, err := json.Marshal(p)
	if err != nil {
		c.log.Error().Err(err).Int64("product_id", id).Msg("encode product for cache")
		return p, nil
	}
	c.put(ctx, key, data, c.withJitter(c.cfg.TTL))
	return p, nil
}

// Invalidate drops the cached entry for id. Failures are logged only.
func (c *HotProductCache) Invalidate(ctx context.Context, id int64) {
	if err := c.cache.Delete(ctx, productKey(id)); err != nil {
		c.metrics.CacheErrors.WithLabelValues("cache").Inc()
		c.log.Warn().Err(fmt.Errorf("%w: %w", ErrCacheUnavailable, err)).Int64("product_id", id).Msg("invalidate product cache failed")
		return
	}
	c.log.Debug().Int64("product_id", id).Msg("product cache invalidated")
}

// Warm loads every hot id through the cache.
func (c *HotProductCache) Warm(ctx context.Context) {
	for id := range c.hot {
		p, err := c.Get(ctx, id)
		if err != nil {
			c.log.Warn().Err(err).Int64("product_id", id).Msg("warm hot product failed")
			continue
		}
		c.log.Info().Int64("product_id", id).Bool("found", p != nil).Msg("hot product warmed")
	}
}

func (c *HotProductCache) afterLockTimeout(ctx context.Context, id int64, key string) (*domain.Product, error) {
	c.metrics.CacheErrors.WithLabelValues("lock_timeout").Inc()
	c.log.Debug().Err(ErrLockTimeout).Int64("product_id", id).Msg("lock busy, backing off")

	t := time.NewTimer(c.cfg.Backoff)
	select {
	case <-ctx.Done():
		t.Stop()
		return c.fallbackRead(ctx, id)
	case <-t.C:
	}

	if p, res := c.lookup(ctx, key); res != lookupMiss {
		return p, nil
	}
	return c.fallbackRead(ctx, id)
}

// fallbackRead serves the request from the store even when the caller's
// context ended during the lock wait.
func (c *HotProductCache) fallbackRead(ctx context.Context, id int64) (*domain.Product, error) {
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), fallbackReadTimeout)
		defer cancel()
	}
	return c.readStore(ctx, id, "fallback")
}

func (c *HotProductCache) lookup(ctx context.Context, key string) (*domain.Product, lookupResult) {
	data, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.metrics.CacheErrors.WithLabelValues("cache").Inc()
		c.log.Warn().Err(fmt.Errorf("%w: %w", ErrCacheUnavailable, err)).Str("key", key).Msg("cache read failed")
		return nil, lookupMiss
	}
	if !ok {
		c.metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, lookupMiss
	}
	if string(data) == nullMarker {
		c.metrics.CacheLookups.WithLabelValues("null_hit").Inc()
		return nil, lookupNull
	}

	var p domain.Product
	if err := json.Unmarshal(data, &p); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("drop undecodable cache entry")
		c.metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, lookupMiss
	}
	c.metrics.CacheLookups.WithLabelValues("hit").Inc()
	return &p, lookupHit
}

func (c *HotProductCache) readStore(ctx context.Context, id int64, path string) (*domain.Product, error) {
	c.metrics.StoreReads.WithLabelValues(path).Inc()
	p, err := c.store.FindProductByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find product %d: %w", id, err)
	}
	return p, nil
}

func (c *HotProductCache) put(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := c.cache.Set(ctx, key, value, ttl); err != nil {
		c.metrics.CacheErrors.WithLabelValues("cache").Inc()
		c.log.Warn().Err(fmt.Errorf("%w: %w", ErrCacheUnavailable, err)).Str("key", key).Msg("cache write failed")
	}
}

// unlock runs even if the request context is already done.
func (c *HotProductCache) unlock(ctx context.Context, name, token string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), unlockTimeout)
	defer cancel()
	if err := c.cache.Unlock(ctx, name, token); err != nil {
		c.metrics.CacheErrors.WithLabelValues("lock").Inc()
		c.log.Warn().Err(err).Str("lock", name).Msg("release lock failed, it will expire on its own")
	}
}

func (c *HotProductCache) withJitter(base time.Duration) time.Duration {
	if c.cfg.TTLJitter <= 0 {
		return base
	}
	return base + time.Duration(rand.Int63n(int64(c.cfg.TTLJitter)))
}

func productKey(id int64) string {
	return hotProductKeyPrefix + strconv.FormatInt(id, 10)
}

func lockKey(id int64) string {
	return hotProductLockPrefix + strconv.FormatInt(id, 10)
}
