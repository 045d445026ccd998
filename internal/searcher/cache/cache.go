// Package cache stores search results in Redis, keyed by a fingerprint of
// the index and the normalized query. Concurrent misses for the same key
// compute the result once.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/review-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/review-search/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/review-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/review-search/pkg/resilience"
)

const (
	keyPrefix = "search:"

	defaultComputeTimeout = 30 * time.Second
)

// Store is the subset of the Redis client the cache needs.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type QueryCache struct {
	store          Store
	ttl            time.Duration
	computeTimeout time.Duration
	group          singleflight.Group
	metrics        *metrics.Metrics
	logger         *slog.Logger
	hits           atomic.Int64
	misses         atomic.Int64
}

type Option func(*QueryCache)

// WithComputeTimeout bounds a shared computation started by GetOrCompute.
func WithComputeTimeout(d time.Duration) Option {
	return func(c *QueryCache) {
		if d > 0 {
			c.computeTimeout = d
		}
	}
}

func New(store Store, ttl time.Duration, m *metrics.Metrics, opts ...Option) *QueryCache {
	c := &QueryCache{
		store:          store,
		ttl:            ttl,
		computeTimeout: defaultComputeTimeout,
		metrics:        m,
		logger:         slog.Default().With("component", "query-cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get looks up the result stored under fingerprint. Store failures count as
// misses.
func (c *QueryCache) Get(ctx context.Context, fingerprint string) (*executor.SearchResult, bool) {
	key := buildKey(fingerprint)
	data, err := c.store.Get(ctx, key)
	if err != nil {
		switch {
		case pkgredis.IsNilError(err):
		case errors.Is(err, resilience.ErrCircuitOpen):
			c.logger.Debug("cache bypassed", "key", key, "error", err)
		default:
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	var result executor.SearchResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	c.logger.Debug("cache hit", "key", key)
	return &result, true
}

func (c *QueryCache) Set(ctx context.Context, fingerprint string, result *executor.SearchResult) {
	key := buildKey(fingerprint)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result for fingerprint or computes,
// stores and returns it. cached reports whether the store answered.
//
// Concurrent misses share one computation. It runs detached from any single
// caller's cancellation, bounded by the compute timeout, so a caller that
// gives up returns ctx.Err() without failing the others.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	fingerprint string,
	compute func(ctx context.Context) (*executor.SearchResult, error),
) (result *executor.SearchResult, cached bool, err error) {
	if result, ok := c.Get(ctx, fingerprint); ok {
		return result, true, nil
	}
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(buildKey(fingerprint), func() (any, error) {
		computeCtx, cancel := context.WithTimeout(shared, c.computeTimeout)
		defer cancel()
		result, err := compute(computeCtx)
		if err != nil {
			return nil, err
		}
		c.Set(computeCtx, fingerprint, result)
		return result, nil
	})
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.(*executor.SearchResult), false, nil
	}
}

// Invalidate drops every cached search result.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func buildKey(fingerprint string) string {
	hash := sha256.Sum256([]byte(fingerprint))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
