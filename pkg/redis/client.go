// Package redis wraps go-redis/v9 with the get/set and pattern invalidation
// operations the search result cache uses.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Adithya-Monish-Kumar-K/review-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/review-search/pkg/resilience"
)

// Client wraps a go-redis client. Data calls go through a circuit breaker so
// an unreachable server costs one fast error per call instead of a dial
// timeout; key misses do not count as failures.
type Client struct {
	rdb     *redis.Client
	breaker *resilience.CircuitBreaker
}

// NewClient creates a Redis client and verifies the connection with a PING.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s failed: %w", cfg.Addr, err)
	}
	return newClient(rdb), nil
}

func newClient(rdb *redis.Client) *Client {
	return &Client{
		rdb: rdb,
		breaker: resilience.NewCircuitBreaker("redis", resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     10 * time.Second,
			IsFailure: func(err error) bool {
				return err != nil && !IsNilError(err)
			},
		}),
	}
}

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	var val string
	err := c.breaker.Execute(func() error {
		var err error
		val, err = c.rdb.Get(ctx, key).Result()
		return err
	})
	return val, err
}

// Set stores a value with the given TTL.
func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return c.breaker.Execute(func() error {
		return c.rdb.Set(ctx, key, value, ttl).Err()
	})
}

// FlushByPattern scans for keys matching the glob pattern and deletes them,
// returning the number of keys removed.
func (c *Client) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	var deleted int64
	err := c.breaker.Execute(func() error {
		iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
		for iter.Next(ctx) {
			if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
				return fmt.Errorf("deleting key %s: %w", iter.Val(), err)
			}
			deleted++
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("scanning pattern %s: %w", pattern, err)
		}
		return nil
	})
	return deleted, err
}

// IsNilError reports whether err is a Redis nil (key-not-found) error.
func IsNilError(err error) bool {
	return errors.Is(err, redis.Nil)
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
