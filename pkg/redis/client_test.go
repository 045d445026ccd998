package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/review-search/pkg/resilience"
)

func TestIsNilError(t *testing.T) {
	assert.True(t, IsNilError(redis.Nil))
	assert.True(t, IsNilError(fmt.Errorf("get: %w", redis.Nil)))
	assert.False(t, IsNilError(errors.New("connection refused")))
	assert.False(t, IsNilError(nil))
}

func TestBreakerOpensOnUnreachableServer(t *testing.T) {
	// nothing listens on port 1
	c := newClient(redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	}))
	defer c.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := c.Get(ctx, "search:k")
		require.Error(t, err)
		assert.False(t, IsNilError(err))
	}
	_, err := c.Get(ctx, "search:k")
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.ErrorIs(t, c.Set(ctx, "search:k", "v", time.Minute), resilience.ErrCircuitOpen)
}
