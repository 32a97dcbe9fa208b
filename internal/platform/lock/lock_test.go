package lock

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalExcludesSameName(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	release, ok := l.Acquire(ctx, "pending", time.Minute)
	require.True(t, ok)

	_, ok = l.Acquire(ctx, "pending", time.Minute)
	assert.False(t, ok)

	_, ok = l.Acquire(ctx, "overdue", time.Minute)
	assert.True(t, ok)

	release(ctx)
	_, ok = l.Acquire(ctx, "pending", time.Minute)
	assert.True(t, ok)
}

func TestRedisFailsOpen(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	defer rdb.Close()

	release, ok := NewRedis(rdb, nil).Acquire(context.Background(), "pending", time.Minute)
	assert.True(t, ok)
	require.NotNil(t, release)
	release(context.Background())
}
