package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisCounter_FixedWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	l := New(NewRedisCounter(rdb))
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		ok, n, err := l.Allow(ctx, "u1", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.EqualValues(t, i, n)
	}
	assert.Equal(t, time.Minute, mr.TTL("rl:u1"))

	// later hits inside the window must not push the expiry out
	mr.FastForward(40 * time.Second)
	ok, n, err := l.Allow(ctx, "u1", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.EqualValues(t, 3, n)
	assert.Equal(t, 20*time.Second, mr.TTL("rl:u1"))

	mr.FastForward(21 * time.Second)
	ok, n, err = l.Allow(ctx, "u1", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.EqualValues(t, 1, n)
}

func TestRedisCounter_Unavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.SetError("LOADING")

	_, err := NewRedisCounter(rdb).Incr(context.Background(), "rl:u1", time.Minute)
	assert.Error(t, err)
}
