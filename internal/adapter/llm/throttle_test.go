package llm

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewThrottle_NilWhenDisabled(t *testing.T) {
	t.Parallel()
	assert.Nil(t, NewThrottle(nil, 60))
	assert.Nil(t, NewThrottle(redis.NewClient(&redis.Options{}), 0))
}

func TestThrottle_AllowsUpToCapacity(t *testing.T) {
	t.Parallel()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	th := NewThrottle(rdb, 3)
	require.NotNil(t, th)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		ok, _, err := th.Allow(ctx, "chat")
		require.NoError(t, err)
		assert.True(t, ok, "call %d within capacity", i)
	}
	ok, retryAfter, err := th.Allow(ctx, "chat")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Greater(t, retryAfter.Seconds(), 0.0)
}

func TestThrottle_ErrorWhenRedisDown(t *testing.T) {
	t.Parallel()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	th := NewThrottle(rdb, 3)
	mr.Close()

	_, _, err := th.Allow(context.Background(), "chat")
	require.Error(t, err, "client degrades to allow-all on throttle errors")
}
