package infra

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admission-gateway/middleware/ratelimit/domain"
)

func TestChanPool_NilWhenUnlimited(t *testing.T) {
	assert.Nil(t, NewChanPool(0))
	assert.Nil(t, NewChanPool(-1))
}

func TestChanPool_AcquireRelease(t *testing.T) {
	pool := NewChanPool(1)
	require.NotNil(t, pool)

	release, ok := pool.Acquire(context.Background())
	require.True(t, ok)
	gauge, ok := pool.(domain.SlotGauge)
	require.True(t, ok)
	assert.Equal(t, 1, gauge.InUse())
	assert.Equal(t, 1, gauge.Capacity())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, ok = pool.Acquire(ctx)
	assert.False(t, ok, "pool is full")

	release()
	assert.Equal(t, 0, pool.(*chanPool).InUse())

	cancelled, cancel2 := context.WithCancel(context.Background())
	cancel2()
	release, ok = pool.Acquire(cancelled)
	assert.True(t, ok, "free slot wins over a cancelled context")
	release()
}
