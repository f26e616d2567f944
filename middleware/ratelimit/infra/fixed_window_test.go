package infra

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admission-gateway/middleware/ratelimit/domain"
)

var t0 = time.UnixMilli(1_700_000_000_000)

func loginPolicy() domain.Policy {
	return domain.Policy{
		Name:        "login",
		Window:      15 * time.Minute,
		MaxRequests: 5,
		Message:     "Too many login attempts. Please try again after 15 minutes.",
		Strategy:    domain.FixedWindowStrategy,
	}
}

func TestFixedWindow_AdmitsUpToCapThenRejects(t *testing.T) {
	fw := NewFixedWindow()
	p := loginPolicy()

	for i := 0; i < 5; i++ {
		v, err := fw.Evaluate(p, "10.0.0.1-anonymous", t0)
		require.NoError(t, err)
		require.True(t, v.Allowed, "request %d", i+1)
		assert.Equal(t, 4-i, v.Remaining)
		assert.Equal(t, t0.Add(p.Window), v.ResetAt)
	}

	v, err := fw.Evaluate(p, "10.0.0.1-anonymous", t0)
	require.NoError(t, err)
	assert.False(t, v.Allowed)
	assert.Equal(t, 900, v.RetryAfterSeconds)
	assert.Equal(t, 0, v.Remaining)
}

func TestFixedWindow_RetryAfterShrinksAndWindowResets(t *testing.T) {
	fw := NewFixedWindow()
	p := loginPolicy()
	for i := 0; i < 5; i++ {
		_, _ = fw.Evaluate(p, "k", t0)
	}

	last := 901
	for _, d := range []time.Duration{time.Second, time.Minute, 10 * time.Minute, 15*time.Minute - 1} {
		v, err := fw.Evaluate(p, "k", t0.Add(d))
		require.NoError(t, err)
		require.False(t, v.Allowed, "at +%s", d)
		assert.Greater(t, v.RetryAfterSeconds, 0)
		assert.LessOrEqual(t, v.RetryAfterSeconds, last)
		last = v.RetryAfterSeconds
	}
	assert.Equal(t, 1, last)

	v, err := fw.Evaluate(p, "k", t0.Add(15*time.Minute))
	require.NoError(t, err)
	assert.True(t, v.Allowed, "window boundary must reset the count")
	assert.Equal(t, 4, v.Remaining)
}

func TestFixedWindow_KeysAndPoliciesAreIndependent(t *testing.T) {
	fw := NewFixedWindow()
	p := loginPolicy()
	other := p
	other.Name = "register"

	for i := 0; i < 6; i++ {
		_, _ = fw.Evaluate(p, "a", t0)
	}
	v, _ := fw.Evaluate(p, "b", t0)
	assert.True(t, v.Allowed)

	v, _ = fw.Evaluate(other, "a", t0)
	assert.True(t, v.Allowed, "same key under another policy has its own window")
}

func TestFixedWindow_CorruptStateIsStoreError(t *testing.T) {
	fw := NewFixedWindow()
	p := loginPolicy()
	_, _ = fw.Evaluate(p, "k", t0)

	tbl := fw.table(p)
	sh := &tbl.shards[shardIndex("k")]
	sh.m["k"].count = -3

	_, err := fw.Evaluate(p, "k", t0)
	var storeErr *domain.StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.ErrorIs(t, err, domain.ErrCorruptState)

	v, err := fw.Evaluate(p, "k", t0)
	require.NoError(t, err, "corrupt entry is dropped")
	assert.True(t, v.Allowed)
}

func TestFixedWindow_Cleanup(t *testing.T) {
	fw := NewFixedWindow()
	p := loginPolicy()
	_, _ = fw.Evaluate(p, "old", t0)
	_, _ = fw.Evaluate(p, "new", t0.Add(10*time.Minute))
	require.Equal(t, 2, fw.Len("login"))

	removed := fw.Cleanup(t0.Add(16 * time.Minute))
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, fw.Len("login"))
}

func TestFixedWindow_ConcurrentSameKeyNeverExceedsCap(t *testing.T) {
	fw := NewFixedWindow()
	p := domain.Policy{Name: "burst", Window: time.Hour, MaxRequests: 50, Message: "m", Strategy: domain.FixedWindowStrategy}

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				v, err := fw.Evaluate(p, "hot", t0)
				if err == nil && v.Allowed {
					admitted.Add(1)
				}
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(50), admitted.Load())
}
