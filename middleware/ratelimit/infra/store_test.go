package infra

import (
	"testing"
	"time"

	"admission-gateway/middleware/ratelimit/domain"
)

func TestBucketStore_GetSameKeyReturnsSameLimiter(t *testing.T) {
	s := NewBucketStore(10, 1)

	l1 := s.Get(domain.Key("k"))
	l2 := s.Get(domain.Key("k"))
	if l1 != l2 {
		t.Fatalf("expected same limiter pointer for same key")
	}
}

func TestBucketStore_LowBurstRejectsSecondImmediateAllow(t *testing.T) {
	s := NewBucketStore(0.02, 1)

	lim := s.Get(domain.Key("k"))
	if !lim.Allow() {
		t.Fatalf("expected first Allow to be true")
	}
	if lim.Allow() {
		t.Fatalf("expected second immediate Allow to be false (burst=1)")
	}
	if d := s.RetryAfter("k"); d < 40*time.Second {
		t.Fatalf("expected ~50s until next token at 0.02 rps, got %s", d)
	}
}

func TestBucketStore_CleanupRemovesIdleEntries(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s := NewBucketStore(10, 1, WithIdleTTL(time.Minute), WithBucketClock(func() time.Time { return now }))

	before := s.Get(domain.Key("k"))
	now = now.Add(2 * time.Minute)

	if removed := s.Cleanup(); removed != 1 {
		t.Fatalf("expected 1 idle bucket removed, got %d", removed)
	}

	after := s.Get(domain.Key("k"))
	if before == after {
		t.Fatalf("expected limiter to be recreated after cleanup")
	}
}
