package infra

import (
	"sync"
	"time"

	"admission-gateway/middleware/ratelimit/domain"

	"golang.org/x/time/rate"
)

// BucketStore é o overload shield: token bucket (x/time/rate) por chave,
// aplicado antes das políticas. Diferente das janelas, não tem cota por rota,
// só segura rajadas por endereço.
type BucketStore struct {
	mu      sync.Mutex
	entries map[domain.Key]*bucketEntry
	rps     rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time
}

type bucketEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type BucketOption func(*BucketStore)

func WithIdleTTL(d time.Duration) BucketOption {
	return func(s *BucketStore) { s.idleTTL = d }
}

func WithBucketClock(now func() time.Time) BucketOption {
	return func(s *BucketStore) { s.now = now }
}

func NewBucketStore(rps float64, burst int, opts ...BucketOption) *BucketStore {
	s := &BucketStore{
		entries: make(map[domain.Key]*bucketEntry),
		rps:     rate.Limit(rps),
		burst:   burst,
		idleTTL: 15 * time.Minute,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *BucketStore) RPS() float64 { return float64(s.rps) }
func (s *BucketStore) Burst() int   { return s.burst }

// Get implementa domain.BucketStore.
func (s *BucketStore) Get(key domain.Key) domain.BucketLimiter {
	return s.limiter(key)
}

func (s *BucketStore) limiter(key domain.Key) *rate.Limiter {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[key]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	lim := rate.NewLimiter(s.rps, s.burst)
	s.entries[key] = &bucketEntry{lim: lim, lastSeen: now}
	return lim
}

// RetryAfter estima quando o próximo token fica disponível para a chave.
func (s *BucketStore) RetryAfter(key domain.Key) time.Duration {
	lim := s.limiter(key)
	r := lim.ReserveN(s.now(), 1)
	if !r.OK() {
		return time.Second
	}
	d := r.DelayFrom(s.now())
	r.CancelAt(s.now())
	if d < time.Second {
		return time.Second
	}
	return d
}

func (s *BucketStore) Cleanup() int {
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}

// StartJanitor inicia uma goroutine que limpa buckets inativos periodicamente.
// Pare cancelando o contexto.
func (s *BucketStore) StartJanitor(ctx DoneContext, every time.Duration) {
	if every <= 0 {
		return
	}

	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
