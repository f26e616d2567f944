package infra

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"admission-gateway/middleware/ratelimit/domain"
)

// DefaultSweepThreshold é o número de chaves por política a partir do qual o
// sweeper roda. É só um parâmetro de ajuste.
const DefaultSweepThreshold = 10000

type slidingShard struct {
	mu sync.Mutex
	// timestamps admitidos em unix millis, ordem crescente.
	m map[domain.Key][]int64
}

type slidingTable struct {
	shards   [shardCount]slidingShard
	size     atomic.Int64
	sweeping atomic.Bool

	// Depois de um sweep: o próximo só roda quando a tabela crescer metade
	// do que sobrou (nextSize) e quando a chave sobrevivente mais antiga já
	// puder ter expirado (windowStart >= nextUseful).
	nextSize   atomic.Int64
	nextUseful atomic.Int64
}

func newSlidingTable() *slidingTable {
	t := &slidingTable{}
	for i := range t.shards {
		t.shards[i].m = make(map[domain.Key][]int64)
	}
	t.nextUseful.Store(math.MinInt64)
	return t
}

// SlidingWindow guarda, por chave, os instantes dos requests admitidos e
// olha só os que estão dentro da janela móvel [now-window, now].
//
// A expiração é lazy (por chave, na leitura). Chaves que nunca mais voltam
// são removidas pelo sweeper quando a tabela passa do threshold.
type SlidingWindow struct {
	mu        sync.RWMutex
	tables    map[string]*slidingTable
	threshold int64

	onSweep func(policy string, removed int)
}

type SlidingOption func(*SlidingWindow)

// WithSweepThreshold define a partir de quantas chaves distintas o sweep roda.
func WithSweepThreshold(n int) SlidingOption {
	return func(s *SlidingWindow) {
		if n > 0 {
			s.threshold = int64(n)
		}
	}
}

// WithSweepHook é chamado após cada sweep (ex: log/métrica).
func WithSweepHook(fn func(policy string, removed int)) SlidingOption {
	return func(s *SlidingWindow) { s.onSweep = fn }
}

func NewSlidingWindow(opts ...SlidingOption) *SlidingWindow {
	s := &SlidingWindow{
		tables:    make(map[string]*slidingTable),
		threshold: DefaultSweepThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SlidingWindow) table(name string) *slidingTable {
	s.mu.RLock()
	t, ok := s.tables[name]
	s.mu.RUnlock()
	if ok {
		return t
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok = s.tables[name]; ok {
		return t
	}
	t = newSlidingTable()
	s.tables[name] = t
	return t
}

// Evaluate implementa domain.Limiter.
//
// Ordem: calcula windowStart, expira tudo <= windowStart, compara com o cap,
// e só então registra now.
func (s *SlidingWindow) Evaluate(p domain.Policy, key domain.Key, now time.Time) (domain.Verdict, error) {
	t := s.table(p.Name)
	nowMs := now.UnixMilli()
	windowMs := p.WindowMillis()
	windowStart := nowMs - windowMs

	sh := &t.shards[shardIndex(key)]
	sh.mu.Lock()

	ts, seen := sh.m[key]
	if err := checkTimestamps(ts, p.MaxRequests); err != nil {
		delete(sh.m, key)
		sh.mu.Unlock()
		t.size.Add(-1)
		return domain.Verdict{}, &domain.StoreError{Policy: p.Name, Key: key, Err: err}
	}

	live := sort.Search(len(ts), func(i int) bool { return ts[i] > windowStart })
	ts = ts[live:]

	v := domain.Verdict{Limit: p.MaxRequests}

	if len(ts) >= p.MaxRequests {
		sh.m[key] = ts
		sh.mu.Unlock()

		oldest := ts[0]
		v.ResetAt = time.UnixMilli(oldest + windowMs)
		v.RetryAfterSeconds = retryAfterSeconds(oldest+windowMs-nowMs, windowMs)
		return v, nil
	}

	// relógio pode andar pra trás; mantém a lista ordenada.
	pos := sort.Search(len(ts), func(i int) bool { return ts[i] > nowMs })
	ts = slices.Insert(ts, pos, nowMs)
	sh.m[key] = ts
	sh.mu.Unlock()

	v.Allowed = true
	v.Remaining = p.MaxRequests - len(ts)
	v.ResetAt = time.UnixMilli(ts[0] + windowMs)

	if !seen {
		n := t.size.Add(1)
		if n > s.threshold && n > t.nextSize.Load() && windowStart >= t.nextUseful.Load() {
			s.sweep(p.Name, t, windowStart)
		}
	}
	return v, nil
}

func checkTimestamps(ts []int64, limit int) error {
	if len(ts) > limit {
		return fmt.Errorf("%w: %d timestamps for cap %d", domain.ErrCorruptState, len(ts), limit)
	}
	for i := 1; i < len(ts); i++ {
		if ts[i] < ts[i-1] {
			return fmt.Errorf("%w: timestamps out of order at %d", domain.ErrCorruptState, i)
		}
	}
	return nil
}

// Sweep remove as chaves da política sem nenhum timestamp vivo em now.
// Retorna quantas chaves saíram.
func (s *SlidingWindow) Sweep(p domain.Policy, now time.Time) int {
	s.mu.RLock()
	t, ok := s.tables[p.Name]
	s.mu.RUnlock()
	if !ok {
		return 0
	}
	return s.sweep(p.Name, t, now.UnixMilli()-p.WindowMillis())
}

// sweep segura um shard por vez; avaliações em outros shards seguem livres.
// Se outro sweep da mesma tabela já está rodando, não faz nada.
func (s *SlidingWindow) sweep(name string, t *slidingTable, windowStart int64) int {
	if !t.sweeping.CompareAndSwap(false, true) {
		return 0
	}
	defer t.sweeping.Store(false)

	removed := 0
	oldestLive := int64(math.MaxInt64)
	for i := range t.shards {
		sh := &t.shards[i]
		sh.mu.Lock()
		for k, ts := range sh.m {
			if len(ts) == 0 || ts[len(ts)-1] <= windowStart {
				delete(sh.m, k)
				removed++
				continue
			}
			oldestLive = min(oldestLive, ts[len(ts)-1])
		}
		sh.mu.Unlock()
	}
	left := t.size.Add(int64(-removed))

	// chaves novas chegam com timestamp >= now, então só oldestLive importa.
	if oldestLive == math.MaxInt64 {
		oldestLive = windowStart
	}
	t.nextUseful.Store(oldestLive)
	t.nextSize.Store(left + left/2)

	if s.onSweep != nil {
		s.onSweep(name, removed)
	}
	return removed
}

// Len retorna quantas chaves a política tem em memória.
func (s *SlidingWindow) Len(policy string) int {
	s.mu.RLock()
	t, ok := s.tables[policy]
	s.mu.RUnlock()
	if !ok {
		return 0
	}
	return int(t.size.Load())
}
