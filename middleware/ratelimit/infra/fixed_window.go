package infra

import (
	"fmt"
	"sync"
	"time"

	"admission-gateway/middleware/ratelimit/domain"
)

type fixedState struct {
	count       int
	windowStart int64 // unix millis
}

type fixedShard struct {
	mu sync.Mutex
	m  map[domain.Key]*fixedState
}

type fixedTable struct {
	windowMs int64
	shards   [shardCount]fixedShard
}

func newFixedTable(windowMs int64) *fixedTable {
	t := &fixedTable{windowMs: windowMs}
	for i := range t.shards {
		t.shards[i].m = make(map[domain.Key]*fixedState)
	}
	return t
}

// FixedWindow conta requests dentro da janela corrente de cada chave.
// A janela abre no primeiro request e reseta quando now-start >= window.
//
// Cada política tem sua própria tabela; chaves iguais em políticas
// diferentes não se misturam.
type FixedWindow struct {
	mu     sync.RWMutex
	tables map[string]*fixedTable
}

func NewFixedWindow() *FixedWindow {
	return &FixedWindow{tables: make(map[string]*fixedTable)}
}

func (f *FixedWindow) table(p domain.Policy) *fixedTable {
	f.mu.RLock()
	t, ok := f.tables[p.Name]
	f.mu.RUnlock()
	if ok {
		return t
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok = f.tables[p.Name]; ok {
		return t
	}
	t = newFixedTable(p.WindowMillis())
	f.tables[p.Name] = t
	return t
}

// Evaluate implementa domain.Limiter.
func (f *FixedWindow) Evaluate(p domain.Policy, key domain.Key, now time.Time) (domain.Verdict, error) {
	t := f.table(p)
	nowMs := now.UnixMilli()
	windowMs := p.WindowMillis()

	sh := &t.shards[shardIndex(key)]
	sh.mu.Lock()
	defer sh.mu.Unlock()

	st, ok := sh.m[key]
	if !ok {
		st = &fixedState{windowStart: nowMs}
		sh.m[key] = st
	} else if st.count < 0 || st.count > p.MaxRequests {
		delete(sh.m, key)
		return domain.Verdict{}, &domain.StoreError{
			Policy: p.Name,
			Key:    key,
			Err:    fmt.Errorf("%w: count %d outside [0, %d]", domain.ErrCorruptState, st.count, p.MaxRequests),
		}
	}

	if nowMs-st.windowStart >= windowMs {
		st.count = 0
		st.windowStart = nowMs
	}

	resetMs := st.windowStart + windowMs
	v := domain.Verdict{
		Limit:   p.MaxRequests,
		ResetAt: time.UnixMilli(resetMs),
	}

	if st.count >= p.MaxRequests {
		v.RetryAfterSeconds = retryAfterSeconds(resetMs-nowMs, windowMs)
		return v, nil
	}

	st.count++
	v.Allowed = true
	v.Remaining = p.MaxRequests - st.count
	return v, nil
}

// Len retorna quantas chaves a política tem em memória.
func (f *FixedWindow) Len(policy string) int {
	f.mu.RLock()
	t, ok := f.tables[policy]
	f.mu.RUnlock()
	if !ok {
		return 0
	}
	n := 0
	for i := range t.shards {
		sh := &t.shards[i]
		sh.mu.Lock()
		n += len(sh.m)
		sh.mu.Unlock()
	}
	return n
}

// Cleanup remove janelas já fechadas. Retorna quantas chaves saíram.
func (f *FixedWindow) Cleanup(now time.Time) int {
	nowMs := now.UnixMilli()

	f.mu.RLock()
	tables := make([]*fixedTable, 0, len(f.tables))
	for _, t := range f.tables {
		tables = append(tables, t)
	}
	f.mu.RUnlock()

	removed := 0
	for _, t := range tables {
		for i := range t.shards {
			sh := &t.shards[i]
			sh.mu.Lock()
			for k, st := range sh.m {
				if nowMs-st.windowStart >= t.windowMs {
					delete(sh.m, k)
					removed++
				}
			}
			sh.mu.Unlock()
		}
	}
	return removed
}

// StartJanitor inicia uma goroutine que limpa janelas expiradas periodicamente.
// Pare cancelando o contexto.
func (f *FixedWindow) StartJanitor(ctx DoneContext, every time.Duration) {
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
			case now := <-t.C:
				f.Cleanup(now)
			}
		}
	}()
}

// DoneContext é o mínimo necessário para aceitar context.Context sem importar context aqui.
type DoneContext interface {
	Done() <-chan struct{}
}
