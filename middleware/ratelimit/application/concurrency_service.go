package application

import (
	"context"
	"time"

	"admission-gateway/middleware/ratelimit/domain"
)

// ConcurrencyService limita quantos requests passam pelo gateway ao mesmo tempo.
// Não sabe nada sobre HTTP.
type ConcurrencyService struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
	Now            func() time.Time
}

// Slot é uma vaga adquirida. Release deve ser chamado exatamente uma vez.
type Slot struct {
	Release func()
	// Waited é quanto tempo o request ficou na fila.
	Waited time.Duration
}

// Acquire tenta adquirir uma vaga.
//   - Sem Pool não há limite: sempre ok, Release é no-op.
//   - AcquireTimeout <= 0: espera até ctx cancelar.
//   - AcquireTimeout > 0: espera no máximo o timeout.
func (s ConcurrencyService) Acquire(ctx context.Context) (Slot, bool) {
	if s.Pool == nil {
		return Slot{Release: func() {}}, true
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	start := now()

	acqCtx := ctx
	if s.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		acqCtx, cancel = context.WithTimeout(ctx, s.AcquireTimeout)
		defer cancel()
	}

	release, ok := s.Pool.Acquire(acqCtx)
	waited := now().Sub(start)
	if !ok {
		return Slot{Waited: waited}, false
	}
	return Slot{Release: release, Waited: waited}, true
}
