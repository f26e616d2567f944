package infra

import (
	"context"

	"admission-gateway/middleware/ratelimit/domain"
)

type chanPool struct {
	sem chan struct{}
}

// NewChanPool cria um pool baseado em channel com `size` vagas.
// Com size <= 0 retorna nil: sem limite de concorrência.
func NewChanPool(size int) domain.SlotPool {
	if size <= 0 {
		return nil
	}
	return &chanPool{sem: make(chan struct{}, size)}
}

func (p *chanPool) Acquire(ctx context.Context) (func(), bool) {
	// vaga livre tem prioridade sobre ctx já cancelado
	select {
	case p.sem <- struct{}{}:
		return p.release, true
	default:
	}

	select {
	case p.sem <- struct{}{}:
		return p.release, true
	case <-ctx.Done():
		return nil, false
	}
}

func (p *chanPool) release() { <-p.sem }

var _ domain.SlotGauge = (*chanPool)(nil)

// InUse retorna quantas vagas estão ocupadas agora.
func (p *chanPool) InUse() int { return len(p.sem) }

func (p *chanPool) Capacity() int { return cap(p.sem) }
