package domain

import "context"

// SlotPool limita quantas requests ficam em voo ao mesmo tempo no gateway.
//
// Acquire espera uma vaga até o ctx encerrar. O release devolvido vale para
// uma única chamada.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
}

// SlotGauge é opcional: pools que sabem a própria ocupação a expõem para log.
type SlotGauge interface {
	InUse() int
	Capacity() int
}
