package infra

import (
	"context"
	"sync"
)

// ChanPool é o domain.SlotPool do gateway: um channel bufferizado como semáforo.
type ChanPool struct {
	sem chan struct{}
}

func NewChanPool(max int) *ChanPool {
	if max < 1 {
		max = 1
	}
	return &ChanPool{sem: make(chan struct{}, max)}
}

func (p *ChanPool) Capacity() int { return cap(p.sem) }

// Busy é o número de vagas ocupadas no momento.
func (p *ChanPool) Busy() int { return len(p.sem) }

// Acquire não entrega vaga com ctx já encerrado, mesmo havendo espaço.
// O release devolvido é idempotente.
func (p *ChanPool) Acquire(ctx context.Context) (func(), bool) {
	if ctx.Err() != nil {
		return nil, false
	}
	select {
	case p.sem <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-p.sem }) }, true
	case <-ctx.Done():
		return nil, false
	}
}
