package application

import (
	"context"
	"sync/atomic"
	"time"

	"jobboard-gate/middleware/ratelimit/domain"
)

// ConcurrencyService protege o upstream (páginas/rotas do job board) limitando
// requisições simultâneas, sem saber nada sobre HTTP.
type ConcurrencyService struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration

	inFlight atomic.Int64
	rejected atomic.Int64
}

// Acquire tenta adquirir uma vaga.
// - Se `AcquireTimeout <= 0`, espera indefinidamente (até ctx cancelar).
// - Se `AcquireTimeout > 0`, espera até o timeout.
// Retorna (release, ok). Se ok=false, nenhuma vaga foi adquirida.
func (s *ConcurrencyService) Acquire(ctx context.Context) (func(), bool) {
	if s.Pool == nil {
		return func() {}, true
	}

	acqCtx := ctx
	if s.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		acqCtx, cancel = context.WithTimeout(ctx, s.AcquireTimeout)
		defer cancel()
	}

	release, ok := s.Pool.Acquire(acqCtx)
	if !ok {
		s.rejected.Add(1)
		return nil, false
	}
	s.inFlight.Add(1)
	return func() {
		s.inFlight.Add(-1)
		release()
	}, true
}

// InFlight é o número de vagas ocupadas agora.
func (s *ConcurrencyService) InFlight() int64 { return s.inFlight.Load() }

// Rejected é o total de aquisições que falharam (timeout ou ctx cancelado).
func (s *ConcurrencyService) Rejected() int64 { return s.rejected.Load() }
