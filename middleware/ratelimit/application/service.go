package application

import (
	"context"
	"fmt"
	"time"

	"jobboard-gate/middleware/ratelimit/domain"
)

// Service concentra a regra de aplicação do rate limit.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type Service struct {
	Store domain.WindowStore
	Now   func() time.Time
}

func (s Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Decide consome uma unidade do orçamento da chave e decide.
// A requisição que passa do limite continua contada: o contador não volta.
func (s Service) Decide(ctx context.Context, key domain.Key, p domain.Policy) (domain.Decision, error) {
	if s.Store == nil || !p.Enabled() {
		return domain.Decision{Allowed: true}, nil
	}

	now := s.now()
	rec, err := s.Store.Hit(ctx, key, p.Window, now)
	if err != nil {
		return domain.Decision{}, fmt.Errorf("rate limit store hit %q: %w", key, err)
	}

	dec := domain.Decision{
		Allowed: rec.Count <= int64(p.Limit),
		Limit:   p.Limit,
		ResetAt: rec.ResetAt,
	}
	if dec.Allowed {
		dec.Remaining = p.Limit - int(rec.Count)
		return dec, nil
	}

	dec.RetryAfter = ceilSeconds(rec.ResetAt.Sub(now))
	return dec, nil
}

// ceilSeconds arredonda para cima em segundos inteiros, mínimo 1s.
func ceilSeconds(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Second
	}
	secs := (d + time.Second - 1) / time.Second
	return secs * time.Second
}
