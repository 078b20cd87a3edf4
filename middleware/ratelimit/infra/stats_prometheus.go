package infra

import (
	"context"
	"errors"

	"jobboard-gate/middleware/ratelimit/domain"

	"github.com/prometheus/client_golang/prometheus"
)

// PromStatsStore expõe as decisões como contador Prometheus por grupo.
// A chave do cliente nunca vira label (cardinalidade).
type PromStatsStore struct {
	decisions *prometheus.CounterVec
}

func NewPromStatsStore(reg prometheus.Registerer) (*PromStatsStore, error) {
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gate",
		Subsystem: "ratelimit",
		Name:      "decisions_total",
		Help:      "Rate limit decisions by route group and outcome.",
	}, []string{"group", "decision"})

	if err := reg.Register(decisions); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, err
		}
		decisions = are.ExistingCollector.(*prometheus.CounterVec)
	}
	return &PromStatsStore{decisions: decisions}, nil
}

func (s *PromStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	decision := "denied"
	if ev.Allowed {
		decision = "allowed"
	}
	s.decisions.WithLabelValues(ev.Group, decision).Inc()
	return nil
}

// MultiStats repassa o evento para todos os stores; erros são agregados.
type MultiStats []domain.StatsStore

func (m MultiStats) Record(ctx context.Context, ev domain.StatsEvent) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
