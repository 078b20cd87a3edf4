package infra

import (
	"context"
	"sync"
	"time"

	"jobboard-gate/middleware/ratelimit/domain"
)

// MemoryStore é o store padrão: um mapa de janelas fixas por chave, do processo.
//
// O estado não é persistido nem compartilhado entre instâncias: com N réplicas
// atrás de um balanceador cada uma tem seus próprios contadores e o limite
// efetivo vira N vezes o configurado. Use RedisStore quando isso importar.
type MemoryStore struct {
	mu         sync.Mutex
	entries    map[domain.Key]domain.Record
	sweepEvery time.Duration
	now        func() time.Time
}

type StoreOption func(*MemoryStore)

// WithSweepEvery define o intervalo da varredura do janitor (0 desliga).
func WithSweepEvery(d time.Duration) StoreOption {
	return func(s *MemoryStore) { s.sweepEvery = d }
}

// WithClock troca o relógio usado pelo janitor.
func WithClock(now func() time.Time) StoreOption {
	return func(s *MemoryStore) { s.now = now }
}

func NewMemoryStore(opts ...StoreOption) *MemoryStore {
	s := &MemoryStore{
		entries:    make(map[domain.Key]domain.Record),
		sweepEvery: 60 * time.Second,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) SweepEvery() time.Duration { return s.sweepEvery }

// Hit implementa domain.WindowStore.
//
// O read-check-increment roda inteiro sob o mutex, então dentro do processo não
// há perda de incremento entre goroutines concorrentes.
func (s *MemoryStore) Hit(_ context.Context, key domain.Key, window time.Duration, now time.Time) (domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.entries[key]
	if !ok || rec.Expired(now) {
		rec = domain.Record{Key: key, Count: 1, ResetAt: now.Add(window)}
		s.entries[key] = rec
		return rec, nil
	}

	rec.Count++
	s.entries[key] = rec
	return rec, nil
}

// Get retorna o registro atual sem consumir orçamento.
func (s *MemoryStore) Get(key domain.Key) (domain.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.entries[key]
	return rec, ok
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep implementa domain.Sweeper: apaga registros cuja janela já acabou.
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, rec := range s.entries {
		if rec.Expired(now) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}

// StartJanitor inicia uma goroutine que varre chaves expiradas periodicamente,
// independente do tráfego. Pare cancelando o contexto.
func (s *MemoryStore) StartJanitor(ctx DoneContext) {
	if s.sweepEvery <= 0 {
		return
	}

	t := time.NewTicker(s.sweepEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Sweep(s.now())
			}
		}
	}()
}

// DoneContext é o mínimo necessário para aceitar context.Context no janitor.
type DoneContext interface {
	Done() <-chan struct{}
}
