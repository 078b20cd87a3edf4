package domain

// Camada de domínio do rate limit por janela fixa.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"context"
	"time"
)

// Key identifica um contador: cliente + grupo de rota (ex: "1.2.3.4|/api/auth").
type Key string

// Policy é o orçamento de uma rota: Limit requisições a cada Window.
type Policy struct {
	Limit  int
	Window time.Duration
}

// Enabled indica se a política conta requisições.
func (p Policy) Enabled() bool { return p.Limit > 0 && p.Window > 0 }

// Record é o estado de uma chave dentro da janela corrente.
//
// Invariante: no máximo um Record por chave; Count só cresce dentro da janela e
// volta para 1 quando uma nova janela começa (substituição, nunca merge).
type Record struct {
	Key     Key
	Count   int64
	ResetAt time.Time
}

// ResetTimeEpochMs é o instante (epoch ms) em que a janela termina.
func (r Record) ResetTimeEpochMs() int64 { return r.ResetAt.UnixMilli() }

// Expired reporta se a janela já acabou em now.
func (r Record) Expired(now time.Time) bool { return !now.Before(r.ResetAt) }

// WindowStore guarda os contadores por chave.
//
// Hit consome uma unidade: cria (ou substitui, se expirado) o registro com
// Count=1 e ResetAt=now+window; caso contrário incrementa. Retorna o registro
// já atualizado.
type WindowStore interface {
	Hit(ctx context.Context, key Key, window time.Duration, now time.Time) (Record, error)
}

// Sweeper é implementado por stores que precisam de coleta periódica.
// Sweep remove registros cuja janela já terminou e retorna quantos removeu.
type Sweeper interface {
	Sweep(now time.Time) int
}

type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
}
