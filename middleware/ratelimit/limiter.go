package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"jobboard-gate/middleware/ratelimit/application"
	"jobboard-gate/middleware/ratelimit/domain"
)

const tooManyRequestsBody = `{"error":"Too many requests. Please try again later."}` + "\n"

type Options struct {
	Store          domain.WindowStore
	Stats          domain.StatsStore
	KeyFn          KeyFunc
	PathGroupDepth int
	Now            func() time.Time
	Logger         *zap.Logger
}

// PolicyFunc escolhe a política e o nome do grupo (para stats) de um path.
// ok=false isenta a requisição (ex.: assets estáticos).
type PolicyFunc func(path string) (p domain.Policy, group string, ok bool)

// Limiter traduz decisões de janela fixa para respostas HTTP.
type Limiter struct {
	svc    application.Service
	opts   Options
	logger *zap.Logger
	// rejeição não é erro da aplicação: loga em debug, no máximo uma vez por intervalo
	rejectLog *rate.Sometimes
}

func NewLimiter(opts Options) *Limiter {
	if opts.KeyFn == nil {
		opts.KeyFn = ClientIPFunc(ClientIPOptions{})
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{
		svc:       application.Service{Store: opts.Store, Now: opts.Now},
		opts:      opts,
		logger:    logger.Named("ratelimit"),
		rejectLog: &rate.Sometimes{Interval: 10 * time.Second},
	}
}

// KeyFor monta a chave cliente|grupo de rota.
func (l *Limiter) KeyFor(r *http.Request) domain.Key {
	return domain.Key(l.opts.KeyFn(r) + "|" + PathGroup(r.URL.Path, l.opts.PathGroupDepth))
}

// Check consome uma unidade do orçamento da requisição.
// Retorna false quando já respondeu (429 ou 500) e o pipeline deve parar.
func (l *Limiter) Check(w http.ResponseWriter, r *http.Request, p domain.Policy, group string) bool {
	key := l.KeyFor(r)

	dec, err := l.svc.Decide(r.Context(), key, p)
	if err != nil {
		// falha do store responde 500, nunca libera a requisição
		l.logger.Error("rate limit store failure", zap.String("key", string(key)), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}

	if l.opts.Stats != nil && p.Enabled() {
		if err := l.opts.Stats.Record(r.Context(), domain.StatsEvent{
			Key:     key,
			Group:   group,
			Allowed: dec.Allowed,
			Method:  r.Method,
			Path:    r.URL.Path,
			At:      l.opts.Now(),
		}); err != nil {
			l.logger.Debug("rate limit stats dropped", zap.Error(err))
		}
	}

	if dec.Allowed {
		return true
	}

	l.rejectLog.Do(func() {
		l.logger.Debug("rate limit exceeded",
			zap.String("key", string(key)),
			zap.String("group", group),
			zap.Int("limit", dec.Limit))
	})
	writeTooManyRequests(w, dec)
	return false
}

// Middleware aplica o limiter isoladamente, fora do gate.
func (l *Limiter) Middleware(policy PolicyFunc) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, group, ok := policy(r.URL.Path)
			if ok && !l.Check(w, r, p, group) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeTooManyRequests(w http.ResponseWriter, dec domain.Decision) {
	h := w.Header()
	h.Set("Retry-After", strconv.Itoa(int(dec.RetryAfter/time.Second)))
	h.Set("X-RateLimit-Limit", strconv.Itoa(dec.Limit))
	h.Set("X-RateLimit-Remaining", "0")
	h.Set("X-RateLimit-Reset", strconv.FormatInt(dec.ResetAt.UnixMilli(), 10))
	h.Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(tooManyRequestsBody))
}
