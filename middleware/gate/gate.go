// Package gate encadeia os estágios que rodam antes de toda requisição:
// classificação de rota, rate limit, sessão, headers de segurança e CORS.
//
// O fluxo é linear. Cada estágio pode encerrar a requisição (redirect, 429,
// preflight) e nenhum volta a um estágio anterior.
package gate

import (
	"net/http"

	"go.uber.org/zap"

	"jobboard-gate/middleware/cors"
	"jobboard-gate/middleware/ratelimit"
	"jobboard-gate/middleware/route"
	"jobboard-gate/middleware/secure"
	"jobboard-gate/middleware/session"
)

type Options struct {
	Classifier *route.Classifier
	// Limiter nil desliga o rate limit.
	Limiter   *ratelimit.Limiter
	Refresher session.Refresher
	Headers   *secure.Headers
	CORS      *cors.Negotiator
	Logger    *zap.Logger
}

type Gate struct {
	classifier *route.Classifier
	limiter    *ratelimit.Limiter
	refresher  session.Refresher
	headers    *secure.Headers
	cors       *cors.Negotiator
	logger     *zap.Logger
}

func New(opts Options) *Gate {
	g := &Gate{
		classifier: opts.Classifier,
		limiter:    opts.Limiter,
		refresher:  opts.Refresher,
		headers:    opts.Headers,
		cors:       opts.CORS,
		logger:     opts.Logger,
	}
	if g.classifier == nil {
		g.classifier = route.New(route.Options{})
	}
	if g.refresher == nil {
		g.refresher = session.Nop{}
	}
	if g.headers == nil {
		g.headers = secure.New(secure.Options{})
	}
	if g.cors == nil {
		g.cors = cors.New(cors.Options{})
	}
	if g.logger == nil {
		g.logger = zap.NewNop()
	}
	g.logger = g.logger.Named("gate")
	return g
}

func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.serve(w, r) {
			next.ServeHTTP(w, r)
		}
	})
}

// serve roda os estágios e retorna true quando a requisição deve seguir para next.
func (g *Gate) serve(w http.ResponseWriter, r *http.Request) bool {
	class := g.classifier.Classify(r.URL.Path)
	if class.Asset {
		return true
	}

	if class.Redirect {
		http.Redirect(w, r, g.classifier.WaitlistPath(), http.StatusTemporaryRedirect)
		return false
	}

	if g.limiter != nil && !g.limiter.Check(w, r, class.Policy, class.Group) {
		return false
	}

	cookies, err := g.refresher.Refresh(r.Context(), r)
	if err != nil {
		// sessão é best effort: a rota downstream decide se exige login
		g.logger.Debug("session refresh failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	session.Apply(w, r, cookies)

	g.headers.Apply(w.Header())

	if g.cors.Apply(w.Header(), r) {
		w.WriteHeader(http.StatusOK)
		return false
	}
	return true
}
