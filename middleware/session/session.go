// Package session é a fronteira com o serviço de autenticação hospedado.
//
// O gate não valida sessão, só garante continuidade: se o access token está para
// expirar, troca o refresh token por um novo par e devolve os cookies a anexar na
// resposta. Quem exige login são as páginas/rotas downstream.
package session

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// ErrNoSession indica cookie de acesso expirado sem refresh token para renová-lo.
var ErrNoSession = errors.New("session: expired without refresh token")

// Refresher renova a sessão da requisição e devolve os cookies a anexar.
// Cookies e erro podem vir juntos (ex.: cookies de limpeza após refresh rejeitado).
type Refresher interface {
	Refresh(ctx context.Context, r *http.Request) ([]*http.Cookie, error)
}

type RefresherFunc func(ctx context.Context, r *http.Request) ([]*http.Cookie, error)

func (f RefresherFunc) Refresh(ctx context.Context, r *http.Request) ([]*http.Cookie, error) {
	return f(ctx, r)
}

// Nop é usado quando não há serviço de auth configurado.
type Nop struct{}

func (Nop) Refresh(context.Context, *http.Request) ([]*http.Cookie, error) { return nil, nil }

// Apply anexa os cookies na resposta e reescreve o header Cookie da requisição,
// para que o handler downstream já enxergue a sessão renovada.
func Apply(w http.ResponseWriter, r *http.Request, cookies []*http.Cookie) {
	if len(cookies) == 0 {
		return
	}

	updated := make(map[string]*http.Cookie, len(cookies))
	for _, c := range cookies {
		http.SetCookie(w, c)
		updated[c.Name] = c
	}

	parts := make([]string, 0, len(r.Cookies())+len(cookies))
	seen := make(map[string]bool, len(updated))
	for _, c := range r.Cookies() {
		if nc, ok := updated[c.Name]; ok {
			seen[c.Name] = true
			if nc.MaxAge < 0 || nc.Value == "" {
				continue
			}
			c = &http.Cookie{Name: nc.Name, Value: nc.Value}
		}
		parts = append(parts, (&http.Cookie{Name: c.Name, Value: c.Value}).String())
	}
	for _, c := range cookies {
		if seen[c.Name] || c.MaxAge < 0 || c.Value == "" {
			continue
		}
		parts = append(parts, (&http.Cookie{Name: c.Name, Value: c.Value}).String())
	}

	if len(parts) == 0 {
		r.Header.Del("Cookie")
		return
	}
	r.Header.Set("Cookie", strings.Join(parts, "; "))
}
