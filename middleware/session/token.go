package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

type TokenOptions struct {
	// TokenURL é o endpoint de token do serviço de auth (grant refresh_token).
	TokenURL string
	ClientID string
	// APIKey vai no header "apikey" de cada chamada ao serviço de auth.
	APIKey string

	AccessCookie  string
	RefreshCookie string
	CookieDomain  string
	Secure        bool
	RefreshMaxAge time.Duration

	// Leeway renova um pouco antes do exp para não entregar token vencendo no meio do request.
	Leeway time.Duration
	// Timeout da chamada ao serviço de auth; 0 espera indefinidamente.
	Timeout    time.Duration
	HTTPClient *http.Client
	Now        func() time.Time
}

// TokenRefresher renova sessões via refresh grant (OAuth2) no serviço de auth hospedado.
type TokenRefresher struct {
	opts   TokenOptions
	conf   *oauth2.Config
	client *http.Client
	parser *jwt.Parser
}

func NewTokenRefresher(opts TokenOptions) (*TokenRefresher, error) {
	if opts.TokenURL == "" {
		return nil, errors.New("session: token URL is required")
	}
	if opts.AccessCookie == "" {
		opts.AccessCookie = "sb-access-token"
	}
	if opts.RefreshCookie == "" {
		opts.RefreshCookie = "sb-refresh-token"
	}
	if opts.RefreshMaxAge == 0 {
		opts.RefreshMaxAge = 30 * 24 * time.Hour
	}
	if opts.Leeway == 0 {
		opts.Leeway = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	base := opts.HTTPClient
	if base == nil {
		base = &http.Client{}
	}
	client := &http.Client{
		Transport:     &apiKeyTransport{key: opts.APIKey, base: base.Transport},
		Timeout:       opts.Timeout,
		CheckRedirect: base.CheckRedirect,
		Jar:           base.Jar,
	}

	return &TokenRefresher{
		opts: opts,
		conf: &oauth2.Config{
			ClientID: opts.ClientID,
			Endpoint: oauth2.Endpoint{TokenURL: opts.TokenURL, AuthStyle: oauth2.AuthStyleInParams},
		},
		client: client,
		parser: jwt.NewParser(),
	}, nil
}

func (t *TokenRefresher) Refresh(ctx context.Context, r *http.Request) ([]*http.Cookie, error) {
	access := cookieValue(r, t.opts.AccessCookie)
	refresh := cookieValue(r, t.opts.RefreshCookie)

	if access != "" && t.stillValid(access) {
		return nil, nil
	}
	if refresh == "" {
		if access == "" {
			// visitante anônimo
			return nil, nil
		}
		return nil, ErrNoSession
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, t.client)
	tok, err := t.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refresh}).Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil && re.Response.StatusCode >= 400 && re.Response.StatusCode < 500 {
			// refresh token inválido/revogado: encerra a sessão no browser
			return t.clearCookies(), fmt.Errorf("session refresh rejected: %w", err)
		}
		return nil, fmt.Errorf("session refresh: %w", err)
	}

	return t.cookiesFor(tok), nil
}

// stillValid lê só o exp do JWT. A assinatura é responsabilidade do serviço de
// auth e dos handlers downstream.
func (t *TokenRefresher) stillValid(raw string) bool {
	claims := jwt.RegisteredClaims{}
	if _, _, err := t.parser.ParseUnverified(raw, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return t.opts.Now().Add(t.opts.Leeway).Before(claims.ExpiresAt.Time)
}

func (t *TokenRefresher) cookiesFor(tok *oauth2.Token) []*http.Cookie {
	now := t.opts.Now()
	accessMaxAge := 0
	if !tok.Expiry.IsZero() {
		accessMaxAge = int(tok.Expiry.Sub(now) / time.Second)
		if accessMaxAge <= 0 {
			accessMaxAge = 1
		}
	}
	return []*http.Cookie{
		t.cookie(t.opts.AccessCookie, tok.AccessToken, accessMaxAge),
		t.cookie(t.opts.RefreshCookie, tok.RefreshToken, int(t.opts.RefreshMaxAge/time.Second)),
	}
}

func (t *TokenRefresher) clearCookies() []*http.Cookie {
	return []*http.Cookie{
		t.cookie(t.opts.AccessCookie, "", -1),
		t.cookie(t.opts.RefreshCookie, "", -1),
	}
}

func (t *TokenRefresher) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   t.opts.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   t.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

type apiKeyTransport struct {
	key  string
	base http.RoundTripper
}

func (t *apiKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.key == "" {
		return base.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	req.Header.Set("apikey", t.key)
	return base.RoundTrip(req)
}
