// Package secure monta os headers de segurança fixos do gate.
//
// Os pares são calculados uma vez na construção; Apply só copia para a resposta.
package secure

import (
	"net/http"
	"strings"
	"sync/atomic"
)

type headerPair struct {
	name  string
	value string
}

// Origens de terceiros liberadas na CSP de produção.
var (
	SupabaseOrigins = []string{"https://*.supabase.co", "wss://*.supabase.co"}
	OpenAIOrigins   = []string{"https://api.openai.com"}
	ResendOrigins   = []string{"https://api.resend.com"}
	StripeOrigins   = []string{"https://js.stripe.com", "https://api.stripe.com", "https://hooks.stripe.com"}
)

type Options struct {
	// Production liga a Content-Security-Policy.
	Production bool
	// AppURL entra em connect-src.
	AppURL string
	// ExtraConnect são origens adicionais para connect-src.
	ExtraConnect []string
}

type Headers struct {
	pairs   []headerPair
	applied atomic.Int64
}

func New(opts Options) *Headers {
	pairs := []headerPair{
		{"X-DNS-Prefetch-Control", "on"},
		{"Strict-Transport-Security", "max-age=31536000; includeSubDomains"},
		{"X-Frame-Options", "SAMEORIGIN"},
		{"X-Content-Type-Options", "nosniff"},
		{"X-XSS-Protection", "1; mode=block"},
		{"Referrer-Policy", "strict-origin-when-cross-origin"},
		{"Permissions-Policy", "camera=(), microphone=(), geolocation=()"},
	}
	if opts.Production {
		pairs = append(pairs, headerPair{"Content-Security-Policy", ContentSecurityPolicy(opts)})
	}
	return &Headers{pairs: pairs}
}

// Apply sobrescreve os headers de segurança em h.
func (s *Headers) Apply(h http.Header) {
	s.applied.Add(1)
	for _, p := range s.pairs {
		h.Set(p.name, p.value)
	}
}

// Applied conta quantas respostas receberam os headers.
func (s *Headers) Applied() int64 { return s.applied.Load() }

// Names lista os headers configurados, na ordem em que são aplicados.
func (s *Headers) Names() []string {
	out := make([]string, len(s.pairs))
	for i, p := range s.pairs {
		out[i] = p.name
	}
	return out
}

// ContentSecurityPolicy monta a política de produção.
func ContentSecurityPolicy(opts Options) string {
	stripeJS := "https://js.stripe.com"
	stripeFrames := []string{"https://js.stripe.com", "https://hooks.stripe.com"}

	connect := []string{"'self'"}
	connect = append(connect, SupabaseOrigins...)
	connect = append(connect, OpenAIOrigins...)
	connect = append(connect, ResendOrigins...)
	connect = append(connect, "https://api.stripe.com")
	if app := strings.TrimRight(strings.TrimSpace(opts.AppURL), "/"); app != "" {
		connect = append(connect, app)
	}
	connect = append(connect, opts.ExtraConnect...)

	directives := [][]string{
		{"default-src", "'self'"},
		{"script-src", "'self'", "'unsafe-inline'", "'unsafe-eval'", stripeJS},
		{"style-src", "'self'", "'unsafe-inline'"},
		{"img-src", "'self'", "data:", "blob:", "https:"},
		{"font-src", "'self'", "data:"},
		append([]string{"connect-src"}, connect...),
		append([]string{"frame-src", "'self'"}, stripeFrames...),
		{"frame-ancestors", "'self'"},
		{"object-src", "'none'"},
		{"upgrade-insecure-requests"},
	}

	parts := make([]string, 0, len(directives))
	for _, d := range directives {
		parts = append(parts, strings.Join(d, " "))
	}
	return strings.Join(parts, "; ")
}
