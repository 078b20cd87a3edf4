// Package cors negocia permissões cross-origin das rotas /api.
//
// Só origens exatas da allow-list são ecoadas; como credenciais são permitidas,
// nunca há wildcard.
package cors

import (
	"net/http"
	"strings"
)

const (
	DefaultMethods = "GET, POST, PUT, DELETE, OPTIONS"
	DefaultHeaders = "Content-Type, Authorization"
	APIPrefix      = "/api"
)

// DevOrigins são liberadas sempre, para desenvolvimento local.
var DevOrigins = []string{"http://localhost:3000", "http://127.0.0.1:3000"}

type Options struct {
	// AppURL é a URL pública da aplicação; barra final é removida.
	AppURL  string
	Extra   []string
	Methods []string
	Headers []string
}

type Negotiator struct {
	origins map[string]struct{}
	methods string
	headers string
}

func New(opts Options) *Negotiator {
	n := &Negotiator{
		origins: make(map[string]struct{}),
		methods: DefaultMethods,
		headers: DefaultHeaders,
	}
	if len(opts.Methods) > 0 {
		n.methods = strings.Join(opts.Methods, ", ")
	}
	if len(opts.Headers) > 0 {
		n.headers = strings.Join(opts.Headers, ", ")
	}

	add := func(o string) {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o != "" {
			n.origins[o] = struct{}{}
		}
	}
	add(opts.AppURL)
	for _, o := range DevOrigins {
		add(o)
	}
	for _, o := range opts.Extra {
		add(o)
	}
	return n
}

// Allowed informa se a origem está na allow-list (comparação exata).
func (n *Negotiator) Allowed(origin string) bool {
	if origin == "" {
		return false
	}
	_, ok := n.origins[origin]
	return ok
}

// IsAPI diz se o path está sob /api.
func IsAPI(path string) bool {
	return path == APIPrefix || strings.HasPrefix(path, APIPrefix+"/")
}

// Apply escreve os headers CORS em h para requisições /api.
// Retorna true quando é preflight (OPTIONS) e o pipeline deve responder 200 vazio.
func (n *Negotiator) Apply(h http.Header, r *http.Request) (preflight bool) {
	if !IsAPI(r.URL.Path) {
		return false
	}

	origin := r.Header.Get("Origin")
	if n.Allowed(origin) {
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Set("Access-Control-Allow-Methods", n.methods)
		h.Set("Access-Control-Allow-Headers", n.headers)
	}
	h.Add("Vary", "Origin")

	return r.Method == http.MethodOptions
}
