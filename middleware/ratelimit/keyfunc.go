package ratelimit

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

const unknownClient = "unknown"

type KeyFunc func(r *http.Request) string

// ClientIPOptions deixa explícita a fronteira de confiança na identificação do cliente.
//
// Headers de proxy são controlados pelo cliente: só valem se o gate estiver atrás
// de um proxy que os sobrescreve. Com TrustedProxies preenchido, os headers só são
// lidos quando RemoteAddr pertence a uma dessas redes.
type ClientIPOptions struct {
	KeyHeader         string
	TrustProxyHeaders bool
	TrustedProxies    []*net.IPNet
}

func ClientIPFunc(opts ClientIPOptions) KeyFunc {
	return func(r *http.Request) string {
		if opts.KeyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(opts.KeyHeader)); v != "" {
				return v
			}
		}

		remote := remoteHost(r.RemoteAddr)

		if opts.TrustProxyHeaders && fromTrustedHop(remote, opts.TrustedProxies) {
			// pega o primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip := strings.TrimSpace(first); ip != "" {
					return ip
				}
			}
			if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
				return ip
			}
		}

		if remote != "" {
			return remote
		}
		return unknownClient
	}
}

func remoteHost(addr string) string {
	addr = strings.TrimSpace(addr)
	host, _, err := net.SplitHostPort(addr)
	if err == nil && host != "" {
		return host
	}
	return addr
}

// fromTrustedHop: sem lista configurada, qualquer hop é confiável (comportamento legado).
func fromTrustedHop(remote string, nets []*net.IPNet) bool {
	if len(nets) == 0 {
		return true
	}
	ip := net.ParseIP(remote)
	if ip == nil {
		return false
	}
	for _, n := range nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// ParseCIDRs aceita CIDRs ou IPs soltos (viram /32 ou /128).
func ParseCIDRs(values []string) ([]*net.IPNet, error) {
	out := make([]*net.IPNet, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if !strings.Contains(v, "/") {
			ip := net.ParseIP(v)
			if ip == nil {
				return nil, fmt.Errorf("invalid trusted proxy %q", v)
			}
			if ip.To4() != nil {
				v += "/32"
			} else {
				v += "/128"
			}
		}
		_, n, err := net.ParseCIDR(v)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", v, err)
		}
		out = append(out, n)
	}
	return out, nil
}

// PathGroup reduz o path aos primeiros `depth` segmentos, para que superfícies
// diferentes da API tenham orçamentos separados por cliente.
//
//	PathGroup("/api/auth/login", 2) == "/api/auth"
func PathGroup(path string, depth int) string {
	if depth <= 0 {
		depth = 2
	}
	segs := make([]string, 0, depth)
	for _, s := range strings.Split(path, "/") {
		if s == "" {
			continue
		}
		segs = append(segs, s)
		if len(segs) == depth {
			break
		}
	}
	return "/" + strings.Join(segs, "/")
}
