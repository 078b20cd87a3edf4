// Package route classifica o path da requisição: asset estático, bloqueio de
// pré-lançamento e política de rate limit.
//
// É uma função pura do path e das tabelas fixas; não olha método, headers nem cookies.
package route

import (
	"regexp"
	"strings"
	"time"

	"jobboard-gate/middleware/ratelimit/domain"
)

// imageExt casa arquivos de imagem estáticos servidos pelo app.
var imageExt = regexp.MustCompile(`(?i)\.(svg|png|jpe?g|gif|webp|avif|ico)$`)

// Rule associa um prefixo de path a uma política. A primeira que casar vence.
type Rule struct {
	Prefix string
	Policy domain.Policy
}

const DefaultGroup = "default"

var (
	// DefaultRules é a tabela ordenada usada quando Options.Rules está vazio.
	DefaultRules = []Rule{
		{Prefix: "/api/auth", Policy: domain.Policy{Limit: 5, Window: time.Minute}},
		{Prefix: "/api/ai", Policy: domain.Policy{Limit: 10, Window: time.Minute}},
		{Prefix: "/api/checkout", Policy: domain.Policy{Limit: 10, Window: time.Minute}},
		{Prefix: "/api/email", Policy: domain.Policy{Limit: 10, Window: time.Minute}},
		{Prefix: "/api/applications", Policy: domain.Policy{Limit: 20, Window: time.Minute}},
		{Prefix: "/api/jobs", Policy: domain.Policy{Limit: 60, Window: time.Minute}},
		{Prefix: "/api/webhooks", Policy: domain.Policy{Limit: 100, Window: time.Minute}},
	}

	DefaultPolicy = domain.Policy{Limit: 100, Window: time.Minute}

	// DefaultAssetPrefixes nunca passam pelo gate.
	DefaultAssetPrefixes = []string{"/_next/static/", "/_next/image", "/favicon.ico"}

	// DefaultAllowPrefixes continuam acessíveis durante o pré-lançamento.
	DefaultAllowPrefixes = []string{"/api/", "/_next/", "/favicon.ico"}
)

type Options struct {
	Prelaunch     bool
	WaitlistPath  string
	AllowPrefixes []string
	AssetPrefixes []string
	Rules         []Rule
	Default       domain.Policy
}

// Class é o resultado da classificação.
type Class struct {
	// Asset: isento de tudo (sem contagem, sem redirect, sem headers).
	Asset bool
	// Redirect: pré-lançamento ativo e path fora da allow-list.
	Redirect bool
	Policy   domain.Policy
	// Group é o prefixo da regra que casou, ou DefaultGroup.
	Group string
}

type Classifier struct {
	prelaunch bool
	waitlist  string
	allow     []string
	assets    []string
	rules     []Rule
	def       domain.Policy
}

func New(opts Options) *Classifier {
	c := &Classifier{
		prelaunch: opts.Prelaunch,
		waitlist:  opts.WaitlistPath,
		allow:     opts.AllowPrefixes,
		assets:    opts.AssetPrefixes,
		rules:     opts.Rules,
		def:       opts.Default,
	}
	if c.waitlist == "" {
		c.waitlist = "/waitlist"
	}
	if c.allow == nil {
		c.allow = DefaultAllowPrefixes
	}
	if c.assets == nil {
		c.assets = DefaultAssetPrefixes
	}
	if c.rules == nil {
		c.rules = DefaultRules
	}
	if !c.def.Enabled() {
		c.def = DefaultPolicy
	}
	return c
}

func (c *Classifier) WaitlistPath() string { return c.waitlist }

func (c *Classifier) Classify(path string) Class {
	if IsAsset(path, c.assets) {
		return Class{Asset: true}
	}
	if c.prelaunch && !c.allowedDuringPrelaunch(path) {
		return Class{Redirect: true}
	}
	p, group := c.policyFor(path)
	return Class{Policy: p, Group: group}
}

// Policy adapta o classificador para ratelimit.PolicyFunc.
func (c *Classifier) Policy(path string) (domain.Policy, string, bool) {
	cl := c.Classify(path)
	if cl.Asset || cl.Redirect {
		return domain.Policy{}, "", false
	}
	return cl.Policy, cl.Group, true
}

func (c *Classifier) allowedDuringPrelaunch(path string) bool {
	if path == c.waitlist || strings.HasPrefix(path, strings.TrimSuffix(c.waitlist, "/")+"/") {
		return true
	}
	if imageExt.MatchString(path) {
		return true
	}
	for _, p := range c.allow {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func (c *Classifier) policyFor(path string) (domain.Policy, string) {
	for _, r := range c.rules {
		if strings.HasPrefix(path, r.Prefix) {
			return r.Policy, r.Prefix
		}
	}
	return c.def, DefaultGroup
}

// IsAsset reporta se o path é um asset estático (prefixos ou extensão de imagem).
func IsAsset(path string, prefixes []string) bool {
	if imageExt.MatchString(path) {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
