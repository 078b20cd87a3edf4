// Package ratelimit fornece adapters HTTP (net/http) para rate limit por janela fixa
// e limite de concorrência.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (decisão allow/deny, acquire/timeout) sem net/http
//   - infra: implementações concretas (janelas em memória/Redis, semáforo, stats)
//   - ratelimit (este pacote): identificação do cliente, grupo de rota, tradução
//     da decisão para status/headers
//
// Fluxo no gate:
//
//  1. Extrai o cliente (header dedicado, X-Forwarded-For/X-Real-IP se confiáveis, RemoteAddr)
//  2. Monta a chave cliente|grupo (primeiros segmentos do path)
//  3. Chama a camada application para obter a decisão
//  4. Se bloqueado, responde 429 com Retry-After e X-RateLimit-*
//  5. Se permitido, segue o pipeline do gate
package ratelimit
