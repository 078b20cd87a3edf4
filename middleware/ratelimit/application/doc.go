// Package application contém os casos de uso do gate: decisão de rate limit por
// janela fixa e limite de concorrência.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Service.Decide(ctx, key, policy) retorna uma Decision (allow/deny + headers).
package application
