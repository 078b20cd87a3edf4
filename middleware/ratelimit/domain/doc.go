// Package domain define contratos e tipos de domínio do gate: janela de rate limit,
// registros por chave, decisões e estatísticas.
//
// Este pacote não depende de net/http nem de implementações concretas.
// A intenção é permitir testes de unidade puros e trocar o store (memória, Redis)
// sem mexer na regra.
package domain
