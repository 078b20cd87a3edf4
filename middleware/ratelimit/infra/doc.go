// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - MemoryStore: contadores de janela fixa por chave, em memória, com varredura periódica
//   - RedisStore: mesmos contadores em Redis, compartilhados entre instâncias
//   - *StatsStore: estatísticas de decisão (memória, Redis, Prometheus)
//   - ChanPool: semáforo simples para limite de concorrência
package infra
