// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - FixedWindow: contador por janela fixa, por política e chave
//   - SlidingWindow: lista de timestamps por chave + sweeper inline
//   - BucketStore: token bucket por chave usando golang.org/x/time/rate (overload shield)
//   - ChanPool: semáforo simples para limite de concorrência
//   - stats: memória, Redis e Prometheus
//
// Todo estado é em memória e local ao processo.
package infra
