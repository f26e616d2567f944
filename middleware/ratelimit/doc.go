// Package ratelimit fornece adapters HTTP (net/http) para admission control por
// política, overload shield e limite de concorrência.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (decisão admit/reject, derivação de chave, acquire/timeout)
//   - infra: implementações concretas (fixed/sliding window, token bucket, semáforo, stats)
//   - policy: tabela de políticas e arquivo YAML
//   - ratelimit (este pacote): middlewares HTTP + extração do request + tradução para status/headers
//
// Fluxo no gateway:
//
//  1. Extrai endereço, X-Forwarded-For e identidade do request
//  2. Chama a camada application com as políticas da rota
//  3. Se rejeitado, responde 429 com {"success":false,"message":...,"retryAfter":N}
//  4. Se admitido, escreve os headers RateLimit-* e chama o próximo handler
//
// O estado das cotas é em memória: com várias instâncias do gateway cada uma
// conta sozinha.
package ratelimit
