// Package application decide admit/reject para uma request dado um conjunto
// ordenado de políticas, e controla as vagas de concorrência.
//
// Só conhece domain. A derivação da chave (DeriveKey) e a escolha do limiter
// por estratégia moram aqui; o armazenamento das janelas fica em infra.
package application
