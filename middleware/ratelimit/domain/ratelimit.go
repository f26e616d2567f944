package domain

// Camada de domínio do admission control.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import "time"

// Key identifica o sujeito de uma cota dentro de uma política.
type Key string

// Request é o recorte do request HTTP que o admission control enxerga.
//
// Address já vem resolvido pelo adapter HTTP (host do RemoteAddr, ou o
// primeiro X-Forwarded-For quando o proxy é confiável). ForwardedFor é o
// fallback quando Address está vazio. Identity é preenchida pela camada de
// autenticação; vazio significa anônimo.
type Request struct {
	Address      string
	ForwardedFor string
	Identity     string

	Method string
	Path   string
}

// Verdict é o resultado de um limiter para (política, chave).
type Verdict struct {
	Allowed bool
	// RetryAfterSeconds só é > 0 quando Allowed=false.
	RetryAfterSeconds int

	Limit     int
	Remaining int
	// ResetAt é quando o slot mais antigo expira (sliding) ou a janela fecha (fixed).
	ResetAt time.Time
}

// Limiter decide admit/reject para uma chave dentro de uma política.
//
// Implementações guardam um estado lógico por política e precisam ser seguras
// para uso concorrente: ler-comparar-gravar de uma chave é uma seção crítica.
//
// A implementação em memória não coordena cotas entre instâncias do gateway;
// com N réplicas cada uma aplica a cota inteira.
type Limiter interface {
	Evaluate(p Policy, key Key, now time.Time) (Verdict, error)
}

// Quota é o que vira header RateLimit-* / X-RateLimit-*.
type Quota struct {
	Limit     int
	Remaining int
	ResetAt   time.Time

	StandardHeaders bool
	LegacyHeaders   bool
}

// Decision é a saída da camada application: Admit ou Reject.
type Decision struct {
	Allowed bool
	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	// Sempre inteiro em segundos e > 0 numa rejeição.
	RetryAfter int
	Message    string

	// Policy é a política que rejeitou ou, num admit, a mais restritiva avaliada.
	Policy string
	Quota  *Quota
}

func Admit() Decision { return Decision{Allowed: true} }

func Reject(policy, message string, retryAfter int) Decision {
	if retryAfter < 1 {
		retryAfter = 1
	}
	return Decision{Policy: policy, Message: message, RetryAfter: retryAfter}
}

// BucketLimiter é algo que pode decidir se uma ação é permitida agora
// (token bucket do overload shield).
type BucketLimiter interface {
	Allow() bool
}

// BucketStore obtém um token bucket por chave (ex: IP).
type BucketStore interface {
	Get(Key) BucketLimiter
}
