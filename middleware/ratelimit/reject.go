package ratelimit

import (
	"encoding/json"
	"net/http"
	"time"

	"admission-gateway/middleware/ratelimit/domain"
)

// RejectionBody é o payload de toda rejeição, independente do algoritmo.
type RejectionBody struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retryAfter"`
}

// WriteRejection responde 429 com Retry-After e o JSON padrão.
func WriteRejection(w http.ResponseWriter, dec domain.Decision) {
	writeJSONRejection(w, http.StatusTooManyRequests, dec.Message, dec.RetryAfter)
}

func writeJSONRejection(w http.ResponseWriter, status int, message string, retryAfter int) {
	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", formatInt(retryAfter))
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(RejectionBody{
		Success:    false,
		Message:    message,
		RetryAfter: retryAfter,
	})
}

// writeQuotaHeaders escreve RateLimit-* (reset em segundos) e/ou
// X-RateLimit-* (reset em epoch seconds), conforme as flags da política.
func writeQuotaHeaders(w http.ResponseWriter, q *domain.Quota, now time.Time) {
	if q == nil {
		return
	}
	remaining := max(q.Remaining, 0)

	if q.StandardHeaders {
		w.Header().Set("RateLimit-Limit", formatInt(q.Limit))
		w.Header().Set("RateLimit-Remaining", formatInt(remaining))
		w.Header().Set("RateLimit-Reset", formatInt(ceilSeconds(q.ResetAt.Sub(now))))
	}
	if q.LegacyHeaders {
		w.Header().Set("X-RateLimit-Limit", formatInt(q.Limit))
		w.Header().Set("X-RateLimit-Remaining", formatInt(remaining))
		w.Header().Set("X-RateLimit-Reset", formatInt64(epochSecondsCeil(q.ResetAt)))
	}
}
