package ratelimit

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"admission-gateway/middleware/ratelimit/domain"
)

type KeyFunc func(r *http.Request) string

const DefaultShieldMessage = "Server is receiving too many requests from this address. Please slow down."

// ShieldOptions configura o overload shield: um token bucket por chave na
// frente de todas as políticas, para segurar rajadas antes de qualquer
// contagem por rota.
type ShieldOptions struct {
	Store               domain.BucketStore
	Stats               domain.StatsStore
	Logger              *slog.Logger
	KeyFn               KeyFunc
	KeyHeader           string
	TrustXForwardedFor  bool
	Message             string
	RetryAfter          time.Duration
	AddRateLimitHeaders bool
	ExemptPaths         []string
}

type rateInfo interface {
	RPS() float64
	Burst() int
}

type retryEstimator interface {
	RetryAfter(domain.Key) time.Duration
}

// DefaultKeyFunc: header configurado, depois X-Forwarded-For (se confiável),
// depois o host do RemoteAddr.
func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			if ip := firstForwardedFor(r); ip != "" {
				return ip
			}
		}

		if host := remoteHost(r); host != "" {
			return host
		}
		return "unknown"
	}
}

// ShieldMiddleware responde 429 com o mesmo JSON das políticas quando o
// bucket da chave está vazio. Sem Store, é um no-op.
func ShieldMiddleware(opts ShieldOptions) func(next http.Handler) http.Handler {
	if opts.Store == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RetryAfter <= 0 {
		opts.RetryAfter = time.Second
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}
	if opts.Message == "" {
		opts.Message = DefaultShieldMessage
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if len(opts.ExemptPaths) == 0 {
		opts.ExemptPaths = []string{DefaultHealthPath}
	}
	exempt := make(map[string]struct{}, len(opts.ExemptPaths))
	for _, p := range opts.ExemptPaths {
		exempt[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exempt[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			key := domain.Key(opts.KeyFn(r))

			if opts.AddRateLimitHeaders {
				if ri, ok := opts.Store.(rateInfo); ok {
					w.Header().Set("X-Shield-RPS", formatFloat(ri.RPS()))
					w.Header().Set("X-Shield-Burst", formatInt(ri.Burst()))
				}
			}

			allowed := true
			if lim := opts.Store.Get(key); lim != nil {
				allowed = lim.Allow()
			}
			if opts.Stats != nil {
				_ = opts.Stats.Record(r.Context(), domain.StatsEvent{
					Policy:  "shield",
					Key:     key,
					Allowed: allowed,
					Method:  r.Method,
					Path:    r.URL.Path,
					At:      time.Now(),
				})
			}
			if allowed {
				next.ServeHTTP(w, r)
				return
			}

			retry := opts.RetryAfter
			if est, ok := opts.Store.(retryEstimator); ok {
				retry = max(retry, est.RetryAfter(key))
			}
			secs := ceilSeconds(retry)
			opts.Logger.WarnContext(r.Context(), fmt.Sprintf("Rate limit exceeded: %s - %s", string(key), r.URL.Path),
				"policy", "shield", "retry_after", secs)
			writeJSONRejection(w, http.StatusTooManyRequests, opts.Message, secs)
		})
	}
}
