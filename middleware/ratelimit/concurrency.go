package ratelimit

import (
	"log/slog"
	"net/http"
	"time"

	"admission-gateway/middleware/ratelimit/application"
	"admission-gateway/middleware/ratelimit/domain"
	"admission-gateway/middleware/ratelimit/infra"
)

const DefaultBusyMessage = "Server is busy. Please try again shortly."

type ConcurrencyOptions struct {
	Max            int
	RejectStatus   int
	AcquireTimeout time.Duration
	Message        string
	Logger         *slog.Logger
}

// ConcurrencyMiddleware limita requests em voo. Sem vaga dentro do timeout,
// responde RejectStatus (503 por padrão) com o mesmo JSON das rejeições de cota.
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	pool := infra.NewChanPool(opts.Max)
	if pool == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}
	if opts.Message == "" {
		opts.Message = DefaultBusyMessage
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	svc := application.ConcurrencyService{
		Pool:           pool,
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			slot, ok := svc.Acquire(r.Context())
			if !ok {
				attrs := []any{"path", r.URL.Path, "waited", slot.Waited}
				if g, ok := pool.(domain.SlotGauge); ok {
					attrs = append(attrs, "in_use", g.InUse(), "capacity", g.Capacity())
				}
				opts.Logger.WarnContext(r.Context(), "concurrency limit reached", attrs...)
				writeJSONRejection(w, opts.RejectStatus, opts.Message, 1)
				return
			}
			defer slot.Release()

			next.ServeHTTP(w, r)
		})
	}
}
