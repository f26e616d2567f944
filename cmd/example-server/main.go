package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"admission-gateway/middleware/ratelimit"
	"admission-gateway/middleware/ratelimit/infra"
	"admission-gateway/middleware/ratelimit/policy"
)

func main() {
	// Exemplo: políticas direto no seu webserver (sem proxy)
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	reg, err := policy.NewRegistry(policy.Defaults()...)
	if err != nil {
		logger.Error("registry", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fixed := infra.NewFixedWindow()
	fixed.StartJanitor(ctx, time.Minute)

	adm := ratelimit.NewAdmission(ratelimit.AdmissionOptions{
		Policies: reg,
		Fixed:    fixed,
		Sliding:  infra.NewSlidingWindow(),
		Logger:   logger,
	})

	ok := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}

	r := chi.NewRouter()
	r.Use(ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{Max: 50, Logger: logger}))
	r.Use(fakeAuth)
	r.Get(ratelimit.DefaultHealthPath, ok)

	r.Route("/api", func(r chi.Router) {
		r.Use(adm.MustMiddleware("general"))

		r.With(adm.MustMiddleware("login")).Post("/auth/login", ok)
		r.With(adm.MustMiddleware("passwordChange")).Post("/auth/change-password", ok)
		r.With(adm.MustMiddleware("aiAnalysis")).Post("/ai/analyze", ok)
		r.With(adm.MustMiddleware("adminGeneral", "bulkOperations")).Post("/admin/bulk/delete", ok)
		r.Get("/*", ok)
	})

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("example server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// fakeAuth faz o papel da autenticação: X-User-Id vira a identidade da request.
// Não use assim em produção.
func fakeAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get("X-User-Id"); id != "" {
			r = r.WithContext(ratelimit.WithIdentity(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}
