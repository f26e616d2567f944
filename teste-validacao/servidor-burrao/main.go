package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
)

// Upstream burro para testar o gateway localmente: responde tudo com 200.
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"status": "ok"})
	})
	r.HandleFunc("/api/*", func(w http.ResponseWriter, r *http.Request) {
		logger.Info("upstream hit", "method", r.Method, "path", r.URL.Path,
			"xff", r.Header.Get("X-Forwarded-For"))
		writeJSON(w, map[string]any{"success": true, "path": r.URL.Path})
	})

	addr := ":3000"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}
	logger.Info("upstream stub listening", "addr", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Error("upstream stopped", "error", err)
		os.Exit(1)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
