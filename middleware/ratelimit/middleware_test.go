package ratelimit

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"admission-gateway/middleware/ratelimit/infra"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestShieldMiddleware_AllowsThenRejectsSameKey(t *testing.T) {
	store := infra.NewBucketStore(0.02, 1)
	stats := infra.NewMemoryStatsStore()

	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok")
	})

	h := ShieldMiddleware(ShieldOptions{
		Store:               store,
		Stats:               stats,
		Logger:              quietLogger,
		RetryAfter:          1 * time.Second,
		AddRateLimitHeaders: true,
	})(next)

	// 1) primeira passa
	r1 := httptest.NewRequest(http.MethodGet, "http://example/showTela", nil)
	r1.RemoteAddr = "10.0.0.1:1234"
	w1 := httptest.NewRecorder()
	h.ServeHTTP(w1, r1)
	if w1.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w1.Code)
	}
	if got := w1.Header().Get("X-Shield-RPS"); got != "0.02" {
		t.Fatalf("expected X-Shield-RPS=0.02, got %q", got)
	}
	if got := w1.Header().Get("X-Shield-Burst"); got != "1" {
		t.Fatalf("expected X-Shield-Burst=1, got %q", got)
	}

	// 2) segunda deve bloquear (burst=1 e rps bem baixo)
	r2 := httptest.NewRequest(http.MethodGet, "http://example/showTela", nil)
	r2.RemoteAddr = "10.0.0.1:1234"
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, r2)
	if w2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w2.Code)
	}
	if got := w2.Header().Get("Retry-After"); got == "" {
		t.Fatalf("expected Retry-After header to be set")
	}

	var body RejectionBody
	if err := json.NewDecoder(w2.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Success || body.Message != DefaultShieldMessage || body.RetryAfter < 1 {
		t.Fatalf("unexpected body %+v", body)
	}

	if calls != 1 {
		t.Fatalf("expected next handler to be called once, got %d", calls)
	}
	if tot := stats.Total(); tot.Allowed != 1 || tot.Denied != 1 {
		t.Fatalf("expected 1 allowed / 1 denied, got %+v", tot)
	}
}

func TestShieldMiddleware_KeyByHeader(t *testing.T) {
	store := infra.NewBucketStore(0.02, 1)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	h := ShieldMiddleware(ShieldOptions{
		Store:     store,
		Logger:    quietLogger,
		KeyHeader: "X-Api-Key",
	})(next)

	// duas chaves diferentes => ambos devem passar (cada chave tem seu próprio bucket)
	for _, k := range []string{"k1", "k2"} {
		r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
		r.Header.Set("X-Api-Key", k)
		r.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200 for key %s, got %d", k, w.Code)
		}
	}
}

func TestShieldMiddleware_RetryAfterRoundsUp(t *testing.T) {
	store := infra.NewBucketStore(0.5, 1)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	h := ShieldMiddleware(ShieldOptions{
		Store:      store,
		Logger:     quietLogger,
		RetryAfter: 500 * time.Millisecond,
	})(next)

	r1 := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r1.RemoteAddr = "10.0.0.1:1234"
	h.ServeHTTP(httptest.NewRecorder(), r1)

	r2 := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r2.RemoteAddr = "10.0.0.1:1234"
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, r2)
	if w2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w2.Code)
	}
	// 0.5 rps => próximo token em ~2s
	if got := strings.TrimSpace(w2.Header().Get("Retry-After")); got != "2" {
		t.Fatalf("expected Retry-After=2, got %q", got)
	}
}

func TestShieldMiddleware_HealthBypass(t *testing.T) {
	store := infra.NewBucketStore(0.02, 1)
	h := ShieldMiddleware(ShieldOptions{Store: store, Logger: quietLogger})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for i := 0; i < 10; i++ {
		r := httptest.NewRequest(http.MethodGet, "http://example/health", nil)
		r.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		if w.Code != http.StatusOK {
			t.Fatalf("expected health check to bypass shield, got %d", w.Code)
		}
	}
}
