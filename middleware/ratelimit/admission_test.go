package ratelimit

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"admission-gateway/middleware/ratelimit/domain"
	"admission-gateway/middleware/ratelimit/infra"
	"admission-gateway/middleware/ratelimit/policy"
)

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time          { return c.t }
func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestAdmission(t *testing.T, clock *testClock) *Admission {
	t.Helper()
	reg, err := policy.NewRegistry(policy.Defaults()...)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return NewAdmission(AdmissionOptions{
		Policies: reg,
		Fixed:    infra.NewFixedWindow(),
		Sliding:  infra.NewSlidingWindow(),
		Logger:   quietLogger,
		Now:      clock.Now,
	})
}

func okHandler(calls *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.WriteHeader(http.StatusOK)
	})
}

func serve(h http.Handler, path, remote string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, "http://example"+path, nil)
	r.RemoteAddr = remote
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestAdmission_LoginScenario(t *testing.T) {
	clock := &testClock{t: time.UnixMilli(1_700_000_000_000)}
	a := newTestAdmission(t, clock)

	calls := 0
	h := a.MustMiddleware("login")(okHandler(&calls))

	for i := 0; i < 5; i++ {
		w := serve(h, "/api/auth/login", "10.0.0.1:1234")
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, w.Code)
		}
		if got := w.Header().Get("RateLimit-Remaining"); got != formatInt(4-i) {
			t.Fatalf("request %d: expected RateLimit-Remaining=%d, got %q", i+1, 4-i, got)
		}
	}

	w := serve(h, "/api/auth/login", "10.0.0.1:1234")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected JSON content type, got %q", ct)
	}
	if got := w.Header().Get("Retry-After"); got != "900" {
		t.Fatalf("expected Retry-After=900, got %q", got)
	}

	var body RejectionBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	want := RejectionBody{Success: false, Message: "Too many login attempts. Please try again after 15 minutes.", RetryAfter: 900}
	if body != want {
		t.Fatalf("expected %+v, got %+v", want, body)
	}
	if calls != 5 {
		t.Fatalf("expected 5 calls to next, got %d", calls)
	}
}

func TestAdmission_KeyIndependence(t *testing.T) {
	clock := &testClock{t: time.UnixMilli(1_700_000_000_000)}
	a := newTestAdmission(t, clock)

	calls := 0
	h := a.MustMiddleware("login")(okHandler(&calls))

	for i := 0; i < 6; i++ {
		serve(h, "/api/auth/login", "10.0.0.1:1234")
	}
	if w := serve(h, "/api/auth/login", "10.0.0.2:1234"); w.Code != http.StatusOK {
		t.Fatalf("expected other address to be admitted, got %d", w.Code)
	}
}

func TestAdmission_WindowRecovery(t *testing.T) {
	clock := &testClock{t: time.UnixMilli(1_700_000_000_000)}
	a := newTestAdmission(t, clock)

	calls := 0
	h := a.MustMiddleware("login")(okHandler(&calls))
	for i := 0; i < 6; i++ {
		serve(h, "/api/auth/login", "10.0.0.1:1234")
	}

	clock.Advance(15 * time.Minute)
	if w := serve(h, "/api/auth/login", "10.0.0.1:1234"); w.Code != http.StatusOK {
		t.Fatalf("expected admission after the window, got %d", w.Code)
	}
}

func TestAdmission_HealthPathBypass(t *testing.T) {
	clock := &testClock{t: time.UnixMilli(1_700_000_000_000)}
	a := newTestAdmission(t, clock)

	calls := 0
	h := a.MustMiddleware("login", "general")(okHandler(&calls))
	for i := 0; i < 500; i++ {
		if w := serve(h, DefaultHealthPath, "10.0.0.1:1234"); w.Code != http.StatusOK {
			t.Fatalf("request %d: expected health to bypass, got %d", i+1, w.Code)
		}
	}
	if calls != 500 {
		t.Fatalf("expected 500 calls, got %d", calls)
	}
}

func TestAdmission_IdentityOnlyAnonymousIsNotLimited(t *testing.T) {
	clock := &testClock{t: time.UnixMilli(1_700_000_000_000)}
	a := newTestAdmission(t, clock)

	calls := 0
	h := a.MustMiddleware("passwordChange")(okHandler(&calls))

	for i := 0; i < 20; i++ {
		if w := serve(h, "/api/auth/change-password", "10.0.0.1:1234"); w.Code != http.StatusOK {
			t.Fatalf("expected anonymous to skip identity-only policy, got %d", w.Code)
		}
	}

	codes := map[int]int{}
	for i := 0; i < 6; i++ {
		r := httptest.NewRequest(http.MethodPost, "http://example/api/auth/change-password", nil)
		r = r.WithContext(WithIdentity(r.Context(), "user-1"))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		codes[w.Code]++
	}
	if codes[http.StatusOK] != 5 || codes[http.StatusTooManyRequests] != 1 {
		t.Fatalf("expected 5 admits and 1 rejection for an identity, got %v", codes)
	}
}

func TestAdmission_LegacyHeaders(t *testing.T) {
	clock := &testClock{t: time.UnixMilli(1_700_000_000_000)}
	reg, err := policy.NewRegistry(domain.Policy{
		Name: "legacy", Window: time.Minute, MaxRequests: 2, Message: "m",
		LegacyHeaders: true, Strategy: domain.SlidingWindowStrategy, KeyMode: domain.KeyAddressOnly,
	})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	a := NewAdmission(AdmissionOptions{Policies: reg, Sliding: infra.NewSlidingWindow(), Logger: quietLogger, Now: clock.Now})

	calls := 0
	w := serve(a.MustMiddleware("legacy")(okHandler(&calls)), "/x", "10.0.0.1:1")
	if got := w.Header().Get("X-RateLimit-Limit"); got != "2" {
		t.Fatalf("expected X-RateLimit-Limit=2, got %q", got)
	}
	if got := w.Header().Get("X-RateLimit-Reset"); got != formatInt64(clock.Now().Add(time.Minute).Unix()) {
		t.Fatalf("expected epoch reset, got %q", got)
	}
	if got := w.Header().Get("RateLimit-Limit"); got != "" {
		t.Fatalf("expected no standard headers, got %q", got)
	}
}

func TestAdmission_UnknownPolicyIsConfigurationError(t *testing.T) {
	clock := &testClock{t: time.Now()}
	a := newTestAdmission(t, clock)

	_, err := a.Middleware("general", "doesNotExist")
	var cfgErr *domain.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if !errors.Is(err, domain.ErrUnknownPolicy) {
		t.Fatalf("expected ErrUnknownPolicy, got %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("expected MustMiddleware to panic")
		}
	}()
	a.MustMiddleware("doesNotExist")
}

func TestAdmission_MissingLimiterIsConfigurationError(t *testing.T) {
	reg, err := policy.NewRegistry(policy.Defaults()...)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	a := NewAdmission(AdmissionOptions{
		Policies: reg,
		Sliding:  infra.NewSlidingWindow(),
		Logger:   quietLogger,
	})

	_, err = a.Middleware("login")
	var cfgErr *domain.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if cfgErr.Policy != "login" {
		t.Fatalf("expected login to be reported, got %q", cfgErr.Policy)
	}
	if !errors.Is(err, domain.ErrInvalidPolicy) {
		t.Fatalf("expected ErrInvalidPolicy, got %v", err)
	}

	if _, err := a.Middleware("upload"); err != nil {
		t.Fatalf("expected sliding policy to mount, got %v", err)
	}
}
