package ratelimit

import (
	"log/slog"
	"net/http"
	"time"

	"admission-gateway/middleware/ratelimit/application"
	"admission-gateway/middleware/ratelimit/domain"
	"admission-gateway/middleware/ratelimit/policy"
)

const DefaultHealthPath = "/health"

// PolicyLookup é o que o middleware precisa do registry.
type PolicyLookup interface {
	LookupAll(names ...string) ([]domain.Policy, error)
}

var _ PolicyLookup = (*policy.Registry)(nil)

type AdmissionOptions struct {
	Policies PolicyLookup
	Fixed    domain.Limiter
	Sliding  domain.Limiter
	Stats    domain.StatsStore
	Logger   *slog.Logger
	Now      func() time.Time

	// ExemptPaths nunca passam por política. Vazio = só DefaultHealthPath.
	ExemptPaths []string

	Extractor RequestExtractor
}

// Admission monta middlewares por rota a partir de nomes de política.
type Admission struct {
	svc       application.Service
	policies  PolicyLookup
	exempt    map[string]struct{}
	extractor RequestExtractor
	now       func() time.Time
}

func NewAdmission(opts AdmissionOptions) *Admission {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if len(opts.ExemptPaths) == 0 {
		opts.ExemptPaths = []string{DefaultHealthPath}
	}

	exempt := make(map[string]struct{}, len(opts.ExemptPaths))
	for _, p := range opts.ExemptPaths {
		exempt[p] = struct{}{}
	}

	return &Admission{
		svc: application.Service{
			Fixed:   opts.Fixed,
			Sliding: opts.Sliding,
			Stats:   opts.Stats,
			Logger:  opts.Logger,
			Now:     opts.Now,
		},
		policies:  opts.Policies,
		exempt:    exempt,
		extractor: opts.Extractor,
		now:       opts.Now,
	}
}

// Exempt diz se o path pula todas as políticas.
func (a *Admission) Exempt(path string) bool {
	_, ok := a.exempt[path]
	return ok
}

// Middleware resolve as políticas agora: nome desconhecido, ou estratégia
// sem limiter, é *domain.ConfigurationError e deve impedir o startup.
func (a *Admission) Middleware(names ...string) (func(http.Handler) http.Handler, error) {
	policies, err := a.policies.LookupAll(names...)
	if err != nil {
		return nil, err
	}
	if err := a.svc.CheckPolicies(policies...); err != nil {
		return nil, err
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a.Exempt(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			dec := a.svc.Decide(r.Context(), a.extractor.Extract(r), policies...)
			writeQuotaHeaders(w, dec.Quota, a.now())
			if !dec.Allowed {
				WriteRejection(w, dec)
				return
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}

// MustMiddleware é Middleware para wiring de startup; entra em pânico com política desconhecida.
func (a *Admission) MustMiddleware(names ...string) func(http.Handler) http.Handler {
	mw, err := a.Middleware(names...)
	if err != nil {
		panic(err)
	}
	return mw
}
