package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"admission-gateway/middleware/ratelimit/domain"
)

// failClosedRetryAfter é o Retry-After quando o store falha.
const failClosedRetryAfter = 1

// Service concentra a regra de aplicação do admission control.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type Service struct {
	Fixed   domain.Limiter
	Sliding domain.Limiter
	Stats   domain.StatsStore
	Logger  *slog.Logger
	Now     func() time.Time
}

func (s Service) limiter(st domain.Strategy) domain.Limiter {
	if st == domain.FixedWindowStrategy {
		return s.Fixed
	}
	return s.Sliding
}

// Decide avalia as políticas em ordem. A primeira rejeição encerra a
// avaliação; as políticas seguintes não consomem cota.
//
// Erro do store vira rejeição (fail closed) e não sai daqui.
func (s Service) Decide(ctx context.Context, req domain.Request, policies ...domain.Policy) domain.Decision {
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}

	dec := domain.Admit()
	for _, p := range policies {
		key, ok := DeriveKey(req, p)
		if !ok {
			continue
		}
		var (
			v   domain.Verdict
			err error
		)
		if lim := s.limiter(p.Strategy); lim != nil {
			v, err = lim.Evaluate(p, key, now)
		} else {
			err = errNoLimiter(p)
		}
		if err != nil {
			s.Logger.ErrorContext(ctx, "rate limit evaluation failed, rejecting",
				"policy", p.Name, "key", string(key), "error", err)
			s.record(ctx, req, p.Name, key, false, now)
			rej := domain.Reject(p.Name, p.Message, failClosedRetryAfter)
			s.logRejection(ctx, req, p.Name, key, rej.RetryAfter)
			return rej
		}

		s.record(ctx, req, p.Name, key, v.Allowed, now)
		q := quotaOf(p, v)

		if !v.Allowed {
			rej := domain.Reject(p.Name, p.Message, v.RetryAfterSeconds)
			rej.Quota = q
			s.logRejection(ctx, req, p.Name, key, rej.RetryAfter)
			return rej
		}

		if dec.Quota == nil || q.Remaining < dec.Quota.Remaining {
			dec.Policy = p.Name
			dec.Quota = q
		}
	}
	return dec
}

// CheckPolicies falha se alguma política usa uma estratégia sem limiter configurado.
// Chamado na montagem do middleware, antes do primeiro request.
func (s Service) CheckPolicies(policies ...domain.Policy) error {
	for _, p := range policies {
		if s.limiter(p.Strategy) == nil {
			return errNoLimiter(p)
		}
	}
	return nil
}

func errNoLimiter(p domain.Policy) *domain.ConfigurationError {
	return &domain.ConfigurationError{
		Policy: p.Name,
		Reason: fmt.Sprintf("no limiter configured for strategy %s", p.Strategy),
	}
}

func quotaOf(p domain.Policy, v domain.Verdict) *domain.Quota {
	return &domain.Quota{
		Limit:           v.Limit,
		Remaining:       v.Remaining,
		ResetAt:         v.ResetAt,
		StandardHeaders: p.StandardHeaders,
		LegacyHeaders:   p.LegacyHeaders,
	}
}

func (s Service) logRejection(ctx context.Context, req domain.Request, policy string, key domain.Key, retryAfter int) {
	s.Logger.WarnContext(ctx, fmt.Sprintf("Rate limit exceeded: %s - %s", ResolveAddress(req), req.Path),
		"policy", policy, "key", string(key), "retry_after", retryAfter)
}

func (s Service) record(ctx context.Context, req domain.Request, policy string, key domain.Key, allowed bool, at time.Time) {
	if s.Stats == nil {
		return
	}
	err := s.Stats.Record(ctx, domain.StatsEvent{
		Policy:  policy,
		Key:     key,
		Allowed: allowed,
		Method:  req.Method,
		Path:    req.Path,
		At:      at,
	})
	if err != nil {
		s.Logger.DebugContext(ctx, "rate limit stats record failed", "policy", policy, "error", err)
	}
}
