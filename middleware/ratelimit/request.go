package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strings"

	"admission-gateway/middleware/ratelimit/domain"
)

type identityKey struct{}

// WithIdentity é usado pela camada de autenticação para publicar quem é o caller.
func WithIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext retorna "" para requests anônimos.
func IdentityFromContext(ctx context.Context) string {
	id, _ := ctx.Value(identityKey{}).(string)
	return id
}

// firstForwardedFor pega o primeiro IP do X-Forwarded-For (cliente original).
func firstForwardedFor(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		return ""
	}
	first, _, _ := strings.Cut(xff, ",")
	return strings.TrimSpace(first)
}

func remoteHost(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
		return host
	}
	return addr
}

// RequestExtractor traduz *http.Request para domain.Request.
type RequestExtractor struct {
	// TrustXForwardedFor usa o primeiro X-Forwarded-For como endereço primário.
	// Só ligue atrás de um proxy que sobrescreve o header.
	TrustXForwardedFor bool
	// IdentityHeader, se setado, é lido quando o contexto não tem identidade.
	// O header precisa vir de um proxy de autenticação confiável.
	IdentityHeader string
}

func (e RequestExtractor) Extract(r *http.Request) domain.Request {
	fwd := firstForwardedFor(r)
	addr := remoteHost(r)
	if e.TrustXForwardedFor && fwd != "" {
		addr = fwd
	}

	identity := IdentityFromContext(r.Context())
	if identity == "" && e.IdentityHeader != "" {
		identity = strings.TrimSpace(r.Header.Get(e.IdentityHeader))
	}

	return domain.Request{
		Address:      addr,
		ForwardedFor: fwd,
		Identity:     identity,
		Method:       r.Method,
		Path:         r.URL.Path,
	}
}
