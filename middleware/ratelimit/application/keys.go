package application

import (
	"strings"

	"admission-gateway/middleware/ratelimit/domain"
)

const (
	anonymousIdentity = "anonymous"
	unknownAddress    = "unknown"
)

// ResolveAddress: Address, depois ForwardedFor, depois "unknown".
func ResolveAddress(req domain.Request) string {
	if a := strings.TrimSpace(req.Address); a != "" {
		return a
	}
	if f := strings.TrimSpace(req.ForwardedFor); f != "" {
		return f
	}
	return unknownAddress
}

// DeriveKey monta a chave de cota do request para a política.
//
// ok=false significa "não limitar": política identityOnly e request sem
// identidade. Nunca usamos um placeholder nesse caso, senão todo anônimo
// cairia no mesmo balde.
func DeriveKey(req domain.Request, p domain.Policy) (domain.Key, bool) {
	identity := strings.TrimSpace(req.Identity)

	var key string
	switch p.KeyMode {
	case domain.KeyAddressOnly:
		key = ResolveAddress(req)
	case domain.KeyIdentityOnly:
		if identity == "" {
			return "", false
		}
		key = identity
	default:
		if identity == "" {
			identity = anonymousIdentity
		}
		key = ResolveAddress(req) + "-" + identity
	}

	if p.KeyPrefix != "" {
		key = p.KeyPrefix + ":" + key
	}
	return domain.Key(key), true
}
