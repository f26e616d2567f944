package ratelimit

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"admission-gateway/middleware/ratelimit/policy"
)

// Mount registra cada rota no router com a cadeia de políticas dela na frente de h.
//
// Rotas com o mesmo pattern são agrupadas. Um método que nenhuma entrada do
// pattern lista cai na entrada sem methods do mesmo pattern, se houver, ou
// nas políticas de fallback. Assim o chi nunca responde 405 por causa da
// tabela de rotas.
func (a *Admission) Mount(r chi.Router, routes []policy.Route, h http.Handler, fallback ...string) error {
	var base http.Handler = h
	if len(fallback) > 0 {
		mw, err := a.Middleware(fallback...)
		if err != nil {
			return fmt.Errorf("fallback policies: %w", err)
		}
		base = mw(h)
	}

	var order []string
	groups := make(map[string]*methodSwitch)

	for _, rt := range routes {
		mw, err := a.Middleware(rt.Policies...)
		if err != nil {
			return fmt.Errorf("route %s: %w", rt.Pattern, err)
		}

		g, ok := groups[rt.Pattern]
		if !ok {
			g = &methodSwitch{byMethod: make(map[string]http.Handler)}
			groups[rt.Pattern] = g
			order = append(order, rt.Pattern)
		}

		chain := mw(h)
		if len(rt.Methods) == 0 {
			if g.any == nil {
				g.any = chain
			}
			continue
		}
		for _, m := range rt.Methods {
			m = strings.ToUpper(strings.TrimSpace(m))
			if _, dup := g.byMethod[m]; !dup {
				g.byMethod[m] = chain
			}
		}
	}

	for _, pattern := range order {
		g := groups[pattern]
		if g.any == nil {
			g.any = base
		}
		r.Handle(pattern, g)
	}
	return nil
}

type methodSwitch struct {
	byMethod map[string]http.Handler
	any      http.Handler
}

func (m *methodSwitch) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h, ok := m.byMethod[r.Method]; ok {
		h.ServeHTTP(w, r)
		return
	}
	m.any.ServeHTTP(w, r)
}
