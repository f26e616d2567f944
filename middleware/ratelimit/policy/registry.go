// Package policy guarda a tabela estática de políticas de admission control
// e o arquivo YAML que a ajusta no startup.
//
// O Registry é somente leitura depois de construído e não precisa de lock.
package policy

import (
	"sort"

	"admission-gateway/middleware/ratelimit/domain"
)

type Registry struct {
	byName map[string]domain.Policy
	order  []string
}

// NewRegistry valida todas as políticas. Nomes repetidos são erro.
func NewRegistry(policies ...domain.Policy) (*Registry, error) {
	r := &Registry{byName: make(map[string]domain.Policy, len(policies))}
	for _, p := range policies {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byName[p.Name]; dup {
			return nil, &domain.ConfigurationError{Policy: p.Name, Reason: "declared twice"}
		}
		r.byName[p.Name] = p
		r.order = append(r.order, p.Name)
	}
	return r, nil
}

// Lookup falha com *domain.ConfigurationError (ErrUnknownPolicy) para nomes desconhecidos.
func (r *Registry) Lookup(name string) (domain.Policy, error) {
	p, ok := r.byName[name]
	if !ok {
		return domain.Policy{}, &domain.ConfigurationError{
			Policy: name,
			Reason: "not registered",
			Err:    domain.ErrUnknownPolicy,
		}
	}
	return p, nil
}

// LookupAll resolve vários nomes, na ordem dada.
func (r *Registry) LookupAll(names ...string) ([]domain.Policy, error) {
	out := make([]domain.Policy, 0, len(names))
	for _, n := range names {
		p, err := r.Lookup(n)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// MustLookup é só para wiring de startup.
func (r *Registry) MustLookup(name string) domain.Policy {
	p, err := r.Lookup(name)
	if err != nil {
		panic(err)
	}
	return p
}

// Names na ordem de declaração.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// ByCategory retorna as políticas de uma categoria ordenadas por nome.
func (r *Registry) ByCategory(category string) []domain.Policy {
	var out []domain.Policy
	for _, p := range r.byName {
		if p.Category == category {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
