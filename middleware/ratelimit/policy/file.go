package policy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"admission-gateway/middleware/ratelimit/domain"
)

// File é o formato do arquivo de políticas do gateway.
//
//	policies:
//	  login:
//	    max: 3
//	  exportCsv:
//	    window: 10m
//	    max: 5
//	    message: "Too many exports."
//	    key: identityOnly
//	routes:
//	  - pattern: /api/auth/login
//	    methods: [POST]
//	    policies: [login]
//	exempt: [/health]
//
// Políticas com o mesmo nome de uma default são mescladas campo a campo;
// nomes novos precisam de window, max e message. Sem strategy, uma política
// nova usa sliding window.
type File struct {
	Policies map[string]Override `yaml:"policies"`
	Routes   []Route             `yaml:"routes"`
	Exempt   []string            `yaml:"exempt"`
}

type Override struct {
	Category        *string `yaml:"category"`
	Window          *string `yaml:"window"`
	Max             *int    `yaml:"max"`
	Message         *string `yaml:"message"`
	StandardHeaders *bool   `yaml:"standardHeaders"`
	LegacyHeaders   *bool   `yaml:"legacyHeaders"`
	KeyPrefix       *string `yaml:"keyPrefix"`
	Key             *string `yaml:"key"`
	Strategy        *string `yaml:"strategy"`
}

// Route liga um padrão de rota (sintaxe do chi) às políticas aplicadas nele.
type Route struct {
	Pattern  string   `yaml:"pattern"`
	Methods  []string `yaml:"methods"`
	Policies []string `yaml:"policies"`
}

// LoadFile lê e decodifica o arquivo. Não constrói o registry.
func LoadFile(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return Parse(b)
}

// Parse rejeita campos desconhecidos.
func Parse(b []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, &domain.ConfigurationError{Reason: "decode policy file", Err: err}
	}
	return &f, nil
}

// Apply mescla os overrides sobre base e devolve uma lista nova.
// Ordem: base primeiro, depois as novas em ordem alfabética.
func (f *File) Apply(base []domain.Policy) ([]domain.Policy, error) {
	out := make([]domain.Policy, len(base))
	copy(out, base)
	if f == nil || len(f.Policies) == 0 {
		return out, nil
	}

	index := make(map[string]int, len(out))
	for i, p := range out {
		index[p.Name] = i
	}

	names := make([]string, 0, len(f.Policies))
	for name := range f.Policies {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ov := f.Policies[name]
		if i, ok := index[name]; ok {
			p, err := ov.merge(out[i])
			if err != nil {
				return nil, err
			}
			out[i] = p
			continue
		}

		if ov.Window == nil || ov.Max == nil || ov.Message == nil {
			return nil, &domain.ConfigurationError{Policy: name, Reason: "new policy needs window, max and message"}
		}
		p, err := ov.merge(domain.Policy{
			Name:            name,
			Category:        CategoryGeneral,
			StandardHeaders: true,
			KeyPrefix:       name,
			Strategy:        domain.SlidingWindowStrategy,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (o Override) merge(p domain.Policy) (domain.Policy, error) {
	if o.Category != nil {
		p.Category = *o.Category
	}
	if o.Window != nil {
		d, err := time.ParseDuration(strings.TrimSpace(*o.Window))
		if err != nil {
			return p, &domain.ConfigurationError{Policy: p.Name, Reason: "invalid window", Err: err}
		}
		p.Window = d
	}
	if o.Max != nil {
		p.MaxRequests = *o.Max
	}
	if o.Message != nil {
		p.Message = *o.Message
	}
	if o.StandardHeaders != nil {
		p.StandardHeaders = *o.StandardHeaders
	}
	if o.LegacyHeaders != nil {
		p.LegacyHeaders = *o.LegacyHeaders
	}
	if o.KeyPrefix != nil {
		p.KeyPrefix = *o.KeyPrefix
	}
	if o.Key != nil {
		m, err := domain.ParseKeyMode(*o.Key)
		if err != nil {
			return p, &domain.ConfigurationError{Policy: p.Name, Reason: "invalid key", Err: err}
		}
		p.KeyMode = m
	}
	if o.Strategy != nil {
		s, err := domain.ParseStrategy(*o.Strategy)
		if err != nil {
			return p, &domain.ConfigurationError{Policy: p.Name, Reason: "invalid strategy", Err: err}
		}
		p.Strategy = s
	}
	return p, nil
}

// Registry aplica o arquivo sobre Defaults() e valida as rotas.
func (f *File) Registry() (*Registry, error) {
	ps, err := f.Apply(Defaults())
	if err != nil {
		return nil, err
	}
	reg, err := NewRegistry(ps...)
	if err != nil {
		return nil, err
	}
	if err := f.ValidateRoutes(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// ValidateRoutes garante que toda política citada por uma rota existe.
func (f *File) ValidateRoutes(reg *Registry) error {
	for _, rt := range f.RoutesOrDefault() {
		if strings.TrimSpace(rt.Pattern) == "" || !strings.HasPrefix(rt.Pattern, "/") {
			return &domain.ConfigurationError{Reason: fmt.Sprintf("route pattern %q must start with /", rt.Pattern)}
		}
		if len(rt.Policies) == 0 {
			return &domain.ConfigurationError{Reason: fmt.Sprintf("route %q has no policies", rt.Pattern)}
		}
		if _, err := reg.LookupAll(rt.Policies...); err != nil {
			return err
		}
	}
	return nil
}
