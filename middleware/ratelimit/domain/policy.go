package domain

import (
	"fmt"
	"strings"
	"time"
)

// KeyMode diz de quais atributos do request a chave de cota é composta.
type KeyMode int

const (
	// KeyCombined: "{endereço}-{identidade|anonymous}".
	KeyCombined KeyMode = iota
	// KeyAddressOnly: "{endereço}".
	KeyAddressOnly
	// KeyIdentityOnly: "{identidade}". Sem identidade a política é ignorada.
	KeyIdentityOnly
)

func (m KeyMode) String() string {
	switch m {
	case KeyCombined:
		return "combined"
	case KeyAddressOnly:
		return "addressOnly"
	case KeyIdentityOnly:
		return "identityOnly"
	default:
		return fmt.Sprintf("KeyMode(%d)", int(m))
	}
}

// ParseKeyMode aceita os nomes de String() sem diferenciar maiúsculas.
func ParseKeyMode(s string) (KeyMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "combined", "":
		return KeyCombined, nil
	case "addressonly", "address", "ip":
		return KeyAddressOnly, nil
	case "identityonly", "identity", "user":
		return KeyIdentityOnly, nil
	}
	return 0, fmt.Errorf("unknown key mode %q", s)
}

// Strategy é o algoritmo de contagem usado por uma política.
type Strategy int

const (
	SlidingWindowStrategy Strategy = iota
	FixedWindowStrategy
)

func (s Strategy) String() string {
	switch s {
	case SlidingWindowStrategy:
		return "sliding"
	case FixedWindowStrategy:
		return "fixed"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy: vazio significa sliding window.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sliding", "sliding-window", "":
		return SlidingWindowStrategy, nil
	case "fixed", "fixed-window":
		return FixedWindowStrategy, nil
	}
	return 0, fmt.Errorf("unknown strategy %q", s)
}

// Policy é uma regra de cota nomeada e imutável.
//
// É criada uma vez no startup e compartilhada por todas as chaves que ela limita.
type Policy struct {
	Name     string
	Category string

	Window      time.Duration
	MaxRequests int
	Message     string

	StandardHeaders bool
	LegacyHeaders   bool
	KeyPrefix       string

	KeyMode  KeyMode
	Strategy Strategy
}

func (p Policy) WindowMillis() int64 { return p.Window.Milliseconds() }

// Validate retorna *ConfigurationError se a política não puder ser usada.
func (p Policy) Validate() error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return &ConfigurationError{Policy: p.Name, Reason: "name is required"}
	case p.WindowMillis() <= 0:
		return &ConfigurationError{Policy: p.Name, Reason: "window must be at least 1ms"}
	case p.MaxRequests <= 0:
		return &ConfigurationError{Policy: p.Name, Reason: "maxRequests must be > 0"}
	case strings.TrimSpace(p.Message) == "":
		return &ConfigurationError{Policy: p.Name, Reason: "message is required"}
	case p.KeyMode < KeyCombined || p.KeyMode > KeyIdentityOnly:
		return &ConfigurationError{Policy: p.Name, Reason: "invalid key mode " + p.KeyMode.String()}
	case p.Strategy < SlidingWindowStrategy || p.Strategy > FixedWindowStrategy:
		return &ConfigurationError{Policy: p.Name, Reason: "invalid strategy " + p.Strategy.String()}
	}
	return nil
}
