package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownPolicy: nome de política que não existe no registry.
	ErrUnknownPolicy = errors.New("unknown rate limit policy")

	// ErrInvalidPolicy: política com campos inválidos.
	ErrInvalidPolicy = errors.New("invalid rate limit policy")

	// ErrCorruptState: WindowState inconsistente encontrado no store.
	ErrCorruptState = errors.New("corrupt window state")
)

// ConfigurationError é fatal no startup. Nunca acontece por request.
type ConfigurationError struct {
	Policy string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Policy == "" {
		return fmt.Sprintf("ratelimit config: %s", e.Reason)
	}
	return fmt.Sprintf("ratelimit config: policy %q: %s", e.Policy, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidPolicy
}

// StoreError representa uma falha inesperada lendo/escrevendo o estado de uma chave.
// A camada application trata como rejeição (fail closed).
type StoreError struct {
	Policy string
	Key    Key
	Err    error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("ratelimit store: policy %q key %q: %v", e.Policy, string(e.Key), e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
