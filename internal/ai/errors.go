package ai

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorPrefix starts every error-shaped content string.
const ErrorPrefix = "❌ Errore"

// ServiceError is a non-2xx or unusable response from a provider.
type ServiceError struct {
	Provider string
	Status   int
	Body     string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s api error (status %d): %s", e.Provider, e.Status, e.Body)
}

// ConfigError means generation could not be attempted: missing credentials,
// no provider, or an exhausted token budget.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "ai config: " + e.Reason
}

// TransportError is a network failure talking to a provider.
type TransportError struct {
	Provider string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Content returns text when err is nil, otherwise an error-shaped string
// describing err for display in place of the generated text.
func Content(text string, err error) string {
	if err == nil {
		return text
	}

	var (
		svc *ServiceError
		cfg *ConfigError
		tr  *TransportError
	)
	switch {
	case errors.As(err, &svc):
		if svc.Status >= 200 && svc.Status < 300 {
			return fmt.Sprintf("%s API: Risposta non valida: %s", ErrorPrefix, svc.Body)
		}
		return fmt.Sprintf("%s API: %d: %s", ErrorPrefix, svc.Status, svc.Body)
	case errors.As(err, &cfg):
		return fmt.Sprintf("%s nella configurazione LLM: %s", ErrorPrefix, cfg.Reason)
	case errors.As(err, &tr):
		return fmt.Sprintf("%s nella chiamata API: %v", ErrorPrefix, tr.Err)
	default:
		return fmt.Sprintf("%s nella chiamata API: %v", ErrorPrefix, err)
	}
}

// IsErrorContent reports whether s is an error-shaped string rather than
// generated text.
func IsErrorContent(s string) bool {
	return strings.HasPrefix(s, "Errore") || strings.Contains(s, "❌")
}
