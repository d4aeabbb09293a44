package ai

import (
	"errors"
	"fmt"

	"github.com/campaign-agent/internal/models"
)

// ErrorKind classifies provider failures so callers can react distinctly:
// a safety block gets a different retry affordance than a bad key, and a
// transport failure is not the model's fault.
type ErrorKind int

const (
	// KindConfig covers missing/invalid keys and request misconfiguration
	// caught before or during dispatch.
	KindConfig ErrorKind = iota
	// KindTransport covers network-level failures (DNS, refused, timeout).
	KindTransport
	// KindHTTP covers non-2xx responses with a vendor error envelope.
	KindHTTP
	// KindAuth is an HTTP failure specifically caused by credentials.
	KindAuth
	// KindEmpty means the provider returned no body at all.
	KindEmpty
	// KindSafetyBlocked means the prompt or output was rejected by a
	// safety filter rather than failing outright.
	KindSafetyBlocked
	// KindUnsupported means the provider cannot perform the operation.
	KindUnsupported
)

// ProviderError identifies the offending provider by name on every
// failure, so multi-provider debugging stays tractable.
type ProviderError struct {
	Provider models.AIProvider
	Kind     ErrorKind
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func newError(provider models.AIProvider, kind ErrorKind, msg string) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, Message: msg}
}

func wrapError(provider models.AIProvider, kind ErrorKind, msg string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, Message: msg, Err: err}
}

// KindOf extracts the error kind, defaulting to KindTransport for
// errors that did not originate in a provider adapter.
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindTransport
}

// IsSafetyBlocked reports whether the failure was a safety-filter rejection
func IsSafetyBlocked(err error) bool {
	return KindOf(err) == KindSafetyBlocked
}

// IsAuth reports whether the failure was caused by credentials
func IsAuth(err error) bool {
	kind := KindOf(err)
	return kind == KindAuth || kind == KindConfig
}
