package providers

import "errors"

// ErrorKind classifies adapter failures so the router can tell
// "unreachable" from "answered badly" without catching concrete types.
type ErrorKind string

const (
	// KindUnreachable covers connection refused, DNS failures, and
	// timeouts before any HTTP response was received.
	KindUnreachable ErrorKind = "unreachable"

	// KindBadResponse covers non-2xx statuses, malformed payloads, and
	// responses missing required fields.
	KindBadResponse ErrorKind = "bad_response"
)

// ProviderError is the typed error every adapter returns for network and
// protocol failures. Expected "no answer" cases (empty content) are not
// errors.
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Message  string
	Cause    error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	msg := e.Provider + ": " + e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap implements error unwrapping.
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewUnreachableError creates a transport-level failure error.
func NewUnreachableError(provider, message string, cause error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: KindUnreachable, Message: message, Cause: cause}
}

// NewBadResponseError creates a protocol-level failure error.
func NewBadResponseError(provider, message string, cause error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: KindBadResponse, Message: message, Cause: cause}
}

// IsUnreachable reports whether err is a transport-level provider failure.
func IsUnreachable(err error) bool {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Kind == KindUnreachable
	}
	return false
}

// IsBadResponse reports whether err is a protocol-level provider failure.
func IsBadResponse(err error) bool {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Kind == KindBadResponse
	}
	return false
}
