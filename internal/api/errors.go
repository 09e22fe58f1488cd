package api

import (
	"errors"
	"fmt"
)

// Kind classifies a transport failure for callers and log labels.
type Kind string

const (
	// KindAuthentication marks rejected credentials or missing tokens.
	KindAuthentication Kind = "authentication"
	// KindRegistration marks a failed account registration.
	KindRegistration Kind = "registration"
	// KindSessionExpired marks a rejected refresh; the session has been cleared.
	KindSessionExpired Kind = "session_expired"
	// KindNotFound marks a missing remote resource.
	KindNotFound Kind = "not_found"
	// KindValidation marks a request the backend rejected as malformed.
	KindValidation Kind = "validation"
	// KindServer marks a backend-side failure.
	KindServer Kind = "server"
	// KindNetwork marks a failure before any HTTP response arrived.
	KindNetwork Kind = "network"
)

// Error is the failure surfaced from REST calls. Message is always suitable
// for display: the server-provided detail when present, otherwise a generic
// "<operation> failed: <status>".
type Error struct {
	Kind    Kind
	Op      string
	Status  int
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s failed", e.Op)
}

// Unwrap exposes the underlying cause when one exists.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ErrorKind maps an error to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return string(apiErr.Kind)
	}
	return "unexpected"
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind == kind
	}
	return false
}

func kindForStatus(status int) Kind {
	switch {
	case status == 401 || status == 403:
		return KindAuthentication
	case status == 404:
		return KindNotFound
	case status == 400 || status == 422:
		return KindValidation
	case status >= 500:
		return KindServer
	default:
		return KindServer
	}
}
