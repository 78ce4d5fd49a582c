package model

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized means the server rejected the credential. The local
	// session has already been cleared when this is returned.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTimeout means no response arrived within the request deadline.
	ErrTimeout = errors.New("communication timed out")
	// ErrNetwork means the request could not be delivered.
	ErrNetwork = errors.New("communication failed")
	// ErrRemote means the server answered with a non-success status.
	ErrRemote = errors.New("request rejected by server")
	// ErrNotFound means the server answered 404.
	ErrNotFound = errors.New("not found")
	// ErrDecode means a success response could not be decoded.
	ErrDecode = errors.New("malformed response")
	// ErrValidation means a client-side pre-flight check failed; no request
	// was sent.
	ErrValidation = errors.New("invalid input")
	// ErrNotSignedIn means an operation needs a session and none is active.
	ErrNotSignedIn = errors.New("not signed in")
	// ErrGoogleDisabled means no Google client ID is configured.
	ErrGoogleDisabled = errors.New("google login is not configured")
	// ErrAvatarStorageDisabled means no object storage is configured.
	ErrAvatarStorageDisabled = errors.New("avatar storage is not configured")
	// ErrStorageKeyNotFound is returned by durable stores for absent keys.
	ErrStorageKeyNotFound = errors.New("key not found")
)

// APIError is the uniform failure of an HTTP call. Kind is one of the
// sentinel errors above and is what errors.Is matches against.
type APIError struct {
	Kind    error
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Kind
}

// NewAPIError builds an APIError of the given kind.
func NewAPIError(kind error, status int, message string) *APIError {
	return &APIError{Kind: kind, Status: status, Message: message}
}

// ValidationError reports a failed client-side check on one field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError builds a ValidationError with a formatted message.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
