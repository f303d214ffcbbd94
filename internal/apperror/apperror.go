// Package apperror defines the error kinds shared by every layer.
//
// Services and stores return these (usually wrapped with fmt.Errorf and %w);
// the HTTP layer is the only place that turns them into status codes.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrMissingField        = errors.New("missing field")
	ErrInvalidCredential   = errors.New("invalid credential")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrStoreUnavailable    = errors.New("store unavailable")
)

type AppError struct {
	Err     error  // sentinel kind
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: underlying failure, never shown to callers
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *AppError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

func MissingField(field, message string) *AppError {
	return &AppError{
		Err:     ErrMissingField,
		Message: message,
		Field:   field,
	}
}

// InvalidCredential reports that a verifier rejected an external credential.
func InvalidCredential(message string, cause error) *AppError {
	return &AppError{
		Err:     ErrInvalidCredential,
		Message: message,
		Cause:   cause,
	}
}

// UpstreamUnavailable reports that an identity provider could not be reached
// or failed for reasons unrelated to the credential itself.
func UpstreamUnavailable(provider string, cause error) *AppError {
	return &AppError{
		Err:     ErrUpstreamUnavailable,
		Message: fmt.Sprintf("%s is unavailable", provider),
		Cause:   cause,
	}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func Conflict(resource, key string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict on %s", resource, key),
	}
}

// StoreUnavailable wraps a persistence failure.
func StoreUnavailable(op string, cause error) *AppError {
	return &AppError{
		Err:     ErrStoreUnavailable,
		Message: op,
		Cause:   cause,
	}
}

// Kind returns a short machine-readable name for err's kind, or
// "internal" when err carries none of the sentinels above.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrMissingField):
		return "missing_field"
	case errors.Is(err, ErrInvalidCredential):
		return "invalid_credential"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "upstream_unavailable"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "store_conflict"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "internal"
	}
}
