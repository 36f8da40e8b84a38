package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrMissingToken       = errors.New("missing token")
	ErrAuth               = errors.New("authentication failed")
	ErrForbidden          = errors.New("forbidden")
	ErrRateLimited        = errors.New("rate limited")
)

type AppError struct {
	Err     error  // sentinel error for errors.Is checks
	Message string // Human-readable error message
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func MissingCredentials(key string) *AppError {
	return &AppError{
		Err:     ErrMissingCredentials,
		Message: fmt.Sprintf("%s is not set in the credentials file", key),
	}
}

func MissingToken(kind string) *AppError {
	return &AppError{
		Err:     ErrMissingToken,
		Message: fmt.Sprintf("no %s token available", kind),
	}
}

// Auth marks an error that cannot be recovered without a human
// re-authorizing the application (e.g. a rejected refresh token).
func Auth(message string) *AppError {
	return &AppError{
		Err:     ErrAuth,
		Message: message,
	}
}

// Forbidden covers per-resource 403 responses, typically private
// activities. Callers skip the one resource rather than failing the batch.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// HTTPError is any unexpected non-2xx response from the remote API.
// 401/403/429 have dedicated handling; everything else ends up here.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %d: %s", e.Status, e.Body)
}
