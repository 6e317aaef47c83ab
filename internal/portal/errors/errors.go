// Package errors defines the error taxonomy shared by the gateway and the
// session store. Gateway failures map onto sentinel errors so callers can
// branch with errors.Is; session operations wrap them into typed errors
// carrying a user-displayable message.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized means the backend rejected the bearer token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound means the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation means the backend rejected the request payload.
	ErrValidation = errors.New("invalid input")
	// ErrConflict means a uniqueness constraint was violated, e.g. a
	// duplicate registration email.
	ErrConflict = errors.New("conflict")
	// ErrNetwork means the request never produced an HTTP response.
	ErrNetwork = errors.New("network failure")
	// ErrDecode means the backend responded 2xx but the body could not be
	// decoded into the expected shape.
	ErrDecode = errors.New("undecodable response")
)

// APIError preserves the backend's error body alongside the HTTP status it
// arrived with. It unwraps to the sentinel matching the status so callers
// never need to inspect Status directly.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend returned %d", e.Status)
}

// Unwrap maps the HTTP status onto the sentinel taxonomy.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case 401, 403:
		return ErrUnauthorized
	case 404:
		return ErrNotFound
	case 409:
		return ErrConflict
	default:
		return ErrValidation
	}
}

// AuthError is returned by session login/restore when either the identity
// provider rejects the credentials or the backend cannot resolve the token
// to a company. Message is safe to surface to the user.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string { return e.Message }
func (e *AuthError) Unwrap() error { return e.Err }

// RegistrationError is returned by session register on validation or
// conflict responses from the backend.
type RegistrationError struct {
	Message string
	Err     error
}

func (e *RegistrationError) Error() string { return e.Message }
func (e *RegistrationError) Unwrap() error { return e.Err }

// LogoutError is returned only when the identity provider sign-out call
// itself fails; local session state is left untouched in that case.
type LogoutError struct {
	Err error
}

func (e *LogoutError) Error() string { return fmt.Sprintf("sign-out failed: %v", e.Err) }
func (e *LogoutError) Unwrap() error { return e.Err }

// Message extracts the backend-provided message from err, falling back to
// the given default. Used to build user-displayable session errors.
func Message(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
