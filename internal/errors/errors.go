package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error taxonomy for the session lifecycle and login flow
var (
	// Login flow errors
	ErrAuthCancelled = errors.New("authentication cancelled")
	ErrStateMismatch = errors.New("state mismatch")
	ErrMissingToken  = errors.New("missing access token")
	ErrTimeout       = errors.New("authentication timed out")

	// Remote auth service errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrExpiredToken       = errors.New("token expired")
	ErrAccountInactive    = errors.New("account inactive")
	ErrAuthService        = errors.New("auth service error")
	ErrNetwork            = errors.New("network error")
	ErrMalformedResponse  = errors.New("malformed response")

	// Local state errors
	ErrStorage         = errors.New("storage error")
	ErrSessionNotFound = errors.New("session not found")
)

// AuthServiceError is returned when the remote auth service answers with a
// non-2xx status that has no more specific mapping.
type AuthServiceError struct {
	Status  int
	Message string
}

func (e *AuthServiceError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: HTTP %d %s", ErrAuthService, e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("%s: HTTP %d: %s", ErrAuthService, e.Status, e.Message)
}

func (e *AuthServiceError) Unwrap() error { return ErrAuthService }

// StatusOf returns the HTTP status carried by an AuthServiceError in err's chain, or 0.
func StatusOf(err error) int {
	var serviceErr *AuthServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Status
	}
	return 0
}

// Storage marks err as a storage failure while keeping the cause in the chain.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("[%s] %w: %w", op, ErrStorage, err)
}
