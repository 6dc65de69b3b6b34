package errors

import (
	"errors"
	"fmt"
)

// Common error types for the link gateway and client
var (
	// Configuration errors - fatal to the action, the operator fixes the
	// injected configuration before retrying
	ErrConfiguration   = errors.New("configuration error")
	ErrMissingAPIBase  = errors.New("Missing API base URL")
	ErrMissingClientID = errors.New("Missing Mesh client ID")

	// Validation errors - recoverable, the caller corrects the input
	ErrValidation         = errors.New("validation error")
	ErrMissingAccessToken = errors.New("access token is required")
	ErrMissingDestination = errors.New("destination address is required")
	ErrMissingAmount      = errors.New("amount is required")

	// Vendor integration errors - fatal for the session
	ErrVendorIntegration = errors.New("vendor integration error")
	ErrNoLinkToken       = errors.New("vendor did not return a linkToken")
	ErrNoWidgetLauncher  = errors.New("no compatible widget launcher configured")

	// Session errors
	ErrSessionNotFound     = errors.New("link session not found")
	ErrSessionExpired      = errors.New("link session expired")
	ErrInvalidTransition   = errors.New("invalid session state transition")
	ErrRequestInFlight     = errors.New("another request is already in flight")
	ErrInvalidLinkToken    = errors.New("invalid link token")
	ErrLinkTokenExpired    = errors.New("link token expired")
	ErrAccessTokenNotFound = errors.New("no access token captured for session")
)

// BackendError carries a non-2xx backend response: the HTTP status code and
// the server-provided error message, surfaced verbatim with no retry.
type BackendError struct {
	StatusCode int
	Message    string
}

func (e *BackendError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Message)
}

// NewBackendError creates a BackendError from a status code and the server's
// error field
func NewBackendError(statusCode int, message string) *BackendError {
	return &BackendError{StatusCode: statusCode, Message: message}
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
