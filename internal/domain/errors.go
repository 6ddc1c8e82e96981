package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotConfigured is returned by Start when required collaborators or
// settings are missing; the scheduler never enters the running state.
var ErrNotConfigured = errors.New("automation not configured")

// APIError is a gateway or backend rejection carrying an HTTP-like status.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Message)
}

// IsAuthError reports whether err is an unauthenticated/forbidden rejection.
// An auth failure aborts a whole poll tick; other failures only affect the
// single review being processed.
func IsAuthError(err error) bool {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Status == http.StatusUnauthorized || ae.Status == http.StatusForbidden
	}
	return false
}
