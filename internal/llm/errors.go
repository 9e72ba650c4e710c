package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/tsukumogami/aigene/internal/errmsg"
)

var (
	// ErrMissingAPIKey is returned by New when Config.APIKey is empty.
	ErrMissingAPIKey = errmsg.Sentinel(errmsg.FatalConfig, "missing API key")

	// ErrUnknownProvider is returned by New for an unsupported provider.
	ErrUnknownProvider = errmsg.Sentinel(errmsg.FatalConfig, "unknown chat provider")

	// ErrAuthentication matches APIErrors with a 401 or 403 status.
	ErrAuthentication = errors.New("authentication failed")

	// ErrEmptyResponse is returned when a stream ends without any text.
	ErrEmptyResponse = errors.New("model returned an empty response")
)

// APIError is a provider error carrying the HTTP status, when known.
type APIError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s API call failed (HTTP %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s API call failed: %v", e.Provider, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrAuthentication) match rejected credentials.
func (e *APIError) Is(target error) bool {
	return target == ErrAuthentication && isAuthStatus(e.StatusCode)
}

func isAuthStatus(code int) bool {
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

// IsRetryable reports whether err is worth another attempt: connection
// failures, timeouts, rate limiting and server errors. Authentication
// failures and other client errors are not.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode != 0 {
		return apiErr.StatusCode == http.StatusTooManyRequests ||
			apiErr.StatusCode == http.StatusRequestTimeout ||
			apiErr.StatusCode >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errmsg.KindOf(err) == errmsg.Transient
}
