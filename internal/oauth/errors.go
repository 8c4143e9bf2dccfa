package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

// AuthenticationError reports a missing, invalid, or expired session or
// token. The session itself remains usable; the caller can re-authenticate.
type AuthenticationError struct {
	Message string
}

// Error implements the error interface.
func (e *AuthenticationError) Error() string {
	return e.Message
}

// NewAuthenticationError creates an AuthenticationError with the given message.
func NewAuthenticationError(format string, args ...interface{}) *AuthenticationError {
	return &AuthenticationError{Message: fmt.Sprintf(format, args...)}
}

// RefreshOutcome classifies a failed token refresh.
type RefreshOutcome int

const (
	// RefreshTemporary marks a transient failure (network error, 5xx from
	// the token endpoint). The stored token is preserved.
	RefreshTemporary RefreshOutcome = iota

	// RefreshTerminal marks a permanent failure (invalid_grant). The stored
	// token is cleared and the user must re-authenticate.
	RefreshTerminal
)

// String makes RefreshOutcome satisfy fmt.Stringer.
func (o RefreshOutcome) String() string {
	if o == RefreshTerminal {
		return "terminal"
	}
	return "temporary"
}

// TemporaryRefreshError wraps a refresh failure that was classified as
// transient. The previously stored token remains valid for use.
type TemporaryRefreshError struct {
	Err error
}

func (e *TemporaryRefreshError) Error() string {
	return fmt.Sprintf("token refresh temporarily failed: %v", e.Err)
}

func (e *TemporaryRefreshError) Unwrap() error { return e.Err }

// TerminalRefreshError wraps a refresh failure that invalidated the stored
// token. The caller must re-authenticate.
type TerminalRefreshError struct {
	Err error
}

func (e *TerminalRefreshError) Error() string {
	return fmt.Sprintf("token refresh failed: %v", e.Err)
}

func (e *TerminalRefreshError) Unwrap() error { return e.Err }

// errorCodeInvalidGrant is the token endpoint error that signals a revoked
// or expired refresh token (RFC 6749 §5.2).
const errorCodeInvalidGrant = "invalid_grant"

// ClassifyRefreshError maps a token endpoint failure onto a RefreshOutcome.
//
// An explicit invalid_grant from the authorization server is terminal: the
// refresh token is dead and retrying cannot help. Everything else is treated
// as temporary: connection failures, timeouts, and 5xx responses all point
// at an unhealthy endpoint rather than an unusable grant. 4xx responses
// other than invalid_grant are also terminal since the request itself is
// being rejected.
func ClassifyRefreshError(err error) RefreshOutcome {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.ErrorCode == errorCodeInvalidGrant {
			return RefreshTerminal
		}
		if retrieveErr.Response != nil && retrieveErr.Response.StatusCode >= http.StatusInternalServerError {
			return RefreshTemporary
		}
		if retrieveErr.ErrorCode != "" || (retrieveErr.Response != nil && retrieveErr.Response.StatusCode >= http.StatusBadRequest) {
			return RefreshTerminal
		}
		return RefreshTemporary
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return RefreshTemporary
	}
	// Transport-level failures (connection refused, DNS, TLS) arrive as
	// url.Error values without a RetrieveError.
	return RefreshTemporary
}

// IsInvalidGrant reports whether the error is an explicit invalid_grant
// rejection from the token endpoint.
func IsInvalidGrant(err error) bool {
	var retrieveErr *oauth2.RetrieveError
	return errors.As(err, &retrieveErr) && retrieveErr.ErrorCode == errorCodeInvalidGrant
}
