package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"golang.org/x/oauth2"
)

func TestClassifyRefreshError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want RefreshOutcome
	}{
		{
			name: "invalid_grant is terminal",
			err: &oauth2.RetrieveError{
				Response:  &http.Response{StatusCode: http.StatusBadRequest},
				ErrorCode: "invalid_grant",
			},
			want: RefreshTerminal,
		},
		{
			name: "server error is temporary",
			err: &oauth2.RetrieveError{
				Response: &http.Response{StatusCode: http.StatusBadGateway},
			},
			want: RefreshTemporary,
		},
		{
			name: "other token endpoint rejection is terminal",
			err: &oauth2.RetrieveError{
				Response:  &http.Response{StatusCode: http.StatusBadRequest},
				ErrorCode: "invalid_client",
			},
			want: RefreshTerminal,
		},
		{
			name: "network error is temporary",
			err:  &url.Error{Op: "Post", URL: "https://auth.example.com/token", Err: errors.New("connection refused")},
			want: RefreshTemporary,
		},
		{
			name: "deadline exceeded is temporary",
			err:  fmt.Errorf("refresh: %w", context.DeadlineExceeded),
			want: RefreshTemporary,
		},
		{
			name: "wrapped invalid_grant is terminal",
			err: fmt.Errorf("refresh: %w", &oauth2.RetrieveError{
				Response:  &http.Response{StatusCode: http.StatusBadRequest},
				ErrorCode: "invalid_grant",
			}),
			want: RefreshTerminal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyRefreshError(tt.err); got != tt.want {
				t.Errorf("ClassifyRefreshError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsInvalidGrant(t *testing.T) {
	invalidGrant := &oauth2.RetrieveError{ErrorCode: "invalid_grant"}
	if !IsInvalidGrant(invalidGrant) {
		t.Error("Expected IsInvalidGrant to detect a direct RetrieveError")
	}
	if !IsInvalidGrant(&TerminalRefreshError{Err: invalidGrant}) {
		t.Error("Expected IsInvalidGrant to see through TerminalRefreshError")
	}
	if IsInvalidGrant(errors.New("some other failure")) {
		t.Error("Expected IsInvalidGrant to reject unrelated errors")
	}
}

func TestRefreshErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")

	var temp *TemporaryRefreshError
	wrapped := error(&TemporaryRefreshError{Err: cause})
	if !errors.As(wrapped, &temp) {
		t.Fatal("Expected errors.As to match TemporaryRefreshError")
	}
	if !errors.Is(wrapped, cause) {
		t.Error("Expected errors.Is to reach the cause through Unwrap")
	}

	var terminal *TerminalRefreshError
	wrapped = &TerminalRefreshError{Err: cause}
	if !errors.As(wrapped, &terminal) {
		t.Fatal("Expected errors.As to match TerminalRefreshError")
	}
}
