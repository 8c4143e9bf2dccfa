package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"postern/internal/oauth"
	"postern/pkg/logging"
)

// TokenVerifier verifies an inbound bearer token. Implemented by
// oauth.Manager.
type TokenVerifier interface {
	VerifyAccessToken(ctx context.Context, rawToken string) (*oauth.AuthInfo, error)
}

// BearerMiddleware verifies Authorization headers on MCP requests and
// attaches the result to the request context.
type BearerMiddleware struct {
	verifier TokenVerifier

	// issuer is advertised as the realm in challenges.
	issuer string

	// resourceMetadataURL points clients at the protected-resource
	// metadata document.
	resourceMetadataURL string

	// required rejects requests without a valid token. When false the
	// request proceeds anonymously and per-tool auth enforcement applies.
	required bool
}

// NewBearerMiddleware creates the middleware. resourceMetadataURL may be
// empty when no external URL is configured.
func NewBearerMiddleware(verifier TokenVerifier, issuer, resourceMetadataURL string, required bool) *BearerMiddleware {
	return &BearerMiddleware{
		verifier:            verifier,
		issuer:              issuer,
		resourceMetadataURL: resourceMetadataURL,
		required:            required,
	}
}

// Wrap returns next guarded by bearer verification.
func (m *BearerMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			if m.required {
				m.challenge(w, "", "")
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		if !strings.HasPrefix(header, "Bearer ") {
			m.challenge(w, "invalid_request", "Authorization header must use the Bearer scheme")
			return
		}
		rawToken := strings.TrimPrefix(header, "Bearer ")

		info, err := m.verifier.VerifyAccessToken(r.Context(), rawToken)
		if err != nil {
			logging.Debug("HTTP", "Bearer verification failed: %v", err)
			m.challenge(w, "invalid_token", err.Error())
			return
		}

		next.ServeHTTP(w, r.WithContext(oauth.WithAuthInfo(r.Context(), info)))
	})
}

// challenge answers 401 with a WWW-Authenticate header per RFC 6750 and
// RFC 9728.
func (m *BearerMiddleware) challenge(w http.ResponseWriter, errCode, errDescription string) {
	var parts []string
	if m.issuer != "" {
		parts = append(parts, fmt.Sprintf(`realm="%s"`, escapeQuotes(m.issuer)))
	}
	if m.resourceMetadataURL != "" {
		parts = append(parts, fmt.Sprintf(`resource_metadata="%s"`, escapeQuotes(m.resourceMetadataURL)))
	}
	if errCode != "" {
		parts = append(parts, fmt.Sprintf(`error="%s"`, escapeQuotes(errCode)))
		if errDescription != "" {
			parts = append(parts, fmt.Sprintf(`error_description="%s"`, escapeQuotes(errDescription)))
		}
	}
	w.Header().Set("WWW-Authenticate", "Bearer "+strings.Join(parts, ", "))
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}

func escapeQuotes(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
