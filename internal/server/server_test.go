package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"postern/internal/config"
	"postern/internal/oauth"
)

// fakeVerifier accepts exactly one token.
type fakeVerifier struct {
	accept string
	info   *oauth.AuthInfo
}

func (f *fakeVerifier) VerifyAccessToken(ctx context.Context, rawToken string) (*oauth.AuthInfo, error) {
	if rawToken == f.accept {
		return f.info, nil
	}
	return nil, fmt.Errorf("Token verification failed: signature is invalid")
}

func testMux(t *testing.T, required bool, inner http.Handler) http.Handler {
	t.Helper()
	verifier := &fakeVerifier{
		accept: "good-token",
		info:   &oauth.AuthInfo{Token: "good-token", ClientID: "cli", Scopes: []string{"content:read"}},
	}
	srv := New(Options{
		Gateway: config.GatewayConfig{
			Host:        "localhost",
			Port:        0,
			RequireAuth: required,
			ExternalURL: "https://gw.example.com",
		},
		Verifier:   verifier,
		Issuer:     "https://auth.example.com",
		Scopes:     []string{"content:read", "content:write"},
		MCPHandler: inner,
	})
	return srv.httpServer.Handler
}

func TestHealthEndpoint(t *testing.T) {
	handler := testMux(t, false, http.NotFoundHandler())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var state HealthState
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("invalid health body: %v", err)
	}
	if state.Status != "ok" {
		t.Errorf("unexpected status %q", state.Status)
	}
}

func TestProtectedResourceMetadata(t *testing.T) {
	handler := testMux(t, false, http.NotFoundHandler())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, ProtectedResourceMetadataPath, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var doc protectedResourceMetadata
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("invalid metadata body: %v", err)
	}
	if doc.Resource != "https://gw.example.com" {
		t.Errorf("unexpected resource %q", doc.Resource)
	}
	if len(doc.AuthorizationServers) != 1 || doc.AuthorizationServers[0] != "https://auth.example.com" {
		t.Errorf("unexpected authorization servers %v", doc.AuthorizationServers)
	}
	if len(doc.ScopesSupported) != 2 {
		t.Errorf("unexpected scopes %v", doc.ScopesSupported)
	}
}

func TestMiddlewareRequiredRejectsMissingToken(t *testing.T) {
	handler := testMux(t, true, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("inner handler must not run without a token")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	challenge := rec.Header().Get("WWW-Authenticate")
	if !strings.HasPrefix(challenge, "Bearer ") {
		t.Errorf("expected Bearer challenge, got %q", challenge)
	}
	if !strings.Contains(challenge, `resource_metadata="https://gw.example.com/.well-known/oauth-protected-resource"`) {
		t.Errorf("challenge missing resource_metadata: %q", challenge)
	}
	if !strings.Contains(challenge, `realm="https://auth.example.com"`) {
		t.Errorf("challenge missing realm: %q", challenge)
	}
}

func TestMiddlewareOptionalAllowsAnonymous(t *testing.T) {
	var called bool
	handler := testMux(t, false, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if oauth.AuthInfoFromContext(r.Context()) != nil {
			t.Error("anonymous request must not carry auth info")
		}
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", nil))

	if !called {
		t.Fatal("inner handler should run for anonymous requests")
	}
}

func TestMiddlewareValidTokenInjectsAuthInfo(t *testing.T) {
	var got *oauth.AuthInfo
	handler := testMux(t, true, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = oauth.AuthInfoFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got == nil || got.ClientID != "cli" {
		t.Errorf("expected injected auth info, got %+v", got)
	}
}

func TestMiddlewareInvalidToken(t *testing.T) {
	handler := testMux(t, false, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("inner handler must not run for an invalid token")
	}))
	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer forged")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	// Invalid tokens are rejected even when auth is optional: presenting a
	// bad credential is different from presenting none.
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("WWW-Authenticate"), `error="invalid_token"`) {
		t.Errorf("challenge missing invalid_token: %q", rec.Header().Get("WWW-Authenticate"))
	}
}

func TestMiddlewareNonBearerScheme(t *testing.T) {
	handler := testMux(t, false, http.NotFoundHandler())
	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for non-Bearer scheme, got %d", rec.Code)
	}
}
