package server

import (
	"encoding/json"
	"net/http"
	"strings"
)

// ProtectedResourceMetadataPath is where the RFC 9728 document is served.
const ProtectedResourceMetadataPath = "/.well-known/oauth-protected-resource"

// protectedResourceMetadata is the RFC 9728 document shape.
type protectedResourceMetadata struct {
	Resource               string   `json:"resource"`
	AuthorizationServers   []string `json:"authorization_servers"`
	ScopesSupported        []string `json:"scopes_supported,omitempty"`
	BearerMethodsSupported []string `json:"bearer_methods_supported"`
}

// protectedResourceHandler serves the metadata document MCP clients use to
// locate the authorization server protecting this gateway.
func protectedResourceHandler(resourceURL, issuer string, scopes []string) http.Handler {
	doc := protectedResourceMetadata{
		Resource:               strings.TrimSuffix(resourceURL, "/"),
		AuthorizationServers:   []string{issuer},
		ScopesSupported:        scopes,
		BearerMethodsSupported: []string{"header"},
	}
	payload, _ := json.Marshal(doc)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Write(payload)
	})
}

// healthHandler reports liveness plus basic gateway state.
func healthHandler(state func() HealthState) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(state())
	})
}

// HealthState is the health endpoint's response body.
type HealthState struct {
	Status   string `json:"status"`
	Tools    int    `json:"tools"`
	Sessions int    `json:"sessions"`
}
