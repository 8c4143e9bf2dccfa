package oauth

import (
	"net/url"
	"time"
)

// UserTokenRecord is the canonical OAuth token state for one authenticated
// user. It is shared by every session belonging to that user: a refresh
// through any session replaces this record and the new token is visible to
// sibling sessions on their next lookup.
//
// Records are treated as immutable once stored. Mutation happens by storing a
// replacement record, never by writing fields in place, so concurrent readers
// never observe a half-updated token.
type UserTokenRecord struct {
	// AccessToken is the bearer token presented to the backend.
	AccessToken string

	// RefreshToken is used to obtain new access tokens (optional).
	RefreshToken string

	// ExpiresAt is the absolute expiry of the access token.
	// Zero means the token carries no expiry.
	ExpiresAt time.Time

	// Scopes are the granted scopes, order preserved as issued.
	Scopes []string
}

// IsExpired reports whether the access token is expired or will expire
// within the given margin. Tokens without an expiry never expire.
func (r *UserTokenRecord) IsExpired(margin time.Duration) bool {
	if r.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().Add(margin).After(r.ExpiresAt)
}

// Clone returns a copy of the record safe to hand out to callers.
func (r *UserTokenRecord) Clone() *UserTokenRecord {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Scopes = append([]string(nil), r.Scopes...)
	return &clone
}

// Metadata represents the OAuth 2.0 Authorization Server Metadata as defined
// in RFC 8414, plus the device authorization endpoint from RFC 8628.
type Metadata struct {
	Issuer                        string   `json:"issuer"`
	AuthorizationEndpoint         string   `json:"authorization_endpoint"`
	TokenEndpoint                 string   `json:"token_endpoint"`
	DeviceAuthorizationEndpoint   string   `json:"device_authorization_endpoint,omitempty"`
	JwksURI                       string   `json:"jwks_uri,omitempty"`
	RegistrationEndpoint          string   `json:"registration_endpoint,omitempty"`
	ScopesSupported               []string `json:"scopes_supported,omitempty"`
	ResponseTypesSupported        []string `json:"response_types_supported"`
	GrantTypesSupported           []string `json:"grant_types_supported,omitempty"`
	CodeChallengeMethodsSupported []string `json:"code_challenge_methods_supported,omitempty"`
}

// AuthInfo is the decoded result of verifying an inbound bearer token.
type AuthInfo struct {
	// Token is the raw bearer token that was verified.
	Token string

	// ClientID identifies the OAuth client the token was issued to.
	// Defaults to "unknown" when the token carries no client claim.
	ClientID string

	// Scopes are the granted scopes in claim order. Duplicates are kept;
	// set-wise comparison is the authorization gate's concern.
	Scopes []string

	// ExpiresAt is the token expiry. Zero when the claim is absent.
	ExpiresAt time.Time

	// Resource is the protected resource the token is bound to, derived
	// from the aud claim. Nil when absent or unparseable.
	Resource *url.URL

	// Claims holds the full decoded claim set for callers that need
	// additional fields (e.g. the subject for session binding).
	Claims map[string]interface{}
}

// Subject returns the token's sub claim, or "" when absent.
func (a *AuthInfo) Subject() string {
	if a == nil || a.Claims == nil {
		return ""
	}
	if sub, ok := a.Claims["sub"].(string); ok {
		return sub
	}
	return ""
}
