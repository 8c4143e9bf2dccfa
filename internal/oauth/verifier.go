package oauth

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	keyfunc "github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"postern/internal/config"
	"postern/pkg/logging"
)

// verifierLeeway is the clock-skew allowance applied to time-based claims.
const verifierLeeway = 60 * time.Second

// defaultClientID is reported when a verified token carries no client claim.
const defaultClientID = "unknown"

// Verifier validates inbound bearer JWTs against the authorization server's
// JWKS. The key set is derived from the discovery document's jwks_uri and is
// long-lived for the process; it is rebuilt only if the jwks_uri changes.
type Verifier struct {
	metadata *MetadataCache

	mu      sync.Mutex
	jwks    keyfunc.Keyfunc
	jwksURI string
}

// NewVerifier creates a verifier backed by the given metadata cache.
func NewVerifier(metadata *MetadataCache) *Verifier {
	return &Verifier{metadata: metadata}
}

// VerifyAccessToken verifies the raw bearer token's signature and issuer and
// returns the decoded claims. Any failure, whether network, signature, or
// claims, is wrapped into a single "Token verification failed" error.
func (v *Verifier) VerifyAccessToken(ctx context.Context, rawToken string) (*AuthInfo, error) {
	info, err := v.verify(ctx, rawToken)
	if err != nil {
		return nil, fmt.Errorf("Token verification failed: %v", err)
	}
	return info, nil
}

func (v *Verifier) verify(ctx context.Context, rawToken string) (*AuthInfo, error) {
	if rawToken == "" {
		return nil, fmt.Errorf("empty token")
	}

	metadata, err := v.metadata.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	kf, err := v.keyfuncFor(ctx, metadata)
	if err != nil {
		return nil, err
	}

	// Issuer enforcement is part of the parse itself. There is no second
	// attempt without the issuer check: a missing or mismatched iss claim is
	// a hard failure.
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512"}),
		jwt.WithIssuer(metadata.Issuer),
		jwt.WithLeeway(verifierLeeway),
	)

	parsed, err := parser.Parse(rawToken, kf.Keyfunc)
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type %T", parsed.Claims)
	}

	info := &AuthInfo{
		Token:    rawToken,
		ClientID: defaultClientID,
		Scopes:   []string{},
		Claims:   claims,
	}

	if clientID, ok := claims["client_id"].(string); ok && clientID != "" {
		info.ClientID = clientID
	}
	if scope, ok := claims["scope"].(string); ok {
		info.Scopes = ParseScopes(scope)
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
	}
	info.Resource = resourceFromAudience(claims["aud"])

	return info, nil
}

// keyfuncFor returns the JWKS keyfunc for the given metadata, building it on
// first use and rebuilding it if the advertised jwks_uri has changed. A
// missing jwks_uri is a configuration problem with the authorization server
// and is reported immediately rather than as a per-token signature failure.
func (v *Verifier) keyfuncFor(ctx context.Context, metadata *Metadata) (keyfunc.Keyfunc, error) {
	if metadata.JwksURI == "" {
		return nil, config.NewConfigurationError("oauth.issuer",
			"authorization server metadata does not advertise a jwks_uri")
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.jwks != nil && v.jwksURI == metadata.JwksURI {
		return v.jwks, nil
	}

	if v.jwks != nil {
		logging.Info("Verifier", "JWKS URI changed from %s to %s, rebuilding key set",
			v.jwksURI, metadata.JwksURI)
	}

	// The keyfunc refreshes keys in the background for the life of the
	// process, so the key set survives authorization server key rotation.
	kf, err := keyfunc.NewDefaultCtx(context.WithoutCancel(ctx), []string{metadata.JwksURI})
	if err != nil {
		return nil, fmt.Errorf("failed to build JWKS from %s: %w", metadata.JwksURI, err)
	}

	v.jwks = kf
	v.jwksURI = metadata.JwksURI
	return kf, nil
}

// ParseScopes splits a scope claim into its individual scopes. Both space-
// and comma-separated lists are tolerated, including mixed separators and
// repeated whitespace. Empty claims yield an empty list. Duplicates are kept
// in claim order; deduplication is a discovery-layer concern.
func ParseScopes(claim string) []string {
	scopes := strings.FieldsFunc(claim, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t' || r == '\n'
	})
	if scopes == nil {
		return []string{}
	}
	return scopes
}

// resourceFromAudience derives the protected resource URL from an aud claim.
// A string audience is parsed as a URL; an array uses its first element.
// Anything unparseable is silently ignored, leaving the resource nil.
func resourceFromAudience(aud interface{}) *url.URL {
	var raw string
	switch v := aud.(type) {
	case string:
		raw = v
	case []interface{}:
		if len(v) > 0 {
			raw, _ = v[0].(string)
		}
	case []string:
		if len(v) > 0 {
			raw = v[0]
		}
	}
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil
	}
	return u
}
