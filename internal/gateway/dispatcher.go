package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"postern/internal/capability"
	"postern/internal/oauth"
	"postern/pkg/logging"
)

// TokenProvider supplies per-session token state to the dispatcher. It is
// implemented by oauth.Manager; tests substitute lightweight fakes.
type TokenProvider interface {
	// GetToken returns the session's current access token, refreshing it
	// proactively when close to expiry. Empty means no token available.
	GetToken(ctx context.Context, sessionID string) string

	// GetTokenScopes returns the scopes granted to the session's token.
	GetTokenScopes(sessionID string) []string

	// RefreshSessionToken forces a refresh of the session's token.
	RefreshSessionToken(ctx context.Context, sessionID string) error
}

// Dispatcher resolves, authorizes, validates, and proxies capability calls.
type Dispatcher struct {
	registry *capability.Registry
	tokens   TokenProvider
	invoker  *Invoker
}

// NewDispatcher wires a dispatcher over the given registry, token provider,
// and backend invoker.
func NewDispatcher(registry *capability.Registry, tokens TokenProvider, invoker *Invoker) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		tokens:   tokens,
		invoker:  invoker,
	}
}

// Dispatch runs the full invocation pipeline for one capability call.
// Failure ordering is fixed: unknown tool, then authorization, then
// parameter validation, then backend errors. sessionID may be empty for
// transports without session tracking; anonymous calls still reach open
// and optional-auth capabilities.
func (d *Dispatcher) Dispatch(ctx context.Context, sessionID, name string, args map[string]interface{}) (json.RawMessage, error) {
	entry, ok := d.registry.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("Unknown tool '%s'. Available tools: %s",
			name, strings.Join(d.registry.SortedNames(), ", "))
	}
	def := &entry.Definition

	if err := d.authorize(ctx, sessionID, def); err != nil {
		return nil, err
	}

	if err := entry.Validator.Validate(args); err != nil {
		return nil, fmt.Errorf("Invalid parameters for tool '%s': %v", name, err)
	}

	// Best-effort: a missing token is only fatal for "required" tools,
	// which authorize already rejected.
	token := ""
	if sessionID != "" {
		token = d.tokens.GetToken(ctx, sessionID)
	}

	result, err := d.invoker.Invoke(ctx, name, args, token)
	if errors.Is(err, ErrBackendUnauthorized) && sessionID != "" {
		result, err = d.retryAfterRefresh(ctx, sessionID, name, args)
	}
	if err != nil {
		if errors.Is(err, ErrBackendUnauthorized) {
			err = errors.New("backend returned 401 Unauthorized")
		}
		return nil, fmt.Errorf("Tool '%s' execution failed: %v", name, err)
	}
	return result, nil
}

// retryAfterRefresh performs the reactive-refresh path: one forced refresh,
// one retry. A failed refresh surfaces the original 401.
func (d *Dispatcher) retryAfterRefresh(ctx context.Context, sessionID, name string, args map[string]interface{}) (json.RawMessage, error) {
	logging.Info("Dispatcher", "Backend returned 401 for tool %s, session %s: attempting token refresh",
		name, logging.TruncateSessionID(sessionID))

	if err := d.tokens.RefreshSessionToken(ctx, sessionID); err != nil {
		logging.Warn("Dispatcher", "Reactive refresh failed for session %s: %v",
			logging.TruncateSessionID(sessionID), err)
		return nil, ErrBackendUnauthorized
	}

	token := d.tokens.GetToken(ctx, sessionID)
	if token == "" {
		return nil, ErrBackendUnauthorized
	}
	return d.invoker.Invoke(ctx, name, args, token)
}

// authorize enforces the capability's auth annotations against the caller's
// session before any parameter validation runs.
func (d *Dispatcher) authorize(ctx context.Context, sessionID string, def *capability.Definition) error {
	if capability.GetAuthLevel(def.AuthMeta()) != capability.AuthLevelRequired {
		return nil
	}

	if sessionID == "" {
		return &oauth.AuthenticationError{
			Message: fmt.Sprintf("Authentication required for tool '%s'. Use the auth_login tool to authenticate.", def.Name),
		}
	}
	if token := d.tokens.GetToken(ctx, sessionID); token == "" {
		return &oauth.AuthenticationError{
			Message: fmt.Sprintf("Authentication required for tool '%s'. Use the auth_login tool to authenticate.", def.Name),
		}
	}
	return capability.ValidateToolAccess(def, d.tokens.GetTokenScopes(sessionID))
}
