package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"postern/internal/oauth"
	"postern/pkg/logging"
)

// AuthService is the slice of the OAuth lifecycle manager the auth
// meta-tools need.
type AuthService interface {
	AuthenticateDeviceFlow(ctx context.Context) (*oauth.DeviceAuthorization, error)
	Authorize(ctx context.Context, sessionID string, auth *oauth.DeviceAuthorization) (string, error)
	SessionUser(sessionID string) string
	SessionRecord(sessionID string) *oauth.UserTokenRecord
	GetTokenScopes(sessionID string) []string
	Logout(sessionID string)
}

// AuthToolProvider exposes the gateway's own authentication operations as
// MCP tools, so a client can log in, inspect, and end its OAuth session
// through the same tool-calling channel it uses for everything else.
type AuthToolProvider struct {
	auth AuthService
}

// NewAuthToolProvider creates a provider backed by the given auth service.
func NewAuthToolProvider(auth AuthService) *AuthToolProvider {
	return &AuthToolProvider{auth: auth}
}

// AuthToolNames lists the meta-tool names the provider registers. Discovered
// backend capabilities with colliding names are skipped with a warning.
func AuthToolNames() []string {
	return []string{"auth_login", "auth_status", "auth_logout"}
}

// Tools returns the meta-tools ready for registration with the MCP server.
func (p *AuthToolProvider) Tools() []server.ServerTool {
	emptySchema := mcp.ToolInputSchema{
		Type:       "object",
		Properties: map[string]interface{}{},
	}
	return []server.ServerTool{
		{
			Tool: mcp.Tool{
				Name:        "auth_login",
				Description: "Start the OAuth device authorization flow for this session. Returns a verification URL and user code; authentication completes in the background once the code is entered.",
				InputSchema: emptySchema,
			},
			Handler: p.handleLogin,
		},
		{
			Tool: mcp.Tool{
				Name:        "auth_status",
				Description: "Show the authentication state of this session: whether a token is held, its granted scopes, and its expiry.",
				InputSchema: emptySchema,
			},
			Handler: p.handleStatus,
		},
		{
			Tool: mcp.Tool{
				Name:        "auth_logout",
				Description: "Clear this session's authentication and discard the user's cached tokens.",
				InputSchema: emptySchema,
			},
			Handler: p.handleLogout,
		},
	}
}

func sessionIDFromContext(ctx context.Context) string {
	if session := server.ClientSessionFromContext(ctx); session != nil {
		return session.SessionID()
	}
	return ""
}

func (p *AuthToolProvider) handleLogin(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := sessionIDFromContext(ctx)
	if sessionID == "" {
		return mcp.NewToolResultError("No session ID available; auth_login requires a session-tracking transport."), nil
	}

	if user := p.auth.SessionUser(sessionID); user != "" {
		if record := p.auth.SessionRecord(sessionID); record != nil && !record.IsExpired(0) {
			return mcp.NewToolResultText("This session is already authenticated. Use auth_status for details or auth_logout to start over."), nil
		}
	}

	auth, err := p.auth.AuthenticateDeviceFlow(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to start device flow: %v", err)), nil
	}

	// Poll in the background: the tool-call context ends with the request,
	// but the user needs time to visit the verification URL.
	pollCtx, cancel := context.WithDeadline(context.WithoutCancel(ctx), auth.ExpiresAt)
	go func() {
		defer cancel()
		userID, err := p.auth.Authorize(pollCtx, sessionID, auth)
		if err != nil {
			logging.Warn("AuthTools", "Device flow failed for session %s: %v",
				logging.TruncateSessionID(sessionID), err)
			return
		}
		logging.Info("AuthTools", "Session %s authenticated as user %s",
			logging.TruncateSessionID(sessionID), userID)
	}()

	uri := auth.VerificationURIComplete
	if uri == "" {
		uri = auth.VerificationURI
	}
	message := fmt.Sprintf(
		"To authenticate, open:\n\n  %s\n\nand enter code: %s\n\n"+
			"The code expires at %s. Check progress with auth_status.",
		uri, auth.UserCode, auth.ExpiresAt.Format(time.RFC3339))
	return mcp.NewToolResultText(message), nil
}

func (p *AuthToolProvider) handleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := sessionIDFromContext(ctx)
	if sessionID == "" {
		return mcp.NewToolResultText("Not authenticated: no session ID available."), nil
	}

	record := p.auth.SessionRecord(sessionID)
	if record == nil {
		return mcp.NewToolResultText("Not authenticated. Use auth_login to start the device flow."), nil
	}

	scopes := "(none)"
	if granted := p.auth.GetTokenScopes(sessionID); len(granted) > 0 {
		scopes = strings.Join(granted, ", ")
	}
	state := "valid"
	if record.IsExpired(0) {
		state = "expired"
		if record.RefreshToken != "" {
			state = "expired (will refresh on next use)"
		}
	}
	message := fmt.Sprintf("Authenticated.\nToken: %s\nScopes: %s\nExpires: %s",
		state, scopes, record.ExpiresAt.Format(time.RFC3339))
	return mcp.NewToolResultText(message), nil
}

func (p *AuthToolProvider) handleLogout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := sessionIDFromContext(ctx)
	if sessionID == "" {
		return mcp.NewToolResultText("Nothing to log out: no session ID available."), nil
	}
	if p.auth.SessionUser(sessionID) == "" {
		return mcp.NewToolResultText("This session was not authenticated."), nil
	}
	p.auth.Logout(sessionID)
	return mcp.NewToolResultText("Logged out. Cached tokens for this user have been discarded."), nil
}
