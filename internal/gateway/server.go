package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"postern/internal/capability"
	"postern/internal/config"
	"postern/internal/oauth"
	"postern/pkg/logging"
)

// SessionBinder connects transport sessions to the token store. Implemented
// by oauth.Manager.
type SessionBinder interface {
	// BindVerifiedToken associates a session with the user identified by a
	// verified inbound bearer token.
	BindVerifiedToken(sessionID string, info *oauth.AuthInfo) string

	// ReleaseSession drops the session's user binding, leaving the user's
	// token record intact for their other sessions.
	ReleaseSession(sessionID string)
}

// Server exposes the capability registry over MCP. Tool registration is
// dynamic: each discovery cycle replaces the advertised tool set and the
// SDK notifies connected clients via list_changed.
type Server struct {
	cfg        config.GatewayConfig
	mcpServer  *server.MCPServer
	dispatcher *Dispatcher
	registry   *capability.Registry
	sessions   *SessionRegistry
	authTools  *AuthToolProvider
	binder     SessionBinder

	mu              sync.Mutex
	registeredNames []string

	sseServer        *server.SSEServer
	stdioServer      *server.StdioServer
	streamableServer *server.StreamableHTTPServer
}

// NewServer assembles the MCP-facing side of the gateway. binder may be nil
// for transports without inbound bearer tokens.
func NewServer(
	cfg config.GatewayConfig,
	dispatcher *Dispatcher,
	registry *capability.Registry,
	sessions *SessionRegistry,
	authTools *AuthToolProvider,
	binder SessionBinder,
	version string,
) *Server {
	s := &Server{
		cfg:        cfg,
		dispatcher: dispatcher,
		registry:   registry,
		sessions:   sessions,
		authTools:  authTools,
		binder:     binder,
	}

	hooks := &server.Hooks{}
	hooks.AddOnRegisterSession(func(ctx context.Context, session server.ClientSession) {
		sessionID := session.SessionID()
		if err := s.sessions.Register(sessionID); err != nil {
			logging.Warn("Gateway", "Rejecting session %s: %v",
				logging.TruncateSessionID(sessionID), err)
			return
		}
		// A bearer token verified by the HTTP middleware pre-authenticates
		// the session for the token's user.
		if info := oauth.AuthInfoFromContext(ctx); info != nil && s.binder != nil {
			userID := s.binder.BindVerifiedToken(sessionID, info)
			logging.Debug("Gateway", "Session %s bound to user %s from inbound bearer token",
				logging.TruncateSessionID(sessionID), userID)
		}
	})
	hooks.AddOnUnregisterSession(func(ctx context.Context, session server.ClientSession) {
		sessionID := session.SessionID()
		s.sessions.Unregister(sessionID)
		if s.binder != nil {
			s.binder.ReleaseSession(sessionID)
		}
	})

	s.mcpServer = server.NewMCPServer(
		"postern",
		version,
		server.WithToolCapabilities(true),
		server.WithHooks(hooks),
	)
	return s
}

// RegisterCapabilities replaces the advertised tool set with the current
// registry contents plus the auth meta-tools. Discovered tools whose names
// collide with a meta-tool are skipped; the meta-tool wins.
func (s *Server) RegisterCapabilities() {
	reserved := make(map[string]bool)
	if s.authTools != nil {
		for _, name := range AuthToolNames() {
			reserved[name] = true
		}
	}
	var selected map[string]bool
	if len(s.cfg.SelectedTools) > 0 {
		selected = make(map[string]bool, len(s.cfg.SelectedTools))
		for _, name := range s.cfg.SelectedTools {
			selected[name] = true
		}
	}

	var tools []server.ServerTool
	var names []string
	for _, entry := range s.registry.Entries() {
		def := entry.Definition
		if reserved[def.Name] {
			logging.Warn("Gateway", "Skipping discovered tool %q: name collides with a built-in auth tool", def.Name)
			continue
		}
		if selected != nil && !selected[def.Name] {
			continue
		}
		rawSchema, err := json.Marshal(def.InputSchema)
		if err != nil {
			logging.Warn("Gateway", "Skipping tool %q: schema not serializable: %v", def.Name, err)
			continue
		}
		tool := mcp.Tool{
			Name:           def.Name,
			Description:    def.Description,
			RawInputSchema: rawSchema,
		}
		if def.Title != "" {
			tool.Annotations = mcp.ToolAnnotation{Title: def.Title}
		}
		tools = append(tools, server.ServerTool{
			Tool:    tool,
			Handler: s.capabilityHandler(def.Name),
		})
		names = append(names, def.Name)
	}

	backendCount := len(names)
	if s.authTools != nil {
		for _, tool := range s.authTools.Tools() {
			tools = append(tools, tool)
			names = append(names, tool.Tool.Name)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.registeredNames) > 0 {
		s.mcpServer.DeleteTools(s.registeredNames...)
	}
	s.mcpServer.AddTools(tools...)
	s.registeredNames = names
	logging.Info("Gateway", "Advertising %d tools (%d from backend)", len(names), backendCount)
}

// capabilityHandler adapts the dispatcher to the SDK's tool handler shape.
// The tool name is captured by value so dynamic re-registration cannot
// redirect an in-flight handler.
func (s *Server) capabilityHandler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID := sessionIDFromContext(ctx)
		if sessionID != "" {
			s.sessions.Touch(sessionID)
		}

		args := make(map[string]interface{})
		if req.Params.Arguments != nil {
			if argsMap, ok := req.Params.Arguments.(map[string]interface{}); ok {
				args = argsMap
			}
		}

		result, err := s.dispatcher.Dispatch(ctx, sessionID, name, args)
		if err != nil {
			logging.Debug("Gateway", "Tool %s failed for session %s: %v",
				name, logging.TruncateSessionID(sessionID), err)
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(result)), nil
	}
}

// Handler returns the streamable HTTP handler for mounting under the
// gateway's HTTP server. Only valid for the streamable-http transport.
func (s *Server) Handler() http.Handler {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.streamableServer == nil {
		s.streamableServer = server.NewStreamableHTTPServer(
			s.mcpServer,
			server.WithEndpointPath("/mcp"),
		)
	}
	return s.streamableServer
}

// Start launches the configured transport. The streamable-http transport is
// served by the surrounding HTTP server via Handler, so Start only spawns
// listeners for SSE and stdio.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	switch s.cfg.Transport {
	case config.TransportSSE:
		logging.Info("Gateway", "Starting SSE transport on %s", addr)
		baseURL := fmt.Sprintf("http://%s", addr)
		s.sseServer = server.NewSSEServer(
			s.mcpServer,
			server.WithBaseURL(baseURL),
			server.WithSSEEndpoint("/sse"),
			server.WithMessageEndpoint("/message"),
			server.WithKeepAlive(true),
			server.WithKeepAliveInterval(30*time.Second),
		)
		sseServer := s.sseServer
		go func() {
			if err := sseServer.Start(addr); err != nil && err != http.ErrServerClosed {
				logging.Error("Gateway", err, "SSE server error")
			}
		}()

	case config.TransportStdio:
		logging.Info("Gateway", "Starting stdio transport")
		s.stdioServer = server.NewStdioServer(s.mcpServer)
		stdioServer := s.stdioServer
		go func() {
			if err := stdioServer.Listen(ctx, os.Stdin, os.Stdout); err != nil {
				logging.Error("Gateway", err, "Stdio server error")
			}
		}()

	case config.TransportStreamableHTTP:
		// Served via Handler by the HTTP front.

	default:
		return fmt.Errorf("unknown transport %q", s.cfg.Transport)
	}
	return nil
}

// Stop shuts down the transports and the session registry.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	sseServer := s.sseServer
	s.mu.Unlock()

	if sseServer != nil {
		if err := sseServer.Shutdown(ctx); err != nil {
			logging.Warn("Gateway", "SSE server shutdown: %v", err)
		}
	}
	s.sessions.Stop()
	return nil
}

// SessionCount reports the number of live transport sessions.
func (s *Server) SessionCount() int {
	return s.sessions.Count()
}
