package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"postern/internal/config"
	"postern/pkg/logging"
)

const (
	// DefaultReadHeaderTimeout bounds header reads on new connections.
	DefaultReadHeaderTimeout = 10 * time.Second
	// DefaultWriteTimeout bounds response writing. Generous because the
	// streamable transport holds responses open.
	DefaultWriteTimeout = 120 * time.Second
	// DefaultIdleTimeout closes idle keepalive connections.
	DefaultIdleTimeout = 120 * time.Second
)

// Options configures the HTTP front.
type Options struct {
	Gateway config.GatewayConfig

	// Verifier checks inbound bearer tokens. nil disables the middleware
	// and all requests proceed anonymously.
	Verifier TokenVerifier

	// Issuer is the authorization server advertised in metadata and
	// challenges.
	Issuer string

	// Scopes are advertised in the protected-resource metadata.
	Scopes []string

	// MCPHandler serves the streamable MCP endpoint.
	MCPHandler http.Handler

	// Health supplies the health endpoint's state. nil reports a bare
	// "ok" with zero counts.
	Health func() HealthState
}

// Server is the gateway's HTTP listener for the streamable-http transport.
type Server struct {
	httpServer *http.Server
	addr       string
}

// New builds the HTTP front: MCP endpoint behind the bearer middleware,
// protected-resource metadata, and health.
func New(opts Options) *Server {
	addr := fmt.Sprintf("%s:%d", opts.Gateway.Host, opts.Gateway.Port)
	externalURL := strings.TrimSuffix(opts.Gateway.ExternalURL, "/")
	if externalURL == "" {
		externalURL = "http://" + addr
	}

	health := opts.Health
	if health == nil {
		health = func() HealthState { return HealthState{Status: "ok"} }
	}

	mux := http.NewServeMux()
	mux.Handle("/health", healthHandler(health))

	if opts.Issuer != "" {
		mux.Handle(ProtectedResourceMetadataPath,
			protectedResourceHandler(externalURL, opts.Issuer, opts.Scopes))
	}

	mcpHandler := opts.MCPHandler
	if opts.Verifier != nil && opts.Issuer != "" {
		middleware := NewBearerMiddleware(
			opts.Verifier,
			opts.Issuer,
			externalURL+ProtectedResourceMetadataPath,
			opts.Gateway.RequireAuth,
		)
		mcpHandler = middleware.Wrap(mcpHandler)
	}
	mux.Handle("/mcp", mcpHandler)

	return &Server{
		addr: addr,
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: DefaultReadHeaderTimeout,
			WriteTimeout:      DefaultWriteTimeout,
			IdleTimeout:       DefaultIdleTimeout,
		},
	}
}

// Addr returns the listen address.
func (s *Server) Addr() string { return s.addr }

// Start serves until Shutdown. It blocks; run it in a goroutine.
func (s *Server) Start() error {
	logging.Info("HTTP", "Listening on %s", s.addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
