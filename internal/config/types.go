package config

import "time"

// Config is the root configuration for a postern gateway process.
type Config struct {
	Gateway   GatewayConfig   `yaml:"gateway"`
	Backend   BackendConfig   `yaml:"backend"`
	OAuth     OAuthConfig     `yaml:"oauth"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	LogLevel  string          `yaml:"logLevel,omitempty"` // debug, info, warn, error (default: info)
	JSONLogs  bool            `yaml:"jsonLogs,omitempty"` // JSON log output (default: false)
}

// Transport constants define the protocol used between tool-calling clients
// and the gateway.
const (
	// TransportStreamableHTTP is the streamable HTTP transport (default).
	TransportStreamableHTTP = "streamable-http"
	// TransportSSE is the Server-Sent Events transport.
	TransportSSE = "sse"
	// TransportStdio is the standard I/O transport.
	TransportStdio = "stdio"
)

// GatewayConfig configures the client-facing side of the gateway.
type GatewayConfig struct {
	Host          string   `yaml:"host,omitempty"`          // Host to bind to (default: localhost)
	Port          int      `yaml:"port,omitempty"`          // Port for the HTTP transports (default: 8090)
	Transport     string   `yaml:"transport,omitempty"`     // Transport to use (default: streamable-http)
	RequireAuth   bool     `yaml:"requireAuth,omitempty"`   // Reject unauthenticated HTTP callers (default: false)
	MaxSessions   int      `yaml:"maxSessions,omitempty"`   // Maximum concurrent sessions (default: 10000)
	SessionTTLMin int      `yaml:"sessionTtlMin,omitempty"` // Idle session expiry in minutes (default: 30)
	ExternalURL   string   `yaml:"externalUrl,omitempty"`   // Public URL advertised in protected-resource metadata
	SelectedTools []string `yaml:"selectedTools,omitempty"` // Restrict exposed tools to this set (default: all)
}

// SessionTTL returns the idle session expiry as a duration.
func (g GatewayConfig) SessionTTL() time.Duration {
	return time.Duration(g.SessionTTLMin) * time.Minute
}

// BackendConfig configures the remote content backend the gateway proxies to.
type BackendConfig struct {
	BaseURL       string `yaml:"baseUrl"`                 // Required. Root URL of the content backend.
	DiscoveryPath string `yaml:"discoveryPath,omitempty"` // Tool discovery path (default: /api/tools)
	InvokePath    string `yaml:"invokePath,omitempty"`    // Tool invocation path (default: /api/tools/call)
	TimeoutMs     int    `yaml:"timeoutMs,omitempty"`     // Invocation timeout in ms (default: 30000)
}

// Timeout returns the backend invocation timeout as a duration.
func (b BackendConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutMs) * time.Millisecond
}

// OAuthConfig configures the authorization server the gateway obtains and
// verifies tokens against.
type OAuthConfig struct {
	Issuer               string   `yaml:"issuer"`                         // Authorization server issuer URL. Required for auth.
	ClientID             string   `yaml:"clientId,omitempty"`             // OAuth client ID for the device flow.
	Scopes               []string `yaml:"scopes,omitempty"`               // Additional scopes requested during authorization.
	RefreshWindowSeconds int      `yaml:"refreshWindowSeconds,omitempty"` // Proactive refresh window before expiry (default: 60)
}

// RefreshWindow returns the proactive refresh window as a duration.
func (o OAuthConfig) RefreshWindow() time.Duration {
	return time.Duration(o.RefreshWindowSeconds) * time.Second
}

// DiscoveryConfig configures capability discovery against the backend.
type DiscoveryConfig struct {
	CacheTTLMs int `yaml:"cacheTtlMs,omitempty"` // Tool cache TTL in ms (default: 300000)
	TimeoutMs  int `yaml:"timeoutMs,omitempty"`  // Discovery request timeout in ms (default: 5000)
}

// CacheTTL returns the discovery cache TTL as a duration.
func (d DiscoveryConfig) CacheTTL() time.Duration {
	return time.Duration(d.CacheTTLMs) * time.Millisecond
}

// Timeout returns the discovery request timeout as a duration.
func (d DiscoveryConfig) Timeout() time.Duration {
	return time.Duration(d.TimeoutMs) * time.Millisecond
}
