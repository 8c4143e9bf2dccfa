package config

const (
	// DefaultGatewayHost is the default bind host for HTTP transports.
	DefaultGatewayHost = "localhost"

	// DefaultGatewayPort is the default bind port for HTTP transports.
	DefaultGatewayPort = 8090

	// DefaultMaxSessions is the default cap on concurrent client sessions.
	DefaultMaxSessions = 10000

	// DefaultSessionTTLMin is the default idle session expiry in minutes.
	DefaultSessionTTLMin = 30

	// DefaultDiscoveryPath is the backend path serving the tool listing.
	DefaultDiscoveryPath = "/api/tools"

	// DefaultInvokePath is the backend path receiving tool invocations.
	DefaultInvokePath = "/api/tools/call"

	// DefaultBackendTimeoutMs is the default tool invocation timeout.
	DefaultBackendTimeoutMs = 30000

	// DefaultToolCacheTTLMs is the default discovery cache TTL.
	DefaultToolCacheTTLMs = 300000

	// DefaultDiscoveryTimeoutMs is the default tool discovery timeout.
	DefaultDiscoveryTimeoutMs = 5000

	// DefaultRefreshWindowSeconds is the default proactive refresh window.
	DefaultRefreshWindowSeconds = 60
)

// GetDefaultConfig returns the default gateway configuration. Values in a
// loaded config file overlay these defaults field by field.
func GetDefaultConfig() Config {
	return Config{
		Gateway: GatewayConfig{
			Host:          DefaultGatewayHost,
			Port:          DefaultGatewayPort,
			Transport:     TransportStreamableHTTP,
			MaxSessions:   DefaultMaxSessions,
			SessionTTLMin: DefaultSessionTTLMin,
		},
		Backend: BackendConfig{
			DiscoveryPath: DefaultDiscoveryPath,
			InvokePath:    DefaultInvokePath,
			TimeoutMs:     DefaultBackendTimeoutMs,
		},
		OAuth: OAuthConfig{
			RefreshWindowSeconds: DefaultRefreshWindowSeconds,
		},
		Discovery: DiscoveryConfig{
			CacheTTLMs: DefaultToolCacheTTLMs,
			TimeoutMs:  DefaultDiscoveryTimeoutMs,
		},
		LogLevel: "info",
	}
}
