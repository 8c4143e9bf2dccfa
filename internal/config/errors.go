package config

import "fmt"

// ConfigurationError reports a missing or invalid configuration value that
// prevents the gateway from starting.
type ConfigurationError struct {
	Field   string // Dotted path of the offending field, e.g. "backend.baseUrl"
	Message string // Human-readable description of the problem
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %s", e.Message)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
}

// NewConfigurationError creates a ConfigurationError for the given field.
func NewConfigurationError(field, message string) *ConfigurationError {
	return &ConfigurationError{Field: field, Message: message}
}

// Validate checks that the configuration is sufficient to start the gateway.
// Only startup-fatal problems are reported here; soft misconfiguration (bad
// env overrides, unknown log levels) is downgraded to defaults with a warning
// at load time.
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return NewConfigurationError("backend.baseUrl", "base URL is required")
	}
	if c.Gateway.RequireAuth && c.OAuth.Issuer == "" {
		return NewConfigurationError("oauth.issuer", "issuer is required when gateway.requireAuth is set")
	}
	switch c.Gateway.Transport {
	case TransportStreamableHTTP, TransportSSE, TransportStdio:
	default:
		return NewConfigurationError("gateway.transport",
			fmt.Sprintf("unsupported transport %q (supported: %s, %s, %s)",
				c.Gateway.Transport, TransportStreamableHTTP, TransportSSE, TransportStdio))
	}
	return nil
}
