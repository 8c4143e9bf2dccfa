package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"postern/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/postern"
	configFileName = "config.yaml"
)

// Environment variables recognized by the loader. They override file values
// after the YAML overlay so containerized deployments can tune the gateway
// without editing the config file.
const (
	// EnvToolCacheTTL overrides discovery.cacheTtlMs (milliseconds).
	EnvToolCacheTTL = "POSTERN_TOOL_CACHE_TTL_MS"
	// EnvDiscoveryTimeout overrides discovery.timeoutMs (milliseconds).
	EnvDiscoveryTimeout = "POSTERN_DISCOVERY_TIMEOUT_MS"
	// EnvExtraScopes appends to oauth.scopes (space or comma separated).
	EnvExtraScopes = "POSTERN_EXTRA_SCOPES"
)

// GetDefaultConfigPath returns the per-user config file location.
func GetDefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir, configFileName), nil
}

// LoadConfig loads configuration from the given file path. Defaults are
// applied first, the YAML file (if present) overlays them, and environment
// overrides are applied last. A missing file is not an error.
func LoadConfig(configPath string) (Config, error) {
	config := GetDefaultConfig()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("Config", "No config file found at %s, using defaults", configPath)
			applyEnvOverrides(&config)
			return config, nil
		}
		return Config{}, fmt.Errorf("failed to read config from %s: %w", configPath, err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("failed to parse config from %s: %w", configPath, err)
	}
	logging.Info("Config", "Loaded configuration from %s", configPath)

	applyEnvOverrides(&config)
	return config, nil
}

// applyEnvOverrides applies recognized environment variables on top of the
// loaded configuration. Invalid values are ignored with a warning so a typo
// in the environment never changes behavior silently or fatally.
func applyEnvOverrides(config *Config) {
	if raw, ok := os.LookupEnv(EnvToolCacheTTL); ok {
		if ttl, err := parsePositiveInt(raw); err != nil {
			logging.Warn("Config", "Invalid %s value %q, using default %dms: %v",
				EnvToolCacheTTL, raw, DefaultToolCacheTTLMs, err)
		} else {
			config.Discovery.CacheTTLMs = ttl
		}
	}

	if raw, ok := os.LookupEnv(EnvDiscoveryTimeout); ok {
		if timeout, err := parsePositiveInt(raw); err != nil {
			logging.Warn("Config", "Invalid %s value %q, using default %dms: %v",
				EnvDiscoveryTimeout, raw, DefaultDiscoveryTimeoutMs, err)
		} else {
			config.Discovery.TimeoutMs = timeout
		}
	}

	if raw, ok := os.LookupEnv(EnvExtraScopes); ok {
		for _, scope := range splitScopeList(raw) {
			if !containsString(config.OAuth.Scopes, scope) {
				config.OAuth.Scopes = append(config.OAuth.Scopes, scope)
			}
		}
	}
}

func parsePositiveInt(raw string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, fmt.Errorf("must be a positive integer")
	}
	return v, nil
}

// splitScopeList splits a scope list on spaces and commas, tolerating mixed
// separators and repeated whitespace.
func splitScopeList(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t'
	})
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
