// Package config provides configuration management for postern.
//
// Configuration is resolved in three layers, each overriding the previous:
//
//  1. Built-in defaults (GetDefaultConfig)
//  2. A YAML config file, by default ~/.config/postern/config.yaml
//  3. Environment variables (POSTERN_TOOL_CACHE_TTL_MS,
//     POSTERN_DISCOVERY_TIMEOUT_MS, POSTERN_EXTRA_SCOPES)
//
// A missing config file is informational, not fatal: the gateway starts on
// defaults plus environment. Invalid environment values are ignored with a
// logged warning so a typo never silently changes behavior.
//
// Validate distinguishes startup-fatal problems (missing backend base URL,
// unsupported transport, auth required without an issuer) from soft
// misconfiguration that degrades to defaults.
package config
