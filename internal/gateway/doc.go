// Package gateway exposes discovered backend capabilities as MCP tools and
// enforces per-session OAuth authorization on every call.
//
// The dispatcher is the single entry point for tool invocation. It resolves
// the capability, checks the caller's scopes against the capability's auth
// annotations, validates parameters against the compiled input schema, and
// proxies the call to the backend with the session's bearer token attached
// when one can be resolved. A 401 from the backend triggers one reactive
// token refresh and a single retry.
//
// Auth enforcement happens before parameter validation so callers learn
// about missing authorization first, and a failed token lookup only blocks
// calls to capabilities whose auth level is "required".
package gateway
