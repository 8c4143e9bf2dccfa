// Package server is the HTTP front of the gateway for the streamable-http
// transport. It mounts the MCP handler behind a bearer-token middleware,
// serves the RFC 9728 protected-resource metadata document that points
// clients at the authorization server, and exposes a health endpoint.
//
// The middleware verifies inbound JWTs against the authorization server's
// JWKS and attaches the verified claims to the request context, where the
// session registration hook picks them up. Verification failures answer
// 401 with a WWW-Authenticate challenge carrying the resource metadata URL
// so MCP clients can bootstrap their own authorization flow.
package server
