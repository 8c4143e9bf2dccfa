// Package oauth implements the token lifecycle for postern sessions: fetching
// and caching authorization server metadata, verifying inbound bearer JWTs
// against the server's JWKS, and obtaining, storing, and refreshing OAuth
// tokens on behalf of long-lived client sessions.
//
// Token state is keyed by user, not by session. Every session belonging to
// the same user shares one UserTokenRecord, so a refresh performed through
// any session is visible to its siblings on their next token lookup.
//
// Refresh failures are classified into two outcomes. Temporary failures
// (network errors, 5xx responses from the token endpoint) soft-fail: the
// existing token is kept so a transient authorization server outage never
// forces users to re-authenticate. Terminal failures (invalid_grant) clear
// the user's record.
package oauth
