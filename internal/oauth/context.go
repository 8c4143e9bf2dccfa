package oauth

import "context"

type authInfoKey struct{}

// WithAuthInfo returns a context carrying the verified bearer token info for
// the current request. Set by the HTTP middleware, read by the session
// registration hook.
func WithAuthInfo(ctx context.Context, info *AuthInfo) context.Context {
	return context.WithValue(ctx, authInfoKey{}, info)
}

// AuthInfoFromContext returns the verified bearer token info attached to
// ctx, or nil when the request was not authenticated.
func AuthInfoFromContext(ctx context.Context) *AuthInfo {
	info, _ := ctx.Value(authInfoKey{}).(*AuthInfo)
	return info
}
