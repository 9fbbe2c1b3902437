package session

import "context"

type authTokenKey struct{}

// WithAuthToken binds a per-chat bearer token to the context so work done on
// behalf of the session, such as a remote tool call, authenticates as that
// session's user. Sessions carry the token opaquely in their metadata.
func WithAuthToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, authTokenKey{}, token)
}

// AuthTokenFromContext returns the bound token, or empty.
func AuthTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(authTokenKey{}).(string)
	return token
}
