package http

import (
	"context"

	"netra-apex/backend/internal/security"
)

type contextKey struct{ name string }

var (
	identityKey = contextKey{"identity"}
	clientIPKey = contextKey{"client_ip"}
)

// WithIdentity returns a context carrying the authenticated identity.
// Handlers read it via GetIdentity.
func WithIdentity(ctx context.Context, id security.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// GetIdentity returns the authenticated identity and true if set; otherwise
// a zero Identity and false.
func GetIdentity(ctx context.Context) (security.Identity, bool) {
	v, ok := ctx.Value(identityKey).(security.Identity)
	return v, ok
}

// WithClientIP returns a context carrying the request's client IP.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// GetClientIP returns the client IP from context, or "unknown" if unset.
// The audit logger uses it to stamp entries.
func GetClientIP(ctx context.Context) string {
	if v, ok := ctx.Value(clientIPKey).(string); ok && v != "" {
		return v
	}
	return "unknown"
}
