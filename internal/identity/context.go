package identity

import "context"

type contextKey struct{}

// WithContext returns a context carrying the caller's identity.
func WithContext(ctx context.Context, ident Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, ident)
}

// FromContext extracts the caller's identity. Requests that passed no
// authentication are treated as anonymous patients; the middleware layer
// decides which routes require more.
func FromContext(ctx context.Context) Identity {
	if ident, ok := ctx.Value(contextKey{}).(Identity); ok {
		return ident
	}
	return Identity{SubjectID: "anonymous", Role: RolePatient}
}
