package httpx

import (
	"context"

	domainauth "github.com/target/estate-portal/internal/domain/auth"
)

// sessionKey is an unexported context key type to avoid collisions across packages.
type sessionKey struct{}

// SetSessionInContext returns a child context carrying the snapshot the guard admitted.
func SetSessionInContext(ctx context.Context, session domainauth.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, session)
}

// SessionFromContext returns the admitted snapshot and whether one is present.
func SessionFromContext(ctx context.Context) (domainauth.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(domainauth.Session)
	return s, ok
}
