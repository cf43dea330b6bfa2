// Package jwtclaims reads expiry metadata from JWT bearer tokens without
// verifying their signature. The authority remains the only judge of validity;
// this only avoids a round trip for tokens that are already known to be dead.
package jwtclaims

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/target/estate-portal/internal/ports"
)

// Inspector implements ports.TokenInspector for JWTs.
type Inspector struct {
	// Leeway tolerates clock skew between this process and the authority.
	Leeway time.Duration
}

var _ ports.TokenInspector = Inspector{}

// Expired reports true only for a well-formed JWT whose exp claim is in the past.
// Opaque tokens and JWTs without exp are never considered expired.
func (i Inspector) Expired(token string, now time.Time) bool {
	exp, ok := ExpiresAt(token)
	if !ok {
		return false
	}
	return now.After(exp.Add(i.Leeway))
}

// ExpiresAt extracts the exp claim when token parses as a JWT.
func ExpiresAt(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
