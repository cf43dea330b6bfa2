// Package dashboard holds the statistics snapshot rendered on role landing pages.
package dashboard

import (
	"time"

	"github.com/target/estate-portal/internal/domain/auth"
)

// Stats is one refresh of a role's dashboard counters. Values are passed
// through from the portal API untouched.
type Stats struct {
	Role      auth.Role
	Values    map[string]any
	FetchedAt time.Time
}

// Number returns a numeric counter, or 0 when absent or not numeric.
func (s Stats) Number(key string) float64 {
	switch v := s.Values[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}

// IsZero reports whether no refresh has completed yet.
func (s Stats) IsZero() bool { return s.FetchedAt.IsZero() }
