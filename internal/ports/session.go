package ports

// Package ports defines interfaces (hexagonal ports) for session-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"
	"time"

	domainauth "github.com/target/estate-portal/internal/domain/auth"
	"github.com/target/estate-portal/internal/domain/dashboard"
)

// Credentials carries the login form.
type Credentials struct {
	Email    string
	Password string
}

// Registration carries the profile fields sent to the register endpoint.
// Extra holds tenant-specific fields (company, license number, ...) passed through as-is.
type Registration struct {
	Name     string
	Email    string
	Password string
	Phone    string
	Extra    map[string]any
}

// Grant is a successful login or registration. Category is the one the
// authority actually granted, which may differ from the one requested.
type Grant struct {
	Token    string
	Identity domainauth.Identity
	Category domainauth.Category
}

// CredentialService talks to the remote authentication authority.
// Every call is scoped to a principal category.
type CredentialService interface {
	Login(ctx context.Context, category domainauth.Category, in Credentials) (Grant, error)
	Register(ctx context.Context, category domainauth.Category, in Registration) (Grant, error)
	// Verify validates token and returns the fresh identity record.
	Verify(ctx context.Context, category domainauth.Category, token string) (domainauth.Identity, error)
}

// KeyStore is durable key/value storage for the persisted session record.
type KeyStore interface {
	// Get returns the requested entries that exist; missing keys are simply absent.
	Get(ctx context.Context, keys ...string) (map[string]string, error)
	// Set writes every entry or none of them.
	Set(ctx context.Context, entries map[string]string) error
	// Delete removes the keys; deleting a missing key is not an error.
	Delete(ctx context.Context, keys ...string) error
}

// NavigationReason explains why the shell is resetting.
type NavigationReason int

const (
	// ReasonLogout is an explicit sign-out.
	ReasonLogout NavigationReason = iota + 1
	// ReasonExpired is a forced sign-out after the authority rejected the credential.
	ReasonExpired
	// ReasonSwitched means a sign-in attempt replaced or dropped the previous
	// principal. The caller already navigates, so nothing is announced.
	ReasonSwitched
)

func (r NavigationReason) String() string {
	switch r {
	case ReasonLogout:
		return "logout"
	case ReasonExpired:
		return "expired"
	case ReasonSwitched:
		return "switched"
	default:
		return "unknown"
	}
}

// Navigation is a hard navigation request: discard in-memory state, then go to Target.
type Navigation struct {
	Target string
	Reason NavigationReason
}

// Shell owns application-wide in-memory state and resets it on sign-out.
type Shell interface {
	Reset(ctx context.Context, nav Navigation)
}

// TokenInspector reads local metadata from a bearer token without contacting the authority.
type TokenInspector interface {
	// Expired reports true only when the token carries an expiry that has passed.
	Expired(token string, now time.Time) bool
}

// DashboardSource fetches the statistics for a role's landing page.
type DashboardSource interface {
	FetchDashboard(ctx context.Context, role domainauth.Role) (dashboard.Stats, error)
}

// SessionEvent is one entry of the local session audit trail.
type SessionEvent struct {
	Kind     string
	Category string
	At       time.Time
}

// EventRecorder is implemented by stores that keep a session audit trail.
type EventRecorder interface {
	RecordEvent(ctx context.Context, ev SessionEvent) error
	RecentEvents(ctx context.Context, limit int) ([]SessionEvent, error)
}
