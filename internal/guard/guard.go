// Package guard decides what a protected route shows for the current session.
//
// Decide is pure: it holds no state and recomputes from the session snapshot on
// every request, so the same snapshot always yields the same decision.
package guard

import (
	"net/url"
	"slices"

	domainauth "github.com/target/estate-portal/internal/domain/auth"
)

// ReturnParam is the query parameter carrying the originally requested path.
const ReturnParam = "redirect_uri"

// Requirement is what a route demands of the session.
type Requirement interface {
	requirement()
}

// AnyAuthenticated admits every signed-in principal.
type AnyAuthenticated struct{}

// RoleRestricted admits signed-in principals whose role is in Allowed.
type RoleRestricted struct {
	Allowed []domainauth.Role
}

func (AnyAuthenticated) requirement() {}
func (RoleRestricted) requirement()   {}

// Rule attaches a requirement to a route. RedirectTo, when set, replaces the
// sign-in entry point for unauthenticated visitors.
type Rule struct {
	Requirement Requirement
	RedirectTo  string
}

// Authenticated is the rule for routes open to any signed-in principal.
func Authenticated() Rule { return Rule{Requirement: AnyAuthenticated{}} }

// Roles is the rule for routes restricted to the given roles.
func Roles(allowed ...domainauth.Role) Rule {
	return Rule{Requirement: RoleRestricted{Allowed: allowed}}
}

// Decision is the outcome for one request.
type Decision interface {
	// Name is a stable label for logs and metrics.
	Name() string
	decision()
}

// Loading means the session is not settled yet; render a placeholder.
type Loading struct{}

// Authorized means the protected content may render.
type Authorized struct{}

// UnauthenticatedRedirect sends the visitor to sign-in, remembering ReturnTo.
type UnauthenticatedRedirect struct {
	Target   string
	ReturnTo string
}

// ForbiddenRedirect sends a signed-in principal to the landing page of its role.
type ForbiddenRedirect struct {
	Target string
	Role   domainauth.Role
}

func (Loading) Name() string                 { return "loading" }
func (Authorized) Name() string              { return "authorized" }
func (UnauthenticatedRedirect) Name() string { return "unauthenticated" }
func (ForbiddenRedirect) Name() string       { return "forbidden" }

func (Loading) decision()                 {}
func (Authorized) decision()              {}
func (UnauthenticatedRedirect) decision() {}
func (ForbiddenRedirect) decision()       {}

// Location returns the sign-in URL with the return path attached.
func (d UnauthenticatedRedirect) Location() string {
	if d.ReturnTo == "" {
		return d.Target
	}
	u, err := url.Parse(d.Target)
	if err != nil {
		return d.Target
	}
	q := u.Query()
	q.Set(ReturnParam, d.ReturnTo)
	u.RawQuery = q.Encode()
	return u.String()
}

// Routes are the navigation targets the guard redirects to.
type Routes struct {
	SignIn        string
	Root          string
	AdminLanding  string
	UserLanding   string
	ClientLanding string
}

// LandingFor returns the default landing page of role.
func (r Routes) LandingFor(role domainauth.Role) string {
	switch role {
	case domainauth.RoleAdmin:
		return r.AdminLanding
	case domainauth.RoleUser:
		return r.UserLanding
	case domainauth.RoleClient:
		return r.ClientLanding
	default:
		return r.Root
	}
}

// Input is everything the guard looks at.
type Input struct {
	Session domainauth.Session
	// Ready is false until the startup session check has finished.
	Ready bool
}

// Guard evaluates rules against session snapshots.
type Guard struct {
	routes Routes
}

// New constructs a Guard.
func New(routes Routes) *Guard {
	if routes.SignIn == "" {
		routes.SignIn = "/login"
	}
	if routes.Root == "" {
		routes.Root = "/"
	}
	return &Guard{routes: routes}
}

// Routes returns the configured navigation targets.
func (g *Guard) Routes() Routes { return g.routes }

// Decide returns the decision for a request to path under rule.
func (g *Guard) Decide(in Input, rule Rule, path string) Decision {
	if !in.Ready || in.Session.IsLoading {
		return Loading{}
	}

	if !in.Session.IsAuthenticated() {
		target := rule.RedirectTo
		if target == "" {
			target = g.routes.SignIn
		}
		return UnauthenticatedRedirect{Target: target, ReturnTo: path}
	}

	switch req := rule.Requirement.(type) {
	case nil, AnyAuthenticated:
		return Authorized{}
	case RoleRestricted:
		if slices.Contains(req.Allowed, in.Session.Role) {
			return Authorized{}
		}
		target := g.routes.LandingFor(in.Session.Role)
		if target == "" || target == path {
			target = g.routes.Root
		}
		return ForbiddenRedirect{Target: target, Role: in.Session.Role}
	default:
		// Unknown requirements deny rather than admit.
		return ForbiddenRedirect{Target: g.routes.Root, Role: in.Session.Role}
	}
}
