package guard

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/target/estate-portal/internal/domain/auth"
)

func testRoutes() Routes {
	return Routes{
		SignIn:        "/login",
		Root:          "/",
		AdminLanding:  "/admin/dashboard",
		UserLanding:   "/user/dashboard",
		ClientLanding: "/client/dashboard",
	}
}

func session(role domainauth.Role, category domainauth.Category) domainauth.Session {
	return domainauth.Session{
		Token:    "T1",
		Identity: domainauth.Identity{"name": "Alice", "role": string(role)},
		Category: category,
		Role:     role,
	}
}

func TestDecide(t *testing.T) {
	g := New(testRoutes())
	user := session(domainauth.RoleUser, domainauth.CategoryPlatformUser)
	admin := session(domainauth.RoleAdmin, domainauth.CategoryPlatformUser)
	client := session(domainauth.RoleClient, domainauth.CategoryClient)
	adminOnly := Roles(domainauth.RoleAdmin)

	tests := []struct {
		name string
		in   Input
		rule Rule
		path string
		want Decision
	}{
		{"not ready", Input{Session: user}, Authenticated(), "/account", Loading{}},
		{"loading", Input{Session: domainauth.Session{IsLoading: true}, Ready: true}, Authenticated(), "/account", Loading{}},
		{"loading while signed in", Input{Session: func() domainauth.Session { s := user; s.IsLoading = true; return s }(), Ready: true}, adminOnly, "/admin/users", Loading{}},
		{"signed out", Input{Ready: true}, Authenticated(), "/user/leads/42", UnauthenticatedRedirect{Target: "/login", ReturnTo: "/user/leads/42"}},
		{"signed out custom target", Input{Ready: true}, Rule{Requirement: AnyAuthenticated{}, RedirectTo: "/client/login"}, "/client/dashboard", UnauthenticatedRedirect{Target: "/client/login", ReturnTo: "/client/dashboard"}},
		{"signed out role route", Input{Ready: true}, adminOnly, "/admin/dashboard", UnauthenticatedRedirect{Target: "/login", ReturnTo: "/admin/dashboard"}},
		{"any authenticated", Input{Session: client, Ready: true}, Authenticated(), "/account", Authorized{}},
		{"nil requirement", Input{Session: user, Ready: true}, Rule{}, "/account", Authorized{}},
		{"admin allowed", Input{Session: admin, Ready: true}, adminOnly, "/admin/dashboard", Authorized{}},
		{"user on admin route", Input{Session: user, Ready: true}, adminOnly, "/admin/dashboard", ForbiddenRedirect{Target: "/user/dashboard", Role: domainauth.RoleUser}},
		{"client on admin route", Input{Session: client, Ready: true}, adminOnly, "/admin/users", ForbiddenRedirect{Target: "/client/dashboard", Role: domainauth.RoleClient}},
		{"admin on client route", Input{Session: admin, Ready: true}, Roles(domainauth.RoleClient), "/client/dashboard", ForbiddenRedirect{Target: "/admin/dashboard", Role: domainauth.RoleAdmin}},
		{"multiple roles", Input{Session: user, Ready: true}, Roles(domainauth.RoleAdmin, domainauth.RoleUser), "/user/leads", Authorized{}},
		{"landing loop falls back to root", Input{Session: user, Ready: true}, adminOnly, "/user/dashboard", ForbiddenRedirect{Target: "/", Role: domainauth.RoleUser}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.Decide(tt.in, tt.rule, tt.path))
		})
	}
}

func TestDecide_IsPure(t *testing.T) {
	g := New(testRoutes())
	in := Input{Session: session(domainauth.RoleUser, domainauth.CategoryPlatformUser), Ready: true}

	first := g.Decide(in, Roles(domainauth.RoleAdmin), "/admin/dashboard")
	second := g.Decide(in, Roles(domainauth.RoleAdmin), "/admin/dashboard")
	assert.Equal(t, first, second)
}

func TestUnauthenticatedRedirect_Location(t *testing.T) {
	d := UnauthenticatedRedirect{Target: "/login", ReturnTo: "/user/leads/42?tab=notes"}

	u, err := url.Parse(d.Location())
	require.NoError(t, err)
	assert.Equal(t, "/login", u.Path)
	assert.Equal(t, "/user/leads/42?tab=notes", u.Query().Get(ReturnParam))

	assert.Equal(t, "/login", UnauthenticatedRedirect{Target: "/login"}.Location())
}

func TestRoutes_LandingFor(t *testing.T) {
	r := testRoutes()
	assert.Equal(t, "/admin/dashboard", r.LandingFor(domainauth.RoleAdmin))
	assert.Equal(t, "/user/dashboard", r.LandingFor(domainauth.RoleUser))
	assert.Equal(t, "/client/dashboard", r.LandingFor(domainauth.RoleClient))
	assert.Equal(t, "/", r.LandingFor(""))
}

func TestDecisionNames(t *testing.T) {
	assert.Equal(t, "loading", Loading{}.Name())
	assert.Equal(t, "authorized", Authorized{}.Name())
	assert.Equal(t, "unauthenticated", UnauthenticatedRedirect{}.Name())
	assert.Equal(t, "forbidden", ForbiddenRedirect{}.Name())
}
