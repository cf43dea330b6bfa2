package config

import "strings"

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:"127.0.0.1:8080"`

	// BaseURL is the base URL of the portal (e.g., "https://portal.example.com").
	BaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`

	// CookieDomain scopes the CSRF cookie; empty means host-only.
	CookieDomain string `env:"HTTP_COOKIE_DOMAIN"`

	// LoadingRetryAfter is the Retry-After value (seconds) sent while bootstrap is pending.
	LoadingRetryAfter int `env:"HTTP_LOADING_RETRY_AFTER" envDefault:"1"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	if strings.TrimSpace(h.Addr) == "" {
		h.Addr = "127.0.0.1:8080"
	}
	if h.LoadingRetryAfter < 1 {
		h.LoadingRetryAfter = 1
	}
}

// RoutesConfig names the navigation targets used by the route guard and the shell.
type RoutesConfig struct {
	SignIn        string `env:"SIGN_IN"        envDefault:"/login"`
	Root          string `env:"ROOT"           envDefault:"/"`
	AdminLanding  string `env:"ADMIN_LANDING"  envDefault:"/admin/dashboard"`
	UserLanding   string `env:"USER_LANDING"   envDefault:"/user/dashboard"`
	ClientLanding string `env:"CLIENT_LANDING" envDefault:"/client/dashboard"`
}

// DefaultRoutes returns the route table used when no environment overrides exist.
func DefaultRoutes() RoutesConfig {
	return RoutesConfig{
		SignIn:        "/login",
		Root:          "/",
		AdminLanding:  "/admin/dashboard",
		UserLanding:   "/user/dashboard",
		ClientLanding: "/client/dashboard",
	}
}

// Sanitize forces every route to an absolute path, restoring defaults for empty values.
func (r *RoutesConfig) Sanitize() {
	def := DefaultRoutes()
	r.SignIn = absPath(r.SignIn, def.SignIn)
	r.Root = absPath(r.Root, def.Root)
	r.AdminLanding = absPath(r.AdminLanding, def.AdminLanding)
	r.UserLanding = absPath(r.UserLanding, def.UserLanding)
	r.ClientLanding = absPath(r.ClientLanding, def.ClientLanding)
}

func absPath(v, fallback string) string {
	v = strings.TrimSpace(v)
	if v == "" || !strings.HasPrefix(v, "/") || strings.HasPrefix(v, "//") {
		return fallback
	}
	return v
}
