package httpx

import (
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	estateportal "github.com/target/estate-portal"
	domainauth "github.com/target/estate-portal/internal/domain/auth"
	"github.com/target/estate-portal/internal/guard"
	"github.com/target/estate-portal/internal/observability/statsd"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Session SessionAPI   // Required
	Ready   Readiness    // Optional: startup session check; nil means ready
	Notices NoticeSource // Optional: one-shot messages from shell resets
	Feed    DashboardFeed
	Routes  guard.Routes

	// Optional: Prometheus scrape handler mounted at /metrics.
	MetricsHandler http.Handler
	Metrics        statsd.Sink
	// LoadingRetryAfter is advertised while the startup check is running.
	LoadingRetryAfter time.Duration

	// Optional: overrides the embedded templates (tests).
	TemplateFS fs.FS
	IsDev      bool // Development mode flag for hot reloading, etc.
	// CookieDomain scopes the CSRF cookie (optional).
	CookieDomain string
	Logger       *slog.Logger // Logger for template and HTTP errors (optional)
}

// DefaultRoutes are the portal's navigation targets.
func DefaultRoutes() guard.Routes {
	return guard.Routes{
		SignIn:        "/login",
		Root:          "/",
		AdminLanding:  "/admin/dashboard",
		UserLanding:   "/user/dashboard",
		ClientLanding: "/client/dashboard",
	}
}

// NewRouter creates and configures a new HTTP router.
func NewRouter(services RouterServices) (http.Handler, error) {
	if services.Session == nil {
		panic("NewRouter: Session is required")
	}
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	routes := withDefaultRoutes(services.Routes)

	tr, err := NewTemplateRenderer(TemplateRendererConfig{
		TemplateFS: templateFS(services),
		DevMode:    services.IsDev,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	g := guard.New(routes)
	protect := func(rule guard.Rule, h http.HandlerFunc) http.Handler {
		return RequireRule(GuardDeps{
			Guard:      g,
			Session:    services.Session,
			Ready:      services.Ready,
			Renderer:   tr,
			Metrics:    services.Metrics,
			Logger:     logger,
			RetryAfter: services.LoadingRetryAfter,
		}, rule)(h)
	}

	auth := &AuthHandlers{
		Svc:      services.Session,
		Notices:  services.Notices,
		Ready:    services.Ready,
		Routes:   g.Routes(),
		Renderer: tr,
		Logger:   logger,
	}
	views := &ViewHandlers{
		Session:  services.Session,
		Notices:  services.Notices,
		Feed:     services.Feed,
		Routes:   g.Routes(),
		Renderer: tr,
		Logger:   logger,
	}

	mux := http.NewServeMux()
	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("GET /readyz", readyHandler(services.Ready))
	if services.MetricsHandler != nil {
		mux.Handle("GET /metrics", services.MetricsHandler)
	}

	registerAuthRoutes(mux, auth, routes)
	mux.Handle("GET /account", protect(guard.Authenticated(), auth.AccountPage))
	mux.Handle("POST /account", protect(guard.Authenticated(), auth.UpdateAccount))
	mux.Handle("POST /account/refresh", protect(guard.Authenticated(), auth.RefreshAccount))

	mux.Handle("GET "+routes.AdminLanding, protect(guard.Roles(domainauth.RoleAdmin), views.Dashboard))
	mux.Handle("GET "+routes.UserLanding, protect(guard.Roles(domainauth.RoleUser), views.Dashboard))
	mux.Handle("GET "+routes.ClientLanding, protect(guard.Roles(domainauth.RoleClient), views.Dashboard))
	mux.Handle("GET /user/leads/{id}", protect(guard.Roles(domainauth.RoleUser, domainauth.RoleAdmin), views.Lead))
	mux.HandleFunc("GET /{$}", views.Home)

	csrf := CSRFProtection(CSRFConfig{CookieDomain: services.CookieDomain})
	return Recover(logger)(Logging(logger)(csrf(mux))), nil
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers, routes guard.Routes) {
	mux.HandleFunc("GET "+routes.SignIn, h.LoginPage)
	mux.HandleFunc("POST "+routes.SignIn, h.Login)
	mux.HandleFunc("GET /register", h.RegisterPage)
	mux.HandleFunc("POST /register", h.Register)
	mux.HandleFunc("POST /logout", h.Logout)
	mux.HandleFunc("GET /auth/status", h.Status)
	mux.HandleFunc("GET /api/session", h.Status)
}

func withDefaultRoutes(r guard.Routes) guard.Routes {
	def := DefaultRoutes()
	if r.SignIn == "" {
		r.SignIn = def.SignIn
	}
	if r.Root == "" {
		r.Root = def.Root
	}
	if r.AdminLanding == "" {
		r.AdminLanding = def.AdminLanding
	}
	if r.UserLanding == "" {
		r.UserLanding = def.UserLanding
	}
	if r.ClientLanding == "" {
		r.ClientLanding = def.ClientLanding
	}
	return r
}

// templateFS picks the template source.
// Dev mode: read from disk for hot reloading.
// Prod mode: read from the embedded FS.
func templateFS(services RouterServices) fs.FS {
	if services.TemplateFS != nil {
		return services.TemplateFS
	}
	if services.IsDev {
		return os.DirFS(estateportal.TemplateRoot)
	}
	sub, err := fs.Sub(estateportal.TemplateFS, estateportal.TemplateRoot)
	if err != nil {
		return os.DirFS(estateportal.TemplateRoot)
	}
	return sub
}
