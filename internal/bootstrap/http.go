package bootstrap

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/target/estate-portal/config"
	"github.com/target/estate-portal/internal/guard"
	httpx "github.com/target/estate-portal/internal/http"
)

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// NewHTTPServer builds the portal HTTP server without starting it.
func NewHTTPServer(cfg *HTTPServerConfig) (*http.Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	handler, err := httpx.NewRouter(RouterServices(appCfg, cfg.Services, logger))
	if err != nil {
		return nil, err
	}

	addr := appCfg.HTTP.Addr
	// Guard against empty addr to avoid listening on Go default
	if addr == "" {
		addr = "127.0.0.1:8080"
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}, nil
}

// RouterServices maps the service container onto the router's dependencies.
func RouterServices(appCfg *config.AppConfig, svc ServiceContainer, logger *slog.Logger) httpx.RouterServices {
	rs := httpx.RouterServices{
		Routes: guard.Routes{
			SignIn:        appCfg.Routes.SignIn,
			Root:          appCfg.Routes.Root,
			AdminLanding:  appCfg.Routes.AdminLanding,
			UserLanding:   appCfg.Routes.UserLanding,
			ClientLanding: appCfg.Routes.ClientLanding,
		},
		MetricsHandler:    svc.Observability.MetricsHandler(),
		Metrics:           svc.Observability.Sink,
		LoadingRetryAfter: time.Duration(appCfg.HTTP.LoadingRetryAfter) * time.Second,
		IsDev:             appCfg.IsDev,
		CookieDomain:      appCfg.HTTP.CookieDomain,
		Logger:            logger,
	}
	// Typed nils must not reach the router's interfaces.
	if svc.Session != nil {
		rs.Session = svc.Session
	}
	if svc.Initializer != nil {
		rs.Ready = svc.Initializer
	}
	if svc.Shell != nil {
		rs.Notices = svc.Shell
	}
	if svc.Poller != nil {
		rs.Feed = svc.Poller
	}
	return rs
}

// ShutdownConfig contains dependencies for HTTP server shutdown.
type ShutdownConfig struct {
	Context context.Context
	Server  *http.Server
	Logger  *slog.Logger
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(cfg ShutdownConfig) error {
	if cfg.Server == nil {
		return nil
	}
	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("shutting down HTTP server")
	}

	// Shutdown HTTP server with timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownWaitTimeout)
	defer cancel()

	if err := cfg.Server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("HTTP server stopped")
	}

	return nil
}
