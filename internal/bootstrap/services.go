package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/target/estate-portal/config"
	"github.com/target/estate-portal/internal/adapters/credential"
	"github.com/target/estate-portal/internal/adapters/jwtclaims"
	"github.com/target/estate-portal/internal/adapters/portalapi"
	"github.com/target/estate-portal/internal/observability/prom"
	"github.com/target/estate-portal/internal/observability/statsd"
	"github.com/target/estate-portal/internal/ports"
	"github.com/target/estate-portal/internal/service"
	"github.com/target/estate-portal/internal/shell"
)

const (
	shutdownWaitTimeout = 10 * time.Second
	jwtLeeway           = 30 * time.Second
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Session     *service.SessionService
	Initializer *service.Initializer
	Shell       *shell.Shell
	Poller      *service.DashboardPoller
	Credentials *credential.Client
	Store       *SessionStore

	Observability ObservabilityContainer
}

// Close releases the store and the metrics connection.
func (c ServiceContainer) Close() error {
	var errs []error
	if c.Store != nil {
		errs = append(errs, c.Store.Close())
	}
	if c.Observability.Statsd != nil {
		errs = append(errs, c.Observability.Statsd.Close())
	}
	return errors.Join(errs...)
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	Statsd *statsd.Client
	Prom   *prom.Sink
	// Sink fans out to every enabled backend; nil when none is.
	Sink          statsd.Sink
	MetricsConfig config.ObservabilityMetricsConfig
}

// MetricsHandler returns the Prometheus scrape handler, or nil when disabled.
func (o ObservabilityContainer) MetricsHandler() http.Handler {
	if o.Prom == nil {
		return nil
	}
	return o.Prom.Handler()
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config *config.AppConfig
	Store  *SessionStore
	Logger *slog.Logger
	// Transport overrides the base transport of outbound clients (tests).
	Transport http.RoundTripper
}

// buildObservability configures metrics adapters.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	out := ObservabilityContainer{MetricsConfig: cfg.Metrics}
	var sinks statsd.Fanout

	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  cfg.Metrics.Prefix,
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			out.Statsd = client
			sinks = append(sinks, client)
		}
	}
	if cfg.Prometheus.Enabled {
		out.Prom = prom.NewSink(cfg.Prometheus.Namespace)
		sinks = append(sinks, out.Prom)
	}
	if len(sinks) > 0 {
		out.Sink = sinks
	}
	return out
}

// NewServices wires the session core and its collaborators.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil || deps.Store == nil {
		return ServiceContainer{}, errors.New("service deps require Config and Store")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	obs := buildObservability(logger, cfg.Observability)

	var credHTTP *http.Client
	if deps.Transport != nil {
		credHTTP = &http.Client{Timeout: cfg.API.Timeout, Transport: deps.Transport}
	}
	creds, err := credential.NewClient(credential.Config{
		BaseURL:    cfg.API.BaseURL,
		Timeout:    cfg.API.Timeout,
		UserAgent:  cfg.API.UserAgent,
		HTTPClient: credHTTP,
		Logger:     logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create credential client: %w", err)
	}

	roles, err := service.NewRoleResolver(cfg.Session.RolePath)
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("session role path: %w", err)
	}

	var tokens ports.TokenInspector
	if cfg.Session.LocalExpiryCheck {
		tokens = jwtclaims.Inspector{Leeway: jwtLeeway}
	}

	sh := shell.New(logger)
	sess := service.NewSessionService(service.SessionServiceOptions{
		Backends: service.SessionBackends{
			Credentials: creds,
			Store:       deps.Store.Store,
		},
		Collaborators: service.SessionCollaborators{
			Shell:  sh,
			Roles:  roles,
			Tokens: tokens,
			Events: deps.Store.Events,
		},
		Runtime: service.SessionRuntime{
			Routes:    service.SessionRoutes{SignIn: cfg.Routes.SignIn, Root: cfg.Routes.Root},
			Transport: deps.Transport,
			Logger:    logger,
			Metrics:   obs.Sink,
		},
	})

	authorized := sess.AuthorizedClient()
	authorized.Timeout = cfg.API.Timeout
	api, err := portalapi.NewClient(portalapi.Config{
		BaseURL:    creds.BaseURL(),
		HTTPClient: authorized,
		Logger:     logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create portal api client: %w", err)
	}

	poller := service.NewDashboardPoller(service.DashboardPollerOptions{
		Source:  api,
		Session: sess,
		Config: service.DashboardPollerConfig{
			Interval:    cfg.Poller.Interval,
			IdleTimeout: cfg.Poller.IdleTimeout,
			Logger:      logger,
			Metrics:     obs.Sink,
		},
	})
	sh.Register("dashboard_poller", poller)

	return ServiceContainer{
		Session:       sess,
		Initializer:   service.NewInitializer(service.InitializerOptions{Session: sess, Logger: logger}),
		Shell:         sh,
		Poller:        poller,
		Credentials:   creds,
		Store:         deps.Store,
		Observability: obs,
	}, nil
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// RunServicesWithShutdown starts the enabled services and blocks until a
// shutdown signal is received or a service fails.
func RunServicesWithShutdown(ctx context.Context, cfg *ServiceOrchestrationConfig) error {
	if cfg == nil || cfg.Config == nil {
		return errors.New("service orchestration config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enabled, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(sigCtx)

	svc := cfg.Services
	// The startup session check runs once per process, before anything is admitted.
	g.Go(func() error {
		svc.Initializer.Run(gctx)
		return nil
	})

	if enabled[config.ServiceModePoller] {
		g.Go(func() error { return svc.Poller.Run(gctx) })
	}

	if enabled[config.ServiceModeHTTP] {
		server, err := NewHTTPServer(&HTTPServerConfig{Config: cfg.Config, Services: svc, Logger: logger})
		if err != nil {
			return err
		}
		g.Go(func() error {
			logger.InfoContext(gctx, "starting HTTP server", "addr", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			logger.Info("shutting down services...")
			return ShutdownHTTPServer(ShutdownConfig{Context: context.WithoutCancel(gctx), Server: server, Logger: logger})
		})
	}

	return g.Wait()
}
