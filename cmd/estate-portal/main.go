package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/target/estate-portal/config"
	"github.com/target/estate-portal/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	cfg, err := bootstrap.LoadConfig()
	logger := bootstrap.InitLogger(&cfg)
	if err != nil {
		logger.ErrorContext(ctx, "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
	if err := run(ctx, logger, &cfg); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) error {
	logStartupInfo(ctx, logger, cfg)

	if err := bootstrap.ValidateServiceConfig(cfg); err != nil {
		return err
	}

	store, err := bootstrap.OpenSessionStore(ctx, bootstrap.StorageConfig{
		Session: cfg.Session,
		Redis:   cfg.Redis,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	services, err := bootstrap.NewServices(&bootstrap.ServiceDeps{
		Config: cfg,
		Store:  store,
		Logger: logger,
	})
	if err != nil {
		if cerr := store.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close session store", "error", cerr)
		}
		return fmt.Errorf("wire services: %w", err)
	}
	defer func() {
		if cerr := services.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close services failed", "error", cerr)
		}
	}()

	return bootstrap.RunServicesWithShutdown(ctx, &bootstrap.ServiceOrchestrationConfig{
		Config:   cfg,
		Services: services,
		Logger:   logger,
	})
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	logger.InfoContext(ctx, "starting estate portal",
		"api_base_url", cfg.API.BaseURL,
		"session_storage", string(cfg.Session.Storage),
		"http_addr", cfg.HTTP.Addr,
		"enabled_services", bootstrap.GetEnabledServices(cfg))
}
