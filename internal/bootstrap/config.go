package bootstrap

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"sort"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/target/estate-portal/config"
)

// InitLogger installs the process logger. Dev mode logs text for humans;
// everything else logs JSON.
func InitLogger(cfg *config.AppConfig) *slog.Logger {
	return initLogger(os.Stdout, cfg)
}

func initLogger(w io.Writer, cfg *config.AppConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	var handler slog.Handler
	if cfg != nil {
		opts.Level = cfg.SlogLevel()
	}
	if cfg != nil && cfg.IsDev {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	logger := slog.New(handler).With("app", "estate-portal")
	slog.SetDefault(logger)
	return logger
}

// LoadConfig reads an optional .env file, then the environment.
func LoadConfig() (config.AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return config.AppConfig{}, fmt.Errorf("load .env file: %w", err)
	}

	var cfg config.AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	cfg.Sanitize()
	return cfg, nil
}

// ValidateServiceConfig rejects configurations the portal cannot start with.
func ValidateServiceConfig(cfg *config.AppConfig) error {
	if cfg == nil {
		return errors.New("service config is required")
	}
	services, err := cfg.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("invalid service configuration: %w", err)
	}
	if len(services) == 0 {
		return errors.New("no services enabled")
	}

	u, err := url.Parse(cfg.API.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("API_BASE_URL must be an absolute http(s) URL, got %q", cfg.API.BaseURL)
	}
	if cfg.Session.Storage == config.StorageRedis && cfg.Redis.URI == "" &&
		len(cfg.Redis.ClusterNodes) == 0 && len(cfg.Redis.SentinelNodes) == 0 {
		return errors.New("SESSION_STORAGE=redis needs REDIS_URI or a node list")
	}
	return nil
}

// GetEnabledServices returns the enabled service names, sorted. An invalid
// SERVICES value yields an empty list; ValidateServiceConfig reports it.
func GetEnabledServices(cfg *config.AppConfig) []string {
	if cfg == nil {
		return nil
	}
	services, err := cfg.GetEnabledServices()
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(services))
	for svc, on := range services {
		if on {
			names = append(names, string(svc))
		}
	}
	sort.Strings(names)
	return names
}
