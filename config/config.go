package config

import (
	"log/slog"
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - api.go: Credential service and portal API configuration
//   - storage.go: Session storage and redis configuration
//   - http.go: Portal HTTP server and route configuration
//   - services.go: Service mode and dashboard poller configuration
type AppConfig struct {
	// IsDev controls development mode behavior (debug logging, template reloads).
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// LogLevel is the minimum slog level (debug, info, warn, error).
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Remote authority configuration
	API APIConfig

	// Session configuration
	Session SessionConfig
	Redis   RedisConfig `envPrefix:"REDIS_"`

	// HTTP server configuration
	HTTP   HTTPConfig
	Routes RoutesConfig `envPrefix:"ROUTES_"`

	// Service mode configuration
	Services string `env:"SERVICES" envDefault:"http,poller"`

	// Dashboard poller configuration
	Poller PollerConfig `envPrefix:"DASHBOARD_POLL_"`

	// Observability configuration
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.API.Sanitize()
	c.Session.Sanitize()
	c.HTTP.Sanitize()
	c.Routes.Sanitize()
	c.Poller.Sanitize()
	c.Observability.Sanitize()

	// Check NODE_ENV for dev mode
	c.detectDevMode()
}

// detectDevMode checks both DEV and NODE_ENV environment variables.
// NODE_ENV is checked as a fallback (common in frontend tooling).
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}

// SlogLevel maps LogLevel onto a slog.Level, forcing debug in dev mode.
func (c *AppConfig) SlogLevel() slog.Level {
	if c.IsDev {
		return slog.LevelDebug
	}
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// IsHTTPServerEnabled returns true if the portal HTTP server is enabled.
func (c *AppConfig) IsHTTPServerEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeHTTP]
}

// IsPollerEnabled returns true if the dashboard poller is enabled.
func (c *AppConfig) IsPollerEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModePoller]
}
