package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the portal HTTP server.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModePoller runs the dashboard poller for the signed-in principal.
	ServiceModePoller ServiceMode = "poller"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeHTTP,
		ServiceModePoller,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	for _, part := range strings.Split(servicesStr, ",") {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP, ServiceModePoller:
			services[mode] = true
		default:
			return nil, fmt.Errorf("invalid service name: %q (valid options: http, poller)", serviceName)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// PollerConfig contains dashboard poller configuration.
type PollerConfig struct {
	// Interval is the refresh period for dashboard statistics.
	Interval time.Duration `env:"INTERVAL" envDefault:"30s"`

	// IdleTimeout stops the poller when no dashboard view has been mounted for this long.
	IdleTimeout time.Duration `env:"IDLE_TIMEOUT" envDefault:"2m"`
}

// Sanitize applies guardrails to poller configuration values.
func (p *PollerConfig) Sanitize() {
	if p.Interval < time.Second {
		p.Interval = time.Second
	}
	if p.IdleTimeout < p.Interval {
		p.IdleTimeout = p.Interval
	}
}
