package config

import (
	"strings"
	"time"
)

const (
	defaultAPIBaseURL = "http://localhost:5000/api"
	defaultAPITimeout = 15 * time.Second
)

// APIConfig describes how to reach the remote authority and the portal REST API.
type APIConfig struct {
	// BaseURL is the API root; /auth/* and /client-auth/* are resolved against it.
	BaseURL string `env:"API_BASE_URL" envDefault:"http://localhost:5000/api"`

	// Timeout bounds every outbound request.
	Timeout time.Duration `env:"API_TIMEOUT" envDefault:"15s"`

	// UserAgent is sent on every outbound request.
	UserAgent string `env:"API_USER_AGENT" envDefault:"estate-portal"`
}

// Sanitize applies guardrails to API configuration values.
func (c *APIConfig) Sanitize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		c.BaseURL = defaultAPIBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultAPITimeout
	}
	if strings.TrimSpace(c.UserAgent) == "" {
		c.UserAgent = "estate-portal"
	}
}
