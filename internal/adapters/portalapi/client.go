// Package portalapi reads the portal REST API on behalf of the signed-in principal.
package portalapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	domainauth "github.com/target/estate-portal/internal/domain/auth"
	"github.com/target/estate-portal/internal/domain/dashboard"
	apperrors "github.com/target/estate-portal/internal/errors"
	"github.com/target/estate-portal/internal/ports"
)

const maxBodyBytes = 1 << 20

// Config configures a Client. HTTPClient must attach the session credential;
// pass the session service's authorized client.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client implements ports.DashboardSource.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

var _ ports.DashboardSource = (*Client)(nil)

// NewClient constructs a Client.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("portal api: base url is required")
	}
	if cfg.HTTPClient == nil {
		return nil, errors.New("portal api: http client is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    base,
		httpClient: cfg.HTTPClient,
		logger:     logger.With("component", "portal_api"),
		now:        time.Now,
	}, nil
}

// DashboardPath returns the statistics endpoint for role.
func DashboardPath(role domainauth.Role) (string, error) {
	switch role {
	case domainauth.RoleAdmin:
		return "/admin/stats", nil
	case domainauth.RoleUser:
		return "/dashboard/stats", nil
	case domainauth.RoleClient:
		return "/client/dashboard", nil
	default:
		return "", fmt.Errorf("no dashboard for role %q", role)
	}
}

// FetchDashboard loads the landing statistics for role. A 401 here ends the
// session through the authorized client before the error is returned.
func (c *Client) FetchDashboard(ctx context.Context, role domainauth.Role) (dashboard.Stats, error) {
	path, err := DashboardPath(role)
	if err != nil {
		return dashboard.Stats{}, apperrors.Wrap(err, apperrors.ErrCodeValidation, "Unsupported role")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return dashboard.Stats{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return dashboard.Stats{}, apperrors.Wrap(err, apperrors.ErrCodeTransport, "Could not reach the server")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return dashboard.Stats{}, apperrors.Wrap(err, apperrors.ErrCodeTransport, "Could not read the server response")
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return dashboard.Stats{}, apperrors.New(apperrors.ErrCodeUnauthorized, "Your session has expired")
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return dashboard.Stats{}, apperrors.Internalf("dashboard %s returned status %d", path, resp.StatusCode)
	}

	values, err := decodeStats(data)
	if err != nil {
		return dashboard.Stats{}, apperrors.Wrap(err, apperrors.ErrCodeMalformed, "Unexpected response from the server")
	}

	c.logger.DebugContext(ctx, "dashboard fetched", "role", string(role), "keys", len(values))
	return dashboard.Stats{Role: role, Values: values, FetchedAt: c.now().UTC()}, nil
}

// decodeStats accepts either a bare object or one wrapped in data/stats.
func decodeStats(data []byte) (map[string]any, error) {
	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, err
	}
	if body == nil {
		return nil, errors.New("empty body")
	}
	for _, key := range []string{"data", "stats"} {
		if inner, ok := body[key].(map[string]any); ok {
			return inner, nil
		}
	}
	delete(body, "success")
	return body, nil
}
