package portalapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/target/estate-portal/internal/domain/auth"
	apperrors "github.com/target/estate-portal/internal/errors"
)

func TestDashboardPath(t *testing.T) {
	tests := []struct {
		role domainauth.Role
		want string
	}{
		{domainauth.RoleAdmin, "/admin/stats"},
		{domainauth.RoleUser, "/dashboard/stats"},
		{domainauth.RoleClient, "/client/dashboard"},
	}
	for _, tt := range tests {
		got, err := DashboardPath(tt.role)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := DashboardPath("owner")
	assert.Error(t, err)
}

func TestClient_FetchDashboard(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/admin/stats":
			_, _ = w.Write([]byte(`{"success":true,"data":{"users":10,"properties":42}}`))
		case "/dashboard/stats":
			_, _ = w.Write([]byte(`{"success":true,"leads":3}`))
		case "/client/dashboard":
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL + "/", HTTPClient: srv.Client()})
	require.NoError(t, err)

	stats, err := c.FetchDashboard(context.Background(), domainauth.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleAdmin, stats.Role)
	assert.Equal(t, float64(42), stats.Number("properties"))
	assert.False(t, stats.IsZero())

	stats, err = c.FetchDashboard(context.Background(), domainauth.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, float64(3), stats.Number("leads"))
	_, hasSuccess := stats.Values["success"]
	assert.False(t, hasSuccess)

	_, err = c.FetchDashboard(context.Background(), domainauth.RoleClient)
	require.Error(t, err)
	assert.True(t, apperrors.IsUnauthorized(err))
}

func TestClient_FetchDashboardMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL, HTTPClient: srv.Client()})
	require.NoError(t, err)

	_, err = c.FetchDashboard(context.Background(), domainauth.RoleUser)
	require.Error(t, err)
	assert.True(t, apperrors.IsMalformed(err))
}

func TestNewClient_RequiresHTTPClient(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "http://api"})
	assert.Error(t, err)
	_, err = NewClient(Config{HTTPClient: http.DefaultClient})
	assert.Error(t, err)
}
