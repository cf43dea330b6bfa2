package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/estate-portal/config"
	domainauth "github.com/target/estate-portal/internal/domain/auth"
	"github.com/target/estate-portal/internal/service"
	"github.com/target/estate-portal/internal/testutil"
)

// fakeAuthority serves the credential and portal endpoints for one admin.
type fakeAuthority struct {
	verifies atomic.Int32
	expired  atomic.Bool
}

func (f *fakeAuthority) handler() http.Handler {
	mux := http.NewServeMux()
	user := map[string]any{"_id": "a1", "name": "Ada", "email": "ada@example.com", "role": "admin"}
	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	authorized := func(r *http.Request) bool {
		return r.Header.Get("Authorization") == "Bearer tok-1" && !f.expired.Load()
	}

	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "token": "tok-1", "user": user, "userType": "user"})
	})
	mux.HandleFunc("GET /api/auth/verify", func(w http.ResponseWriter, r *http.Request) {
		f.verifies.Add(1)
		if !authorized(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "Token expired"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": user})
	})
	mux.HandleFunc("GET /api/admin/stats", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{"totalUsers": 3}})
	})
	return mux
}

func testConfig(t *testing.T, baseURL, dbPath string) *config.AppConfig {
	t.Helper()
	cfg := &config.AppConfig{
		Services: "http,poller",
		API:      config.APIConfig{BaseURL: baseURL + "/api", Timeout: 2 * time.Second},
		Session: config.SessionConfig{
			Storage:          config.StorageSQLite,
			SQLitePath:       dbPath,
			RolePath:         "role",
			LocalExpiryCheck: true,
		},
	}
	cfg.Sanitize()
	return cfg
}

func newTestServices(t *testing.T, cfg *config.AppConfig) ServiceContainer {
	t.Helper()
	ctx := context.Background()
	store, err := OpenSessionStore(ctx, StorageConfig{Session: cfg.Session, Redis: cfg.Redis})
	require.NoError(t, err)

	svc, err := NewServices(&ServiceDeps{Config: cfg, Store: store})
	require.NoError(t, err)
	t.Cleanup(func() {
		svc.Poller.Stop()
		_ = svc.Close()
	})
	return svc
}

func TestNewServices_SessionSurvivesRestart(t *testing.T) {
	auth := &fakeAuthority{}
	srv := httptest.NewServer(auth.handler())
	t.Cleanup(srv.Close)
	cfg := testConfig(t, srv.URL, filepath.Join(t.TempDir(), "session.db"))
	ctx := context.Background()

	first := newTestServices(t, cfg)
	assert.False(t, first.Initializer.Run(ctx), "empty store boots signed out")
	assert.True(t, first.Initializer.Ready())
	assert.Equal(t, int32(0), auth.verifies.Load(), "no record means no verify call")

	res, err := first.Session.Login(ctx, service.LoginInput{
		Email: "ada@example.com", Password: "pw", Category: domainauth.CategoryPlatformUser,
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, domainauth.RoleAdmin, res.Session.Role)
	require.NoError(t, first.Close())

	second := newTestServices(t, cfg)
	assert.True(t, second.Initializer.Run(ctx))
	snap := second.Session.Snapshot()
	assert.True(t, snap.IsAdmin())
	assert.Equal(t, "Ada", snap.Identity.Name())
	assert.Equal(t, int32(1), auth.verifies.Load())
}

func TestNewServices_PollerUsesAuthorizedClient(t *testing.T) {
	auth := &fakeAuthority{}
	srv := httptest.NewServer(auth.handler())
	t.Cleanup(srv.Close)
	cfg := testConfig(t, srv.URL, filepath.Join(t.TempDir(), "session.db"))
	ctx := context.Background()

	svc := newTestServices(t, cfg)
	svc.Initializer.Run(ctx)
	_, err := svc.Session.Login(ctx, service.LoginInput{
		Email: "ada@example.com", Password: "pw", Category: domainauth.CategoryPlatformUser,
	})
	require.NoError(t, err)

	svc.Poller.Mount()
	require.Eventually(t, func() bool {
		stats, ok := svc.Poller.Latest()
		return ok && stats.Number("totalUsers") == 3
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNewServices_ExpiredTokenEndsSessionViaPoller(t *testing.T) {
	auth := &fakeAuthority{}
	srv := httptest.NewServer(auth.handler())
	t.Cleanup(srv.Close)
	cfg := testConfig(t, srv.URL, filepath.Join(t.TempDir(), "session.db"))
	ctx := context.Background()

	svc := newTestServices(t, cfg)
	svc.Initializer.Run(ctx)
	_, err := svc.Session.Login(ctx, service.LoginInput{
		Email: "ada@example.com", Password: "pw", Category: domainauth.CategoryPlatformUser,
	})
	require.NoError(t, err)

	auth.expired.Store(true)
	svc.Poller.Mount()

	require.Eventually(t, func() bool {
		return !svc.Session.Snapshot().IsAuthenticated()
	}, 2*time.Second, 10*time.Millisecond)

	notice, ok := svc.Shell.TakeNotice()
	require.True(t, ok)
	assert.Equal(t, cfg.Routes.SignIn, notice.Target)
	require.Eventually(t, func() bool { return !svc.Poller.Running() }, time.Second, 10*time.Millisecond)

	entries, err := svc.Store.Store.Get(ctx, service.KeyToken, service.KeyUser, service.KeyUserType)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRouterServices_MetricsEndpoint(t *testing.T) {
	auth := &fakeAuthority{}
	srv := httptest.NewServer(auth.handler())
	t.Cleanup(srv.Close)
	cfg := testConfig(t, srv.URL, filepath.Join(t.TempDir(), "session.db"))
	cfg.Observability.Prometheus.Enabled = true
	cfg.Observability.Prometheus.Namespace = "estate_test"

	svc := newTestServices(t, cfg)
	svc.Initializer.Run(context.Background())

	server, err := NewHTTPServer(&HTTPServerConfig{Config: cfg, Services: svc})
	require.NoError(t, err)

	// One guard decision so the counter exists.
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/user/dashboard", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	rec = httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "estate_test_"), "namespaced metrics exposed")
}

func TestOpenSessionStore_Redis(t *testing.T) {
	_, mr := testutil.SetupTestRedis(t)
	if mr == nil {
		t.Skip("external redis configured; this test needs miniredis")
	}

	store, err := OpenSessionStore(context.Background(), StorageConfig{
		Session: config.SessionConfig{Storage: config.StorageRedis, RedisPrefix: "test:"},
		Redis:   config.RedisConfig{URI: mr.Addr()},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	assert.Nil(t, store.Events)

	ctx := context.Background()
	require.NoError(t, store.Store.Set(ctx, map[string]string{"token": "t"}))
	raw, err := mr.Get("test:token")
	require.NoError(t, err)
	assert.Equal(t, "t", raw)
	assert.Zero(t, mr.TTL("test:token"), "no expiry unless configured")
}

func TestOpenSessionStore_RedisTTL(t *testing.T) {
	_, mr := testutil.SetupTestRedis(t)
	if mr == nil {
		t.Skip("external redis configured; this test needs miniredis")
	}

	cfg := config.SessionConfig{Storage: config.StorageRedis, RedisTTL: time.Hour}
	cfg.Sanitize()
	store, err := OpenSessionStore(context.Background(), StorageConfig{
		Session: cfg,
		Redis:   config.RedisConfig{URI: mr.Addr()},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Store.Set(context.Background(), map[string]string{"token": "t", "userType": "user"}))
	assert.Equal(t, time.Hour, mr.TTL("{estate:session}:token"))
	assert.Equal(t, time.Hour, mr.TTL("{estate:session}:userType"))

	mr.FastForward(2 * time.Hour)
	assert.False(t, mr.Exists("{estate:session}:token"))
}

func TestGetEnabledServices(t *testing.T) {
	cfg := &config.AppConfig{Services: "poller,http"}
	assert.Equal(t, []string{"http", "poller"}, GetEnabledServices(cfg))
	assert.Empty(t, GetEnabledServices(&config.AppConfig{Services: "bogus"}))
}

func TestValidateServiceConfig(t *testing.T) {
	assert.Error(t, ValidateServiceConfig(nil))
	assert.Error(t, ValidateServiceConfig(&config.AppConfig{}))

	cfg := &config.AppConfig{Services: "http"}
	cfg.Sanitize()
	assert.NoError(t, ValidateServiceConfig(cfg))

	bad := *cfg
	bad.API.BaseURL = "localhost:5000/api"
	assert.Error(t, ValidateServiceConfig(&bad))

	redisNoAddr := *cfg
	redisNoAddr.Session.Storage = config.StorageRedis
	redisNoAddr.Redis = config.RedisConfig{}
	assert.Error(t, ValidateServiceConfig(&redisNoAddr))
}

func TestInitLogger_FormatFollowsDevMode(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	initLogger(&buf, &config.AppConfig{LogLevel: "warn"}).Info("hidden")
	initLogger(&buf, &config.AppConfig{LogLevel: "warn"}).Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	buf.Reset()
	initLogger(&buf, &config.AppConfig{IsDev: true}).Debug("dev line")
	assert.Contains(t, buf.String(), "msg=\"dev line\"")
	assert.Contains(t, buf.String(), "app=estate-portal")
}
