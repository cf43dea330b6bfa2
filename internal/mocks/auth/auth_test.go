package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/target/estate-portal/internal/domain/auth"
	"github.com/target/estate-portal/internal/ports"
)

func TestFakeCredentialService_Defaults(t *testing.T) {
	svc := NewFakeCredentialService()
	ctx := context.Background()

	grant, err := svc.Login(ctx, domainauth.CategoryPlatformUser, ports.Credentials{Email: "alice@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, "T1", grant.Token)
	assert.Equal(t, "Alice", grant.Identity.Name())

	_, err = svc.Login(ctx, domainauth.CategoryPlatformUser, ports.Credentials{Email: "alice@example.com", Password: "nope"})
	assert.ErrorIs(t, err, ErrRejected)

	grant, err = svc.Register(ctx, domainauth.CategoryClient, ports.Registration{Name: "Bob", Email: "bob@example.com"})
	require.NoError(t, err)
	assert.Equal(t, domainauth.CategoryClient, grant.Category)

	logins, registers, verifies := svc.Calls()
	assert.Equal(t, 2, logins)
	assert.Equal(t, 1, registers)
	assert.Equal(t, 0, verifies)
}

func TestFakeCredentialService_GateHonoursContext(t *testing.T) {
	svc := &FakeCredentialService{Gate: make(chan struct{})}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := svc.Verify(ctx, domainauth.CategoryPlatformUser, "T1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryKeyStore_SetGetDelete(t *testing.T) {
	s := NewMemoryKeyStore(nil)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, map[string]string{"token": "T1", "userType": "user"}))
	got, err := s.Get(ctx, "token", "user", "userType")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"token": "T1", "userType": "user"}, got)

	require.NoError(t, s.Delete(ctx, "token", "userType", "missing"))
	assert.Empty(t, s.Snapshot())
	assert.Equal(t, 1, s.SetCalls())
	assert.Equal(t, 1, s.DeleteCalls())
}

func TestMemoryKeyStore_PartialSet(t *testing.T) {
	s := NewMemoryKeyStore(nil)
	s.PartialSet = true

	err := s.Set(context.Background(), map[string]string{"user": "{}", "token": "T1", "userType": "user"})
	require.Error(t, err)
	assert.Equal(t, map[string]string{"token": "T1"}, s.Snapshot())
}

func TestRecordingShell(t *testing.T) {
	var sh RecordingShell
	sh.Reset(context.Background(), ports.Navigation{Target: "/", Reason: ports.ReasonLogout})
	assert.Equal(t, []ports.Navigation{{Target: "/", Reason: ports.ReasonLogout}}, sh.Resets())
}

func TestFakeDashboardSource(t *testing.T) {
	var src FakeDashboardSource
	stats, err := src.FetchDashboard(context.Background(), domainauth.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleAdmin, stats.Role)
	assert.InDelta(t, 1.0, stats.Number("refresh"), 0.0001)
	assert.Equal(t, 1, src.Calls())
}
