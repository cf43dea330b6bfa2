package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	domainauth "github.com/target/estate-portal/internal/domain/auth"
	"github.com/target/estate-portal/internal/domain/dashboard"
	apperrors "github.com/target/estate-portal/internal/errors"
	"github.com/target/estate-portal/internal/mocks"
	mockauth "github.com/target/estate-portal/internal/mocks/auth"
	"github.com/target/estate-portal/internal/ports"
)

func TestSessionService_ClientLoginSendsClientCategory(t *testing.T) {
	ctrl := gomock.NewController(t)
	creds := mocks.NewMockCredentialService(ctrl)
	store := mockauth.NewMemoryKeyStore(nil)

	creds.EXPECT().
		Login(gomock.Any(), domainauth.CategoryClient, ports.Credentials{Email: "bo@example.com", Password: "pw"}).
		Return(ports.Grant{
			Token:    "T9",
			Identity: domainauth.Identity{"_id": "c1", "name": "Bo"},
			Category: domainauth.CategoryClient,
		}, nil).
		Times(1)

	svc := NewSessionService(SessionServiceOptions{
		Backends: SessionBackends{Credentials: creds, Store: store},
	})

	res, err := svc.Login(context.Background(), LoginInput{Email: "bo@example.com", Password: "pw", Category: domainauth.CategoryClient})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, domainauth.RoleClient, res.Session.Role)
	assert.Equal(t, "client", store.Snapshot()[KeyUserType])
}

func TestSessionService_CheckAuthVerifiesWithPersistedCategory(t *testing.T) {
	ctrl := gomock.NewController(t)
	creds := mocks.NewMockCredentialService(ctrl)
	store := mockauth.NewMemoryKeyStore(map[string]string{
		KeyToken:    "T9",
		KeyUser:     `{"_id":"c1","name":"Bo"}`,
		KeyUserType: "client",
	})

	creds.EXPECT().
		Verify(gomock.Any(), domainauth.CategoryClient, "T9").
		Return(nil, apperrors.New(apperrors.ErrCodeUnauthorized, "Token expired"))

	svc := NewSessionService(SessionServiceOptions{
		Backends: SessionBackends{Credentials: creds, Store: store},
	})

	assert.False(t, svc.CheckAuth(context.Background()))
	assert.Empty(t, store.Snapshot())
}

func TestDashboardPoller_FetchesWithGomockSource(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := mocks.NewMockDashboardSource(ctrl)
	sess := &staticSession{snap: signedIn(domainauth.RoleAdmin)}

	src.EXPECT().
		FetchDashboard(gomock.Any(), domainauth.RoleAdmin).
		Return(dashboard.Stats{Role: domainauth.RoleAdmin, Values: map[string]any{"totalUsers": 7}, FetchedAt: time.Now()}, nil).
		MinTimes(1)

	p := newTestPoller(src, sess, time.Hour, time.Hour)
	p.Mount()
	t.Cleanup(p.Stop)

	require.Eventually(t, func() bool {
		_, ok := p.Latest()
		return ok
	}, time.Second, 10*time.Millisecond)
	stats, _ := p.Latest()
	assert.InDelta(t, 7, stats.Number("totalUsers"), 0)
}
