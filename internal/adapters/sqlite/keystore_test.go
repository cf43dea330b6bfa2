package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/estate-portal/internal/ports"
)

func openTestStore(t *testing.T) (*KeyStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "session.db")
	s, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestKeyStore_SetGetDelete(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, map[string]string{
		"token":    "T1",
		"user":     `{"name":"Alice"}`,
		"userType": "user",
	}))

	got, err := s.Get(ctx, "token", "user", "userType", "missing")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"token": "T1", "user": `{"name":"Alice"}`, "userType": "user"}, got)

	require.NoError(t, s.Set(ctx, map[string]string{"user": `{"name":"Alicia"}`}))
	got, err = s.Get(ctx, "user")
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Alicia"}`, got["user"])

	require.NoError(t, s.Delete(ctx, "token", "user", "userType"))
	got, err = s.Get(ctx, "token", "user", "userType")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestKeyStore_SurvivesReopen(t *testing.T) {
	s, path := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, map[string]string{"token": "T1"}))
	require.NoError(t, s.Close())

	reopened, err := Open(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "T1", got["token"])
}

func TestKeyStore_CanceledSetWritesNothing(t *testing.T) {
	s, _ := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Set(ctx, map[string]string{"token": "T1", "user": "{}", "userType": "user"})
	require.Error(t, err)

	got, err := s.Get(context.Background(), "token", "user", "userType")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestKeyStore_ConcurrentWriters(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Set(ctx, map[string]string{"token": "T", "user": "{}", "userType": "client"}))
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, "token", "user", "userType")
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestKeyStore_Events(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordEvent(ctx, ports.SessionEvent{Kind: "login", Category: "user"}))
	require.NoError(t, s.RecordEvent(ctx, ports.SessionEvent{Kind: "logout"}))

	events, err := s.RecentEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "logout", events[0].Kind)
	assert.Equal(t, "login", events[1].Kind)
	assert.Equal(t, "user", events[1].Category)
	assert.False(t, events[1].At.IsZero())
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(context.Background(), " ")
	assert.Error(t, err)
}
