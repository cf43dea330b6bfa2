package redis

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/estate-portal/internal/testutil"
)

func TestKeyStore_SetAndGet(t *testing.T) {
	client, _ := testutil.SetupTestRedis(t)
	store := NewKeyStoreWithPrefix(client, "test:session:")
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, map[string]string{
		"token":    "T1",
		"user":     `{"name":"Alice"}`,
		"userType": "user",
	}))

	got, err := store.Get(ctx, "token", "user", "userType", "missing")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"token": "T1", "user": `{"name":"Alice"}`, "userType": "user"}, got)

	raw, err := client.Get(ctx, "test:session:token").Result()
	require.NoError(t, err)
	assert.Equal(t, "T1", raw)
}

// slotTag returns the part of key Redis Cluster hashes: the first non-empty
// {...} section, or the whole key.
func slotTag(key string) string {
	if i := strings.IndexByte(key, '{'); i >= 0 {
		if j := strings.IndexByte(key[i+1:], '}'); j > 0 {
			return key[i+1 : i+1+j]
		}
	}
	return key
}

func TestKeyStore_DefaultPrefixKeepsRecordInOneSlot(t *testing.T) {
	client, _ := testutil.SetupTestRedis(t)
	store := NewKeyStore(client)
	ctx := context.Background()

	keys := []string{"token", "user", "userType"}
	for _, k := range keys {
		assert.Equal(t, "estate:session", slotTag(store.key(k)), k)
	}

	require.NoError(t, store.Set(ctx, map[string]string{"token": "T1", "user": "{}", "userType": "user"}))
	raw, err := client.Get(ctx, "{estate:session}:userType").Result()
	require.NoError(t, err)
	assert.Equal(t, "user", raw)
}

func TestKeyStore_Delete(t *testing.T) {
	client, _ := testutil.SetupTestRedis(t)
	store := NewKeyStore(client)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, map[string]string{"token": "T1", "userType": "client"}))
	require.NoError(t, store.Delete(ctx, "token", "userType", "never-set"))

	got, err := store.Get(ctx, "token", "userType")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestKeyStore_EmptyArgs(t *testing.T) {
	client, _ := testutil.SetupTestRedis(t)
	store := NewKeyStore(client)
	ctx := context.Background()

	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, store.Set(ctx, nil))
	assert.NoError(t, store.Delete(ctx))
}

func TestKeyStore_TTL(t *testing.T) {
	client, mr := testutil.SetupTestRedis(t)
	if mr == nil {
		t.Skip("TTL fast-forward needs the in-process redis")
	}
	store := NewKeyStore(client).WithTTL(time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, map[string]string{"token": "T1"}))
	mr.FastForward(2 * time.Minute)

	got, err := store.Get(ctx, "token")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestKeyStore_ClosedClientFails(t *testing.T) {
	client, _ := testutil.SetupTestRedis(t)
	store := NewKeyStore(client)
	require.NoError(t, client.Close())

	assert.Error(t, store.Set(context.Background(), map[string]string{"token": "T1"}))
	_, err := store.Get(context.Background(), "token")
	assert.Error(t, err)
}
