package testutil

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupTestRedis(t *testing.T) {
	client, _ := SetupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "k", "v", 0).Err())
	v, err := client.Get(ctx, "k").Result()
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestRecordBuilder(t *testing.T) {
	rec := NewRecord().WithToken("T9").WithRole("admin").Build()
	assert.Equal(t, "T9", rec[KeyToken])
	assert.Equal(t, "user", rec[KeyUserType])

	var identity map[string]any
	require.NoError(t, json.Unmarshal([]byte(rec[KeyUser]), &identity))
	assert.Equal(t, "admin", identity["role"])
	assert.Equal(t, "Alice", identity["name"])

	partial := NewRecord().Without(KeyUser)
	assert.NotContains(t, partial, KeyUser)
	assert.Len(t, partial, 2)

	corrupt := NewRecord().WithRawUser("{not json").Build()
	assert.Equal(t, "{not json", corrupt[KeyUser])
}

func TestWaitFor(t *testing.T) {
	start := time.Now()
	ok := WaitFor(t, time.Second, func() bool { return time.Since(start) > 10*time.Millisecond })
	assert.True(t, ok)
	assert.False(t, WaitFor(t, 10*time.Millisecond, func() bool { return false }))
	assert.Equal(t, TestTime(), FixedTimeFunc(TestTime())())
}
