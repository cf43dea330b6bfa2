// Package testutil provides testing utilities and helpers for the estate portal.
package testutil

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// TestingTB is the subset of testing.TB the helpers rely on.
type TestingTB interface {
	Helper()
	Skip(args ...interface{})
	Skipf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
	Logf(format string, args ...interface{})
	Cleanup(func())
	TempDir() string
}

var _ TestingTB = (testing.TB)(nil)

// envBool parses common truthy values from env vars.
func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

func requireRedis() bool { return envBool("TEST_REQUIRE_REDIS") || envBool("TEST_REQUIRE_INFRA") }

// SetupTestRedis returns a Redis client for tests. When TEST_REDIS_ADDR is set
// the client targets that server (flushing the selected DB first) and the
// returned miniredis handle is nil; otherwise an in-process miniredis is started.
// Both are closed on test cleanup.
func SetupTestRedis(t TestingTB) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	if addr := strings.TrimSpace(os.Getenv("TEST_REDIS_ADDR")); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			if requireRedis() {
				t.Fatalf("redis required but not available at %s: %v", addr, err)
			}
			t.Skipf("redis not available at %s: %v", addr, err)
		}
		if err := client.FlushDB(ctx).Err(); err != nil {
			t.Fatalf("flush test redis db: %v", err)
		}
		t.Cleanup(func() { _ = client.Close() })
		return client, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return client, mr
}

// FixedTimeFunc returns a function that always returns the same time.
func FixedTimeFunc(t time.Time) func() time.Time {
	return func() time.Time {
		return t
	}
}

// TestTime returns a fixed time for testing.
func TestTime() time.Time {
	return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

// WaitFor polls condition until it returns true or timeout elapses.
func WaitFor(t TestingTB, timeout time.Duration, condition func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return condition()
}
