package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/estate-portal/internal/testutil"
)

type countingChecker struct {
	calls   atomic.Int32
	release chan struct{}
	result  bool
}

func (c *countingChecker) CheckAuth(ctx context.Context) bool {
	c.calls.Add(1)
	if c.release != nil {
		select {
		case <-c.release:
		case <-ctx.Done():
			return false
		}
	}
	return c.result
}

func TestInitializer_RunsOnce(t *testing.T) {
	checker := &countingChecker{release: make(chan struct{}), result: true}
	boot := NewInitializer(InitializerOptions{Session: checker})

	assert.False(t, boot.Ready())

	const callers = 8
	results := make(chan bool, callers)
	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- boot.Run(context.Background())
		}()
	}

	require.True(t, testutil.WaitFor(t, time.Second, func() bool { return checker.calls.Load() == 1 }))
	assert.False(t, boot.Ready(), "not ready while the check is running")

	close(checker.release)
	wg.Wait()
	close(results)

	for ok := range results {
		assert.True(t, ok)
	}
	assert.Equal(t, int32(1), checker.calls.Load())
	assert.True(t, boot.Ready())

	assert.True(t, boot.Run(context.Background()), "later calls return the first result")
	assert.Equal(t, int32(1), checker.calls.Load())
}

func TestInitializer_ReadyAfterFailure(t *testing.T) {
	boot := NewInitializer(InitializerOptions{Session: &countingChecker{result: false}})

	assert.False(t, boot.Run(context.Background()))
	assert.True(t, boot.Ready())

	select {
	case <-boot.Done():
	default:
		t.Fatal("Done should be closed")
	}
}

func TestInitializer_ReadyAfterCancellation(t *testing.T) {
	checker := &countingChecker{release: make(chan struct{}), result: true}
	boot := NewInitializer(InitializerOptions{Session: checker})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.False(t, boot.Run(ctx))
	assert.True(t, boot.Ready())
}

func TestInitializer_Wait(t *testing.T) {
	boot := NewInitializer(InitializerOptions{Session: &countingChecker{result: true}})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, boot.Wait(ctx), context.DeadlineExceeded)

	boot.Run(context.Background())
	require.NoError(t, boot.Wait(context.Background()))
}

func TestInitializer_WithSessionService(t *testing.T) {
	f := newSessionFixture(t, testutil.NewRecord().Build())
	boot := NewInitializer(InitializerOptions{Session: f.svc})

	assert.True(t, boot.Run(context.Background()))
	assert.True(t, boot.Run(context.Background()))

	_, _, verifies := f.creds.Calls()
	assert.Equal(t, 1, verifies)
	assert.True(t, f.svc.Snapshot().IsAuthenticated())
}

func TestNewInitializer_PanicsWithoutSession(t *testing.T) {
	assert.Panics(t, func() { NewInitializer(InitializerOptions{}) })
}

var _ sessionChecker = (*SessionService)(nil)
