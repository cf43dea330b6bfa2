package shell

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/estate-portal/internal/ports"
)

func TestShell_ResetRunsEveryComponentInOrder(t *testing.T) {
	s := New(nil)
	var order []string
	s.Register("poller", ResetFunc(func(context.Context, ports.Navigation) { order = append(order, "poller") }))
	s.Register("views", ResetFunc(func(context.Context, ports.Navigation) { order = append(order, "views") }))

	s.Reset(context.Background(), ports.Navigation{Target: "/", Reason: ports.ReasonLogout})

	assert.Equal(t, []string{"poller", "views"}, order)
}

func TestShell_PanickingComponentDoesNotStopOthers(t *testing.T) {
	s := New(nil)
	called := false
	s.Register("broken", ResetFunc(func(context.Context, ports.Navigation) { panic("boom") }))
	s.Register("views", ResetFunc(func(context.Context, ports.Navigation) { called = true }))

	assert.NotPanics(t, func() {
		s.Reset(context.Background(), ports.Navigation{Target: "/login", Reason: ports.ReasonExpired})
	})
	assert.True(t, called)
}

func TestShell_TakeNoticeIsOneShot(t *testing.T) {
	s := New(nil)
	_, ok := s.TakeNotice()
	assert.False(t, ok)

	s.Reset(context.Background(), ports.Navigation{Target: "/login", Reason: ports.ReasonExpired})

	n, ok := s.TakeNotice()
	require.True(t, ok)
	assert.Equal(t, ports.ReasonExpired, n.Reason)
	assert.Equal(t, "/login", n.Target)
	assert.Contains(t, n.Message(), "expired")

	_, ok = s.TakeNotice()
	assert.False(t, ok)
}

func TestShell_SwitchResetsWithoutNotice(t *testing.T) {
	s := New(nil)
	resets := 0
	s.Register("poller", ResetFunc(func(context.Context, ports.Navigation) { resets++ }))

	s.Reset(context.Background(), ports.Navigation{Target: "/login", Reason: ports.ReasonExpired})
	s.Reset(context.Background(), ports.Navigation{Target: "/", Reason: ports.ReasonSwitched})

	assert.Equal(t, 2, resets)
	_, ok := s.TakeNotice()
	assert.False(t, ok, "a new sign-in drops the stale expiry notice")
}

func TestNotice_Message(t *testing.T) {
	assert.NotEmpty(t, Notice{Reason: ports.ReasonLogout}.Message())
	assert.Empty(t, Notice{}.Message())
	assert.Empty(t, Notice{Reason: ports.ReasonSwitched}.Message())
}
