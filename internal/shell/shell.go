// Package shell coordinates application-wide in-memory state. Signing out
// resets every registered component before the user is sent elsewhere, so
// nothing from the previous session survives in this process.
package shell

import (
	"context"
	"log/slog"
	"sync"

	"github.com/target/estate-portal/internal/ports"
)

// Resetter is a component holding session-scoped state.
type Resetter interface {
	Reset(ctx context.Context, nav ports.Navigation)
}

// ResetFunc adapts a function to Resetter.
type ResetFunc func(ctx context.Context, nav ports.Navigation)

func (f ResetFunc) Reset(ctx context.Context, nav ports.Navigation) { f(ctx, nav) }

// Notice is the one-shot message the sign-in page may show after a reset.
type Notice struct {
	Reason ports.NavigationReason
	Target string
}

// Message returns the text for the notice, or "" when none is needed.
func (n Notice) Message() string {
	switch n.Reason {
	case ports.ReasonExpired:
		return "Your session has expired. Please sign in again."
	case ports.ReasonLogout:
		return "You have been signed out."
	default:
		return ""
	}
}

type entry struct {
	name string
	r    Resetter
}

// Shell implements ports.Shell.
type Shell struct {
	logger *slog.Logger

	mu         sync.Mutex
	resetters  []entry
	generation uint64
	notice     *Notice
}

var _ ports.Shell = (*Shell)(nil)

// New constructs an empty Shell.
func New(logger *slog.Logger) *Shell {
	if logger == nil {
		logger = slog.Default()
	}
	return &Shell{logger: logger.With("component", "shell")}
}

// Register adds a component to reset. Components reset in registration order.
func (s *Shell) Register(name string, r Resetter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetters = append(s.resetters, entry{name: name, r: r})
}

// Reset discards all session-scoped state and records where to go next.
// Reasons without a message replace any pending notice with none.
// A panicking component is logged and does not stop the others.
func (s *Shell) Reset(ctx context.Context, nav ports.Navigation) {
	s.mu.Lock()
	resetters := append([]entry(nil), s.resetters...)
	s.generation++
	gen := s.generation
	s.notice = nil
	if n := (Notice{Reason: nav.Reason, Target: nav.Target}); n.Message() != "" {
		s.notice = &n
	}
	s.mu.Unlock()

	for _, e := range resetters {
		s.resetOne(ctx, e, nav)
	}
	s.logger.InfoContext(ctx, "application state reset",
		"reason", nav.Reason.String(),
		"target", nav.Target,
		"generation", gen,
	)
}

func (s *Shell) resetOne(ctx context.Context, e entry, nav ports.Navigation) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.ErrorContext(ctx, "reset panicked", "component", e.name, "panic", rec)
		}
	}()
	e.r.Reset(ctx, nav)
}

// TakeNotice returns and clears the notice left by the last reset.
func (s *Shell) TakeNotice() (Notice, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notice == nil {
		return Notice{}, false
	}
	n := *s.notice
	s.notice = nil
	return n, true
}
