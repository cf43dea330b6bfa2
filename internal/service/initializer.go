package service

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// sessionChecker is the part of SessionService the initializer needs.
type sessionChecker interface {
	CheckAuth(ctx context.Context) bool
}

// InitializerOptions groups dependencies for Initializer.
type InitializerOptions struct {
	Session sessionChecker // Required
	Logger  *slog.Logger   // Optional
}

// Initializer restores and revalidates the persisted session once per process
// before anything is routed. Until it finishes, the route guard shows a
// loading state.
type Initializer struct {
	session sessionChecker
	logger  *slog.Logger

	once   sync.Once
	done   chan struct{}
	result bool
}

// NewInitializer constructs an Initializer.
func NewInitializer(opts InitializerOptions) *Initializer {
	if opts.Session == nil {
		panic("NewInitializer: Session is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Initializer{
		session: opts.Session,
		logger:  logger.With("component", "initializer"),
		done:    make(chan struct{}),
	}
}

// Run performs the startup check. Only the first call reaches the network;
// concurrent and later callers wait for it and get the same result. The
// process is marked ready however the check ends, including cancellation.
func (i *Initializer) Run(ctx context.Context) bool {
	i.once.Do(func() {
		defer close(i.done)
		start := time.Now()
		i.result = i.session.CheckAuth(ctx)
		i.logger.InfoContext(ctx, "session initialized",
			"authenticated", i.result,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
	return i.result
}

// Ready reports whether Run has finished.
func (i *Initializer) Ready() bool {
	select {
	case <-i.done:
		return true
	default:
		return false
	}
}

// Done is closed once Run has finished.
func (i *Initializer) Done() <-chan struct{} {
	return i.done
}

// Wait blocks until Run has finished or ctx ends.
func (i *Initializer) Wait(ctx context.Context) error {
	select {
	case <-i.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
