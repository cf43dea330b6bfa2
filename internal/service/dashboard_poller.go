package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	domainauth "github.com/target/estate-portal/internal/domain/auth"
	"github.com/target/estate-portal/internal/domain/dashboard"
	"github.com/target/estate-portal/internal/observability/metrics"
	"github.com/target/estate-portal/internal/observability/statsd"
	"github.com/target/estate-portal/internal/ports"
)

const (
	defaultPollInterval = 30 * time.Second
	defaultPollIdle     = 2 * time.Minute
)

// sessionReader is the part of SessionService the poller needs.
type sessionReader interface {
	Snapshot() domainauth.Session
}

// DashboardPollerConfig tunes the poll loop.
type DashboardPollerConfig struct {
	Interval time.Duration
	// IdleTimeout stops the loop when no view has mounted it for this long.
	IdleTimeout time.Duration
	Logger      *slog.Logger
	Metrics     statsd.Sink
}

// DashboardPollerOptions groups dependencies for DashboardPoller.
type DashboardPollerOptions struct {
	Source  ports.DashboardSource // Required
	Session sessionReader         // Required
	Config  DashboardPollerConfig
}

// DashboardPoller refreshes the current principal's dashboard statistics in
// the background while a dashboard view is mounted. The loop owns its cancel
// func; Stop, Reset or the idle timeout end it and nothing fires afterward.
type DashboardPoller struct {
	source  ports.DashboardSource
	session sessionReader
	cfg     DashboardPollerConfig
	logger  *slog.Logger

	mu     sync.Mutex
	base   context.Context
	cancel context.CancelFunc
	done   chan struct{}
	touch  chan struct{}
	latest dashboard.Stats
}

// NewDashboardPoller constructs an idle DashboardPoller.
func NewDashboardPoller(opts DashboardPollerOptions) *DashboardPoller {
	if opts.Source == nil {
		panic("NewDashboardPoller: Source is required")
	}
	if opts.Session == nil {
		panic("NewDashboardPoller: Session is required")
	}
	cfg := opts.Config
	if cfg.Interval <= 0 {
		cfg.Interval = defaultPollInterval
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultPollIdle
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &DashboardPoller{
		source:  opts.Source,
		session: opts.Session,
		cfg:     cfg,
		logger:  logger.With("component", "dashboard_poller"),
		base:    context.Background(),
	}
}

// Run binds the poller to the process lifetime: loops started by Mount end
// when ctx does. It blocks until ctx is done.
func (p *DashboardPoller) Run(ctx context.Context) error {
	p.mu.Lock()
	p.base = ctx
	p.mu.Unlock()

	<-ctx.Done()
	p.Stop()
	return nil
}

// Mount starts the loop if it is not running and records that a view is
// showing the dashboard. It is safe to call on every render.
func (p *DashboardPoller) Mount() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done != nil {
		select {
		case p.touch <- struct{}{}:
		default:
		}
		return
	}
	if p.base.Err() != nil {
		return
	}

	ctx, cancel := context.WithCancel(p.base)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.touch = make(chan struct{}, 1)
	go p.loop(ctx, p.done, p.touch)
}

// Running reports whether the loop is active.
func (p *DashboardPoller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done != nil
}

// Stop cancels the loop and waits for it to exit. It must not be called from
// inside a fetch; Reset is the non-blocking variant.
func (p *DashboardPoller) Stop() {
	done := p.halt()
	if done != nil {
		<-done
	}
}

// Reset stops the loop without waiting and forgets cached statistics. It is
// registered with the application shell so sign-out leaves nothing behind.
func (p *DashboardPoller) Reset(_ context.Context, _ ports.Navigation) {
	p.halt()
	p.mu.Lock()
	p.latest = dashboard.Stats{}
	p.mu.Unlock()
}

func (p *DashboardPoller) halt() chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	done := p.done
	p.cancel = nil
	p.done = nil
	p.touch = nil
	return done
}

// Latest returns the most recent statistics, if any were fetched.
func (p *DashboardPoller) Latest() (dashboard.Stats, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latest, !p.latest.IsZero()
}

func (p *DashboardPoller) loop(ctx context.Context, done chan struct{}, touch <-chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	idle := time.NewTimer(p.cfg.IdleTimeout)
	defer idle.Stop()

	p.logger.DebugContext(ctx, "dashboard poller started", "interval", p.cfg.Interval)
	p.fetch(ctx)

	for {
		select {
		case <-ctx.Done():
			p.logger.DebugContext(ctx, "dashboard poller stopped")
			return
		case <-touch:
			idle.Reset(p.cfg.IdleTimeout)
		case <-idle.C:
			p.logger.DebugContext(ctx, "dashboard poller idle, stopping")
			p.detach(done)
			return
		case <-ticker.C:
			p.fetch(ctx)
		}
	}
}

// detach clears the handle when the loop ends on its own.
func (p *DashboardPoller) detach(done chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done == done {
		p.cancel()
		p.cancel = nil
		p.done = nil
		p.touch = nil
	}
}

func (p *DashboardPoller) fetch(ctx context.Context) {
	snap := p.session.Snapshot()
	if !snap.IsAuthenticated() || snap.Role == "" {
		return
	}

	start := time.Now()
	stats, err := p.source.FetchDashboard(ctx, snap.Role)
	metrics.EmitPollerFetch(p.cfg.Metrics, string(snap.Role), time.Since(start), err)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.WarnContext(ctx, "dashboard refresh failed", "role", string(snap.Role), "error", err)
		}
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	// Stopped while the request was in flight; drop the result.
	if ctx.Err() == nil {
		p.latest = stats
	}
}
