package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	domainauth "github.com/target/estate-portal/internal/domain/auth"
	apperrors "github.com/target/estate-portal/internal/errors"
	"github.com/target/estate-portal/internal/observability/metrics"
	"github.com/target/estate-portal/internal/observability/statsd"
	"github.com/target/estate-portal/internal/ports"
)

// Persisted session record keys. The three entries are written together.
const (
	KeyToken    = "token"
	KeyUser     = "user"
	KeyUserType = "userType"
)

var recordKeys = []string{KeyToken, KeyUser, KeyUserType}

// SessionBackends are the required collaborators of SessionService.
type SessionBackends struct {
	Credentials ports.CredentialService // Required: remote authentication authority
	Store       ports.KeyStore          // Required: durable session record
}

// SessionCollaborators are optional collaborators of SessionService.
type SessionCollaborators struct {
	Shell  ports.Shell          // Optional: reset on logout and forced logout
	Roles  *RoleResolver        // Optional: defaults to the "role" attribute
	Tokens ports.TokenInspector // Optional: local expiry check before verify
	Events ports.EventRecorder  // Optional: local audit trail
}

// SessionRoutes are the navigation targets used when the session ends.
type SessionRoutes struct {
	SignIn string
	Root   string
}

// SessionRuntime groups process-level settings for SessionService.
type SessionRuntime struct {
	Routes    SessionRoutes
	Transport http.RoundTripper // Optional: base transport for AuthorizedClient
	Logger    *slog.Logger
	Metrics   statsd.Sink
	Now       func() time.Time
}

// SessionServiceOptions groups dependencies for SessionService.
type SessionServiceOptions struct {
	Backends      SessionBackends
	Collaborators SessionCollaborators
	Runtime       SessionRuntime
}

// principal holds the three session fields that exist only together.
type principal struct {
	token    string
	identity domainauth.Identity
	category domainauth.Category
	role     domainauth.Role
}

// slot is the single in-flight authentication attempt.
type slot struct {
	id          string
	interactive bool
}

// SessionService owns the client-held session. Construct one per process and
// pass it to everything that reads or changes the session; all mutation goes
// through its methods.
//
// mu guards the in-memory state. writeMu serializes writes to the store and is
// always taken before mu. Every write re-checks the epoch under mu, and every
// clear bumps the epoch before deleting, so a late response can never bring
// back a session that was cleared while it was in flight.
type SessionService struct {
	creds  ports.CredentialService
	store  ports.KeyStore
	shell  ports.Shell
	roles  *RoleResolver
	tokens ports.TokenInspector
	events ports.EventRecorder

	routes  SessionRoutes
	logger  *slog.Logger
	metrics statsd.Sink
	now     func() time.Time

	mu        sync.Mutex
	current   *principal
	loading   bool
	lastError string
	inflight  *slot
	epoch     uint64

	writeMu sync.Mutex
	checks  singleflight.Group
	client  *http.Client
}

// NewSessionService constructs a SessionService with an empty session.
func NewSessionService(opts SessionServiceOptions) *SessionService {
	if opts.Backends.Credentials == nil {
		panic("NewSessionService: Credentials is required")
	}
	if opts.Backends.Store == nil {
		panic("NewSessionService: Store is required")
	}

	s := &SessionService{
		creds:   opts.Backends.Credentials,
		store:   opts.Backends.Store,
		shell:   opts.Collaborators.Shell,
		roles:   opts.Collaborators.Roles,
		tokens:  opts.Collaborators.Tokens,
		events:  opts.Collaborators.Events,
		routes:  opts.Runtime.Routes,
		logger:  opts.Runtime.Logger,
		metrics: opts.Runtime.Metrics,
		now:     opts.Runtime.Now,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "session")
	if s.now == nil {
		s.now = time.Now
	}
	if s.roles == nil {
		s.roles = &RoleResolver{expr: "role"}
	}
	if s.routes.SignIn == "" {
		s.routes.SignIn = "/login"
	}
	if s.routes.Root == "" {
		s.routes.Root = "/"
	}

	s.client = &http.Client{Transport: &BearerTransport{
		Base:           opts.Runtime.Transport,
		Token:          s.CurrentToken,
		OnUnauthorized: s.HandleUnauthorized,
	}}
	return s
}

// AuthResult is the outcome of Login or Register.
type AuthResult struct {
	Success bool
	// Category is the category the authority granted, which may differ from the requested one.
	Category domainauth.Category
	Session  domainauth.Session
	// Error is the user-facing message of a failed attempt.
	Error string
}

// Snapshot returns the current session. The identity is a copy.
func (s *SessionService) Snapshot() domainauth.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *SessionService) snapshotLocked() domainauth.Session {
	out := domainauth.Session{IsLoading: s.loading, LastError: s.lastError}
	if p := s.current; p != nil {
		out.Token = p.token
		out.Identity = p.identity.Clone()
		out.Category = p.category
		out.Role = p.role
	}
	return out
}

// CurrentToken returns the bearer credential of the current session, or "".
func (s *SessionService) CurrentToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ""
	}
	return s.current.token
}

// AuthorizedClient returns the HTTP client whose requests carry the session's
// bearer credential. A 401 on any of its requests ends the session.
func (s *SessionService) AuthorizedClient() *http.Client {
	return s.client
}

// claim takes the in-flight slot. It fails when another attempt holds it.
func (s *SessionService) claim(interactive bool) (*slot, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight != nil {
		return nil, 0, false
	}
	sl := &slot{id: uuid.NewString(), interactive: interactive}
	s.inflight = sl
	if interactive {
		s.loading = true
		s.lastError = ""
	}
	return sl, s.epoch, true
}

func (s *SessionService) releaseLocked(sl *slot) {
	if s.inflight == sl {
		s.inflight = nil
		s.loading = false
	}
}

// ownsLocked reports whether sl may still apply its result.
func (s *SessionService) ownsLocked(sl *slot, epoch uint64) bool {
	return s.inflight == sl && s.epoch == epoch
}

// settle applies the outcome of an attempt: write runs against the store
// first, then apply updates memory. Both only happen while the attempt is
// still current. The slot is released in every case.
func (s *SessionService) settle(ctx context.Context, sl *slot, epoch uint64, write func(context.Context) error, apply func(writeErr error)) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if !s.ownsLocked(sl, epoch) {
		s.releaseLocked(sl)
		s.mu.Unlock()
		return false, nil
	}
	s.mu.Unlock()

	var writeErr error
	if write != nil {
		writeErr = write(context.WithoutCancel(ctx))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ownsLocked(sl, epoch) {
		s.releaseLocked(sl)
		return false, writeErr
	}
	apply(writeErr)
	s.releaseLocked(sl)
	return true, writeErr
}

// clearStore deletes every record key. Callers hold writeMu.
func (s *SessionService) clearStore(ctx context.Context) error {
	if err := s.store.Delete(ctx, recordKeys...); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeStorage, "Could not clear the saved session")
	}
	return nil
}

func encodeRecord(p principal) (map[string]string, error) {
	user, err := json.Marshal(p.identity)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		KeyToken:    p.token,
		KeyUser:     string(user),
		KeyUserType: p.category.String(),
	}, nil
}

func encodeIdentity(identity domainauth.Identity) (map[string]string, error) {
	user, err := json.Marshal(identity)
	if err != nil {
		return nil, err
	}
	return map[string]string{KeyUser: string(user)}, nil
}

var errNoRecord = errors.New("no session record")

// decodeRecord parses the persisted entries. Anything short of a complete,
// well-formed record is reported as an error and treated as no session.
func decodeRecord(entries map[string]string) (principal, error) {
	token := entries[KeyToken]
	rawUser, hasUser := entries[KeyUser]
	rawType, hasType := entries[KeyUserType]
	if token == "" && !hasUser && !hasType {
		return principal{}, errNoRecord
	}
	if token == "" || !hasUser || !hasType {
		return principal{}, apperrors.New(apperrors.ErrCodeMalformed, "incomplete session record")
	}

	category, err := domainauth.ParseCategory(rawType)
	if err != nil {
		return principal{}, apperrors.Wrap(err, apperrors.ErrCodeMalformed, "invalid session category")
	}

	var identity domainauth.Identity
	if err := json.Unmarshal([]byte(rawUser), &identity); err != nil {
		return principal{}, apperrors.Wrap(err, apperrors.ErrCodeMalformed, "invalid session identity")
	}
	if identity == nil {
		return principal{}, apperrors.New(apperrors.ErrCodeMalformed, "empty session identity")
	}

	return principal{token: token, identity: identity, category: category}, nil
}

func (s *SessionService) emit(op string, category domainauth.Category, start time.Time, err error) {
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.EmitSessionTransition(s.metrics, metrics.SessionMetric{
		Op:       op,
		Category: category.String(),
		Result:   result,
		Duration: s.now().Sub(start),
		Err:      err,
	})
}

func (s *SessionService) publishSignedIn(category domainauth.Category, signedIn bool) {
	if category.Valid() {
		metrics.EmitAuthenticated(s.metrics, category.String(), signedIn)
	}
}

func (s *SessionService) emitNoop(op string, category domainauth.Category) {
	metrics.EmitSessionTransition(s.metrics, metrics.SessionMetric{
		Op:       op,
		Category: category.String(),
		Result:   metrics.ResultNoop,
	})
}

func (s *SessionService) record(ctx context.Context, kind string, category domainauth.Category) {
	if s.events == nil {
		return
	}
	ev := ports.SessionEvent{Kind: kind, Category: category.String(), At: s.now().UTC()}
	if err := s.events.RecordEvent(ctx, ev); err != nil {
		s.logger.DebugContext(ctx, "record session event failed", "kind", kind, "error", err)
	}
}
