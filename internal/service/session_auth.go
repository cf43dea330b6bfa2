package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	domainauth "github.com/target/estate-portal/internal/domain/auth"
	apperrors "github.com/target/estate-portal/internal/errors"
	"github.com/target/estate-portal/internal/ports"
)

// Login signs in with email and password for the given category.
//
// A failed attempt leaves no session behind and sets LastError. A call made
// while another Login or Register is in flight is rejected with an in-flight
// error and changes nothing.
func (s *SessionService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	if err := in.Validate(); err != nil {
		return s.rejectInput(ctx, "login", in.Category, err)
	}
	return s.authenticate(ctx, "login", in.Category, func(ctx context.Context) (ports.Grant, error) {
		return s.creds.Login(ctx, in.Category, in.credentials())
	})
}

// Register creates an account and signs the new principal in immediately.
// It follows the same contract as Login.
func (s *SessionService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	if err := in.Validate(); err != nil {
		return s.rejectInput(ctx, "register", in.Category, err)
	}
	return s.authenticate(ctx, "register", in.Category, func(ctx context.Context) (ports.Grant, error) {
		return s.creds.Register(ctx, in.Category, in.registration())
	})
}

// rejectInput reports a form error without touching the session or the store.
func (s *SessionService) rejectInput(ctx context.Context, op string, category domainauth.Category, err error) (*AuthResult, error) {
	verr := validationError(err)
	msg := apperrors.UserMessage(verr)

	s.mu.Lock()
	if s.inflight == nil {
		s.lastError = msg
	}
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "session input rejected", "op", op, "field", apperrors.GetField(verr))
	s.emitNoop(op, category)
	return &AuthResult{Success: false, Category: category, Session: s.Snapshot(), Error: msg}, verr
}

func (s *SessionService) authenticate(ctx context.Context, op string, requested domainauth.Category, call func(context.Context) (ports.Grant, error)) (*AuthResult, error) {
	start := s.now()

	sl, epoch, ok := s.claim(true)
	if !ok {
		err := apperrors.InFlight()
		s.logger.InfoContext(ctx, "authentication attempt rejected while another is in flight", "op", op)
		s.emitNoop(op, requested)
		return &AuthResult{Success: false, Category: requested, Session: s.Snapshot(), Error: err.Message}, err
	}

	grant, err := call(ctx)
	if err == nil {
		err = checkGrant(grant)
	}
	if err != nil {
		return s.failAuthentication(ctx, op, requested, sl, epoch, start, err)
	}

	category := grant.Category
	if !category.Valid() {
		category = requested
	}
	p := principal{
		token:    grant.Token,
		identity: grant.Identity.Clone(),
		category: category,
		role:     s.roles.Resolve(grant.Identity, category),
	}
	record, err := encodeRecord(p)
	if err != nil {
		return s.failAuthentication(ctx, op, requested, sl, epoch, start,
			apperrors.Wrap(err, apperrors.ErrCodeMalformed, "Unexpected response from the server"))
	}

	var snap domainauth.Session
	var replaced bool
	applied, writeErr := s.settle(ctx, sl, epoch,
		func(ctx context.Context) error {
			if err := s.store.Set(ctx, record); err != nil {
				// A partial write must not survive as a half record.
				if delErr := s.store.Delete(ctx, recordKeys...); delErr != nil {
					s.logger.WarnContext(ctx, "clear after failed session write", "error", delErr)
				}
				return apperrors.Wrap(err, apperrors.ErrCodeStorage, "Could not save your session")
			}
			return nil
		},
		func(writeErr error) {
			replaced = s.dropPreviousLocked()
			if writeErr != nil {
				s.current = nil
				s.lastError = apperrors.UserMessage(writeErr)
			} else {
				s.current = &p
				s.lastError = ""
			}
			s.loading = false
			snap = s.snapshotLocked()
		},
	)
	if !applied {
		err := apperrors.Superseded(op)
		s.logger.InfoContext(ctx, "discarding superseded authentication response", "op", op, "attempt", sl.id)
		s.emitNoop(op, requested)
		return &AuthResult{Success: false, Category: requested, Session: s.Snapshot(), Error: err.Message}, err
	}
	if replaced {
		s.resetForSwitch(ctx, op, s.routes.Root)
	}
	if writeErr != nil {
		s.logger.ErrorContext(ctx, "persist session failed", "op", op, "error", writeErr)
		s.emit(op, requested, start, writeErr)
		return &AuthResult{Success: false, Category: requested, Session: snap, Error: snap.LastError}, writeErr
	}

	s.logger.InfoContext(ctx, "session established", "op", op, "attempt", sl.id, "category", category.String(), "role", string(p.role))
	s.emit(op, category, start, nil)
	s.publishSignedIn(category, true)
	s.record(ctx, op, category)
	return &AuthResult{Success: true, Category: category, Session: snap}, nil
}

// failAuthentication clears the store and memory after a rejected attempt.
func (s *SessionService) failAuthentication(ctx context.Context, op string, requested domainauth.Category, sl *slot, epoch uint64, start time.Time, cause error) (*AuthResult, error) {
	if apperrors.GetCode(cause) == "" {
		cause = classifyCallError(ctx, cause, apperrors.ErrCodeInvalidCredentials)
	}
	msg := apperrors.UserMessage(cause)

	var snap domainauth.Session
	var prev domainauth.Category
	var dropped bool
	applied, clearErr := s.settle(ctx, sl, epoch,
		s.clearStore,
		func(error) {
			if s.current != nil {
				prev = s.current.category
			}
			dropped = s.dropPreviousLocked()
			s.current = nil
			s.lastError = msg
			s.loading = false
			snap = s.snapshotLocked()
		},
	)
	if clearErr != nil {
		s.logger.WarnContext(ctx, "clear session after failed attempt", "op", op, "error", clearErr)
	}
	if !applied {
		err := apperrors.Superseded(op)
		s.emitNoop(op, requested)
		return &AuthResult{Success: false, Category: requested, Session: s.Snapshot(), Error: err.Message}, err
	}

	if dropped {
		s.resetForSwitch(ctx, op, s.routes.SignIn)
	}
	s.logger.InfoContext(ctx, "authentication failed", "op", op, "category", requested.String(), "code", string(apperrors.GetCode(cause)))
	s.emit(op, requested, start, cause)
	s.publishSignedIn(prev, false)
	return &AuthResult{Success: false, Category: requested, Session: snap, Error: msg}, cause
}

// CheckAuth restores the persisted session and revalidates it with the
// authority. It returns whether a session is established afterward.
//
// A missing, partial or corrupt record ends in the unauthenticated state
// without a network call. Any verification failure clears the session:
// an unreachable authority never leaves a stale authenticated state behind.
// Concurrent calls share one verification.
func (s *SessionService) CheckAuth(ctx context.Context) bool {
	v, _, _ := s.checks.Do("check", func() (any, error) {
		return s.checkAuth(ctx), nil
	})
	ok, _ := v.(bool)
	return ok
}

func (s *SessionService) checkAuth(ctx context.Context) bool {
	start := s.now()

	sl, epoch, ok := s.claim(false)
	if !ok {
		// An interactive attempt owns the session right now; report what it has.
		return s.Snapshot().IsAuthenticated()
	}

	entries, err := s.store.Get(ctx, recordKeys...)
	if err != nil {
		s.logger.WarnContext(ctx, "read session record failed", "error", err)
		s.failCheck(ctx, sl, epoch, start, domainauth.CategoryNone,
			apperrors.Wrap(err, apperrors.ErrCodeStorage, "Could not read the saved session"))
		return false
	}

	p, err := decodeRecord(entries)
	if err != nil {
		if !errors.Is(err, errNoRecord) {
			s.logger.WarnContext(ctx, "discarding unreadable session record", "error", err)
		}
		s.failCheck(ctx, sl, epoch, start, domainauth.CategoryNone, err)
		return false
	}

	if s.tokens != nil && s.tokens.Expired(p.token, s.now()) {
		s.logger.InfoContext(ctx, "persisted token expired locally", "category", p.category.String())
		s.failCheck(ctx, sl, epoch, start, p.category,
			apperrors.New(apperrors.ErrCodeUnauthorized, "Your session has expired"))
		return false
	}

	s.mu.Lock()
	if s.ownsLocked(sl, epoch) {
		s.loading = true
	}
	s.mu.Unlock()

	identity, err := s.creds.Verify(ctx, p.category, p.token)
	if err == nil && identity == nil {
		err = apperrors.New(apperrors.ErrCodeMalformed, "Unexpected response from the server")
	}
	if err != nil {
		s.failCheck(ctx, sl, epoch, start, p.category, classifyCallError(ctx, err, apperrors.ErrCodeUnauthorized))
		return false
	}

	p.identity = identity.Clone()
	p.role = s.roles.Resolve(identity, p.category)

	applied, writeErr := s.settle(ctx, sl, epoch,
		func(ctx context.Context) error {
			entries, err := encodeIdentity(p.identity)
			if err != nil {
				return err
			}
			return s.store.Set(ctx, entries)
		},
		func(error) {
			s.current = &p
			s.loading = false
		},
	)
	if !applied {
		s.emitNoop("check", p.category)
		return s.Snapshot().IsAuthenticated()
	}
	if writeErr != nil {
		// The verified session stays usable for this process.
		s.logger.WarnContext(ctx, "persist refreshed identity failed", "error", writeErr)
	}

	s.logger.DebugContext(ctx, "session verified", "category", p.category.String(), "role", string(p.role))
	s.emit("check", p.category, start, nil)
	s.publishSignedIn(p.category, true)
	s.record(ctx, "verified", p.category)
	return true
}

// failCheck clears the store and memory after a failed check.
func (s *SessionService) failCheck(ctx context.Context, sl *slot, epoch uint64, start time.Time, category domainauth.Category, cause error) {
	applied, clearErr := s.settle(ctx, sl, epoch,
		s.clearStore,
		func(error) {
			s.current = nil
			s.loading = false
		},
	)
	if clearErr != nil {
		s.logger.WarnContext(ctx, "clear session after failed check", "error", clearErr)
	}
	if !applied {
		return
	}
	if errors.Is(cause, errNoRecord) {
		s.emitNoop("check", category)
		return
	}
	level := slog.LevelInfo
	if apperrors.HasCode(cause, apperrors.ErrCodeTransport, apperrors.ErrCodeStorage) {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "session check failed", "category", category.String(), "code", string(apperrors.GetCode(cause)))
	s.emit("check", category, start, cause)
	s.publishSignedIn(category, false)
	if category.Valid() {
		s.record(ctx, "verify_failed", category)
	}
}

func checkGrant(g ports.Grant) error {
	if g.Token == "" || g.Identity == nil {
		return apperrors.New(apperrors.ErrCodeMalformed, "Unexpected response from the server")
	}
	return nil
}

// classifyCallError gives plain errors from a credential service a code.
func classifyCallError(ctx context.Context, err error, fallback apperrors.ErrorCode) error {
	if apperrors.GetCode(err) != "" {
		return err
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return apperrors.Wrap(err, apperrors.ErrCodeCanceled, "The request was canceled")
	}
	return apperrors.Wrap(err, fallback, err.Error())
}
