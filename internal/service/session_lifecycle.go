package service

import (
	"context"
	"net/http"

	domainauth "github.com/target/estate-portal/internal/domain/auth"
	apperrors "github.com/target/estate-portal/internal/errors"
	"github.com/target/estate-portal/internal/ports"
)

// Logout ends the session unconditionally and asks the shell to discard all
// in-memory state and navigate to the application root. Any attempt still in
// flight is abandoned. Calling Logout without a session is harmless.
//
// Memory is always cleared; the returned error only reports a store that could
// not be emptied.
func (s *SessionService) Logout(ctx context.Context) error {
	start := s.now()
	category, _ := s.endSession("")

	s.writeMu.Lock()
	err := s.clearStore(context.WithoutCancel(ctx))
	s.writeMu.Unlock()

	if err != nil {
		s.logger.ErrorContext(ctx, "clear session on logout failed", "error", err)
	} else {
		s.logger.InfoContext(ctx, "session ended", "category", category.String())
	}
	s.emit("logout", category, start, err)
	s.publishSignedIn(category, false)
	if category.Valid() {
		s.record(ctx, "logout", category)
	}

	if s.shell != nil {
		s.shell.Reset(ctx, ports.Navigation{Target: s.routes.Root, Reason: ports.ReasonLogout})
	}
	return err
}

// endSession clears memory and invalidates every outstanding attempt. With a
// non-empty token it only acts while that token is still current. It returns
// the category of the session that ended.
func (s *SessionService) endSession(token string) (domainauth.Category, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token != "" && (s.current == nil || s.current.token != token) {
		return domainauth.CategoryNone, false
	}

	var category domainauth.Category
	if s.current != nil {
		category = s.current.category
	}
	s.epoch++
	s.current = nil
	s.inflight = nil
	s.loading = false
	s.lastError = ""
	return category, true
}

// dropPreviousLocked reports whether a principal is about to be replaced or
// cleared by a sign-in attempt. Requests still running for it lose their
// epoch, so none of them can write back into the next session.
func (s *SessionService) dropPreviousLocked() bool {
	if s.current == nil {
		return false
	}
	s.epoch++
	return true
}

// resetForSwitch discards state cached for the previous principal. It runs
// outside the locks, after the new outcome is in place.
func (s *SessionService) resetForSwitch(ctx context.Context, op, target string) {
	if s.shell == nil {
		return
	}
	s.logger.InfoContext(ctx, "previous session discarded", "op", op)
	s.shell.Reset(ctx, ports.Navigation{Target: target, Reason: ports.ReasonSwitched})
}

// HandleUnauthorized is called by the authorized client when a request made
// with token drew a 401. If token is still the current credential the session
// is cleared and the shell is sent to sign-in; a 401 for a token that has
// already been replaced is ignored.
func (s *SessionService) HandleUnauthorized(req *http.Request, token string) {
	ctx := context.WithoutCancel(req.Context())
	start := s.now()

	category, ended := s.endSession(token)
	if !ended {
		s.logger.DebugContext(ctx, "ignoring 401 for a stale credential", "path", req.URL.Path)
		return
	}

	s.writeMu.Lock()
	err := s.clearStore(ctx)
	s.writeMu.Unlock()
	if err != nil {
		s.logger.ErrorContext(ctx, "clear session after 401 failed", "error", err)
	}

	s.logger.InfoContext(ctx, "session expired", "category", category.String(), "path", req.URL.Path)
	s.emit("expired", category, start, err)
	s.publishSignedIn(category, false)
	s.record(ctx, "expired", category)

	if s.shell != nil {
		s.shell.Reset(ctx, ports.Navigation{Target: s.routes.SignIn, Reason: ports.ReasonExpired})
	}
}

// UpdateUser merges partial into the current identity, persists it and
// returns the merged record. Without a session it returns partial merged
// into an empty record and persists nothing.
//
// The role is not re-derived from local edits; only data from the authority
// can change it.
func (s *SessionService) UpdateUser(ctx context.Context, partial domainauth.Identity) (domainauth.Identity, error) {
	s.mu.Lock()
	p := s.current
	epoch := s.epoch
	s.mu.Unlock()

	if p == nil {
		return domainauth.Identity{}.Merge(partial), nil
	}
	merged := p.identity.Merge(partial)

	entries, err := encodeIdentity(merged)
	if err != nil {
		return p.identity.Clone(), apperrors.Wrap(err, apperrors.ErrCodeValidation, "Profile contains values that cannot be saved")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if !s.stillCurrent(p.token, epoch) {
		return merged, apperrors.Superseded("update user")
	}
	if err := s.store.Set(context.WithoutCancel(ctx), entries); err != nil {
		s.logger.ErrorContext(ctx, "persist updated identity failed", "error", err)
		return p.identity.Clone(), apperrors.Wrap(err, apperrors.ErrCodeStorage, "Could not save your profile")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch || s.current == nil || s.current.token != p.token {
		return merged, apperrors.Superseded("update user")
	}
	next := *s.current
	next.identity = merged
	s.current = &next
	return merged.Clone(), nil
}

// RefreshUser fetches a fresh identity for the current session without
// touching the loading flag or LastError. A failure is logged and returned
// but never ends the session: this is a data refresh, not a validity check.
// The request bypasses the authorized client, so a 401 here does not
// trigger a forced logout.
func (s *SessionService) RefreshUser(ctx context.Context) error {
	start := s.now()

	s.mu.Lock()
	p := s.current
	epoch := s.epoch
	s.mu.Unlock()

	if p == nil {
		return nil
	}

	identity, err := s.creds.Verify(ctx, p.category, p.token)
	if err == nil && identity == nil {
		err = apperrors.New(apperrors.ErrCodeMalformed, "Unexpected response from the server")
	}
	if err != nil {
		s.logger.WarnContext(ctx, "refresh user failed", "category", p.category.String(), "error", err)
		s.emit("refresh", p.category, start, err)
		return err
	}

	entries, err := encodeIdentity(identity)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeMalformed, "Unexpected response from the server")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if !s.stillCurrent(p.token, epoch) {
		return nil
	}
	if err := s.store.Set(context.WithoutCancel(ctx), entries); err != nil {
		s.logger.WarnContext(ctx, "persist refreshed identity failed", "error", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch || s.current == nil || s.current.token != p.token {
		return nil
	}
	next := *s.current
	next.identity = identity.Clone()
	next.role = s.roles.Resolve(identity, next.category)
	s.current = &next
	s.emit("refresh", next.category, start, nil)
	return nil
}

func (s *SessionService) stillCurrent(token string, epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch == epoch && s.current != nil && s.current.token == token
}
