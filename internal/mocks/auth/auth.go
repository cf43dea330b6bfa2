package auth

// Package auth contains simple hand-written test doubles for session ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"maps"
	"sort"
	"sync"
	"time"

	domainauth "github.com/target/estate-portal/internal/domain/auth"
	"github.com/target/estate-portal/internal/domain/dashboard"
	"github.com/target/estate-portal/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.CredentialService = (*FakeCredentialService)(nil)
	_ ports.KeyStore          = (*MemoryKeyStore)(nil)
	_ ports.Shell             = (*RecordingShell)(nil)
	_ ports.TokenInspector    = StaticInspector(false)
	_ ports.DashboardSource   = (*FakeDashboardSource)(nil)
)

// ErrRejected is the default failure of FakeCredentialService for unknown credentials.
var ErrRejected = errors.New("invalid email or password")

// FakeCredentialService simulates the authentication authority.
// Func fields override the default behavior; Gate, when set, blocks every
// call until a value is received, which lets tests hold a request in flight.
type FakeCredentialService struct {
	LoginFunc    func(ctx context.Context, c domainauth.Category, in ports.Credentials) (ports.Grant, error)
	RegisterFunc func(ctx context.Context, c domainauth.Category, in ports.Registration) (ports.Grant, error)
	VerifyFunc   func(ctx context.Context, c domainauth.Category, token string) (domainauth.Identity, error)

	// Gate blocks each call until a value is received (nil means no blocking).
	Gate chan struct{}
	// Started receives one value as each call begins (nil means no signal).
	Started chan struct{}

	mu        sync.Mutex
	logins    int
	registers int
	verifies  int
}

// NewFakeCredentialService returns a fake that accepts alice@example.com/secret123.
func NewFakeCredentialService() *FakeCredentialService {
	return &FakeCredentialService{}
}

func (f *FakeCredentialService) enter(ctx context.Context, counter *int) error {
	f.mu.Lock()
	*counter++
	f.mu.Unlock()

	if f.Started != nil {
		f.Started <- struct{}{}
	}
	if f.Gate == nil {
		return nil
	}
	select {
	case <-f.Gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *FakeCredentialService) Login(ctx context.Context, c domainauth.Category, in ports.Credentials) (ports.Grant, error) {
	if err := f.enter(ctx, &f.logins); err != nil {
		return ports.Grant{}, err
	}
	if f.LoginFunc != nil {
		return f.LoginFunc(ctx, c, in)
	}
	if in.Email != "alice@example.com" || in.Password != "secret123" {
		return ports.Grant{}, ErrRejected
	}
	return ports.Grant{
		Token:    "T1",
		Identity: domainauth.Identity{"name": "Alice", "email": in.Email, "role": "user"},
		Category: c,
	}, nil
}

func (f *FakeCredentialService) Register(ctx context.Context, c domainauth.Category, in ports.Registration) (ports.Grant, error) {
	if err := f.enter(ctx, &f.registers); err != nil {
		return ports.Grant{}, err
	}
	if f.RegisterFunc != nil {
		return f.RegisterFunc(ctx, c, in)
	}
	return ports.Grant{
		Token:    "R1",
		Identity: domainauth.Identity{"name": in.Name, "email": in.Email, "role": string(domainauth.DefaultRole(c))},
		Category: c,
	}, nil
}

func (f *FakeCredentialService) Verify(ctx context.Context, c domainauth.Category, token string) (domainauth.Identity, error) {
	if err := f.enter(ctx, &f.verifies); err != nil {
		return nil, err
	}
	if f.VerifyFunc != nil {
		return f.VerifyFunc(ctx, c, token)
	}
	return domainauth.Identity{"name": "Alice", "role": "user"}, nil
}

// Calls returns how many login, register and verify calls were made.
func (f *FakeCredentialService) Calls() (logins, registers, verifies int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logins, f.registers, f.verifies
}

// MemoryKeyStore is an in-memory KeyStore with failure injection.
type MemoryKeyStore struct {
	mu      sync.Mutex
	entries map[string]string

	// SetErr fails every Set without writing anything.
	SetErr error
	// PartialSet makes Set write only the lexically first entry, then fail.
	PartialSet bool
	// DeleteErr fails every Delete without removing anything.
	DeleteErr error
	// GetErr fails every Get.
	GetErr error

	sets    int
	deletes int
}

// NewMemoryKeyStore creates a store pre-populated with seed.
func NewMemoryKeyStore(seed map[string]string) *MemoryKeyStore {
	s := &MemoryKeyStore{entries: map[string]string{}}
	maps.Copy(s.entries, seed)
	return s
}

func (s *MemoryKeyStore) Get(_ context.Context, keys ...string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := s.entries[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (s *MemoryKeyStore) Set(_ context.Context, entries map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets++
	if s.SetErr != nil {
		return s.SetErr
	}
	if s.PartialSet {
		keys := make([]string, 0, len(entries))
		for k := range entries {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if len(keys) > 0 {
			s.entries[keys[0]] = entries[keys[0]]
		}
		return errors.New("simulated partial write")
	}
	maps.Copy(s.entries, entries)
	return nil
}

func (s *MemoryKeyStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	for _, k := range keys {
		delete(s.entries, k)
	}
	return nil
}

// Snapshot returns a copy of every stored entry.
func (s *MemoryKeyStore) Snapshot() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.entries)
}

// SetCalls returns how many times Set was invoked.
func (s *MemoryKeyStore) SetCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sets
}

// DeleteCalls returns how many times Delete was invoked.
func (s *MemoryKeyStore) DeleteCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deletes
}

// RecordingShell records every reset request.
type RecordingShell struct {
	mu     sync.Mutex
	resets []ports.Navigation
}

func (s *RecordingShell) Reset(_ context.Context, nav ports.Navigation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets = append(s.resets, nav)
}

// Resets returns the recorded navigations in order.
func (s *RecordingShell) Resets() []ports.Navigation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.Navigation(nil), s.resets...)
}

// StaticInspector reports the same expiry verdict for every token.
type StaticInspector bool

func (i StaticInspector) Expired(string, time.Time) bool { return bool(i) }

// FakeDashboardSource returns canned stats per role.
type FakeDashboardSource struct {
	FetchFunc func(ctx context.Context, role domainauth.Role) (dashboard.Stats, error)

	mu    sync.Mutex
	calls int
}

func (f *FakeDashboardSource) FetchDashboard(ctx context.Context, role domainauth.Role) (dashboard.Stats, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()

	if f.FetchFunc != nil {
		return f.FetchFunc(ctx, role)
	}
	return dashboard.Stats{
		Role:      role,
		Values:    map[string]any{"refresh": float64(n)},
		FetchedAt: time.Now(),
	}, nil
}

// Calls returns how many fetches were made.
func (f *FakeDashboardSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
