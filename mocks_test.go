package auth_test

import (
	"context"
	"sync"

	auth "github.com/goliatone/go-auth-frontend"
	"github.com/stretchr/testify/mock"
)

// MockIdentityProvider implements auth.IdentityProvider
type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) Authenticate(ctx context.Context, username, password string) (auth.AuthResult, error) {
	args := m.Called(ctx, username, password)
	return args.Get(0).(auth.AuthResult), args.Error(1)
}

func (m *MockIdentityProvider) LookupUser(ctx context.Context, username string) (auth.UserRecord, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(auth.UserRecord), args.Error(1)
}

func (m *MockIdentityProvider) DeleteUser(ctx context.Context, username string) error {
	args := m.Called(ctx, username)
	return args.Error(0)
}

func (m *MockIdentityProvider) Register(ctx context.Context, username, password string, attributes auth.Attributes) error {
	args := m.Called(ctx, username, password, attributes)
	return args.Error(0)
}

func (m *MockIdentityProvider) ConfirmRegistration(ctx context.Context, username, code string) error {
	args := m.Called(ctx, username, code)
	return args.Error(0)
}

func (m *MockIdentityProvider) ResendCode(ctx context.Context, username string) error {
	args := m.Called(ctx, username)
	return args.Error(0)
}

// MockSessionBackend implements auth.SessionBackend
type MockSessionBackend struct {
	mock.Mock
}

func (m *MockSessionBackend) Load(ctx context.Context, id string) (auth.SessionState, bool, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(auth.SessionState), args.Bool(1), args.Error(2)
}

func (m *MockSessionBackend) Save(ctx context.Context, id string, state auth.SessionState) error {
	args := m.Called(ctx, id, state)
	return args.Error(0)
}

func (m *MockSessionBackend) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// mapBackend is an in-memory auth.SessionBackend for flow tests.
type mapBackend struct {
	mu    sync.Mutex
	items map[string]auth.SessionState
}

func newMapBackend() *mapBackend {
	return &mapBackend{items: map[string]auth.SessionState{}}
}

func (b *mapBackend) Load(_ context.Context, id string) (auth.SessionState, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	state, ok := b.items[id]
	return state, ok, nil
}

func (b *mapBackend) Save(_ context.Context, id string, state auth.SessionState) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items[id] = state
	return nil
}

func (b *mapBackend) Delete(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.items, id)
	return nil
}

func (b *mapBackend) has(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.items[id]
	return ok
}

type recordingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (r *recordingSink) Record(_ context.Context, event auth.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) Events() []auth.ActivityEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]auth.ActivityEvent, len(r.events))
	copy(out, r.events)
	return out
}

type captureLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *captureLogger) add(level, format string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, level+" "+format)
}

func (l *captureLogger) Debug(format string, args ...any) { l.add("DBG", format) }
func (l *captureLogger) Info(format string, args ...any)  { l.add("INF", format) }
func (l *captureLogger) Warn(format string, args ...any)  { l.add("WRN", format) }
func (l *captureLogger) Error(format string, args ...any) { l.add("ERR", format) }

func (l *captureLogger) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.lines))
	copy(out, l.lines)
	return out
}
