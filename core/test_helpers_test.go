package core

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeIdentityProvider struct {
	mu          sync.Mutex
	initFn      func(ctx context.Context, opts InitOptions) (bool, error)
	initCalls   int
	initOpts    []InitOptions
	token       string
	claims      map[string]any
	listener    AuthEventListener
	loginErr    error
	logoutErr   error
	loginCalls  int
	logoutCalls int
}

func (p *fakeIdentityProvider) Init(ctx context.Context, opts InitOptions) (bool, error) {
	p.mu.Lock()
	p.initCalls++
	p.initOpts = append(p.initOpts, opts)
	fn := p.initFn
	p.mu.Unlock()
	if fn == nil {
		return false, nil
	}
	return fn(ctx, opts)
}

func (p *fakeIdentityProvider) Token() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.token
}

func (p *fakeIdentityProvider) TokenClaims() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.claims
}

func (p *fakeIdentityProvider) Login(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loginCalls++
	return p.loginErr
}

func (p *fakeIdentityProvider) Logout(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logoutCalls++
	return p.logoutErr
}

func (p *fakeIdentityProvider) SetAuthEventListener(listener AuthEventListener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listener = listener
}

func (p *fakeIdentityProvider) setCredential(token, username string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = token
	if username == "" {
		p.claims = nil
		return
	}
	p.claims = map[string]any{"preferred_username": username}
}

func (p *fakeIdentityProvider) emit(eventType AuthEventType) {
	p.mu.Lock()
	listener := p.listener
	p.mu.Unlock()
	if listener != nil {
		listener(context.Background(), AuthEvent{Type: eventType, OccurredAt: time.Now()})
	}
}

func (p *fakeIdentityProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initCalls
}

func authenticatingProvider(token, username string) *fakeIdentityProvider {
	provider := &fakeIdentityProvider{}
	provider.initFn = func(context.Context, InitOptions) (bool, error) {
		provider.setCredential(token, username)
		return true, nil
	}
	return provider
}

func newTestManager(t *testing.T, provider IdentityProvider, opts ...Option) *SessionManager {
	t.Helper()
	manager, err := NewSessionManager(DefaultConfig(), provider, opts...)
	if err != nil {
		t.Fatalf("new session manager: %v", err)
	}
	return manager
}

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	return l.values, nil
}
