package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

func TestSessionManager_StartAuthenticated(t *testing.T) {
	provider := authenticatingProvider("token-1", "maria")
	manager := newTestManager(t, provider)

	if manager.IsInitialized() {
		t.Fatalf("expected manager to start uninitialized")
	}
	if got := manager.Session().Phase; got != PhaseUninitialized {
		t.Fatalf("expected uninitialized phase, got %q", got)
	}
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !manager.IsInitialized() || !manager.IsAuthenticated() {
		t.Fatalf("expected initialized authenticated session, got %#v", manager.Session())
	}
	if manager.CurrentToken() != "token-1" {
		t.Fatalf("expected token-1, got %q", manager.CurrentToken())
	}
	if manager.CurrentIdentity() != "maria" {
		t.Fatalf("expected identity maria, got %q", manager.CurrentIdentity())
	}
}

func TestSessionManager_StartUnauthenticated(t *testing.T) {
	provider := &fakeIdentityProvider{}
	manager := newTestManager(t, provider)

	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	session := manager.Session()
	if session.Phase != PhaseUnauthenticated || !session.Initialized {
		t.Fatalf("expected initialized unauthenticated session, got %#v", session)
	}
	if session.Token != "" || session.Identity != "" {
		t.Fatalf("expected no token or identity, got %#v", session)
	}
}

func TestSessionManager_StartPassesOnLoad(t *testing.T) {
	provider := &fakeIdentityProvider{}
	cfg := DefaultConfig()
	cfg.Provider.OnLoad = OnLoadCheckSSO
	manager, err := NewSessionManager(cfg, provider)
	if err != nil {
		t.Fatalf("new session manager: %v", err)
	}
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(provider.initOpts) != 1 || provider.initOpts[0].OnLoad != OnLoadCheckSSO {
		t.Fatalf("expected check-sso init options, got %#v", provider.initOpts)
	}
}

func TestSessionManager_StartTwiceInitializesOnce(t *testing.T) {
	provider := authenticatingProvider("token-1", "maria")
	manager := newTestManager(t, provider)

	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("first start: %v", err)
	}
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("second start: %v", err)
	}
	if got := provider.calls(); got != 1 {
		t.Fatalf("expected init exactly once, got %d", got)
	}
}

func TestSessionManager_ConcurrentStartInitializesOnce(t *testing.T) {
	release := make(chan struct{})
	provider := &fakeIdentityProvider{}
	provider.initFn = func(context.Context, InitOptions) (bool, error) {
		<-release
		provider.setCredential("token-1", "maria")
		return true, nil
	}
	manager := newTestManager(t, provider)

	first := make(chan error, 1)
	go func() { first <- manager.Start(context.Background()) }()
	waitFor(t, func() bool { return provider.calls() == 1 })

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := manager.Start(context.Background()); err != nil {
				t.Errorf("concurrent start: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := manager.Session().Phase; got != PhaseInitializing {
		t.Fatalf("expected initializing while handshake pending, got %q", got)
	}
	if manager.IsInitialized() {
		t.Fatalf("expected not initialized while handshake pending")
	}

	close(release)
	if err := <-first; err != nil {
		t.Fatalf("first start: %v", err)
	}
	if got := provider.calls(); got != 1 {
		t.Fatalf("expected init exactly once, got %d", got)
	}
	if !manager.IsAuthenticated() {
		t.Fatalf("expected authenticated after handshake")
	}
}

func TestSessionManager_StartRejectedSettlesUnauthenticated(t *testing.T) {
	provider := &fakeIdentityProvider{}
	provider.initFn = func(context.Context, InitOptions) (bool, error) {
		return false, errors.New("issuer unreachable")
	}
	manager := newTestManager(t, provider)

	err := manager.Start(context.Background())
	if err == nil {
		t.Fatalf("expected session init error")
	}
	var initErr *SessionInitError
	if !errors.As(err, &initErr) {
		t.Fatalf("expected SessionInitError, got %T", err)
	}
	if !errors.Is(err, ErrSessionInit) {
		t.Fatalf("expected ErrSessionInit in chain")
	}
	if !initErr.SessionInitFailure() {
		t.Fatalf("expected session init failure marker")
	}
	rich := initErr.ToServiceError()
	if rich.TextCode != SessionErrorInitFailed || rich.Category != goerrors.CategoryAuth {
		t.Fatalf("unexpected envelope %q %q", rich.TextCode, rich.Category)
	}

	session := manager.Session()
	if session.Phase != PhaseUnauthenticated || !session.Initialized {
		t.Fatalf("expected initialized unauthenticated session, got %#v", session)
	}
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("expected later start to be a no-op, got %v", err)
	}
	if got := provider.calls(); got != 1 {
		t.Fatalf("expected init exactly once, got %d", got)
	}
}

func TestSessionManager_LogoutEventClearsSession(t *testing.T) {
	provider := authenticatingProvider("token-1", "maria")
	manager := newTestManager(t, provider)
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if manager.CurrentToken() == "" {
		t.Fatalf("expected token before logout")
	}

	provider.emit(AuthEventLogout)

	if manager.IsAuthenticated() {
		t.Fatalf("expected unauthenticated after logout event")
	}
	if manager.CurrentToken() != "" || manager.CurrentIdentity() != "" {
		t.Fatalf("expected cleared token and identity, got %#v", manager.Session())
	}
	if !manager.IsInitialized() {
		t.Fatalf("expected initialized to survive logout")
	}
}

func TestSessionManager_SuccessEventRefreshesCredential(t *testing.T) {
	provider := &fakeIdentityProvider{}
	manager := newTestManager(t, provider)
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if manager.IsAuthenticated() {
		t.Fatalf("expected unauthenticated start")
	}

	provider.setCredential("token-2", "luis")
	provider.emit(AuthEventSuccess)
	if manager.CurrentToken() != "token-2" || manager.CurrentIdentity() != "luis" {
		t.Fatalf("expected refreshed credential, got %#v", manager.Session())
	}

	provider.setCredential("token-3", "luis")
	provider.emit(AuthEventSuccess)
	if manager.CurrentToken() != "token-3" {
		t.Fatalf("expected renewed token, got %q", manager.CurrentToken())
	}
}

func TestSessionManager_EventDuringInitIsOverwrittenByResolution(t *testing.T) {
	release := make(chan struct{})
	provider := &fakeIdentityProvider{}
	provider.initFn = func(context.Context, InitOptions) (bool, error) {
		<-release
		provider.setCredential("", "")
		return false, nil
	}
	manager := newTestManager(t, provider)

	done := make(chan error, 1)
	go func() { done <- manager.Start(context.Background()) }()
	waitFor(t, func() bool { return provider.calls() == 1 })

	provider.setCredential("early", "ana")
	provider.emit(AuthEventSuccess)
	session := manager.Session()
	if session.Phase != PhaseAuthenticated || session.Initialized {
		t.Fatalf("expected early event applied before initialization resolved, got %#v", session)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("start: %v", err)
	}
	session = manager.Session()
	if session.Phase != PhaseUnauthenticated || !session.Initialized || session.Token != "" {
		t.Fatalf("expected resolution to overwrite early event, got %#v", session)
	}
}

func TestSessionManager_UnknownEventIgnored(t *testing.T) {
	provider := authenticatingProvider("token-1", "maria")
	manager := newTestManager(t, provider)
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	provider.emit(AuthEventType("token_expired"))
	if !manager.IsAuthenticated() || manager.CurrentToken() != "token-1" {
		t.Fatalf("expected unknown event to leave session untouched, got %#v", manager.Session())
	}
}

func TestSessionManager_LoginLogoutDelegateWithoutLocalChange(t *testing.T) {
	provider := authenticatingProvider("token-1", "maria")
	manager := newTestManager(t, provider)
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := manager.Logout(context.Background()); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if provider.logoutCalls != 1 {
		t.Fatalf("expected provider logout call")
	}
	if !manager.IsAuthenticated() {
		t.Fatalf("expected session to change only through auth events")
	}

	if err := manager.Login(context.Background()); err != nil {
		t.Fatalf("login: %v", err)
	}
	if provider.loginCalls != 1 {
		t.Fatalf("expected provider login call")
	}
}

func TestSessionManager_LoginErrorMapped(t *testing.T) {
	provider := &fakeIdentityProvider{loginErr: errors.New("provider unauthorized")}
	manager := newTestManager(t, provider)

	err := manager.Login(context.Background())
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected mapped error, got %T", err)
	}
	if rich.TextCode != SessionErrorUnauthenticated || rich.Category != goerrors.CategoryAuth {
		t.Fatalf("unexpected text code %q", rich.TextCode)
	}
}

func TestSessionManager_SubscribeReceivesTransitions(t *testing.T) {
	provider := authenticatingProvider("token-1", "maria")
	manager := newTestManager(t, provider)

	var mu sync.Mutex
	var causes []TransitionCause
	unsubscribe := manager.Subscribe(func(_ context.Context, transition Transition) {
		mu.Lock()
		defer mu.Unlock()
		causes = append(causes, transition.Cause)
	})

	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	provider.emit(AuthEventLogout)
	unsubscribe()
	unsubscribe()
	provider.emit(AuthEventSuccess)

	mu.Lock()
	defer mu.Unlock()
	expected := []TransitionCause{CauseInitStarted, CauseInitResolved, CauseAuthLogout}
	if len(causes) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, causes)
	}
	for i := range expected {
		if causes[i] != expected[i] {
			t.Fatalf("expected %v, got %v", expected, causes)
		}
	}
}

func TestSessionManager_WaitInitialized(t *testing.T) {
	release := make(chan struct{})
	provider := &fakeIdentityProvider{}
	provider.initFn = func(context.Context, InitOptions) (bool, error) {
		<-release
		return false, nil
	}
	manager := newTestManager(t, provider)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := manager.WaitInitialized(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded before start, got %v", err)
	}

	go func() { _ = manager.Start(context.Background()) }()
	waitFor(t, func() bool { return provider.calls() == 1 })
	close(release)

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	if err := manager.WaitInitialized(waitCtx); err != nil {
		t.Fatalf("wait initialized: %v", err)
	}
	if !manager.IsInitialized() {
		t.Fatalf("expected initialized after wait")
	}
}

func TestSessionManager_CustomIdentityResolver(t *testing.T) {
	provider := authenticatingProvider("token-1", "maria")
	manager := newTestManager(t, provider, WithIdentityResolver(func(token string, _ map[string]any) string {
		return "resolved:" + token
	}))
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := manager.CurrentIdentity(); got != "resolved:token-1" {
		t.Fatalf("expected custom identity, got %q", got)
	}
}

func TestNewSessionManager_RequiresProvider(t *testing.T) {
	_, err := NewSessionManager(DefaultConfig(), nil)
	if err == nil {
		t.Fatalf("expected provider required error")
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected rich error, got %T", err)
	}
	if rich.TextCode != SessionErrorProviderRequired {
		t.Fatalf("expected %q, got %q", SessionErrorProviderRequired, rich.TextCode)
	}
}

func waitFor(t *testing.T, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestSessionManager_LogoutDuringInitIsNotOverwritten(t *testing.T) {
	provider := &fakeIdentityProvider{}
	provider.initFn = func(context.Context, InitOptions) (bool, error) {
		provider.setCredential("token-1", "maria")
		provider.emit(AuthEventLogout)
		return true, nil
	}
	manager := newTestManager(t, provider)

	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	session := manager.Session()
	if session.Phase != PhaseUnauthenticated || session.Token != "" {
		t.Fatalf("expected logout to win over init result, got %#v", session)
	}
	if !session.Initialized {
		t.Fatalf("expected session to be initialized")
	}
	if err := manager.WaitInitialized(context.Background()); err != nil {
		t.Fatalf("wait initialized: %v", err)
	}
}

func TestResolveConfig_LayersDefaultsUnderPartialConfig(t *testing.T) {
	resolved, err := ResolveConfig(Config{Provider: ProviderConfig{ClientID: "frontend"}})
	if err != nil {
		t.Fatalf("resolve config: %v", err)
	}
	if resolved.Provider.ClientID != "frontend" {
		t.Fatalf("expected runtime client id, got %q", resolved.Provider.ClientID)
	}
	if len(resolved.Provider.Scopes) != 1 || resolved.Provider.Scopes[0] != "openid" {
		t.Fatalf("expected default scopes, got %#v", resolved.Provider.Scopes)
	}
	if resolved.ServiceName != "authsession" || resolved.Provider.OnLoad != OnLoadLoginRequired {
		t.Fatalf("expected defaults, got %#v", resolved)
	}
}
