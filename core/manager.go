package core

import (
	"context"
	"slices"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

const loggerName = "authsession"

type ManagerDependencies struct {
	Logger           Logger
	LoggerProvider   LoggerProvider
	MetricsRecorder  MetricsRecorder
	ErrorFactory     ErrorFactory
	ErrorMapper      ErrorMapper
	ConfigProvider   ConfigProvider
	OptionsResolver  OptionsResolver
	IdentityResolver IdentityResolver
	Provider         IdentityProvider
}

// SessionManager owns the session lifecycle for one process. It is the only
// writer of the Session; all reads return copies.
type SessionManager struct {
	config           Config
	provider         IdentityProvider
	logger           Logger
	loggerProvider   LoggerProvider
	metricsRecorder  MetricsRecorder
	errorFactory     ErrorFactory
	errorMapper      ErrorMapper
	configProvider   ConfigProvider
	optionsResolver  OptionsResolver
	identityResolver IdentityResolver
	clock            func() time.Time

	mu          sync.Mutex
	session     Session
	eventSeq    uint64
	initialized chan struct{}
	listeners   map[uint64]SessionListener
	nextID      uint64
}

func NewSessionManager(cfg Config, provider IdentityProvider, opts ...Option) (*SessionManager, error) {
	builder := defaultManagerBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	loggerProvider, logger := glog.Resolve(loggerName, builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if loggerProvider != nil {
		if named := loggerProvider.GetLogger(loggerName); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = newSessionErrorMapper(builder.errorFactory)
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.identityResolver == nil {
		builder.identityResolver = PreferredUsernameResolver
	}
	if builder.clock == nil {
		builder.clock = time.Now
	}
	if provider == nil {
		return nil, mapBuildError(builder.errorMapper, ErrProviderRequired)
	}

	finalConfig, err := builder.resolveConfig()
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	return &SessionManager{
		config:           finalConfig,
		provider:         provider,
		logger:           logger,
		loggerProvider:   loggerProvider,
		metricsRecorder:  builder.metricsRecorder,
		errorFactory:     builder.errorFactory,
		errorMapper:      builder.errorMapper,
		configProvider:   builder.configProvider,
		optionsResolver:  builder.optionsResolver,
		identityResolver: builder.identityResolver,
		clock:            builder.clock,
		session:          Session{Phase: PhaseUninitialized},
		initialized:      make(chan struct{}),
		listeners:        map[uint64]SessionListener{},
	}, nil
}

// ResolveConfig layers cfg over the loaded config and defaults the same way
// NewSessionManager does, honouring WithConfigProvider and WithOptionsResolver.
func ResolveConfig(cfg Config, opts ...Option) (Config, error) {
	builder := defaultManagerBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}
	if builder.errorMapper == nil {
		builder.errorMapper = newSessionErrorMapper(builder.errorFactory)
	}
	resolved, err := builder.resolveConfig()
	if err != nil {
		return Config{}, mapBuildError(builder.errorMapper, err)
	}
	return resolved, nil
}

func (b managerBuilder) resolveConfig() (Config, error) {
	configProvider := b.configProvider
	if configProvider == nil {
		configProvider = NewCfgxConfigProvider(nil)
	}
	optionsResolver := b.optionsResolver
	if optionsResolver == nil {
		optionsResolver = GoOptionsResolver{}
	}
	defaults := DefaultConfig()
	loaded, err := configProvider.Load(context.Background(), defaults)
	if err != nil {
		return Config{}, err
	}
	return optionsResolver.Resolve(defaults, loaded, b.runtimeConfig)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (m *SessionManager) Config() Config {
	if m == nil {
		return Config{}
	}
	return m.config
}

func (m *SessionManager) Dependencies() ManagerDependencies {
	if m == nil {
		return ManagerDependencies{}
	}
	return ManagerDependencies{
		Logger:           m.logger,
		LoggerProvider:   m.loggerProvider,
		MetricsRecorder:  m.metricsRecorder,
		ErrorFactory:     m.errorFactory,
		ErrorMapper:      m.errorMapper,
		ConfigProvider:   m.configProvider,
		OptionsResolver:  m.optionsResolver,
		IdentityResolver: m.identityResolver,
		Provider:         m.provider,
	}
}

// Start runs the identity-provider handshake exactly once per manager. Calls
// made after the first return nil immediately without waiting. A rejected
// handshake settles the session as unauthenticated and returns a
// *SessionInitError; callers may treat it as non-fatal.
func (m *SessionManager) Start(ctx context.Context) error {
	if m == nil {
		return ErrProviderRequired
	}
	if ctx == nil {
		ctx = context.Background()
	}

	m.mu.Lock()
	if m.session.Phase != PhaseUninitialized {
		m.mu.Unlock()
		return nil
	}
	transition := m.applyLocked(CauseInitStarted, Session{Phase: PhaseInitializing})
	seq := m.eventSeq
	listeners := m.snapshotListenersLocked()
	m.mu.Unlock()
	m.publish(ctx, transition, listeners, nil)

	m.provider.SetAuthEventListener(m.handleAuthEvent)

	startedAt := m.clock()
	authenticated, err := m.provider.Init(ctx, InitOptions{OnLoad: m.config.Provider.OnLoad})
	m.observeInit(ctx, startedAt, authenticated, err)
	if err != nil {
		m.resolve(ctx, seq, CauseInitFailed, unauthenticatedSession(true), err)
		return &SessionInitError{Cause: err}
	}
	if !authenticated {
		m.resolve(ctx, seq, CauseInitResolved, unauthenticatedSession(true), nil)
		return nil
	}
	token := m.provider.Token()
	identity := m.identityResolver(token, m.provider.TokenClaims())
	m.resolve(ctx, seq, CauseInitResolved, authenticatedSession(token, identity, true), nil)
	return nil
}

// resolve settles initialization. When an auth event was applied after seq
// was taken, that event's session is kept and only marked initialized.
func (m *SessionManager) resolve(ctx context.Context, seq uint64, cause TransitionCause, next Session, err error) {
	m.mu.Lock()
	if m.eventSeq != seq {
		next = m.session
		next.Initialized = true
	}
	transition := m.applyLocked(cause, next)
	select {
	case <-m.initialized:
	default:
		close(m.initialized)
	}
	listeners := m.snapshotListenersLocked()
	m.mu.Unlock()
	m.publish(ctx, transition, listeners, err)
}

func (m *SessionManager) handleAuthEvent(ctx context.Context, event AuthEvent) {
	if m == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	var (
		cause TransitionCause
		next  Session
	)
	switch event.Type {
	case AuthEventSuccess:
		token := m.provider.Token()
		identity := m.identityResolver(token, m.provider.TokenClaims())
		cause = CauseAuthSuccess
		next = authenticatedSession(token, identity, false)
	case AuthEventLogout:
		cause = CauseAuthLogout
		next = unauthenticatedSession(false)
	default:
		m.logWithLevel(ctx, "warn", "auth event ignored", map[string]any{
			"event_type": string(event.Type),
		})
		return
	}

	m.mu.Lock()
	m.eventSeq++
	next.Initialized = m.session.Initialized
	transition := m.applyLocked(cause, next)
	listeners := m.snapshotListenersLocked()
	m.mu.Unlock()
	m.publish(ctx, transition, listeners, nil)
}

func (m *SessionManager) applyLocked(cause TransitionCause, next Session) Transition {
	from := m.session.Phase
	m.session = next
	return Transition{
		Cause:      cause,
		From:       from,
		To:         next,
		OccurredAt: m.clock(),
	}
}

func (m *SessionManager) snapshotListenersLocked() []SessionListener {
	if len(m.listeners) == 0 {
		return nil
	}
	ids := make([]uint64, 0, len(m.listeners))
	for id := range m.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]SessionListener, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.listeners[id])
	}
	return out
}

func (m *SessionManager) publish(ctx context.Context, transition Transition, listeners []SessionListener, err error) {
	m.observeTransition(ctx, transition, err)
	for _, listener := range listeners {
		listener(ctx, transition)
	}
}

func (m *SessionManager) IsInitialized() bool {
	return m.Session().Initialized
}

func (m *SessionManager) IsAuthenticated() bool {
	return m.Session().Phase == PhaseAuthenticated
}

// CurrentToken returns the bearer token, or "" when not authenticated.
func (m *SessionManager) CurrentToken() string {
	return m.Session().Token
}

func (m *SessionManager) CurrentIdentity() string {
	return m.Session().Identity
}

func (m *SessionManager) Session() Session {
	if m == nil {
		return Session{Phase: PhaseUninitialized}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Login asks the provider to authenticate. The session changes later through
// the provider's auth events.
func (m *SessionManager) Login(ctx context.Context) error {
	if m == nil {
		return ErrProviderRequired
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := m.provider.Login(ctx); err != nil {
		m.logWithLevel(ctx, "error", "login failed", map[string]any{"error": err.Error()})
		return m.mapError(err)
	}
	return nil
}

// Logout asks the provider to end the session. The session changes later
// through the provider's auth events.
func (m *SessionManager) Logout(ctx context.Context) error {
	if m == nil {
		return ErrProviderRequired
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := m.provider.Logout(ctx); err != nil {
		m.logWithLevel(ctx, "error", "logout failed", map[string]any{"error": err.Error()})
		return m.mapError(err)
	}
	return nil
}

// Subscribe registers a listener notified after every transition. Listeners
// run outside the manager lock and may be called from the provider's
// goroutines.
func (m *SessionManager) Subscribe(listener SessionListener) (unsubscribe func()) {
	if m == nil || listener == nil {
		return func() {}
	}
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.listeners[id] = listener
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		})
	}
}

// WaitInitialized blocks until initialization has resolved or ctx is done.
func (m *SessionManager) WaitInitialized(ctx context.Context) error {
	if m == nil {
		return ErrProviderRequired
	}
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-m.initialized:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *SessionManager) mapError(err error) error {
	if err == nil {
		return nil
	}
	if m == nil || m.errorMapper == nil {
		return err
	}
	mapped := m.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}
