package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type InitOptions struct {
	OnLoad string
}

type AuthEventType string

const (
	AuthEventSuccess AuthEventType = "auth_success"
	AuthEventLogout  AuthEventType = "auth_logout"
)

type AuthEvent struct {
	Type       AuthEventType
	OccurredAt time.Time
}

type AuthEventListener func(ctx context.Context, event AuthEvent)

// IdentityProvider is the external OIDC client the session manager drives.
// Init is called at most once per manager. Events delivered to the listener
// may arrive on any goroutine.
type IdentityProvider interface {
	Init(ctx context.Context, opts InitOptions) (bool, error)
	Token() string
	TokenClaims() map[string]any
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	SetAuthEventListener(listener AuthEventListener)
}

// IdentityResolver derives the principal name from a token and its claims.
type IdentityResolver func(token string, claims map[string]any) string

type SessionListener func(ctx context.Context, transition Transition)

// TokenSource is the read side the request gateway consumes.
type TokenSource interface {
	IsAuthenticated() bool
	CurrentToken() string
}

type SessionReader interface {
	TokenSource
	IsInitialized() bool
	CurrentIdentity() string
	Session() Session
}
