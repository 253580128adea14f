package core

import (
	"strings"
	"time"
)

type Phase string

const (
	PhaseUninitialized   Phase = "uninitialized"
	PhaseInitializing    Phase = "initializing"
	PhaseAuthenticated   Phase = "authenticated"
	PhaseUnauthenticated Phase = "unauthenticated"
)

func (p Phase) String() string {
	return string(p)
}

// Settled reports whether initialization has resolved for this phase.
func (p Phase) Settled() bool {
	return p == PhaseAuthenticated || p == PhaseUnauthenticated
}

// Session is a read-only snapshot. Token and Identity are non-empty only
// while Phase is PhaseAuthenticated.
type Session struct {
	Phase       Phase
	Token       string
	Identity    string
	Initialized bool
}

func (s Session) Authenticated() bool {
	return s.Phase == PhaseAuthenticated
}

type TransitionCause string

const (
	CauseInitStarted  TransitionCause = "init_started"
	CauseInitResolved TransitionCause = "init_resolved"
	CauseInitFailed   TransitionCause = "init_failed"
	CauseAuthSuccess  TransitionCause = "auth_success"
	CauseAuthLogout   TransitionCause = "auth_logout"
)

type Transition struct {
	Cause      TransitionCause
	From       Phase
	To         Session
	OccurredAt time.Time
}

func authenticatedSession(token, identity string, initialized bool) Session {
	return Session{
		Phase:       PhaseAuthenticated,
		Token:       strings.TrimSpace(token),
		Identity:    strings.TrimSpace(identity),
		Initialized: initialized,
	}
}

func unauthenticatedSession(initialized bool) Session {
	return Session{Phase: PhaseUnauthenticated, Initialized: initialized}
}
