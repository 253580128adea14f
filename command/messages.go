package command

import "github.com/goliatone/go-authsession/idempotency"

const (
	TypeStartSession      = "authsession.command.session.start"
	TypeLogin             = "authsession.command.session.login"
	TypeLogout            = "authsession.command.session.logout"
	TypeMintIdempotency   = "authsession.command.idempotency.mint"
	TypeResolveSubmission = "authsession.command.idempotency.resolve"
)

type StartSessionMessage struct{}

func (StartSessionMessage) Type() string { return TypeStartSession }

func (StartSessionMessage) Validate() error { return nil }

type LoginMessage struct{}

func (LoginMessage) Type() string { return TypeLogin }

func (LoginMessage) Validate() error { return nil }

type LogoutMessage struct{}

func (LogoutMessage) Type() string { return TypeLogout }

func (LogoutMessage) Validate() error { return nil }

// MintIdempotencyKeyMessage asks for the key of the pending submission held
// by Holder. Regenerate discards the held key first.
type MintIdempotencyKeyMessage struct {
	Holder     *idempotency.Holder
	Regenerate bool
}

func (MintIdempotencyKeyMessage) Type() string { return TypeMintIdempotency }

func (m MintIdempotencyKeyMessage) Validate() error {
	if m.Holder == nil {
		return commandValidationError("holder", "is required")
	}
	return nil
}

// ResolveSubmissionMessage marks the submission held by Holder as resolved so
// the next independent submission gets a fresh key.
type ResolveSubmissionMessage struct {
	Holder *idempotency.Holder
}

func (ResolveSubmissionMessage) Type() string { return TypeResolveSubmission }

func (m ResolveSubmissionMessage) Validate() error {
	if m.Holder == nil {
		return commandValidationError("holder", "is required")
	}
	return nil
}
