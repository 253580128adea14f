package command

import (
	"context"

	"github.com/goliatone/go-authsession/core"
	"github.com/goliatone/go-authsession/idempotency"
	gocmd "github.com/goliatone/go-command"
)

// SessionService is the mutating surface of the session manager.
type SessionService interface {
	Start(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Session() core.Session
}

type StartSessionCommand struct {
	service SessionService
}

func NewStartSessionCommand(service SessionService) *StartSessionCommand {
	return &StartSessionCommand{service: service}
}

// Execute starts the session and stores the resulting snapshot. A rejected
// initialization is returned after the snapshot is stored, since the session
// is still usable as unauthenticated.
func (c *StartSessionCommand) Execute(ctx context.Context, msg StartSessionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: session service is required")
	}
	err := c.service.Start(ctx)
	storeResult(ctx, c.service.Session())
	return err
}

type LoginCommand struct {
	service SessionService
}

func NewLoginCommand(service SessionService) *LoginCommand {
	return &LoginCommand{service: service}
}

func (c *LoginCommand) Execute(ctx context.Context, msg LoginMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: session service is required")
	}
	return c.service.Login(ctx)
}

type LogoutCommand struct {
	service SessionService
}

func NewLogoutCommand(service SessionService) *LogoutCommand {
	return &LogoutCommand{service: service}
}

func (c *LogoutCommand) Execute(ctx context.Context, msg LogoutMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: session service is required")
	}
	return c.service.Logout(ctx)
}

type MintIdempotencyKeyCommand struct{}

func NewMintIdempotencyKeyCommand() *MintIdempotencyKeyCommand {
	return &MintIdempotencyKeyCommand{}
}

func (c *MintIdempotencyKeyCommand) Execute(ctx context.Context, msg MintIdempotencyKeyMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	var token idempotency.Token
	if msg.Regenerate {
		token = msg.Holder.Regenerate()
	} else {
		token = msg.Holder.Current()
	}
	storeResult(ctx, token)
	return nil
}

type ResolveSubmissionCommand struct{}

func NewResolveSubmissionCommand() *ResolveSubmissionCommand {
	return &ResolveSubmissionCommand{}
}

func (c *ResolveSubmissionCommand) Execute(ctx context.Context, msg ResolveSubmissionMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	storeResult(ctx, msg.Holder.Regenerate())
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
