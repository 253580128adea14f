package command

import (
	"github.com/goliatone/go-authsession/core"
	gocmd "github.com/goliatone/go-command"
)

var (
	_ gocmd.Commander[StartSessionMessage]       = (*StartSessionCommand)(nil)
	_ gocmd.Commander[LoginMessage]              = (*LoginCommand)(nil)
	_ gocmd.Commander[LogoutMessage]             = (*LogoutCommand)(nil)
	_ gocmd.Commander[MintIdempotencyKeyMessage] = (*MintIdempotencyKeyCommand)(nil)
	_ gocmd.Commander[ResolveSubmissionMessage]  = (*ResolveSubmissionCommand)(nil)

	_ SessionService = (*core.SessionManager)(nil)
)
