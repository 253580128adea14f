package query

import (
	"github.com/goliatone/go-authsession/core"
	gocmd "github.com/goliatone/go-command"
)

var (
	_ gocmd.Querier[SessionStatusMessage, core.Session] = (*SessionStatusQuery)(nil)
	_ gocmd.Querier[ResolveEndpointMessage, string]     = (*ResolveEndpointQuery)(nil)

	_ SessionReader = (*core.SessionManager)(nil)
)
