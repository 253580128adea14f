package query

import "strings"

const (
	TypeSessionStatus   = "authsession.query.session.status"
	TypeResolveEndpoint = "authsession.query.endpoint.resolve"
)

type SessionStatusMessage struct{}

func (SessionStatusMessage) Type() string { return TypeSessionStatus }

func (SessionStatusMessage) Validate() error { return nil }

// ResolveEndpointMessage names a resource collection and optional path
// segments below its base URL.
type ResolveEndpointMessage struct {
	Resource string
	Segments []string
}

func (ResolveEndpointMessage) Type() string { return TypeResolveEndpoint }

func (m ResolveEndpointMessage) Validate() error {
	if strings.TrimSpace(m.Resource) == "" {
		return queryValidationError("resource", "is required")
	}
	return nil
}
