package query

import (
	"context"
	"strings"

	"github.com/goliatone/go-authsession/core"
)

type SessionReader interface {
	Session() core.Session
}

type SessionStatusQuery struct {
	reader SessionReader
}

func NewSessionStatusQuery(reader SessionReader) *SessionStatusQuery {
	return &SessionStatusQuery{reader: reader}
}

func (q *SessionStatusQuery) Query(_ context.Context, _ SessionStatusMessage) (core.Session, error) {
	if q == nil || q.reader == nil {
		return core.Session{}, queryDependencyError("query: session reader is required")
	}
	return q.reader.Session(), nil
}

type ResolveEndpointQuery struct {
	endpoints core.EndpointsConfig
}

func NewResolveEndpointQuery(endpoints core.EndpointsConfig) *ResolveEndpointQuery {
	return &ResolveEndpointQuery{endpoints: endpoints}
}

func (q *ResolveEndpointQuery) Query(_ context.Context, msg ResolveEndpointMessage) (string, error) {
	if q == nil {
		return "", queryDependencyError("query: endpoints are required")
	}
	if err := msg.Validate(); err != nil {
		return "", err
	}
	resource := strings.TrimSpace(msg.Resource)
	resolved, err := q.endpoints.URL(resource, msg.Segments...)
	if err != nil {
		return "", queryNotFoundError(err, resource)
	}
	return resolved, nil
}
