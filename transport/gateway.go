package transport

import (
	"net/http"
	"strings"

	"github.com/goliatone/go-authsession/core"
	goerrors "github.com/goliatone/go-errors"
)

const (
	HeaderAuthorization = "Authorization"
	bearerPrefix        = "Bearer "
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Gateway forwards requests to Client, attaching the session's bearer token
// when Source reports an authenticated session with a non-empty token.
// Responses and errors are returned untouched.
type Gateway struct {
	Client HTTPDoer
	Source core.TokenSource
}

func NewGateway(source core.TokenSource, client HTTPDoer) *Gateway {
	if client == nil {
		client = &http.Client{Timeout: defaultRESTClientTimeout}
	}
	return &Gateway{Client: client, Source: source}
}

func (g *Gateway) Do(req *http.Request) (*http.Response, error) {
	if g == nil || g.Client == nil {
		return nil, transportError(
			"transport: gateway requires an http client",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			map[string]any{"component": "gateway"},
		)
	}
	if req == nil {
		return nil, transportError(
			"transport: request is required",
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			map[string]any{"component": "gateway"},
		)
	}
	return g.Client.Do(Authorize(req, g.Source))
}

// Authorize returns req unchanged when source has no usable token, otherwise a
// clone carrying the bearer header. The caller's request is never mutated.
func Authorize(req *http.Request, source core.TokenSource) *http.Request {
	token, ok := bearerToken(source)
	if !ok || req == nil {
		return req
	}
	authorized := req.Clone(req.Context())
	if authorized.Header == nil {
		authorized.Header = http.Header{}
	}
	authorized.Header.Set(HeaderAuthorization, bearerPrefix+token)
	return authorized
}

func bearerToken(source core.TokenSource) (string, bool) {
	if source == nil || !source.IsAuthenticated() {
		return "", false
	}
	token := strings.TrimSpace(source.CurrentToken())
	return token, token != ""
}

// RoundTripper applies the gateway rule at the http.RoundTripper layer.
type RoundTripper struct {
	Source core.TokenSource
	Base   http.RoundTripper
}

func (rt *RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	base := http.DefaultTransport
	var source core.TokenSource
	if rt != nil {
		source = rt.Source
		if rt.Base != nil {
			base = rt.Base
		}
	}
	if crossHostRedirect(req) {
		return base.RoundTrip(req)
	}
	return base.RoundTrip(Authorize(req, source))
}

// crossHostRedirect reports whether req follows a redirect to another host.
// http.Client drops Authorization on such hops and it must stay dropped.
func crossHostRedirect(req *http.Request) bool {
	if req == nil || req.Response == nil || req.Response.Request == nil || req.Response.Request.URL == nil || req.URL == nil {
		return false
	}
	return !strings.EqualFold(req.URL.Host, req.Response.Request.URL.Host)
}

// NewHTTPClient returns a copy of base whose transport authorizes every
// request from source. A nil base yields a client with the default timeout.
func NewHTTPClient(source core.TokenSource, base *http.Client) *http.Client {
	client := &http.Client{Timeout: defaultRESTClientTimeout}
	if base != nil {
		copied := *base
		client = &copied
	}
	client.Transport = &RoundTripper{Source: source, Base: client.Transport}
	return client
}

var (
	_ HTTPDoer          = (*Gateway)(nil)
	_ HTTPDoer          = (*http.Client)(nil)
	_ http.RoundTripper = (*RoundTripper)(nil)
)
