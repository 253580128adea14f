package authsession

import (
	"context"
	"fmt"
	"net/http"

	"github.com/goliatone/go-authsession/adapters/gologger"
	sessioncommand "github.com/goliatone/go-authsession/command"
	"github.com/goliatone/go-authsession/core"
	"github.com/goliatone/go-authsession/failures"
	"github.com/goliatone/go-authsession/idempotency"
	"github.com/goliatone/go-authsession/identity"
	"github.com/goliatone/go-authsession/providers"
	sessionquery "github.com/goliatone/go-authsession/query"
	"github.com/goliatone/go-authsession/transport"
	glog "github.com/goliatone/go-logger/glog"
)

type Commands struct {
	StartSession       *sessioncommand.StartSessionCommand
	Login              *sessioncommand.LoginCommand
	Logout             *sessioncommand.LogoutCommand
	MintIdempotencyKey *sessioncommand.MintIdempotencyKeyCommand
	ResolveSubmission  *sessioncommand.ResolveSubmissionCommand
}

type Queries struct {
	SessionStatus   *sessionquery.SessionStatusQuery
	ResolveEndpoint *sessionquery.ResolveEndpointQuery
}

// Client owns one session and everything that hangs off it. Requests sent
// through HTTPClient, Gateway or REST carry the session bearer token.
type Client struct {
	manager    *core.SessionManager
	provider   core.IdentityProvider
	gateway    *transport.Gateway
	httpClient *http.Client
	rest       *transport.RESTAdapter
	normalizer *failures.Normalizer
	issuer     *idempotency.Issuer
	userInfo   *identity.UserInfoClient
	commands   Commands
	queries    Queries
}

type ClientOption func(*clientOptions)

type clientOptions struct {
	managerOptions []core.Option
	loggerProvider glog.LoggerProvider
	logger         glog.Logger
	baseClient     *http.Client
	issuer         *idempotency.Issuer
	credentials    providers.CredentialsFunc
	refreshToken   string
}

// WithManagerOptions forwards options to the session manager.
func WithManagerOptions(opts ...core.Option) ClientOption {
	return func(o *clientOptions) {
		o.managerOptions = append(o.managerOptions, opts...)
	}
}

// WithLogging routes manager and normalizer logs through provider and logger.
func WithLogging(provider glog.LoggerProvider, logger glog.Logger) ClientOption {
	return func(o *clientOptions) {
		o.loggerProvider = provider
		o.logger = logger
	}
}

// WithHTTPClient sets the base client wrapped by the gateway.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(o *clientOptions) {
		o.baseClient = client
	}
}

func WithIdempotencyIssuer(issuer *idempotency.Issuer) ClientOption {
	return func(o *clientOptions) {
		o.issuer = issuer
	}
}

// WithCredentials supplies login credentials to the built-in OIDC provider.
func WithCredentials(credentials providers.CredentialsFunc) ClientOption {
	return func(o *clientOptions) {
		o.credentials = credentials
	}
}

// WithRefreshToken seeds the built-in OIDC provider with an existing session.
func WithRefreshToken(token string) ClientOption {
	return func(o *clientOptions) {
		o.refreshToken = token
	}
}

// New builds a client over provider.
func New(cfg Config, provider IdentityProvider, opts ...ClientOption) (*Client, error) {
	options := resolveClientOptions(opts)
	return newClient(cfg, provider, options)
}

// NewOIDC builds a client whose identity provider is an OIDC client
// configured from the resolved provider section of cfg.
func NewOIDC(cfg Config, opts ...ClientOption) (*Client, error) {
	options := resolveClientOptions(opts)
	resolved, err := core.ResolveConfig(cfg, options.managerOptions...)
	if err != nil {
		return nil, err
	}
	oidcConfig := providers.OIDCConfigFromCore(resolved.Provider)
	oidcConfig.Credentials = options.credentials
	oidcConfig.RefreshToken = options.refreshToken
	if options.baseClient != nil {
		oidcConfig.HTTPClient = options.baseClient
	}
	provider, err := providers.NewOIDCClient(oidcConfig)
	if err != nil {
		return nil, err
	}
	return newClient(resolved, provider, options)
}

func resolveClientOptions(opts []ClientOption) clientOptions {
	options := clientOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&options)
	}
	return options
}

func newClient(cfg Config, provider IdentityProvider, options clientOptions) (*Client, error) {
	if provider == nil {
		return nil, fmt.Errorf("authsession: identity provider is required")
	}

	managerOptions := []core.Option{core.WithIdentityResolver(identity.ResolvePrincipal)}
	if options.loggerProvider != nil || options.logger != nil {
		managerOptions = append(managerOptions, gologger.ManagerOptions(options.loggerProvider, options.logger)...)
	}
	managerOptions = append(managerOptions, options.managerOptions...)
	manager, err := core.NewSessionManager(cfg, provider, managerOptions...)
	if err != nil {
		return nil, err
	}
	resolved := manager.Config()

	baseClient := options.baseClient
	if baseClient == nil {
		baseClient = &http.Client{}
	}
	httpClient := transport.NewHTTPClient(manager, baseClient)

	issuer := options.issuer
	if issuer == nil {
		issuer = &idempotency.Issuer{}
	}

	client := &Client{
		manager:    manager,
		provider:   provider,
		gateway:    transport.NewGateway(manager, baseClient),
		httpClient: httpClient,
		normalizer: failures.NewNormalizer(gologger.NormalizerOptions(options.loggerProvider, options.logger, resolved.Errors.Debug)...),
		issuer:     issuer,
	}
	client.rest = transport.NewRESTAdapter(client.gateway)
	if resolved.Provider.IssuerURL != "" {
		userInfo, err := identity.NewUserInfoClient(identity.UserInfoConfig{
			IssuerURL:  resolved.Provider.IssuerURL,
			HTTPClient: httpClient,
		})
		if err == nil {
			client.userInfo = userInfo
		}
	}
	client.commands = Commands{
		StartSession:       sessioncommand.NewStartSessionCommand(manager),
		Login:              sessioncommand.NewLoginCommand(manager),
		Logout:             sessioncommand.NewLogoutCommand(manager),
		MintIdempotencyKey: sessioncommand.NewMintIdempotencyKeyCommand(),
		ResolveSubmission:  sessioncommand.NewResolveSubmissionCommand(),
	}
	client.queries = Queries{
		SessionStatus:   sessionquery.NewSessionStatusQuery(manager),
		ResolveEndpoint: sessionquery.NewResolveEndpointQuery(resolved.Endpoints),
	}
	return client, nil
}

// Start initializes the session once. A returned *core.SessionInitError
// leaves the client usable as unauthenticated.
func (c *Client) Start(ctx context.Context) error {
	if c == nil || c.manager == nil {
		return fmt.Errorf("authsession: client is not configured")
	}
	return c.manager.Start(ctx)
}

func (c *Client) Login(ctx context.Context) error {
	if c == nil || c.manager == nil {
		return fmt.Errorf("authsession: client is not configured")
	}
	return c.manager.Login(ctx)
}

func (c *Client) Logout(ctx context.Context) error {
	if c == nil || c.manager == nil {
		return fmt.Errorf("authsession: client is not configured")
	}
	return c.manager.Logout(ctx)
}

func (c *Client) Session() Session {
	if c == nil || c.manager == nil {
		return Session{}
	}
	return c.manager.Session()
}

func (c *Client) Manager() *core.SessionManager {
	if c == nil {
		return nil
	}
	return c.manager
}

func (c *Client) Provider() IdentityProvider {
	if c == nil {
		return nil
	}
	return c.provider
}

func (c *Client) Config() Config {
	if c == nil || c.manager == nil {
		return Config{}
	}
	return c.manager.Config()
}

func (c *Client) Gateway() *transport.Gateway {
	if c == nil {
		return nil
	}
	return c.gateway
}

func (c *Client) HTTPClient() *http.Client {
	if c == nil {
		return nil
	}
	return c.httpClient
}

func (c *Client) REST() *transport.RESTAdapter {
	if c == nil {
		return nil
	}
	return c.rest
}

func (c *Client) Normalizer() *failures.Normalizer {
	if c == nil {
		return nil
	}
	return c.normalizer
}

// ErrorMessage normalizes failure into one display message.
func (c *Client) ErrorMessage(failure any) string {
	if c == nil || c.normalizer == nil {
		return failures.Normalize(failure).Message
	}
	return c.normalizer.Message(failure)
}

// NewSubmission returns a holder for one pending mutating submission.
func (c *Client) NewSubmission() *idempotency.Holder {
	if c == nil {
		return idempotency.NewHolder(nil)
	}
	return idempotency.NewHolder(c.issuer)
}

// Endpoint resolves a resource collection URL with optional path segments.
func (c *Client) Endpoint(resource string, segments ...string) (string, error) {
	if c == nil || c.manager == nil {
		return "", fmt.Errorf("authsession: client is not configured")
	}
	return c.manager.Config().Endpoints.URL(resource, segments...)
}

// UserInfo fetches the provider profile of the current session.
func (c *Client) UserInfo(ctx context.Context) (identity.Profile, error) {
	if c == nil || c.userInfo == nil {
		return identity.Profile{}, fmt.Errorf("authsession: userinfo endpoint is not configured")
	}
	return c.userInfo.Fetch(ctx, "")
}

func (c *Client) Commands() Commands {
	if c == nil {
		return Commands{}
	}
	return c.commands
}

func (c *Client) Queries() Queries {
	if c == nil {
		return Queries{}
	}
	return c.queries
}
