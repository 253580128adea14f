package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-authsession/core"
	"github.com/goliatone/go-authsession/identity"
	goerrors "github.com/goliatone/go-errors"
)

const (
	defaultTokenRequestTimeout = 30 * time.Second
	defaultMinValidity         = 30 * time.Second
	defaultRefreshInterval     = 10 * time.Second
	maxTokenResponseBodyBytes  = 1 << 20 // 1 MiB

	keycloakTokenPath  = "/protocol/openid-connect/token"
	keycloakLogoutPath = "/protocol/openid-connect/logout"

	TextCodeTokenEndpoint = "PROVIDER_TOKEN_ENDPOINT_ERROR"
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// CredentialsFunc supplies resource-owner credentials for an interactive login.
type CredentialsFunc func(ctx context.Context) (username string, password string, err error)

type OIDCConfig struct {
	IssuerURL           string
	TokenURL            string
	LogoutURL           string
	ClientID            string
	ClientSecret        string
	ClientSecretInBody  bool
	Scopes              []string
	RefreshToken        string
	Credentials         CredentialsFunc
	MinValidity         time.Duration
	TokenRequestTimeout time.Duration
	Now                 func() time.Time
	HTTPClient          HTTPDoer
}

// OIDCConfigFromCore maps session configuration onto an OIDC client config.
func OIDCConfigFromCore(cfg core.ProviderConfig) OIDCConfig {
	return OIDCConfig{
		IssuerURL:    cfg.IssuerURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       append([]string(nil), cfg.Scopes...),
		MinValidity:  time.Duration(cfg.MinValiditySeconds) * time.Second,
	}
}

// KeycloakEndpoints derives the token and end-session endpoints of a realm issuer.
func KeycloakEndpoints(issuer string) (tokenURL string, logoutURL string) {
	issuer = strings.TrimRight(strings.TrimSpace(issuer), "/")
	if issuer == "" {
		return "", ""
	}
	return issuer + keycloakTokenPath, issuer + keycloakLogoutPath
}

// OIDCClient is an identity provider speaking the OpenID Connect token and
// end-session endpoints. Token signatures are not verified here.
type OIDCClient struct {
	cfg        OIDCConfig
	httpClient HTTPDoer

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	claims       map[string]any
	expiresAt    time.Time
	listener     core.AuthEventListener
}

type tokenEndpointPayload struct {
	AccessToken      string
	TokenType        string
	RefreshToken     string
	Scope            string
	ExpiresIn        int64
	ErrorCode        string
	ErrorDescription string
}

func NewOIDCClient(cfg OIDCConfig) (*OIDCClient, error) {
	cfg.IssuerURL = strings.TrimSpace(cfg.IssuerURL)
	cfg.TokenURL = strings.TrimSpace(cfg.TokenURL)
	cfg.LogoutURL = strings.TrimSpace(cfg.LogoutURL)
	cfg.ClientID = strings.TrimSpace(cfg.ClientID)
	cfg.ClientSecret = strings.TrimSpace(cfg.ClientSecret)
	if cfg.TokenURL == "" || cfg.LogoutURL == "" {
		tokenURL, logoutURL := KeycloakEndpoints(cfg.IssuerURL)
		if cfg.TokenURL == "" {
			cfg.TokenURL = tokenURL
		}
		if cfg.LogoutURL == "" {
			cfg.LogoutURL = logoutURL
		}
	}
	if cfg.TokenURL == "" {
		return nil, fmt.Errorf("providers: issuer url or token url is required")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("providers: client id is required")
	}
	cfg.Scopes = normalizeScopes(cfg.Scopes)
	if cfg.MinValidity <= 0 {
		cfg.MinValidity = defaultMinValidity
	}
	if cfg.TokenRequestTimeout <= 0 {
		cfg.TokenRequestTimeout = defaultTokenRequestTimeout
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time {
			return time.Now().UTC()
		}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.TokenRequestTimeout}
	}

	return &OIDCClient{
		cfg:          cfg,
		httpClient:   httpClient,
		refreshToken: strings.TrimSpace(cfg.RefreshToken),
	}, nil
}

func (c *OIDCClient) SetAuthEventListener(listener core.AuthEventListener) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listener = listener
}

// Init reuses a seeded refresh token when present. With on_load
// "login-required" and no reusable session it performs a login.
func (c *OIDCClient) Init(ctx context.Context, opts core.InitOptions) (bool, error) {
	if c == nil {
		return false, fmt.Errorf("providers: oidc client is nil")
	}
	if c.refreshTokenValue() != "" {
		payload, err := c.fetchToken(ctx, url.Values{
			"grant_type":    {"refresh_token"},
			"refresh_token": {c.refreshTokenValue()},
		})
		switch {
		case err == nil:
			c.store(payload)
			return true, nil
		case IsInvalidGrant(err):
			c.clear()
		default:
			return false, err
		}
	}
	if strings.TrimSpace(opts.OnLoad) == core.OnLoadCheckSSO {
		return false, nil
	}
	if err := c.authenticate(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Login performs a password grant and emits an auth success event.
func (c *OIDCClient) Login(ctx context.Context) error {
	if c == nil {
		return fmt.Errorf("providers: oidc client is nil")
	}
	if err := c.authenticate(ctx); err != nil {
		return err
	}
	c.emit(ctx, core.AuthEventSuccess)
	return nil
}

// Logout ends the provider session and emits an auth logout event.
func (c *OIDCClient) Logout(ctx context.Context) error {
	if c == nil {
		return fmt.Errorf("providers: oidc client is nil")
	}
	refreshToken := c.refreshTokenValue()
	if refreshToken != "" && c.cfg.LogoutURL != "" {
		form := url.Values{"refresh_token": {refreshToken}}
		status, body, err := c.post(ctx, c.cfg.LogoutURL, form)
		if err != nil {
			return err
		}
		if status >= http.StatusMultipleChoices {
			payload, _ := parseTokenPayloadJSON(body)
			return &TokenEndpointError{
				StatusCode:  status,
				Code:        payload.ErrorCode,
				Description: payload.ErrorDescription,
			}
		}
	}
	c.clear()
	c.emit(ctx, core.AuthEventLogout)
	return nil
}

// Refresh exchanges the refresh token for a new access token. A rejected
// refresh token ends the session with an auth logout event.
func (c *OIDCClient) Refresh(ctx context.Context) error {
	if c == nil {
		return fmt.Errorf("providers: oidc client is nil")
	}
	refreshToken := c.refreshTokenValue()
	if refreshToken == "" {
		return fmt.Errorf("providers: refresh token is required")
	}
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	payload, err := c.fetchToken(ctx, form)
	if err != nil {
		if IsInvalidGrant(err) {
			c.clear()
			c.emit(ctx, core.AuthEventLogout)
		}
		return err
	}
	c.store(payload)
	c.emit(ctx, core.AuthEventSuccess)
	return nil
}

// UpdateToken refreshes when the access token expires within minValidity.
func (c *OIDCClient) UpdateToken(ctx context.Context, minValidity time.Duration) (bool, error) {
	if c == nil {
		return false, fmt.Errorf("providers: oidc client is nil")
	}
	if minValidity <= 0 {
		minValidity = c.cfg.MinValidity
	}
	c.mu.Lock()
	hasRefresh := c.refreshToken != ""
	expiresAt := c.expiresAt
	c.mu.Unlock()
	if !hasRefresh {
		return false, nil
	}
	if !expiresAt.IsZero() && c.cfg.Now().Add(minValidity).Before(expiresAt) {
		return false, nil
	}
	if err := c.Refresh(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// RunRefresh keeps the session fresh until ctx is done.
func (c *OIDCClient) RunRefresh(ctx context.Context, interval time.Duration) error {
	if c == nil {
		return fmt.Errorf("providers: oidc client is nil")
	}
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := c.UpdateToken(ctx, 0); err != nil && IsInvalidGrant(err) {
				return err
			}
		}
	}
}

func (c *OIDCClient) Token() string {
	if c == nil {
		return ""
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

func (c *OIDCClient) TokenClaims() map[string]any {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.claims) == 0 {
		return nil
	}
	out := make(map[string]any, len(c.claims))
	for key, value := range c.claims {
		out[key] = value
	}
	return out
}

// RefreshToken returns the current refresh token so callers can seed a later
// client with an existing session.
func (c *OIDCClient) RefreshToken() string {
	return c.refreshTokenValue()
}

func (c *OIDCClient) ExpiresAt() time.Time {
	if c == nil {
		return time.Time{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expiresAt
}

func (c *OIDCClient) authenticate(ctx context.Context) error {
	if c.cfg.Credentials == nil {
		return fmt.Errorf("providers: login requires credentials")
	}
	username, password, err := c.cfg.Credentials(ctx)
	if err != nil {
		return fmt.Errorf("providers: resolve credentials: %w", err)
	}
	if strings.TrimSpace(username) == "" {
		return fmt.Errorf("providers: username is required")
	}
	payload, err := c.fetchToken(ctx, url.Values{
		"grant_type": {"password"},
		"username":   {strings.TrimSpace(username)},
		"password":   {password},
	})
	if err != nil {
		return err
	}
	c.store(payload)
	return nil
}

func (c *OIDCClient) store(payload tokenEndpointPayload) {
	accessToken := strings.TrimSpace(payload.AccessToken)
	claims, err := identity.ParseClaims(accessToken)
	if err != nil {
		claims = nil
	}
	now := c.cfg.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = accessToken
	c.claims = claims
	if next := strings.TrimSpace(payload.RefreshToken); next != "" {
		c.refreshToken = next
	}
	switch {
	case payload.ExpiresIn > 0:
		c.expiresAt = now.Add(time.Duration(payload.ExpiresIn) * time.Second)
	case claims != nil:
		c.expiresAt = identity.ProfileFromClaims(claims).ExpiresAt
	default:
		c.expiresAt = time.Time{}
	}
}

func (c *OIDCClient) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = ""
	c.refreshToken = ""
	c.claims = nil
	c.expiresAt = time.Time{}
}

func (c *OIDCClient) refreshTokenValue() string {
	if c == nil {
		return ""
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshToken
}

func (c *OIDCClient) emit(ctx context.Context, eventType core.AuthEventType) {
	c.mu.Lock()
	listener := c.listener
	c.mu.Unlock()
	if listener == nil {
		return
	}
	listener(ctx, core.AuthEvent{Type: eventType, OccurredAt: c.cfg.Now()})
}

func (c *OIDCClient) fetchToken(ctx context.Context, form url.Values) (tokenEndpointPayload, error) {
	if len(c.cfg.Scopes) > 0 && form.Get("scope") == "" {
		form.Set("scope", strings.Join(c.cfg.Scopes, " "))
	}
	status, body, err := c.post(ctx, c.cfg.TokenURL, form)
	if err != nil {
		return tokenEndpointPayload{}, err
	}

	payload, parseErr := parseTokenPayloadJSON(body)
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return tokenEndpointPayload{}, &TokenEndpointError{
			StatusCode:  status,
			Code:        payload.ErrorCode,
			Description: payload.ErrorDescription,
		}
	}
	if parseErr != nil {
		return tokenEndpointPayload{}, fmt.Errorf("providers: decode token response: %w", parseErr)
	}
	if payload.ErrorCode != "" {
		return tokenEndpointPayload{}, &TokenEndpointError{
			StatusCode:  status,
			Code:        payload.ErrorCode,
			Description: payload.ErrorDescription,
		}
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return tokenEndpointPayload{}, fmt.Errorf("providers: token endpoint response missing access token")
	}
	return payload, nil
}

func (c *OIDCClient) post(ctx context.Context, endpoint string, form url.Values) (int, []byte, error) {
	if c.httpClient == nil {
		return 0, nil, fmt.Errorf("providers: oidc http client is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	values := url.Values{}
	for key, items := range form {
		if strings.TrimSpace(key) == "" {
			continue
		}
		for _, item := range items {
			values.Add(key, item)
		}
	}
	values.Set("client_id", c.cfg.ClientID)
	if c.cfg.ClientSecretInBody && c.cfg.ClientSecret != "" {
		values.Set("client_secret", c.cfg.ClientSecret)
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.cfg.TokenRequestTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(
		requestCtx,
		http.MethodPost,
		endpoint,
		strings.NewReader(values.Encode()),
	)
	if err != nil {
		return 0, nil, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")
	if !c.cfg.ClientSecretInBody && c.cfg.ClientSecret != "" {
		httpReq.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	}

	response, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, fmt.Errorf("providers: identity provider request failed: %w", err)
	}
	defer response.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(response.Body, maxTokenResponseBodyBytes+1))
	if readErr != nil {
		return 0, nil, fmt.Errorf("providers: read identity provider response: %w", readErr)
	}
	if int64(len(body)) > maxTokenResponseBodyBytes {
		return 0, nil, fmt.Errorf("providers: identity provider response exceeds %d bytes", maxTokenResponseBodyBytes)
	}
	return response.StatusCode, body, nil
}

// TokenEndpointError is an OAuth error response from the identity provider.
type TokenEndpointError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *TokenEndpointError) Error() string {
	detail := strings.TrimSpace(e.Description)
	if detail == "" {
		detail = strings.TrimSpace(e.Code)
	}
	if detail == "" {
		detail = "unknown error"
	}
	return fmt.Sprintf("providers: token endpoint error (%d): %s", e.StatusCode, detail)
}

func (e *TokenEndpointError) ToServiceError() *goerrors.Error {
	category := goerrors.CategoryExternal
	code := http.StatusBadGateway
	if IsInvalidGrant(e) {
		category = goerrors.CategoryAuth
		code = http.StatusUnauthorized
	}
	return goerrors.New(e.Error(), category).
		WithCode(code).
		WithTextCode(TextCodeTokenEndpoint).
		WithMetadata(map[string]any{
			"status_code": e.StatusCode,
			"error":       strings.TrimSpace(e.Code),
		})
}

// IsInvalidGrant reports whether err means the presented grant is no longer
// accepted and the session is gone.
func IsInvalidGrant(err error) bool {
	var endpointErr *TokenEndpointError
	if !errors.As(err, &endpointErr) {
		return false
	}
	if strings.EqualFold(strings.TrimSpace(endpointErr.Code), "invalid_grant") {
		return true
	}
	return endpointErr.StatusCode == http.StatusUnauthorized
}

func parseTokenPayloadJSON(body []byte) (tokenEndpointPayload, error) {
	if strings.TrimSpace(string(body)) == "" {
		return tokenEndpointPayload{}, fmt.Errorf("empty payload")
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return tokenEndpointPayload{}, err
	}
	return tokenEndpointPayload{
		AccessToken:      readAnyString(decoded["access_token"]),
		TokenType:        readAnyString(decoded["token_type"]),
		RefreshToken:     readAnyString(decoded["refresh_token"]),
		Scope:            readAnyString(decoded["scope"]),
		ExpiresIn:        readAnyInt64(decoded["expires_in"]),
		ErrorCode:        readAnyString(decoded["error"]),
		ErrorDescription: readAnyString(decoded["error_description"]),
	}, nil
}

func readAnyString(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return strings.TrimSpace(typed.String())
	case fmt.Stringer:
		return strings.TrimSpace(typed.String())
	default:
		if value == nil {
			return ""
		}
		return strings.TrimSpace(fmt.Sprint(value))
	}
}

func readAnyInt64(value any) int64 {
	switch typed := value.(type) {
	case int:
		return int64(typed)
	case int64:
		return typed
	case float64:
		return int64(typed)
	case json.Number:
		parsed, err := typed.Int64()
		if err == nil {
			return parsed
		}
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		if err == nil {
			return parsed
		}
	}
	return 0
}

func normalizeScopes(input []string) []string {
	values := make([]string, 0, len(input))
	seen := map[string]struct{}{}
	for _, value := range input {
		normalized := strings.TrimSpace(value)
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		values = append(values, normalized)
	}
	return values
}

var _ core.IdentityProvider = (*OIDCClient)(nil)
