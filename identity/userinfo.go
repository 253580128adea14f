package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	defaultRequestTimeout    = 10 * time.Second
	maxProfileResponseBytes  = 1 << 20 // 1 MiB
	keycloakUserInfoPath     = "/protocol/openid-connect/userinfo"
	TextCodeProfileNotFound  = "IDENTITY_PROFILE_NOT_FOUND"
	TextCodeProfileRejected  = "IDENTITY_PROFILE_REJECTED"
	TextCodeProfileTransport = "IDENTITY_PROFILE_UNAVAILABLE"
)

var ErrProfileNotFound = errors.New("identity: profile not found")

// ProfileNotFoundError reports that the userinfo endpoint yielded no usable
// profile. StatusCode is zero when no response was received.
type ProfileNotFoundError struct {
	StatusCode int
	Cause      error
}

func (e *ProfileNotFoundError) Error() string {
	if e == nil || e.Cause == nil {
		return ErrProfileNotFound.Error()
	}
	return ErrProfileNotFound.Error() + ": " + e.Cause.Error()
}

func (e *ProfileNotFoundError) Unwrap() error {
	if e == nil {
		return nil
	}
	if e.Cause == nil {
		return ErrProfileNotFound
	}
	return errors.Join(ErrProfileNotFound, e.Cause)
}

func (e *ProfileNotFoundError) ToServiceError() *goerrors.Error {
	message := ErrProfileNotFound.Error()
	if e != nil && e.Cause != nil {
		message = e.Error()
	}
	category := goerrors.CategoryNotFound
	code := http.StatusNotFound
	textCode := TextCodeProfileNotFound
	switch {
	case e == nil:
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		category = goerrors.CategoryAuth
		code = e.StatusCode
		textCode = TextCodeProfileRejected
	case e.StatusCode == 0 && e.Cause != nil:
		category = goerrors.CategoryExternal
		code = http.StatusBadGateway
		textCode = TextCodeProfileTransport
	}
	return goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
}

func profileNotFound(status int, cause error) error {
	return &ProfileNotFoundError{StatusCode: status, Cause: cause}
}

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type UserInfoConfig struct {
	// URL is the userinfo endpoint. When empty it is derived from IssuerURL.
	URL            string
	IssuerURL      string
	HTTPClient     HTTPDoer
	RequestTimeout time.Duration
}

// UserInfoClient fetches the profile of the bearer of an access token.
type UserInfoClient struct {
	endpoint       string
	httpClient     HTTPDoer
	requestTimeout time.Duration
}

// KeycloakUserInfoURL derives the userinfo endpoint of a realm issuer.
func KeycloakUserInfoURL(issuer string) string {
	issuer = strings.TrimRight(strings.TrimSpace(issuer), "/")
	if issuer == "" {
		return ""
	}
	return issuer + keycloakUserInfoPath
}

func NewUserInfoClient(cfg UserInfoConfig) (*UserInfoClient, error) {
	endpoint := strings.TrimSpace(cfg.URL)
	if endpoint == "" {
		endpoint = KeycloakUserInfoURL(cfg.IssuerURL)
	}
	if endpoint == "" {
		return nil, fmt.Errorf("identity: userinfo url or issuer url is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}
	return &UserInfoClient{
		endpoint:       endpoint,
		httpClient:     httpClient,
		requestTimeout: requestTimeout,
	}, nil
}

func (c *UserInfoClient) Endpoint() string {
	if c == nil {
		return ""
	}
	return c.endpoint
}

// Fetch calls the userinfo endpoint. An empty accessToken sends no
// Authorization header so an authorizing HTTPClient can supply it.
func (c *UserInfoClient) Fetch(ctx context.Context, accessToken string) (Profile, error) {
	if c == nil {
		return Profile{}, profileNotFound(0, nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	payload, status, err := c.fetch(ctx, strings.TrimSpace(accessToken))
	if err != nil {
		return Profile{}, profileNotFound(status, err)
	}
	profile := ProfileFromClaims(payload)
	if profile.Subject == "" && profile.Principal() == "" {
		return Profile{}, profileNotFound(status, fmt.Errorf("userinfo response is missing subject"))
	}
	return profile, nil
}

func (c *UserInfoClient) fetch(ctx context.Context, accessToken string) (map[string]any, int, error) {
	requestCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer res.Body.Close()
	body, readErr := io.ReadAll(io.LimitReader(res.Body, maxProfileResponseBytes+1))
	if readErr != nil {
		return nil, res.StatusCode, fmt.Errorf("identity: read profile response: %w", readErr)
	}
	if int64(len(body)) > maxProfileResponseBytes {
		return nil, res.StatusCode, fmt.Errorf("identity: profile response exceeds %d bytes", maxProfileResponseBytes)
	}
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return nil, res.StatusCode, fmt.Errorf("identity: profile endpoint returned status %d", res.StatusCode)
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, res.StatusCode, fmt.Errorf("identity: decode profile response: %w", err)
	}
	return payload, res.StatusCode, nil
}
