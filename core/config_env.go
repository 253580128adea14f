package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
)

type sessionEnv struct {
	ServiceName        string   `env:"SERVICE_NAME"`
	IssuerURL          string   `env:"AUTH_ISSUER_URL"`
	ClientID           string   `env:"AUTH_CLIENT_ID"`
	ClientSecret       string   `env:"AUTH_CLIENT_SECRET"`
	OnLoad             string   `env:"AUTH_ON_LOAD"`
	Scopes             []string `env:"AUTH_SCOPES" envSeparator:","`
	MinValiditySeconds string   `env:"AUTH_MIN_VALIDITY_SECONDS"`
	CustomerURL        string   `env:"API_CUSTOMER_URL"`
	AccountURL         string   `env:"API_ACCOUNT_URL"`
	AccountProductURL  string   `env:"API_ACCOUNT_PRODUCT_URL"`
	TransactionURL     string   `env:"API_TRANSACTION_URL"`
	ErrorsDebug        string   `env:"ERRORS_DEBUG"`
}

// EnvRawConfigLoader reads configuration from environment variables, each
// optionally prefixed (for example VITE_ yields VITE_API_CUSTOMER_URL).
// Environment overrides the process environment when set.
type EnvRawConfigLoader struct {
	Prefix      string
	Environment map[string]string
}

func (l EnvRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	var raw sessionEnv
	options := env.Options{Prefix: l.Prefix}
	if l.Environment != nil {
		options.Environment = l.Environment
	}
	if err := env.ParseWithOptions(&raw, options); err != nil {
		return nil, fmt.Errorf("core: parse env: %w", err)
	}

	out := map[string]any{}
	if value := strings.TrimSpace(raw.ServiceName); value != "" {
		out["service_name"] = value
	}

	provider := map[string]any{}
	putString(provider, "issuer_url", strings.TrimSpace(raw.IssuerURL), false)
	putString(provider, "client_id", strings.TrimSpace(raw.ClientID), false)
	putString(provider, "client_secret", raw.ClientSecret, false)
	putString(provider, "on_load", strings.TrimSpace(raw.OnLoad), false)
	if scopes := cleanScopes(raw.Scopes); len(scopes) > 0 {
		provider["scopes"] = scopes
	}
	if value := strings.TrimSpace(raw.MinValiditySeconds); value != "" {
		seconds, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("core: AUTH_MIN_VALIDITY_SECONDS is invalid: %w", err)
		}
		provider["min_validity_seconds"] = seconds
	}
	if len(provider) > 0 {
		out["provider"] = provider
	}

	endpoints := map[string]any{}
	putString(endpoints, ResourceCustomer, strings.TrimSpace(raw.CustomerURL), false)
	putString(endpoints, ResourceAccount, strings.TrimSpace(raw.AccountURL), false)
	putString(endpoints, ResourceAccountProduct, strings.TrimSpace(raw.AccountProductURL), false)
	putString(endpoints, ResourceTransaction, strings.TrimSpace(raw.TransactionURL), false)
	if len(endpoints) > 0 {
		out["endpoints"] = endpoints
	}

	if value := strings.TrimSpace(raw.ErrorsDebug); value != "" {
		debug, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("core: ERRORS_DEBUG is invalid: %w", err)
		}
		out["errors"] = map[string]any{"debug": debug}
	}
	return out, nil
}

func cleanScopes(scopes []string) []string {
	out := make([]string, 0, len(scopes))
	for _, scope := range scopes {
		if scope = strings.TrimSpace(scope); scope != "" {
			out = append(out, scope)
		}
	}
	return out
}
