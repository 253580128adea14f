package core

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// OnLoadLoginRequired makes initialization authenticate when no session exists.
	OnLoadLoginRequired = "login-required"
	// OnLoadCheckSSO only reuses an existing provider session.
	OnLoadCheckSSO = "check-sso"
)

const (
	ResourceCustomer       = "customer"
	ResourceAccount        = "account"
	ResourceAccountProduct = "account_product"
	ResourceTransaction    = "transaction"
)

type ProviderConfig struct {
	IssuerURL          string   `koanf:"issuer_url" mapstructure:"issuer_url"`
	ClientID           string   `koanf:"client_id" mapstructure:"client_id"`
	ClientSecret       string   `koanf:"client_secret" mapstructure:"client_secret"`
	OnLoad             string   `koanf:"on_load" mapstructure:"on_load"`
	Scopes             []string `koanf:"scopes" mapstructure:"scopes"`
	MinValiditySeconds int      `koanf:"min_validity_seconds" mapstructure:"min_validity_seconds"`
}

// EndpointsConfig holds the base URL of each downstream resource collection.
// Values are opaque to this module.
type EndpointsConfig struct {
	Customer       string `koanf:"customer" mapstructure:"customer"`
	Account        string `koanf:"account" mapstructure:"account"`
	AccountProduct string `koanf:"account_product" mapstructure:"account_product"`
	Transaction    string `koanf:"transaction" mapstructure:"transaction"`
}

type ErrorsConfig struct {
	Debug bool `koanf:"debug" mapstructure:"debug"`
}

type Config struct {
	ServiceName string          `koanf:"service_name" mapstructure:"service_name"`
	Provider    ProviderConfig  `koanf:"provider" mapstructure:"provider"`
	Endpoints   EndpointsConfig `koanf:"endpoints" mapstructure:"endpoints"`
	Errors      ErrorsConfig    `koanf:"errors" mapstructure:"errors"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "authsession",
		Provider: ProviderConfig{
			OnLoad:             OnLoadLoginRequired,
			Scopes:             []string{"openid"},
			MinValiditySeconds: 30,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	switch strings.TrimSpace(c.Provider.OnLoad) {
	case "", OnLoadLoginRequired, OnLoadCheckSSO:
	default:
		return fmt.Errorf("core: provider.on_load %q is invalid", c.Provider.OnLoad)
	}
	if c.Provider.MinValiditySeconds < 0 {
		return fmt.Errorf("core: provider.min_validity_seconds must not be negative")
	}
	return nil
}

// Base returns the configured base URL for a resource collection.
func (e EndpointsConfig) Base(resource string) (string, bool) {
	var base string
	switch strings.ToLower(strings.TrimSpace(resource)) {
	case ResourceCustomer:
		base = e.Customer
	case ResourceAccount:
		base = e.Account
	case ResourceAccountProduct, "account-product":
		base = e.AccountProduct
	case ResourceTransaction:
		base = e.Transaction
	}
	base = strings.TrimSpace(base)
	return base, base != ""
}

// URL joins path segments onto a resource base URL.
func (e EndpointsConfig) URL(resource string, segments ...string) (string, error) {
	base, ok := e.Base(resource)
	if !ok {
		return "", fmt.Errorf("core: endpoint for resource %q is not configured", resource)
	}
	if len(segments) == 0 {
		return base, nil
	}
	cleaned := make([]string, 0, len(segments))
	for _, segment := range segments {
		segment = strings.Trim(strings.TrimSpace(segment), "/")
		if segment != "" {
			cleaned = append(cleaned, segment)
		}
	}
	joined, err := url.JoinPath(base, cleaned...)
	if err != nil {
		return "", fmt.Errorf("core: join endpoint for resource %q: %w", resource, err)
	}
	return joined, nil
}
