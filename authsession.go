// Package authsession composes the session manager, the authorizing request
// gateway, the error normalizer and idempotency key holders into one client.
package authsession

import (
	"context"

	"github.com/goliatone/go-authsession/core"
	"github.com/goliatone/go-authsession/failures"
	"github.com/goliatone/go-authsession/idempotency"
)

type Config = core.Config

type Session = core.Session

type Phase = core.Phase

type Option = core.Option

type IdentityProvider = core.IdentityProvider

type SessionManager = core.SessionManager

type NormalizedError = failures.NormalizedError

type IdempotencyToken = idempotency.Token

const (
	PhaseUninitialized   = core.PhaseUninitialized
	PhaseInitializing    = core.PhaseInitializing
	PhaseAuthenticated   = core.PhaseAuthenticated
	PhaseUnauthenticated = core.PhaseUnauthenticated
)

var (
	WithLogger           = core.WithLogger
	WithLoggerProvider   = core.WithLoggerProvider
	WithMetricsRecorder  = core.WithMetricsRecorder
	WithErrorFactory     = core.WithErrorFactory
	WithErrorMapper      = core.WithErrorMapper
	WithConfigProvider   = core.WithConfigProvider
	WithOptionsResolver  = core.WithOptionsResolver
	WithIdentityResolver = core.WithIdentityResolver
	WithClock            = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// Normalize converts any failure into the uniform error shape.
func Normalize(failure any) NormalizedError {
	return failures.Normalize(failure)
}

// MintIdempotencyKey returns a fresh key for a single mutating submission.
func MintIdempotencyKey() IdempotencyToken {
	return idempotency.Mint()
}

// LoadConfig reads raw values through loader and layers them as
// defaults < loaded < runtime.
func LoadConfig(ctx context.Context, loader core.RawConfigLoader, runtime Config) (Config, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	defaults := core.DefaultConfig()
	loaded, err := core.NewCfgxConfigProvider(loader).Load(ctx, defaults)
	if err != nil {
		return Config{}, err
	}
	return core.GoOptionsResolver{}.Resolve(defaults, loaded, runtime)
}

// LoadConfigFromEnv reads configuration from environ, or from the process
// environment when environ is nil.
func LoadConfigFromEnv(ctx context.Context, prefix string, environ map[string]string) (Config, error) {
	return LoadConfig(ctx, core.EnvRawConfigLoader{Prefix: prefix, Environment: environ}, Config{})
}
