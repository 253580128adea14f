package gologger

import (
	"strings"

	"github.com/goliatone/go-authsession/core"
	"github.com/goliatone/go-authsession/failures"
	glog "github.com/goliatone/go-logger/glog"
)

const rootLoggerName = "authsession"

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

// Named returns the component logger "authsession.<component>".
func Named(provider glog.LoggerProvider, logger glog.Logger, component string) glog.Logger {
	resolvedProvider, resolvedLogger := Resolve(rootLoggerName, provider, logger)
	component = strings.TrimSpace(component)
	if component == "" || resolvedProvider == nil {
		return glog.Ensure(resolvedLogger)
	}
	if named := resolvedProvider.GetLogger(rootLoggerName + "." + component); named != nil {
		return glog.Ensure(named)
	}
	return glog.Ensure(resolvedLogger)
}

// ManagerOptions wires a resolved logger pair into a session manager.
func ManagerOptions(provider glog.LoggerProvider, logger glog.Logger) []core.Option {
	resolvedProvider, resolvedLogger := Resolve(rootLoggerName, provider, logger)
	return []core.Option{
		core.WithLoggerProvider(resolvedProvider),
		core.WithLogger(resolvedLogger),
	}
}

// NormalizerOptions wires the component logger "authsession.failures" into an
// error normalizer. Debug dumps of JSON bodies are redacted.
func NormalizerOptions(provider glog.LoggerProvider, logger glog.Logger, debug bool) []failures.NormalizerOption {
	return []failures.NormalizerOption{
		failures.WithLogger(Named(provider, logger, "failures")),
		failures.WithDebug(debug),
		failures.WithRedactor(core.RedactSensitiveMap),
	}
}
