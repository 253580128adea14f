package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ SessionReader   = (*SessionManager)(nil)
	_ TokenSource     = (*SessionManager)(nil)
	_ MetricsRecorder = NopMetricsRecorder{}
	_ ConfigProvider  = (*CfgxConfigProvider)(nil)
	_ OptionsResolver = GoOptionsResolver{}
	_ RawConfigLoader = StaticRawConfigLoader{}
	_ RawConfigLoader = EnvRawConfigLoader{}

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
