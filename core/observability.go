package core

import (
	"context"
	"sort"
	"strings"
	"time"
)

func (m *SessionManager) observeTransition(ctx context.Context, transition Transition, err error) {
	if m == nil {
		return
	}
	fields := map[string]any{
		"event_type":  string(transition.Cause),
		"from":        transition.From.String(),
		"to":          transition.To.Phase.String(),
		"initialized": transition.To.Initialized,
	}
	if identity := transition.To.Identity; identity != "" {
		fields["identity"] = identity
	}
	if err != nil {
		fields["error"] = err.Error()
	}

	m.recordCounter(ctx, MetricTransitionTotal, 1, map[string]string{
		"cause": string(transition.Cause),
		"phase": transition.To.Phase.String(),
	})

	if err != nil {
		m.logWithLevel(ctx, "warn", "session initialization failed", fields)
		return
	}
	m.logWithLevel(ctx, "info", "session transition", fields)
}

func (m *SessionManager) observeInit(ctx context.Context, startedAt time.Time, authenticated bool, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	tags := map[string]string{
		"status":        status,
		"authenticated": boolTag(authenticated && err == nil),
		"on_load":       strings.TrimSpace(m.config.Provider.OnLoad),
	}
	m.recordHistogram(ctx, MetricInitDuration, float64(m.clock().Sub(startedAt).Milliseconds()), tags)
}

func (m *SessionManager) logWithLevel(ctx context.Context, level string, message string, fields map[string]any) {
	if m == nil || m.logger == nil {
		return
	}
	fields = RedactSensitiveMap(fields)
	logger := m.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(cloneFields(fields))
	}
	args := flattenFields(fields)
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "error":
		logger.Error(message, args...)
	case "warn":
		logger.Warn(message, args...)
	case "debug":
		logger.Debug(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func (m *SessionManager) recordCounter(ctx context.Context, name string, value int64, tags map[string]string) {
	if m == nil || m.metricsRecorder == nil {
		return
	}
	m.metricsRecorder.IncCounter(ctx, strings.TrimSpace(name), value, cloneTags(tags))
}

func (m *SessionManager) recordHistogram(ctx context.Context, name string, value float64, tags map[string]string) {
	if m == nil || m.metricsRecorder == nil {
		return
	}
	m.metricsRecorder.ObserveHistogram(ctx, strings.TrimSpace(name), value, cloneTags(tags))
}

func cloneFields(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return map[string]any{}
	}
	copied := make(map[string]any, len(fields))
	for key, value := range fields {
		copied[key] = value
	}
	return copied
}

func flattenFields(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return args
}

func boolTag(value bool) string {
	if value {
		return "true"
	}
	return "false"
}
