package failures

import (
	"encoding/json"

	glog "github.com/goliatone/go-logger/glog"
)

// Normalizer wraps Normalize with debug logging of the raw failure.
type Normalizer struct {
	logger   glog.Logger
	debug    bool
	redactor func(map[string]any) map[string]any
}

type NormalizerOption func(*Normalizer)

func WithLogger(logger glog.Logger) NormalizerOption {
	return func(n *Normalizer) {
		n.logger = logger
	}
}

// WithDebug enables a debug dump of every normalized failure.
func WithDebug(enabled bool) NormalizerOption {
	return func(n *Normalizer) {
		n.debug = enabled
	}
}

// WithRedactor filters JSON object response bodies before they are dumped.
func WithRedactor(redactor func(map[string]any) map[string]any) NormalizerOption {
	return func(n *Normalizer) {
		n.redactor = redactor
	}
}

func NewNormalizer(opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(n)
	}
	n.logger = glog.Ensure(n.logger)
	return n
}

func (n *Normalizer) Normalize(failure any) NormalizedError {
	out := Normalize(failure)
	if n == nil || !n.debug || n.logger == nil {
		return out
	}
	args := []any{
		"kind", string(out.Kind),
		"message", out.Message,
		"status_code", out.StatusCode,
	}
	if len(out.FieldErrors) > 0 {
		args = append(args, "field_errors", out.FieldErrors)
	}
	if response, ok := asResponseFailure(failure); ok {
		args = append(args, "response_body", n.debugBody(response.ResponseBody()))
	}
	if err, ok := failure.(error); ok && err != nil {
		args = append(args, "error", err.Error())
	}
	n.logger.Debug("failure normalized", args...)
	return out
}

// Message returns only the human-readable message.
func (n *Normalizer) Message(failure any) string {
	return n.Normalize(failure).Message
}

func (n *Normalizer) debugBody(body []byte) any {
	if n.redactor == nil {
		return string(body)
	}
	var object map[string]any
	if err := json.Unmarshal(body, &object); err != nil || object == nil {
		return string(body)
	}
	return n.redactor(object)
}
