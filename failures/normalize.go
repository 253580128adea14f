package failures

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	MessageNetwork    = "Network error - Could not connect to server"
	MessageGeneric    = "An error occurred"
	MessageUnexpected = "An unexpected error occurred"
)

// Kind classifies where a failure originated.
type Kind string

const (
	KindTransport   Kind = "transport"
	KindServer      Kind = "server"
	KindValidation  Kind = "validation"
	KindSessionInit Kind = "session_init"
	KindProgramming Kind = "programming"
)

// ResponseFailure is implemented by failures that carry a server response.
type ResponseFailure interface {
	ResponseStatus() int
	ResponseBody() []byte
}

// RequestFailure is implemented by failures where a request left the client
// but no response came back.
type RequestFailure interface {
	RequestSent() bool
}

// SessionInitFailure marks failures raised while the identity-provider
// handshake was running.
type SessionInitFailure interface {
	SessionInitFailure() bool
}

// NormalizedError is the single shape every failure is flattened into.
type NormalizedError struct {
	Message     string
	StatusCode  int
	FieldErrors []string
	Kind        Kind
}

func (e NormalizedError) Error() string {
	return e.Message
}

// HasStatusCode reports whether the failure came from a server response.
func (e NormalizedError) HasStatusCode() bool {
	return e.StatusCode > 0
}

var statusMessages = map[int]string{
	http.StatusBadRequest:          "Invalid request",
	http.StatusUnauthorized:        "Unauthorized - Please login again",
	http.StatusForbidden:           "Forbidden - You do not have permission",
	http.StatusNotFound:            "Resource not found",
	http.StatusConflict:            "Resource already exists",
	http.StatusInternalServerError: "Internal server error",
}

// StatusMessage returns the generic message for a status code and whether the
// code has a dedicated entry.
func StatusMessage(status int) (string, bool) {
	message, ok := statusMessages[status]
	if !ok {
		return MessageGeneric, false
	}
	return message, true
}

// Normalize converts any failure value into a NormalizedError. It is total:
// nil, non-error values and panicking Error methods all yield a valid result.
func Normalize(failure any) (out NormalizedError) {
	defer func() {
		if recover() != nil {
			out = NormalizedError{Message: MessageUnexpected, Kind: KindProgramming}
		}
	}()

	if response, ok := asResponseFailure(failure); ok && response.ResponseStatus() > 0 {
		return fromResponse(response.ResponseStatus(), DecodeBody(response.ResponseBody()))
	}
	if request, ok := asRequestFailure(failure); ok && request.RequestSent() {
		return NormalizedError{Message: MessageNetwork, Kind: KindTransport}
	}

	err, isErr := failure.(error)
	if !isErr || err == nil {
		return NormalizedError{Message: MessageUnexpected, Kind: KindProgramming}
	}

	kind := KindProgramming
	var marker SessionInitFailure
	if errors.As(err, &marker) && marker.SessionInitFailure() {
		kind = KindSessionInit
	}
	if message := errorMessage(err); message != "" {
		return NormalizedError{Message: message, Kind: kind}
	}
	return NormalizedError{Message: MessageUnexpected, Kind: kind}
}

// FromResponse normalizes a status code and raw body directly.
func FromResponse(status int, body []byte) NormalizedError {
	if status <= 0 {
		return NormalizedError{Message: MessageNetwork, Kind: KindTransport}
	}
	return fromResponse(status, DecodeBody(body))
}

func fromResponse(status int, body Body) NormalizedError {
	out := NormalizedError{StatusCode: status, Kind: KindServer}

	fieldErrors, hasList := body.ErrorList()
	if hasList {
		out.FieldErrors = fieldErrors
		out.Kind = KindValidation
	}

	if message, ok := extractMessage(body); ok {
		out.Message = message
		return out
	}
	if message, ok := StatusMessage(status); ok {
		out.Message = message
		return out
	}
	if text := strings.TrimSpace(body.Text); text != "" {
		out.Message = text
		return out
	}
	out.Message = MessageGeneric
	return out
}

func asResponseFailure(failure any) (ResponseFailure, bool) {
	if err, ok := failure.(error); ok && err != nil {
		var target ResponseFailure
		if errors.As(err, &target) {
			return target, true
		}
		return nil, false
	}
	target, ok := failure.(ResponseFailure)
	return target, ok
}

func asRequestFailure(failure any) (RequestFailure, bool) {
	if err, ok := failure.(error); ok && err != nil {
		var target RequestFailure
		if errors.As(err, &target) {
			return target, true
		}
		return nil, false
	}
	target, ok := failure.(RequestFailure)
	return target, ok
}

func errorMessage(err error) string {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich != nil {
		if message := strings.TrimSpace(rich.Message); message != "" {
			return message
		}
	}
	return strings.TrimSpace(err.Error())
}
