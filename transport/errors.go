package transport

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-authsession/failures"
	goerrors "github.com/goliatone/go-errors"
)

const (
	TransportErrorBadInput      = "TRANSPORT_BAD_INPUT"
	TransportErrorRequestFailed = "TRANSPORT_REQUEST_FAILED"
	TransportErrorExternal      = "TRANSPORT_EXTERNAL_FAILURE"
	TransportErrorInternal      = "TRANSPORT_INTERNAL_ERROR"
)

var ErrNoResponse = errors.New("transport: request sent without response")

// ResponseError is returned when the server answered with an error status.
type ResponseError struct {
	Method     string
	URL        string
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

func (e *ResponseError) Error() string {
	if e == nil {
		return "transport: response error"
	}
	return fmt.Sprintf("transport: %s %s returned status %d", e.Method, e.URL, e.StatusCode)
}

func (e *ResponseError) ResponseStatus() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func (e *ResponseError) ResponseBody() []byte {
	if e == nil {
		return nil
	}
	return e.Body
}

func (e *ResponseError) ToServiceError() *goerrors.Error {
	rich := failures.FromResponse(e.ResponseStatus(), e.ResponseBody()).ToServiceError()
	return rich.WithMetadata(map[string]any{
		"method":      e.Method,
		"url":         e.URL,
		"status_code": e.StatusCode,
	})
}

// RequestError is returned when the request was sent and no response arrived.
type RequestError struct {
	Method string
	URL    string
	Cause  error
}

func (e *RequestError) Error() string {
	if e == nil || e.Cause == nil {
		return ErrNoResponse.Error()
	}
	return fmt.Sprintf("%s: %s %s: %v", ErrNoResponse.Error(), e.Method, e.URL, e.Cause)
}

func (e *RequestError) Unwrap() error {
	if e == nil || e.Cause == nil {
		return ErrNoResponse
	}
	return errors.Join(ErrNoResponse, e.Cause)
}

func (e *RequestError) RequestSent() bool {
	return true
}

func (e *RequestError) ToServiceError() *goerrors.Error {
	return goerrors.New(failures.MessageNetwork, goerrors.CategoryExternal).
		WithCode(http.StatusBadGateway).
		WithTextCode(TransportErrorRequestFailed).
		WithMetadata(map[string]any{
			"method": strings.TrimSpace(e.Method),
			"url":    strings.TrimSpace(e.URL),
		})
}

func transportError(
	message string,
	category goerrors.Category,
	code int,
	metadata map[string]any,
) error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(transportTextCode(category))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func transportWrapError(
	source error,
	category goerrors.Category,
	message string,
	code int,
	metadata map[string]any,
) error {
	if source == nil {
		return transportError(message, category, code, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(transportTextCode(category))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func transportTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return TransportErrorBadInput
	case goerrors.CategoryExternal:
		return TransportErrorExternal
	default:
		return TransportErrorInternal
	}
}

var (
	_ failures.ResponseFailure = (*ResponseError)(nil)
	_ failures.RequestFailure  = (*RequestError)(nil)
)
