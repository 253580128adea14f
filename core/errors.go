package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	SessionErrorBadInput         = "SESSION_BAD_INPUT"
	SessionErrorInitFailed       = "SESSION_INIT_FAILED"
	SessionErrorProviderRequired = "SESSION_PROVIDER_REQUIRED"
	SessionErrorProviderFailed   = "SESSION_PROVIDER_FAILED"
	SessionErrorUnauthenticated  = "SESSION_UNAUTHENTICATED"
	SessionErrorInternal         = "SESSION_INTERNAL_ERROR"
)

var (
	ErrProviderRequired = errors.New("core: identity provider is required")
	ErrSessionInit      = errors.New("core: session initialization failed")
)

// SessionInitError reports that the identity provider rejected initialization.
// The manager is left unauthenticated and initialized.
type SessionInitError struct {
	Cause error
}

func (e *SessionInitError) Error() string {
	if e == nil || e.Cause == nil {
		return ErrSessionInit.Error()
	}
	return ErrSessionInit.Error() + ": " + e.Cause.Error()
}

func (e *SessionInitError) Unwrap() error {
	if e == nil || e.Cause == nil {
		return ErrSessionInit
	}
	return errors.Join(ErrSessionInit, e.Cause)
}

func (e *SessionInitError) SessionInitFailure() bool {
	return true
}

func (e *SessionInitError) ToServiceError() *goerrors.Error {
	return e.serviceError(goerrors.New)
}

func (e *SessionInitError) serviceError(factory ErrorFactory) *goerrors.Error {
	return factory(e.Error(), goerrors.CategoryAuth).
		WithCode(http.StatusUnauthorized).
		WithTextCode(SessionErrorInitFailed)
}

// serviceErrorProvider is implemented by errors that carry their own envelope.
type serviceErrorProvider interface {
	ToServiceError() *goerrors.Error
}

func sessionErrorMapper(err error) *goerrors.Error {
	return mapSessionError(goerrors.New, err)
}

// newSessionErrorMapper returns the default mapper building envelopes
// through factory.
func newSessionErrorMapper(factory ErrorFactory) ErrorMapper {
	if factory == nil {
		factory = goerrors.New
	}
	return func(err error) *goerrors.Error {
		return mapSessionError(factory, err)
	}
}

func mapSessionError(factory ErrorFactory, err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var initErr *SessionInitError
	if errors.As(err, &initErr) {
		return initErr.serviceError(factory)
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureSessionErrorEnvelope(richErr)
	}

	var provider serviceErrorProvider
	if errors.As(err, &provider) {
		if rich := provider.ToServiceError(); rich != nil {
			return ensureSessionErrorEnvelope(rich)
		}
	}

	if errors.Is(err, ErrProviderRequired) {
		return newSessionError(factory, err.Error(), goerrors.CategoryBadInput, SessionErrorProviderRequired)
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "unauthorized"), strings.Contains(msg, "invalid_grant"):
		return newSessionError(factory, err.Error(), goerrors.CategoryAuth, SessionErrorUnauthenticated)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return newSessionError(factory, err.Error(), goerrors.CategoryBadInput, SessionErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureSessionErrorEnvelope(mapped)
}

func newSessionError(factory ErrorFactory, message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureSessionErrorEnvelope(
		factory(message, category).
			WithTextCode(textCode),
	)
}

func ensureSessionErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = sessionHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultSessionTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultSessionTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return SessionErrorBadInput
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return SessionErrorUnauthenticated
	case goerrors.CategoryExternal, goerrors.CategoryOperation:
		return SessionErrorProviderFailed
	default:
		return SessionErrorInternal
	}
}

func sessionHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
