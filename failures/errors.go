package failures

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeTransport   = "FAILURE_TRANSPORT"
	TextCodeServer      = "FAILURE_SERVER"
	TextCodeValidation  = "FAILURE_VALIDATION"
	TextCodeSessionInit = "FAILURE_SESSION_INIT"
	TextCodeProgramming = "FAILURE_PROGRAMMING"
)

// ToServiceError maps the normalized failure onto a go-errors envelope so it
// can travel through layers that speak that contract.
func (e NormalizedError) ToServiceError() *goerrors.Error {
	message := strings.TrimSpace(e.Message)
	if message == "" {
		message = MessageUnexpected
	}

	var rich *goerrors.Error
	switch e.Kind {
	case KindValidation:
		fields := make([]goerrors.FieldError, 0, len(e.FieldErrors))
		for _, item := range e.FieldErrors {
			field, detail := splitFieldError(item)
			fields = append(fields, goerrors.FieldError{Field: field, Message: detail})
		}
		rich = goerrors.NewValidation(message, fields...)
	case KindServer:
		rich = goerrors.New(message, statusCategory(e.StatusCode))
	case KindTransport:
		rich = goerrors.New(message, goerrors.CategoryExternal)
	case KindSessionInit:
		rich = goerrors.New(message, goerrors.CategoryAuth)
	default:
		rich = goerrors.New(message, goerrors.CategoryInternal)
	}

	return rich.
		WithCode(serviceCode(e)).
		WithTextCode(kindTextCode(e.Kind))
}

func serviceCode(e NormalizedError) int {
	if e.StatusCode > 0 {
		return e.StatusCode
	}
	switch e.Kind {
	case KindTransport:
		return http.StatusBadGateway
	case KindSessionInit:
		return http.StatusUnauthorized
	case KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func statusCategory(status int) goerrors.Category {
	switch {
	case status == http.StatusBadRequest:
		return goerrors.CategoryBadInput
	case status == http.StatusUnauthorized:
		return goerrors.CategoryAuth
	case status == http.StatusForbidden:
		return goerrors.CategoryAuthz
	case status == http.StatusNotFound:
		return goerrors.CategoryNotFound
	case status == http.StatusConflict:
		return goerrors.CategoryConflict
	case status == http.StatusTooManyRequests:
		return goerrors.CategoryRateLimit
	case status >= http.StatusInternalServerError:
		return goerrors.CategoryExternal
	default:
		return goerrors.CategoryOperation
	}
}

func kindTextCode(kind Kind) string {
	switch kind {
	case KindTransport:
		return TextCodeTransport
	case KindServer:
		return TextCodeServer
	case KindValidation:
		return TextCodeValidation
	case KindSessionInit:
		return TextCodeSessionInit
	default:
		return TextCodeProgramming
	}
}

func splitFieldError(item string) (string, string) {
	field, detail, found := strings.Cut(item, ": ")
	if !found || strings.ContainsAny(field, " \t") {
		return "", item
	}
	return field, detail
}
