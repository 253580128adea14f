package query

import (
	"net/http"

	"github.com/goliatone/go-authsession/core"
	goerrors "github.com/goliatone/go-errors"
)

func queryDependencyError(message string) error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.SessionErrorInternal)
}

func queryValidationError(field string, message string) error {
	return goerrors.NewValidation("query: validation failed", goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.SessionErrorBadInput).
		WithSeverity(goerrors.SeverityError)
}

func queryNotFoundError(err error, resource string) error {
	return goerrors.Wrap(err, goerrors.CategoryNotFound, "query: endpoint not configured").
		WithCode(http.StatusNotFound).
		WithTextCode(core.SessionErrorBadInput).
		WithMetadata(map[string]any{"resource": resource})
}
