package command

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-tripline/core"
)

const textCodeInternal = "TRIPLINE_INTERNAL_ERROR"

func commandDependencyError(message string) error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(textCodeInternal)
}

// commandWrapValidation keeps the validation kind so core.KindOf still
// classifies the wrapped error.
func commandWrapValidation(err error, message string) error {
	if err == nil {
		return nil
	}
	wrapped := goerrors.Wrap(err, goerrors.CategoryValidation, message).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ErrorKindValidation.String())
	wrapped.Category = goerrors.CategoryValidation
	return wrapped
}
