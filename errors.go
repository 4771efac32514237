package starcms

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/starcms/content"
	"github.com/eringen/starcms/form"
	"github.com/eringen/starcms/upload"
)

var (
	// ErrNotFound is returned when a requested document does not exist.
	ErrNotFound = errors.New("starcms: document not found")
	// ErrSlugTaken is returned when another document of the same kind
	// already uses the slug.
	ErrSlugTaken = errors.New("starcms: slug already in use")
)

const genericSaveError = "Something went wrong while saving. Your changes are still here, please try again."

// apiError maps domain errors onto JSON responses. Messages meant for the
// editor are passed through verbatim.
func (a *App) apiError(c echo.Context, err error) error {
	code, msg := http.StatusInternalServerError, genericSaveError
	var pe *upload.PreconditionError
	var ve *content.ValidationError
	switch {
	case errors.As(err, &pe):
		code, msg = http.StatusBadRequest, pe.Message
	case errors.As(err, &ve):
		code, msg = http.StatusUnprocessableEntity, ve.Message
	case errors.Is(err, ErrNotFound):
		code, msg = http.StatusNotFound, "Not found"
	case errors.Is(err, ErrSlugTaken):
		code, msg = http.StatusConflict, "That slug is already used by another entry"
	case errors.Is(err, form.ErrSubmitInFlight):
		code, msg = http.StatusConflict, "A save is already in progress"
	case errors.Is(err, form.ErrClosed):
		code, msg = http.StatusGone, "This editor session has ended"
	case errors.Is(err, form.ErrReadOnlyField):
		code, msg = http.StatusUnprocessableEntity, "This field is managed automatically and cannot be edited"
	case errors.Is(err, form.ErrDerivedField), errors.Is(err, form.ErrUnknownPath),
		errors.Is(err, form.ErrTypeMismatch), errors.Is(err, form.ErrUnknownTab):
		code, msg = http.StatusUnprocessableEntity, err.Error()
	}
	if code >= 500 {
		a.Logger.Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
	}
	return c.JSON(code, map[string]string{"error": msg})
}
