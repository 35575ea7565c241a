package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"yield-agreement-backend/internal/domain/apperr"
	"yield-agreement-backend/internal/domain/guard"
)

// statusOf maps a domain failure kind to its transport status.
func statusOf(err error) int {
	if errors.Is(err, guard.ErrReentrantCall) {
		return http.StatusLocked
	}
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindInvalidState, apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindUnauthorized, apperr.KindCompliance:
		return http.StatusForbidden
	case apperr.KindValidation, apperr.KindArithmetic:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c echo.Context, err error) error {
	code := statusOf(err)
	if code == http.StatusInternalServerError {
		slog.ErrorContext(c.Request().Context(), "request failed",
			"method", c.Request().Method, "path", c.Path(), "err", err)
		return c.JSON(code, ErrorResponse{Error: "internal error"})
	}
	return c.JSON(code, ErrorResponse{
		Error:   err.Error(),
		Details: []FieldError{{Field: "kind", Message: apperr.KindOf(err).String()}},
	})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}
