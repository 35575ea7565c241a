package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"yield-agreement-backend/internal/adapter/middleware"
)

// ---- helpers ----

func containsFieldMsg(list []FieldError, field, substr string) bool {
	for _, e := range list {
		if e.Field == field && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

var errInvalidID = errors.New("invalid agreement id")

func agreementID(c echo.Context) (uint64, error) {
	v, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || v == 0 {
		return 0, errInvalidID
	}
	return v, nil
}

type requestError struct {
	status int
	body   ErrorResponse
}

func (e *requestError) write(c echo.Context) error { return c.JSON(e.status, e.body) }

// decode binds and validates req.
func decode(c echo.Context, req any) *requestError {
	if err := c.Bind(req); err != nil {
		return &requestError{status: http.StatusBadRequest, body: ErrorResponse{Error: "invalid body"}}
	}
	if err := c.Validate(req); err != nil {
		return &requestError{status: http.StatusUnprocessableEntity, body: ErrorResponse{Error: "validation failed", Details: ToFieldErrors(err)}}
	}
	return nil
}

func caller(c echo.Context) string { return middleware.CallerID(c) }
