package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"yield-agreement-backend/pkg/id"
)

const (
	HeaderCallerID = "Ax-Caller-Id"
	callerKey      = "caller_id"
)

// Caller resolves the authenticated caller from Ax-Caller-Id. Mutating
// requests must carry one; reads may be anonymous.
func Caller() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := strings.TrimSpace(c.Request().Header.Get(HeaderCallerID))
			if raw == "" {
				if isMutating(c.Request().Method) {
					return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing " + HeaderCallerID})
				}
				return next(c)
			}
			if !id.Valid(raw) {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid " + HeaderCallerID})
			}
			c.Set(callerKey, id.Normalize(raw))
			return next(c)
		}
	}
}

// CallerID is the caller stored by Caller, or "" for anonymous reads.
func CallerID(c echo.Context) string {
	v, _ := c.Get(callerKey).(string)
	return v
}

func isMutating(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}
