package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/cleverdevil/dwell/internal/model"
)

// RequireScope rejects requests whose bearer code does not grant scope.
// It must run after RequireAuth.
func RequireScope(scope string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !Scopes(c).Has(scope) {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Token not authorized for scope: " + scope})
			}
			return next(c)
		}
	}
}

// Scopes returns the scopes RequireAuth stored, or nil.
func Scopes(c echo.Context) model.Scopes {
	s, _ := c.Get(ctxScopes).(model.Scopes)
	return s
}
