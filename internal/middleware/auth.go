package middleware // request processing shared by the protected routes

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/cleverdevil/dwell/internal/model"
)

// ctxScopes is the context key RequireAuth stores granted scopes under.
const ctxScopes = "scopes"

// TokenVerifier checks a bearer code and returns the scopes it grants.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, code string) (model.Scopes, bool)
}

// RequireAuth returns an Echo middleware that accepts only requests whose
// Authorization header carries a live authorization code:
//
//	Authorization: Bearer <code>
//
// The granted scopes are stored in the context for RequireScope and the
// handlers. Missing, unknown and expired codes get 401 "Unauthorized Token".
func RequireAuth(v TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			code, ok := BearerToken(c.Request())
			if !ok {
				return unauthorized(c)
			}
			scopes, ok := v.VerifyToken(c.Request().Context(), code)
			if !ok {
				return unauthorized(c)
			}
			c.Set(ctxScopes, scopes)
			return next(c)
		}
	}
}

// BearerToken extracts the credential of an "Authorization: Bearer" header.
// The scheme is matched case-insensitively.
func BearerToken(r *http.Request) (string, bool) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(auth, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Unauthorized Token"})
}
