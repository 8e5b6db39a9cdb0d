package middleware

// identity.go holds the helpers that name the caller for rate limit keys.
// An IndieAuth request names its identity in the "me" parameter; anything
// else is "anon".

import (
	"github.com/labstack/echo/v4"

	"github.com/cleverdevil/dwell/internal/model"
)

// currentMe returns the normalized identity a request claims to act for.
func currentMe(c echo.Context) string {
	me := c.QueryParam("me")
	if me == "" && c.Request().Method != "GET" {
		me = c.FormValue("me")
	}
	if me == "" {
		return "anon"
	}
	return model.NormalizeMe(me)
}
