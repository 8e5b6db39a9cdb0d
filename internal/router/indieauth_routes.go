package router

import (
	"github.com/labstack/echo/v4"

	"github.com/cleverdevil/dwell/internal/handler"
)

// RegisterIndieAuth registers the authorization and token endpoints under
// /indieauth. Everything that accepts a secret (password or code) runs
// behind limiter; token verification does not.
func RegisterIndieAuth(e *echo.Echo, h *handler.IndieAuthHandler, limiter echo.MiddlewareFunc) {
	g := e.Group("/indieauth")
	g.GET("/auth", h.BeginAuth, limiter)
	g.POST("/auth", h.Authorize, limiter)
	g.GET("/token", h.VerifyToken)
	g.POST("/token", h.Token, limiter)
}
