package router

import (
	"github.com/labstack/echo/v4"

	"github.com/cleverdevil/dwell/internal/handler"
	"github.com/cleverdevil/dwell/internal/middleware"
	"github.com/cleverdevil/dwell/internal/model"
)

// RegisterMicropub registers the publishing endpoints. Queries are public;
// every write needs a live bearer code, and scope checks per action happen
// in the service. Media uploads always need "create".
func RegisterMicropub(e *echo.Echo, h *handler.MicropubHandler, verifier middleware.TokenVerifier) {
	auth := middleware.RequireAuth(verifier)

	e.GET("/micropub", h.Query)
	e.POST("/micropub", h.Publish, auth)
	e.POST("/micropub/media", h.Upload, auth, middleware.RequireScope(model.ScopeCreate))
}

// RegisterAdmin registers operator endpoints. Any live bearer code is
// enough.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, verifier middleware.TokenVerifier) {
	g := e.Group("/admin", middleware.RequireAuth(verifier))
	g.GET("/reload_data", a.Reload)
}
