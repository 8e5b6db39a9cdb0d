package router // package router defines how HTTP routes are registered for the API

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/cleverdevil/dwell/internal/handler"
)

// RegisterRoutes registers the operational endpoints. metrics may be nil
// when metrics are disabled.
func RegisterRoutes(e *echo.Echo, generation func() uint64, metrics http.Handler) {
	e.GET("/healthz", handler.Health(generation))
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}
}

// RegisterPublic registers the read API and the media files. cache wraps
// every post route.
func RegisterPublic(e *echo.Echo, p *handler.PostHandler, m *handler.MediaHandler, cache echo.MiddlewareFunc) {
	e.GET("/media/*", m.Serve)

	e.GET("/kinds", p.Kinds, cache)
	e.GET("/view/:id", p.View, cache)
	e.GET("/content/:kind", p.Content, cache)
	// Static prefixes above win over this catch-all pair.
	e.GET("/:year/:slug", p.BySlug, cache)
}
