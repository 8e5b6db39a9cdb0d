// Package handler exposes the HTTP surface: IndieAuth, Micropub, the media
// endpoint, the public read API and the admin reload. Handlers decode the
// request, call a service or the index, and translate failures into
// {"error": "<reason>"} bodies.
package handler

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/cleverdevil/dwell/internal/logging"
	"github.com/cleverdevil/dwell/internal/service"
	"github.com/cleverdevil/dwell/internal/telemetry"
)

// writeError renders err with its fixed client message. Causes behind 5xx
// responses are logged, never sent.
func writeError(c echo.Context, err error) error {
	status, msg := service.StatusOf(err)
	if status >= 500 {
		log := logging.WithTraceID(logging.WithComponent("http"), telemetry.TraceID(c.Request().Context()))
		log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.JSON(status, echo.Map{"error": msg})
}
