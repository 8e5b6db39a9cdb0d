package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health reports liveness and the index generation serving reads.
func Health(generation func() uint64) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok", "generation": generation()})
	}
}
