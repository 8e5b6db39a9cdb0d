package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/cleverdevil/dwell/internal/index"
	"github.com/cleverdevil/dwell/internal/service"
)

// DefaultReloadWait caps how long ?wait=true blocks.
const DefaultReloadWait = 30 * time.Second

// Rebuilder schedules full index rebuilds.
type Rebuilder interface {
	Rebuild() *index.Job
}

// AdminHandler serves operator endpoints.
type AdminHandler struct {
	Index   Rebuilder
	MaxWait time.Duration
}

func NewAdminHandler(idx Rebuilder) *AdminHandler {
	return &AdminHandler{Index: idx, MaxWait: DefaultReloadWait}
}

// Reload: GET /admin/reload_data
//
// Schedules a rebuild and answers 202 at once. With wait=true it blocks
// until the rebuild finishes (or MaxWait passes) and reports the new
// generation.
func (h *AdminHandler) Reload(c echo.Context) error {
	job := h.Index.Rebuild()
	if c.QueryParam("wait") != "true" {
		return c.JSON(http.StatusAccepted, echo.Map{"result": true})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.MaxWait)
	defer cancel()
	gen, err := job.Wait(ctx)
	if err != nil {
		return writeError(c, service.Internal(err))
	}
	return c.JSON(http.StatusOK, echo.Map{"result": true, "generation": gen})
}
