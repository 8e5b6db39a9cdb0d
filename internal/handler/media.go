package handler

import (
	"errors"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"

	"github.com/cleverdevil/dwell/internal/repository"
	"github.com/cleverdevil/dwell/internal/service"
)

// MediaOpener reads blobs by key.
type MediaOpener interface {
	Open(key string) (*os.File, error)
}

// MediaHandler serves uploaded blobs. Keys are content hashes, so responses
// are cacheable forever.
type MediaHandler struct {
	Store MediaOpener
}

func NewMediaHandler(store MediaOpener) *MediaHandler { return &MediaHandler{Store: store} }

// Serve: GET /media/*
func (h *MediaHandler) Serve(c echo.Context) error {
	f, err := h.Store.Open(c.Param("*"))
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Not found."})
	}
	if err != nil {
		return writeError(c, service.Internal(err))
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return writeError(c, service.Internal(err))
	}
	if st.IsDir() {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Not found."})
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "public, max-age=31536000, immutable")
	http.ServeContent(c.Response(), c.Request(), st.Name(), st.ModTime(), f)
	return nil
}
