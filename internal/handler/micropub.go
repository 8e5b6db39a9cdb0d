package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/cleverdevil/dwell/internal/middleware"
	"github.com/cleverdevil/dwell/internal/service"
)

// MicropubHandler serves the publishing endpoint and the media endpoint.
type MicropubHandler struct {
	Svc   *service.MicropubService
	Media service.Blobs
}

func NewMicropubHandler(svc *service.MicropubService, media service.Blobs) *MicropubHandler {
	return &MicropubHandler{Svc: svc, Media: media}
}

// Query: GET /micropub?q=config|syndicate-to|source
func (h *MicropubHandler) Query(c echo.Context) error {
	switch c.QueryParam("q") {
	case "config":
		return c.JSON(http.StatusOK, h.Svc.Config())
	case "syndicate-to":
		return c.JSON(http.StatusOK, h.Svc.SyndicateTo())
	case "source":
		qs := c.QueryParams()
		props := append(qs["properties[]"], qs["properties"]...)
		src, err := h.Svc.Source(c.Request().Context(), c.QueryParam("url"), props)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, src)
	}
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request: unknown query"})
}

// Publish: POST /micropub
func (h *MicropubHandler) Publish(c echo.Context) error {
	req, err := service.Decode(c.Request().Header.Get(echo.HeaderContentType), c.Request().Body, h.Media)
	if err != nil {
		return writeError(c, err)
	}
	res, err := h.Svc.Handle(c.Request().Context(), middleware.Scopes(c), req)
	if err != nil {
		return writeError(c, err)
	}
	if res.Location != "" {
		c.Response().Header().Set(echo.HeaderLocation, res.Location)
	}
	return c.NoContent(res.Status)
}

// Upload: POST /micropub/media
//
// Stores the "file" part and answers 201 with its public location.
func (h *MicropubHandler) Upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request: missing file"})
	}
	f, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request data"})
	}
	defer f.Close()

	key, err := h.Media.Put(f, fh.Filename)
	if err != nil {
		return writeError(c, service.Internal(err))
	}
	c.Response().Header().Set(echo.HeaderLocation, service.MediaURL(key))
	return c.NoContent(http.StatusCreated)
}
