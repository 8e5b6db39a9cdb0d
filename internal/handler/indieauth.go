package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/cleverdevil/dwell/internal/middleware"
	"github.com/cleverdevil/dwell/internal/model"
	"github.com/cleverdevil/dwell/internal/service"
)

// IndieAuthHandler serves the authorization and token endpoints.
type IndieAuthHandler struct {
	Auth *service.AuthService
}

func NewIndieAuthHandler(auth *service.AuthService) *IndieAuthHandler {
	return &IndieAuthHandler{Auth: auth}
}

// consentPrompt is what GET /indieauth/auth returns in place of a page: the
// validated request plus the choices the consent form posts back.
type consentPrompt struct {
	service.AuthRequest
	Scopes  []string `json:"scopes"`
	Choices []string `json:"choices"`
}

func authRequestFrom(c echo.Context) service.AuthRequest {
	return service.AuthRequest{
		Me:           strings.TrimSpace(c.FormValue("me")),
		ClientID:     strings.TrimSpace(c.FormValue("client_id")),
		RedirectURI:  strings.TrimSpace(c.FormValue("redirect_uri")),
		State:        c.FormValue("state"),
		ResponseType: c.FormValue("response_type"),
		Scope:        c.FormValue("scope"),
	}
}

// BeginAuth: GET /indieauth/auth
func (h *IndieAuthHandler) BeginAuth(c echo.Context) error {
	r, err := h.Auth.BeginAuth(authRequestFrom(c))
	if err != nil {
		return writeError(c, err)
	}
	scopes := model.ParseScopes(r.Scope)
	if scopes == nil {
		scopes = model.Scopes{}
	}
	return c.JSON(http.StatusOK, consentPrompt{
		AuthRequest: r,
		Scopes:      scopes,
		Choices:     []string{"Approve", "Deny"},
	})
}

// Authorize: POST /indieauth/auth
//
// A body carrying "code" is a client verifying the identity behind a code
// and gets {"me": ...}. Anything else is the consent form; the response is
// a redirect back to the client.
func (h *IndieAuthHandler) Authorize(c echo.Context) error {
	ctx := c.Request().Context()
	if code := c.FormValue("code"); code != "" {
		me, err := h.Auth.ExchangeForIdentity(ctx, code, c.FormValue("redirect_uri"), c.FormValue("client_id"))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"me": me})
	}

	target, err := h.Auth.Approve(ctx, authRequestFrom(c), c.FormValue("approve"), c.FormValue("password"))
	if err != nil {
		return writeError(c, err)
	}
	return c.Redirect(http.StatusFound, target)
}

// VerifyToken: GET /indieauth/token
func (h *IndieAuthHandler) VerifyToken(c echo.Context) error {
	raw, ok := middleware.BearerToken(c.Request())
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "Invalid token."})
	}
	claims, err := h.Auth.VerifyAccessToken(c.Request().Context(), raw)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"me":        claims.Me,
		"client_id": claims.ClientID,
		"scope":     claims.Scope,
	})
}

// Token: POST /indieauth/token
//
// Parameters may come in the query string or the form body. Clients that
// send Accept: application/x-www-form-urlencoded get that encoding back.
func (h *IndieAuthHandler) Token(c echo.Context) error {
	tok, err := h.Auth.ExchangeForToken(c.Request().Context(), service.TokenRequest{
		Code:        c.FormValue("code"),
		Me:          c.FormValue("me"),
		RedirectURI: c.FormValue("redirect_uri"),
		ClientID:    c.FormValue("client_id"),
	})
	if err != nil {
		return writeError(c, err)
	}

	if strings.Contains(c.Request().Header.Get(echo.HeaderAccept), echo.MIMEApplicationForm) {
		body := url.Values{}
		body.Set("me", tok.Me)
		body.Set("scope", tok.Scope)
		body.Set("access_token", tok.AccessToken)
		body.Set("token_type", tok.TokenType)
		return c.Blob(http.StatusOK, echo.MIMEApplicationForm, []byte(body.Encode()))
	}
	return c.JSON(http.StatusOK, tok)
}
