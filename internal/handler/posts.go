package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/cleverdevil/dwell/internal/index"
	"github.com/cleverdevil/dwell/internal/model"
	"github.com/cleverdevil/dwell/internal/service"
)

// PostReader is the read side of the index.
type PostReader interface {
	Get(ctx context.Context, l index.Lookup) (*model.Post, error)
	Query(ctx context.Context, q index.Query) ([]*model.Post, error)
	Count(ctx context.Context, q index.Query) (int, error)
}

// PostHandler serves the public read API.
type PostHandler struct {
	Index PostReader
}

func NewPostHandler(idx PostReader) *PostHandler { return &PostHandler{Index: idx} }

// postView is a post as the read API renders it: the stored MF2 plus its
// kind and the kind-specific derived fields.
type postView struct {
	Type       []string         `json:"type"`
	Properties model.Properties `json:"properties"`
	Children   []map[string]any `json:"children"`
	Kind       model.Kind       `json:"kind"`
	KindName   string           `json:"kind_name"`
	Derived    map[string]any   `json:"derived"`
}

func render(p *model.Post) postView {
	kind := p.Kind()
	derived := p.Derived()
	if derived == nil {
		derived = map[string]any{}
	}
	return postView{
		Type:       p.Type,
		Properties: p.Properties,
		Children:   p.Children,
		Kind:       kind,
		KindName:   model.LookupKind(kind).Name,
		Derived:    derived,
	}
}

// View: GET /view/:id
func (h *PostHandler) View(c echo.Context) error {
	return h.one(c, index.Lookup{ID: c.Param("id")})
}

// BySlug: GET /:year/:slug
func (h *PostHandler) BySlug(c echo.Context) error {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil || year <= 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Post not found."})
	}
	return h.one(c, index.Lookup{Slug: c.Param("slug"), Year: year})
}

func (h *PostHandler) one(c echo.Context, l index.Lookup) error {
	p, err := h.Index.Get(c.Request().Context(), l)
	if err != nil {
		return writeError(c, service.Internal(err))
	}
	if p == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Post not found."})
	}
	return c.JSON(http.StatusOK, render(p))
}

// feed is the h-feed listing of one kind or alias.
type feed struct {
	Type     []string   `json:"type"`
	Name     string     `json:"name"`
	Kind     string     `json:"kind"`
	Total    int        `json:"total"`
	Limit    int        `json:"limit"`
	Offset   int        `json:"offset"`
	Sort     string     `json:"sort"`
	Children []postView `json:"children"`
}

// Content: GET /content/:kind
//
// Query parameters: limit, offset, sort (asc|desc), year, month, day,
// start and end (RFC 3339 or a bare date).
func (h *PostHandler) Content(c echo.Context) error {
	kind := strings.ToLower(c.Param("kind"))
	q, err := listQuery(c)
	if err != nil {
		return writeError(c, err)
	}
	q.Kinds = []string{kind}
	q = q.Normalized()

	ctx := c.Request().Context()
	posts, err := h.Index.Query(ctx, q)
	if err != nil {
		return writeError(c, service.Internal(err))
	}
	total, err := h.Index.Count(ctx, q)
	if err != nil {
		return writeError(c, service.Internal(err))
	}

	out := feed{
		Type:     []string{"h-feed"},
		Name:     model.DisplayName(kind),
		Kind:     kind,
		Total:    total,
		Limit:    q.Limit,
		Offset:   q.Offset,
		Sort:     q.Sort,
		Children: make([]postView, 0, len(posts)),
	}
	for _, p := range posts {
		out.Children = append(out.Children, render(p))
	}
	return c.JSON(http.StatusOK, out)
}

// Kinds: GET /kinds
func (h *PostHandler) Kinds(c echo.Context) error {
	return c.JSON(http.StatusOK, model.KnownKinds())
}

func listQuery(c echo.Context) (index.Query, error) {
	var q index.Query
	ints := []struct {
		name string
		dst  *int
	}{
		{"limit", &q.Limit},
		{"offset", &q.Offset},
		{"year", &q.Year},
		{"month", &q.Month},
		{"day", &q.Day},
	}
	for _, p := range ints {
		v := c.QueryParam(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return q, service.BadRequest("Invalid request: bad " + p.name)
		}
		*p.dst = n
	}
	times := []struct {
		name string
		dst  *time.Time
	}{
		{"start", &q.Start},
		{"end", &q.End},
	}
	for _, p := range times {
		v := c.QueryParam(p.name)
		if v == "" {
			continue
		}
		ts, err := model.ParseTime(v)
		if err != nil {
			return q, service.BadRequest("Invalid request: bad " + p.name)
		}
		*p.dst = ts
	}
	q.Sort = c.QueryParam("sort")
	return q, nil
}
