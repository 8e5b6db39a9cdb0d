package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cleverdevil/dwell/internal/model"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Kinds left out of listings unless a filter names them.
var hiddenKinds = []model.Kind{model.KindStaticPage, "unfurledurl"}

// Lookup selects a single post by id or by slug. Slug is either a full
// path ("/2024/hello") or, with Year set, the last segment only.
type Lookup struct {
	ID             string
	Slug           string
	Year           int
	IncludeDeleted bool
}

// Query filters a listing. Zero values mean "no filter".
type Query struct {
	Start  time.Time
	End    time.Time
	Year   int
	Month  int
	Day    int
	Kinds  []string // kind names or aliases
	Limit  int
	Offset int
	Sort   string // "asc" or "desc"
}

// Normalized clamps paging and sort to their accepted ranges.
func (q Query) Normalized() Query {
	switch {
	case q.Limit <= 0:
		q.Limit = DefaultLimit
	case q.Limit > MaxLimit:
		q.Limit = MaxLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if strings.ToLower(q.Sort) == "asc" {
		q.Sort = "asc"
	} else {
		q.Sort = "desc"
	}
	return q
}

// Get returns the matching post or (nil, nil) when there is none. Deleted
// posts are skipped unless IncludeDeleted is set.
func (e *Engine) Get(ctx context.Context, l Lookup) (*model.Post, error) {
	where := []string{}
	args := []any{}
	switch {
	case l.ID != "":
		where = append(where, "post_id = ?")
		args = append(args, l.ID)
	case l.Slug != "" && l.Year > 0:
		where = append(where, "url = ?", "year = ?")
		args = append(args, fmt.Sprintf("/%d/%s", l.Year, strings.Trim(l.Slug, "/")), l.Year)
	case l.Slug != "":
		where = append(where, "url = ?")
		args = append(args, l.Slug)
	default:
		return nil, ErrInvalidQuery
	}
	if !l.IncludeDeleted {
		where = append(where, "deleted = 0")
	}

	g := e.acquire()
	if g == nil {
		return nil, ErrClosed
	}
	defer g.release()

	var doc, filename string
	err := g.db.QueryRowContext(ctx,
		`SELECT document, filename FROM posts WHERE `+strings.Join(where, " AND ")+` LIMIT 1`,
		args...).Scan(&doc, &filename)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return scanPost(doc, filename)
}

// Query lists live posts ordered by publish time.
func (e *Engine) Query(ctx context.Context, q Query) ([]*model.Post, error) {
	q = q.Normalized()
	cond, args := predicate(q)

	order := "DESC"
	if q.Sort == "asc" {
		order = "ASC"
	}
	dataSQL := `SELECT document, filename FROM posts
		WHERE ` + cond + `
		ORDER BY published ` + order + `, post_id ` + order + `
		LIMIT ? OFFSET ?`
	args = append(args, q.Limit, q.Offset)

	g := e.acquire()
	if g == nil {
		return nil, ErrClosed
	}
	defer g.release()

	rows, err := g.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*model.Post, 0, q.Limit)
	for rows.Next() {
		var doc, filename string
		if err := rows.Scan(&doc, &filename); err != nil {
			return nil, err
		}
		p, err := scanPost(doc, filename)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Count is the number of posts Query would match without paging.
func (e *Engine) Count(ctx context.Context, q Query) (int, error) {
	cond, args := predicate(q.Normalized())

	g := e.acquire()
	if g == nil {
		return 0, ErrClosed
	}
	defer g.release()

	var n int
	if err := g.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts WHERE `+cond, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func predicate(q Query) (string, []any) {
	where := []string{"deleted = 0"}
	args := []any{}

	if !q.Start.IsZero() {
		where = append(where, "published >= ?")
		args = append(args, q.Start.UnixMicro())
	}
	if !q.End.IsZero() {
		where = append(where, "published <= ?")
		args = append(args, q.End.UnixMicro())
	}
	if q.Year > 0 {
		where = append(where, "year = ?")
		args = append(args, q.Year)
	}
	if q.Month > 0 {
		where = append(where, "month = ?")
		args = append(args, q.Month)
	}
	if q.Day > 0 {
		where = append(where, "day = ?")
		args = append(args, q.Day)
	}

	kinds, all := model.ResolveKinds(q.Kinds)
	if !all {
		marks := make([]string, len(kinds))
		for i, k := range kinds {
			marks[i] = "?"
			args = append(args, string(k))
		}
		where = append(where, "kind IN ("+strings.Join(marks, ",")+")")
	}
	for _, h := range hiddenKinds {
		if !containsKind(kinds, h) {
			where = append(where, "kind <> ?")
			args = append(args, string(h))
		}
	}
	return strings.Join(where, " AND "), args
}

func containsKind(list []model.Kind, k model.Kind) bool {
	for _, x := range list {
		if x == k {
			return true
		}
	}
	return false
}
