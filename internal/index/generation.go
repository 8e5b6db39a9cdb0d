package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/cleverdevil/dwell/internal/model"
	"github.com/cleverdevil/dwell/internal/repository"
)

const schemaSQL = `
CREATE TABLE posts (
	post_id   TEXT    NOT NULL PRIMARY KEY,
	kind      TEXT    NOT NULL,
	url       TEXT    NOT NULL DEFAULT '',
	deleted   INTEGER NOT NULL DEFAULT 0,
	published INTEGER NOT NULL,
	year      INTEGER NOT NULL,
	month     INTEGER NOT NULL,
	day       INTEGER NOT NULL,
	filename  TEXT    NOT NULL,
	document  TEXT    NOT NULL
);
CREATE INDEX posts_published ON posts(published);
CREATE INDEX posts_url ON posts(url);
CREATE INDEX posts_kind ON posts(kind);
`

const insertSQL = `INSERT OR REPLACE INTO posts
	(post_id, kind, url, deleted, published, year, month, day, filename, document)
	VALUES (?,?,?,?,?,?,?,?,?,?)`

// generation is one immutable-by-scan snapshot of the content tree stored
// in its own sqlite file. Readers hold mu.RLock for the length of a query;
// retire takes the write lock so the file is closed only once no reader
// is inside it.
type generation struct {
	id   uint64
	path string
	db   *sql.DB

	mu     sync.RWMutex
	closed bool
}

// record is the indexed projection of one post.
type record struct {
	id        string
	kind      string
	url       string
	deleted   bool
	published int64 // unix micro
	year      int
	month     int
	day       int
	filename  string
	document  string
}

func recordOf(e repository.Entry) (record, error) {
	p := e.Post
	if p == nil {
		return record{}, errors.New("nil post")
	}
	rec := record{
		id:       p.ID(),
		kind:     string(p.Kind()),
		url:      p.URL(),
		deleted:  p.Deleted(),
		year:     e.Year,
		month:    e.Month,
		day:      e.Day,
		filename: e.Path,
	}
	if rec.id == "" {
		rec.id = strings.TrimSuffix(filepath.Base(e.Path), ".json")
	}
	ts, err := p.Published()
	switch {
	case err == nil:
		rec.published = ts.UnixMicro()
	case e.Year > 0 && e.Month > 0 && e.Day > 0:
		rec.published = time.Date(e.Year, time.Month(e.Month), e.Day, 0, 0, 0, 0, time.UTC).UnixMicro()
	default:
		return record{}, fmt.Errorf("%s: %w", e.Path, err)
	}
	if rec.year == 0 {
		t := time.UnixMicro(rec.published).UTC()
		rec.year, rec.month, rec.day = t.Year(), int(t.Month()), t.Day()
	}
	doc, err := json.Marshal(p)
	if err != nil {
		return record{}, fmt.Errorf("%s: encode: %w", e.Path, err)
	}
	rec.document = string(doc)
	return rec, nil
}

func (r record) args() []any {
	return []any{r.id, r.kind, r.url, r.deleted, r.published, r.year, r.month, r.day, r.filename, r.document}
}

func generationPath(dir string, id uint64) string {
	return filepath.Join(dir, fmt.Sprintf("content-%d.db", id))
}

// buildGeneration scans into a temp file, renames it to its final name and
// opens it for serving. fill receives an insert func bound to the build
// transaction. On any failure the temp file is removed.
func buildGeneration(ctx context.Context, dir string, id uint64, fill func(insert func(record) error) error) (g *generation, n int, err error) {
	final := generationPath(dir, id)
	tmp := final + ".building"
	removeDBFiles(tmp)

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=OFF&_synchronous=OFF", tmp))
	if err != nil {
		return nil, 0, err
	}
	db.SetMaxOpenConns(1)
	defer func() {
		if err != nil {
			db.Close()
			removeDBFiles(tmp)
		}
	}()

	if _, err = db.ExecContext(ctx, schemaSQL); err != nil {
		return nil, 0, fmt.Errorf("apply schema: %w", err)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, err
	}
	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		tx.Rollback()
		return nil, 0, err
	}
	err = fill(func(r record) error {
		if _, err := stmt.ExecContext(ctx, r.args()...); err != nil {
			return fmt.Errorf("insert %s: %w", r.id, err)
		}
		n++
		return nil
	})
	stmt.Close()
	if err != nil {
		tx.Rollback()
		return nil, 0, err
	}
	if err = tx.Commit(); err != nil {
		return nil, 0, err
	}
	if err = db.Close(); err != nil {
		return nil, 0, err
	}
	if err = os.Rename(tmp, final); err != nil {
		return nil, 0, err
	}
	g, err = openGeneration(final, id)
	if err != nil {
		removeDBFiles(final)
		return nil, 0, err
	}
	return g, n, nil
}

func openGeneration(path string, id uint64) (*generation, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", path))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(8)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return &generation{id: id, path: path, db: db}, nil
}

func (g *generation) insert(ctx context.Context, r record) error {
	_, err := g.db.ExecContext(ctx, insertSQL, r.args()...)
	return err
}

func (g *generation) release() { g.mu.RUnlock() }

// retire waits for readers to leave, then closes and deletes the file.
func (g *generation) retire() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.closed = true
	g.db.Close()
	removeDBFiles(g.path)
}

func removeDBFiles(path string) {
	for _, suffix := range []string{"", "-wal", "-shm", "-journal"} {
		os.Remove(path + suffix)
	}
}

func scanPost(document, filename string) (*model.Post, error) {
	var p model.Post
	if err := json.Unmarshal([]byte(document), &p); err != nil {
		return nil, err
	}
	if p.Properties == nil {
		p.Properties = model.Properties{}
	}
	if p.Children == nil {
		p.Children = []map[string]any{}
	}
	p.Filename = filename
	return &p, nil
}
