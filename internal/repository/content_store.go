package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/cleverdevil/dwell/internal/model"
)

// ContentStore owns the JSON content tree:
//
//	<root>/year=YYYY/month=MM/day=DD/<post-id>.json
//
// The process is the only writer. Writes go to a temp file in the target
// directory and are renamed into place.
type ContentStore struct {
	Root string
	mu   sync.Mutex
}

// Entry is one document found in the tree together with its partition.
type Entry struct {
	Path  string
	Post  *model.Post
	Year  int
	Month int
	Day   int
}

func NewContentStore(root string) *ContentStore { return &ContentStore{Root: root} }

// PathFor derives the partition path of p from its published date and id.
func (s *ContentStore) PathFor(p *model.Post) (string, error) {
	id := p.ID()
	if id == "" || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("invalid post id %q", id)
	}
	ts, err := p.Published()
	if err != nil {
		return "", err
	}
	ts = ts.UTC()
	dir := filepath.Join(s.Root,
		fmt.Sprintf("year=%d", ts.Year()),
		fmt.Sprintf("month=%02d", int(ts.Month())),
		fmt.Sprintf("day=%02d", ts.Day()))
	return filepath.Join(dir, id+".json"), nil
}

// Write serializes p into its partition and returns the final path.
func (s *ContentStore) Write(p *model.Post) (string, error) {
	path, err := s.PathFor(p)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeAtomic(path, p); err != nil {
		return "", err
	}
	p.Filename = path
	return path, nil
}

// Read loads the document at path.
func (s *ContentStore) Read(path string) (*model.Post, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("read %s: %w: %w", path, ErrIO, err)
	}
	var p model.Post
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("decode %s: %w: %w", path, ErrCorrupt, err)
	}
	if p.Properties == nil {
		p.Properties = model.Properties{}
	}
	if p.Children == nil {
		p.Children = []map[string]any{}
	}
	p.Filename = path
	return &p, nil
}

// Update reads the document at path, applies mutate and rewrites it in place.
// A mutate error aborts without touching the file.
func (s *ContentStore) Update(path string, mutate func(*model.Post) error) (*model.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.Read(path)
	if err != nil {
		return nil, err
	}
	if err := mutate(p); err != nil {
		return nil, err
	}
	if err := writeAtomic(path, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Walk visits every document in the tree. Temp files and non-JSON files are
// skipped. The first error from fn or from decoding stops the walk.
func (s *ContentStore) Walk(fn func(Entry) error) error {
	if _, err := os.Stat(s.Root); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return filepath.WalkDir(s.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walk %s: %w: %w", path, ErrIO, err)
		}
		name := d.Name()
		if d.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".json" {
			return nil
		}
		p, err := s.Read(path)
		if err != nil {
			return err
		}
		e := Entry{Path: path, Post: p}
		e.Year, e.Month, e.Day = PartitionOf(path)
		if e.Year == 0 {
			if ts, err := p.Published(); err == nil {
				ts = ts.UTC()
				e.Year, e.Month, e.Day = ts.Year(), int(ts.Month()), ts.Day()
			}
		}
		return fn(e)
	})
}

// PartitionOf reads year=/month=/day= segments from a content path. Missing
// segments are zero.
func PartitionOf(path string) (year, month, day int) {
	for _, part := range strings.Split(filepath.ToSlash(filepath.Dir(path)), "/") {
		key, val, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(val)
		if err != nil {
			continue
		}
		switch key {
		case "year":
			year = n
		case "month":
			month = n
		case "day":
			day = n
		}
	}
	return year, month, day
}

func writeAtomic(path string, p *model.Post) error {
	if p.Children == nil {
		p.Children = []map[string]any{}
	}
	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w: %w", dir, ErrIO, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp in %s: %w: %w", dir, ErrIO, err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w: %w", tmp.Name(), ErrIO, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w: %w", tmp.Name(), ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w: %w", tmp.Name(), ErrIO, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into %s: %w: %w", path, ErrIO, err)
	}
	return nil
}
