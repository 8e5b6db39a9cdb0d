package repository

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleverdevil/dwell/internal/model"
)

func samplePost(id, published string) *model.Post {
	p := model.NewPost()
	p.Properties["post-id"] = []any{id}
	p.Properties["published"] = []any{published}
	p.Properties["url"] = []any{"/2024/" + id}
	p.Properties["content"] = []any{"hello"}
	return p
}

func TestContentStoreWriteRead(t *testing.T) {
	root := t.TempDir()
	s := NewContentStore(root)

	p := samplePost("abc123", "2024-03-04T10:00:00Z")
	path, err := s.Write(p)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "year=2024", "month=03", "day=04", "abc123.json"), path)
	assert.Equal(t, path, p.Filename)

	// no temp files left next to the document
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "abc123.json", entries[0].Name())

	got, err := s.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "abc123", got.ID())
	assert.Equal(t, []any{"hello"}, got.Properties["content"])
	assert.Equal(t, []string{"h-entry"}, got.Type)
	assert.NotNil(t, got.Children)
}

func TestContentStoreWriteUsesUTCPartition(t *testing.T) {
	s := NewContentStore(t.TempDir())
	p := samplePost("late", "2024-12-31T23:30:00-05:00")
	path, err := s.Write(p)
	require.NoError(t, err)
	y, m, d := PartitionOf(path)
	assert.Equal(t, []int{2025, 1, 1}, []int{y, m, d})
}

func TestContentStoreRejectsBadIDs(t *testing.T) {
	s := NewContentStore(t.TempDir())
	_, err := s.Write(samplePost("", "2024-01-01T00:00:00Z"))
	assert.Error(t, err)
	_, err = s.Write(samplePost("../evil", "2024-01-01T00:00:00Z"))
	assert.Error(t, err)

	noDate := samplePost("x", "")
	delete(noDate.Properties, "published")
	_, err = s.Write(noDate)
	assert.Error(t, err)
}

func TestContentStoreReadErrors(t *testing.T) {
	root := t.TempDir()
	s := NewContentStore(root)

	_, err := s.Read(filepath.Join(root, "missing.json"))
	assert.True(t, errors.Is(err, ErrNotFound))

	bad := filepath.Join(root, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o644))
	_, err = s.Read(bad)
	assert.True(t, errors.Is(err, ErrCorrupt))
}

func TestContentStoreUpdate(t *testing.T) {
	s := NewContentStore(t.TempDir())
	p := samplePost("u1", "2024-05-06T07:08:09Z")
	path, err := s.Write(p)
	require.NoError(t, err)

	updated, err := s.Update(path, func(p *model.Post) error {
		p.Apply(model.Update{Add: model.Properties{"category": {"go"}}})
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"go"}, updated.Properties["category"])

	reread, err := s.Read(path)
	require.NoError(t, err)
	assert.Equal(t, []any{"go"}, reread.Properties["category"])

	boom := errors.New("boom")
	_, err = s.Update(path, func(p *model.Post) error {
		p.Properties["category"] = nil
		return boom
	})
	assert.ErrorIs(t, err, boom)
	reread, err = s.Read(path)
	require.NoError(t, err)
	assert.Equal(t, []any{"go"}, reread.Properties["category"])
}

func TestContentStoreSoftDeleteRoundTripIsByteIdentical(t *testing.T) {
	s := NewContentStore(t.TempDir())
	path, err := s.Write(samplePost("rt", "2024-05-06T07:08:09Z"))
	require.NoError(t, err)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = s.Update(path, func(p *model.Post) error {
		p.Apply(model.Update{Replace: model.Properties{"deleted": {true}}})
		return nil
	})
	require.NoError(t, err)
	_, err = s.Update(path, func(p *model.Post) error {
		p.Apply(model.Update{Delete: model.Deletion{Keys: []string{"deleted"}}})
		return nil
	})
	require.NoError(t, err)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestContentStoreWalk(t *testing.T) {
	root := t.TempDir()
	s := NewContentStore(root)
	for _, p := range []*model.Post{
		samplePost("a", "2023-01-02T00:00:00Z"),
		samplePost("b", "2024-02-03T00:00:00Z"),
	} {
		_, err := s.Write(p)
		require.NoError(t, err)
	}
	// stray files are ignored
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".c.json.tmp-1"), []byte("{"), 0o644))

	seen := map[string][3]int{}
	err := s.Walk(func(e Entry) error {
		seen[e.Post.ID()] = [3]int{e.Year, e.Month, e.Day}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, map[string][3]int{"a": {2023, 1, 2}, "b": {2024, 2, 3}}, seen)
}

func TestContentStoreWalkMissingRoot(t *testing.T) {
	s := NewContentStore(filepath.Join(t.TempDir(), "nope"))
	assert.NoError(t, s.Walk(func(Entry) error { return nil }))
}

func TestContentStoreWalkStopsOnCorruptDocument(t *testing.T) {
	root := t.TempDir()
	s := NewContentStore(root)
	dir := filepath.Join(root, "year=2024", "month=01", "day=01")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.json"), []byte("[1,2"), 0o644))

	err := s.Walk(func(Entry) error { return nil })
	assert.True(t, errors.Is(err, ErrCorrupt))
}
