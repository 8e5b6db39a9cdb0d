package repository

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const (
	mediaDepth = 3
	mediaWidth = 2
)

// MediaStore is a content-addressed blob store. A blob's key is the sha256
// of its bytes split into mediaDepth directories of mediaWidth characters,
// plus the lowercased extension of the uploaded name.
type MediaStore struct {
	Root string
}

func NewMediaStore(root string) *MediaStore { return &MediaStore{Root: root} }

// Put stores r and returns its slash-separated relative key. Storing the
// same bytes twice returns the same key.
func (m *MediaStore) Put(r io.Reader, filename string) (string, error) {
	if err := os.MkdirAll(m.Root, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w: %w", m.Root, ErrIO, err)
	}
	tmp, err := os.CreateTemp(m.Root, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp: %w: %w", ErrIO, err)
	}
	defer os.Remove(tmp.Name())

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, h), r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("store upload: %w: %w", ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close upload: %w: %w", ErrIO, err)
	}

	key := mediaKey(hex.EncodeToString(h.Sum(nil)), filename)
	dst := filepath.Join(m.Root, filepath.FromSlash(key))
	if _, err := os.Stat(dst); err == nil {
		return key, nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w: %w", filepath.Dir(dst), ErrIO, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("rename into %s: %w: %w", dst, ErrIO, err)
	}
	return key, nil
}

// Open returns the blob stored under key.
func (m *MediaStore) Open(key string) (*os.File, error) {
	clean := path.Clean("/" + key)
	f, err := os.Open(filepath.Join(m.Root, filepath.FromSlash(clean)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("media %s: %w", key, ErrNotFound)
	}
	return f, err
}

func mediaKey(sum, filename string) string {
	parts := make([]string, 0, mediaDepth+1)
	for i := 0; i < mediaDepth; i++ {
		parts = append(parts, sum[i*mediaWidth:(i+1)*mediaWidth])
	}
	parts = append(parts, sum[mediaDepth*mediaWidth:])
	key := strings.Join(parts, "/")
	if ext := strings.ToLower(filepath.Ext(filename)); ext != "" && len(ext) <= 10 && !strings.ContainsAny(ext, `/\`) {
		key += ext
	}
	return key
}
