package repository

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMediaStorePut(t *testing.T) {
	m := NewMediaStore(t.TempDir())

	key, err := m.Put(strings.NewReader("pixels"), "Photo.JPG")
	require.NoError(t, err)

	sum := sha256.Sum256([]byte("pixels"))
	h := hex.EncodeToString(sum[:])
	assert.Equal(t, h[0:2]+"/"+h[2:4]+"/"+h[4:6]+"/"+h[6:]+".jpg", key)

	f, err := m.Open(key)
	require.NoError(t, err)
	defer f.Close()
	b, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "pixels", string(b))

	again, err := m.Put(strings.NewReader("pixels"), "other.jpg")
	require.NoError(t, err)
	assert.Equal(t, key, again)

	// only the blob tree remains, no temp uploads
	entries, err := os.ReadDir(m.Root)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".upload-"), e.Name())
	}
}

func TestMediaStoreOpenMissing(t *testing.T) {
	m := NewMediaStore(t.TempDir())
	_, err := m.Open("aa/bb/cc/dd")
	assert.True(t, errors.Is(err, ErrNotFound))
}
