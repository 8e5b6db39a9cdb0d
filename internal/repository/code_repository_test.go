package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleverdevil/dwell/internal/database"
	"github.com/cleverdevil/dwell/internal/model"
)

func openCodeRepo(t *testing.T) *CodeRepo {
	t.Helper()
	db, err := database.Open("sqlite3", database.SQLiteDSN(filepath.Join(t.TempDir(), "auth.db")))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	r := NewCodeRepo(db)
	require.NoError(t, r.EnsureSchema(context.Background()))
	return r
}

func TestCodeRepoCreateFind(t *testing.T) {
	ctx := context.Background()
	r := openCodeRepo(t)
	now := time.Now().UTC().Truncate(time.Second)

	c := model.AuthorizationCode{
		CodeHash:    "h1",
		ClientID:    "https://client.example/",
		RedirectURL: "https://client.example/cb",
		Me:          "https://me.example/",
		Scope:       "create update",
		CreatedAt:   now,
		ExpiresAt:   now.Add(time.Hour),
	}
	require.NoError(t, r.Create(ctx, c))

	got, err := r.FindBound(ctx, "h1", c.ClientID, c.RedirectURL)
	require.NoError(t, err)
	assert.Equal(t, c.Me, got.Me)
	assert.Equal(t, c.Scope, got.Scope)
	assert.True(t, c.CreatedAt.Equal(got.CreatedAt))
	assert.True(t, c.ExpiresAt.Equal(got.ExpiresAt))

	_, err = r.FindBound(ctx, "h1", "https://other.example/", c.RedirectURL)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = r.FindBound(ctx, "h1", c.ClientID, "https://client.example/other")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err = r.FindByHash(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, "create update", got.Scope)

	// creating the same hash twice violates the primary key
	assert.Error(t, r.Create(ctx, c))

	require.NoError(t, r.Revoke(ctx, "h1"))
	_, err = r.FindByHash(ctx, "h1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCodeRepoDeleteExpired(t *testing.T) {
	ctx := context.Background()
	r := openCodeRepo(t)
	now := time.Now().UTC()

	for hash, exp := range map[string]time.Time{
		"old":    now.Add(-time.Hour),
		"edge":   now,
		"future": now.Add(time.Hour),
	} {
		require.NoError(t, r.Create(ctx, model.AuthorizationCode{
			CodeHash: hash, ClientID: "c", RedirectURL: "r", Me: "m", Scope: "create",
			CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: exp,
		}))
	}

	n, err := r.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = r.FindByHash(ctx, "future")
	assert.NoError(t, err)
	_, err = r.FindByHash(ctx, "old")
	assert.ErrorIs(t, err, ErrNotFound)
}
