package cli

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleverdevil/dwell/internal/database"
	"github.com/cleverdevil/dwell/internal/model"
	"github.com/cleverdevil/dwell/internal/repository"
	"github.com/cleverdevil/dwell/internal/utils"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestPasswdFromStdin(t *testing.T) {
	out, err := run(t, "hunter2\n", "passwd", "--cost", "4")
	require.NoError(t, err)
	hash := strings.TrimSpace(out)
	assert.True(t, utils.VerifyPassword(hash, "hunter2"))
	assert.False(t, utils.VerifyPassword(hash, "hunter3"))
}

func TestPasswdFromFlag(t *testing.T) {
	out, err := run(t, "", "passwd", "--cost", "4", "--password", "s3cret")
	require.NoError(t, err)
	assert.True(t, utils.VerifyPassword(strings.TrimSpace(out), "s3cret"))
}

func TestPasswdRejectsEmpty(t *testing.T) {
	_, err := run(t, "", "passwd", "--cost", "4")
	assert.Error(t, err)
	_, err = run(t, "\n", "passwd", "--cost", "4")
	assert.Error(t, err)
}

func TestRootRejectsDriver(t *testing.T) {
	_, err := run(t, "", "--db-driver", "oracle", "sweep-codes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid db driver")
}

// seed writes one live and one expired code into a fresh sqlite file.
func seed(t *testing.T) (path, liveCode string) {
	t.Helper()
	ctx := context.Background()
	path = filepath.Join(t.TempDir(), "auth.db")
	db, err := database.Open("sqlite3", database.SQLiteDSN(path))
	require.NoError(t, err)
	defer db.Close()
	codes := repository.NewCodeRepo(db)
	require.NoError(t, codes.EnsureSchema(ctx))

	now := time.Now()
	liveCode = "live-code"
	for code, exp := range map[string]time.Time{liveCode: now.Add(time.Hour), "old-code": now.Add(-time.Hour)} {
		require.NoError(t, codes.Create(ctx, model.AuthorizationCode{
			CodeHash:    utils.HashCode(code),
			ClientID:    "https://app.example/",
			RedirectURL: "https://app.example/cb",
			Me:          "https://example.com/",
			Scope:       "create",
			CreatedAt:   now.Add(-2 * time.Hour),
			ExpiresAt:   exp,
		}))
	}
	return path, liveCode
}

func lookup(t *testing.T, path, code string) error {
	t.Helper()
	db, err := database.Open("sqlite3", database.SQLiteDSN(path))
	require.NoError(t, err)
	defer db.Close()
	_, err = repository.NewCodeRepo(db).FindByHash(context.Background(), utils.HashCode(code))
	return err
}

func TestSweepCodes(t *testing.T) {
	path, live := seed(t)
	out, err := run(t, "", "--db-driver", "sqlite3", "--db-dsn", path, "sweep-codes")
	require.NoError(t, err)
	assert.Equal(t, "removed 1 expired code(s)\n", out)

	assert.NoError(t, lookup(t, path, live))
	assert.Error(t, lookup(t, path, "old-code"))
}

func TestRevokeCode(t *testing.T) {
	path, live := seed(t)
	out, err := run(t, "", "--db-driver", "sqlite3", "--db-dsn", path, "revoke-code", live)
	require.NoError(t, err)
	assert.Equal(t, "revoked\n", out)
	assert.Error(t, lookup(t, path, live))

	_, err = run(t, "", "--db-driver", "sqlite3", "--db-dsn", path, "revoke-code", live)
	assert.ErrorContains(t, err, "code not found")
}

func TestReindex(t *testing.T) {
	var got []string
	publish := func(_ context.Context, url, queueName, reason string) error {
		got = append(got, url, queueName, reason)
		return nil
	}
	cmd := newReindexCommand(publish)
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--amqp-url", "amqp://broker/", "--queue", "q1", "--reason", "import"})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, []string{"amqp://broker/", "q1", "import"}, got)
	assert.Equal(t, "reindex requested on q1\n", buf.String())
}

func TestReindexErrors(t *testing.T) {
	cmd := newReindexCommand(func(context.Context, string, string, string) error { return nil })
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--amqp-url", ""})
	assert.ErrorContains(t, cmd.Execute(), "no broker configured")

	cmd = newReindexCommand(func(context.Context, string, string, string) error { return errors.New("refused") })
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--amqp-url", "amqp://broker/"})
	assert.ErrorContains(t, cmd.Execute(), "refused")
}
