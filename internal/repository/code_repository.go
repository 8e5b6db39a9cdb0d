package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cleverdevil/dwell/internal/model"
)

// CodeRepo persists authorization codes (hashed 'code_hash' column). Times
// are stored as unix seconds so the same SQL runs on sqlite and MySQL.
type CodeRepo struct{ DB *sql.DB }

func NewCodeRepo(db *sql.DB) *CodeRepo { return &CodeRepo{DB: db} }

const codeSchema = `CREATE TABLE IF NOT EXISTS codes (
	code_hash    VARCHAR(64)   NOT NULL PRIMARY KEY,
	client_id    VARCHAR(512)  NOT NULL,
	redirect_url VARCHAR(1024) NOT NULL,
	me           VARCHAR(512)  NOT NULL,
	scope        VARCHAR(512)  NOT NULL,
	created_at   BIGINT        NOT NULL,
	expires_at   BIGINT        NOT NULL
)`

// EnsureSchema creates the codes table when missing.
func (r *CodeRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, codeSchema)
	return err
}

// Create inserts a code row.
func (r *CodeRepo) Create(ctx context.Context, c model.AuthorizationCode) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO codes (code_hash, client_id, redirect_url, me, scope, created_at, expires_at) VALUES (?,?,?,?,?,?,?)",
		c.CodeHash, c.ClientID, c.RedirectURL, c.Me, c.Scope, c.CreatedAt.Unix(), c.ExpiresAt.Unix())
	return err
}

// FindBound returns the row matching all of hash, client and redirect url.
// Expiry is left to the caller.
func (r *CodeRepo) FindBound(ctx context.Context, codeHash, clientID, redirectURL string) (*model.AuthorizationCode, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT code_hash, client_id, redirect_url, me, scope, created_at, expires_at FROM codes WHERE code_hash=? AND client_id=? AND redirect_url=? LIMIT 1",
		codeHash, clientID, redirectURL)
	return scanCode(row)
}

// FindByHash returns the row for a code hash alone.
func (r *CodeRepo) FindByHash(ctx context.Context, codeHash string) (*model.AuthorizationCode, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT code_hash, client_id, redirect_url, me, scope, created_at, expires_at FROM codes WHERE code_hash=? LIMIT 1",
		codeHash)
	return scanCode(row)
}

// DeleteExpired removes rows whose expiry is at or before now.
func (r *CodeRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM codes WHERE expires_at <= ?", now.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Revoke deletes a single code.
func (r *CodeRepo) Revoke(ctx context.Context, codeHash string) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM codes WHERE code_hash=?", codeHash)
	return err
}

func scanCode(row *sql.Row) (*model.AuthorizationCode, error) {
	var (
		c                  model.AuthorizationCode
		created, expiresAt int64
	)
	err := row.Scan(&c.CodeHash, &c.ClientID, &c.RedirectURL, &c.Me, &c.Scope, &created, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	c.CreatedAt = time.Unix(created, 0).UTC()
	c.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	return &c, nil
}
