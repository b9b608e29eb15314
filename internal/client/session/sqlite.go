package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/filex"

	_ "modernc.org/sqlite"
)

const (
	keyUserName     = "user_name"
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"

	// FileName is the database file created inside the data directory.
	FileName = "session.db"
)

const schema = `
CREATE TABLE IF NOT EXISTS session (
  key   TEXT PRIMARY KEY,
  value TEXT NOT NULL
);`

type SQLiteStore struct {
	db *sql.DB
}

// Open creates dataDir when needed and opens the session database in it.
func Open(ctx context.Context, dataDir string) (*SQLiteStore, error) {
	dir, err := filex.EnsureDir(dataDir)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", filepath.Join(dir, FileName))
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	s, err := NewSQLiteStore(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteStore creates the schema on db if it is missing.
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("create session schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func get(ctx context.Context, q dbx.DBTX, key string) (string, error) {
	var value string
	err := q.QueryRowContext(ctx, `SELECT value FROM session WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get session[%s]: %w", key, err)
	}
	return value, nil
}

func set(ctx context.Context, q dbx.DBTX, key, value string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO session (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set session[%s]: %w", key, err)
	}
	return nil
}

func (r *SQLiteStore) Load(ctx context.Context) (Session, error) {
	var s Session
	var err error
	if s.UserName, err = get(ctx, r.db, keyUserName); err != nil {
		return Session{}, err
	}
	if s.AccessToken, err = get(ctx, r.db, keyAccessToken); err != nil {
		return Session{}, err
	}
	if s.RefreshToken, err = get(ctx, r.db, keyRefreshToken); err != nil {
		return Session{}, err
	}
	return s, nil
}

// Save replaces the stored session atomically.
func (r *SQLiteStore) Save(ctx context.Context, s Session) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := set(ctx, tx, keyUserName, s.UserName); err != nil {
			return err
		}
		if err := set(ctx, tx, keyAccessToken, s.AccessToken); err != nil {
			return err
		}
		return set(ctx, tx, keyRefreshToken, s.RefreshToken)
	})
}

func (r *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM session`); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

func (r *SQLiteStore) Close() error {
	return r.db.Close()
}
