package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"facultyeval/internal/adapters/storage"
	domain "facultyeval/internal/domain/session"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.DB
}

// NewSQLiteStore creates a new session store.
func NewSQLiteStore(db storage.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

type sessionRow struct {
	ID        string `db:"id"`
	Token     string `db:"token"`
	UserJSON  string `db:"user_json"`
	CreatedAt string `db:"created_at"`
	ExpiresAt string `db:"expires_at"`
}

// Get retrieves a session by its ID.
// PRE: id is non-empty
// POST: Returns the session or domain.ErrNotFound
func (s *SQLiteStore) Get(ctx context.Context, id string) (domain.Session, error) {
	var row sessionRow
	err := sqlx.GetContext(ctx, s.db, &row, "SELECT id, token, user_json, created_at, expires_at FROM session WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Session{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}

	created, err := storage.ParseTime(row.CreatedAt)
	if err != nil {
		return domain.Session{}, fmt.Errorf("parse created_at: %w", err)
	}
	expires, err := storage.ParseTime(row.ExpiresAt)
	if err != nil {
		return domain.Session{}, fmt.Errorf("parse expires_at: %w", err)
	}
	return domain.Session{
		ID:        row.ID,
		Token:     row.Token,
		UserJSON:  row.UserJSON,
		CreatedAt: created,
		ExpiresAt: expires,
	}, nil
}

// Save persists a session (insert or update).
// PRE: sess.ID is non-empty
// POST: Session is persisted
func (s *SQLiteStore) Save(ctx context.Context, sess domain.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session (id, token, user_json, created_at, expires_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET token=excluded.token, user_json=excluded.user_json, expires_at=excluded.expires_at`,
		sess.ID, sess.Token, sess.UserJSON, storage.FormatTime(sess.CreatedAt), storage.FormatTime(sess.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Delete removes a session. Deleting an unknown id is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM session WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpired removes sessions that expired at or before now.
func (s *SQLiteStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM session WHERE expires_at <= ?", storage.FormatTime(now))
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
