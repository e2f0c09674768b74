package draft

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"facultyeval/internal/adapters/storage"
	"facultyeval/internal/domain/account"
	domain "facultyeval/internal/domain/registration"
)

// SQLiteStore implements Store using SQLite. Passwords are sealed at rest.
type SQLiteStore struct {
	db     storage.DB
	sealer *Sealer
}

// NewSQLiteStore creates a new draft store.
// PRE: sealer is non-nil
func NewSQLiteStore(db storage.DB, sealer *Sealer) *SQLiteStore {
	return &SQLiteStore{db: db, sealer: sealer}
}

const draftColumns = "id, step, user_type, school_id, firstname, lastname, email, class_id, classes_handled, sealed_credentials, profile_picture, selected_avatar, error, created_at, updated_at"

type draftRow struct {
	ID                string `db:"id"`
	Step              int    `db:"step"`
	UserType          string `db:"user_type"`
	SchoolID          string `db:"school_id"`
	Firstname         string `db:"firstname"`
	Lastname          string `db:"lastname"`
	Email             string `db:"email"`
	ClassID           string `db:"class_id"`
	ClassesHandled    string `db:"classes_handled"`
	SealedCredentials []byte `db:"sealed_credentials"`
	ProfilePicture    string `db:"profile_picture"`
	SelectedAvatar    string `db:"selected_avatar"`
	Error             string `db:"error"`
	CreatedAt         string `db:"created_at"`
	UpdatedAt         string `db:"updated_at"`
}

type credentials struct {
	Password string `json:"p"`
	Confirm  string `json:"c"`
}

// Get retrieves a draft by its ID.
// PRE: id is non-empty
// POST: Returns the draft with credentials unsealed, or domain.ErrDraftNotFound.
// Credentials that do not unseal yield domain.ErrDraftUnreadable together with
// the draft minus its credentials, so callers can release what it holds.
func (s *SQLiteStore) Get(ctx context.Context, id string) (domain.Draft, error) {
	var row draftRow
	err := sqlx.GetContext(ctx, s.db, &row, "SELECT "+draftColumns+" FROM registration_draft WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Draft{}, domain.ErrDraftNotFound
	}
	if err != nil {
		return domain.Draft{}, fmt.Errorf("get draft: %w", err)
	}
	return s.fromRow(row)
}

// Save persists a draft (insert or update).
// PRE: d.ID is non-empty
// POST: Draft is persisted; the password pair is stored only in sealed form
func (s *SQLiteStore) Save(ctx context.Context, d domain.Draft) error {
	handled, err := json.Marshal(nonNil(d.ClassesHandled))
	if err != nil {
		return err
	}
	var sealed []byte
	if d.Password != "" || d.ConfirmPassword != "" {
		plain, err := json.Marshal(credentials{Password: d.Password, Confirm: d.ConfirmPassword})
		if err != nil {
			return err
		}
		if sealed, err = s.sealer.Seal(plain); err != nil {
			return fmt.Errorf("seal credentials: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO registration_draft (`+draftColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			step=excluded.step,
			user_type=excluded.user_type,
			school_id=excluded.school_id,
			firstname=excluded.firstname,
			lastname=excluded.lastname,
			email=excluded.email,
			class_id=excluded.class_id,
			classes_handled=excluded.classes_handled,
			sealed_credentials=excluded.sealed_credentials,
			profile_picture=excluded.profile_picture,
			selected_avatar=excluded.selected_avatar,
			error=excluded.error,
			updated_at=excluded.updated_at`,
		d.ID, int(d.Step), string(d.UserType), d.SchoolID, d.Firstname, d.Lastname, d.Email,
		d.ClassID, string(handled), sealed, d.ProfilePicture, d.SelectedAvatar, d.Error,
		storage.FormatTime(d.CreatedAt), storage.FormatTime(d.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

// Delete removes a draft. Deleting an unknown id is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM registration_draft WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

// ListStale returns drafts last updated before cutoff, oldest first.
// Drafts whose credentials can no longer be unsealed are returned without them.
func (s *SQLiteStore) ListStale(ctx context.Context, cutoff time.Time) ([]domain.Draft, error) {
	var rows []draftRow
	err := sqlx.SelectContext(ctx, s.db, &rows,
		"SELECT "+draftColumns+" FROM registration_draft WHERE updated_at < ? ORDER BY updated_at", storage.FormatTime(cutoff))
	if err != nil {
		return nil, fmt.Errorf("list stale drafts: %w", err)
	}
	out := make([]domain.Draft, 0, len(rows))
	for _, row := range rows {
		row.SealedCredentials = nil
		d, err := s.fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *SQLiteStore) fromRow(row draftRow) (domain.Draft, error) {
	d := domain.Draft{
		ID:             row.ID,
		Step:           domain.Step(row.Step),
		UserType:       account.Role(row.UserType),
		SchoolID:       row.SchoolID,
		Firstname:      row.Firstname,
		Lastname:       row.Lastname,
		Email:          row.Email,
		ClassID:        row.ClassID,
		ProfilePicture: row.ProfilePicture,
		SelectedAvatar: row.SelectedAvatar,
		Error:          row.Error,
	}
	if !d.Step.IsValid() {
		return domain.Draft{}, fmt.Errorf("draft %s has invalid step %d", row.ID, row.Step)
	}
	if err := json.Unmarshal([]byte(row.ClassesHandled), &d.ClassesHandled); err != nil {
		return domain.Draft{}, fmt.Errorf("decode classes_handled: %w", err)
	}
	if len(d.ClassesHandled) == 0 {
		d.ClassesHandled = nil
	}
	var err error
	if d.CreatedAt, err = storage.ParseTime(row.CreatedAt); err != nil {
		return domain.Draft{}, fmt.Errorf("parse created_at: %w", err)
	}
	if d.UpdatedAt, err = storage.ParseTime(row.UpdatedAt); err != nil {
		return domain.Draft{}, fmt.Errorf("parse updated_at: %w", err)
	}
	if len(row.SealedCredentials) > 0 {
		c, err := s.unseal(row.SealedCredentials)
		if err != nil {
			return d, fmt.Errorf("draft %s: %w: %w", row.ID, domain.ErrDraftUnreadable, err)
		}
		d.Password, d.ConfirmPassword = c.Password, c.Confirm
	}
	return d, nil
}

func (s *SQLiteStore) unseal(sealed []byte) (credentials, error) {
	var c credentials
	plain, err := s.sealer.Open(sealed)
	if err != nil {
		return c, fmt.Errorf("unseal credentials: %w", err)
	}
	if err := json.Unmarshal(plain, &c); err != nil {
		return c, fmt.Errorf("decode credentials: %w", err)
	}
	return c, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
