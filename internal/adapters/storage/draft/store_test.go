package draft

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facultyeval/internal/adapters/storage"
	"facultyeval/internal/domain/account"
	domain "facultyeval/internal/domain/registration"
)

func newStore(t *testing.T) (*SQLiteStore, storage.DB) {
	t.Helper()
	db, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, storage.Migrate(db))
	sealer, err := NewSealer(nil)
	require.NoError(t, err)
	return NewSQLiteStore(db, sealer), db
}

func TestSealer_RoundTrip(t *testing.T) {
	s, err := NewSealer(bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)

	sealed, err := s.Seal([]byte("hunter2"))
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "hunter2")

	plain, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", string(plain))

	again, err := s.Seal([]byte("hunter2"))
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ per seal")
}

func TestSealer_RejectsForeignData(t *testing.T) {
	a, err := NewSealer(nil)
	require.NoError(t, err)
	b, err := NewSealer(nil)
	require.NoError(t, err)

	sealed, err := a.Seal([]byte("secret"))
	require.NoError(t, err)

	_, err = b.Open(sealed)
	assert.ErrorIs(t, err, ErrUnseal)
	_, err = a.Open(sealed[:10])
	assert.ErrorIs(t, err, ErrUnseal)

	sealed[len(sealed)-1] ^= 0xff
	_, err = a.Open(sealed)
	assert.ErrorIs(t, err, ErrUnseal)
}

func TestNewSealer_BadKeyLength(t *testing.T) {
	_, err := NewSealer([]byte("short"))
	assert.Error(t, err)
}

func TestSQLiteStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)
	now := time.Now().UTC()

	d := domain.NewDraft(now)
	d.SetAccount(domain.AccountInput{UserType: "faculty", SchoolID: "F-1", Firstname: "Ada", Lastname: "Lovelace", Email: "ada@example.edu"})
	d.SetClasses("", []string{"c1", "c2"})
	d.SetCredentials("secret1", "secret1")
	d.Step = domain.StepSecurity
	d.Error = "Passwords do not match"

	_, err := store.Get(ctx, d.ID)
	assert.ErrorIs(t, err, domain.ErrDraftNotFound)

	require.NoError(t, store.Save(ctx, d))
	got, err := store.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StepSecurity, got.Step)
	assert.Equal(t, account.RoleFaculty, got.UserType)
	assert.Equal(t, []string{"c1", "c2"}, got.ClassesHandled)
	assert.Equal(t, "secret1", got.Password)
	assert.Equal(t, "secret1", got.ConfirmPassword)
	assert.Equal(t, "Passwords do not match", got.Error)
	assert.True(t, got.CreatedAt.Equal(d.CreatedAt))

	got.Step = domain.StepComplete
	got.SetCredentials("", "")
	require.NoError(t, store.Save(ctx, got))
	again, err := store.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StepComplete, again.Step)
	assert.Empty(t, again.Password)

	require.NoError(t, store.Delete(ctx, d.ID))
	_, err = store.Get(ctx, d.ID)
	assert.ErrorIs(t, err, domain.ErrDraftNotFound)
	assert.NoError(t, store.Delete(ctx, d.ID))
}

func TestSQLiteStore_GetUnderRotatedKey(t *testing.T) {
	ctx := context.Background()
	store, db := newStore(t)

	d := domain.NewDraft(time.Now().UTC())
	d.SetAccount(domain.AccountInput{UserType: "student", SchoolID: "S-1", Firstname: "Ada", Lastname: "Lovelace", Email: "ada@example.edu"})
	d.SetCredentials("secret1", "secret1")
	require.NoError(t, store.Save(ctx, d))

	rotated, err := NewSealer(nil)
	require.NoError(t, err)
	got, err := NewSQLiteStore(db, rotated).Get(ctx, d.ID)
	assert.ErrorIs(t, err, domain.ErrDraftUnreadable)
	assert.ErrorIs(t, err, ErrUnseal)
	assert.Equal(t, d.ID, got.ID)
	assert.Equal(t, "ada@example.edu", got.Email)
	assert.Empty(t, got.Password)
}

// TestSQLiteStore_PasswordNeverStoredInClear inspects the raw row.
func TestSQLiteStore_PasswordNeverStoredInClear(t *testing.T) {
	ctx := context.Background()
	store, db := newStore(t)

	d := domain.NewDraft(time.Now())
	d.SetCredentials("plaintext-password", "plaintext-password")
	require.NoError(t, store.Save(ctx, d))

	rows, err := db.QueryxContext(ctx, "SELECT * FROM registration_draft")
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		cols, err := rows.SliceScan()
		require.NoError(t, err)
		for _, c := range cols {
			switch v := c.(type) {
			case string:
				assert.NotContains(t, v, "plaintext-password")
			case []byte:
				assert.NotContains(t, string(v), "plaintext-password")
			}
		}
	}
	require.NoError(t, rows.Err())
}

func TestSQLiteStore_ListStale(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)
	now := time.Now()

	old := domain.NewDraft(now.Add(-3 * time.Hour))
	old.ProfilePicture = "old-handle"
	old.SetCredentials("pw1234", "pw1234")
	fresh := domain.NewDraft(now)
	require.NoError(t, store.Save(ctx, old))
	require.NoError(t, store.Save(ctx, fresh))

	stale, err := store.ListStale(ctx, now.Add(-2*time.Hour))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, old.ID, stale[0].ID)
	assert.Equal(t, "old-handle", stale[0].ProfilePicture)
	assert.Empty(t, stale[0].Password)
}
