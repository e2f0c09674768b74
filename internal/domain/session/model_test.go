package session

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facultyeval/internal/domain/account"
)

// memoryRepo implements Repository for testing.
type memoryRepo struct {
	sessions map[string]Session
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{sessions: make(map[string]Session)}
}

func (m *memoryRepo) Get(_ context.Context, id string) (Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return s, nil
}

func (m *memoryRepo) Save(_ context.Context, s Session) error {
	m.sessions[s.ID] = s
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, id string) error {
	delete(m.sessions, id)
	return nil
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "1", "exp": exp.Unix()})
	s, err := tok.SignedString([]byte("upstream-secret"))
	require.NoError(t, err)
	return s
}

// TestExpiryFromToken_UsesJWTClaim verifies the exp claim bounds the session.
func TestExpiryFromToken_UsesJWTClaim(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	exp := now.Add(2 * time.Hour)

	got := ExpiryFromToken(signedToken(t, exp), now, DefaultTTL)
	assert.True(t, got.Equal(exp), "got %v want %v", got, exp)
}

// TestExpiryFromToken_OpaqueFallsBack verifies non-JWT tokens use the TTL.
func TestExpiryFromToken_OpaqueFallsBack(t *testing.T) {
	now := time.Now()
	got := ExpiryFromToken("opaque-token", now, time.Hour)
	assert.True(t, got.Equal(now.Add(time.Hour)))
}

// TestService_SetGetClear verifies the full session lifecycle.
func TestService_SetGetClear(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemoryRepo(), time.Hour)

	created, err := svc.Set(ctx, "tok", `{"id":1,"userType":"admin"}`)
	require.NoError(t, err)
	assert.Len(t, created.ID, 64)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "tok", got.Token)

	u, err := got.User()
	require.NoError(t, err)
	assert.Equal(t, account.RoleAdmin, u.Role)

	require.NoError(t, svc.Clear(ctx, created.ID))
	_, err = svc.Get(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, svc.Clear(ctx, created.ID), "clearing twice is not an error")
}

// TestService_Set_RejectsEmptyToken verifies a session needs a bearer token.
func TestService_Set_RejectsEmptyToken(t *testing.T) {
	_, err := NewService(newMemoryRepo(), 0).Set(context.Background(), "", "{}")
	assert.ErrorIs(t, err, ErrEmptyToken)
}

// TestService_Get_Expired verifies stale sessions are deleted and reported.
func TestService_Get_Expired(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := NewService(repo, time.Hour)

	sess, err := svc.Set(ctx, "tok", "{}")
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrExpired)
	assert.Empty(t, repo.sessions)
}

// TestSession_User_Corrupt verifies a broken record surfaces ErrCorruptUser.
func TestSession_User_Corrupt(t *testing.T) {
	_, err := Session{UserJSON: "{broken"}.User()
	assert.ErrorIs(t, err, ErrCorruptUser)
}
