package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"facultyeval/internal/domain/account"
)

// DefaultTTL applies when the upstream token carries no expiry.
const DefaultTTL = 24 * time.Hour

// Session errors. All of them end the request with a redirect to the login page.
var (
	ErrNotFound    = errors.New("session not found")
	ErrExpired     = errors.New("session expired")
	ErrCorruptUser = errors.New("stored user record is corrupt")
	ErrEmptyToken  = errors.New("session token cannot be empty")
)

// Session is the persisted login: the upstream bearer token and the user record
// exactly as the API returned it.
type Session struct {
	ID        string
	Token     string
	UserJSON  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// User decodes the stored user record.
// INVARIANT: Session fields are not mutated
func (s Session) User() (account.UserRecord, error) {
	u, err := account.DecodeUserRecord([]byte(s.UserJSON))
	if err != nil {
		return account.UserRecord{}, fmt.Errorf("%w: %v", ErrCorruptUser, err)
	}
	return u, nil
}

// IsExpired reports whether the session is past its expiry at now.
// INVARIANT: Session fields are not mutated
func (s Session) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// ExpiryFromToken reads the exp claim of a JWT bearer without verifying it.
// The front-end cannot verify upstream signatures; the claim only bounds the
// local session so it never outlives the token. Opaque tokens fall back to issuedAt+ttl.
func ExpiryFromToken(token string, issuedAt time.Time, ttl time.Duration) time.Time {
	fallback := issuedAt.Add(ttl)
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return fallback
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return fallback
	}
	return exp.Time
}

// Repository persists sessions.
type Repository interface {
	Get(ctx context.Context, id string) (Session, error)
	Save(ctx context.Context, s Session) error
	Delete(ctx context.Context, id string) error
}

// Service is the single entry point for reading and writing the login session.
type Service struct {
	repo Repository
	ttl  time.Duration
	now  func() time.Time
}

// NewService creates a session service backed by repo.
// PRE: repo is non-nil
// POST: Returns a service; ttl <= 0 selects DefaultTTL
func NewService(repo Repository, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{repo: repo, ttl: ttl, now: time.Now}
}

// Get loads a live session.
// PRE: id is the cookie value
// POST: Returns ErrNotFound for unknown ids, ErrExpired (after deleting it) for stale ones
func (s *Service) Get(ctx context.Context, id string) (Session, error) {
	if id == "" {
		return Session{}, ErrNotFound
	}
	sess, err := s.repo.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if sess.IsExpired(s.now()) {
		_ = s.repo.Delete(ctx, id)
		return Session{}, ErrExpired
	}
	return sess, nil
}

// Set creates and persists a session for a freshly issued token.
// PRE: token is non-empty
// POST: Session is stored; its ExpiresAt never exceeds the token's exp claim
func (s *Service) Set(ctx context.Context, token, userJSON string) (Session, error) {
	if token == "" {
		return Session{}, ErrEmptyToken
	}
	id, err := NewID()
	if err != nil {
		return Session{}, err
	}
	now := s.now()
	sess := Session{
		ID:        id,
		Token:     token,
		UserJSON:  userJSON,
		CreatedAt: now,
		ExpiresAt: ExpiryFromToken(token, now, s.ttl),
	}
	if err := s.repo.Save(ctx, sess); err != nil {
		return Session{}, fmt.Errorf("save session: %w", err)
	}
	return sess, nil
}

// Clear removes a session. Clearing an unknown id is not an error.
// POST: No session with id remains
func (s *Service) Clear(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := s.repo.Delete(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

// NewID returns a random 32-byte hex session identifier.
func NewID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
