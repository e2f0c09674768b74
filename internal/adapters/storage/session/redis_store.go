package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domain "facultyeval/internal/domain/session"
)

const redisKeyPrefix = "fes:session:"

// RedisStore implements Store on Redis. Entries carry a TTL matching the
// session expiry, so Redis evicts them without a sweep.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a session store on client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

type redisSession struct {
	Token     string    `json:"token"`
	UserJSON  string    `json:"user"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func redisKey(id string) string { return redisKeyPrefix + id }

// Get retrieves a session by its ID.
// POST: Returns the session or domain.ErrNotFound
func (s *RedisStore) Get(ctx context.Context, id string) (domain.Session, error) {
	value, err := s.client.Get(ctx, redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Session{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}
	var rs redisSession
	if err := json.Unmarshal(value, &rs); err != nil {
		return domain.Session{}, fmt.Errorf("decode session: %w", err)
	}
	return domain.Session{
		ID:        id,
		Token:     rs.Token,
		UserJSON:  rs.UserJSON,
		CreatedAt: rs.CreatedAt,
		ExpiresAt: rs.ExpiresAt,
	}, nil
}

// Save persists a session with a TTL of the time left until it expires.
// POST: An already expired session is not stored
func (s *RedisStore) Save(ctx context.Context, sess domain.Session) error {
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return s.Delete(ctx, sess.ID)
	}
	data, err := json.Marshal(redisSession{
		Token:     sess.Token,
		UserJSON:  sess.UserJSON,
		CreatedAt: sess.CreatedAt,
		ExpiresAt: sess.ExpiresAt,
	})
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, redisKey(sess.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Delete removes a session.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, redisKey(id)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpired is a no-op; Redis expires keys itself.
func (s *RedisStore) DeleteExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}
