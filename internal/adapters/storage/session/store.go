package session

import (
	"context"
	"time"

	domain "facultyeval/internal/domain/session"
)

// Store persists login sessions.
type Store interface {
	domain.Repository
	// DeleteExpired removes sessions whose expiry is at or before now and reports how many.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
