package draft

import (
	"context"
	"time"

	domain "facultyeval/internal/domain/registration"
)

// Store persists registration drafts between wizard steps.
type Store interface {
	Get(ctx context.Context, id string) (domain.Draft, error)
	Save(ctx context.Context, d domain.Draft) error
	Delete(ctx context.Context, id string) error
	// ListStale returns drafts last updated before cutoff.
	ListStale(ctx context.Context, cutoff time.Time) ([]domain.Draft, error)
}
