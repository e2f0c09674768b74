package orchestrators

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"facultyeval/internal/domain/registration"
)

// StaleDraftStore lists and removes abandoned drafts.
type StaleDraftStore interface {
	ListStale(ctx context.Context, cutoff time.Time) ([]registration.Draft, error)
	Delete(ctx context.Context, id string) error
}

// SessionSweeper removes expired sessions.
type SessionSweeper interface {
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// PreviewPurger removes preview files nobody released.
type PreviewPurger interface {
	Release(handle string)
	PurgeOlderThan(cutoff time.Time) (int, error)
}

// JanitorDeps holds dependencies for the janitor.
type JanitorDeps struct {
	Drafts   StaleDraftStore
	Sessions SessionSweeper
	Uploads  PreviewPurger
	DraftTTL time.Duration
	Now      func() time.Time
	Logger   *zap.Logger // optional
}

// JanitorReport counts what one sweep removed.
type JanitorReport struct {
	Drafts   int
	Sessions int
	Previews int
}

// ExecuteJanitorSweep discards drafts idle for longer than DraftTTL together
// with their previews, expired sessions, and orphaned preview files.
// POST: Every step runs even when an earlier one fails; the first error is returned
func ExecuteJanitorSweep(ctx context.Context, deps JanitorDeps) (JanitorReport, error) {
	now := time.Now()
	if deps.Now != nil {
		now = deps.Now()
	}
	cutoff := now.Add(-deps.DraftTTL)
	var (
		report   JanitorReport
		firstErr error
	)
	keep := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}

	stale, err := deps.Drafts.ListStale(ctx, cutoff)
	if err != nil {
		keep(fmt.Errorf("list stale drafts: %w", err))
	}
	for _, d := range stale {
		deps.Uploads.Release(d.ProfilePicture)
		if err := deps.Drafts.Delete(ctx, d.ID); err != nil {
			keep(fmt.Errorf("delete draft %s: %w", d.ID, err))
			continue
		}
		report.Drafts++
	}

	if report.Sessions, err = deps.Sessions.DeleteExpired(ctx, now); err != nil {
		keep(fmt.Errorf("sweep sessions: %w", err))
	}
	// A live draft can hold a preview older than DraftTTL, so orphans get twice as long.
	if report.Previews, err = deps.Uploads.PurgeOlderThan(now.Add(-2 * deps.DraftTTL)); err != nil {
		keep(fmt.Errorf("purge previews: %w", err))
	}
	return report, firstErr
}

// StartJanitor schedules ExecuteJanitorSweep on spec (cron syntax or "@every 10m").
// POST: The returned scheduler is running; Stop it on shutdown
func StartJanitor(spec string, deps JanitorDeps) (*cron.Cron, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		report, err := ExecuteJanitorSweep(ctx, deps)
		if err != nil {
			logger.Error("janitor_sweep_failed", zap.Error(err))
		}
		if report != (JanitorReport{}) {
			logger.Info("janitor_sweep",
				zap.Int("drafts", report.Drafts),
				zap.Int("sessions", report.Sessions),
				zap.Int("previews", report.Previews),
			)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule janitor: %w", err)
	}
	c.Start()
	return c, nil
}
