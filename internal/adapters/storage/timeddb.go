package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"facultyeval/internal/metrics"
)

// DB is the database interface used by all stores.
// Both *sqlx.DB and *TimedDB satisfy it.
type DB interface {
	sqlx.ExtContext
}

// Compile-time checks.
var (
	_ DB = (*sqlx.DB)(nil)
	_ DB = (*TimedDB)(nil)
)

// DefaultSlowQuery is the default threshold for slow query warnings.
const DefaultSlowQuery = 50 * time.Millisecond

// TimedDB wraps a *sqlx.DB to log slow queries and record durations.
type TimedDB struct {
	db        *sqlx.DB
	logger    *zap.Logger
	metrics   *metrics.Metrics
	threshold time.Duration
}

// NewTimedDB wraps db with timing instrumentation.
// PRE: db is a valid database connection
// POST: Returns a TimedDB; threshold <= 0 selects DefaultSlowQuery, nil logger logs nothing
func NewTimedDB(db *sqlx.DB, logger *zap.Logger, m *metrics.Metrics, threshold time.Duration) *TimedDB {
	if threshold <= 0 {
		threshold = DefaultSlowQuery
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimedDB{db: db, logger: logger, metrics: m, threshold: threshold}
}

// RawDB returns the underlying *sqlx.DB (needed for migrations and pool config).
func (t *TimedDB) RawDB() *sqlx.DB {
	return t.db
}

func (t *TimedDB) logQuery(op string, start time.Time) {
	d := time.Since(start)
	if d >= t.threshold {
		t.logger.Warn("slow_query", zap.String("op", op), zap.Duration("duration", d))
	} else {
		t.logger.Debug("query", zap.String("op", op), zap.Duration("duration", d))
	}
	t.metrics.ObserveQuery(op, d)
}

// ExecContext wraps sqlx.DB.ExecContext with timing.
func (t *TimedDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	result, err := t.db.ExecContext(ctx, query, args...)
	t.logQuery("ExecContext", start)
	return result, err
}

// QueryContext wraps sqlx.DB.QueryContext with timing.
func (t *TimedDB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := t.db.QueryContext(ctx, query, args...)
	t.logQuery("QueryContext", start)
	return rows, err
}

// QueryxContext wraps sqlx.DB.QueryxContext with timing.
func (t *TimedDB) QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error) {
	start := time.Now()
	rows, err := t.db.QueryxContext(ctx, query, args...)
	t.logQuery("QueryxContext", start)
	return rows, err
}

// QueryRowxContext wraps sqlx.DB.QueryRowxContext with timing.
func (t *TimedDB) QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row {
	start := time.Now()
	row := t.db.QueryRowxContext(ctx, query, args...)
	t.logQuery("QueryRowxContext", start)
	return row
}

// DriverName returns the driver of the wrapped pool.
func (t *TimedDB) DriverName() string { return t.db.DriverName() }

// Rebind converts placeholders for the wrapped driver.
func (t *TimedDB) Rebind(query string) string { return t.db.Rebind(query) }

// BindNamed expands named parameters for the wrapped driver.
func (t *TimedDB) BindNamed(query string, arg any) (string, []any, error) {
	return t.db.BindNamed(query, arg)
}

// Close closes the underlying database connection.
func (t *TimedDB) Close() error {
	return t.db.Close()
}
