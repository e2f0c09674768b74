package storage

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"facultyeval/internal/metrics"
)

func openTimedTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec("CREATE TABLE test (id TEXT PRIMARY KEY, val TEXT)")
	require.NoError(t, err)
	return db
}

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

// TestTimedDB_RecordsOperations verifies each wrapped call is timed.
func TestTimedDB_RecordsOperations(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	tdb := NewTimedDB(openTimedTestDB(t), nil, m, 0)
	ctx := context.Background()

	_, err := tdb.ExecContext(ctx, "INSERT INTO test (id, val) VALUES (?, ?)", "1", "hello")
	require.NoError(t, err)

	var val string
	require.NoError(t, sqlx.GetContext(ctx, tdb, &val, "SELECT val FROM test WHERE id = ?", "1"))
	assert.Equal(t, "hello", val)

	var ids []string
	require.NoError(t, sqlx.SelectContext(ctx, tdb, &ids, "SELECT id FROM test"))
	assert.Equal(t, []string{"1"}, ids)

	out := scrape(t, m)
	assert.Contains(t, out, `fes_db_query_duration_seconds_count{op="ExecContext"} 1`)
	assert.Contains(t, out, `fes_db_query_duration_seconds_count{op="QueryRowxContext"} 1`)
	assert.Contains(t, out, `fes_db_query_duration_seconds_count{op="QueryxContext"} 1`)
}

// TestTimedDB_SlowQueryWarns verifies queries over the threshold log at warn.
func TestTimedDB_SlowQueryWarns(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	tdb := NewTimedDB(openTimedTestDB(t), zap.New(core), nil, 1)

	_, err := tdb.ExecContext(context.Background(), "INSERT INTO test (id, val) VALUES (?, ?)", "1", "x")
	require.NoError(t, err)

	slow := logs.FilterMessage("slow_query").All()
	require.Len(t, slow, 1)
	assert.Equal(t, "ExecContext", slow[0].ContextMap()["op"])
}

// TestTimedDB_Passthrough verifies binder methods reach the wrapped pool.
func TestTimedDB_Passthrough(t *testing.T) {
	db := openTimedTestDB(t)
	tdb := NewTimedDB(db, nil, nil, 0)
	assert.Equal(t, DriverName, tdb.DriverName())
	assert.Equal(t, "SELECT ? , ?", tdb.Rebind("SELECT ? , ?"))
	assert.Same(t, db, tdb.RawDB())
}
