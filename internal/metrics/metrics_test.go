package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMetrics_Exposition verifies recorded values appear on the handler.
func TestMetrics_Exposition(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveUpstream("faculties", OutcomeOK)
	m.ObserveUpstream("faculties", OutcomeOK)
	m.ObserveUpstream("students", OutcomeTransport)
	m.ObserveRequest("GET", "/admin/dashboard", 200, 30*time.Millisecond)
	m.ObserveLogin("ok")
	m.ObserveRegistration("failed")
	m.ObserveQuery("QueryRowxContext", time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	out := string(body)
	assert.Contains(t, out, `fes_upstream_requests_total{outcome="ok",source="faculties"} 2`)
	assert.Contains(t, out, `fes_upstream_requests_total{outcome="transport_error",source="students"} 1`)
	assert.Contains(t, out, `fes_http_request_duration_seconds_count{method="GET",route="/admin/dashboard",status="200"} 1`)
	assert.Contains(t, out, `fes_logins_total{outcome="ok"} 1`)
	assert.Contains(t, out, `fes_registrations_total{outcome="failed"} 1`)
	assert.Contains(t, out, `fes_db_query_duration_seconds_count{op="QueryRowxContext"} 1`)
}

// TestMetrics_NilIsNoop verifies a nil collector set can be passed around freely.
func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveUpstream("x", OutcomeOK)
		m.ObserveRequest("GET", "/", 200, time.Second)
		m.ObserveLogin("ok")
		m.ObserveRegistration("ok")
		m.ObserveQuery("ExecContext", time.Second)
	})
	assert.NotNil(t, m.Handler())
}
