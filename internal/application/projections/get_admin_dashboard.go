package projections

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"go.uber.org/zap"

	"facultyeval/internal/adapters/api"
	"facultyeval/internal/domain/dashboard"
)

// ErrAggregationFailed marks a dashboard rendered from the fallback pass.
var ErrAggregationFailed = errors.New("failed to load dashboard data")

// statSource is one count endpoint feeding a dashboard counter.
type statSource struct {
	key   dashboard.StatKey
	path  string
	query url.Values
}

func countOnly(extra ...string) url.Values {
	q := url.Values{"countOnly": {"true"}}
	for i := 0; i+1 < len(extra); i += 2 {
		q.Set(extra[i], extra[i+1])
	}
	return q
}

func statsType(t string) url.Values { return url.Values{"type": {t}} }

// primarySources are fetched concurrently, one goroutine each.
var primarySources = []statSource{
	{dashboard.KeyFaculties, "/api/admin/dashboard/stats", statsType("faculty")},
	{dashboard.KeyStudents, "/api/admin/dashboard/stats", statsType("student")},
	{dashboard.KeyEvaluationForms, "/api/admin/evaluation-forms", countOnly()},
	{dashboard.KeySubmittedEvaluations, "/api/admin/evaluations/list", countOnly()},
	{dashboard.KeyClasses, "/api/admin/dashboard/stats", statsType("class")},
	{dashboard.KeySubjects, "/api/admin/dashboard/stats", statsType("subject")},
	{dashboard.KeyAcademicYears, "/api/admin/dashboard/stats", statsType("academic-year")},
	{dashboard.KeyPendingEvaluations, "/api/admin/evaluations", countOnly("status", "pending")},
}

// fallbackSources are fetched one after another when aggregation fails.
var fallbackSources = []statSource{
	{dashboard.KeyFaculties, "/api/faculty", countOnly()},
	{dashboard.KeyStudents, "/api/students", countOnly()},
	{dashboard.KeyEvaluationForms, "/api/admin/evaluation-forms", countOnly()},
	{dashboard.KeySubmittedEvaluations, "/api/admin/evaluations/list", countOnly()},
	{dashboard.KeyClasses, "/api/classes", countOnly()},
	{dashboard.KeySubjects, "/api/subjects", countOnly()},
	{dashboard.KeyAcademicYears, "/api/academic-years", countOnly()},
	{dashboard.KeyPendingEvaluations, "/api/admin/evaluations", countOnly("status", "pending")},
}

// GetAdminDashboardQuery carries input for the admin dashboard projection.
type GetAdminDashboardQuery struct {
	Token string
}

// GetAdminDashboardDeps holds dependencies for the admin dashboard projection.
type GetAdminDashboardDeps struct {
	UpstreamDeps
}

// AdminDashboardResult carries the output of the admin dashboard projection.
type AdminDashboardResult struct {
	Stats        dashboard.Stats
	UsedFallback bool
	Err          error // non-nil when the page should offer Retry and Re-login
}

type sourceResult struct {
	resp api.Response
	err  error
}

// QueryGetAdminDashboard collects the eight admin counters.
// PRE: query.Token is the session's bearer token
// POST: Stats carries a value for every dashboard.Keys entry; a failing
// source reads as 0 and never cancels its siblings; when aggregation fails
// the fallback pass has run and Err is set
func QueryGetAdminDashboard(ctx context.Context, query GetAdminDashboardQuery, deps GetAdminDashboardDeps) AdminDashboardResult {
	results := make([]sourceResult, len(primarySources))
	var wg sync.WaitGroup
	for i, src := range primarySources {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// INVARIANT: each goroutine writes only results[i]
			resp, _, err := deps.fetch(ctx, query.Token, string(src.key), src.path, src.query)
			results[i] = sourceResult{resp: resp, err: err}
		}()
	}
	wg.Wait()

	stats, err := aggregate(primarySources, results)
	if err == nil {
		return AdminDashboardResult{Stats: stats}
	}

	deps.logger().Warn("dashboard_aggregate_failed", zap.Error(err))
	stats = fallbackStats(ctx, query.Token, dashboard.Stats{}, deps.UpstreamDeps)
	return AdminDashboardResult{
		Stats:        stats,
		UsedFallback: true,
		Err:          fmt.Errorf("%w: %v", ErrAggregationFailed, err),
	}
}

// aggregate decodes every settled result into a Stats.
// POST: a malformed successful body or a panic fails the whole batch
func aggregate(sources []statSource, results []sourceResult) (stats dashboard.Stats, err error) {
	defer func() {
		if r := recover(); r != nil {
			stats, err = dashboard.Stats{}, fmt.Errorf("aggregate: %v", r)
		}
	}()
	for i, src := range sources {
		r := results[i]
		n, derr := dashboard.DecodeCount(r.resp.Body, r.err == nil && r.resp.OK())
		if derr != nil {
			return dashboard.Stats{}, fmt.Errorf("%s: %w", src.key, derr)
		}
		stats.Set(src.key, n)
	}
	return stats, nil
}

// fallbackStats queries the simpler count endpoints sequentially and merges
// every success into stale. Failed sources keep their stale value.
func fallbackStats(ctx context.Context, token string, stale dashboard.Stats, deps UpstreamDeps) dashboard.Stats {
	stats := stale
	for _, src := range fallbackSources {
		if ctx.Err() != nil {
			break
		}
		resp, _, err := deps.fetch(ctx, token, "fallback_"+string(src.key), src.path, src.query)
		if err != nil || !resp.OK() {
			continue
		}
		n, derr := dashboard.DecodeCount(resp.Body, true)
		if derr != nil {
			continue
		}
		stats.Set(src.key, n)
	}
	return stats
}
