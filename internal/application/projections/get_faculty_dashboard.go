package projections

import (
	"context"
	"fmt"
	"math"
	"net/url"

	"facultyeval/internal/domain/dashboard"
	"facultyeval/internal/domain/evaluation"
)

// GetFacultyDashboardQuery carries input for the faculty dashboard projection.
type GetFacultyDashboardQuery struct {
	Token     string
	FacultyID string
}

// GetFacultyDashboardDeps holds dependencies for the faculty dashboard projection.
type GetFacultyDashboardDeps struct {
	UpstreamDeps
}

// FacultyDashboardResult carries the output of the faculty dashboard projection.
type FacultyDashboardResult struct {
	TotalEvaluations int
	AverageRating    float64 // rounded to 2 decimals; 0 when nothing is rated
	TotalStudents    int
	Err              error
}

// QueryGetFacultyDashboard summarizes the evaluations received by a faculty member.
// POST: Any failure yields zeroed counters and a non-nil Err
func QueryGetFacultyDashboard(ctx context.Context, query GetFacultyDashboardQuery, deps GetFacultyDashboardDeps) FacultyDashboardResult {
	resp, outcome, err := deps.fetch(ctx, query.Token, "faculty_evaluations", "/api/faculty/evaluations", url.Values{"facultyId": {query.FacultyID}})
	if err != nil {
		return FacultyDashboardResult{Err: err}
	}
	if !resp.OK() {
		return FacultyDashboardResult{Err: fmt.Errorf("faculty evaluations: %s (status %d)", outcome, resp.Status)}
	}
	list, err := dashboard.DecodeArray(resp.Body)
	if err != nil {
		return FacultyDashboardResult{Err: fmt.Errorf("faculty evaluations: %w", err)}
	}
	return summarizeFaculty(evaluation.FromList(list))
}

func summarizeFaculty(evals []evaluation.Evaluation) FacultyDashboardResult {
	var (
		total    float64
		rated    int
		students = make(map[string]struct{})
	)
	for _, e := range evals {
		if e.StudentID != "" {
			students[e.StudentID] = struct{}{}
		}
		if e.Rating != nil {
			total += *e.Rating
			rated++
		}
	}
	res := FacultyDashboardResult{
		TotalEvaluations: len(evals),
		TotalStudents:    len(students),
	}
	if rated > 0 {
		res.AverageRating = math.Round(total/float64(rated)*100) / 100
	}
	return res
}
