package projections

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"facultyeval/internal/domain/dashboard"
	"facultyeval/internal/domain/evaluation"
)

const (
	studentPendingShown = 5
	studentRecentShown  = 3
)

// GetStudentDashboardQuery carries input for the student dashboard projection.
type GetStudentDashboardQuery struct {
	Token     string
	StudentID string
	Now       time.Time
}

// GetStudentDashboardDeps holds dependencies for the student dashboard projection.
type GetStudentDashboardDeps struct {
	UpstreamDeps
}

// PendingEvaluation is an open evaluation with its urgency computed at query time.
type PendingEvaluation struct {
	evaluation.Evaluation
	Badge         string
	DaysRemaining *int
}

// StudentDashboardResult carries the output of the student dashboard projection.
type StudentDashboardResult struct {
	Submitted         int
	Pending           int
	TotalFaculty      int
	PendingList       []PendingEvaluation
	RecentSubmissions []evaluation.Evaluation
	Err               error
}

// QueryGetStudentDashboard summarizes the evaluations assigned to a student.
// PRE: query.StudentID is the session user's id
// POST: Any failure yields zeroed counters, empty lists and a non-nil Err
func QueryGetStudentDashboard(ctx context.Context, query GetStudentDashboardQuery, deps GetStudentDashboardDeps) StudentDashboardResult {
	q := url.Values{"studentId": {query.StudentID}, "checkFaculty": {"true"}}
	resp, outcome, err := deps.fetch(ctx, query.Token, "student_evaluations", "/api/student/evaluations", q)
	if err != nil {
		return StudentDashboardResult{Err: err}
	}
	if !resp.OK() {
		return StudentDashboardResult{Err: fmt.Errorf("student evaluations: %s (status %d)", outcome, resp.Status)}
	}
	list, err := dashboard.DecodeArray(resp.Body, "evaluations")
	if err != nil {
		return StudentDashboardResult{Err: fmt.Errorf("student evaluations: %w", err)}
	}

	evals := withFacultyRelationship(evaluation.FromList(list))
	res := summarizeStudent(evals, query.Now)
	deps.logger().Debug("student_dashboard_loaded",
		zap.String("student_id", query.StudentID),
		zap.Int("evaluations", len(evals)),
		zap.Int("pending", res.Pending),
	)
	return res
}

// withFacultyRelationship drops evaluations whose faculty no longer teaches
// the student. The filter applies only when the API reports the flag.
func withFacultyRelationship(evals []evaluation.Evaluation) []evaluation.Evaluation {
	if len(evals) == 0 || evals[0].HasFacultyRelationship == nil {
		return evals
	}
	out := evals[:0:0]
	for _, e := range evals {
		if e.HasFacultyRelationship != nil && *e.HasFacultyRelationship {
			out = append(out, e)
		}
	}
	return out
}

func summarizeStudent(evals []evaluation.Evaluation, now time.Time) StudentDashboardResult {
	res := StudentDashboardResult{
		PendingList:       []PendingEvaluation{},
		RecentSubmissions: []evaluation.Evaluation{},
	}
	faculty := make(map[string]struct{})
	for _, e := range evals {
		if e.FacultyID != "" {
			faculty[e.FacultyID] = struct{}{}
		}
		if e.IsCompleted() {
			res.Submitted++
			if len(res.RecentSubmissions) < studentRecentShown {
				res.RecentSubmissions = append(res.RecentSubmissions, e)
			}
			continue
		}
		if e.IsOverdue(now) {
			continue
		}
		res.Pending++
		if len(res.PendingList) < studentPendingShown {
			res.PendingList = append(res.PendingList, PendingEvaluation{
				Evaluation:    e,
				Badge:         e.Badge(now),
				DaysRemaining: e.DaysRemaining(now),
			})
		}
	}
	res.TotalFaculty = len(faculty)
	return res
}
