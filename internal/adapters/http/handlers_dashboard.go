package web

import (
	"net/http"

	"facultyeval/internal/adapters/http/middleware"
	"facultyeval/internal/application/orchestrators"
	"facultyeval/internal/application/projections"
	"facultyeval/internal/domain/account"
	"facultyeval/internal/domain/dashboard"
)

// statCard is one counter tile of the admin dashboard.
type statCard struct {
	Key   dashboard.StatKey
	Label string
	Icon  string
	Value int
}

var statLabels = map[dashboard.StatKey][2]string{
	dashboard.KeyFaculties:            {"Total Faculty", "👨‍🏫"},
	dashboard.KeyStudents:             {"Total Students", "👨‍🎓"},
	dashboard.KeyEvaluationForms:      {"Evaluation Forms", "📋"},
	dashboard.KeySubmittedEvaluations: {"Submitted Evaluations", "✅"},
	dashboard.KeyClasses:              {"Classes", "🏫"},
	dashboard.KeySubjects:             {"Subjects", "📚"},
	dashboard.KeyAcademicYears:        {"Academic Years", "📅"},
	dashboard.KeyPendingEvaluations:   {"Pending Evaluations", "⏳"},
}

func statCards(stats dashboard.Stats) []statCard {
	cards := make([]statCard, 0, len(dashboard.Keys))
	for _, k := range dashboard.Keys {
		cards = append(cards, statCard{Key: k, Label: statLabels[k][0], Icon: statLabels[k][1], Value: stats.Get(k)})
	}
	return cards
}

// adminDashboardView is the data of admin_dashboard.html.
type adminDashboardView struct {
	User         account.UserRecord
	Cards        []statCard
	UsedFallback bool
	Failed       bool
}

// handleAdminDashboard handles GET /admin/dashboard
func (s *server) handleAdminDashboard(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.GetPrincipal(r.Context())
	res := projections.QueryGetAdminDashboard(r.Context(),
		projections.GetAdminDashboardQuery{Token: p.Session.Token},
		projections.GetAdminDashboardDeps{UpstreamDeps: s.upstreamDeps()},
	)
	s.render(w, r, http.StatusOK, "admin_dashboard.html", "Admin dashboard", adminDashboardView{
		User:         p.User,
		Cards:        statCards(res.Stats),
		UsedFallback: res.UsedFallback,
		Failed:       res.Err != nil,
	})
}

// facultyDashboardView is the data of faculty_dashboard.html.
type facultyDashboardView struct {
	User account.UserRecord
	projections.FacultyDashboardResult
}

// handleFacultyDashboard handles GET /faculty/dashboard
func (s *server) handleFacultyDashboard(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.GetPrincipal(r.Context())
	res := projections.QueryGetFacultyDashboard(r.Context(),
		projections.GetFacultyDashboardQuery{Token: p.Session.Token, FacultyID: p.User.ID},
		projections.GetFacultyDashboardDeps{UpstreamDeps: s.upstreamDeps()},
	)
	s.render(w, r, http.StatusOK, "faculty_dashboard.html", "Faculty dashboard", facultyDashboardView{User: p.User, FacultyDashboardResult: res})
}

// studentDashboardView is the data of student_dashboard.html.
type studentDashboardView struct {
	User account.UserRecord
	projections.StudentDashboardResult
}

// handleStudentDashboard handles GET /dashboard. Administrators and faculty
// are sent to their own dashboards.
func (s *server) handleStudentDashboard(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.GetPrincipal(r.Context())
	switch p.User.Role {
	case account.RoleAdmin, account.RoleFaculty:
		http.Redirect(w, r, orchestrators.LandingFor(p.User.Role), http.StatusSeeOther)
		return
	}
	res := projections.QueryGetStudentDashboard(r.Context(),
		projections.GetStudentDashboardQuery{Token: p.Session.Token, StudentID: p.User.ID, Now: s.now()},
		projections.GetStudentDashboardDeps{UpstreamDeps: s.upstreamDeps()},
	)
	s.render(w, r, http.StatusOK, "student_dashboard.html", "Dashboard", studentDashboardView{User: p.User, StudentDashboardResult: res})
}
