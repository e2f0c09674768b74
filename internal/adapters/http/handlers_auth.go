package web

import (
	"errors"
	"html/template"
	"net/http"

	"go.uber.org/zap"

	"facultyeval/internal/adapters/api"
	"facultyeval/internal/adapters/http/middleware"
	"facultyeval/internal/application/orchestrators"
	"facultyeval/internal/domain/account"
)

// loginView is the data of login.html.
type loginView struct {
	UserType string
	Email    string
	Roles    []account.Role
	Err      string
}

// PageError implements the layout error banner.
func (v loginView) PageError() string { return v.Err }

// handleLoginPage renders the login form; signed-in users go to their dashboard.
func (s *server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if p, ok := middleware.GetPrincipal(r.Context()); ok {
		http.Redirect(w, r, orchestrators.LandingFor(p.User.Role), http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "login.html", "Sign in", loginView{
		UserType: string(account.RoleStudent),
		Roles:    account.ValidRoles,
	})
}

// handleLogin handles POST /login
func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}
	input := orchestrators.LoginInput{
		UserType: r.PostFormValue("userType"),
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}
	result, err := orchestrators.ExecuteLogin(r.Context(), input, orchestrators.LoginDeps{
		API:      s.deps.API,
		Sessions: s.deps.Sessions,
		Logger:   s.log,
		Metrics:  s.deps.Metrics,
	})
	if err != nil {
		view := loginView{UserType: input.UserType, Email: input.Email, Roles: account.ValidRoles, Err: loginFailure(err)}
		s.render(w, r, http.StatusUnauthorized, "login.html", "Sign in", view)
		return
	}

	middleware.SetSessionCookie(w, result.Session)
	http.Redirect(w, r, result.Landing, http.StatusSeeOther)
}

// loginFailure maps a login error to the message shown on the form.
func loginFailure(err error) string {
	var apiErr *api.Error
	switch {
	case errors.Is(err, orchestrators.ErrMissingCredentials):
		return "Please enter your email and password"
	case errors.As(err, &apiErr) && apiErr.Message != "":
		return apiErr.Message
	}
	return "Login failed"
}

// handleLogout handles POST /logout
func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil {
		if err := orchestrators.ExecuteLogout(r.Context(), cookie.Value, orchestrators.LogoutDeps{
			Sessions: s.deps.Sessions,
			Logger:   s.log,
		}); err != nil {
			s.log.Error("logout_failed", zap.Error(err))
		}
	}
	middleware.ClearSessionCookie(w)
	http.Redirect(w, r, middleware.LoginPath, http.StatusSeeOther)
}

// unauthorizedView is the data of unauthorized.html.
type unauthorizedView struct {
	Landing string
	Copy    template.HTML
}

// handleUnauthorized explains a role mismatch and links back to the user's own dashboard.
func (s *server) handleUnauthorized(w http.ResponseWriter, r *http.Request) {
	view := unauthorizedView{Copy: s.copy["unauthorized"]}
	if p, ok := middleware.GetPrincipal(r.Context()); ok {
		view.Landing = orchestrators.LandingFor(p.User.Role)
	}
	s.render(w, r, http.StatusForbidden, "unauthorized.html", "Access denied", view)
}
