package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"facultyeval/internal/adapters/api"
	"facultyeval/internal/domain/account"
	"facultyeval/internal/domain/session"
	"facultyeval/internal/metrics"
)

// LoginAPI is the upstream login call.
type LoginAPI interface {
	Login(ctx context.Context, in api.LoginRequest) (api.LoginResult, error)
}

// SessionManager creates and destroys login sessions.
type SessionManager interface {
	Set(ctx context.Context, token, userJSON string) (session.Session, error)
	Clear(ctx context.Context, id string) error
}

// LoginInput carries input for the login orchestrator.
type LoginInput struct {
	UserType string // optional role hint forwarded to the API
	Email    string
	Password string
}

// LoginResult carries the result of a successful login.
type LoginResult struct {
	Session session.Session
	User    account.UserRecord
	Landing string
}

// LoginDeps holds dependencies for Login.
type LoginDeps struct {
	API      LoginAPI
	Sessions SessionManager
	Logger   *zap.Logger      // optional
	Metrics  *metrics.Metrics // optional
}

// Login outcomes counted in fes_logins_total.
const (
	loginOK       = "ok"
	loginRejected = "rejected"
	loginError    = "error"
)

// ErrMissingCredentials is returned before calling the API when a field is blank.
var ErrMissingCredentials = errors.New("email and password are required")

// Landing routes per role.
const (
	LandingAdmin   = "/admin/dashboard"
	LandingFaculty = "/faculty/dashboard"
	LandingStudent = "/dashboard"
)

// LandingFor returns the dashboard a role lands on after login.
func LandingFor(role account.Role) string {
	switch role {
	case account.RoleAdmin:
		return LandingAdmin
	case account.RoleFaculty:
		return LandingFaculty
	default:
		return LandingStudent
	}
}

// ExecuteLogin exchanges credentials for an upstream token and opens a session.
// PRE: Email and password provided
// POST: On success a session holding the token and raw user record is stored;
// rejected credentials return the *api.Error carrying the server message
func ExecuteLogin(ctx context.Context, input LoginInput, deps LoginDeps) (LoginResult, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	email := strings.TrimSpace(input.Email)
	if email == "" || input.Password == "" {
		return LoginResult{}, ErrMissingCredentials
	}

	res, err := deps.API.Login(ctx, api.LoginRequest{
		UserType: input.UserType,
		Email:    email,
		Password: input.Password,
	})
	if err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) {
			deps.Metrics.ObserveLogin(loginRejected)
			logger.Info("auth_event", zap.String("event", "login_failed"), zap.String("email", email), zap.Int("status", apiErr.Status))
		} else {
			deps.Metrics.ObserveLogin(loginError)
			logger.Warn("auth_event", zap.String("event", "login_error"), zap.String("email", email), zap.Error(err))
		}
		return LoginResult{}, err
	}

	user, err := account.DecodeUserRecord([]byte(res.UserJSON))
	if err != nil {
		deps.Metrics.ObserveLogin(loginError)
		logger.Warn("auth_event", zap.String("event", "login_bad_user"), zap.String("email", email), zap.Error(err))
		return LoginResult{}, fmt.Errorf("%w: %v", session.ErrCorruptUser, err)
	}

	sess, err := deps.Sessions.Set(ctx, res.Token, res.UserJSON)
	if err != nil {
		deps.Metrics.ObserveLogin(loginError)
		return LoginResult{}, fmt.Errorf("open session: %w", err)
	}

	deps.Metrics.ObserveLogin(loginOK)
	logger.Info("auth_event", zap.String("event", "login_success"), zap.String("email", email), zap.String("role", string(user.Role)))
	return LoginResult{Session: sess, User: user, Landing: LandingFor(user.Role)}, nil
}

// LogoutDeps holds dependencies for Logout.
type LogoutDeps struct {
	Sessions SessionManager
	Logger   *zap.Logger // optional
}

// ExecuteLogout destroys the session. Logging out twice is not an error.
// POST: No session with sessionID remains
func ExecuteLogout(ctx context.Context, sessionID string, deps LogoutDeps) error {
	if err := deps.Sessions.Clear(ctx, sessionID); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	if deps.Logger != nil && sessionID != "" {
		deps.Logger.Info("auth_event", zap.String("event", "logout"))
	}
	return nil
}
