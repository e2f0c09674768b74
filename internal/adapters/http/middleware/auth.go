package middleware

import (
	"context"
	"errors"
	"net/http"
	"slices"

	"go.uber.org/zap"

	"facultyeval/internal/domain/account"
	"facultyeval/internal/domain/session"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

const principalContextKey contextKey = "principal"

// SessionCookieName is the cookie holding the session id.
const SessionCookieName = "fes_session"

// SecureCookies marks cookies Secure. Set it in production.
var SecureCookies = false

// Login and unauthorized routes the guard redirects to.
const (
	LoginPath        = "/login"
	UnauthorizedPath = "/unauthorized"
)

// SessionLoader reads and clears persisted sessions.
type SessionLoader interface {
	Get(ctx context.Context, id string) (session.Session, error)
	Clear(ctx context.Context, id string) error
}

// Principal is the signed-in user of a request.
type Principal struct {
	Session session.Session
	User    account.UserRecord
}

// LoadSession returns middleware that resolves the session cookie and puts the
// Principal in the request context.
// It does NOT block unauthenticated requests; use RequireAuth or RequireRole for that.
// A session whose user record does not parse is cleared, store entry and cookie.
func LoadSession(sessions SessionLoader, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}
			sess, err := sessions.Get(r.Context(), cookie.Value)
			switch {
			case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrExpired):
				ClearSessionCookie(w)
				next.ServeHTTP(w, r)
				return
			case err != nil:
				logger.Error("session_load_failed", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			user, err := sess.User()
			if err != nil {
				logger.Warn("auth_event", zap.String("event", "session_corrupt"), zap.Error(err))
				if cerr := sessions.Clear(r.Context(), sess.ID); cerr != nil {
					logger.Error("session_clear_failed", zap.Error(cerr))
				}
				ClearSessionCookie(w)
				next.ServeHTTP(w, r)
				return
			}
			ctx := ContextWithPrincipal(r.Context(), Principal{Session: sess, User: user})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth returns middleware that redirects requests without a session to the login page.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetPrincipal(r.Context()); !ok {
			http.Redirect(w, r, LoginPath, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole returns middleware that admits only the given roles.
// Anonymous requests go to the login page, other roles to the unauthorized page.
func RequireRole(logger *zap.Logger, roles ...account.Role) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := GetPrincipal(r.Context())
			if !ok {
				http.Redirect(w, r, LoginPath, http.StatusSeeOther)
				return
			}
			if !slices.Contains(roles, p.User.Role) {
				logger.Info("auth_denied",
					zap.String("path", r.URL.Path),
					zap.String("user_id", p.User.ID),
					zap.String("role", string(p.User.Role)),
				)
				http.Redirect(w, r, UnauthorizedPath, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetPrincipal extracts the signed-in user from the request context.
func GetPrincipal(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey).(Principal)
	return p, ok
}

// ContextWithPrincipal returns a context carrying p.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// SetSessionCookie sets the session cookie; it expires with the session.
func SetSessionCookie(w http.ResponseWriter, sess session.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sess.ID,
		HttpOnly: true,
		Secure:   SecureCookies,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
		Expires:  sess.ExpiresAt,
	})
}

// ClearSessionCookie removes the session cookie.
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		HttpOnly: true,
		Secure:   SecureCookies,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
		MaxAge:   -1,
	})
}
