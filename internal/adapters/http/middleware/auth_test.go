package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"facultyeval/internal/domain/account"
	"facultyeval/internal/domain/session"
)

// memSessions is an in-memory SessionLoader.
type memSessions struct {
	sessions map[string]session.Session
	cleared  []string
}

func (m *memSessions) Get(_ context.Context, id string) (session.Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return session.Session{}, session.ErrNotFound
	}
	if s.IsExpired(time.Now()) {
		return session.Session{}, session.ErrExpired
	}
	return s, nil
}

func (m *memSessions) Clear(_ context.Context, id string) error {
	m.cleared = append(m.cleared, id)
	delete(m.sessions, id)
	return nil
}

func newMemSessions() *memSessions {
	future := time.Now().Add(time.Hour)
	return &memSessions{sessions: map[string]session.Session{
		"admin":   {ID: "admin", Token: "t1", UserJSON: `{"id":1,"firstname":"Ada","userType":"admin"}`, ExpiresAt: future},
		"legacy":  {ID: "legacy", Token: "t2", UserJSON: `{"id":2,"user_type":1}`, ExpiresAt: future},
		"student": {ID: "student", Token: "t3", UserJSON: `{"id":3,"userType":"student"}`, ExpiresAt: future},
		"corrupt": {ID: "corrupt", Token: "t4", UserJSON: `{not json`, ExpiresAt: future},
		"stale":   {ID: "stale", Token: "t5", UserJSON: `{"userType":"admin"}`, ExpiresAt: time.Now().Add(-time.Minute)},
	}}
}

// guarded serves 200 and the principal's role behind LoadSession + RequireRole(admin).
func guarded(store *memSessions, logger *zap.Logger) http.Handler {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, _ := GetPrincipal(r.Context())
		w.Write([]byte(p.User.Role))
	})
	return LoadSession(store, logger)(RequireRole(logger, account.RoleAdmin)(inner))
}

func get(h http.Handler, cookie string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", "/admin/dashboard", nil)
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: cookie})
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func clearsCookie(rec *httptest.ResponseRecorder) bool {
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookieName && c.MaxAge < 0 {
			return true
		}
	}
	return false
}

func TestGuard_AdmitsMatchingRole(t *testing.T) {
	h := guarded(newMemSessions(), nil)

	rec := get(h, "admin")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin", rec.Body.String())

	rec = get(h, "legacy")
	assert.Equal(t, http.StatusOK, rec.Code, "numeric role 1 is admin")
}

func TestGuard_NoSessionRedirectsToLogin(t *testing.T) {
	h := guarded(newMemSessions(), nil)

	for _, cookie := range []string{"", "unknown", "stale"} {
		rec := get(h, cookie)
		assert.Equal(t, http.StatusSeeOther, rec.Code, cookie)
		assert.Equal(t, LoginPath, rec.Header().Get("Location"), cookie)
	}
}

func TestGuard_StaleCookieIsCleared(t *testing.T) {
	rec := get(guarded(newMemSessions(), nil), "stale")
	assert.True(t, clearsCookie(rec))
}

func TestGuard_WrongRoleRedirectsToUnauthorized(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	rec := get(guarded(newMemSessions(), zap.New(core)), "student")

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, UnauthorizedPath, rec.Header().Get("Location"))
	assert.Equal(t, 1, logs.FilterMessage("auth_denied").Len())
}

func TestGuard_CorruptUserClearsSession(t *testing.T) {
	store := newMemSessions()
	rec := get(guarded(store, nil), "corrupt")

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, LoginPath, rec.Header().Get("Location"))
	assert.Equal(t, []string{"corrupt"}, store.cleared)
	assert.True(t, clearsCookie(rec))
	_, err := store.Get(context.Background(), "corrupt")
	require.ErrorIs(t, err, session.ErrNotFound)
}

func TestRequireAuth(t *testing.T) {
	h := LoadSession(newMemSessions(), nil)(RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	assert.Equal(t, http.StatusOK, get(h, "student").Code)
	rec := get(h, "")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, LoginPath, rec.Header().Get("Location"))
}

func TestSetSessionCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	SetSessionCookie(rec, session.Session{ID: "abc", ExpiresAt: exp})

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "abc", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Expires.Equal(exp.UTC()))
}
