package web

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"facultyeval/internal/adapters/email"
	"facultyeval/internal/adapters/http/middleware"
	"facultyeval/internal/application/orchestrators"
	"facultyeval/internal/application/projections"
	"facultyeval/internal/domain/account"
	"facultyeval/internal/domain/session"
	"facultyeval/internal/metrics"
)

// maxRequestBody bounds every request body; a registration post carries
// at most one 5 MB picture plus text fields.
const maxRequestBody = 8 << 20

// Upstream is the Faculty Evaluation API as the handlers use it.
type Upstream interface {
	orchestrators.LoginAPI
	orchestrators.RegisterAPI
	projections.APIReader
	ListClasses(ctx context.Context) ([]account.Class, error)
}

// Options holds the HTTP settings of the router.
type Options struct {
	CSRFKey        []byte // 32 bytes; nil generates a per-process key
	Secure         bool   // HTTPS deployment
	TrustedOrigins []string
	RatePerMinute  int // per IP, every page
	AuthPerMinute  int // per IP, login and registration posts
	SlowRequest    time.Duration
	UploadsOrigin  string // base URL that serves /uploads/ (the API)
	PublicURL      string // configured base of links sent outside a request, e.g. emails
	DraftTTL       time.Duration
}

// Deps holds everything the handlers need.
type Deps struct {
	API      Upstream
	Sessions *session.Service
	Drafts   orchestrators.DraftStore
	Uploads  orchestrators.UploadStore
	Email    email.Sender // optional
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
	Now      func() time.Time
	Options  Options
}

type server struct {
	deps  Deps
	log   *zap.Logger
	pages map[string]*template.Template
	copy  map[string]template.HTML
}

func (s *server) now() time.Time {
	if s.deps.Now == nil {
		return time.Now()
	}
	return s.deps.Now()
}

func (s *server) wizardDeps() orchestrators.WizardDeps {
	return orchestrators.WizardDeps{
		Drafts:  s.deps.Drafts,
		Uploads: s.deps.Uploads,
		Now:     s.deps.Now,
		Logger:  s.log,
	}
}

func (s *server) upstreamDeps() projections.UpstreamDeps {
	return projections.UpstreamDeps{API: s.deps.API, Logger: s.log, Metrics: s.deps.Metrics}
}

// NewRouter wires the HTTP handlers of the front-end.
func NewRouter(deps Deps) (http.Handler, error) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	opts := &deps.Options
	if opts.RatePerMinute <= 0 {
		opts.RatePerMinute = 120
	}
	if opts.AuthPerMinute <= 0 {
		opts.AuthPerMinute = 20
	}
	if opts.CSRFKey == nil {
		opts.CSRFKey = make([]byte, 32)
		if _, err := rand.Read(opts.CSRFKey); err != nil {
			return nil, fmt.Errorf("generate csrf key: %w", err)
		}
		deps.Logger.Warn("csrf_key_generated", zap.String("hint", "set CSRF_KEY so form tokens survive restarts"))
	}
	middleware.SecureCookies = opts.Secure

	s := &server{deps: deps, log: deps.Logger}
	var err error
	if s.pages, err = parsePages(); err != nil {
		return nil, err
	}
	if s.copy, err = loadCopy(); err != nil {
		return nil, err
	}
	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Timing(s.log, deps.Metrics, opts.SlowRequest))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimw.RequestSize(maxRequestBody))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("ok")) })
	r.Handle("/metrics", deps.Metrics.Handler())
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	if opts.UploadsOrigin != "" {
		proxy, err := uploadsProxy(opts.UploadsOrigin, s.log)
		if err != nil {
			return nil, err
		}
		r.Handle("/uploads/*", proxy)
	}

	authLimit := middleware.RateLimit(opts.AuthPerMinute, s.log)
	r.Group(func(r chi.Router) {
		r.Use(middleware.CSRF(middleware.CSRFOptions{
			Key:            opts.CSRFKey,
			Secure:         opts.Secure,
			TrustedOrigins: opts.TrustedOrigins,
			Logger:         s.log,
		}))
		r.Use(middleware.RateLimit(opts.RatePerMinute, s.log))
		r.Use(middleware.LoadSession(deps.Sessions, s.log))

		r.Get("/", s.handleHome)
		r.Get("/login", s.handleLoginPage)
		r.With(authLimit).Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)
		r.Get("/unauthorized", s.handleUnauthorized)

		r.Get("/register", s.handleRegisterPage)
		r.With(authLimit).Post("/register", s.handleRegister)
		r.Get("/register/preview", s.handleRegisterPreview)
		r.Post("/register/reset", s.handleRegisterReset)

		r.With(middleware.RequireAuth).Get("/dashboard", s.handleStudentDashboard)
		r.With(middleware.RequireRole(s.log, account.RoleAdmin)).Get("/admin/dashboard", s.handleAdminDashboard)
		r.With(middleware.RequireRole(s.log, account.RoleFaculty)).Get("/faculty/dashboard", s.handleFacultyDashboard)

		r.NotFound(s.handleNotFound)
	})
	return r, nil
}

// uploadsProxy forwards picture requests to the API, which owns the files.
func uploadsProxy(origin string, logger *zap.Logger) (http.Handler, error) {
	target, err := url.Parse(origin)
	if err != nil || target.Host == "" {
		return nil, fmt.Errorf("invalid uploads origin %q", origin)
	}
	proxy := httputil.NewSingleHostReverseProxy(target)
	base := proxy.Director
	proxy.Director = func(r *http.Request) {
		base(r)
		r.Host = target.Host
		r.Header.Del("Cookie")
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		if !errors.Is(err, context.Canceled) {
			logger.Warn("uploads_proxy_failed", zap.String("path", r.URL.Path), zap.Error(err))
		}
		w.WriteHeader(http.StatusBadGateway)
	}
	return proxy, nil
}

func (s *server) handleHome(w http.ResponseWriter, r *http.Request) {
	if p, ok := middleware.GetPrincipal(r.Context()); ok {
		http.Redirect(w, r, orchestrators.LandingFor(p.User.Role), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, middleware.LoginPath, http.StatusSeeOther)
}

type errorView struct {
	Heading string
	Message string
}

func (s *server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusNotFound, "error.html", "Not found", errorView{
		Heading: "Page not found",
		Message: "The page you are looking for does not exist.",
	})
}
