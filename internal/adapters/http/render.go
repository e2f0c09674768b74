package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"slices"
	"strings"

	"github.com/gorilla/csrf"
	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
	"go.uber.org/zap"

	"facultyeval/internal/adapters/http/middleware"
	"facultyeval/internal/domain/account"
	"facultyeval/internal/domain/profile"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed copy/*.md
var copyFS embed.FS

//go:embed static
var staticFS embed.FS

// mdRenderer is a goldmark instance configured for safe HTML output.
// Raw HTML in markdown input is escaped (WithUnsafe is NOT set).
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// pages lists every page template; each is parsed together with layout.html.
var pages = []string{
	"login.html",
	"unauthorized.html",
	"admin_dashboard.html",
	"faculty_dashboard.html",
	"student_dashboard.html",
	"register.html",
	"error.html",
}

var funcs = template.FuncMap{
	"isActive":       profile.IsActive,
	"roleLabel":      profile.RoleLabel,
	"defaultPicture": func() string { return profile.DefaultPicture },
	// css passes a value computed by the profile package into a style attribute.
	"css":        func(s string) template.CSS { return template.CSS(s) },
	"gradient":   profile.AvatarGradient,
	"avatarName": avatarName,
	"initial":    initial,
	"contains":   func(list []string, v string) bool { return slices.Contains(list, v) },
	"add":        func(a, b int) int { return a + b },
	"classID":    func(c account.Class) string { return c.ID.String() },
}

// avatarName turns "default-avatar.png" into "default avatar".
func avatarName(file string) string {
	return strings.ReplaceAll(strings.TrimSuffix(file, path.Ext(file)), "-", " ")
}

// initial returns the upper-cased first letter of s.
func initial(s string) string {
	for _, r := range strings.TrimSpace(s) {
		return strings.ToUpper(string(r))
	}
	return ""
}

// parsePages parses each page with the shared layout.
func parsePages() (map[string]*template.Template, error) {
	out := make(map[string]*template.Template, len(pages))
	for _, name := range pages {
		tpl, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		out[name] = tpl
	}
	return out, nil
}

// loadCopy renders the markdown help texts, keyed by file name without extension.
func loadCopy() (map[string]template.HTML, error) {
	entries, err := fs.ReadDir(copyFS, "copy")
	if err != nil {
		return nil, err
	}
	out := make(map[string]template.HTML, len(entries))
	for _, e := range entries {
		src, err := copyFS.ReadFile("copy/" + e.Name())
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := mdRenderer.Convert(src, &buf); err != nil {
			return nil, fmt.Errorf("render %s: %w", e.Name(), err)
		}
		out[strings.TrimSuffix(e.Name(), ".md")] = template.HTML(buf.String())
	}
	return out, nil
}

// shell is the signed-in chrome around every authenticated page.
type shell struct {
	profile.Identity
	HasPicture bool
}

// view is what layout.html receives.
type view struct {
	Title     string
	Path      string
	CSRFField template.HTML
	Shell     *shell
	Error     string
	Data      any
}

// render executes a page into a buffer first so a template failure never
// leaves a half-written response.
func (s *server) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	tpl, ok := s.pages[name]
	if !ok {
		s.internalError(w, r, fmt.Errorf("unknown template %q", name))
		return
	}
	v := view{
		Title:     title,
		Path:      r.URL.Path,
		CSRFField: csrf.TemplateField(r),
		Data:      data,
	}
	if p, ok := middleware.GetPrincipal(r.Context()); ok {
		v.Shell = &shell{
			Identity:   profile.IdentityFor(p.User),
			HasPicture: p.User.ProfilePicture != "",
		}
	}
	if e, ok := data.(interface{ PageError() string }); ok {
		v.Error = e.PageError()
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, v); err != nil {
		s.internalError(w, r, fmt.Errorf("render %s: %w", name, err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// internalError logs the real error and returns a generic page to the client.
func (s *server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.log.Error("internal_error", zap.String("path", r.URL.Path), zap.Error(err))
	http.Error(w, "internal server error", http.StatusInternalServerError)
}
