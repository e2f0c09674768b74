package profile

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf16"

	"facultyeval/internal/domain/account"
)

// DefaultPicture is shown when a user has no picture or it fails to load.
const DefaultPicture = "/uploads/default-avatar.png"

// DefaultColor is the avatar background for users without a name.
const DefaultColor = "#3b82f6"

// NavItem is one sidebar entry.
type NavItem struct {
	Href  string
	Label string
	Icon  string
}

var dashboardItem = NavItem{Href: "/dashboard", Label: "Dashboard", Icon: "🏠"}

var roleNavigation = map[account.Role][]NavItem{
	account.RoleAdmin: {
		dashboardItem,
		{Href: "/admin/faculty", Label: "Faculty Management", Icon: "👨‍🏫"},
		{Href: "/admin/students", Label: "Student Management", Icon: "👨‍🎓"},
		{Href: "/admin/classes", Label: "Class Management", Icon: "🏫"},
		{Href: "/admin/subjects", Label: "Subject Management", Icon: "📚"},
		{Href: "/admin/evaluations", Label: "All Evaluations", Icon: "📊"},
		{Href: "/admin/reports", Label: "Evaluation Reports", Icon: "📈"},
		{Href: "/admin/academic-years", Label: "Academic Years", Icon: "📅"},
	},
	account.RoleFaculty: {
		dashboardItem,
		{Href: "/faculty/evaluations", Label: "My Evaluations", Icon: "📝"},
	},
	account.RoleStudent: {
		dashboardItem,
		{Href: "/student/evaluations", Label: "My Evaluations", Icon: "📝"},
	},
}

// Navigation returns the sidebar for role. Unknown roles get only the dashboard.
func Navigation(role account.Role) []NavItem {
	items, ok := roleNavigation[role]
	if !ok {
		return []NavItem{dashboardItem}
	}
	return append([]NavItem(nil), items...)
}

// IsActive reports whether href should be highlighted for the current path.
func IsActive(current, href string) bool {
	return current == href || strings.HasPrefix(current, href+"/")
}

// RoleLabel returns the human name of role.
func RoleLabel(role account.Role) string {
	switch role {
	case account.RoleAdmin:
		return "Administrator"
	case account.RoleFaculty:
		return "Faculty"
	case account.RoleStudent:
		return "Student"
	}
	return "User"
}

// Initials returns the upper-cased first letters of the first and last name,
// else the first letter of the email, else fallback.
func Initials(u account.UserRecord, fallback string) string {
	if f, l := firstRune(u.Firstname), firstRune(u.Lastname); f != "" && l != "" {
		return strings.ToUpper(f + l)
	}
	if e := firstRune(u.Email); e != "" {
		return strings.ToUpper(e)
	}
	return fallback
}

// AvatarHash is the string hash behind avatar colors:
// hash = c + (hash<<5) - hash over the UTF-16 code units of name.
// Only the shift wraps to 32 bits; the sum does not, so long names
// outgrow int32.
func AvatarHash(name string) int64 {
	var hash int64
	for _, c := range utf16.Encode([]rune(name)) {
		shifted := int32(hash) << 5
		hash = int64(c) + (int64(shifted) - hash)
	}
	return hash
}

// AvatarHue maps name to a hue in [0, 360). The same name always yields the same hue.
func AvatarHue(name string) int {
	hue := int(AvatarHash(name) % 360)
	if hue < 0 {
		hue += 360
	}
	return hue
}

// AvatarColor returns the CSS background for a user's initials, or fallback for an empty name.
func AvatarColor(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return fmt.Sprintf("hsl(%d, 70%%, 60%%)", AvatarHue(name))
}

// Gradients are the header backgrounds picked by AvatarGradient.
var Gradients = []string{
	"linear-gradient(135deg, #667eea 0%, #764ba2 100%)",
	"linear-gradient(135deg, #f093fb 0%, #f5576c 100%)",
	"linear-gradient(135deg, #4facfe 0%, #00f2fe 100%)",
	"linear-gradient(135deg, #43e97b 0%, #38f9d7 100%)",
	"linear-gradient(135deg, #fa709a 0%, #fee140 100%)",
	"linear-gradient(135deg, #30cfd0 0%, #330867 100%)",
}

// AvatarGradient picks one of Gradients by name hash. An empty name gets the first.
func AvatarGradient(name string) string {
	if name == "" {
		return Gradients[0]
	}
	h := AvatarHash(name)
	if h < 0 {
		h = -h
	}
	return Gradients[h%int64(len(Gradients))]
}

var uploadsPrefix = regexp.MustCompile(`^.*?(uploads/)`)

// PictureURL resolves a stored profile picture to a URL the browser can load.
// Empty, "null" and "undefined" resolve to DefaultPicture.
func PictureURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" || raw == "undefined" {
		return DefaultPicture
	}
	url := raw
	if !strings.HasPrefix(url, "http") && !strings.HasPrefix(url, "/") {
		url = "/" + url
	}
	if strings.Contains(url, "uploads/") {
		url = uploadsPrefix.ReplaceAllString(url, "/uploads/")
	}
	return url
}

// Identity is the display state of the signed-in user shown in the header.
type Identity struct {
	Name       string
	Email      string
	RoleLabel  string
	Initials   string
	Color      string
	PictureURL string
	ClassLabel string
	Nav        []NavItem
}

// IdentityFor derives the header state for u.
func IdentityFor(u account.UserRecord) Identity {
	id := Identity{
		Name:       u.DisplayName(),
		Email:      u.Email,
		RoleLabel:  RoleLabel(u.Role),
		Initials:   Initials(u, "U"),
		Color:      AvatarColor(u.Firstname+u.Lastname, DefaultColor),
		PictureURL: PictureURL(u.ProfilePicture),
		Nav:        Navigation(u.Role),
	}
	if u.Class != nil {
		id.ClassLabel = u.Class.Label()
	}
	return id
}

func firstRune(s string) string {
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsPrint(r) {
			return string(r)
		}
		return ""
	}
	return ""
}
