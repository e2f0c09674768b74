package email

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/yuin/goldmark"
)

// WelcomeInput describes a freshly registered account.
type WelcomeInput struct {
	Email     string
	Firstname string
	Role      string // display label, e.g. "Student"
	LoginURL  string
}

const welcomeTemplate = `# Welcome to the Faculty Evaluation System

Hi %s,

Your **%s** account has been created. You can sign in with **%s**%s.
`

// Welcome builds the message sent after a successful registration.
// PRE: in.Email is non-empty
// POST: HTML is rendered from the same Markdown returned in Text; a LoginURL
// that is not an absolute http(s) URL is left out of the message
func Welcome(in WelcomeInput) (SendRequest, error) {
	name := strings.TrimSpace(in.Firstname)
	if name == "" {
		name = "there"
	}
	at := ""
	if target, ok := linkTarget(in.LoginURL); ok {
		at = fmt.Sprintf(" at\n[%s](%s)", escapeMarkdown(target), target)
	}
	md := fmt.Sprintf(welcomeTemplate, escapeMarkdown(name), escapeMarkdown(in.Role),
		escapeMarkdown(in.Email), at)

	var html bytes.Buffer
	if err := goldmark.Convert([]byte(md), &html); err != nil {
		return SendRequest{}, fmt.Errorf("render welcome email: %w", err)
	}
	return SendRequest{
		To:      []string{in.Email},
		Subject: "Your Faculty Evaluation System account",
		HTML:    html.String(),
		Text:    md,
	}, nil
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "[", `\[`, "]", `\]`, "<", "&lt;", ">", "&gt;", "`", "\\`",
)

func escapeMarkdown(s string) string { return markdownEscaper.Replace(s) }

// linkEscaper percent-encodes what could close a Markdown link destination.
var linkEscaper = strings.NewReplacer(
	" ", "%20", "(", "%28", ")", "%29", "<", "%3C", ">", "%3E", `\`, "%5C", "\n", "", "\r", "",
)

// linkTarget returns raw as a Markdown-safe link destination.
func linkTarget(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", false
	}
	return linkEscaper.Replace(u.String()), true
}
