package email

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWelcome_RendersMarkdown(t *testing.T) {
	req, err := Welcome(WelcomeInput{
		Email:     "ada@example.edu",
		Firstname: "Ada",
		Role:      "Faculty",
		LoginURL:  "https://fes.example.edu/login",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"ada@example.edu"}, req.To)
	assert.Contains(t, req.HTML, "<h1>Welcome to the Faculty Evaluation System</h1>")
	assert.Contains(t, req.HTML, "<strong>Faculty</strong>")
	assert.Contains(t, req.HTML, `href="https://fes.example.edu/login"`)
	assert.Contains(t, req.Text, "Hi Ada,")
}

func TestWelcome_EscapesUserInput(t *testing.T) {
	req, err := Welcome(WelcomeInput{Email: "x@example.edu", Firstname: "<script>alert(1)</script>", Role: "Student"})
	require.NoError(t, err)
	assert.NotContains(t, req.HTML, "<script>")
}

func TestWelcome_LoginLinkCannotBreakOut(t *testing.T) {
	req, err := Welcome(WelcomeInput{
		Email:    "x@example.edu",
		Role:     "Student",
		LoginURL: "https://fes.example.edu/login) [reset your password](https://evil.example/x",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(req.HTML, "<a "))
	assert.NotContains(t, req.HTML, `href="https://evil.example`)
	assert.Contains(t, req.HTML, `href="https://fes.example.edu/login%29%20`)
}

func TestWelcome_OmitsNonHTTPLogin(t *testing.T) {
	for _, raw := range []string{"", "javascript:alert(1)", "/login"} {
		req, err := Welcome(WelcomeInput{Email: "x@example.edu", Role: "Student", LoginURL: raw})
		require.NoError(t, err)
		assert.NotContains(t, req.HTML, "<a ", raw)
		assert.Contains(t, req.Text, "You can sign in with **x@example.edu**.", raw)
	}
}

func TestWelcome_DefaultGreeting(t *testing.T) {
	req, err := Welcome(WelcomeInput{Email: "x@example.edu", Role: "Student"})
	require.NoError(t, err)
	assert.Contains(t, req.Text, "Hi there,")
}

func TestNoopSender_LogsOnly(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := NewNoopSender(zap.New(core))

	res, err := s.Send(context.Background(), SendRequest{To: []string{"a@b.c"}, Subject: "hi"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.MessageID)
	assert.Equal(t, 1, logs.FilterMessage("noop_email_send").Len())
}
