package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

// TestFromEnv_Defaults verifies a minimal environment yields the documented defaults.
func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(envOf(map[string]string{"API_BASE_URL": "http://api.local/"}))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "http://localhost:8080", cfg.Server.PublicURL)
	assert.Equal(t, "http://api.local", cfg.API.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, 30*time.Second, cfg.API.RegisterTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Storage.SessionTTL)
	assert.Equal(t, 2*time.Hour, cfg.Storage.DraftTTL)
	assert.Equal(t, 500*time.Millisecond, cfg.Server.SlowRequest)
	assert.Nil(t, cfg.Security.CSRFKey)
	assert.Empty(t, cfg.Redis.Addr)
	assert.False(t, cfg.IsProduction())
}

// TestFromEnv_RequiresAPIBaseURL verifies the upstream address is mandatory.
func TestFromEnv_RequiresAPIBaseURL(t *testing.T) {
	_, err := FromEnv(envOf(nil))
	assert.ErrorContains(t, err, "API_BASE_URL")
}

// TestFromEnv_Invalid verifies malformed values are reported by name.
func TestFromEnv_Invalid(t *testing.T) {
	tests := map[string]string{
		"API_TIMEOUT":     "soon",
		"SESSION_TTL":     "-1h",
		"REDIS_DB":        "zero",
		"CSRF_KEY":        "abc",
		"DRAFT_KEY":       strings.Repeat("ab", 16),
		"SLOW_REQUEST_MS": "1.5",
	}
	for name, value := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := FromEnv(envOf(map[string]string{"API_BASE_URL": "http://api", name: value}))
			assert.ErrorContains(t, err, name)
		})
	}
}

// TestFromEnv_ProductionNeedsKeys verifies production refuses generated keys.
func TestFromEnv_ProductionNeedsKeys(t *testing.T) {
	env := map[string]string{"API_BASE_URL": "http://api", "FES_ENV": "production"}
	_, err := FromEnv(envOf(env))
	require.Error(t, err)

	env["CSRF_KEY"] = strings.Repeat("ab", 32)
	env["DRAFT_KEY"] = strings.Repeat("cd", 32)
	env["TRUSTED_ORIGINS"] = " fes.example.edu , ,admin.example.edu"
	_, err = FromEnv(envOf(env))
	assert.ErrorContains(t, err, "PUBLIC_URL")

	env["PUBLIC_URL"] = "https://fes.example.edu/"
	cfg, err := FromEnv(envOf(env))
	require.NoError(t, err)
	assert.Equal(t, "https://fes.example.edu", cfg.Server.PublicURL)
	assert.Len(t, cfg.Security.CSRFKey, 32)
	assert.Equal(t, []string{"fes.example.edu", "admin.example.edu"}, cfg.Security.TrustedOrigins)
}

// TestFromEnv_PublicURL verifies the link base follows the listener by default
// and rejects anything but a bare absolute http(s) origin.
func TestFromEnv_PublicURL(t *testing.T) {
	cfg, err := FromEnv(envOf(map[string]string{"API_BASE_URL": "http://api", "FES_ADDR": "127.0.0.1:9000"}))
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9000", cfg.Server.PublicURL)

	cfg, err = FromEnv(envOf(map[string]string{"API_BASE_URL": "http://api", "PUBLIC_URL": "https://fes.example.edu/portal/"}))
	require.NoError(t, err)
	assert.Equal(t, "https://fes.example.edu/portal", cfg.Server.PublicURL)

	for _, bad := range []string{"fes.example.edu", "javascript:alert(1)", "ftp://fes.example.edu", "https://fes.example.edu/?next=x", "https://u:p@fes.example.edu"} {
		t.Run(bad, func(t *testing.T) {
			_, err := FromEnv(envOf(map[string]string{"API_BASE_URL": "http://api", "PUBLIC_URL": bad}))
			assert.ErrorContains(t, err, "PUBLIC_URL")
		})
	}
}
