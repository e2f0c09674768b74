// Package config provides configuration for the front-end server
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	API      APIConfig
	Storage  StorageConfig
	Security SecurityConfig
	Redis    RedisConfig
	Email    EmailConfig
	Logging  LoggingConfig
}

// ServerConfig holds listener settings
type ServerConfig struct {
	Addr          string
	PublicURL     string // absolute base of outgoing links, no trailing slash
	Env           string
	SlowRequest   time.Duration
	RatePerMinute int
}

// APIConfig holds the upstream REST API settings
type APIConfig struct {
	BaseURL         string
	Timeout         time.Duration
	RegisterTimeout time.Duration
}

// StorageConfig holds local persistence settings
type StorageConfig struct {
	DBPath     string
	UploadDir  string
	SessionTTL time.Duration
	DraftTTL   time.Duration
}

// SecurityConfig holds key material and origin settings
type SecurityConfig struct {
	CSRFKey        []byte
	DraftKey       []byte
	TrustedOrigins []string
}

// RedisConfig selects the Redis session store when Addr is set
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// EmailConfig holds Resend settings. An empty Key disables delivery.
type EmailConfig struct {
	Key  string
	From string
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string
	Dev   bool
	File  string
}

// IsProduction reports whether FES_ENV is "production".
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Load reads configuration from the environment, after loading a .env file when one exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv.
// PRE: getenv is non-nil
// POST: Returns a complete Config or the first invalid variable
func FromEnv(getenv func(string) string) (*Config, error) {
	r := reader{getenv: getenv}
	cfg := &Config{}

	cfg.Server.Addr = r.str("FES_ADDR", ":8080")
	cfg.Server.Env = r.str("FES_ENV", "development")
	cfg.Server.SlowRequest = time.Duration(r.int("SLOW_REQUEST_MS", 500)) * time.Millisecond
	cfg.Server.RatePerMinute = r.int("RATE_LIMIT_PER_MINUTE", 120)
	cfg.Server.PublicURL = strings.TrimRight(r.str("PUBLIC_URL", localURL(cfg.Server.Addr)), "/")
	if err := checkPublicURL(cfg.Server.PublicURL); err != nil {
		return nil, err
	}

	cfg.API.BaseURL = strings.TrimRight(getenv("API_BASE_URL"), "/")
	if cfg.API.BaseURL == "" {
		return nil, fmt.Errorf("API_BASE_URL is required")
	}
	cfg.API.Timeout = r.duration("API_TIMEOUT", 10*time.Second)
	cfg.API.RegisterTimeout = r.duration("REGISTER_TIMEOUT", 30*time.Second)

	cfg.Storage.DBPath = r.str("DB_PATH", "frontend.db")
	cfg.Storage.UploadDir = r.str("UPLOAD_DIR", os.TempDir()+"/fes-uploads")
	cfg.Storage.SessionTTL = r.duration("SESSION_TTL", 24*time.Hour)
	cfg.Storage.DraftTTL = r.duration("DRAFT_TTL", 2*time.Hour)

	cfg.Redis.Addr = getenv("REDIS_ADDR")
	cfg.Redis.Password = getenv("REDIS_PASSWORD")
	cfg.Redis.DB = r.int("REDIS_DB", 0)

	cfg.Email.Key = getenv("RESEND_KEY")
	cfg.Email.From = r.str("RESEND_FROM", "Faculty Evaluation <noreply@example.edu>")

	cfg.Logging.Level = r.str("LOG_LEVEL", "info")
	cfg.Logging.Dev = getenv("LOG_DEV") == "1"
	cfg.Logging.File = getenv("LOG_FILE")

	cfg.Security.CSRFKey = r.key("CSRF_KEY")
	cfg.Security.DraftKey = r.key("DRAFT_KEY")
	for _, origin := range strings.Split(getenv("TRUSTED_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.Security.TrustedOrigins = append(cfg.Security.TrustedOrigins, origin)
		}
	}

	if r.err != nil {
		return nil, r.err
	}
	if cfg.IsProduction() && (cfg.Security.CSRFKey == nil || cfg.Security.DraftKey == nil) {
		return nil, fmt.Errorf("CSRF_KEY and DRAFT_KEY are required in production")
	}
	if cfg.IsProduction() && getenv("PUBLIC_URL") == "" {
		return nil, fmt.Errorf("PUBLIC_URL is required in production")
	}
	return cfg, nil
}

// localURL is the development default for PUBLIC_URL.
func localURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

func checkPublicURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("PUBLIC_URL must be an absolute http(s) URL, got %q", raw)
	}
	if u.RawQuery != "" || u.Fragment != "" || u.User != nil {
		return fmt.Errorf("PUBLIC_URL must not carry credentials, a query or a fragment")
	}
	return nil
}

// reader parses variables and keeps the first error.
type reader struct {
	getenv func(string) string
	err    error
}

func (r *reader) fail(name string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("invalid %s: %w", name, err)
	}
}

func (r *reader) str(name, def string) string {
	if v := r.getenv(name); v != "" {
		return v
	}
	return def
}

func (r *reader) int(name string, def int) int {
	v := r.getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(name, err)
		return def
	}
	return n
}

func (r *reader) duration(name string, def time.Duration) time.Duration {
	v := r.getenv(name)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(name, err)
		return def
	}
	if d <= 0 {
		r.fail(name, fmt.Errorf("must be positive, got %s", v))
		return def
	}
	return d
}

// key decodes a 32-byte hex key. Unset keys return nil so callers can generate one.
func (r *reader) key(name string) []byte {
	v := r.getenv(name)
	if v == "" {
		return nil
	}
	b, err := hex.DecodeString(v)
	if err != nil {
		r.fail(name, err)
		return nil
	}
	if len(b) != 32 {
		r.fail(name, fmt.Errorf("must be 64 hex characters, got %d", len(v)))
		return nil
	}
	return b
}
