// Package api is the client of the Faculty Evaluation REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"facultyeval/internal/domain/account"
)

// maxBodySize caps how much of an API response is read.
const maxBodySize = 4 << 20

// Error is a failed API call carrying the status and the server's message.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
}

// ErrEmptyToken is returned when the login response has no token.
var ErrEmptyToken = errors.New("login response has no token")

// Response is a raw API response.
type Response struct {
	Status int
	Body   []byte
}

// OK reports a 2xx status.
func (r Response) OK() bool { return r.Status >= 200 && r.Status < 300 }

// Client calls the API. It is safe for concurrent use. Every call runs under
// its own deadline; the transport client carries none so the longer
// registration upload is not cut short.
type Client struct {
	base            string
	http            *http.Client
	timeout         time.Duration
	registerTimeout time.Duration
	logger          *zap.Logger
	classes         singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the transport client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

// WithTimeout sets the deadline of ordinary API calls.
func WithTimeout(d time.Duration) Option { return func(c *Client) { c.timeout = d } }

// WithRegisterTimeout sets the deadline of the registration upload.
func WithRegisterTimeout(d time.Duration) Option { return func(c *Client) { c.registerTimeout = d } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.logger = l } }

// New creates a client for the API rooted at baseURL.
// PRE: baseURL is an absolute URL without trailing slash
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base:            strings.TrimRight(baseURL, "/"),
		http:            &http.Client{},
		timeout:         10 * time.Second,
		registerTimeout: 30 * time.Second,
		logger:          zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string { return c.base }

// Get performs an authenticated GET. Non-2xx statuses are returned in the
// Response; only transport failures are errors.
func (c *Client) Get(ctx context.Context, token, path string, query url.Values) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Response{}, err
	}
	return c.do(req, token)
}

func (c *Client) do(req *http.Request, token string) (Response, error) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("upstream_request", zap.String("method", req.Method), zap.String("path", req.URL.Path), zap.Error(err))
		return Response{}, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return Response{}, fmt.Errorf("read %s: %w", req.URL.Path, err)
	}
	c.logger.Debug("upstream_request",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)
	return Response{Status: resp.StatusCode, Body: body}, nil
}

// envelope is the common {success, message} wrapper of API responses.
type envelope struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// errorFrom turns a response into an *Error using the server message or fallback.
func errorFrom(r Response, fallback string) *Error {
	var env envelope
	_ = json.Unmarshal(r.Body, &env)
	msg := env.Message
	if msg == "" {
		msg = env.Error
	}
	if msg == "" {
		msg = fallback
	}
	return &Error{Status: r.Status, Message: msg}
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	UserType string `json:"userType,omitempty"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult is a successful login.
type LoginResult struct {
	Token    string
	UserJSON string
}

// Login exchanges credentials for a bearer token and the user record.
// POST: On success Token is non-empty and UserJSON is the raw user object;
// rejected credentials return *Error with the server message or "Login failed"
func (c *Client) Login(ctx context.Context, in LoginRequest) (LoginResult, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return LoginResult{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/auth/login", bytes.NewReader(payload))
	if err != nil {
		return LoginResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req, "")
	if err != nil {
		return LoginResult{}, err
	}

	var body struct {
		envelope
		Token string          `json:"token"`
		User  json.RawMessage `json:"user"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil || !resp.OK() || (body.Success != nil && !*body.Success) {
		return LoginResult{}, errorFrom(resp, "Login failed")
	}
	if body.Token == "" {
		return LoginResult{}, ErrEmptyToken
	}
	return LoginResult{Token: body.Token, UserJSON: string(body.User)}, nil
}

// ListClasses loads the class picker options. The endpoint returns a plain
// array; any other shape reads as no classes. Concurrent calls share one request.
// INVARIANT: the shared request is bounded by the client timeout, not by any
// one caller's cancellation; a canceled caller stops waiting on its own
func (c *Client) ListClasses(ctx context.Context) ([]account.Class, error) {
	shared := context.WithoutCancel(ctx)
	ch := c.classes.DoChan("classes", func() (any, error) {
		resp, err := c.Get(shared, "", "/api/classes", nil)
		if err != nil {
			return nil, err
		}
		if !resp.OK() {
			return nil, errorFrom(resp, "Failed to load classes")
		}
		var classes []account.Class
		if err := json.Unmarshal(resp.Body, &classes); err != nil {
			return []account.Class{}, nil
		}
		return classes, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]account.Class), nil
	}
}
