// Package transport issues authenticated requests against the Git hosting
// REST API and normalizes every response into a Response or a typed error.
//
// It handles:
//   - Token and basic authentication
//   - Conditional requests backed by a cache.Cache (ETag / If-None-Match)
//   - Boolean queries answered by status code (204 true, 404 false)
//   - Rate-limit observation and request progress notifications
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"ghrest.dev/ghrest/internal/cache"
)

const (
	// AcceptRaw asks the API for raw content where a resource supports it and JSON otherwise
	AcceptRaw = "application/vnd.github.v3.raw+json"

	// NotModifiedSince is sent when no validator is cached so the remote never answers 304
	NotModifiedSince = "Thu, 01 Jan 1970 00:00:00 GMT"

	// DefaultBaseURL is the public GitHub API
	DefaultBaseURL = "https://api.github.com"

	// DefaultUserAgent identifies ghrest to the remote
	DefaultUserAgent = "ghrest"
)

// Config configures a Transport
type Config struct {
	BaseURL string

	// Token takes precedence over Username/Password
	Token    string
	Username string
	Password string

	UserAgent string

	// UseETags enables the conditional-request cache
	UseETags bool

	// DegradePatch sends PATCH requests as POST
	DegradePatch bool

	// TrueStatus and FalseStatus answer boolean queries. Zero means 204 and 404.
	TrueStatus  int
	FalseStatus int

	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
	Progress   Progress
}

// HasCredentials reports whether any authentication is configured
func (c Config) HasCredentials() bool {
	return c.Token != "" || (c.Username != "" && c.Password != "")
}

// Options modify how a single request is encoded and how its response is interpreted
type Options struct {
	// Raw sends a []byte or string payload unencoded
	Raw bool
	// Binary returns the response body byte-for-byte
	Binary bool
	// BooleanQuery maps TrueStatus/FalseStatus to KindTrue/KindFalse
	BooleanQuery bool
}

// Transport performs requests for one client. It is safe for concurrent use.
type Transport struct {
	cfg      Config
	baseURL  *url.URL
	client   *http.Client
	cache    *cache.Cache
	logger   *slog.Logger
	progress Progress

	mu        sync.RWMutex
	observers []RateLimitObserver
}

// New creates a Transport backed by the given cache
func New(cfg Config, c *cache.Cache) (*Transport, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.TrueStatus == 0 {
		cfg.TrueStatus = http.StatusNoContent
	}
	if cfg.FalseStatus == 0 {
		cfg.FalseStatus = http.StatusNotFound
	}
	if c == nil {
		c = cache.New()
	}

	baseURL, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL %s: %w", cfg.BaseURL, err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	progress := cfg.Progress
	if progress == nil {
		progress = logProgress{logger: logger}
	}

	return &Transport{
		cfg:      cfg,
		baseURL:  baseURL,
		client:   newHTTPClient(cfg),
		cache:    c,
		logger:   logger,
		progress: progress,
	}, nil
}

// newHTTPClient wraps the configured client with an oauth2 transport when a token is set
func newHTTPClient(cfg Config) *http.Client {
	base := cfg.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Token == "" {
		return base
	}

	rt := base.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cfg.Token,
		TokenType:   "token",
	})
	return &http.Client{
		Transport:     &oauth2.Transport{Source: ts, Base: rt},
		CheckRedirect: base.CheckRedirect,
		Jar:           base.Jar,
		Timeout:       base.Timeout,
	}
}

// Config returns the effective configuration
func (t *Transport) Config() Config {
	return t.cfg
}

// Cache returns the conditional-request cache
func (t *Transport) Cache() *cache.Cache {
	return t.cache
}

// ClearCache drops every cached validator and body
func (t *Transport) ClearCache() {
	t.cache.Clear()
}

// Request performs one remote operation and normalizes the outcome.
// path is either relative to the base URL or an absolute URL; it is also the cache key.
func (t *Transport) Request(ctx context.Context, method, path string, payload any, opts Options) (*Response, error) {
	req, err := t.newRequest(ctx, method, path, payload, opts)
	if err != nil {
		return nil, err
	}

	t.progress.RequestStarted(path)
	resp, err := t.client.Do(req)
	if err != nil {
		t.progress.RequestFinished(path, 0)
		t.notify(RateLimitEvent{Remaining: -1, Limit: -1, Method: method, Path: path, Payload: payload, Options: opts})
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	t.progress.RequestFinished(path, resp.StatusCode)
	t.notify(rateLimitEvent(resp.Header, method, path, payload, opts))
	if err != nil {
		return nil, fmt.Errorf("failed to read response for %s %s: %w", method, path, err)
	}

	out := t.normalize(req.Method, path, resp, body, opts)
	switch out.Kind {
	case KindError:
		t.logger.Debug("request failed", "method", req.Method, "path", path, "status", resp.StatusCode)
		return nil, out.Err
	case KindNotModified:
		t.logger.Debug("served from cache", "path", path)
	}
	return out.Response, nil
}

// Do performs a request and decodes a JSON response body into v, if v is non-nil
func (t *Transport) Do(ctx context.Context, method, path string, payload, v any) (*Response, error) {
	resp, err := t.Request(ctx, method, path, payload, Options{})
	if err != nil {
		return nil, err
	}
	if v != nil {
		if err := resp.Decode(v); err != nil {
			return resp, fmt.Errorf("failed to decode response for %s %s: %w", method, path, err)
		}
	}
	return resp, nil
}

// Bool performs a boolean query
func (t *Transport) Bool(ctx context.Context, method, path string) (bool, error) {
	resp, err := t.Request(ctx, method, path, nil, Options{BooleanQuery: true})
	if err != nil {
		return false, err
	}
	switch resp.Kind {
	case KindTrue:
		return true, nil
	case KindFalse:
		return false, nil
	default:
		return false, fmt.Errorf("%s %s: unexpected status %d for boolean query", method, path, resp.Status)
	}
}

func (t *Transport) newRequest(ctx context.Context, method, path string, payload any, opts Options) (*http.Request, error) {
	if method == http.MethodPatch && t.cfg.DegradePatch {
		method = http.MethodPost
	}

	body, err := encodePayload(payload, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload for %s %s: %w", method, path, err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.resolve(path), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request %s %s: %w", method, path, err)
	}

	req.Header.Set("Accept", AcceptRaw)
	req.Header.Set("User-Agent", t.cfg.UserAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json;charset=UTF-8")
	}
	if t.cfg.Token == "" && t.cfg.Username != "" && t.cfg.Password != "" {
		req.SetBasicAuth(t.cfg.Username, t.cfg.Password)
	}

	// Only reads are conditional; writes to a cached path must never see a 304 or 412.
	if method == http.MethodGet {
		if entry, ok := t.cache.Get(path); ok && entry.Validator != "" {
			req.Header.Set("If-None-Match", entry.Validator)
		} else {
			req.Header.Set("If-Modified-Since", NotModifiedSince)
		}
	}
	return req, nil
}

func (t *Transport) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return t.baseURL.String() + path
}

func encodePayload(payload any, opts Options) ([]byte, error) {
	if payload == nil {
		return nil, nil
	}
	if opts.Raw {
		switch p := payload.(type) {
		case []byte:
			return p, nil
		case string:
			return []byte(p), nil
		}
	}
	return json.Marshal(payload)
}
