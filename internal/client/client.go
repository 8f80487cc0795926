// Package client is the entry point of ghrest. A Client owns the transport,
// its conditional-request cache and its rate-limit observers; repositories
// and users obtained from it share that state.
package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/google/go-github/v62/github"

	"ghrest.dev/ghrest/internal/cache"
	ghErrors "ghrest.dev/ghrest/internal/errors"
	"ghrest.dev/ghrest/internal/gitdata"
	"ghrest.dev/ghrest/internal/pipeline"
	"ghrest.dev/ghrest/internal/transport"
)

// Options configures a Client beyond the transport settings
type Options struct {
	AuthorName      string
	AuthorEmail     string
	BlobConcurrency int
	StageObserver   pipeline.StageObserver
}

// Client is a handle on one API endpoint with one set of credentials
type Client struct {
	transport *transport.Transport
	cache     *cache.Cache
	logger    *slog.Logger
	opts      Options
}

// New creates a Client
func New(cfg transport.Config, opts Options) (*Client, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c := cache.New()
	t, err := transport.New(cfg, c)
	if err != nil {
		return nil, err
	}
	return &Client{
		transport: t,
		cache:     c,
		logger:    cfg.Logger,
		opts:      opts,
	}, nil
}

// Transport returns the underlying transport
func (c *Client) Transport() *transport.Transport {
	return c.transport
}

// OnRateLimit registers an observer called after every completed request
func (c *Client) OnRateLimit(fn transport.RateLimitObserver) {
	c.transport.OnRateLimit(fn)
}

// ClearCache drops every cached validator. The next read of any path is unconditional.
func (c *Client) ClearCache() {
	c.transport.ClearCache()
}

// Repo returns the repository owner/name. No request is made.
func (c *Client) Repo(owner, name string) *Repository {
	store := gitdata.NewStore(c.transport, owner, name,
		gitdata.WithLogger(c.logger),
		gitdata.WithAuthor(c.opts.AuthorName, c.opts.AuthorEmail),
	)
	return &Repository{Store: store, client: c}
}

// User returns the public capabilities of login
func (c *Client) User(login string) *User {
	return &User{client: c, login: login}
}

// CurrentUser returns the authenticated user. It fails with a
// PreconditionError when the client has no credentials.
func (c *Client) CurrentUser() (*AuthenticatedUser, error) {
	if !c.transport.Config().HasCredentials() {
		return nil, ghErrors.NewPreconditionError("current user", "credentials")
	}
	return &AuthenticatedUser{User: User{client: c}}, nil
}

// RateLimit returns the core API quota
func (c *Client) RateLimit(ctx context.Context) (*github.Rate, error) {
	var out struct {
		Resources *github.RateLimits `json:"resources"`
	}
	if _, err := c.transport.Do(ctx, http.MethodGet, "/rate_limit", nil, &out); err != nil {
		return nil, fmt.Errorf("failed to get rate limit: %w", err)
	}
	if out.Resources == nil || out.Resources.Core == nil {
		return nil, fmt.Errorf("rate limit response has no core quota")
	}
	return out.Resources.Core, nil
}

func escape(s string) string {
	return url.PathEscape(s)
}
