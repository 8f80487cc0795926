package runtime

import (
	"context"
	"fmt"
	"sync/atomic"

	"ghrest.dev/ghrest/internal/client"
	"ghrest.dev/ghrest/internal/config"
	ghErrors "ghrest.dev/ghrest/internal/errors"
	"ghrest.dev/ghrest/internal/output"
	"ghrest.dev/ghrest/internal/transport"
)

// lowQuotaFraction is the share of the rate limit below which a warning is printed
const lowQuotaFraction = 10

// Context provides access to the client and output for commands
type Context struct {
	context.Context
	Client     *client.Client
	Splog      *output.Splog
	Config     *config.Config
	ConfigPath string

	// RepoName is "owner/name", empty when no repository was selected
	RepoName string
	Branch   string
}

// NewContext creates a context from a loaded configuration
func NewContext(ctx context.Context, cfg *config.Config, configPath string, splog *output.Splog) (*Context, error) {
	c, err := client.New(cfg.TransportConfig(splog.Logger()), client.Options{
		AuthorName:      cfg.Author.Name,
		AuthorEmail:     cfg.Author.Email,
		BlobConcurrency: cfg.BlobConcurrency,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	rc := &Context{
		Context:    ctx,
		Client:     c,
		Splog:      splog,
		Config:     cfg,
		ConfigPath: configPath,
		RepoName:   cfg.Repo,
		Branch:     cfg.Branch,
	}
	c.OnRateLimit(rc.warnOnLowQuota())
	return rc, nil
}

// warnOnLowQuota returns an observer that warns once when the quota runs low
func (c *Context) warnOnLowQuota() transport.RateLimitObserver {
	var warned atomic.Bool
	return func(ev transport.RateLimitEvent) {
		if ev.Limit <= 0 || ev.Remaining < 0 {
			return
		}
		if ev.Remaining*100 < ev.Limit*lowQuotaFraction && warned.CompareAndSwap(false, true) {
			c.Splog.Warn("Only %d of %d API requests left in this window", ev.Remaining, ev.Limit)
		}
	}
}

// Repository returns the selected repository
func (c *Context) Repository() (*client.Repository, error) {
	if c.RepoName == "" {
		return nil, ghErrors.NewPreconditionError("this command", "a repository (--repo owner/name)")
	}
	owner, name, err := config.SplitRepo(c.RepoName)
	if err != nil {
		return nil, err
	}
	return c.Client.Repo(owner, name), nil
}
