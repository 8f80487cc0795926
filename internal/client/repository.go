package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/go-github/v62/github"
	"github.com/google/go-querystring/query"

	"ghrest.dev/ghrest/internal/gitdata"
	"ghrest.dev/ghrest/internal/pipeline"
	"ghrest.dev/ghrest/internal/transport"
)

// Repository combines the Git object store of a repository with its
// resource endpoints
type Repository struct {
	*gitdata.Store
	client *Client
}

// Branch returns the write pipeline for branch name. opts are applied
// after the client-wide settings.
func (r *Repository) Branch(name string, opts ...pipeline.Option) *pipeline.Branch {
	base := []pipeline.Option{
		pipeline.WithLogger(r.client.logger),
		pipeline.WithConcurrency(r.client.opts.BlobConcurrency),
		pipeline.WithStageObserver(r.client.opts.StageObserver),
	}
	return pipeline.NewBranch(r.Store, name, append(base, opts...)...)
}

// Contents returns the contents entry for path at ref
func (r *Repository) Contents(ctx context.Context, ref, path string) (*github.RepositoryContent, error) {
	p := r.RepoPath() + "/contents/" + gitdata.EscapePath(path)
	if ref != "" {
		p += "?ref=" + escape(ref)
	}
	var content github.RepositoryContent
	if _, err := r.client.transport.Do(ctx, http.MethodGet, p, nil, &content); err != nil {
		return nil, fmt.Errorf("failed to get contents of %s: %w", path, err)
	}
	return &content, nil
}

// Compare compares two commits, branches or tags
func (r *Repository) Compare(ctx context.Context, base, head string) (*github.CommitsComparison, error) {
	p := fmt.Sprintf("%s/compare/%s...%s", r.RepoPath(), escape(base), escape(head))
	var cmp github.CommitsComparison
	if _, err := r.client.transport.Do(ctx, http.MethodGet, p, nil, &cmp); err != nil {
		return nil, fmt.Errorf("failed to compare %s...%s: %w", base, head, err)
	}
	return &cmp, nil
}

// ListPulls lists pull requests in state ("open", "closed" or "all")
func (r *Repository) ListPulls(ctx context.Context, state string) ([]*github.PullRequest, error) {
	values, err := query.Values(&github.PullRequestListOptions{State: state})
	if err != nil {
		return nil, fmt.Errorf("failed to encode pull request filter: %w", err)
	}
	p := r.RepoPath() + "/pulls"
	if q := values.Encode(); q != "" {
		p += "?" + q
	}
	var pulls []*github.PullRequest
	if _, err := r.client.transport.Do(ctx, http.MethodGet, p, nil, &pulls); err != nil {
		return nil, fmt.Errorf("failed to list pull requests: %w", err)
	}
	return pulls, nil
}

// IsCollaborator reports whether user is a collaborator on the repository
func (r *Repository) IsCollaborator(ctx context.Context, user string) (bool, error) {
	return r.client.transport.Bool(ctx, http.MethodGet, r.RepoPath()+"/collaborators/"+escape(user))
}

// IsStarred reports whether the authenticated user starred the repository
func (r *Repository) IsStarred(ctx context.Context) (bool, error) {
	return r.client.transport.Bool(ctx, http.MethodGet, r.starredPath())
}

// Star stars the repository for the authenticated user
func (r *Repository) Star(ctx context.Context) error {
	_, err := r.client.transport.Request(ctx, http.MethodPut, r.starredPath(), nil, transport.Options{})
	return err
}

// Unstar removes the authenticated user's star
func (r *Repository) Unstar(ctx context.Context) error {
	_, err := r.client.transport.Request(ctx, http.MethodDelete, r.starredPath(), nil, transport.Options{})
	return err
}

func (r *Repository) starredPath() string {
	return fmt.Sprintf("/user/starred/%s/%s", escape(r.Owner()), escape(r.Name()))
}
