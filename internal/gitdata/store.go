// Package gitdata exposes the Git object model of one remote repository:
// refs, blobs, trees and commits, each backed by a single API request.
package gitdata

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/google/go-github/v62/github"
	"github.com/google/go-querystring/query"

	ghErrors "ghrest.dev/ghrest/internal/errors"
	"ghrest.dev/ghrest/internal/transport"
)

// Requester is the part of transport.Transport the store needs
type Requester interface {
	Request(ctx context.Context, method, path string, payload any, opts transport.Options) (*transport.Response, error)
}

// Store is the Git object store of one repository
type Store struct {
	req    Requester
	owner  string
	repo   string
	author *github.CommitAuthor
	logger *slog.Logger
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger used for debug output
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAuthor sets the author recorded on commits created through the store.
// Without it the remote uses the authenticated user.
func WithAuthor(name, email string) Option {
	return func(s *Store) {
		if name == "" && email == "" {
			return
		}
		s.author = &github.CommitAuthor{Name: github.String(name), Email: github.String(email)}
	}
}

// NewStore creates a store for owner/repo
func NewStore(req Requester, owner, repo string, opts ...Option) *Store {
	s := &Store{
		req:    req,
		owner:  owner,
		repo:   repo,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Owner returns the repository owner
func (s *Store) Owner() string { return s.owner }

// Name returns the repository name
func (s *Store) Name() string { return s.repo }

// RepoPath returns the API path of the repository
func (s *Store) RepoPath() string {
	return fmt.Sprintf("/repos/%s/%s", url.PathEscape(s.owner), url.PathEscape(s.repo))
}

// do issues a JSON request and decodes the response into v when v is non-nil
func (s *Store) do(ctx context.Context, method, path string, payload, v any) error {
	resp, err := s.req.Request(ctx, method, path, payload, transport.Options{})
	if err != nil {
		return err
	}
	if v == nil {
		return nil
	}
	if err := resp.Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s %s: %w", method, path, err)
	}
	return nil
}

// translate maps remote failures onto the store's error contract
func translate(err error, resource string) error {
	var remote *ghErrors.RemoteError
	if !errors.As(err, &remote) {
		return err
	}
	switch remote.Status {
	case http.StatusNotFound:
		return ghErrors.NewNotFoundError(resource, remote)
	case http.StatusConflict:
		return ghErrors.NewConflictError(resource, remote)
	}
	return err
}

// ReadRef returns the commit a ref points at. ref is relative to refs/, e.g. "heads/main".
func (s *Store) ReadRef(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimPrefix(ref, "refs/")
	resp, err := s.req.Request(ctx, http.MethodGet, s.RepoPath()+"/git/refs/"+ref, nil, transport.Options{})
	if err != nil {
		return "", translate(err, "ref "+ref)
	}

	// A ref that only prefix-matches comes back as a list of candidates
	if len(resp.Body) > 0 && resp.Body[0] == '[' {
		return "", ghErrors.NewNotFoundError("ref "+ref, nil)
	}

	var r github.Reference
	if err := resp.Decode(&r); err != nil {
		return "", fmt.Errorf("failed to decode ref %s: %w", ref, err)
	}
	return r.GetObject().GetSHA(), nil
}

// CreateRef creates ref pointing at sha. A name without the refs/ prefix gets one.
func (s *Store) CreateRef(ctx context.Context, ref, sha string) (*Ref, error) {
	if !strings.HasPrefix(ref, "refs/") {
		ref = "refs/" + ref
	}
	var r github.Reference
	if err := s.do(ctx, http.MethodPost, s.RepoPath()+"/git/refs", createRefPayload{Ref: ref, SHA: sha}, &r); err != nil {
		return nil, translate(err, "ref "+ref)
	}
	return refFromGitHub(&r), nil
}

// DeleteRef deletes ref, e.g. "heads/feature"
func (s *Store) DeleteRef(ctx context.Context, ref string) error {
	ref = strings.TrimPrefix(ref, "refs/")
	if err := s.do(ctx, http.MethodDelete, s.RepoPath()+"/git/refs/"+ref, nil, nil); err != nil {
		return translate(err, "ref "+ref)
	}
	return nil
}

// ListBranches returns branch names in the order the remote lists them
func (s *Store) ListBranches(ctx context.Context) ([]string, error) {
	var refs []*github.Reference
	if err := s.do(ctx, http.MethodGet, s.RepoPath()+"/git/refs/heads", nil, &refs); err != nil {
		return nil, translate(err, "branches")
	}
	names := make([]string, 0, len(refs))
	for _, r := range refs {
		names = append(names, BranchName(r.GetRef()))
	}
	return names, nil
}

// ResolvePath returns the hash of path on a branch or commit.
// An empty path resolves to the commit the branch points at.
func (s *Store) ResolvePath(ctx context.Context, branchOrCommit, path string) (string, error) {
	if path == "" {
		return s.ReadRef(ctx, "heads/"+branchOrCommit)
	}

	entries, err := s.ReadTree(ctx, branchOrCommit, true)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.Path == path {
			return e.SHA, nil
		}
	}
	return "", ghErrors.NewNotFoundError(fmt.Sprintf("path %s on %s", path, branchOrCommit), nil)
}

// ReadBlob returns the content of a blob
func (s *Store) ReadBlob(ctx context.Context, sha string, binary bool) ([]byte, error) {
	resp, err := s.req.Request(ctx, http.MethodGet, s.RepoPath()+"/git/blobs/"+sha, nil, transport.Options{Raw: true, Binary: binary})
	if err != nil {
		return nil, translate(err, "blob "+sha)
	}

	// Servers that ignore the raw media type answer with the JSON envelope
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		var b github.Blob
		if err := resp.Decode(&b); err != nil {
			return nil, fmt.Errorf("failed to decode blob %s: %w", sha, err)
		}
		if b.GetEncoding() == "base64" {
			return base64.StdEncoding.DecodeString(strings.ReplaceAll(b.GetContent(), "\n", ""))
		}
		return []byte(b.GetContent()), nil
	}
	return resp.Body, nil
}

// ReadTree lists a tree. treeish may be a tree hash, commit hash or branch name.
// A listing the remote marks as truncated is refused with a TruncatedError.
func (s *Store) ReadTree(ctx context.Context, treeish string, recursive bool) ([]TreeEntry, error) {
	path := s.RepoPath() + "/git/trees/" + treeish
	if recursive {
		path += "?recursive=true"
	}

	var tree github.Tree
	if err := s.do(ctx, http.MethodGet, path, nil, &tree); err != nil {
		return nil, translate(err, "tree "+treeish)
	}
	if tree.GetTruncated() {
		s.logger.Warn("tree listing truncated by remote", "tree", treeish)
		return nil, ghErrors.NewTruncatedError(treeish)
	}
	return entriesFromGitHub(tree.Entries), nil
}

// CreateBlob uploads content and returns its hash. Binary content is sent base64 encoded.
func (s *Store) CreateBlob(ctx context.Context, content []byte, binary bool) (string, error) {
	payload := createBlobPayload{Content: string(content), Encoding: "utf-8"}
	if binary {
		payload = createBlobPayload{Content: base64.StdEncoding.EncodeToString(content), Encoding: "base64"}
	}

	var b github.Blob
	if err := s.do(ctx, http.MethodPost, s.RepoPath()+"/git/blobs", payload, &b); err != nil {
		return "", translate(err, "blob")
	}

	sha := b.GetSHA()
	if isObjectHash(sha) {
		if want := plumbing.ComputeHash(plumbing.BlobObject, content).String(); want != sha {
			return "", fmt.Errorf("%w: remote returned %s, content hashes to %s", ghErrors.ErrBlobHashMismatch, sha, want)
		}
	}
	return sha, nil
}

// CreateTree creates a tree from base with entries overlaid. Paths in base
// that entries do not mention are inherited unchanged.
func (s *Store) CreateTree(ctx context.Context, base string, entries []TreeEntry) (string, error) {
	return s.createTree(ctx, createTreePayload{BaseTree: base, Tree: treePayload(entries)})
}

// CreateTreeFull creates a tree from a complete listing
func (s *Store) CreateTreeFull(ctx context.Context, entries []TreeEntry) (string, error) {
	return s.createTree(ctx, createTreePayload{Tree: treePayload(entries)})
}

func (s *Store) createTree(ctx context.Context, payload createTreePayload) (string, error) {
	var tree github.Tree
	if err := s.do(ctx, http.MethodPost, s.RepoPath()+"/git/trees", payload, &tree); err != nil {
		return "", translate(err, "tree")
	}
	return tree.GetSHA(), nil
}

func treePayload(entries []TreeEntry) []treeEntryPayload {
	out := make([]treeEntryPayload, 0, len(entries))
	for _, e := range entries {
		out = append(out, treeEntryPayload{Path: e.Path, Mode: e.Mode, Type: e.Type, SHA: e.SHA})
	}
	return out
}

// CreateCommit creates a commit of tree with the given parents
func (s *Store) CreateCommit(ctx context.Context, parents []string, tree, message string) (*Commit, error) {
	payload := createCommitPayload{
		Message: message,
		Tree:    tree,
		Parents: Parents(parents...),
		Author:  s.author,
	}
	var c github.Commit
	if err := s.do(ctx, http.MethodPost, s.RepoPath()+"/git/commits", payload, &c); err != nil {
		return nil, translate(err, "commit")
	}
	return commitFromGitHub(&c), nil
}

// AdvanceRef moves a branch to sha. Without force the remote rejects
// anything that is not a fast-forward, reported as a ConflictError.
func (s *Store) AdvanceRef(ctx context.Context, branch, sha string, force bool) (*Ref, error) {
	branch = BranchName(branch)
	var r github.Reference
	err := s.do(ctx, http.MethodPatch, s.RepoPath()+"/git/refs/heads/"+branch, updateRefPayload{SHA: sha, Force: force}, &r)
	if err != nil {
		var remote *ghErrors.RemoteError
		if errors.As(err, &remote) && remote.Status == http.StatusUnprocessableEntity {
			return nil, ghErrors.NewConflictError("branch "+branch, remote)
		}
		return nil, translate(err, "branch "+branch)
	}
	return refFromGitHub(&r), nil
}

// GetCommit returns commit metadata
func (s *Store) GetCommit(ctx context.Context, sha string) (*Commit, error) {
	var c github.Commit
	if err := s.do(ctx, http.MethodGet, s.RepoPath()+"/git/commits/"+sha, nil, &c); err != nil {
		return nil, translate(err, "commit "+sha)
	}
	return commitFromGitHub(&c), nil
}

// ListCommits lists commits reachable from filter.SHA, newest first
func (s *Store) ListCommits(ctx context.Context, filter CommitFilter) ([]*Commit, error) {
	opts := &github.CommitsListOptions{
		SHA:    filter.SHA,
		Path:   filter.Path,
		Author: filter.Author,
	}
	if !filter.Since.IsZero() {
		opts.Since = filter.Since.UTC()
	}
	if !filter.Until.IsZero() {
		opts.Until = filter.Until.UTC()
	}
	values, err := query.Values(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to encode commit filter: %w", err)
	}

	path := s.RepoPath() + "/commits"
	if q := values.Encode(); q != "" {
		path += "?" + q
	}

	var commits []*github.RepositoryCommit
	if err := s.do(ctx, http.MethodGet, path, nil, &commits); err != nil {
		return nil, translate(err, "commits")
	}
	out := make([]*Commit, 0, len(commits))
	for _, rc := range commits {
		out = append(out, commitFromRepositoryCommit(rc))
	}
	return out, nil
}

// DeleteFile deletes path on branch in a single commit. sha must be the
// blob hash the caller last saw; the remote refuses the delete otherwise.
func (s *Store) DeleteFile(ctx context.Context, path, message, sha, branch string) (*Commit, error) {
	opts := &github.RepositoryContentFileOptions{
		Message: github.String(message),
		SHA:     github.String(sha),
		Branch:  github.String(branch),
	}
	var resp github.RepositoryContentResponse
	if err := s.do(ctx, http.MethodDelete, s.RepoPath()+"/contents/"+EscapePath(path), opts, &resp); err != nil {
		return nil, translate(err, "path "+path)
	}
	return commitFromGitHub(&resp.Commit), nil
}

// EscapePath escapes each segment of a repository path
func EscapePath(path string) string {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func isObjectHash(sha string) bool {
	if len(sha) != 40 {
		return false
	}
	_, err := hex.DecodeString(sha)
	return err == nil
}
