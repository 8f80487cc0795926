// Package pipeline turns file edits into commits on a remote branch.
//
// Every write follows the same sequence of remote calls: resolve the branch
// tip, upload blobs (in parallel), build a tree on top of the tip's tree,
// create a commit and advance the branch. The first failing call aborts the
// sequence, so the branch is only ever moved to a complete commit.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	ghErrors "ghrest.dev/ghrest/internal/errors"
	"ghrest.dev/ghrest/internal/gitdata"
)

// ObjectStore is the subset of gitdata.Store used by Branch
type ObjectStore interface {
	ReadRef(ctx context.Context, ref string) (string, error)
	CreateRef(ctx context.Context, ref, sha string) (*gitdata.Ref, error)
	ResolvePath(ctx context.Context, branchOrCommit, path string) (string, error)
	ReadBlob(ctx context.Context, sha string, binary bool) ([]byte, error)
	ReadTree(ctx context.Context, treeish string, recursive bool) ([]gitdata.TreeEntry, error)
	CreateBlob(ctx context.Context, content []byte, binary bool) (string, error)
	CreateTree(ctx context.Context, base string, entries []gitdata.TreeEntry) (string, error)
	CreateTreeFull(ctx context.Context, entries []gitdata.TreeEntry) (string, error)
	CreateCommit(ctx context.Context, parents []string, tree, message string) (*gitdata.Commit, error)
	GetCommit(ctx context.Context, sha string) (*gitdata.Commit, error)
	AdvanceRef(ctx context.Context, branch, sha string, force bool) (*gitdata.Ref, error)
	DeleteFile(ctx context.Context, path, message, sha, branch string) (*gitdata.Commit, error)
}

// PendingWrite is one file to write
type PendingWrite struct {
	Path    string
	Content []byte
	Binary  bool
}

// File is the content of a path together with the blob hash it was read at
type File struct {
	Path    string
	SHA     string
	Content []byte
}

// Branch writes to one remote branch
type Branch struct {
	store       ObjectStore
	name        string
	logger      *slog.Logger
	observer    StageObserver
	concurrency int
}

// Option configures a Branch
type Option func(*Branch)

// WithLogger sets the logger used for stage transitions
func WithLogger(logger *slog.Logger) Option {
	return func(b *Branch) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithStageObserver reports every stage transition to fn
func WithStageObserver(fn StageObserver) Option {
	return func(b *Branch) {
		b.observer = fn
	}
}

// WithConcurrency limits parallel blob uploads. Zero or less means no limit.
func WithConcurrency(n int) Option {
	return func(b *Branch) {
		b.concurrency = n
	}
}

// NewBranch creates a pipeline for branch name
func NewBranch(store ObjectStore, name string, opts ...Option) *Branch {
	b := &Branch{
		store:  store,
		name:   gitdata.BranchName(name),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the branch name
func (b *Branch) Name() string {
	return b.name
}

// run tracks the stage of one pipeline execution
type run struct {
	b     *Branch
	op    string
	stage Stage
}

func (b *Branch) start(op string) *run {
	return &run{b: b, op: op}
}

func (r *run) enter(s Stage) {
	r.stage = s
	r.b.logger.Debug("pipeline stage", "op", r.op, "branch", r.b.name, "stage", s.String())
	if r.b.observer != nil {
		r.b.observer(r.op, s)
	}
}

// fail moves the run to StageFailed and wraps err with the stage it failed in
func (r *run) fail(err error) error {
	failedIn := r.stage
	r.enter(StageFailed)
	return fmt.Errorf("%s %s: %s: %w", r.op, r.b.name, failedIn, err)
}

// WriteMany commits files on top of the branch and advances it.
// When parents is empty the current branch tip is the only parent.
// No commit is created unless every blob uploads successfully.
func (b *Branch) WriteMany(ctx context.Context, files []PendingWrite, message string, parents ...string) (*gitdata.Ref, error) {
	r := b.start("write")
	if len(files) == 0 {
		return nil, fmt.Errorf("write %s: no files to write", b.name)
	}

	r.enter(StageResolvingRef)
	parents = gitdata.Parents(parents...)
	if len(parents) == 0 {
		head, err := b.store.ReadRef(ctx, "heads/"+b.name)
		if err != nil {
			return nil, r.fail(err)
		}
		parents = []string{head}
	}
	base, err := b.store.GetCommit(ctx, parents[0])
	if err != nil {
		return nil, r.fail(err)
	}

	r.enter(StageUploadingBlobs)
	entries, err := b.uploadBlobs(ctx, files, r)
	if err != nil {
		return nil, r.fail(err)
	}

	r.enter(StageBuildingTree)
	tree, err := b.store.CreateTree(ctx, base.TreeSHA, entries)
	if err != nil {
		return nil, r.fail(err)
	}

	return b.commitAndAdvance(ctx, r, parents, tree, message)
}

// uploadBlobs creates one blob per file concurrently and waits for all of
// them. Entries come back in input order.
func (b *Branch) uploadBlobs(ctx context.Context, files []PendingWrite, r *run) ([]gitdata.TreeEntry, error) {
	entries := make([]gitdata.TreeEntry, len(files))

	var g errgroup.Group
	if b.concurrency > 0 {
		g.SetLimit(b.concurrency)
	}
	for i, f := range files {
		g.Go(func() error {
			sha, err := b.store.CreateBlob(ctx, f.Content, f.Binary)
			if err != nil {
				return fmt.Errorf("blob for %s: %w", f.Path, err)
			}
			entries[i] = gitdata.TreeEntry{
				Path: f.Path,
				Mode: gitdata.ModeFile,
				Type: gitdata.TypeBlob,
				SHA:  sha,
			}
			return nil
		})
	}

	r.enter(StageAwaitingBlobs)
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (b *Branch) commitAndAdvance(ctx context.Context, r *run, parents []string, tree, message string) (*gitdata.Ref, error) {
	r.enter(StageCreatingCommit)
	commit, err := b.store.CreateCommit(ctx, parents, tree, message)
	if err != nil {
		return nil, r.fail(err)
	}

	r.enter(StageAdvancingRef)
	ref, err := b.store.AdvanceRef(ctx, b.name, commit.SHA, false)
	if err != nil {
		return nil, r.fail(err)
	}

	r.enter(StageDone)
	return ref, nil
}

// Write commits a single file. An empty message becomes "Changed <path>".
func (b *Branch) Write(ctx context.Context, path string, content []byte, message string, binary bool) (*gitdata.Ref, error) {
	if message == "" {
		message = "Changed " + path
	}
	return b.WriteMany(ctx, []PendingWrite{{Path: path, Content: content, Binary: binary}}, message)
}

// Move renames path to newPath in one commit. Every other entry of the tree
// is carried over; subtree hashes are dropped so the remote recomputes them.
func (b *Branch) Move(ctx context.Context, path, newPath, message string) (*gitdata.Ref, error) {
	r := b.start("move")
	if message == "" {
		message = fmt.Sprintf("Moved %s to %s", path, newPath)
	}

	r.enter(StageResolvingRef)
	head, err := b.store.ReadRef(ctx, "heads/"+b.name)
	if err != nil {
		return nil, r.fail(err)
	}
	entries, err := b.store.ReadTree(ctx, head, true)
	if err != nil {
		return nil, r.fail(err)
	}

	r.enter(StageBuildingTree)
	moved, err := renameEntries(entries, path, newPath)
	if err != nil {
		return nil, r.fail(err)
	}
	tree, err := b.store.CreateTreeFull(ctx, moved)
	if err != nil {
		return nil, r.fail(err)
	}

	return b.commitAndAdvance(ctx, r, gitdata.Parents(head), tree, message)
}

// renameEntries rewrites path (and anything below it, for a directory) to newPath.
// A newPath already occupied by an entry that is not being moved is a conflict.
func renameEntries(entries []gitdata.TreeEntry, path, newPath string) ([]gitdata.TreeEntry, error) {
	prefix := path + "/"
	found, taken := false, false
	for _, e := range entries {
		switch {
		case e.Path == path:
			found = true
		case strings.HasPrefix(e.Path, prefix):
		case e.Path == newPath || strings.HasPrefix(e.Path, newPath+"/"):
			taken = true
		}
	}
	if !found {
		return nil, ghErrors.NewNotFoundError("path "+path, nil)
	}
	if taken {
		return nil, &ghErrors.ConflictError{Resource: "path " + newPath, Message: "already exists"}
	}

	out := make([]gitdata.TreeEntry, 0, len(entries))
	for _, e := range entries {
		switch {
		case e.Path == path:
			e.Path = newPath
		case strings.HasPrefix(e.Path, prefix):
			e.Path = newPath + "/" + strings.TrimPrefix(e.Path, prefix)
		}
		if e.Type == gitdata.TypeTree {
			e.SHA = ""
		}
		out = append(out, e)
	}
	return out, nil
}

// Remove deletes path. A non-empty knownSHA is passed straight to the remote,
// which refuses the delete if the file has changed since it was read.
func (b *Branch) Remove(ctx context.Context, path, message, knownSHA string) (*gitdata.Commit, error) {
	if message == "" {
		message = "Deleted " + path
	}
	sha := knownSHA
	if sha == "" {
		resolved, err := b.store.ResolvePath(ctx, b.name, path)
		if err != nil {
			return nil, fmt.Errorf("remove %s: %w", path, err)
		}
		sha = resolved
	}
	commit, err := b.store.DeleteFile(ctx, path, message, sha, b.name)
	if err != nil {
		return nil, fmt.Errorf("remove %s: %w", path, err)
	}
	return commit, nil
}

// Read returns the content of path at the branch tip together with its blob
// hash, which can be handed to Remove to guard against concurrent changes.
func (b *Branch) Read(ctx context.Context, path string, binary bool) (*File, error) {
	head, err := b.store.ReadRef(ctx, "heads/"+b.name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	sha, err := b.store.ResolvePath(ctx, head, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	content, err := b.store.ReadBlob(ctx, sha, binary)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return &File{Path: path, SHA: sha, Content: content}, nil
}

// CreateBranch creates newName pointing at the current tip of this branch
func (b *Branch) CreateBranch(ctx context.Context, newName string) (*gitdata.Ref, error) {
	sha, err := b.store.ResolvePath(ctx, b.name, "")
	if err != nil {
		return nil, fmt.Errorf("create branch %s from %s: %w", newName, b.name, err)
	}
	ref, err := b.store.CreateRef(ctx, "refs/heads/"+gitdata.BranchName(newName), sha)
	if err != nil {
		return nil, fmt.Errorf("create branch %s from %s: %w", newName, b.name, err)
	}
	return ref, nil
}

// IsConflict reports whether err is a rejected, non-fast-forward advance.
// Retrying is left to the caller.
func IsConflict(err error) bool {
	return errors.Is(err, ghErrors.ErrConflict)
}
