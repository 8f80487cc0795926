package gitdata

import (
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
)

// Tree entry modes and types used by the API
const (
	ModeFile       = "100644"
	ModeExecutable = "100755"
	ModeSymlink    = "120000"
	ModeDir        = "040000"
	ModeSubmodule  = "160000"

	TypeBlob   = "blob"
	TypeTree   = "tree"
	TypeCommit = "commit"

	headsPrefix = "refs/heads/"
)

// Ref is a named pointer to a commit
type Ref struct {
	Name string
	SHA  string
	Type string
	URL  string
}

// TreeEntry is one path in a tree.
// An empty SHA on a tree entry asks the remote to compute it from the entries below.
type TreeEntry struct {
	Path string
	Mode string
	Type string
	SHA  string
	Size int
}

// Signature identifies the author or committer of a commit
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// Commit is commit metadata
type Commit struct {
	SHA       string
	Message   string
	TreeSHA   string
	Parents   []string
	Author    Signature
	Committer Signature
	URL       string
}

// CommitFilter narrows ListCommits
type CommitFilter struct {
	// SHA is the branch or commit to start listing from
	SHA    string
	Path   string
	Author string
	Since  time.Time
	Until  time.Time
}

// Parents normalizes one or more parent hashes into an ordered slice
func Parents(shas ...string) []string {
	out := make([]string, 0, len(shas))
	for _, sha := range shas {
		if sha != "" {
			out = append(out, sha)
		}
	}
	return out
}

// BranchName strips the heads namespace from a ref name
func BranchName(ref string) string {
	return strings.TrimPrefix(ref, headsPrefix)
}

func refFromGitHub(r *github.Reference) *Ref {
	if r == nil {
		return nil
	}
	return &Ref{
		Name: r.GetRef(),
		SHA:  r.GetObject().GetSHA(),
		Type: r.GetObject().GetType(),
		URL:  r.GetURL(),
	}
}

func entriesFromGitHub(entries []*github.TreeEntry) []TreeEntry {
	out := make([]TreeEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, TreeEntry{
			Path: e.GetPath(),
			Mode: e.GetMode(),
			Type: e.GetType(),
			SHA:  e.GetSHA(),
			Size: e.GetSize(),
		})
	}
	return out
}

func signatureFromGitHub(a *github.CommitAuthor) Signature {
	if a == nil {
		return Signature{}
	}
	return Signature{
		Name:  a.GetName(),
		Email: a.GetEmail(),
		When:  a.GetDate().Time,
	}
}

func commitFromGitHub(c *github.Commit) *Commit {
	if c == nil {
		return nil
	}
	out := &Commit{
		SHA:       c.GetSHA(),
		Message:   c.GetMessage(),
		TreeSHA:   c.GetTree().GetSHA(),
		Author:    signatureFromGitHub(c.Author),
		Committer: signatureFromGitHub(c.Committer),
		URL:       c.GetURL(),
	}
	for _, p := range c.Parents {
		out.Parents = append(out.Parents, p.GetSHA())
	}
	return out
}

func commitFromRepositoryCommit(rc *github.RepositoryCommit) *Commit {
	c := commitFromGitHub(rc.GetCommit())
	if c == nil {
		c = &Commit{}
	}
	// The list endpoint puts the hash and parents on the outer object
	c.SHA = rc.GetSHA()
	if len(rc.Parents) > 0 {
		c.Parents = c.Parents[:0]
		for _, p := range rc.Parents {
			c.Parents = append(c.Parents, p.GetSHA())
		}
	}
	return c
}

// treeEntryPayload is the create-tree wire form. go-github's TreeEntry sends
// "sha": null for an entry without a hash, which the API reads as a deletion.
type treeEntryPayload struct {
	Path string `json:"path"`
	Mode string `json:"mode"`
	Type string `json:"type"`
	SHA  string `json:"sha,omitempty"`
}

type createTreePayload struct {
	BaseTree string             `json:"base_tree,omitempty"`
	Tree     []treeEntryPayload `json:"tree"`
}

type createBlobPayload struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type createCommitPayload struct {
	Message   string               `json:"message"`
	Tree      string               `json:"tree"`
	Parents   []string             `json:"parents"`
	Author    *github.CommitAuthor `json:"author,omitempty"`
	Committer *github.CommitAuthor `json:"committer,omitempty"`
}

type createRefPayload struct {
	Ref string `json:"ref"`
	SHA string `json:"sha"`
}

type updateRefPayload struct {
	SHA   string `json:"sha"`
	Force bool   `json:"force"`
}
