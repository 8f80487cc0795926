package testhelpers

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/google/go-github/v62/github"
)

// MockRemoteConfig configures the behavior of a mock Git hosting server
type MockRemoteConfig struct {
	Owner string
	Repo  string
	// DefaultBranch is used by endpoints that take an optional ref
	DefaultBranch string
	// Token, when set, is required as "Authorization: token <Token>" on every request
	Token string
	// RateLimit is the quota reported in X-RateLimit-* headers
	RateLimit int
	// Collaborators answer GET /collaborators/{user} with 204
	Collaborators []string
	// Following answer GET /user/following/{user} with 204
	Following []string
	// DisableETags stops the server from sending validators
	DisableETags bool
	// PullRequests are served by GET /pulls, filtered by ?state=
	PullRequests []*github.PullRequest
	// Emails are served by GET /user/emails
	Emails []string
	// TruncateTrees makes recursive tree listings report truncated=true and
	// drop every entry after the first
	TruncateTrees bool
}

// NewMockRemoteConfig creates a new mock remote config with defaults
func NewMockRemoteConfig() *MockRemoteConfig {
	return &MockRemoteConfig{
		Owner:         "owner",
		Repo:          "repo",
		DefaultBranch: "main",
		RateLimit:     5000,
	}
}

// RecordedRequest is a request the mock remote received
type RecordedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

type failure struct {
	method   string
	contains string
	body     string
	status   int
}

type fileEntry struct {
	mode filemode.FileMode
	hash plumbing.Hash
}

// MockRemote is an httptest server implementing the Git data API on top of
// an in-memory go-git object store, so every hash it returns is a real git hash.
type MockRemote struct {
	Server *httptest.Server
	Config *MockRemoteConfig

	mu        sync.Mutex
	storage   *memory.Storage
	requests  []RecordedRequest
	failures  []failure
	remaining int
	starred   bool
	clock     time.Time
	following map[string]bool
}

// NewMockRemote starts a mock remote that is closed when the test ends
func NewMockRemote(t *testing.T, config *MockRemoteConfig) *MockRemote {
	t.Helper()
	if config == nil {
		config = NewMockRemoteConfig()
	}
	m := &MockRemote{
		Config:    config,
		storage:   memory.NewStorage(),
		remaining: config.RateLimit,
		clock:     time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		following: make(map[string]bool),
	}
	for _, u := range config.Following {
		m.following[u] = true
	}
	m.Server = httptest.NewServer(http.HandlerFunc(m.handle))
	t.Cleanup(func() { m.Server.Close() })
	return m
}

// URL returns the base URL of the server
func (m *MockRemote) URL() string {
	return m.Server.URL
}

// Fail makes every request whose method matches (empty matches all) and whose
// path contains substr fail with status
func (m *MockRemote) Fail(method, substr string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, failure{method: method, contains: substr, status: status})
}

// FailBlobsContaining makes blob uploads whose decoded content contains substr fail with status
func (m *MockRemote) FailBlobsContaining(substr string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, failure{method: http.MethodPost, contains: "/git/blobs", body: substr, status: status})
}

// ClearFailures removes all injected failures
func (m *MockRemote) ClearFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = nil
}

// Requests returns a copy of every request received so far
func (m *MockRemote) Requests() []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RecordedRequest(nil), m.requests...)
}

// CountRequests counts requests with method (empty matches all) whose path contains substr
func (m *MockRemote) CountRequests(method, substr string) int {
	n := 0
	for _, r := range m.Requests() {
		if (method == "" || r.Method == method) && strings.Contains(r.Path, substr) {
			n++
		}
	}
	return n
}

// LastRequest returns the most recent request with method whose path contains substr
func (m *MockRemote) LastRequest(method, substr string) (RecordedRequest, bool) {
	reqs := m.Requests()
	for i := len(reqs) - 1; i >= 0; i-- {
		if (method == "" || reqs[i].Method == method) && strings.Contains(reqs[i].Path, substr) {
			return reqs[i], true
		}
	}
	return RecordedRequest{}, false
}

// ResetRequests forgets recorded requests
func (m *MockRemote) ResetRequests() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
}

// Seed creates branch with a root commit holding files and returns the commit hash
func (m *MockRemote) Seed(t *testing.T, branch string, files map[string]string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := make(map[string]fileEntry, len(files))
	for path, content := range files {
		h, err := m.storeBlob([]byte(content))
		if err != nil {
			t.Fatalf("seed blob %s: %v", path, err)
		}
		entries[path] = fileEntry{mode: filemode.Regular, hash: h}
	}
	tree, err := m.buildTree(entries)
	if err != nil {
		t.Fatalf("seed tree: %v", err)
	}
	commit, err := m.storeCommit("Initial commit", tree, nil, nil)
	if err != nil {
		t.Fatalf("seed commit: %v", err)
	}
	if err := m.storage.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName(branch), commit)); err != nil {
		t.Fatalf("seed ref: %v", err)
	}
	return commit.String()
}

// SetBranch points branch at commit without any fast-forward check
func (m *MockRemote) SetBranch(t *testing.T, branch, commit string) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(branch), plumbing.NewHash(commit))
	if err := m.storage.SetReference(ref); err != nil {
		t.Fatalf("set branch %s: %v", branch, err)
	}
}

// BranchSHA returns the commit branch points at, or "" if it does not exist
func (m *MockRemote) BranchSHA(branch string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref, err := m.storage.Reference(plumbing.NewBranchReferenceName(branch))
	if err != nil {
		return ""
	}
	return ref.Hash().String()
}

// Commit returns a stored commit
func (m *MockRemote) Commit(t *testing.T, sha string) *object.Commit {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := object.GetCommit(m.storage, plumbing.NewHash(sha))
	if err != nil {
		t.Fatalf("commit %s: %v", sha, err)
	}
	return c
}

// Files returns path -> content for every file in the tree of treeish
// (a branch name, commit hash or tree hash)
func (m *MockRemote) Files(t *testing.T, treeish string) map[string]string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	tree, err := m.resolveTree(treeish)
	if err != nil {
		t.Fatalf("resolve %s: %v", treeish, err)
	}
	entries, err := m.flatten(tree)
	if err != nil {
		t.Fatalf("flatten %s: %v", treeish, err)
	}
	out := make(map[string]string, len(entries))
	for path, e := range entries {
		content, err := m.readBlob(e.hash)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		out[path] = string(content)
	}
	return out
}

// BlobSHA returns the hash of path in treeish, or "" if absent
func (m *MockRemote) BlobSHA(t *testing.T, treeish, path string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	tree, err := m.resolveTree(treeish)
	if err != nil {
		t.Fatalf("resolve %s: %v", treeish, err)
	}
	entries, err := m.flatten(tree)
	if err != nil {
		t.Fatalf("flatten %s: %v", treeish, err)
	}
	return entries[path].hash.String()
}

func (m *MockRemote) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, RecordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Header: r.Header.Clone(),
		Body:   body,
	})

	if m.remaining > 0 {
		m.remaining--
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.Config.RateLimit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(m.remaining))

	if m.Config.Token != "" && r.Header.Get("Authorization") != "token "+m.Config.Token {
		m.writeError(w, http.StatusUnauthorized, "Bad credentials")
		return
	}

	for _, f := range m.failures {
		if f.method != "" && f.method != r.Method {
			continue
		}
		if !strings.Contains(r.URL.Path, f.contains) {
			continue
		}
		if f.body != "" && !strings.Contains(decodeBlobPayload(body), f.body) {
			continue
		}
		m.writeError(w, f.status, "injected failure")
		return
	}

	repoPrefix := "/repos/" + m.Config.Owner + "/" + m.Config.Repo
	path := r.URL.Path
	switch {
	case strings.HasPrefix(path, repoPrefix+"/"):
		m.handleRepo(w, r, strings.TrimPrefix(path, repoPrefix), body)
	case path == "/rate_limit":
		m.writeJSON(w, r, http.StatusOK, map[string]any{
			"resources": map[string]any{
				"core": map[string]any{"limit": m.Config.RateLimit, "remaining": m.remaining, "reset": m.clock.Add(time.Hour).Unix()},
			},
		})
	case path == "/user/starred/"+m.Config.Owner+"/"+m.Config.Repo:
		m.handleToggle(w, r, &m.starred)
	case strings.HasPrefix(path, "/user/following/"):
		login := strings.TrimPrefix(path, "/user/following/")
		on := m.following[login]
		m.handleToggle(w, r, &on)
		m.following[login] = on
	case path == "/user/emails":
		emails := make([]*github.UserEmail, 0, len(m.Config.Emails))
		for i, e := range m.Config.Emails {
			emails = append(emails, &github.UserEmail{Email: github.String(e), Primary: github.Bool(i == 0), Verified: github.Bool(true)})
		}
		m.writeJSON(w, r, http.StatusOK, emails)
	case path == "/user":
		m.writeJSON(w, r, http.StatusOK, &github.User{Login: github.String("octocat")})
	case strings.HasPrefix(path, "/users/"):
		login := strings.TrimSuffix(strings.TrimPrefix(path, "/users/"), "/repos")
		if strings.HasSuffix(path, "/repos") {
			m.writeJSON(w, r, http.StatusOK, []*github.Repository{{Name: github.String(m.Config.Repo), Owner: &github.User{Login: github.String(login)}}})
			return
		}
		m.writeJSON(w, r, http.StatusOK, &github.User{Login: github.String(login)})
	default:
		m.writeError(w, http.StatusNotFound, "Not Found")
	}
}

func (m *MockRemote) handleToggle(w http.ResponseWriter, r *http.Request, state *bool) {
	switch r.Method {
	case http.MethodGet:
		if *state {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		m.writeError(w, http.StatusNotFound, "Not Found")
	case http.MethodPut:
		*state = true
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		*state = false
		w.WriteHeader(http.StatusNoContent)
	default:
		m.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (m *MockRemote) handleRepo(w http.ResponseWriter, r *http.Request, path string, body []byte) {
	switch {
	case path == "/git/refs" && r.Method == http.MethodPost:
		m.createRef(w, r, body)
	case path == "/git/refs/heads" && r.Method == http.MethodGet:
		m.listRefs(w, r)
	case strings.HasPrefix(path, "/git/refs/"):
		m.handleRef(w, r, "refs/"+strings.TrimPrefix(path, "/git/refs/"), body)
	case path == "/git/blobs" && r.Method == http.MethodPost:
		m.createBlob(w, r, body)
	case strings.HasPrefix(path, "/git/blobs/") && r.Method == http.MethodGet:
		m.getBlob(w, r, strings.TrimPrefix(path, "/git/blobs/"))
	case path == "/git/trees" && r.Method == http.MethodPost:
		m.createTree(w, r, body)
	case strings.HasPrefix(path, "/git/trees/") && r.Method == http.MethodGet:
		m.getTree(w, r, strings.TrimPrefix(path, "/git/trees/"))
	case path == "/git/commits" && r.Method == http.MethodPost:
		m.createCommit(w, r, body)
	case strings.HasPrefix(path, "/git/commits/") && r.Method == http.MethodGet:
		m.getCommit(w, r, strings.TrimPrefix(path, "/git/commits/"))
	case path == "/commits" && r.Method == http.MethodGet:
		m.listCommits(w, r)
	case strings.HasPrefix(path, "/contents/"):
		m.handleContents(w, r, strings.TrimPrefix(path, "/contents/"), body)
	case strings.HasPrefix(path, "/compare/") && r.Method == http.MethodGet:
		m.compare(w, r, strings.TrimPrefix(path, "/compare/"))
	case path == "/pulls" && r.Method == http.MethodGet:
		m.listPulls(w, r)
	case strings.HasPrefix(path, "/collaborators/") && r.Method == http.MethodGet:
		if contains(m.Config.Collaborators, strings.TrimPrefix(path, "/collaborators/")) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		m.writeError(w, http.StatusNotFound, "Not Found")
	default:
		m.writeError(w, http.StatusNotFound, fmt.Sprintf("Unhandled path: %s (method: %s)", path, r.Method))
	}
}

// Refs

func (m *MockRemote) refJSON(ref *plumbing.Reference) *github.Reference {
	return &github.Reference{
		Ref: github.String(ref.Name().String()),
		Object: &github.GitObject{
			Type: github.String("commit"),
			SHA:  github.String(ref.Hash().String()),
		},
	}
}

func (m *MockRemote) listRefs(w http.ResponseWriter, r *http.Request) {
	iter, err := m.storage.IterReferences()
	if err != nil {
		m.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	var refs []*plumbing.Reference
	_ = iter.ForEach(func(ref *plumbing.Reference) error {
		if ref.Name().IsBranch() {
			refs = append(refs, ref)
		}
		return nil
	})
	sort.Slice(refs, func(i, j int) bool { return refs[i].Name() < refs[j].Name() })

	out := make([]*github.Reference, 0, len(refs))
	for _, ref := range refs {
		out = append(out, m.refJSON(ref))
	}
	m.writeJSON(w, r, http.StatusOK, out)
}

func (m *MockRemote) createRef(w http.ResponseWriter, r *http.Request, body []byte) {
	var req struct {
		Ref string `json:"ref"`
		SHA string `json:"sha"`
	}
	if err := json.Unmarshal(body, &req); err != nil || !strings.HasPrefix(req.Ref, "refs/") {
		m.writeError(w, http.StatusUnprocessableEntity, "Reference name is invalid")
		return
	}
	name := plumbing.ReferenceName(req.Ref)
	if _, err := m.storage.Reference(name); err == nil {
		m.writeError(w, http.StatusUnprocessableEntity, "Reference already exists")
		return
	}
	if _, err := object.GetCommit(m.storage, plumbing.NewHash(req.SHA)); err != nil {
		m.writeError(w, http.StatusUnprocessableEntity, "Object does not exist")
		return
	}
	ref := plumbing.NewHashReference(name, plumbing.NewHash(req.SHA))
	if err := m.storage.SetReference(ref); err != nil {
		m.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	m.writeJSON(w, r, http.StatusCreated, m.refJSON(ref))
}

func (m *MockRemote) handleRef(w http.ResponseWriter, r *http.Request, name string, body []byte) {
	refName := plumbing.ReferenceName(name)
	current, err := m.storage.Reference(refName)

	switch r.Method {
	case http.MethodGet:
		if err != nil {
			m.writeError(w, http.StatusNotFound, "Not Found")
			return
		}
		m.writeJSON(w, r, http.StatusOK, m.refJSON(current))
	case http.MethodDelete:
		if err != nil {
			m.writeError(w, http.StatusUnprocessableEntity, "Reference does not exist")
			return
		}
		_ = m.storage.RemoveReference(refName)
		w.WriteHeader(http.StatusNoContent)
	case http.MethodPatch, http.MethodPost:
		if err != nil {
			m.writeError(w, http.StatusUnprocessableEntity, "Reference does not exist")
			return
		}
		var req struct {
			SHA   string `json:"sha"`
			Force bool   `json:"force"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			m.writeError(w, http.StatusBadRequest, "Problems parsing JSON")
			return
		}
		next, err := object.GetCommit(m.storage, plumbing.NewHash(req.SHA))
		if err != nil {
			m.writeError(w, http.StatusUnprocessableEntity, "Object does not exist")
			return
		}
		if !req.Force && next.Hash != current.Hash() {
			prev, err := object.GetCommit(m.storage, current.Hash())
			if err != nil {
				m.writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			ok, err := prev.IsAncestor(next)
			if err != nil || !ok {
				m.writeError(w, http.StatusUnprocessableEntity, "Update is not a fast forward")
				return
			}
		}
		ref := plumbing.NewHashReference(refName, next.Hash)
		if err := m.storage.SetReference(ref); err != nil {
			m.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		m.writeJSON(w, r, http.StatusOK, m.refJSON(ref))
	default:
		m.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// Blobs

func decodeBlobPayload(body []byte) string {
	var req struct {
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return ""
	}
	if req.Encoding == "base64" {
		data, err := base64.StdEncoding.DecodeString(req.Content)
		if err != nil {
			return ""
		}
		return string(data)
	}
	return req.Content
}

func (m *MockRemote) storeBlob(content []byte) (plumbing.Hash, error) {
	obj := m.storage.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	w, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if _, err := w.Write(content); err != nil {
		return plumbing.ZeroHash, err
	}
	if err := w.Close(); err != nil {
		return plumbing.ZeroHash, err
	}
	return m.storage.SetEncodedObject(obj)
}

func (m *MockRemote) readBlob(h plumbing.Hash) ([]byte, error) {
	blob, err := object.GetBlob(m.storage, h)
	if err != nil {
		return nil, err
	}
	rd, err := blob.Reader()
	if err != nil {
		return nil, err
	}
	defer rd.Close()
	return io.ReadAll(rd)
}

func (m *MockRemote) createBlob(w http.ResponseWriter, r *http.Request, body []byte) {
	var req struct {
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		m.writeError(w, http.StatusBadRequest, "Problems parsing JSON")
		return
	}
	content := []byte(req.Content)
	switch req.Encoding {
	case "base64":
		data, err := base64.StdEncoding.DecodeString(req.Content)
		if err != nil {
			m.writeError(w, http.StatusUnprocessableEntity, "Invalid base64 content")
			return
		}
		content = data
	case "utf-8", "":
	default:
		m.writeError(w, http.StatusUnprocessableEntity, "Invalid encoding")
		return
	}
	h, err := m.storeBlob(content)
	if err != nil {
		m.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	m.writeJSON(w, r, http.StatusCreated, &github.Blob{SHA: github.String(h.String())})
}

func (m *MockRemote) getBlob(w http.ResponseWriter, r *http.Request, sha string) {
	content, err := m.readBlob(plumbing.NewHash(sha))
	if err != nil {
		m.writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	if strings.Contains(r.Header.Get("Accept"), "raw") {
		m.writeBody(w, r, http.StatusOK, "application/vnd.github.v3.raw", content)
		return
	}
	m.writeJSON(w, r, http.StatusOK, &github.Blob{
		SHA:      github.String(sha),
		Content:  github.String(base64.StdEncoding.EncodeToString(content)),
		Encoding: github.String("base64"),
		Size:     github.Int(len(content)),
	})
}

// Trees

func treeSortKey(e object.TreeEntry) string {
	if e.Mode == filemode.Dir {
		return e.Name + "/"
	}
	return e.Name
}

// buildTree writes the tree (and subtrees) holding files, keyed by full path
func (m *MockRemote) buildTree(files map[string]fileEntry) (plumbing.Hash, error) {
	var entries []object.TreeEntry
	dirs := make(map[string]map[string]fileEntry)
	for path, f := range files {
		if i := strings.IndexByte(path, '/'); i >= 0 {
			dir := path[:i]
			if dirs[dir] == nil {
				dirs[dir] = make(map[string]fileEntry)
			}
			dirs[dir][path[i+1:]] = f
			continue
		}
		entries = append(entries, object.TreeEntry{Name: path, Mode: f.mode, Hash: f.hash})
	}
	for dir, children := range dirs {
		h, err := m.buildTree(children)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		entries = append(entries, object.TreeEntry{Name: dir, Mode: filemode.Dir, Hash: h})
	}
	sort.Slice(entries, func(i, j int) bool { return treeSortKey(entries[i]) < treeSortKey(entries[j]) })

	obj := m.storage.NewEncodedObject()
	if err := (&object.Tree{Entries: entries}).Encode(obj); err != nil {
		return plumbing.ZeroHash, err
	}
	return m.storage.SetEncodedObject(obj)
}

// flatten lists every non-directory entry below tree by full path
func (m *MockRemote) flatten(tree plumbing.Hash) (map[string]fileEntry, error) {
	t, err := object.GetTree(m.storage, tree)
	if err != nil {
		return nil, err
	}
	walker := object.NewTreeWalker(t, true, nil)
	defer walker.Close()

	files := make(map[string]fileEntry)
	for {
		name, entry, err := walker.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if entry.Mode == filemode.Dir {
			continue
		}
		files[name] = fileEntry{mode: entry.Mode, hash: entry.Hash}
	}
	return files, nil
}

// resolveTree accepts a branch name, commit hash or tree hash
func (m *MockRemote) resolveTree(treeish string) (plumbing.Hash, error) {
	if ref, err := m.storage.Reference(plumbing.NewBranchReferenceName(treeish)); err == nil {
		c, err := object.GetCommit(m.storage, ref.Hash())
		if err != nil {
			return plumbing.ZeroHash, err
		}
		return c.TreeHash, nil
	}
	if !plumbing.IsHash(treeish) {
		return plumbing.ZeroHash, plumbing.ErrObjectNotFound
	}
	h := plumbing.NewHash(treeish)
	obj, err := m.storage.EncodedObject(plumbing.AnyObject, h)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	switch obj.Type() {
	case plumbing.CommitObject:
		c, err := object.DecodeCommit(m.storage, obj)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		return c.TreeHash, nil
	case plumbing.TreeObject:
		return h, nil
	default:
		return plumbing.ZeroHash, plumbing.ErrObjectNotFound
	}
}

func modeString(mode filemode.FileMode) string {
	return strings.TrimPrefix(mode.String(), "0")
}

func (m *MockRemote) treeJSON(h plumbing.Hash, recursive bool) (*github.Tree, error) {
	t, err := object.GetTree(m.storage, h)
	if err != nil {
		return nil, err
	}
	out := &github.Tree{SHA: github.String(h.String()), Truncated: github.Bool(false)}

	add := func(path string, e object.TreeEntry) {
		entry := &github.TreeEntry{
			Path: github.String(path),
			Mode: github.String(modeString(e.Mode)),
			SHA:  github.String(e.Hash.String()),
			Type: github.String("blob"),
		}
		if e.Mode == filemode.Dir {
			entry.Type = github.String("tree")
		} else if obj, err := m.storage.EncodedObject(plumbing.BlobObject, e.Hash); err == nil {
			entry.Size = github.Int(int(obj.Size()))
		}
		out.Entries = append(out.Entries, entry)
	}

	if !recursive {
		for _, e := range t.Entries {
			add(e.Name, e)
		}
		return out, nil
	}

	walker := object.NewTreeWalker(t, true, nil)
	defer walker.Close()
	for {
		name, e, err := walker.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		add(name, e)
	}
	if m.Config.TruncateTrees && len(out.Entries) > 1 {
		out.Entries = out.Entries[:1]
		out.Truncated = github.Bool(true)
	}
	return out, nil
}

func (m *MockRemote) getTree(w http.ResponseWriter, r *http.Request, treeish string) {
	h, err := m.resolveTree(treeish)
	if err != nil {
		m.writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	recursive := r.URL.Query().Get("recursive") != ""
	tree, err := m.treeJSON(h, recursive)
	if err != nil {
		m.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	m.writeJSON(w, r, http.StatusOK, tree)
}

func (m *MockRemote) createTree(w http.ResponseWriter, r *http.Request, body []byte) {
	var req struct {
		BaseTree string `json:"base_tree"`
		Tree     []struct {
			Path    string  `json:"path"`
			Mode    string  `json:"mode"`
			Type    string  `json:"type"`
			SHA     *string `json:"sha"`
			Content *string `json:"content"`
		} `json:"tree"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		m.writeError(w, http.StatusBadRequest, "Problems parsing JSON")
		return
	}

	files := make(map[string]fileEntry)
	if req.BaseTree != "" {
		base, err := m.resolveTree(req.BaseTree)
		if err != nil {
			m.writeError(w, http.StatusUnprocessableEntity, "base_tree is not a valid tree oid")
			return
		}
		if files, err = m.flatten(base); err != nil {
			m.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	for _, e := range req.Tree {
		if e.SHA == nil && e.Content == nil {
			if req.BaseTree == "" && e.Type == "tree" {
				// recomputed from the blob entries below it
				continue
			}
			delete(files, e.Path)
			continue
		}
		if e.Type == "tree" {
			if *e.SHA == "" {
				continue
			}
			sub, err := m.flatten(plumbing.NewHash(*e.SHA))
			if err != nil {
				m.writeError(w, http.StatusUnprocessableEntity, "tree.sha "+*e.SHA+" is not a valid tree")
				return
			}
			for p, f := range sub {
				files[e.Path+"/"+p] = f
			}
			continue
		}

		mode, err := filemode.New(e.Mode)
		if err != nil {
			m.writeError(w, http.StatusUnprocessableEntity, "tree.mode is invalid")
			return
		}
		var h plumbing.Hash
		if e.Content != nil {
			if h, err = m.storeBlob([]byte(*e.Content)); err != nil {
				m.writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
		} else {
			h = plumbing.NewHash(*e.SHA)
			if _, err := m.storage.EncodedObject(plumbing.BlobObject, h); err != nil {
				m.writeError(w, http.StatusUnprocessableEntity, "tree.sha "+*e.SHA+" is not a valid blob")
				return
			}
		}
		files[e.Path] = fileEntry{mode: mode, hash: h}
	}

	h, err := m.buildTree(files)
	if err != nil {
		m.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	tree, err := m.treeJSON(h, false)
	if err != nil {
		m.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	m.writeJSON(w, r, http.StatusCreated, tree)
}

// Commits

func (m *MockRemote) storeCommit(message string, tree plumbing.Hash, parents []plumbing.Hash, author *object.Signature) (plumbing.Hash, error) {
	m.clock = m.clock.Add(time.Second)
	sig := object.Signature{Name: "Mock Remote", Email: "mock@example.com", When: m.clock}
	if author != nil {
		sig.Name, sig.Email = author.Name, author.Email
	}
	c := &object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      message,
		TreeHash:     tree,
		ParentHashes: parents,
	}
	obj := m.storage.NewEncodedObject()
	if err := c.Encode(obj); err != nil {
		return plumbing.ZeroHash, err
	}
	return m.storage.SetEncodedObject(obj)
}

func commitAuthorJSON(s object.Signature) *github.CommitAuthor {
	return &github.CommitAuthor{
		Name:  github.String(s.Name),
		Email: github.String(s.Email),
		Date:  &github.Timestamp{Time: s.When},
	}
}

func (m *MockRemote) commitJSON(c *object.Commit) *github.Commit {
	out := &github.Commit{
		SHA:       github.String(c.Hash.String()),
		Message:   github.String(c.Message),
		Tree:      &github.Tree{SHA: github.String(c.TreeHash.String())},
		Author:    commitAuthorJSON(c.Author),
		Committer: commitAuthorJSON(c.Committer),
	}
	for _, p := range c.ParentHashes {
		out.Parents = append(out.Parents, &github.Commit{SHA: github.String(p.String())})
	}
	return out
}

func (m *MockRemote) createCommit(w http.ResponseWriter, r *http.Request, body []byte) {
	var req struct {
		Message string               `json:"message"`
		Tree    string               `json:"tree"`
		Parents []string             `json:"parents"`
		Author  *github.CommitAuthor `json:"author"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		m.writeError(w, http.StatusBadRequest, "Problems parsing JSON")
		return
	}
	tree := plumbing.NewHash(req.Tree)
	if _, err := m.storage.EncodedObject(plumbing.TreeObject, tree); err != nil {
		m.writeError(w, http.StatusUnprocessableEntity, "Tree SHA does not exist")
		return
	}
	var parents []plumbing.Hash
	for _, p := range req.Parents {
		h := plumbing.NewHash(p)
		if _, err := object.GetCommit(m.storage, h); err != nil {
			m.writeError(w, http.StatusUnprocessableEntity, "Parent SHA does not exist or is not a commit object")
			return
		}
		parents = append(parents, h)
	}
	var author *object.Signature
	if req.Author != nil {
		author = &object.Signature{Name: req.Author.GetName(), Email: req.Author.GetEmail()}
	}

	h, err := m.storeCommit(req.Message, tree, parents, author)
	if err != nil {
		m.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	c, err := object.GetCommit(m.storage, h)
	if err != nil {
		m.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	m.writeJSON(w, r, http.StatusCreated, m.commitJSON(c))
}

func (m *MockRemote) getCommit(w http.ResponseWriter, r *http.Request, sha string) {
	c, err := object.GetCommit(m.storage, plumbing.NewHash(sha))
	if err != nil {
		m.writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	m.writeJSON(w, r, http.StatusOK, m.commitJSON(c))
}

// listCommits walks first parents from ?sha= (default branch when absent)
func (m *MockRemote) listCommits(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start := q.Get("sha")
	if start == "" {
		start = m.Config.DefaultBranch
	}
	var head plumbing.Hash
	if ref, err := m.storage.Reference(plumbing.NewBranchReferenceName(start)); err == nil {
		head = ref.Hash()
	} else if plumbing.IsHash(start) {
		head = plumbing.NewHash(start)
	} else {
		m.writeError(w, http.StatusNotFound, "No commit found for SHA: "+start)
		return
	}

	var since, until time.Time
	if v := q.Get("since"); v != "" {
		since, _ = time.Parse(time.RFC3339, v)
	}
	if v := q.Get("until"); v != "" {
		until, _ = time.Parse(time.RFC3339, v)
	}
	path := q.Get("path")
	author := q.Get("author")

	out := []*github.RepositoryCommit{}
	for c, err := object.GetCommit(m.storage, head); err == nil; {
		if m.commitMatches(c, path, author, since, until) {
			rc := &github.RepositoryCommit{
				SHA:    github.String(c.Hash.String()),
				Commit: m.commitJSON(c),
			}
			for _, p := range c.ParentHashes {
				rc.Parents = append(rc.Parents, &github.Commit{SHA: github.String(p.String())})
			}
			out = append(out, rc)
		}
		if len(c.ParentHashes) == 0 {
			break
		}
		c, err = object.GetCommit(m.storage, c.ParentHashes[0])
	}
	m.writeJSON(w, r, http.StatusOK, out)
}

// resolveCommit accepts a branch name or a commit hash
func (m *MockRemote) resolveCommit(rev string) (*object.Commit, error) {
	if ref, err := m.storage.Reference(plumbing.NewBranchReferenceName(rev)); err == nil {
		return object.GetCommit(m.storage, ref.Hash())
	}
	return object.GetCommit(m.storage, plumbing.NewHash(rev))
}

// compare answers /compare/{base}...{head} with status and ahead/behind counts
func (m *MockRemote) compare(w http.ResponseWriter, r *http.Request, spec string) {
	baseRev, headRev, ok := strings.Cut(spec, "...")
	if !ok {
		m.writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	base, err := m.resolveCommit(baseRev)
	if err != nil {
		m.writeError(w, http.StatusNotFound, "No commit found for "+baseRev)
		return
	}
	head, err := m.resolveCommit(headRev)
	if err != nil {
		m.writeError(w, http.StatusNotFound, "No commit found for "+headRev)
		return
	}

	status := "diverged"
	var ahead, behind []*github.RepositoryCommit
	switch {
	case base.Hash == head.Hash:
		status = "identical"
	default:
		if isAnc, _ := base.IsAncestor(head); isAnc {
			status = "ahead"
			ahead = m.firstParentsUntil(head, base.Hash)
		} else if isAnc, _ := head.IsAncestor(base); isAnc {
			status = "behind"
			behind = m.firstParentsUntil(base, head.Hash)
		}
	}

	m.writeJSON(w, r, http.StatusOK, &github.CommitsComparison{
		Status:       github.String(status),
		AheadBy:      github.Int(len(ahead)),
		BehindBy:     github.Int(len(behind)),
		TotalCommits: github.Int(len(ahead)),
		Commits:      ahead,
	})
}

// firstParentsUntil lists commits from c back to, but excluding, stop (oldest first)
func (m *MockRemote) firstParentsUntil(c *object.Commit, stop plumbing.Hash) []*github.RepositoryCommit {
	var out []*github.RepositoryCommit
	for c != nil && c.Hash != stop {
		out = append([]*github.RepositoryCommit{{SHA: github.String(c.Hash.String()), Commit: m.commitJSON(c)}}, out...)
		if len(c.ParentHashes) == 0 {
			break
		}
		next, err := object.GetCommit(m.storage, c.ParentHashes[0])
		if err != nil {
			break
		}
		c = next
	}
	return out
}

func (m *MockRemote) listPulls(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	if state == "" {
		state = "open"
	}
	out := []*github.PullRequest{}
	for _, pr := range m.Config.PullRequests {
		if state == "all" || pr.GetState() == state {
			out = append(out, pr)
		}
	}
	m.writeJSON(w, r, http.StatusOK, out)
}

func (m *MockRemote) commitMatches(c *object.Commit, path, author string, since, until time.Time) bool {
	if author != "" && c.Author.Name != author && c.Author.Email != author {
		return false
	}
	if !since.IsZero() && c.Committer.When.Before(since) {
		return false
	}
	if !until.IsZero() && c.Committer.When.After(until) {
		return false
	}
	if path == "" {
		return true
	}
	files, err := m.flatten(c.TreeHash)
	if err != nil {
		return false
	}
	if len(c.ParentHashes) == 0 {
		_, ok := files[path]
		return ok
	}
	parent, err := object.GetCommit(m.storage, c.ParentHashes[0])
	if err != nil {
		return false
	}
	parentFiles, err := m.flatten(parent.TreeHash)
	if err != nil {
		return false
	}
	return files[path] != parentFiles[path]
}

// Contents

func (m *MockRemote) handleContents(w http.ResponseWriter, r *http.Request, path string, body []byte) {
	switch r.Method {
	case http.MethodGet:
		ref := r.URL.Query().Get("ref")
		if ref == "" {
			ref = m.Config.DefaultBranch
		}
		tree, err := m.resolveTree(ref)
		if err != nil {
			m.writeError(w, http.StatusNotFound, "No commit found for the ref "+ref)
			return
		}
		files, err := m.flatten(tree)
		if err != nil {
			m.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		f, ok := files[path]
		if !ok {
			m.writeError(w, http.StatusNotFound, "Not Found")
			return
		}
		content, err := m.readBlob(f.hash)
		if err != nil {
			m.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		name := path
		if i := strings.LastIndexByte(path, '/'); i >= 0 {
			name = path[i+1:]
		}
		m.writeJSON(w, r, http.StatusOK, &github.RepositoryContent{
			Type:     github.String("file"),
			Name:     github.String(name),
			Path:     github.String(path),
			SHA:      github.String(f.hash.String()),
			Size:     github.Int(len(content)),
			Encoding: github.String("base64"),
			Content:  github.String(base64.StdEncoding.EncodeToString(content)),
		})
	case http.MethodDelete:
		m.deleteContents(w, r, path, body)
	default:
		m.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (m *MockRemote) deleteContents(w http.ResponseWriter, r *http.Request, path string, body []byte) {
	var req struct {
		Message string `json:"message"`
		SHA     string `json:"sha"`
		Branch  string `json:"branch"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		m.writeError(w, http.StatusBadRequest, "Problems parsing JSON")
		return
	}
	branch := req.Branch
	if branch == "" {
		branch = m.Config.DefaultBranch
	}
	refName := plumbing.NewBranchReferenceName(branch)
	ref, err := m.storage.Reference(refName)
	if err != nil {
		m.writeError(w, http.StatusNotFound, "Branch not found")
		return
	}
	head, err := object.GetCommit(m.storage, ref.Hash())
	if err != nil {
		m.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	files, err := m.flatten(head.TreeHash)
	if err != nil {
		m.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	f, ok := files[path]
	if !ok {
		m.writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	if f.hash.String() != req.SHA {
		m.writeError(w, http.StatusConflict, fmt.Sprintf("%s does not match %s", path, req.SHA))
		return
	}
	delete(files, path)

	tree, err := m.buildTree(files)
	if err != nil {
		m.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h, err := m.storeCommit(req.Message, tree, []plumbing.Hash{head.Hash}, nil)
	if err != nil {
		m.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := m.storage.SetReference(plumbing.NewHashReference(refName, h)); err != nil {
		m.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	c, _ := object.GetCommit(m.storage, h)
	m.writeJSON(w, r, http.StatusOK, &github.RepositoryContentResponse{Commit: *m.commitJSON(c)})
}

// Responses

func (m *MockRemote) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		m.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	m.writeBody(w, r, status, "application/json; charset=utf-8", data)
}

// writeBody sends an ETag on successful reads and answers 304 when the
// client already holds it
func (m *MockRemote) writeBody(w http.ResponseWriter, r *http.Request, status int, contentType string, data []byte) {
	if r.Method == http.MethodGet && status == http.StatusOK && !m.Config.DisableETags {
		sum := sha256.Sum256(data)
		etag := `"` + hex.EncodeToString(sum[:16]) + `"`
		w.Header().Set("ETag", etag)
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func (m *MockRemote) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
