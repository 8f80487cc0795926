package client

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/google/go-github/v62/github"
	"github.com/stretchr/testify/require"

	ghErrors "ghrest.dev/ghrest/internal/errors"
	"ghrest.dev/ghrest/internal/pipeline"
	"ghrest.dev/ghrest/internal/transport"
	"ghrest.dev/ghrest/testhelpers"
)

func newTestClient(t *testing.T, config *testhelpers.MockRemoteConfig, opts Options) (*Client, *testhelpers.MockRemote) {
	t.Helper()
	if config == nil {
		config = testhelpers.NewMockRemoteConfig()
	}
	config.Token = "test-token"
	remote := testhelpers.NewMockRemote(t, config)
	c, err := New(transport.Config{BaseURL: remote.URL(), Token: "test-token", UseETags: true}, opts)
	require.NoError(t, err)
	return c, remote
}

func TestCurrentUser(t *testing.T) {
	t.Run("requires credentials", func(t *testing.T) {
		c, err := New(transport.Config{BaseURL: "http://127.0.0.1:1"}, Options{})
		require.NoError(t, err)

		_, err = c.CurrentUser()
		require.ErrorIs(t, err, ghErrors.ErrPreconditionMissing)
	})

	t.Run("basic auth counts as credentials", func(t *testing.T) {
		c, err := New(transport.Config{BaseURL: "http://127.0.0.1:1", Username: "u", Password: "p"}, Options{})
		require.NoError(t, err)

		me, err := c.CurrentUser()
		require.NoError(t, err)
		require.Empty(t, me.Login())
	})

	t.Run("profile and follows", func(t *testing.T) {
		config := testhelpers.NewMockRemoteConfig()
		config.Following = []string{"ada"}
		c, _ := newTestClient(t, config, Options{})
		ctx := context.Background()

		me, err := c.CurrentUser()
		require.NoError(t, err)

		profile, err := me.Profile(ctx)
		require.NoError(t, err)
		require.Equal(t, "octocat", profile.GetLogin())

		ok, err := me.Follows(ctx, "ada")
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = me.Follows(ctx, "grace")
		require.NoError(t, err)
		require.False(t, ok)

		require.NoError(t, me.Follow(ctx, "grace"))
		ok, err = me.Follows(ctx, "grace")
		require.NoError(t, err)
		require.True(t, ok)

		require.NoError(t, me.Unfollow(ctx, "ada"))
		ok, err = me.Follows(ctx, "ada")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("emails", func(t *testing.T) {
		config := testhelpers.NewMockRemoteConfig()
		config.Emails = []string{"octo@example.com", "cat@example.com"}
		c, _ := newTestClient(t, config, Options{})

		me, err := c.CurrentUser()
		require.NoError(t, err)
		emails, err := me.Emails(context.Background())
		require.NoError(t, err)
		require.Len(t, emails, 2)
		require.True(t, emails[0].GetPrimary())
		require.Equal(t, "cat@example.com", emails[1].GetEmail())
	})
}

func TestRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("collaborators", func(t *testing.T) {
		config := testhelpers.NewMockRemoteConfig()
		config.Collaborators = []string{"ada"}
		c, remote := newTestClient(t, config, Options{})
		repo := c.Repo(remote.Config.Owner, remote.Config.Repo)

		ok, err := repo.IsCollaborator(ctx, "ada")
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = repo.IsCollaborator(ctx, "mallory")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("star and unstar", func(t *testing.T) {
		c, remote := newTestClient(t, nil, Options{})
		repo := c.Repo(remote.Config.Owner, remote.Config.Repo)

		starred, err := repo.IsStarred(ctx)
		require.NoError(t, err)
		require.False(t, starred)

		require.NoError(t, repo.Star(ctx))
		starred, err = repo.IsStarred(ctx)
		require.NoError(t, err)
		require.True(t, starred)

		require.NoError(t, repo.Unstar(ctx))
		starred, err = repo.IsStarred(ctx)
		require.NoError(t, err)
		require.False(t, starred)
	})

	t.Run("contents", func(t *testing.T) {
		c, remote := newTestClient(t, nil, Options{})
		remote.Seed(t, "main", map[string]string{"docs/readme.md": "# hi"})
		repo := c.Repo(remote.Config.Owner, remote.Config.Repo)

		content, err := repo.Contents(ctx, "main", "docs/readme.md")
		require.NoError(t, err)
		require.Equal(t, "readme.md", content.GetName())
		decoded, err := base64.StdEncoding.DecodeString(*content.Content)
		require.NoError(t, err)
		require.Equal(t, "# hi", string(decoded))
	})

	t.Run("compare", func(t *testing.T) {
		c, remote := newTestClient(t, nil, Options{})
		remote.Seed(t, "main", map[string]string{"a.txt": "a"})
		repo := c.Repo(remote.Config.Owner, remote.Config.Repo)

		_, err := repo.Branch("main").CreateBranch(ctx, "feature")
		require.NoError(t, err)
		_, err = repo.Branch("feature").Write(ctx, "b.txt", []byte("b"), "", false)
		require.NoError(t, err)

		cmp, err := repo.Compare(ctx, "main", "feature")
		require.NoError(t, err)
		require.Equal(t, "ahead", cmp.GetStatus())
		require.Equal(t, 1, cmp.GetAheadBy())
		require.Len(t, cmp.Commits, 1)
		require.Equal(t, "Changed b.txt", cmp.Commits[0].GetCommit().GetMessage())

		cmp, err = repo.Compare(ctx, "feature", "main")
		require.NoError(t, err)
		require.Equal(t, "behind", cmp.GetStatus())
		require.Equal(t, 1, cmp.GetBehindBy())
	})

	t.Run("list pulls by state", func(t *testing.T) {
		config := testhelpers.NewMockRemoteConfig()
		config.PullRequests = []*github.PullRequest{
			{Number: github.Int(1), State: github.String("open")},
			{Number: github.Int(2), State: github.String("closed")},
		}
		c, remote := newTestClient(t, config, Options{})
		repo := c.Repo(remote.Config.Owner, remote.Config.Repo)

		pulls, err := repo.ListPulls(ctx, "")
		require.NoError(t, err)
		require.Len(t, pulls, 1)
		require.Equal(t, 1, pulls[0].GetNumber())

		pulls, err = repo.ListPulls(ctx, "all")
		require.NoError(t, err)
		require.Len(t, pulls, 2)
		req, ok := remote.LastRequest("GET", "/pulls")
		require.True(t, ok)
		require.Equal(t, "state=all", req.Query)
	})

	t.Run("branch pipeline uses client options", func(t *testing.T) {
		var stages []pipeline.Stage
		c, remote := newTestClient(t, nil, Options{
			AuthorName:    "Ada",
			AuthorEmail:   "ada@example.com",
			StageObserver: func(_ string, s pipeline.Stage) { stages = append(stages, s) },
		})
		remote.Seed(t, "main", map[string]string{"a.txt": "a"})
		repo := c.Repo(remote.Config.Owner, remote.Config.Repo)

		ref, err := repo.Branch("main").Write(ctx, "b.txt", []byte("b"), "", false)
		require.NoError(t, err)

		commit := remote.Commit(t, ref.SHA)
		require.Equal(t, "Ada", commit.Author.Name)
		require.Equal(t, "ada@example.com", commit.Author.Email)
		require.Equal(t, pipeline.StageDone, stages[len(stages)-1])
	})
}

func TestUser(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t, nil, Options{})
	u := c.User("grace")
	require.Equal(t, "grace", u.Login())

	profile, err := u.Profile(ctx)
	require.NoError(t, err)
	require.Equal(t, "grace", profile.GetLogin())

	repos, err := u.Repos(ctx)
	require.NoError(t, err)
	require.Len(t, repos, 1)
}

func TestRateLimit(t *testing.T) {
	ctx := context.Background()
	c, remote := newTestClient(t, nil, Options{})

	var remaining []int
	c.OnRateLimit(func(ev transport.RateLimitEvent) {
		remaining = append(remaining, ev.Remaining)
	})

	rate, err := c.RateLimit(ctx)
	require.NoError(t, err)
	require.Equal(t, remote.Config.RateLimit, rate.Limit)

	_, err = c.RateLimit(ctx)
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	require.Equal(t, remaining[0]-1, remaining[1])
}

func TestAuthFailure(t *testing.T) {
	config := testhelpers.NewMockRemoteConfig()
	config.Token = "right"
	remote := testhelpers.NewMockRemote(t, config)

	c, err := New(transport.Config{BaseURL: remote.URL(), Token: "wrong"}, Options{})
	require.NoError(t, err)

	_, err = c.Repo("owner", "repo").ReadRef(context.Background(), "heads/main")
	require.Error(t, err)
	require.True(t, ghErrors.IsAuthFailure(err))
}

func TestClearCache(t *testing.T) {
	ctx := context.Background()
	c, remote := newTestClient(t, nil, Options{})
	remote.Seed(t, "main", map[string]string{"a.txt": "a"})
	repo := c.Repo(remote.Config.Owner, remote.Config.Repo)

	_, err := repo.ReadRef(ctx, "heads/main")
	require.NoError(t, err)
	require.Equal(t, 1, c.Transport().Cache().Len())

	c.ClearCache()
	require.Equal(t, 0, c.Transport().Cache().Len())

	_, err = repo.ReadRef(ctx, "heads/main")
	require.NoError(t, err)
	req, ok := remote.LastRequest("GET", "/git/refs/heads/main")
	require.True(t, ok)
	require.Empty(t, req.Header.Get("If-None-Match"))
}
