package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"ghrest.dev/ghrest/internal/cache"
	ghErrors "ghrest.dev/ghrest/internal/errors"
)

// recorder captures the requests a test server receives
type recorder struct {
	mu       sync.Mutex
	requests []*http.Request
	bodies   [][]byte
}

func (r *recorder) add(req *http.Request) {
	body, _ := io.ReadAll(req.Body)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req.Clone(context.Background()))
	r.bodies = append(r.bodies, body)
}

func (r *recorder) last() (*http.Request, []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.requests)
	return r.requests[n-1], r.bodies[n-1]
}

func newServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, *recorder) {
	t.Helper()
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.add(r)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func newTransport(t *testing.T, cfg Config) *Transport {
	t.Helper()
	tr, err := New(cfg, cache.New())
	require.NoError(t, err)
	return tr
}

func etagHandler(etag, body string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", etag)
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}
}

func TestConditionalRequests(t *testing.T) {
	ctx := context.Background()

	t.Run("second read is served from cache with identical bytes", func(t *testing.T) {
		srv, rec := newServer(t, etagHandler(`"abc"`, `{"sha":"1"}`))
		tr := newTransport(t, Config{BaseURL: srv.URL, UseETags: true})

		first, err := tr.Request(ctx, http.MethodGet, "/repos/o/r", nil, Options{})
		require.NoError(t, err)
		require.Equal(t, KindOK, first.Kind)
		req, _ := rec.last()
		require.Equal(t, NotModifiedSince, req.Header.Get("If-Modified-Since"))
		require.Empty(t, req.Header.Get("If-None-Match"))

		second, err := tr.Request(ctx, http.MethodGet, "/repos/o/r", nil, Options{})
		require.NoError(t, err)
		require.Equal(t, KindNotModified, second.Kind)
		require.Equal(t, first.Body, second.Body)
		req, _ = rec.last()
		require.Equal(t, `"abc"`, req.Header.Get("If-None-Match"))
		require.Empty(t, req.Header.Get("If-Modified-Since"))
	})

	t.Run("cached response keeps its content type", func(t *testing.T) {
		srv, _ := newServer(t, etagHandler(`"abc"`, `{"sha":"1"}`))
		tr := newTransport(t, Config{BaseURL: srv.URL, UseETags: true})

		_, err := tr.Request(ctx, http.MethodGet, "/x", nil, Options{Raw: true})
		require.NoError(t, err)

		second, err := tr.Request(ctx, http.MethodGet, "/x", nil, Options{Raw: true})
		require.NoError(t, err)
		require.Equal(t, KindNotModified, second.Kind)
		require.Equal(t, "application/json", second.Header.Get("Content-Type"))
		require.Equal(t, `"abc"`, second.Header.Get("ETag"))
	})

	t.Run("nothing is cached when etags are disabled", func(t *testing.T) {
		srv, rec := newServer(t, etagHandler(`"abc"`, `{}`))
		tr := newTransport(t, Config{BaseURL: srv.URL})

		for i := 0; i < 2; i++ {
			_, err := tr.Request(ctx, http.MethodGet, "/x", nil, Options{})
			require.NoError(t, err)
			req, _ := rec.last()
			require.Empty(t, req.Header.Get("If-None-Match"))
		}
		require.Equal(t, 0, tr.Cache().Len())
	})

	t.Run("responses without a validator are not cached", func(t *testing.T) {
		srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{}`)
		})
		tr := newTransport(t, Config{BaseURL: srv.URL, UseETags: true})

		_, err := tr.Request(ctx, http.MethodGet, "/x", nil, Options{})
		require.NoError(t, err)
		require.Equal(t, 0, tr.Cache().Len())
	})

	t.Run("writes are never conditional or cached", func(t *testing.T) {
		srv, rec := newServer(t, etagHandler(`"abc"`, `{}`))
		tr := newTransport(t, Config{BaseURL: srv.URL, UseETags: true})

		_, err := tr.Request(ctx, http.MethodGet, "/x", nil, Options{})
		require.NoError(t, err)

		_, err = tr.Request(ctx, http.MethodPost, "/x", map[string]string{"a": "b"}, Options{})
		require.NoError(t, err)
		req, _ := rec.last()
		require.Empty(t, req.Header.Get("If-None-Match"))
		require.Empty(t, req.Header.Get("If-Modified-Since"))
		require.Equal(t, 1, tr.Cache().Len())
	})

	t.Run("clear cache makes the next read unconditional", func(t *testing.T) {
		srv, rec := newServer(t, etagHandler(`"abc"`, `{}`))
		tr := newTransport(t, Config{BaseURL: srv.URL, UseETags: true})

		_, err := tr.Request(ctx, http.MethodGet, "/x", nil, Options{})
		require.NoError(t, err)
		tr.ClearCache()

		resp, err := tr.Request(ctx, http.MethodGet, "/x", nil, Options{})
		require.NoError(t, err)
		require.Equal(t, KindOK, resp.Kind)
		req, _ := rec.last()
		require.Empty(t, req.Header.Get("If-None-Match"))
		require.Equal(t, NotModifiedSince, req.Header.Get("If-Modified-Since"))
	})

	t.Run("not modified without a cache entry has an empty body", func(t *testing.T) {
		srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotModified)
		})
		tr := newTransport(t, Config{BaseURL: srv.URL, UseETags: true})

		resp, err := tr.Request(ctx, http.MethodGet, "/x", nil, Options{})
		require.NoError(t, err)
		require.Equal(t, KindNotModified, resp.Kind)
		require.Empty(t, resp.Body)
	})
}

func TestBooleanQueries(t *testing.T) {
	ctx := context.Background()
	status := map[string]int{"/yes": 204, "/no": 404, "/broken": 500, "/ok": 200}
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status[r.URL.Path])
	})
	tr := newTransport(t, Config{BaseURL: srv.URL})

	t.Run("true status", func(t *testing.T) {
		ok, err := tr.Bool(ctx, http.MethodGet, "/yes")
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("false status", func(t *testing.T) {
		ok, err := tr.Bool(ctx, http.MethodGet, "/no")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("other error status fails", func(t *testing.T) {
		_, err := tr.Bool(ctx, http.MethodGet, "/broken")
		require.Error(t, err)
		require.Equal(t, 500, ghErrors.StatusCode(err))
	})

	t.Run("other success status fails", func(t *testing.T) {
		_, err := tr.Bool(ctx, http.MethodGet, "/ok")
		require.Error(t, err)
	})

	t.Run("custom statuses", func(t *testing.T) {
		custom := newTransport(t, Config{BaseURL: srv.URL, TrueStatus: 200, FalseStatus: 500})
		ok, err := custom.Bool(ctx, http.MethodGet, "/ok")
		require.NoError(t, err)
		require.True(t, ok)
		ok, err = custom.Bool(ctx, http.MethodGet, "/broken")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("404 outside a boolean query is an error", func(t *testing.T) {
		_, err := tr.Request(ctx, http.MethodGet, "/no", nil, Options{})
		require.Error(t, err)
		require.True(t, errors.Is(err, ghErrors.ErrRemote))
	})
}

func TestErrorClassification(t *testing.T) {
	ctx := context.Background()
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/json":
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = io.WriteString(w, `{"message":"Validation Failed"}`)
		case "/text":
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusBadGateway)
			_, _ = io.WriteString(w, "upstream down")
		case "/empty":
			w.WriteHeader(http.StatusForbidden)
		case "/malformed":
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `{"message":`)
		}
	})
	tr := newTransport(t, Config{BaseURL: srv.URL})

	t.Run("json body is parsed", func(t *testing.T) {
		_, err := tr.Request(ctx, http.MethodGet, "/json", nil, Options{})
		var remote *ghErrors.RemoteError
		require.ErrorAs(t, err, &remote)
		require.Equal(t, 422, remote.Status)
		require.Equal(t, "Validation Failed", remote.Message())
		require.Equal(t, map[string]any{"message": "Validation Failed"}, remote.Body)
	})

	t.Run("non-json body is kept as text", func(t *testing.T) {
		_, err := tr.Request(ctx, http.MethodGet, "/text", nil, Options{})
		var remote *ghErrors.RemoteError
		require.ErrorAs(t, err, &remote)
		require.Equal(t, "upstream down", remote.Body)
		require.True(t, ghErrors.IsRetryable(err))
	})

	t.Run("empty body is the empty string", func(t *testing.T) {
		_, err := tr.Request(ctx, http.MethodGet, "/empty", nil, Options{})
		var remote *ghErrors.RemoteError
		require.ErrorAs(t, err, &remote)
		require.Equal(t, "", remote.Body)
	})

	t.Run("malformed json is a decode error", func(t *testing.T) {
		_, err := tr.Request(ctx, http.MethodGet, "/malformed", nil, Options{})
		require.ErrorIs(t, err, ghErrors.ErrDecode)
		require.Equal(t, 500, ghErrors.StatusCode(err))
	})
}

func TestRequestEncoding(t *testing.T) {
	ctx := context.Background()

	t.Run("patch degrades to post", func(t *testing.T) {
		srv, rec := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{}`)
		})
		tr := newTransport(t, Config{BaseURL: srv.URL, DegradePatch: true})

		_, err := tr.Request(ctx, http.MethodPatch, "/ref", map[string]string{"sha": "1"}, Options{})
		require.NoError(t, err)
		req, body := rec.last()
		require.Equal(t, http.MethodPost, req.Method)
		require.JSONEq(t, `{"sha":"1"}`, string(body))
		require.Equal(t, "application/json;charset=UTF-8", req.Header.Get("Content-Type"))
	})

	t.Run("patch is kept by default", func(t *testing.T) {
		srv, rec := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{}`)
		})
		tr := newTransport(t, Config{BaseURL: srv.URL})

		_, err := tr.Request(ctx, http.MethodPatch, "/ref", map[string]string{}, Options{})
		require.NoError(t, err)
		req, _ := rec.last()
		require.Equal(t, http.MethodPatch, req.Method)
	})

	t.Run("raw payload is sent verbatim", func(t *testing.T) {
		srv, rec := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
		})
		tr := newTransport(t, Config{BaseURL: srv.URL})

		_, err := tr.Request(ctx, http.MethodPost, "/markdown/raw", "# title", Options{Raw: true})
		require.NoError(t, err)
		_, body := rec.last()
		require.Equal(t, "# title", string(body))
	})

	t.Run("binary body is returned byte for byte", func(t *testing.T) {
		data := []byte{0x00, 0xff, 0xfe, 0x80, 0x7f}
		srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = w.Write(data)
		})
		tr := newTransport(t, Config{BaseURL: srv.URL})

		resp, err := tr.Request(ctx, http.MethodGet, "/blob", nil, Options{Binary: true})
		require.NoError(t, err)
		require.Equal(t, data, resp.Body)
	})

	t.Run("accept and user agent headers", func(t *testing.T) {
		srv, rec := newServer(t, func(w http.ResponseWriter, r *http.Request) {})
		tr := newTransport(t, Config{BaseURL: srv.URL, UserAgent: "tests"})

		_, err := tr.Request(ctx, http.MethodGet, "/x", nil, Options{})
		require.NoError(t, err)
		req, _ := rec.last()
		require.Equal(t, AcceptRaw, req.Header.Get("Accept"))
		require.Equal(t, "tests", req.Header.Get("User-Agent"))
	})

	t.Run("absolute urls bypass the base url", func(t *testing.T) {
		srv, rec := newServer(t, func(w http.ResponseWriter, r *http.Request) {})
		tr := newTransport(t, Config{BaseURL: "http://127.0.0.1:1"})

		_, err := tr.Request(ctx, http.MethodGet, srv.URL+"/abs", nil, Options{})
		require.NoError(t, err)
		req, _ := rec.last()
		require.Equal(t, "/abs", req.URL.Path)
	})
}

func TestAuthentication(t *testing.T) {
	ctx := context.Background()
	srv, rec := newServer(t, func(w http.ResponseWriter, r *http.Request) {})

	t.Run("token", func(t *testing.T) {
		tr := newTransport(t, Config{BaseURL: srv.URL, Token: "s3cret", Username: "u", Password: "p"})
		_, err := tr.Request(ctx, http.MethodGet, "/x", nil, Options{})
		require.NoError(t, err)
		req, _ := rec.last()
		require.Equal(t, "token s3cret", req.Header.Get("Authorization"))
	})

	t.Run("basic", func(t *testing.T) {
		tr := newTransport(t, Config{BaseURL: srv.URL, Username: "u", Password: "p"})
		_, err := tr.Request(ctx, http.MethodGet, "/x", nil, Options{})
		require.NoError(t, err)
		req, _ := rec.last()
		user, pass, ok := req.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "u", user)
		require.Equal(t, "p", pass)
	})

	t.Run("anonymous", func(t *testing.T) {
		tr := newTransport(t, Config{BaseURL: srv.URL})
		require.False(t, tr.Config().HasCredentials())
		_, err := tr.Request(ctx, http.MethodGet, "/x", nil, Options{})
		require.NoError(t, err)
		req, _ := rec.last()
		require.Empty(t, req.Header.Get("Authorization"))
	})
}

func TestRateLimitObservers(t *testing.T) {
	ctx := context.Background()

	t.Run("every observer sees every request", func(t *testing.T) {
		srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-RateLimit-Remaining", "42")
			w.Header().Set("X-RateLimit-Limit", "60")
			w.WriteHeader(http.StatusNotFound)
		})
		tr := newTransport(t, Config{BaseURL: srv.URL})

		var first, second []RateLimitEvent
		tr.OnRateLimit(func(ev RateLimitEvent) { first = append(first, ev) })
		tr.OnRateLimit(func(ev RateLimitEvent) { second = append(second, ev) })

		payload := map[string]string{"k": "v"}
		_, err := tr.Request(ctx, http.MethodPost, "/x", payload, Options{})
		require.Error(t, err)

		require.Len(t, first, 1)
		require.Len(t, second, 1)
		require.Equal(t, 42, first[0].Remaining)
		require.Equal(t, 60, first[0].Limit)
		require.Equal(t, http.MethodPost, first[0].Method)
		require.Equal(t, "/x", first[0].Path)
		require.Equal(t, payload, first[0].Payload)
	})

	t.Run("missing headers report -1", func(t *testing.T) {
		srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {})
		tr := newTransport(t, Config{BaseURL: srv.URL})

		var got RateLimitEvent
		tr.OnRateLimit(func(ev RateLimitEvent) { got = ev })
		_, err := tr.Request(ctx, http.MethodGet, "/x", nil, Options{})
		require.NoError(t, err)
		require.Equal(t, -1, got.Remaining)
		require.Equal(t, -1, got.Limit)
	})

	t.Run("network failure still notifies", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := srv.URL
		srv.Close()
		tr := newTransport(t, Config{BaseURL: url})

		calls := 0
		tr.OnRateLimit(func(ev RateLimitEvent) {
			calls++
			require.Equal(t, -1, ev.Remaining)
		})
		_, err := tr.Request(ctx, http.MethodGet, "/x", nil, Options{})
		require.Error(t, err)
		require.Equal(t, 1, calls)
	})
}

type recordingProgress struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingProgress) RequestStarted(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, "start "+path)
}

func (p *recordingProgress) RequestFinished(path string, status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, "finish "+path)
}

func TestProgress(t *testing.T) {
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {})
	progress := &recordingProgress{}
	tr := newTransport(t, Config{BaseURL: srv.URL, Progress: progress})

	_, err := tr.Request(context.Background(), http.MethodGet, "/a", nil, Options{})
	require.NoError(t, err)
	require.Equal(t, []string{"start /a", "finish /a"}, progress.events)
}
