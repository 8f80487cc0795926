package transport

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"ghrest.dev/ghrest/internal/cache"
	ghErrors "ghrest.dev/ghrest/internal/errors"
)

// Kind classifies a normalized response
type Kind int

const (
	// KindOK is a plain 2xx response
	KindOK Kind = iota
	// KindNotModified is a 304 answered from the cache
	KindNotModified
	// KindTrue is a boolean query answered with the true status
	KindTrue
	// KindFalse is a boolean query answered with the false status
	KindFalse
	// KindError is any failure; it never escapes Request
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindNotModified:
		return "not-modified"
	case KindTrue:
		return "true"
	case KindFalse:
		return "false"
	default:
		return "error"
	}
}

// Response is the normalized result of a request
type Response struct {
	Kind       Kind
	Body       []byte
	Status     int
	StatusText string
	Header     http.Header
}

// Decode unmarshals the JSON body into v
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("empty response body (status %d)", r.Status)
	}
	return json.Unmarshal(r.Body, v)
}

// outcome is what normalize hands back to Request
type outcome struct {
	Kind     Kind
	Response *Response
	Err      error
}

// normalize turns a raw HTTP response into an outcome. It is the only place
// that interprets status codes, validators and error bodies.
func (t *Transport) normalize(method, path string, resp *http.Response, body []byte, opts Options) outcome {
	r := &Response{
		Kind:       KindOK,
		Body:       body,
		Status:     resp.StatusCode,
		StatusText: resp.Status,
		Header:     resp.Header,
	}

	if resp.StatusCode == http.StatusNotModified {
		r.Kind = KindNotModified
		if t.cfg.UseETags {
			if entry, ok := t.cache.Get(path); ok {
				r.Body = entry.Body
				r.StatusText = entry.StatusText
				if entry.ContentType != "" {
					r.Header = resp.Header.Clone()
					r.Header.Set("Content-Type", entry.ContentType)
				}
			}
		}
		return outcome{Kind: r.Kind, Response: r}
	}

	if opts.BooleanQuery {
		switch resp.StatusCode {
		case t.cfg.TrueStatus:
			r.Kind = KindTrue
			return outcome{Kind: r.Kind, Response: r}
		case t.cfg.FalseStatus:
			r.Kind = KindFalse
			return outcome{Kind: r.Kind, Response: r}
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := classifyError(resp, body)
		return outcome{Kind: KindError, Err: err}
	}

	// Binary reads need no decoding; body holds the bytes as sent.

	if etag := resp.Header.Get("ETag"); etag != "" && t.cfg.UseETags && method == http.MethodGet {
		t.cache.Put(path, cache.Entry{
			Validator:   etag,
			Body:        body,
			StatusText:  resp.Status,
			ContentType: resp.Header.Get("Content-Type"),
		})
	}

	return outcome{Kind: r.Kind, Response: r}
}

// classifyError builds the error for a non-2xx response from its content type
func classifyError(resp *http.Response, body []byte) error {
	if len(body) == 0 {
		return ghErrors.NewRemoteError(resp.StatusCode, "", body)
	}
	if !isJSON(resp.Header.Get("Content-Type")) {
		return ghErrors.NewRemoteError(resp.StatusCode, string(body), body)
	}

	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ghErrors.NewDecodeError(resp.StatusCode, body, err)
	}
	return ghErrors.NewRemoteError(resp.StatusCode, parsed, body)
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
