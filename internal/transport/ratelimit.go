package transport

import (
	"log/slog"
	"net/http"
	"strconv"
)

// RateLimitEvent is reported after every completed request.
// Remaining and Limit are -1 when the response carried no rate-limit headers.
type RateLimitEvent struct {
	Remaining int
	Limit     int
	Method    string
	Path      string
	Payload   any
	Options   Options
}

// RateLimitObserver receives a RateLimitEvent after every request
type RateLimitObserver func(RateLimitEvent)

// OnRateLimit registers an observer. Observers cannot be removed.
func (t *Transport) OnRateLimit(fn RateLimitObserver) {
	if fn == nil {
		return
	}
	t.mu.Lock()
	t.observers = append(t.observers, fn)
	t.mu.Unlock()
}

func (t *Transport) notify(ev RateLimitEvent) {
	t.mu.RLock()
	observers := t.observers
	t.mu.RUnlock()

	for _, fn := range observers {
		fn(ev)
	}
}

func rateLimitEvent(h http.Header, method, path string, payload any, opts Options) RateLimitEvent {
	return RateLimitEvent{
		Remaining: headerInt(h, "X-RateLimit-Remaining"),
		Limit:     headerInt(h, "X-RateLimit-Limit"),
		Method:    method,
		Path:      path,
		Payload:   payload,
		Options:   opts,
	}
}

func headerInt(h http.Header, key string) int {
	v := h.Get(key)
	if v == "" {
		return -1
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return -1
	}
	return n
}

// Progress receives start/end notifications for every request, tagged with its path
type Progress interface {
	RequestStarted(path string)
	RequestFinished(path string, status int)
}

// logProgress reports progress at debug level
type logProgress struct {
	logger *slog.Logger
}

func (p logProgress) RequestStarted(path string) {
	p.logger.Debug("request started", "path", path)
}

func (p logProgress) RequestFinished(path string, status int) {
	p.logger.Debug("request finished", "path", path, "status", status)
}
