// Package cache holds the conditional-request cache shared by a client's
// transport. Entries map a request path to the last validator (ETag) the
// remote returned for it along with the body that came with that validator.
package cache

import "sync"

// Entry is the last known representation of a resource
type Entry struct {
	Validator  string
	Body       []byte
	StatusText string

	// ContentType is restored on 304 responses, which carry none of their own
	ContentType string
}

// Cache maps request paths to entries.
// There is no eviction: entries live until Clear is called.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// New creates an empty cache
func New() *Cache {
	return &Cache{entries: make(map[string]Entry)}
}

// Get returns the entry for key, if present
func (c *Cache) Get(key string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}

// Put stores entry under key, replacing any previous entry.
// The body is copied so callers may reuse their buffer.
func (c *Cache) Put(key string, entry Entry) {
	entry.Body = append([]byte(nil), entry.Body...)
	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
}

// Clear drops every entry. Requests already in flight are not affected.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]Entry)
	c.mu.Unlock()
}

// Len returns the number of cached entries
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
