// Package network owns the request capture log shared by the session
// host and the opt-in MITM proxy, the intercept rule table both enforce,
// and the compression-aware plumbing for reading response bodies.
package network

import (
	"strings"
	"sync"

	"github.com/xkilldash9x/oil-cli/api/schemas"
)

// Capture is a fixed-size ring of observed requests. The session host
// feeds it from CDP network events; the proxy feeds it for traffic that
// never touches the browser. Oldest entries are overwritten once the
// ring is full.
type Capture struct {
	mu      sync.RWMutex
	entries []schemas.CapturedRequest
	next    int
	wrapped bool

	bodies bool
	rules  *RuleSet
}

// NewCapture creates a capture ring holding up to size entries.
func NewCapture(size int, bodies bool) *Capture {
	if size <= 0 {
		size = 1
	}
	return &Capture{
		entries: make([]schemas.CapturedRequest, size),
		bodies:  bodies,
		rules:   NewRuleSet(),
	}
}

// Rules returns the intercept rule table enforced on captured traffic.
func (c *Capture) Rules() *RuleSet { return c.rules }

// CaptureBodies reports whether response bodies should be recorded.
func (c *Capture) CaptureBodies() bool { return c.bodies }

// Add records one request, overwriting the oldest entry when full.
func (c *Capture) Add(req schemas.CapturedRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[c.next] = req
	c.next++
	if c.next == len(c.entries) {
		c.next = 0
		c.wrapped = true
	}
}

// Len returns the number of recorded entries.
func (c *Capture) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.wrapped {
		return len(c.entries)
	}
	return c.next
}

// Clear drops every recorded entry.
func (c *Capture) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next = 0
	c.wrapped = false
	for i := range c.entries {
		c.entries[i] = schemas.CapturedRequest{}
	}
}

// List returns captured requests in arrival order, oldest first. filter
// keeps entries whose URL contains the substring, method keeps entries
// with a matching method, and last > 0 keeps only the newest N after
// filtering. Zero values disable each criterion.
func (c *Capture) List(filter, method string, last int) []schemas.CapturedRequest {
	c.mu.RLock()
	ordered := c.snapshot()
	c.mu.RUnlock()

	out := ordered[:0]
	for _, e := range ordered {
		if filter != "" && !strings.Contains(e.URL, filter) {
			continue
		}
		if method != "" && !strings.EqualFold(e.Method, method) {
			continue
		}
		out = append(out, e)
	}
	if last > 0 && len(out) > last {
		out = out[len(out)-last:]
	}
	return out
}

// snapshot copies the ring contents in chronological order. Callers
// hold at least a read lock.
func (c *Capture) snapshot() []schemas.CapturedRequest {
	if !c.wrapped {
		out := make([]schemas.CapturedRequest, c.next)
		copy(out, c.entries[:c.next])
		return out
	}
	out := make([]schemas.CapturedRequest, 0, len(c.entries))
	out = append(out, c.entries[c.next:]...)
	out = append(out, c.entries[:c.next]...)
	return out
}
