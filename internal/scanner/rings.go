package scanner

import (
	"strings"
	"sync"

	"github.com/xkilldash9x/oil-cli/api/schemas"
)

// eventBufferCap bounds the per-session console and error buffers. Old
// entries fall off the front; a chatty page cannot grow the host.
const eventBufferCap = 500

// consoleBuffer collects console messages from the event pump.
type consoleBuffer struct {
	mu      sync.Mutex
	entries []schemas.ConsoleEntry
	max     int
}

func newConsoleBuffer(max int) *consoleBuffer {
	if max <= 0 {
		max = 1
	}
	return &consoleBuffer{max: max}
}

func (b *consoleBuffer) add(e schemas.ConsoleEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.entries) >= b.max {
		b.entries = b.entries[1:]
	}
	b.entries = append(b.entries, e)
}

// list filters by level and text substring, then keeps the newest n
// entries. Zero or negative n keeps everything that matched.
func (b *consoleBuffer) list(level, filter string, last int) []schemas.ConsoleEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]schemas.ConsoleEntry, 0, len(b.entries))
	for _, e := range b.entries {
		if level != "" && !strings.EqualFold(e.Level, level) {
			continue
		}
		if filter != "" && !strings.Contains(strings.ToLower(e.Text), strings.ToLower(filter)) {
			continue
		}
		out = append(out, e)
	}
	if last > 0 && len(out) > last {
		out = out[len(out)-last:]
	}
	return out
}

func (b *consoleBuffer) clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = nil
}

// errorBuffer collects uncaught page exceptions.
type errorBuffer struct {
	mu      sync.Mutex
	entries []schemas.PageError
	max     int
}

func newErrorBuffer(max int) *errorBuffer {
	if max <= 0 {
		max = 1
	}
	return &errorBuffer{max: max}
}

func (b *errorBuffer) add(e schemas.PageError) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.entries) >= b.max {
		b.entries = b.entries[1:]
	}
	b.entries = append(b.entries, e)
}

func (b *errorBuffer) list(last int) []schemas.PageError {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]schemas.PageError, len(b.entries))
	copy(out, b.entries)
	if last > 0 && len(out) > last {
		out = out[len(out)-last:]
	}
	return out
}

func (b *errorBuffer) clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = nil
}
