package schemas

import "time"

// -- Session Host Types --
//
// Types shared between the session host, the executor, and the formatter
// for state the host owns outside the in-page engine: cookies, tabs,
// frames, and captured console/error events.

// Cookie is one browser cookie in host-neutral form.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain,omitempty"`
	Path     string  `json:"path,omitempty"`
	Expires  float64 `json:"expires,omitempty"` // Unix seconds; 0 means session cookie
	HTTPOnly bool    `json:"http_only,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	SameSite string  `json:"same_site,omitempty"`
}

// TabInfo describes one open tab.
type TabInfo struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Title  string `json:"title"`
	Active bool   `json:"active"`
}

// SessionInfo describes one named browser session.
type SessionInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Tabs   int    `json:"tabs"`
	Active bool   `json:"active"`
}

// FrameInfo describes one frame in the page's frame tree. Depth is 0 for
// the main frame.
type FrameInfo struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	Name    string `json:"name,omitempty"`
	Depth   int    `json:"depth"`
	Current bool   `json:"current"`
}

// ConsoleEntry is one captured console message.
type ConsoleEntry struct {
	When   time.Time `json:"when"`
	Level  string    `json:"level"` // log, info, warning, error, debug
	Text   string    `json:"text"`
	Source string    `json:"source,omitempty"`
}

// PageError is one captured uncaught JavaScript exception.
type PageError struct {
	When    time.Time `json:"when"`
	Message string    `json:"message"`
	URL     string    `json:"url,omitempty"`
	Line    int64     `json:"line,omitempty"`
	Column  int64     `json:"column,omitempty"`
	Stack   string    `json:"stack,omitempty"`
}

// StorageSnapshot is the key/value content of one web storage scope.
type StorageSnapshot map[string]string

// SessionState is the persistable state of a session: what state save
// writes and state load restores.
type SessionState struct {
	URL            string          `json:"url,omitempty"`
	Cookies        []Cookie        `json:"cookies"`
	LocalStorage   StorageSnapshot `json:"local_storage,omitempty"`
	SessionStorage StorageSnapshot `json:"session_storage,omitempty"`
	SavedAt        time.Time       `json:"saved_at"`
}
