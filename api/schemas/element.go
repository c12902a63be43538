package schemas

import "strings"

// -- Element Map Schemas --

// Element is one entry of the element map reported by a scan. IDs are
// small integers assigned in document order and stay valid only until the
// next map-invalidating event (navigation, hash change, history mutation).
type Element struct {
	ID         uint32            `json:"id"`
	Type       string            `json:"type"`
	Role       string            `json:"role,omitempty"`
	Text       string            `json:"text,omitempty"`
	Selector   string            `json:"selector,omitempty"`
	XPath      string            `json:"xpath,omitempty"`
	Rect       Rect              `json:"rect"`
	Attributes map[string]string `json:"attributes,omitempty"`
	State      ElementState      `json:"state"`
}

// Attr returns the named attribute, or "" when absent.
func (e *Element) Attr(name string) string {
	if e.Attributes == nil {
		return ""
	}
	return e.Attributes[name]
}

// Label returns the best human-facing caption for the element: visible
// text first, then aria-label, placeholder, title. Machine-facing fields
// (value, name) never serve as captions; the value renders separately,
// under masking.
func (e *Element) Label() string {
	if t := strings.TrimSpace(e.Text); t != "" {
		return t
	}
	for _, a := range []string{"aria-label", "placeholder", "title"} {
		if v := strings.TrimSpace(e.Attr(a)); v != "" {
			return v
		}
	}
	return ""
}

// ElementState carries the interaction-relevant state bits of an element.
type ElementState struct {
	Visible  bool `json:"visible"`
	Enabled  bool `json:"enabled"`
	Checked  bool `json:"checked,omitempty"`
	Selected bool `json:"selected,omitempty"`
	Focused  bool `json:"focused,omitempty"`
	ReadOnly bool `json:"readonly,omitempty"`
}

// Rect is an element bounding box in page coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the midpoint of the rect.
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Contains reports whether the other rect lies fully inside this one.
func (r Rect) Contains(o Rect) bool {
	return o.X >= r.X && o.Y >= r.Y &&
		o.X+o.Width <= r.X+r.Width &&
		o.Y+o.Height <= r.Y+r.Height
}

// Point is a page coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PageInfo describes the page at scan time.
type PageInfo struct {
	URL        string     `json:"url"`
	Title      string     `json:"title"`
	Viewport   Viewport   `json:"viewport"`
	Scroll     ScrollInfo `json:"scroll"`
	ReadyState string     `json:"readyState"`
}

// Viewport is the visible page area in CSS pixels.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ScrollInfo is the current scroll position and its limits.
type ScrollInfo struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// ScanStats summarizes a scan result.
type ScanStats struct {
	Total       int `json:"total"`
	Visible     int `json:"visible"`
	Hidden      int `json:"hidden"`
	Interactive int `json:"interactive"`
}

// DOMChanges counts mutations observed while executing an action.
type DOMChanges struct {
	Added    int `json:"added"`
	Removed  int `json:"removed"`
	Modified int `json:"modified"`
}

// MapDiff lists element-map changes between two scans (diff mode).
type MapDiff struct {
	Added    []Element `json:"added,omitempty"`
	Removed  []uint32  `json:"removed,omitempty"`
	Modified []Element `json:"modified,omitempty"`
}

// Pattern is a page-level structure the engine recognized (login form,
// search box, cookie banner, pagination, ...).
type Pattern struct {
	Kind     string   `json:"kind"`
	Elements []uint32 `json:"elements,omitempty"`
	Label    string   `json:"label,omitempty"`
}
