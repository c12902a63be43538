package resolver

import (
	"math"

	"github.com/xkilldash9x/oil-cli/api/schemas"
)

// Pattern kinds the in-page engine reports with a scan. Pattern members
// arrive in a fixed per-kind slot order; a zero ID marks an empty slot.
//
//	login:         [username, password, submit]
//	search:        [input, submit]
//	modal:         [root, close, confirm]
//	cookie_banner: [root, accept, reject]
const (
	PatternLogin        = "login"
	PatternSearch       = "search"
	PatternModal        = "modal"
	PatternCookieBanner = "cookie_banner"
	PatternPagination   = "pagination"
)

// Pattern member slots, by kind.
const (
	SlotLoginUsername = 0
	SlotLoginPassword = 1
	SlotLoginSubmit   = 2

	SlotSearchInput  = 0
	SlotSearchSubmit = 1

	SlotModalRoot    = 0
	SlotModalClose   = 1
	SlotModalConfirm = 2

	SlotCookieRoot   = 0
	SlotCookieAccept = 1
	SlotCookieReject = 2
)

// Snapshot is the scan payload an ElementMap is built from.
type Snapshot struct {
	Elements []schemas.Element
	Page     *schemas.PageInfo
	Patterns []schemas.Pattern
}

// ElementMap is a generation-stamped snapshot of the addressable page
// elements. Element IDs are meaningful only within the generation they
// were scanned under; any page-changing event obsoletes the whole map,
// and the caller must re-scan rather than reuse it.
type ElementMap struct {
	generation uint64
	elements   []schemas.Element
	page       *schemas.PageInfo
	patterns   []schemas.Pattern
	byID       map[uint32]int
	focused    uint32
	hasFocus   bool
}

// NewElementMap snapshots a scan under the given generation. The focused
// element, if the scan reports one, is remembered for inference.
func NewElementMap(generation uint64, snap Snapshot) *ElementMap {
	m := &ElementMap{
		generation: generation,
		elements:   snap.Elements,
		page:       snap.Page,
		patterns:   snap.Patterns,
		byID:       make(map[uint32]int, len(snap.Elements)),
	}
	for i := range m.elements {
		e := &m.elements[i]
		m.byID[e.ID] = i
		if e.State.Focused && !m.hasFocus {
			m.focused = e.ID
			m.hasFocus = true
		}
	}
	return m
}

// Generation returns the map's generation stamp.
func (m *ElementMap) Generation() uint64 { return m.generation }

// Len returns the number of elements in the map.
func (m *ElementMap) Len() int { return len(m.elements) }

// Page returns the page info captured with the scan, or nil.
func (m *ElementMap) Page() *schemas.PageInfo { return m.page }

// Elements returns the elements in scan order. Callers must not mutate
// the returned slice.
func (m *ElementMap) Elements() []schemas.Element { return m.elements }

// Get looks up an element by ID.
func (m *ElementMap) Get(id uint32) (*schemas.Element, bool) {
	i, ok := m.byID[id]
	if !ok {
		return nil, false
	}
	return &m.elements[i], true
}

// Focused returns the element the scan reported as focused.
func (m *ElementMap) Focused() (uint32, bool) { return m.focused, m.hasFocus }

// PatternSlot returns the member in the given slot of the first pattern
// of that kind. Absent patterns and empty slots report false.
func (m *ElementMap) PatternSlot(kind string, slot int) (uint32, bool) {
	for i := range m.patterns {
		p := &m.patterns[i]
		if p.Kind != kind {
			continue
		}
		if slot >= len(p.Elements) || p.Elements[slot] == 0 {
			return 0, false
		}
		return p.Elements[slot], true
	}
	return 0, false
}

// findSingle returns the only element satisfying pred; zero or several
// matches report false.
func (m *ElementMap) findSingle(pred func(*schemas.Element) bool) (*schemas.Element, bool) {
	var found *schemas.Element
	for i := range m.elements {
		if !pred(&m.elements[i]) {
			continue
		}
		if found != nil {
			return nil, false
		}
		found = &m.elements[i]
	}
	return found, found != nil
}

// findFirst returns the first element in scan order satisfying pred.
func (m *ElementMap) findFirst(pred func(*schemas.Element) bool) (*schemas.Element, bool) {
	for i := range m.elements {
		if pred(&m.elements[i]) {
			return &m.elements[i], true
		}
	}
	return nil, false
}

// -- Geometry --

// distCenter is the Euclidean distance between two rect midpoints.
func distCenter(a, b schemas.Rect) float64 {
	ca, cb := a.Center(), b.Center()
	return math.Hypot(ca.X-cb.X, ca.Y-cb.Y)
}

// distL1 is the Manhattan distance between two rect origins.
func distL1(a, b schemas.Rect) float64 {
	return math.Abs(a.X-b.X) + math.Abs(a.Y-b.Y)
}

// isAfter reports whether target reads after anchor: below it, or on the
// same row to its right.
func isAfter(target, anchor schemas.Rect) bool {
	anchorBottom := anchor.Y + anchor.Height
	return target.Y >= anchorBottom || (target.Y >= anchor.Y && target.X > anchor.X+anchor.Width)
}

// isBefore reports whether target reads before anchor: above it, or on
// the same row to its left.
func isBefore(target, anchor schemas.Rect) bool {
	targetBottom := target.Y + target.Height
	return targetBottom <= anchor.Y || (target.Y <= anchor.Y+anchor.Height && target.X+target.Width < anchor.X)
}
