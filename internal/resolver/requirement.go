package resolver

import (
	"sort"
	"strings"

	"github.com/xkilldash9x/oil-cli/api/schemas"
	"github.com/xkilldash9x/oil-cli/internal/ast"
)

// TargetRequirement names the kind of element a command's target must
// resolve to. Validation runs after scoring so a label that names a field
// can still reach the field it labels.
type TargetRequirement int

const (
	ReqAny TargetRequirement = iota
	ReqTypeable
	ReqClickable
	ReqCheckable
	ReqSubmittable
	ReqSelectable
	ReqDismissable
	ReqAcceptable
	ReqFormContainer
)

func (r TargetRequirement) String() string {
	switch r {
	case ReqAny:
		return "any"
	case ReqTypeable:
		return "typeable"
	case ReqClickable:
		return "clickable"
	case ReqCheckable:
		return "checkable"
	case ReqSubmittable:
		return "submittable"
	case ReqSelectable:
		return "selectable"
	case ReqDismissable:
		return "dismissable"
	case ReqAcceptable:
		return "acceptable"
	case ReqFormContainer:
		return "form"
	default:
		return "unknown"
	}
}

// Strategy picks between several scored candidates.
type Strategy int

const (
	// StrategyFirst takes the best-scoring candidate, breaking ties by
	// scan order. The default ambiguity policy.
	StrategyFirst Strategy = iota
	// StrategyUnique errors when the two best candidates tie.
	StrategyUnique
	// StrategyBest takes the best score with no type bonus.
	StrategyBest
	// StrategyPreferInput boosts form fields.
	StrategyPreferInput
	// StrategyPreferClickable boosts buttons and links.
	StrategyPreferClickable
	// StrategyPreferCheckable boosts checkboxes, radios, and switches.
	StrategyPreferCheckable
)

// strategy maps a requirement to the scoring strategy used when several
// elements match its target.
func (r TargetRequirement) strategy() Strategy {
	switch r {
	case ReqTypeable:
		return StrategyPreferInput
	case ReqClickable, ReqDismissable, ReqAcceptable:
		return StrategyPreferClickable
	case ReqCheckable:
		return StrategyPreferCheckable
	default:
		return StrategyBest
	}
}

// commandMeta reports the target requirement of a command and whether a
// missing target may be inferred from recognized page patterns.
func commandMeta(cmd ast.Command) (TargetRequirement, bool) {
	switch cmd.(type) {
	case *ast.ClickCmd:
		return ReqClickable, false
	case *ast.TypeCmd:
		return ReqTypeable, false
	case *ast.SubmitCmd:
		return ReqSubmittable, true
	case *ast.CheckCmd, *ast.UncheckCmd:
		return ReqCheckable, false
	case *ast.SelectCmd:
		return ReqSelectable, false
	case *ast.DismissCmd:
		return ReqDismissable, true
	case *ast.AcceptCookiesCmd:
		return ReqAcceptable, true
	default:
		return ReqAny, false
	}
}

// roleOf returns the element's semantic role: the scanner-computed role
// when present, else the raw role attribute.
func roleOf(e *schemas.Element) string {
	if e.Role != "" {
		return e.Role
	}
	return e.Attr("role")
}

func attrIn(e *schemas.Element, name string, values ...string) bool {
	v := e.Attr(name)
	if v == "" {
		return false
	}
	for _, want := range values {
		if v == want {
			return true
		}
	}
	return false
}

func roleIn(e *schemas.Element, values ...string) bool {
	r := roleOf(e)
	for _, want := range values {
		if r == want {
			return true
		}
	}
	return false
}

// validateRequirement reports whether an element can serve a requirement.
func validateRequirement(e *schemas.Element, req TargetRequirement) bool {
	switch req {
	case ReqAny:
		return true
	case ReqTypeable:
		switch e.Type {
		case "input", "textarea", "select":
			return true
		}
		return attrIn(e, "contenteditable", "true")
	case ReqClickable:
		return isClickable(e)
	case ReqCheckable:
		return isCheckable(e)
	case ReqSubmittable:
		if e.Type == "form" {
			return true
		}
		if e.Type == "button" {
			// Buttons submit unless explicitly neutered.
			return !attrIn(e, "type", "button", "reset")
		}
		return e.Type == "input" && attrIn(e, "type", "submit")
	case ReqSelectable:
		return e.Type == "select" || roleIn(e, "listbox")
	case ReqDismissable, ReqAcceptable:
		switch e.Type {
		case "button", "a", "input":
			return true
		}
		return roleIn(e, "button", "link")
	case ReqFormContainer:
		return e.Type == "form"
	default:
		return false
	}
}

func isClickable(e *schemas.Element) bool {
	switch e.Type {
	case "button", "a":
		return true
	}
	if roleIn(e, "button") {
		return true
	}
	return e.Type == "input" && attrIn(e, "type", "submit", "button", "reset")
}

func isCheckable(e *schemas.Element) bool {
	return attrIn(e, "type", "checkbox", "radio") ||
		roleIn(e, "checkbox", "radio", "switch")
}

func isInput(e *schemas.Element) bool {
	switch e.Type {
	case "input", "textarea", "select":
		return true
	}
	return false
}

// -- Label association --

// Association lookup bounds: how many nearby candidates to consider and
// how far apart a label and its control may sit vertically.
const (
	maxAdjacentCandidates = 5
	maxVerticalGapPx      = 50.0
)

// labelLike reports element types that carry text but take no action
// themselves.
func labelLike(elementType string) bool {
	switch elementType {
	case "label", "span", "p", "strong", "b", "em",
		"h1", "h2", "h3", "h4", "h5", "h6":
		return true
	}
	return false
}

// findAssociatedControl locates the form control a label-like element
// describes, trying the label's for attribute, then a control nested in
// the label's box, then the nearest adjacent control. Used when a target
// matched a label but the command needs the field behind it.
func findAssociatedControl(e *schemas.Element, req TargetRequirement, m *ElementMap) (uint32, bool) {
	if !labelLike(e.Type) {
		return 0, false
	}
	if id, ok := controlByForAttr(e, req, m); ok {
		return id, true
	}
	if id, ok := nestedControl(e, req, m); ok {
		return id, true
	}
	return adjacentControl(e, req, m)
}

func controlByForAttr(label *schemas.Element, req TargetRequirement, m *ElementMap) (uint32, bool) {
	if label.Type != "label" {
		return 0, false
	}
	forID := label.Attr("for")
	if forID == "" {
		return 0, false
	}
	ctl, ok := m.findFirst(func(e *schemas.Element) bool {
		return e.Attr("id") == forID && validateRequirement(e, req)
	})
	if !ok {
		return 0, false
	}
	return ctl.ID, true
}

// nestedControl finds a control drawn inside the label's box. Scan order
// is not trusted here: nested inputs may be scanned before the label's
// text node, so the lowest ID wins instead.
func nestedControl(label *schemas.Element, req TargetRequirement, m *ElementMap) (uint32, bool) {
	best := uint32(0)
	found := false
	for i := range m.Elements() {
		e := &m.Elements()[i]
		if e.ID == label.ID || !label.Rect.Contains(e.Rect) || !validateRequirement(e, req) {
			continue
		}
		if !found || e.ID < best {
			best = e.ID
			found = true
		}
	}
	return best, found
}

// adjacentControl finds the closest control on the label's row or within
// the vertical gap above or below it. Vertical distance is weighted
// double so same-row controls outrank ones on neighboring lines.
func adjacentControl(label *schemas.Element, req TargetRequirement, m *ElementMap) (uint32, bool) {
	type cand struct {
		e    *schemas.Element
		dist float64
	}
	var cands []cand
	for i := range m.Elements() {
		e := &m.Elements()[i]
		if e.ID == label.ID || !validateRequirement(e, req) {
			continue
		}
		lc, ec := label.Rect.Center(), e.Rect.Center()
		dy := lc.Y - ec.Y
		if dy < 0 {
			dy = -dy
		}
		dx := lc.X - ec.X
		if dx < 0 {
			dx = -dx
		}
		cands = append(cands, cand{e: e, dist: dy*2 + dx})
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })

	labelTop := label.Rect.Y
	labelBottom := label.Rect.Y + label.Rect.Height
	for i, c := range cands {
		if i >= maxAdjacentCandidates {
			break
		}
		elemTop := c.e.Rect.Y
		elemBottom := c.e.Rect.Y + c.e.Rect.Height

		sameRow := elemTop <= labelBottom+maxVerticalGapPx && elemBottom >= labelTop-maxVerticalGapPx
		below := elemTop >= labelBottom && elemTop <= labelBottom+maxVerticalGapPx
		above := elemBottom <= labelTop && elemBottom >= labelTop-maxVerticalGapPx
		if sameRow || below || above {
			return c.e.ID, true
		}
	}
	return 0, false
}

// normalizeText lowercases and collapses runs of whitespace, the shared
// canonical form for all text matching.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
