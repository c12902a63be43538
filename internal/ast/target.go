package ast

import (
	"fmt"
	"strings"
)

// Relation names how one target atom constrains another.
type Relation string

const (
	RelNear     Relation = "near"
	RelInside   Relation = "inside"
	RelAfter    Relation = "after"
	RelBefore   Relation = "before"
	RelContains Relation = "contains"
)

// AtomKind discriminates the target atom forms.
type AtomKind string

const (
	AtomID    AtomKind = "id"
	AtomRole  AtomKind = "role"
	AtomCss   AtomKind = "css"
	AtomXPath AtomKind = "xpath"
	AtomText  AtomKind = "text"
)

// TargetAtom is one primitive element descriptor. ID carries the numeric
// form; Value carries the role keyword, selector source, or text for the
// other kinds. Atoms are immutable once built.
type TargetAtom struct {
	Kind  AtomKind
	ID    uint32
	Value string
	Span  Span
}

// IDAtom builds a numeric element reference.
func IDAtom(id uint32, sp Span) TargetAtom { return TargetAtom{Kind: AtomID, ID: id, Span: sp} }

// RoleAtom builds a semantic-role reference.
func RoleAtom(role string, sp Span) TargetAtom {
	return TargetAtom{Kind: AtomRole, Value: role, Span: sp}
}

// CssAtom builds a CSS selector reference.
func CssAtom(sel string, sp Span) TargetAtom {
	return TargetAtom{Kind: AtomCss, Value: sel, Span: sp}
}

// XPathAtom builds an XPath selector reference.
func XPathAtom(expr string, sp Span) TargetAtom {
	return TargetAtom{Kind: AtomXPath, Value: expr, Span: sp}
}

// TextAtom builds a visible-text reference.
func TextAtom(text string, sp Span) TargetAtom {
	return TargetAtom{Kind: AtomText, Value: text, Span: sp}
}

// String renders the atom in canonical source form.
func (a TargetAtom) String() string {
	switch a.Kind {
	case AtomID:
		return fmt.Sprintf("%d", a.ID)
	case AtomRole:
		return a.Value
	case AtomCss:
		return fmt.Sprintf("css(%s)", QuoteString(a.Value))
	case AtomXPath:
		return fmt.Sprintf("xpath(%s)", QuoteString(a.Value))
	case AtomText:
		return QuoteString(a.Value)
	default:
		return "<invalid atom>"
	}
}

// RelationTerm pairs a relation keyword with the atom that followed it in
// source order.
type RelationTerm struct {
	Rel  Relation
	Atom TargetAtom
}

// Target is a primary atom plus an ordered, flat list of relational
// constraints. The list preserves source order; resolution folds it from
// the tail so chains associate right-to-left. A Target never contains
// another Target.
type Target struct {
	Primary   TargetAtom
	Relations []RelationTerm
	Span      Span
}

// String renders the target in canonical source form.
func (t Target) String() string {
	var b strings.Builder
	b.WriteString(t.Primary.String())
	for _, r := range t.Relations {
		b.WriteByte(' ')
		b.WriteString(string(r.Rel))
		b.WriteByte(' ')
		b.WriteString(r.Atom.String())
	}
	return b.String()
}

// Resolved reports whether the target is a bare numeric reference with no
// remaining relational constraints.
func (t Target) Resolved() bool {
	return t.Primary.Kind == AtomID && len(t.Relations) == 0
}

// ResolvedTo builds the post-resolution form of a target: the concrete
// element ID with the constraints consumed. The original span is kept for
// diagnostics.
func (t Target) ResolvedTo(id uint32) Target {
	return Target{Primary: IDAtom(id, t.Span), Span: t.Span}
}
