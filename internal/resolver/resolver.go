// Package resolver turns the symbolic targets of parsed commands into
// concrete element IDs against a generation-stamped element map, and
// enforces the semantic policy that is independent of any page state.
//
// Relational chains resolve right to left: in "A near B inside C" the
// anchor C is resolved first, B is constrained to elements inside C, and
// only then is A constrained by nearness to B. The flat relation list is
// folded from the tail so the associativity rule lives in one loop.
// Anchors always resolve with the first-match strategy; the command's
// own strategy applies only to the outermost selection.
package resolver

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/oil-cli/api/schemas"
	"github.com/xkilldash9x/oil-cli/internal/ast"
)

// SelectorResolver evaluates a CSS or XPath expression against the live
// page and returns the matching element-map IDs in document order. It is
// the only step of resolution that needs the page itself; everything
// else works from the scanned map.
type SelectorResolver interface {
	ResolveSelector(ctx context.Context, kind, expr string) ([]uint32, error)
}

// Resolver resolves command targets against an element map under a
// semantic policy. A nil SelectorResolver disables selector targets;
// everything else still works.
type Resolver struct {
	policy    Policy
	selectors SelectorResolver
	log       *zap.Logger
}

// New builds a Resolver. The policy is threaded through rather than
// hard-coded so conflict rules can be tested and versioned on their own.
func New(policy Policy, selectors SelectorResolver, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		policy:    policy,
		selectors: selectors,
		log:       logger.Named("resolver"),
	}
}

// NeedsResolution reports whether a command addresses elements through
// the live map and so requires a scan before it can execute. Waits are
// excluded: their condition is re-checked by polling, and the element
// they wait for may not exist yet. Scroll-until drives its own
// scan-and-retry loop for the same reason. Frame targets are excluded
// too: they name frames, and the host matches them against the frame
// tree, not the element map.
func NeedsResolution(cmd ast.Command) bool {
	switch c := cmd.(type) {
	case *ast.ClickCmd, *ast.TypeCmd, *ast.ClearCmd, *ast.CheckCmd, *ast.UncheckCmd,
		*ast.HoverCmd, *ast.FocusCmd, *ast.SelectCmd, *ast.SubmitCmd,
		*ast.DismissCmd, *ast.AcceptCookiesCmd, *ast.BoxCmd:
		return true
	case *ast.ScrollCmd:
		return c.Target != nil
	case *ast.TextCmd:
		return c.Target != nil
	case *ast.ScreenshotCmd:
		return c.Target != nil
	case *ast.HighlightCmd:
		return c.Target != nil && !c.Clear
	default:
		return false
	}
}

// Resolve validates cmd against the semantic policy and rewrites its
// targets to concrete element IDs. Commands without targets pass through
// after policy validation. The input command is never mutated; a resolved
// command is always a fresh value, so a caller can retry the original
// against a fresh map.
func (r *Resolver) Resolve(ctx context.Context, cmd ast.Command, m *ElementMap) (ast.Command, error) {
	if err := r.policy.Check(cmd); err != nil {
		return nil, err
	}
	if m == nil {
		m = NewElementMap(0, Snapshot{})
	}

	req, _ := commandMeta(cmd)

	switch c := cmd.(type) {
	case *ast.ClickCmd:
		id, err := r.resolveTarget(ctx, c.Target, req, m)
		if err != nil {
			return nil, err
		}
		out := *c
		out.Target = c.Target.ResolvedTo(id)
		return &out, nil

	case *ast.TypeCmd:
		id, err := r.resolveTarget(ctx, c.Target, req, m)
		if err != nil {
			return nil, err
		}
		out := *c
		out.Target = c.Target.ResolvedTo(id)
		return &out, nil

	case *ast.ClearCmd:
		id, err := r.resolveTarget(ctx, c.Target, req, m)
		if err != nil {
			return nil, err
		}
		out := *c
		out.Target = c.Target.ResolvedTo(id)
		return &out, nil

	case *ast.CheckCmd:
		id, err := r.resolveTarget(ctx, c.Target, req, m)
		if err != nil {
			return nil, err
		}
		out := *c
		out.Target = c.Target.ResolvedTo(id)
		return &out, nil

	case *ast.UncheckCmd:
		id, err := r.resolveTarget(ctx, c.Target, req, m)
		if err != nil {
			return nil, err
		}
		out := *c
		out.Target = c.Target.ResolvedTo(id)
		return &out, nil

	case *ast.HoverCmd:
		id, err := r.resolveTarget(ctx, c.Target, req, m)
		if err != nil {
			return nil, err
		}
		out := *c
		out.Target = c.Target.ResolvedTo(id)
		return &out, nil

	case *ast.FocusCmd:
		id, err := r.resolveTarget(ctx, c.Target, req, m)
		if err != nil {
			return nil, err
		}
		out := *c
		out.Target = c.Target.ResolvedTo(id)
		return &out, nil

	case *ast.SelectCmd:
		id, err := r.resolveTarget(ctx, c.Target, req, m)
		if err != nil {
			return nil, err
		}
		out := *c
		out.Target = c.Target.ResolvedTo(id)
		return &out, nil

	case *ast.BoxCmd:
		id, err := r.resolveTarget(ctx, c.Target, req, m)
		if err != nil {
			return nil, err
		}
		out := *c
		out.Target = c.Target.ResolvedTo(id)
		return &out, nil

	case *ast.SubmitCmd:
		return r.resolveSubmit(ctx, c, m)

	case *ast.DismissCmd:
		return r.resolveDismiss(ctx, c, m)

	case *ast.AcceptCookiesCmd:
		id, rule, ok := inferTarget(ReqAcceptable, m)
		if !ok {
			return nil, &SemanticError{
				Pos:  c.Pos(),
				Msg:  "no consent prompt recognized on this page",
				Code: schemas.CodeElementNotFound,
			}
		}
		r.log.Debug("target inferred", zap.String("rule", rule), zap.Uint32("id", id))
		return clickOn(c.Meta, id), nil

	case *ast.ScrollCmd:
		if c.Target == nil {
			return cmd, nil
		}
		id, err := r.resolveTarget(ctx, *c.Target, req, m)
		if err != nil {
			return nil, err
		}
		out := *c
		rt := c.Target.ResolvedTo(id)
		out.Target = &rt
		return &out, nil

	case *ast.TextCmd:
		if c.Target == nil {
			return cmd, nil
		}
		id, err := r.resolveTarget(ctx, *c.Target, req, m)
		if err != nil {
			return nil, err
		}
		out := *c
		rt := c.Target.ResolvedTo(id)
		out.Target = &rt
		return &out, nil

	case *ast.ScreenshotCmd:
		if c.Target == nil {
			return cmd, nil
		}
		id, err := r.resolveTarget(ctx, *c.Target, req, m)
		if err != nil {
			return nil, err
		}
		out := *c
		rt := c.Target.ResolvedTo(id)
		out.Target = &rt
		return &out, nil

	case *ast.HighlightCmd:
		if c.Target == nil || c.Clear {
			return cmd, nil
		}
		id, err := r.resolveTarget(ctx, *c.Target, req, m)
		if err != nil {
			return nil, err
		}
		out := *c
		rt := c.Target.ResolvedTo(id)
		out.Target = &rt
		return &out, nil

	default:
		return cmd, nil
	}
}

// resolveSubmit resolves an explicit target, or infers the submit button
// of a recognized form pattern. When inference finds nothing the target
// stays empty: translation then asks the engine to submit the form
// containing the focused element, which never involves a sentinel ID.
func (r *Resolver) resolveSubmit(ctx context.Context, c *ast.SubmitCmd, m *ElementMap) (ast.Command, error) {
	if c.Target != nil {
		id, err := r.resolveTarget(ctx, *c.Target, ReqSubmittable, m)
		if err != nil {
			return nil, err
		}
		out := *c
		rt := c.Target.ResolvedTo(id)
		out.Target = &rt
		return &out, nil
	}
	if id, rule, ok := inferTarget(ReqSubmittable, m); ok {
		r.log.Debug("target inferred", zap.String("rule", rule), zap.Uint32("id", id))
		out := *c
		rt := ast.Target{Primary: ast.IDAtom(id, c.Pos()), Span: c.Pos()}
		out.Target = &rt
		return &out, nil
	}
	return c, nil
}

// dismissKeywords are overlay classes a dismiss command may name instead
// of a concrete element.
var dismissKeywords = map[string]bool{
	"modal": true, "modals": true,
	"popup": true, "popups": true,
	"banner": true, "banners": true,
	"cookies": true,
}

// resolveDismiss turns a dismiss into a click on the element that closes
// the overlay: an inferred close control for the overlay keywords, or a
// text-resolved element otherwise.
func (r *Resolver) resolveDismiss(ctx context.Context, c *ast.DismissCmd, m *ElementMap) (ast.Command, error) {
	if dismissKeywords[normalizeText(c.What)] {
		id, rule, ok := inferTarget(ReqDismissable, m)
		if !ok {
			return nil, &SemanticError{
				Pos:  c.Pos(),
				Msg:  fmt.Sprintf("nothing to dismiss: no %s recognized on this page", c.What),
				Code: schemas.CodeElementNotFound,
			}
		}
		r.log.Debug("target inferred", zap.String("rule", rule), zap.Uint32("id", id))
		return clickOn(c.Meta, id), nil
	}

	atom := ast.TextAtom(c.What, c.Pos())
	id, err := r.resolvePrimary(ctx, atom, ReqDismissable, m)
	if err != nil {
		return nil, err
	}
	return clickOn(c.Meta, id), nil
}

// clickOn builds the click a dismiss or accept resolves into.
func clickOn(meta ast.Meta, id uint32) *ast.ClickCmd {
	return &ast.ClickCmd{
		Meta:   meta,
		Target: ast.Target{Primary: ast.IDAtom(id, meta.Span), Span: meta.Span},
	}
}

// resolveTarget resolves one target, folding any relation chain from the
// tail so chains associate right to left.
func (r *Resolver) resolveTarget(ctx context.Context, t ast.Target, req TargetRequirement, m *ElementMap) (uint32, error) {
	if len(t.Relations) == 0 {
		id, err := r.resolvePrimary(ctx, t.Primary, req, m)
		if err != nil {
			return 0, err
		}
		r.log.Debug("target resolved", zap.String("target", t.String()), zap.Uint32("id", id))
		return id, nil
	}

	n := len(t.Relations)
	cur, err := r.resolveAnchor(ctx, t.Relations[n-1].Atom, m)
	if err != nil {
		return 0, err
	}
	for i := n - 2; i >= 0; i-- {
		cur, err = r.resolveRelational(ctx, t.Relations[i].Atom, t.Relations[i+1].Rel, cur, StrategyFirst, m)
		if err != nil {
			return 0, err
		}
	}
	id, err := r.resolveRelational(ctx, t.Primary, t.Relations[0].Rel, cur, req.strategy(), m)
	if err != nil {
		return 0, err
	}
	r.log.Debug("target resolved", zap.String("target", t.String()), zap.Uint32("id", id))
	return id, nil
}

// resolvePrimary resolves a standalone atom and enforces the command's
// requirement on the winner. A label that names a field hands over to the
// field it labels; clickable and checkable targets pass through
// unvalidated because event bubbling makes clicking their text work.
func (r *Resolver) resolvePrimary(ctx context.Context, atom ast.TargetAtom, req TargetRequirement, m *ElementMap) (uint32, error) {
	switch atom.Kind {
	case ast.AtomID:
		if _, ok := m.Get(atom.ID); !ok {
			return 0, &SemanticError{
				Pos:  atom.Span,
				Msg:  fmt.Sprintf("element %d not found", atom.ID),
				Code: schemas.CodeElementNotFound,
			}
		}
		return atom.ID, nil

	case ast.AtomCss, ast.AtomXPath:
		ids, err := r.querySelector(ctx, atom)
		if err != nil {
			return 0, err
		}
		if len(ids) == 0 {
			return 0, errNoMatch(atom.Span, atom.String())
		}
		return ids[0], nil

	case ast.AtomText, ast.AtomRole:
		id, err := r.resolveSemantic(atom, req, m)
		if err != nil {
			return 0, err
		}
		elem, ok := m.Get(id)
		if !ok {
			return 0, errNoMatch(atom.Span, atom.String())
		}
		if validateRequirement(elem, req) {
			return id, nil
		}
		if ctl, found := findAssociatedControl(elem, req, m); found {
			r.log.Debug("associated control used",
				zap.Uint32("label", id), zap.Uint32("control", ctl))
			return ctl, nil
		}
		if req == ReqClickable || req == ReqCheckable {
			return id, nil
		}
		return 0, &SemanticError{
			Pos: atom.Span,
			Msg: fmt.Sprintf("%s resolved to element %d, which is not %s and has no associated control",
				atom.String(), id, req),
		}

	default:
		return 0, &SemanticError{Pos: atom.Span, Msg: fmt.Sprintf("unsupported target atom %q", atom.Kind)}
	}
}

// resolveSemantic scores a text or role atom over the map, falling back
// to raw selector and text sweeps when scoring finds nothing.
func (r *Resolver) resolveSemantic(atom ast.TargetAtom, req TargetRequirement, m *ElementMap) (uint32, error) {
	if atom.Kind == ast.AtomText && normalizeText(atom.Value) == "" {
		return 0, &SemanticError{Pos: atom.Span, Msg: "empty text target"}
	}

	cands := scoreAtom(atom, m)
	if len(cands) > 0 {
		return selectMatch(cands, atom.String(), req.strategy(), m, atom.Span)
	}
	if id, ok := findByTextOrSelector(m, atom.Value); ok {
		return id, nil
	}
	return 0, r.noMatchError(atom)
}

// noMatchError builds the not-found error for a semantic atom, with a
// syntax hint when the text is numeric and was probably meant as an ID.
func (r *Resolver) noMatchError(atom ast.TargetAtom) *SemanticError {
	err := errNoMatch(atom.Span, atom.String())
	if atom.Kind == ast.AtomText && looksNumeric(atom.Value) {
		err.Msg += "; numbers without quotes address element IDs, run observe to list them"
	}
	return err
}

func looksNumeric(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// resolveAnchor resolves a relation anchor. Anchors are geometry only:
// first match, no requirement validation, no fallback sweeps.
func (r *Resolver) resolveAnchor(ctx context.Context, atom ast.TargetAtom, m *ElementMap) (uint32, error) {
	switch atom.Kind {
	case ast.AtomID:
		if _, ok := m.Get(atom.ID); !ok {
			return 0, &SemanticError{
				Pos:  atom.Span,
				Msg:  fmt.Sprintf("anchor element %d not found", atom.ID),
				Code: schemas.CodeElementNotFound,
			}
		}
		return atom.ID, nil
	case ast.AtomCss, ast.AtomXPath:
		ids, err := r.querySelector(ctx, atom)
		if err != nil {
			return 0, err
		}
		if len(ids) == 0 {
			return 0, errNoMatch(atom.Span, atom.String())
		}
		return ids[0], nil
	default:
		cands := scoreAtom(atom, m)
		return selectMatch(cands, atom.String(), StrategyFirst, m, atom.Span)
	}
}

// resolveRelational picks the candidate for atom that best satisfies the
// relation against an already-resolved anchor.
func (r *Resolver) resolveRelational(ctx context.Context, atom ast.TargetAtom, rel ast.Relation, anchorID uint32, strat Strategy, m *ElementMap) (uint32, error) {
	anchor, ok := m.Get(anchorID)
	if !ok {
		return 0, &SemanticError{
			Pos:  atom.Span,
			Msg:  fmt.Sprintf("anchor element %d not found", anchorID),
			Code: schemas.CodeElementNotFound,
		}
	}

	cands, err := r.candidatesFor(ctx, atom, m)
	if err != nil {
		return 0, err
	}

	desc := fmt.Sprintf("%s %s element %d", atom.String(), rel, anchorID)
	scored := make([]scoredMatch, 0, len(cands))
	for _, id := range cands {
		e, ok := m.Get(id)
		if !ok {
			continue
		}
		if score, ok := relationScore(rel, e.Rect, anchor.Rect); ok {
			scored = append(scored, scoredMatch{id: id, score: score})
		}
	}
	return selectMatch(scored, desc, strat, m, atom.Span)
}

// candidatesFor lists every element an atom could stand for, in scan
// order. Selector atoms ask the page; everything else works off the map.
func (r *Resolver) candidatesFor(ctx context.Context, atom ast.TargetAtom, m *ElementMap) ([]uint32, error) {
	switch atom.Kind {
	case ast.AtomID:
		if _, ok := m.Get(atom.ID); !ok {
			return nil, nil
		}
		return []uint32{atom.ID}, nil
	case ast.AtomCss, ast.AtomXPath:
		return r.querySelector(ctx, atom)
	default:
		cands := scoreAtom(atom, m)
		ids := make([]uint32, len(cands))
		for i, c := range cands {
			ids[i] = c.id
		}
		return ids, nil
	}
}

// querySelector validates a selector locally and evaluates it against
// the page. Selector targets never fail for not being numeric IDs; they
// fail only on syntax or on matching nothing.
func (r *Resolver) querySelector(ctx context.Context, atom ast.TargetAtom) ([]uint32, error) {
	kind := "css"
	if atom.Kind == ast.AtomXPath {
		kind = "xpath"
	}
	if err := ValidateSelector(kind, atom.Value); err != nil {
		return nil, &SemanticError{
			Pos:  atom.Span,
			Msg:  err.Error(),
			Code: schemas.CodeSelectorInvalid,
		}
	}
	if r.selectors == nil {
		return nil, &SemanticError{
			Pos:  atom.Span,
			Msg:  "selector targets need a live page",
			Code: schemas.CodeNotSupported,
		}
	}
	return r.selectors.ResolveSelector(ctx, kind, atom.Value)
}
