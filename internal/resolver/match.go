package resolver

import (
	"sort"
	"strings"

	"github.com/xkilldash9x/oil-cli/api/schemas"
	"github.com/xkilldash9x/oil-cli/internal/ast"
)

// scoredMatch pairs a candidate with its match score. Slices of these
// keep scan order until ranked.
type scoredMatch struct {
	id    uint32
	score int
}

// textScore rates how well one element matches a normalized text needle.
// Each source is tried for an exact and a substring match; the best
// source wins. Visible text ranks above accessibility attributes, which
// rank above input metadata, so a button labeled Save beats an input
// named save.
func textScore(e *schemas.Element, needle string) int {
	best := 0
	score := func(raw string, exact, partial int) {
		if raw == "" {
			return
		}
		have := normalizeText(raw)
		switch {
		case have == needle:
			if exact > best {
				best = exact
			}
		case strings.Contains(have, needle):
			if partial > best {
				best = partial
			}
		}
	}
	score(e.Text, 100, 50)
	score(e.Attr("aria-label"), 90, 45)
	score(e.Attr("id"), 88, 44)
	score(e.Attr("name"), 86, 43)
	score(e.Attr("placeholder"), 80, 40)
	score(e.Attr("title"), 75, 37)
	score(e.Attr("value"), 70, 35)
	return best
}

// roleScore rates how well an element fills a semantic role. An explicit
// role attribute is authoritative, a type attribute is a strong hint, and
// the tag name alone still counts.
func roleScore(e *schemas.Element, role string) int {
	if strings.EqualFold(roleOf(e), role) {
		return 100
	}
	if strings.EqualFold(e.Attr("type"), role) {
		return 90
	}
	if strings.EqualFold(e.Type, role) {
		return 80
	}
	return 0
}

// scoreAtom scores every element in the map against a text or role atom,
// returning positive scorers in scan order.
func scoreAtom(atom ast.TargetAtom, m *ElementMap) []scoredMatch {
	var out []scoredMatch
	switch atom.Kind {
	case ast.AtomText:
		needle := normalizeText(atom.Value)
		if needle == "" {
			return nil
		}
		for i := range m.elements {
			if s := textScore(&m.elements[i], needle); s > 0 {
				out = append(out, scoredMatch{id: m.elements[i].ID, score: s})
			}
		}
	case ast.AtomRole:
		for i := range m.elements {
			if s := roleScore(&m.elements[i], atom.Value); s > 0 {
				out = append(out, scoredMatch{id: m.elements[i].ID, score: s})
			}
		}
	}
	return out
}

// relationScore rates a candidate rect against an anchor rect under one
// relation. Distance relations decay smoothly so the nearest satisfying
// element wins; containment is all or nothing.
func relationScore(rel ast.Relation, target, anchor schemas.Rect) (int, bool) {
	switch rel {
	case ast.RelNear:
		return int(10000.0 / (distCenter(target, anchor) + 1.0)), true
	case ast.RelInside:
		if anchor.Contains(target) {
			return 100, true
		}
	case ast.RelContains:
		if target.Contains(anchor) {
			return 100, true
		}
	case ast.RelAfter:
		if isAfter(target, anchor) {
			return int(10000.0 / (distL1(target, anchor) + 1.0)), true
		}
	case ast.RelBefore:
		if isBefore(target, anchor) {
			return int(10000.0 / (distL1(target, anchor) + 1.0)), true
		}
	}
	return 0, false
}

// strategyBonus boosts candidates matching the kind of element a command
// wants, without disqualifying the rest. A label and its input often
// score the same on text; the bonus tips the sort toward the input for
// type and toward the button for click.
func strategyBonus(strat Strategy, e *schemas.Element) int {
	switch strat {
	case StrategyPreferInput:
		if isInput(e) {
			return 50
		}
	case StrategyPreferClickable:
		if isClickable(e) {
			return 50
		}
	case StrategyPreferCheckable:
		if isCheckable(e) {
			return 50
		}
	}
	return 0
}

// selectMatch ranks scored candidates under a strategy and picks the
// winner. The sort is stable, so equal scores keep scan order and every
// strategy except unique stays deterministic. Unique refuses a tied top
// score instead of guessing.
func selectMatch(matches []scoredMatch, desc string, strat Strategy, m *ElementMap, pos ast.Span) (uint32, error) {
	if len(matches) == 0 {
		return 0, errNoMatch(pos, desc)
	}
	ranked := make([]scoredMatch, len(matches))
	copy(ranked, matches)
	for i := range ranked {
		if e, ok := m.Get(ranked[i].id); ok {
			ranked[i].score += strategyBonus(strat, e)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if strat == StrategyUnique && len(ranked) > 1 && ranked[0].score == ranked[1].score {
		ids := make([]uint32, len(ranked))
		for i, r := range ranked {
			ids[i] = r.id
		}
		return 0, errAmbiguous(pos, desc, ids)
	}
	return ranked[0].id, nil
}

// findByTextOrSelector is the last-resort sweep when scoring finds
// nothing: a raw substring match over recorded selectors, then raw exact
// and substring passes over text, aria-label, and placeholder. Raw
// comparison is deliberate; the needle may be a selector fragment whose
// casing matters.
func findByTextOrSelector(m *ElementMap, s string) (uint32, bool) {
	if s == "" {
		return 0, false
	}
	for i := range m.elements {
		e := &m.elements[i]
		if e.Selector != "" && strings.Contains(e.Selector, s) {
			return e.ID, true
		}
	}
	for i := range m.elements {
		e := &m.elements[i]
		for _, f := range [...]string{e.Text, e.Attr("aria-label"), e.Attr("placeholder")} {
			if f != "" && f == s {
				return e.ID, true
			}
		}
	}
	for i := range m.elements {
		e := &m.elements[i]
		for _, f := range [...]string{e.Text, e.Attr("aria-label"), e.Attr("placeholder")} {
			if f != "" && strings.Contains(f, s) {
				return e.ID, true
			}
		}
	}
	return 0, false
}
