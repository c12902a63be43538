package resolver

import (
	"sort"
	"strings"

	"github.com/xkilldash9x/oil-cli/api/schemas"
)

// inferenceRule proposes a concrete element for a command that was given
// no target. Rules are tried in descending priority; the first rule whose
// proposal exists in the map wins.
type inferenceRule struct {
	name     string
	priority int
	infer    func(*ElementMap) (uint32, bool)
}

// inferenceRules returns the rule table for a requirement. Requirements
// without a table cannot be inferred.
func inferenceRules(req TargetRequirement) []inferenceRule {
	switch req {
	case ReqSubmittable:
		return submittableRules
	case ReqFormContainer:
		return formContainerRules
	case ReqDismissable:
		return dismissableRules
	case ReqAcceptable:
		return acceptableRules
	default:
		return nil
	}
}

// inferTarget runs the rule table for a requirement, most specific rule
// first. It returns the winning rule's name alongside the element for
// diagnostics.
func inferTarget(req TargetRequirement, m *ElementMap) (uint32, string, bool) {
	rules := inferenceRules(req)
	if len(rules) == 0 {
		return 0, "", false
	}
	ordered := make([]inferenceRule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].priority > ordered[j].priority })

	for _, rule := range ordered {
		id, ok := rule.infer(m)
		if !ok {
			continue
		}
		if _, exists := m.Get(id); !exists {
			continue
		}
		return id, rule.name, true
	}
	return 0, "", false
}

func isSubmitButton(e *schemas.Element) bool {
	return (e.Type == "button" || e.Type == "input") && attrIn(e, "type", "submit")
}

func isModal(e *schemas.Element) bool {
	return e.Type == "dialog" || roleIn(e, "dialog", "alertdialog")
}

func isCloseButton(e *schemas.Element) bool {
	if strings.Contains(strings.ToLower(e.Attr("aria-label")), "close") {
		return true
	}
	t := normalizeText(e.Text)
	return t == "x" || t == "close"
}

func isAcceptButton(e *schemas.Element) bool {
	if e.Type != "button" {
		return false
	}
	t := normalizeText(e.Text)
	return t == "accept" || strings.Contains(t, "allow all") || strings.Contains(t, "agree")
}

// insideOf reports elements drawn within a container's box, excluding the
// container itself.
func insideOf(container *schemas.Element) func(*schemas.Element) bool {
	return func(e *schemas.Element) bool {
		return e.ID != container.ID && container.Rect.Contains(e.Rect)
	}
}

var submittableRules = []inferenceRule{
	{
		name:     "login_pattern_submit",
		priority: 100,
		infer: func(m *ElementMap) (uint32, bool) {
			return m.PatternSlot(PatternLogin, SlotLoginSubmit)
		},
	},
	{
		name:     "search_pattern_submit",
		priority: 95,
		infer: func(m *ElementMap) (uint32, bool) {
			return m.PatternSlot(PatternSearch, SlotSearchSubmit)
		},
	},
	{
		name:     "single_form_submit",
		priority: 80,
		infer: func(m *ElementMap) (uint32, bool) {
			form, ok := m.findSingle(func(e *schemas.Element) bool { return e.Type == "form" })
			if !ok {
				return 0, false
			}
			within := insideOf(form)
			btn, ok := m.findFirst(func(e *schemas.Element) bool {
				return within(e) && isSubmitButton(e)
			})
			if !ok {
				return 0, false
			}
			return btn.ID, true
		},
	},
	{
		name:     "any_submit_button",
		priority: 60,
		infer: func(m *ElementMap) (uint32, bool) {
			btn, ok := m.findFirst(isSubmitButton)
			if !ok {
				return 0, false
			}
			return btn.ID, true
		},
	},
}

var formContainerRules = []inferenceRule{
	{
		name:     "form_with_focus",
		priority: 100,
		infer: func(m *ElementMap) (uint32, bool) {
			focusedID, ok := m.Focused()
			if !ok {
				return 0, false
			}
			focused, ok := m.Get(focusedID)
			if !ok {
				return 0, false
			}
			form, ok := m.findFirst(func(e *schemas.Element) bool {
				return e.Type == "form" && e.Rect.Contains(focused.Rect)
			})
			if !ok {
				return 0, false
			}
			return form.ID, true
		},
	},
	{
		name:     "login_form_pattern",
		priority: 90,
		infer: func(m *ElementMap) (uint32, bool) {
			passID, ok := m.PatternSlot(PatternLogin, SlotLoginPassword)
			if !ok {
				return 0, false
			}
			pass, ok := m.Get(passID)
			if !ok {
				return 0, false
			}
			form, ok := m.findFirst(func(e *schemas.Element) bool {
				return e.Type == "form" && e.Rect.Contains(pass.Rect)
			})
			if !ok {
				return 0, false
			}
			return form.ID, true
		},
	},
	{
		name:     "single_form",
		priority: 80,
		infer: func(m *ElementMap) (uint32, bool) {
			form, ok := m.findSingle(func(e *schemas.Element) bool { return e.Type == "form" })
			if !ok {
				return 0, false
			}
			return form.ID, true
		},
	},
}

var dismissableRules = []inferenceRule{
	{
		name:     "modal_pattern_close",
		priority: 100,
		infer: func(m *ElementMap) (uint32, bool) {
			return m.PatternSlot(PatternModal, SlotModalClose)
		},
	},
	{
		name:     "cookie_banner_reject",
		priority: 95,
		infer: func(m *ElementMap) (uint32, bool) {
			return m.PatternSlot(PatternCookieBanner, SlotCookieReject)
		},
	},
	{
		name:     "any_modal_close",
		priority: 80,
		infer: func(m *ElementMap) (uint32, bool) {
			modal, ok := m.findSingle(isModal)
			if !ok {
				return 0, false
			}
			within := insideOf(modal)
			btn, ok := m.findFirst(func(e *schemas.Element) bool {
				return within(e) && isCloseButton(e)
			})
			if !ok {
				return 0, false
			}
			return btn.ID, true
		},
	},
}

var acceptableRules = []inferenceRule{
	{
		name:     "cookie_banner_accept",
		priority: 100,
		infer: func(m *ElementMap) (uint32, bool) {
			return m.PatternSlot(PatternCookieBanner, SlotCookieAccept)
		},
	},
	{
		name:     "modal_pattern_confirm",
		priority: 95,
		infer: func(m *ElementMap) (uint32, bool) {
			return m.PatternSlot(PatternModal, SlotModalConfirm)
		},
	},
	{
		name:     "any_accept_button",
		priority: 60,
		infer: func(m *ElementMap) (uint32, bool) {
			btn, ok := m.findFirst(isAcceptButton)
			if !ok {
				return 0, false
			}
			return btn.ID, true
		},
	},
}
