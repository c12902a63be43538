package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/oil-cli/api/schemas"
)

func TestValidateRequirement(t *testing.T) {
	cases := []struct {
		name string
		elem schemas.Element
		req  TargetRequirement
		want bool
	}{
		{"input is typeable", el(1, "input"), ReqTypeable, true},
		{"textarea is typeable", el(1, "textarea"), ReqTypeable, true},
		{"select is typeable", el(1, "select"), ReqTypeable, true},
		{"contenteditable div is typeable", el(1, "div", attr("contenteditable", "true")), ReqTypeable, true},
		{"plain div is not typeable", el(1, "div"), ReqTypeable, false},

		{"button is clickable", el(1, "button"), ReqClickable, true},
		{"anchor is clickable", el(1, "a"), ReqClickable, true},
		{"role button is clickable", el(1, "div", role("button")), ReqClickable, true},
		{"submit input is clickable", el(1, "input", attr("type", "submit")), ReqClickable, true},
		{"text input is not clickable", el(1, "input", attr("type", "text")), ReqClickable, false},

		{"checkbox is checkable", el(1, "input", attr("type", "checkbox")), ReqCheckable, true},
		{"radio is checkable", el(1, "input", attr("type", "radio")), ReqCheckable, true},
		{"role switch is checkable", el(1, "div", role("switch")), ReqCheckable, true},
		{"text input is not checkable", el(1, "input", attr("type", "text")), ReqCheckable, false},

		{"form is submittable", el(1, "form"), ReqSubmittable, true},
		{"bare button is submittable", el(1, "button"), ReqSubmittable, true},
		{"type=button is not submittable", el(1, "button", attr("type", "button")), ReqSubmittable, false},
		{"type=reset is not submittable", el(1, "button", attr("type", "reset")), ReqSubmittable, false},
		{"submit input is submittable", el(1, "input", attr("type", "submit")), ReqSubmittable, true},
		{"text input is not submittable", el(1, "input", attr("type", "text")), ReqSubmittable, false},

		{"select is selectable", el(1, "select"), ReqSelectable, true},
		{"role listbox is selectable", el(1, "div", role("listbox")), ReqSelectable, true},
		{"div is not selectable", el(1, "div"), ReqSelectable, false},

		{"button is dismissable", el(1, "button"), ReqDismissable, true},
		{"role link is dismissable", el(1, "span", role("link")), ReqDismissable, true},
		{"div is not dismissable", el(1, "div"), ReqDismissable, false},

		{"form is a form container", el(1, "form"), ReqFormContainer, true},
		{"div is not a form container", el(1, "div"), ReqFormContainer, false},

		{"anything satisfies any", el(1, "div"), ReqAny, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, validateRequirement(&tc.elem, tc.req))
		})
	}
}

func TestRequirementStrategyMapping(t *testing.T) {
	assert.Equal(t, StrategyPreferInput, ReqTypeable.strategy())
	assert.Equal(t, StrategyPreferClickable, ReqClickable.strategy())
	assert.Equal(t, StrategyPreferClickable, ReqDismissable.strategy())
	assert.Equal(t, StrategyPreferClickable, ReqAcceptable.strategy())
	assert.Equal(t, StrategyPreferCheckable, ReqCheckable.strategy())
	assert.Equal(t, StrategyBest, ReqAny.strategy())
	assert.Equal(t, StrategyBest, ReqSubmittable.strategy())
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "sign in", normalizeText("  Sign\t IN \n"))
	assert.Equal(t, "a b c", normalizeText("A  B  C"))
	assert.Equal(t, "", normalizeText("   "))
	assert.Equal(t, "", normalizeText(""))
}

func TestAssociationIgnoresNonLabelTypes(t *testing.T) {
	img := el(1, "img", attr("aria-label", "Search"))
	m := mapOf(img, el(2, "input", attr("type", "text")))

	_, ok := findAssociatedControl(&img, ReqTypeable, m)
	assert.False(t, ok)
}

func TestAssociationForAttrRequiresMatchingControl(t *testing.T) {
	label := el(1, "label", text("Age"), attr("for", "age"))

	t.Run("control present", func(t *testing.T) {
		m := mapOf(label, el(2, "input", attr("id", "age"), attr("type", "number")))
		id, ok := findAssociatedControl(&label, ReqTypeable, m)
		require.True(t, ok)
		assert.Equal(t, uint32(2), id)
	})

	t.Run("control fails requirement", func(t *testing.T) {
		m := mapOf(label, el(2, "div", attr("id", "age")))
		_, ok := findAssociatedControl(&label, ReqTypeable, m)
		assert.False(t, ok)
	})
}

func TestAssociationNestedPicksLowestID(t *testing.T) {
	// Nested controls may be scanned before the label text; the lowest
	// ID wins rather than scan order.
	label := el(5, "label", text("Plan"), at(0, 0, 300, 40))
	m := mapOf(
		el(3, "input", attr("type", "radio"), at(10, 10, 20, 20)),
		label,
		el(7, "input", attr("type", "radio"), at(40, 10, 20, 20)),
	)

	id, ok := findAssociatedControl(&label, ReqCheckable, m)
	require.True(t, ok)
	assert.Equal(t, uint32(3), id)
}

func TestAssociationAdjacentRespectsVerticalGap(t *testing.T) {
	label := el(1, "span", text("Promo code"), at(0, 0, 100, 20))

	t.Run("within gap", func(t *testing.T) {
		m := mapOf(label, el(2, "input", attr("type", "text"), at(0, 40, 200, 20)))
		id, ok := findAssociatedControl(&label, ReqTypeable, m)
		require.True(t, ok)
		assert.Equal(t, uint32(2), id)
	})

	t.Run("beyond gap", func(t *testing.T) {
		m := mapOf(label, el(2, "input", attr("type", "text"), at(0, 200, 200, 20)))
		_, ok := findAssociatedControl(&label, ReqTypeable, m)
		assert.False(t, ok)
	})
}

func TestAssociationAdjacentPrefersSameRow(t *testing.T) {
	label := el(1, "span", text("State"), at(0, 100, 80, 20))
	m := mapOf(
		label,
		el(2, "input", attr("type", "text"), at(0, 140, 200, 20)),
		el(3, "input", attr("type", "text"), at(90, 100, 100, 20)),
	)

	id, ok := findAssociatedControl(&label, ReqTypeable, m)
	require.True(t, ok)
	assert.Equal(t, uint32(3), id)
}
