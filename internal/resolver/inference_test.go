package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/oil-cli/api/schemas"
)

func TestInferSubmitPrefersLoginPattern(t *testing.T) {
	patterns := []schemas.Pattern{
		{Kind: PatternSearch, Elements: []uint32{1, 2}},
		{Kind: PatternLogin, Elements: []uint32{3, 4, 5}},
	}
	m := mapWithPatterns(patterns,
		el(1, "input", attr("type", "search")),
		el(2, "button", attr("type", "submit")),
		el(3, "input", attr("type", "text")),
		el(4, "input", attr("type", "password")),
		el(5, "button", attr("type", "submit")),
	)

	id, rule, ok := inferTarget(ReqSubmittable, m)
	require.True(t, ok)
	assert.Equal(t, uint32(5), id)
	assert.Equal(t, "login_pattern_submit", rule)
}

func TestInferSubmitFallsThroughEmptySlot(t *testing.T) {
	// A zero in the submit slot means the pattern was recognized without
	// one; the next rule must get its chance.
	patterns := []schemas.Pattern{{Kind: PatternLogin, Elements: []uint32{3, 4, 0}}}
	m := mapWithPatterns(patterns,
		el(3, "input", attr("type", "text")),
		el(4, "input", attr("type", "password")),
		el(9, "button", attr("type", "submit")),
	)

	id, rule, ok := inferTarget(ReqSubmittable, m)
	require.True(t, ok)
	assert.Equal(t, uint32(9), id)
	assert.Equal(t, "any_submit_button", rule)
}

func TestInferSubmitSkipsStalePatternMember(t *testing.T) {
	// A pattern can reference an element the scan no longer carries.
	patterns := []schemas.Pattern{{Kind: PatternLogin, Elements: []uint32{3, 4, 77}}}
	m := mapWithPatterns(patterns,
		el(3, "input", attr("type", "text")),
		el(4, "input", attr("type", "password")),
		el(9, "input", attr("type", "submit")),
	)

	id, rule, ok := inferTarget(ReqSubmittable, m)
	require.True(t, ok)
	assert.Equal(t, uint32(9), id)
	assert.Equal(t, "any_submit_button", rule)
}

func TestInferSubmitSingleFormScopesToForm(t *testing.T) {
	m := mapOf(
		el(1, "form", at(0, 0, 400, 300)),
		el(2, "button", attr("type", "submit"), at(500, 10, 60, 20)),
		el(3, "button", attr("type", "submit"), at(10, 250, 60, 20)),
	)

	id, rule, ok := inferTarget(ReqSubmittable, m)
	require.True(t, ok)
	assert.Equal(t, uint32(3), id, "submit button outside the form must lose")
	assert.Equal(t, "single_form_submit", rule)
}

func TestInferSubmitTwoFormsDropsToAnyButton(t *testing.T) {
	m := mapOf(
		el(1, "form", at(0, 0, 400, 300)),
		el(2, "form", at(0, 400, 400, 300)),
		el(3, "button", attr("type", "submit"), at(10, 250, 60, 20)),
	)

	id, rule, ok := inferTarget(ReqSubmittable, m)
	require.True(t, ok)
	assert.Equal(t, uint32(3), id)
	assert.Equal(t, "any_submit_button", rule)
}

func TestInferSubmitNothingToPropose(t *testing.T) {
	m := mapOf(el(1, "div", text("plain page")))

	_, _, ok := inferTarget(ReqSubmittable, m)
	assert.False(t, ok)
}

func TestInferDismissRulePriorities(t *testing.T) {
	t.Run("modal close beats cookie reject", func(t *testing.T) {
		patterns := []schemas.Pattern{
			{Kind: PatternCookieBanner, Elements: []uint32{1, 2, 3}},
			{Kind: PatternModal, Elements: []uint32{4, 5, 6}},
		}
		m := mapWithPatterns(patterns,
			el(1, "div"), el(2, "button"), el(3, "button"),
			el(4, "dialog"), el(5, "button"), el(6, "button"),
		)
		id, rule, ok := inferTarget(ReqDismissable, m)
		require.True(t, ok)
		assert.Equal(t, uint32(5), id)
		assert.Equal(t, "modal_pattern_close", rule)
	})

	t.Run("unrecognized modal found by scan", func(t *testing.T) {
		m := mapOf(
			el(1, "dialog", at(100, 100, 400, 300)),
			el(2, "button", text("x"), at(470, 110, 20, 20)),
			el(3, "button", text("Save"), at(120, 350, 60, 20)),
		)
		id, rule, ok := inferTarget(ReqDismissable, m)
		require.True(t, ok)
		assert.Equal(t, uint32(2), id)
		assert.Equal(t, "any_modal_close", rule)
	})

	t.Run("close by aria-label", func(t *testing.T) {
		m := mapOf(
			el(1, "div", role("alertdialog"), at(0, 0, 300, 200)),
			el(2, "button", attr("aria-label", "Close dialog"), at(270, 5, 20, 20)),
		)
		id, _, ok := inferTarget(ReqDismissable, m)
		require.True(t, ok)
		assert.Equal(t, uint32(2), id)
	})
}

func TestInferAcceptRulePriorities(t *testing.T) {
	t.Run("cookie accept beats modal confirm", func(t *testing.T) {
		patterns := []schemas.Pattern{
			{Kind: PatternModal, Elements: []uint32{4, 5, 6}},
			{Kind: PatternCookieBanner, Elements: []uint32{1, 2, 3}},
		}
		m := mapWithPatterns(patterns,
			el(1, "div"), el(2, "button"), el(3, "button"),
			el(4, "dialog"), el(5, "button"), el(6, "button"),
		)
		id, rule, ok := inferTarget(ReqAcceptable, m)
		require.True(t, ok)
		assert.Equal(t, uint32(2), id)
		assert.Equal(t, "cookie_banner_accept", rule)
	})

	t.Run("loose accept button by text", func(t *testing.T) {
		m := mapOf(
			el(1, "div", text("We value your privacy")),
			el(2, "button", text("Allow all cookies")),
		)
		id, rule, ok := inferTarget(ReqAcceptable, m)
		require.True(t, ok)
		assert.Equal(t, uint32(2), id)
		assert.Equal(t, "any_accept_button", rule)
	})
}

func TestInferFormContainer(t *testing.T) {
	t.Run("form with focus wins", func(t *testing.T) {
		m := mapOf(
			el(1, "form", at(0, 0, 400, 200)),
			el(2, "form", at(0, 300, 400, 200)),
			el(3, "input", attr("type", "text"), at(10, 310, 200, 20), focused()),
		)
		id, rule, ok := inferTarget(ReqFormContainer, m)
		require.True(t, ok)
		assert.Equal(t, uint32(2), id)
		assert.Equal(t, "form_with_focus", rule)
	})

	t.Run("login pattern locates its form", func(t *testing.T) {
		patterns := []schemas.Pattern{{Kind: PatternLogin, Elements: []uint32{3, 4, 0}}}
		m := mapWithPatterns(patterns,
			el(1, "form", at(0, 0, 400, 200)),
			el(2, "form", at(0, 300, 400, 200)),
			el(3, "input", attr("type", "text"), at(10, 310, 200, 20)),
			el(4, "input", attr("type", "password"), at(10, 340, 200, 20)),
		)
		id, rule, ok := inferTarget(ReqFormContainer, m)
		require.True(t, ok)
		assert.Equal(t, uint32(2), id)
		assert.Equal(t, "login_form_pattern", rule)
	})

	t.Run("single form", func(t *testing.T) {
		m := mapOf(
			el(1, "form", at(0, 0, 400, 200)),
			el(2, "div", at(0, 300, 400, 200)),
		)
		id, rule, ok := inferTarget(ReqFormContainer, m)
		require.True(t, ok)
		assert.Equal(t, uint32(1), id)
		assert.Equal(t, "single_form", rule)
	})
}

func TestInferUnsupportedRequirement(t *testing.T) {
	m := mapOf(el(1, "button", attr("type", "submit")))

	_, _, ok := inferTarget(ReqClickable, m)
	assert.False(t, ok)
}
