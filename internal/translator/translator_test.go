package translator

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/oil-cli/api/schemas"
	"github.com/xkilldash9x/oil-cli/internal/ast"
)

func idTarget(id uint32) ast.Target {
	return ast.Target{Primary: ast.IDAtom(id, ast.Span{Line: 1, Col: 7})}
}

func textTarget(s string) ast.Target {
	return ast.Target{Primary: ast.TextAtom(s, ast.Span{Line: 1, Col: 7})}
}

func uptr(v uint32) *uint32 { return &v }
func iptr(v int) *int       { return &v }

func TestTranslateRequests(t *testing.T) {
	amount := 250.0
	delay := 40.0

	cases := []struct {
		name string
		cmd  ast.Command
		want schemas.Request
	}{
		{
			"observe with flags",
			&ast.ObserveCmd{Full: true, Hidden: true, Near: "header", Timeout: ast.Duration(5000)},
			&schemas.ScanRequest{Cmd: "scan", Full: true, Hidden: true, Near: "header", TimeoutMs: 5000},
		},
		{
			"plain click",
			&ast.ClickCmd{Target: idTarget(5)},
			&schemas.ClickRequest{Cmd: "click", ID: 5},
		},
		{
			"right double click with modifiers",
			&ast.ClickCmd{Target: idTarget(5), Right: true, Double: true, Ctrl: true, Shift: true},
			&schemas.ClickRequest{Cmd: "click", ID: 5, Button: "right", ClickCount: 2, Modifiers: modCtrl | modShift},
		},
		{
			"forced middle click",
			&ast.ClickCmd{Target: idTarget(9), Middle: true, Force: true, Alt: true},
			&schemas.ClickRequest{Cmd: "click", ID: 9, Button: "middle", Modifiers: modAlt, Force: true},
		},
		{
			"type with options",
			&ast.TypeCmd{Target: idTarget(2), Text: "hi", Clear: true, Enter: true, Delay: &delay},
			&schemas.TypeRequest{Cmd: "type", ID: 2, Text: "hi", Clear: true, Submit: true, DelayMs: 40},
		},
		{
			"clear",
			&ast.ClearCmd{Target: idTarget(3)},
			&schemas.ClearRequest{Cmd: "clear", ID: 3},
		},
		{
			"select by index",
			&ast.SelectCmd{Target: idTarget(4), Value: "2"},
			&schemas.SelectRequest{Cmd: "select", ID: 4, Index: iptr(2)},
		},
		{
			"select by label",
			&ast.SelectCmd{Target: idTarget(4), Value: "France"},
			&schemas.SelectRequest{Cmd: "select", ID: 4, Label: "France"},
		},
		{
			"negative select value is a label",
			&ast.SelectCmd{Target: idTarget(4), Value: "-1"},
			&schemas.SelectRequest{Cmd: "select", ID: 4, Label: "-1"},
		},
		{
			"check",
			&ast.CheckCmd{Target: idTarget(6)},
			&schemas.CheckRequest{Cmd: "check", ID: 6, Checked: true},
		},
		{
			"uncheck",
			&ast.UncheckCmd{Target: idTarget(6)},
			&schemas.CheckRequest{Cmd: "check", ID: 6, Checked: false},
		},
		{
			"hover",
			&ast.HoverCmd{Target: idTarget(7)},
			&schemas.HoverRequest{Cmd: "hover", ID: 7},
		},
		{
			"focus",
			&ast.FocusCmd{Target: idTarget(8)},
			&schemas.FocusRequest{Cmd: "focus", ID: 8},
		},
		{
			"submit resolved target",
			&ast.SubmitCmd{Target: &ast.Target{Primary: ast.IDAtom(12, ast.Span{})}},
			&schemas.SubmitRequest{Cmd: "submit", ID: uptr(12)},
		},
		{
			"submit without target falls back to containing form",
			&ast.SubmitCmd{},
			&schemas.SubmitRequest{Cmd: "submit", Resolve: "containing_form"},
		},
		{
			"scroll page down",
			&ast.ScrollCmd{Direction: "down", Page: true},
			&schemas.ScrollRequest{Cmd: "scroll", Direction: "down", Page: true},
		},
		{
			"scroll amount",
			&ast.ScrollCmd{Direction: "up", Amount: &amount},
			&schemas.ScrollRequest{Cmd: "scroll", Direction: "up", Amount: 250},
		},
		{
			"scroll to element",
			&ast.ScrollCmd{Target: &ast.Target{Primary: ast.IDAtom(3, ast.Span{})}},
			&schemas.ScrollRequest{Cmd: "scroll", ID: uptr(3)},
		},
		{
			"text of element",
			&ast.TextCmd{Target: &ast.Target{Primary: ast.IDAtom(4, ast.Span{})}},
			&schemas.TextRequest{Cmd: "text", ID: uptr(4)},
		},
		{
			"text of selector",
			&ast.TextCmd{Target: &ast.Target{Primary: ast.CssAtom(".article", ast.Span{})}},
			&schemas.TextRequest{Cmd: "text", Selector: ".article"},
		},
		{
			"text of page",
			&ast.TextCmd{},
			&schemas.TextRequest{Cmd: "text"},
		},
		{
			"html",
			&ast.HTMLCmd{Selector: "#main"},
			&schemas.HTMLRequest{Cmd: "html", Selector: "#main"},
		},
		{
			"extract links scoped",
			&ast.ExtractCmd{What: ast.ExtractLinks, Selector: "nav", Format: "json"},
			&schemas.ExtractRequest{Cmd: "extract", What: "links", Selector: "nav", Format: "json"},
		},
		{
			"extract css carries its argument as the selector",
			&ast.ExtractCmd{What: ast.ExtractCss, CssArg: ".price"},
			&schemas.ExtractRequest{Cmd: "extract", What: "css", Selector: ".price"},
		},
		{
			"box",
			&ast.BoxCmd{Target: idTarget(2)},
			&schemas.BoxRequest{Cmd: "box", ID: 2},
		},
		{
			"highlight element",
			&ast.HighlightCmd{Target: &ast.Target{Primary: ast.IDAtom(5, ast.Span{})}, Duration: ast.Duration(2000), Color: "red"},
			&schemas.HighlightRequest{Cmd: "highlight", ID: uptr(5), DurationMs: 2000, Color: "red"},
		},
		{
			"highlight clear drops the target",
			&ast.HighlightCmd{Clear: true, Target: &ast.Target{Primary: ast.IDAtom(5, ast.Span{})}},
			&schemas.HighlightRequest{Cmd: "highlight", Clear: true},
		},
		{
			"storage defaults to local scope and list",
			&ast.StorageCmd{},
			&schemas.StorageRequest{Cmd: "storage", Scope: "local", Op: "list"},
		},
		{
			"storage session set",
			&ast.StorageCmd{Session: true, Op: "set", Key: "cart", Value: "3"},
			&schemas.StorageRequest{Cmd: "storage", Scope: "session", Op: "set", Name: "cart", Value: "3"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Translate(tc.cmd)
			require.NoError(t, err)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("request mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTranslateWaitConditions(t *testing.T) {
	tgt := func(a ast.TargetAtom) *ast.Target { return &ast.Target{Primary: a} }

	cases := []struct {
		name string
		cmd  *ast.WaitCmd
		want *schemas.WaitRequest
	}{
		{
			"load",
			&ast.WaitCmd{Cond: ast.WaitCondition{Kind: ast.WaitLoad}},
			&schemas.WaitRequest{Cmd: "wait", Condition: "load"},
		},
		{
			"idle",
			&ast.WaitCmd{Cond: ast.WaitCondition{Kind: ast.WaitIdle}},
			&schemas.WaitRequest{Cmd: "wait", Condition: "idle"},
		},
		{
			"visible by id",
			&ast.WaitCmd{Cond: ast.WaitCondition{Kind: ast.WaitVisible, Target: tgt(ast.IDAtom(5, ast.Span{}))}},
			&schemas.WaitRequest{Cmd: "wait", Condition: "visible", ID: uptr(5)},
		},
		{
			"visible by text rides the text field",
			&ast.WaitCmd{Cond: ast.WaitCondition{Kind: ast.WaitVisible, Target: tgt(ast.TextAtom("Thanks!", ast.Span{}))}},
			&schemas.WaitRequest{Cmd: "wait", Condition: "visible", Text: "Thanks!"},
		},
		{
			"hidden by role",
			&ast.WaitCmd{Cond: ast.WaitCondition{Kind: ast.WaitHidden, Target: tgt(ast.RoleAtom("dialog", ast.Span{}))}},
			&schemas.WaitRequest{Cmd: "wait", Condition: "hidden", Role: "dialog"},
		},
		{
			"visible by css",
			&ast.WaitCmd{Cond: ast.WaitCondition{Kind: ast.WaitVisible, Target: tgt(ast.CssAtom(".toast", ast.Span{}))}},
			&schemas.WaitRequest{Cmd: "wait", Condition: "visible", Selector: ".toast"},
		},
		{
			"exists",
			&ast.WaitCmd{Cond: ast.WaitCondition{Kind: ast.WaitExists, Selector: "#done"}},
			&schemas.WaitRequest{Cmd: "wait", Condition: "exists", Selector: "#done"},
		},
		{
			"gone",
			&ast.WaitCmd{Cond: ast.WaitCondition{Kind: ast.WaitGone, Selector: ".spinner"}},
			&schemas.WaitRequest{Cmd: "wait", Condition: "gone", Selector: ".spinner"},
		},
		{
			"url keeps its pattern",
			&ast.WaitCmd{Cond: ast.WaitCondition{Kind: ast.WaitURL, Pattern: "*/checkout/*"}},
			&schemas.WaitRequest{Cmd: "wait", Condition: "url", URL: "*/checkout/*"},
		},
		{
			"until carries the expression",
			&ast.WaitCmd{Cond: ast.WaitCondition{Kind: ast.WaitUntil, Expr: "window.ready === true"}},
			&schemas.WaitRequest{Cmd: "wait", Condition: "until", Expression: "window.ready === true"},
		},
		{
			"items",
			&ast.WaitCmd{Cond: ast.WaitCondition{Kind: ast.WaitItems, Selector: ".row", Count: 20}},
			&schemas.WaitRequest{Cmd: "wait", Condition: "items", Selector: ".row", Count: 20},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Translate(tc.cmd)
			require.NoError(t, err)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("request mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTranslateRejectsXPathWaitTarget(t *testing.T) {
	cmd := &ast.WaitCmd{Cond: ast.WaitCondition{
		Kind:   ast.WaitVisible,
		Target: &ast.Target{Primary: ast.XPathAtom("//div", ast.Span{Line: 1, Col: 14})},
	}}
	_, err := Translate(cmd)
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Contains(t, terr.Msg, "xpath")
}

func TestTranslateRejectsWaitTargetRelations(t *testing.T) {
	cmd := &ast.WaitCmd{Cond: ast.WaitCondition{
		Kind: ast.WaitVisible,
		Target: &ast.Target{
			Primary:   ast.TextAtom("Add", ast.Span{}),
			Relations: []ast.RelationTerm{{Rel: ast.RelNear, Atom: ast.TextAtom("Cart", ast.Span{})}},
		},
	}}
	_, err := Translate(cmd)
	assert.Error(t, err)
}

func TestTranslateRejectsUnresolvedActionTarget(t *testing.T) {
	cmds := []ast.Command{
		&ast.ClickCmd{Target: textTarget("Buy")},
		&ast.TypeCmd{Target: textTarget("Email"), Text: "x"},
		&ast.BoxCmd{Target: textTarget("Card")},
		&ast.SubmitCmd{Target: &ast.Target{Primary: ast.CssAtom("form", ast.Span{})}},
	}
	for _, cmd := range cmds {
		_, err := Translate(cmd)
		var terr *Error
		require.ErrorAs(t, err, &terr, "%T", cmd)
		assert.Contains(t, terr.Msg, "not resolved", "%T", cmd)
	}
}

func TestTranslateRejectsHostCommands(t *testing.T) {
	cmds := []ast.Command{
		&ast.GotoCmd{URL: "https://example.com"},
		&ast.BackCmd{},
		&ast.ScreenshotCmd{},
		&ast.PressCmd{},
		&ast.TabsCmd{},
	}
	for _, cmd := range cmds {
		_, err := Translate(cmd)
		var terr *Error
		require.ErrorAs(t, err, &terr, "%T", cmd)
		assert.Contains(t, terr.Msg, "no wire form", "%T", cmd)
		assert.False(t, HasWireForm(cmd), "%T", cmd)
	}
}

func TestTranslateRejectsUnloweredOverlayCommands(t *testing.T) {
	for _, cmd := range []ast.Command{&ast.DismissCmd{What: "modal"}, &ast.AcceptCookiesCmd{}} {
		_, err := Translate(cmd)
		var terr *Error
		require.ErrorAs(t, err, &terr, "%T", cmd)
		assert.Contains(t, terr.Msg, "resolution", "%T", cmd)
	}
}

func TestSubmitFallbackWireShape(t *testing.T) {
	// The no-target submit must encode the resolve sentinel and no id
	// field at all.
	req, err := Translate(&ast.SubmitCmd{})
	require.NoError(t, err)

	data, err := schemas.EncodeRequest(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"cmd":"submit","resolve":"containing_form"}`, string(data))
}

func TestClickWireShape(t *testing.T) {
	req, err := Translate(&ast.ClickCmd{Target: idTarget(7)})
	require.NoError(t, err)

	data, err := schemas.EncodeRequest(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"cmd":"click","id":7}`, string(data))
}
