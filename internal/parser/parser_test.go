package parser

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/oil-cli/internal/ast"
)

func mustParse(t *testing.T, line string) ast.Command {
	t.Helper()
	cmd, err := ParseCommand(line)
	require.NoError(t, err, "line %q", line)
	return cmd
}

func parseErr(t *testing.T, line string) *Error {
	t.Helper()
	_, err := ParseCommand(line)
	require.Error(t, err, "line %q", line)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	return perr
}

// sameTarget compares targets structurally, ignoring spans.
func sameTarget(t *testing.T, want, got ast.Target) {
	t.Helper()
	if diff := cmp.Diff(want, got, cmpopts.IgnoreTypes(ast.Span{})); diff != "" {
		t.Errorf("target mismatch (-want +got):\n%s", diff)
	}
}

func TestParseGoto(t *testing.T) {
	cmd := mustParse(t, "goto example.com").(*ast.GotoCmd)
	assert.Equal(t, "example.com", cmd.URL)
	assert.Zero(t, cmd.Timeout)

	cmd = mustParse(t, `goto https://example.com/login --headers "accept-language: fr" --timeout 30s`).(*ast.GotoCmd)
	assert.Equal(t, "https://example.com/login", cmd.URL)
	assert.Equal(t, "accept-language: fr", cmd.Headers)
	assert.Equal(t, ast.Duration(30000), cmd.Timeout)
}

func TestParseGotoKeepsFragment(t *testing.T) {
	cmd := mustParse(t, "goto example.com#pricing").(*ast.GotoCmd)
	assert.Equal(t, "example.com#pricing", cmd.URL)
}

func TestParseTargets(t *testing.T) {
	tests := []struct {
		name string
		line string
		want ast.Target
	}{
		{"id", "click 5", ast.Target{Primary: ast.IDAtom(5, ast.Span{})}},
		{"text", `click "Sign in"`, ast.Target{Primary: ast.TextAtom("Sign in", ast.Span{})}},
		{"role", "click button", ast.Target{Primary: ast.RoleAtom("button", ast.Span{})}},
		{"css", `click css(".btn.primary")`, ast.Target{Primary: ast.CssAtom(".btn.primary", ast.Span{})}},
		{"xpath", `click xpath("//a[1]")`, ast.Target{Primary: ast.XPathAtom("//a[1]", ast.Span{})}},
		{
			"relation chain stays flat and ordered",
			`click "Save" inside "form" near 3`,
			ast.Target{
				Primary: ast.TextAtom("Save", ast.Span{}),
				Relations: []ast.RelationTerm{
					{Rel: ast.RelInside, Atom: ast.TextAtom("form", ast.Span{})},
					{Rel: ast.RelNear, Atom: ast.IDAtom(3, ast.Span{})},
				},
			},
		},
		{
			"contains relation",
			`check checkbox inside "Terms" contains "agree"`,
			ast.Target{
				Primary: ast.RoleAtom("checkbox", ast.Span{}),
				Relations: []ast.RelationTerm{
					{Rel: ast.RelInside, Atom: ast.TextAtom("Terms", ast.Span{})},
					{Rel: ast.RelContains, Atom: ast.TextAtom("agree", ast.Span{})},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := mustParse(t, tt.line)
			var got ast.Target
			switch c := cmd.(type) {
			case *ast.ClickCmd:
				got = c.Target
			case *ast.CheckCmd:
				got = c.Target
			default:
				t.Fatalf("unexpected command type %T", cmd)
			}
			sameTarget(t, tt.want, got)
		})
	}
}

func TestParseTargetErrors(t *testing.T) {
	tests := []struct {
		name string
		line string
		msg  string
	}{
		{"leading relation", "click near 5", "expected target"},
		{"relation without atom", `click 5 inside`, "expected target"},
		{"fractional id", "click 1.5", "element id"},
		{"negative id", "click -1", "element id"},
		{"glued comment", "click 5#comment", "invalid target"},
		{"missing target", "click", "expected target"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			perr := parseErr(t, tt.line)
			assert.Contains(t, perr.Error(), tt.msg)
		})
	}
}

func TestParseClickOptions(t *testing.T) {
	cmd := mustParse(t, "click 5 --double --force --ctrl --timeout 2s").(*ast.ClickCmd)
	assert.True(t, cmd.Double)
	assert.True(t, cmd.Force)
	assert.True(t, cmd.Ctrl)
	assert.False(t, cmd.Right)
	assert.Equal(t, ast.Duration(2000), cmd.Timeout)
}

func TestParseRepeatedOptions(t *testing.T) {
	t.Run("repeated boolean folds to present", func(t *testing.T) {
		cmd := mustParse(t, "click 5 --force --force").(*ast.ClickCmd)
		assert.True(t, cmd.Force)
	})

	t.Run("repeated value keeps the last", func(t *testing.T) {
		cmd := mustParse(t, "click 5 --timeout 1s --timeout 250ms").(*ast.ClickCmd)
		assert.Equal(t, ast.Duration(250), cmd.Timeout)
	})

	t.Run("conflicting buttons still parse", func(t *testing.T) {
		// Policy violations like --right with --middle are for the
		// resolver to reject, not the grammar.
		cmd := mustParse(t, "click 5 --right --middle").(*ast.ClickCmd)
		assert.True(t, cmd.Right)
		assert.True(t, cmd.Middle)
	})
}

func TestParseOptionErrors(t *testing.T) {
	t.Run("unknown option lists the vocabulary", func(t *testing.T) {
		perr := parseErr(t, "click 5 --fast")
		assert.Contains(t, perr.Error(), "unknown option --fast")
		assert.Contains(t, perr.Expected, "--force")
		assert.Contains(t, perr.Expected, "--timeout")
	})

	t.Run("option valid for another command is rejected", func(t *testing.T) {
		perr := parseErr(t, "click 5 --fullpage")
		assert.Contains(t, perr.Error(), "unknown option --fullpage")
	})

	t.Run("missing value", func(t *testing.T) {
		perr := parseErr(t, "click 5 --timeout")
		assert.Contains(t, perr.Error(), "requires a value")
	})

	t.Run("wrong value kind", func(t *testing.T) {
		perr := parseErr(t, `type 1 "x" --delay fast`)
		assert.Contains(t, perr.Error(), "expects a number")
	})

	t.Run("bad duration unit", func(t *testing.T) {
		perr := parseErr(t, "click 5 --timeout 2h")
		assert.Contains(t, perr.Error(), "missing unit")
	})
}

func TestParseType(t *testing.T) {
	cmd := mustParse(t, `type 2 "user@example.com" --enter --delay 50`).(*ast.TypeCmd)
	sameTarget(t, ast.Target{Primary: ast.IDAtom(2, ast.Span{})}, cmd.Target)
	assert.Equal(t, "user@example.com", cmd.Text)
	assert.True(t, cmd.Enter)
	require.NotNil(t, cmd.Delay)
	assert.Equal(t, 50.0, *cmd.Delay)

	t.Run("text must be quoted", func(t *testing.T) {
		perr := parseErr(t, "type 2 hello")
		assert.Contains(t, perr.Error(), "expected text")
	})

	t.Run("escapes decode", func(t *testing.T) {
		cmd := mustParse(t, `type 2 "line\nbreak \"quoted\""`).(*ast.TypeCmd)
		assert.Equal(t, "line\nbreak \"quoted\"", cmd.Text)
	})

	t.Run("bad escape fails the line", func(t *testing.T) {
		perr := parseErr(t, `type 2 "bad \x escape"`)
		assert.Contains(t, perr.Error(), "unsupported escape")
	})
}

func TestParseWait(t *testing.T) {
	t.Run("bare conditions", func(t *testing.T) {
		for _, kind := range []string{"load", "idle", "navigation", "ready"} {
			cmd := mustParse(t, "wait "+kind).(*ast.WaitCmd)
			assert.Equal(t, ast.WaitKind(kind), cmd.Cond.Kind)
			assert.Nil(t, cmd.Cond.Target)
		}
	})

	t.Run("visible requires a target", func(t *testing.T) {
		cmd := mustParse(t, `wait visible "Checkout"`).(*ast.WaitCmd)
		require.NotNil(t, cmd.Cond.Target)
		sameTarget(t, ast.Target{Primary: ast.TextAtom("Checkout", ast.Span{})}, *cmd.Cond.Target)

		perr := parseErr(t, "wait visible")
		assert.Contains(t, perr.Error(), "expected target")
	})

	t.Run("hidden requires a target", func(t *testing.T) {
		perr := parseErr(t, "wait hidden")
		assert.Contains(t, perr.Error(), "expected target")
	})

	t.Run("exists takes a selector", func(t *testing.T) {
		cmd := mustParse(t, `wait exists ".toast"`).(*ast.WaitCmd)
		assert.Equal(t, ".toast", cmd.Cond.Selector)

		cmd = mustParse(t, `wait exists css(".toast")`).(*ast.WaitCmd)
		assert.Equal(t, ".toast", cmd.Cond.Selector)
	})

	t.Run("url and until take strings", func(t *testing.T) {
		cmd := mustParse(t, `wait url "**/dashboard"`).(*ast.WaitCmd)
		assert.Equal(t, "**/dashboard", cmd.Cond.Pattern)

		cmd = mustParse(t, `wait until "document.readyState === 'complete'"`).(*ast.WaitCmd)
		assert.Equal(t, "document.readyState === 'complete'", cmd.Cond.Expr)
	})

	t.Run("items takes selector and count", func(t *testing.T) {
		cmd := mustParse(t, `wait items ".result" 10 --timeout 5s`).(*ast.WaitCmd)
		assert.Equal(t, ".result", cmd.Cond.Selector)
		assert.Equal(t, 10.0, cmd.Cond.Count)
		assert.Equal(t, ast.Duration(5000), cmd.Timeout)
	})

	t.Run("unknown condition lists the vocabulary", func(t *testing.T) {
		perr := parseErr(t, "wait forever")
		assert.Contains(t, perr.Expected, "visible")
		assert.Contains(t, perr.Expected, "navigation")
	})
}

func TestParseScrollShapes(t *testing.T) {
	t.Run("bare", func(t *testing.T) {
		cmd := mustParse(t, "scroll").(*ast.ScrollCmd)
		assert.Empty(t, cmd.Direction)
		assert.Nil(t, cmd.Amount)
		assert.Nil(t, cmd.Target)
	})

	t.Run("direction", func(t *testing.T) {
		cmd := mustParse(t, "scroll down").(*ast.ScrollCmd)
		assert.Equal(t, "down", cmd.Direction)
	})

	t.Run("direction with amount", func(t *testing.T) {
		cmd := mustParse(t, "scroll down 250").(*ast.ScrollCmd)
		assert.Equal(t, "down", cmd.Direction)
		require.NotNil(t, cmd.Amount)
		assert.Equal(t, 250.0, *cmd.Amount)
	})

	t.Run("bare number is a target id, not an amount", func(t *testing.T) {
		cmd := mustParse(t, "scroll 7").(*ast.ScrollCmd)
		assert.Empty(t, cmd.Direction)
		assert.Nil(t, cmd.Amount)
		require.NotNil(t, cmd.Target)
		sameTarget(t, ast.Target{Primary: ast.IDAtom(7, ast.Span{})}, *cmd.Target)
	})

	t.Run("role target", func(t *testing.T) {
		cmd := mustParse(t, `scroll "Reviews"`).(*ast.ScrollCmd)
		require.NotNil(t, cmd.Target)
	})

	t.Run("page flag and timeout", func(t *testing.T) {
		cmd := mustParse(t, "scroll down --page --timeout 2s").(*ast.ScrollCmd)
		assert.True(t, cmd.Page)
		assert.Equal(t, ast.Duration(2000), cmd.Timeout)
	})

	t.Run("scroll until dispatches to its own command", func(t *testing.T) {
		cmd := mustParse(t, `scroll until "Load more" 400 --timeout 10s`).(*ast.ScrollUntilCmd)
		sameTarget(t, ast.Target{Primary: ast.TextAtom("Load more", ast.Span{})}, cmd.Target)
		require.NotNil(t, cmd.Amount)
		assert.Equal(t, 400.0, *cmd.Amount)
		assert.Equal(t, ast.Duration(10000), cmd.Timeout)
	})
}

func TestParsePress(t *testing.T) {
	t.Run("combo", func(t *testing.T) {
		cmd := mustParse(t, "press ctrl+shift+t").(*ast.PressCmd)
		assert.Equal(t, []string{"ctrl", "shift", "t"}, cmd.Combo.Tokens)
		assert.Equal(t, []string{"ctrl", "shift"}, cmd.Combo.Mods())
		assert.Equal(t, "t", cmd.Combo.Key())
	})

	t.Run("single named key", func(t *testing.T) {
		cmd := mustParse(t, "press enter").(*ast.PressCmd)
		assert.Equal(t, []string{"enter"}, cmd.Combo.Tokens)
	})

	t.Run("character key keeps its case", func(t *testing.T) {
		cmd := mustParse(t, "press A").(*ast.PressCmd)
		assert.Equal(t, "A", cmd.Combo.Key())
	})

	t.Run("unknown modifier", func(t *testing.T) {
		perr := parseErr(t, "press super+t")
		assert.Contains(t, perr.Error(), "unknown modifier")
		assert.Contains(t, perr.Expected, "ctrl")
	})

	t.Run("malformed combo", func(t *testing.T) {
		perr := parseErr(t, "press ctrl++")
		assert.Contains(t, perr.Error(), "malformed key combo")
	})
}

func TestParseKeyDefaults(t *testing.T) {
	assert.Equal(t, "escape", mustParse(t, "keydown escape").(*ast.KeydownCmd).Key)
	assert.Equal(t, "shift", mustParse(t, "keyup shift").(*ast.KeyupCmd).Key)
	assert.Equal(t, "all", mustParse(t, "keyup").(*ast.KeyupCmd).Key)
}

func TestParseSubcommands(t *testing.T) {
	t.Run("cookies defaults to list", func(t *testing.T) {
		cmd := mustParse(t, "cookies").(*ast.CookiesCmd)
		assert.Equal(t, ast.OpList, cmd.Op)
	})

	t.Run("cookies set", func(t *testing.T) {
		cmd := mustParse(t, `cookies set "theme" "dark"`).(*ast.CookiesCmd)
		assert.Equal(t, ast.OpSet, cmd.Op)
		assert.Equal(t, "theme", cmd.Name)
		assert.Equal(t, "dark", cmd.Value)
	})

	t.Run("cookies rejects unknown operations", func(t *testing.T) {
		perr := parseErr(t, "cookies wipe")
		assert.Contains(t, perr.Expected, "set")
		assert.Contains(t, perr.Expected, "delete")
	})

	t.Run("storage scope flags", func(t *testing.T) {
		cmd := mustParse(t, `storage --session get "cart"`).(*ast.StorageCmd)
		assert.True(t, cmd.Session)
		assert.False(t, cmd.Local)
		assert.Equal(t, ast.OpGet, cmd.Op)
		assert.Equal(t, "cart", cmd.Key)
	})

	t.Run("storage bare scope word", func(t *testing.T) {
		cmd := mustParse(t, "storage local clear").(*ast.StorageCmd)
		assert.True(t, cmd.Local)
		assert.Equal(t, ast.OpClear, cmd.Op)
	})

	t.Run("headers bare shows everything", func(t *testing.T) {
		cmd := mustParse(t, "headers").(*ast.HeadersCmd)
		assert.Empty(t, cmd.Op)
	})

	t.Run("headers set global", func(t *testing.T) {
		cmd := mustParse(t, `headers set "{\"X-Test\": \"1\"}"`).(*ast.HeadersCmd)
		assert.Equal(t, "set", cmd.Op)
		assert.Empty(t, cmd.Domain)
		assert.Equal(t, `{"X-Test": "1"}`, cmd.JSON)
	})

	t.Run("headers set for one domain", func(t *testing.T) {
		cmd := mustParse(t, `headers set "api.example.com" "{\"X-Test\": \"1\"}"`).(*ast.HeadersCmd)
		assert.Equal(t, "api.example.com", cmd.Domain)
		assert.Equal(t, `{"X-Test": "1"}`, cmd.JSON)
	})

	t.Run("session bare shows current", func(t *testing.T) {
		cmd := mustParse(t, "session").(*ast.SessionCmd)
		assert.Empty(t, cmd.Op)
	})

	t.Run("session new with mode", func(t *testing.T) {
		cmd := mustParse(t, `session new "work" --mode incognito`).(*ast.SessionCmd)
		assert.Equal(t, "new", cmd.Op)
		assert.Equal(t, "work", cmd.Session)
		assert.Equal(t, "incognito", cmd.Mode)
	})

	t.Run("tab close defaults to current", func(t *testing.T) {
		cmd := mustParse(t, "tab close").(*ast.TabCmd)
		assert.Equal(t, -1, cmd.Index)
	})

	t.Run("tab switch", func(t *testing.T) {
		cmd := mustParse(t, "tab switch 2").(*ast.TabCmd)
		assert.Equal(t, 2, cmd.Index)
	})

	t.Run("state ops are closed", func(t *testing.T) {
		cmd := mustParse(t, `state save "auth.json" --cookies-only`).(*ast.StateCmd)
		assert.Equal(t, "save", cmd.Op)
		assert.Equal(t, "auth.json", cmd.Path)
		assert.True(t, cmd.CookiesOnly)

		perr := parseErr(t, `state wipe "auth.json"`)
		assert.Equal(t, []string{"save", "load"}, perr.Expected)
	})
}

func TestParseIntents(t *testing.T) {
	t.Run("login is positional", func(t *testing.T) {
		cmd := mustParse(t, `login "bob" "hunter2" --no-submit`).(*ast.LoginCmd)
		assert.Equal(t, "bob", cmd.User)
		assert.Equal(t, "hunter2", cmd.Pass)
		assert.True(t, cmd.NoSubmit)
	})

	t.Run("search", func(t *testing.T) {
		cmd := mustParse(t, `search "mechanical keyboard" --submit enter --wait idle`).(*ast.SearchCmd)
		assert.Equal(t, "mechanical keyboard", cmd.Query)
		assert.Equal(t, "enter", cmd.Submit)
		assert.Equal(t, "idle", cmd.Wait)
	})

	t.Run("dismiss defaults to popups", func(t *testing.T) {
		assert.Equal(t, "popups", mustParse(t, "dismiss").(*ast.DismissCmd).What)
		assert.Equal(t, "newsletter", mustParse(t, `dismiss "newsletter"`).(*ast.DismissCmd).What)
	})

	t.Run("run with parameters", func(t *testing.T) {
		cmd := mustParse(t, `run checkout user="bob" qty=3`).(*ast.RunCmd)
		assert.Equal(t, "checkout", cmd.Intent)
		assert.Equal(t, []ast.Param{{Key: "user", Value: "bob"}, {Key: "qty", Value: "3"}}, cmd.Params)
	})

	t.Run("run rejects bare words", func(t *testing.T) {
		perr := parseErr(t, "run checkout fast")
		assert.Contains(t, perr.Error(), "name=value")
	})

	t.Run("pack operations", func(t *testing.T) {
		cmd := mustParse(t, "pack load shopping").(*ast.PackCmd)
		assert.Equal(t, "load", cmd.Op)
		assert.Equal(t, "shopping", cmd.Arg)
	})
}

func TestParseNetworkAndDiagnostics(t *testing.T) {
	t.Run("intercept rule", func(t *testing.T) {
		cmd := mustParse(t, `intercept "**/ads/**" --block`).(*ast.InterceptCmd)
		assert.Equal(t, "set", cmd.Op)
		assert.Equal(t, "**/ads/**", cmd.Pattern)
		assert.True(t, cmd.Block)
	})

	t.Run("intercept respond with status", func(t *testing.T) {
		cmd := mustParse(t, `intercept "**/api/flags" --respond "{}" --status 404`).(*ast.InterceptCmd)
		assert.Equal(t, "{}", cmd.Respond)
		assert.Equal(t, 404, cmd.Status)
	})

	t.Run("intercept clear", func(t *testing.T) {
		cmd := mustParse(t, `intercept clear "**/ads/**"`).(*ast.InterceptCmd)
		assert.Equal(t, "clear", cmd.Op)
		assert.Equal(t, "**/ads/**", cmd.Pattern)
	})

	t.Run("requests filters", func(t *testing.T) {
		cmd := mustParse(t, `requests --filter "api" --method POST --last 20`).(*ast.RequestsCmd)
		assert.Equal(t, "api", cmd.Filter)
		assert.Equal(t, "POST", cmd.Method)
		assert.Equal(t, 20, cmd.Last)
	})

	t.Run("console", func(t *testing.T) {
		cmd := mustParse(t, "console --level error --last 10").(*ast.ConsoleCmd)
		assert.Equal(t, "error", cmd.Level)
		assert.Equal(t, 10, cmd.Last)
	})
}

func TestParsePageControl(t *testing.T) {
	t.Run("viewport", func(t *testing.T) {
		cmd := mustParse(t, "viewport 1280 720").(*ast.ViewportCmd)
		assert.Equal(t, 1280.0, cmd.Width)
		assert.Equal(t, 720.0, cmd.Height)
	})

	t.Run("device by name", func(t *testing.T) {
		cmd := mustParse(t, `device "iPhone 14"`).(*ast.DeviceCmd)
		assert.Equal(t, "iPhone 14", cmd.Device)
	})

	t.Run("device reset", func(t *testing.T) {
		cmd := mustParse(t, "device reset").(*ast.DeviceCmd)
		assert.Empty(t, cmd.Device)
	})

	t.Run("media override", func(t *testing.T) {
		cmd := mustParse(t, "media prefers-color-scheme dark").(*ast.MediaCmd)
		assert.Equal(t, "prefers-color-scheme", cmd.Feature)
		assert.Equal(t, "dark", cmd.Value)
	})

	t.Run("frame defaults to main", func(t *testing.T) {
		assert.Equal(t, "main", mustParse(t, "frame").(*ast.FrameCmd).Kind)
		assert.Equal(t, "parent", mustParse(t, "frame parent").(*ast.FrameCmd).Kind)

		cmd := mustParse(t, `frame "checkout"`).(*ast.FrameCmd)
		assert.Equal(t, "target", cmd.Kind)
		require.NotNil(t, cmd.Target)
	})

	t.Run("dialog auto validates its mode", func(t *testing.T) {
		cmd := mustParse(t, "dialog auto dismiss").(*ast.DialogCmd)
		assert.Equal(t, "auto", cmd.Op)
		assert.Equal(t, "dismiss", cmd.Mode)

		perr := parseErr(t, "dialog auto maybe")
		assert.Equal(t, []string{"accept", "dismiss", "off"}, perr.Expected)
	})

	t.Run("dialog accept with prompt text", func(t *testing.T) {
		cmd := mustParse(t, `dialog accept "Jane"`).(*ast.DialogCmd)
		assert.Equal(t, "Jane", cmd.Text)
	})
}

func TestParseRecording(t *testing.T) {
	cmd := mustParse(t, `record start "demo.webm" --quality high`).(*ast.RecordCmd)
	assert.True(t, cmd.Start)
	assert.Equal(t, "demo.webm", cmd.Path)
	assert.Equal(t, "high", cmd.Quality)

	stop := mustParse(t, "record stop").(*ast.RecordCmd)
	assert.False(t, stop.Start)

	trace := mustParse(t, `trace start "profile.json"`).(*ast.TraceCmd)
	assert.True(t, trace.Start)
	assert.Equal(t, "profile.json", trace.Path)

	hl := mustParse(t, `highlight 5 --duration 3s --color red`).(*ast.HighlightCmd)
	require.NotNil(t, hl.Target)
	assert.Equal(t, ast.Duration(3000), hl.Duration)
	assert.Equal(t, "red", hl.Color)

	clear := mustParse(t, "highlight --clear").(*ast.HighlightCmd)
	assert.True(t, clear.Clear)
	assert.Nil(t, clear.Target)
}

func TestParseExtract(t *testing.T) {
	t.Run("builtin kinds", func(t *testing.T) {
		cmd := mustParse(t, "extract links").(*ast.ExtractCmd)
		assert.Equal(t, ast.ExtractLinks, cmd.What)
	})

	t.Run("css expression", func(t *testing.T) {
		cmd := mustParse(t, `extract css(".price") --format json`).(*ast.ExtractCmd)
		assert.Equal(t, ast.ExtractCss, cmd.What)
		assert.Equal(t, ".price", cmd.CssArg)
		assert.Equal(t, "json", cmd.Format)
	})

	t.Run("scoped kind", func(t *testing.T) {
		cmd := mustParse(t, `extract links "nav.main"`).(*ast.ExtractCmd)
		assert.Equal(t, ast.ExtractLinks, cmd.What)
		assert.Equal(t, "nav.main", cmd.Selector)
	})

	t.Run("unknown kind", func(t *testing.T) {
		perr := parseErr(t, "extract emails")
		assert.Contains(t, perr.Expected, "links")
		assert.Contains(t, perr.Expected, "css(...)")
	})
}

func TestParseAtomicLines(t *testing.T) {
	tests := []struct {
		name string
		line string
		msg  string
	}{
		{"trailing junk after command", "back 5", "unexpected trailing input"},
		{"trailing junk after target", `click 5 "extra"`, "unexpected trailing input"},
		{"unknown command", "teleport home", "unknown command"},
		{"unterminated string", `type 1 "oops`, "unterminated string"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			perr := parseErr(t, tt.line)
			assert.Contains(t, perr.Error(), tt.msg)
			assert.NotZero(t, perr.Pos.Line)
		})
	}
}

func TestParseScript(t *testing.T) {
	input := "# checkout flow\n" +
		"goto shop.example.com\n" +
		"\n" +
		"click \"Add to cart\" # first item\n" +
		"submit\n"

	script, err := Parse(input)
	require.NoError(t, err)
	require.Len(t, script.Lines, 4)

	assert.Nil(t, script.Lines[0].Command)
	assert.Equal(t, "checkout flow", script.Lines[0].Comment)
	assert.Equal(t, 1, script.Lines[0].No)

	assert.IsType(t, &ast.GotoCmd{}, script.Lines[1].Command)
	assert.Equal(t, 2, script.Lines[1].No)

	// The blank line is skipped, so line numbers jump.
	assert.Equal(t, 4, script.Lines[2].No)
	assert.Equal(t, "first item", script.Lines[2].Comment)
	assert.IsType(t, &ast.ClickCmd{}, script.Lines[2].Command)

	assert.Len(t, script.Commands(), 3)
}

func TestParseScriptReportsLineNumbers(t *testing.T) {
	input := "goto example.com\nclick 5 extra junk\n"
	_, err := Parse(input)
	require.Error(t, err)

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 2, perr.Pos.Line)
}

func TestParseCommentBoundaries(t *testing.T) {
	t.Run("comment after space drops from the command", func(t *testing.T) {
		line, err := ParseLine("click 5 # the blue one", 1)
		require.NoError(t, err)
		require.IsType(t, &ast.ClickCmd{}, line.Command)
		assert.Equal(t, "the blue one", line.Comment)
	})

	t.Run("glued hash is not a comment", func(t *testing.T) {
		_, err := ParseLine("click 5#comment", 1)
		require.Error(t, err)
	})

	t.Run("fragment in url survives", func(t *testing.T) {
		line, err := ParseLine("goto example.com#faq", 1)
		require.NoError(t, err)
		assert.Equal(t, "example.com#faq", line.Command.(*ast.GotoCmd).URL)
		assert.Empty(t, line.Comment)
	})
}
