package parser

import (
	"math"
	"strconv"
	"strings"

	"github.com/xkilldash9x/oil-cli/internal/ast"
)

// buildLine lowers a line tree into a typed Line.
func buildLine(tree Node, lineNo int) (ast.Line, error) {
	line := ast.Line{No: lineNo, Span: tree.Span}
	for _, child := range tree.Children {
		if child.Rule == RuleComment {
			line.Comment = strings.TrimSpace(child.Text)
			continue
		}
		cmd, err := buildCommand(child)
		if err != nil {
			return ast.Line{}, err
		}
		line.Command = cmd
	}
	return line, nil
}

// buildCommand lowers one command node. Repeated boolean options fold to
// presence and repeated value options keep the last occurrence here;
// whether a combination is allowed is the resolver's call.
func buildCommand(n Node) (ast.Command, error) {
	meta := ast.Meta{Span: n.Span}
	opts := newOptions(n)

	switch n.Rule {

	// Navigation.
	case RuleGoto:
		url, err := valueText(n.Children[0])
		if err != nil {
			return nil, err
		}
		headers, err := opts.str("headers")
		if err != nil {
			return nil, err
		}
		timeout, err := opts.duration("timeout")
		if err != nil {
			return nil, err
		}
		return &ast.GotoCmd{Meta: meta, URL: url, Headers: headers, Timeout: timeout}, nil
	case RuleBack:
		return &ast.BackCmd{Meta: meta}, nil
	case RuleForward:
		return &ast.ForwardCmd{Meta: meta}, nil
	case RuleRefresh:
		return &ast.RefreshCmd{Meta: meta, Hard: opts.has("hard")}, nil
	case RuleURL:
		return &ast.URLCmd{Meta: meta}, nil

	// Observation.
	case RuleObserve:
		near, err := opts.str("near")
		if err != nil {
			return nil, err
		}
		timeout, err := opts.duration("timeout")
		if err != nil {
			return nil, err
		}
		return &ast.ObserveCmd{
			Meta:      meta,
			Full:      opts.has("full"),
			Minimal:   opts.has("minimal"),
			Viewport:  opts.has("viewport"),
			Hidden:    opts.has("hidden"),
			Positions: opts.has("positions"),
			Diff:      opts.has("diff"),
			Near:      near,
			Timeout:   timeout,
		}, nil
	case RuleHTML:
		cmd := &ast.HTMLCmd{Meta: meta}
		if len(n.Children) > 0 {
			sel, err := valueText(n.Children[0])
			if err != nil {
				return nil, err
			}
			cmd.Selector = sel
		}
		return cmd, nil
	case RuleText:
		target, err := optionalTarget(n)
		if err != nil {
			return nil, err
		}
		return &ast.TextCmd{Meta: meta, Target: target}, nil
	case RuleTitle:
		return &ast.TitleCmd{Meta: meta}, nil
	case RuleScreenshot:
		target, err := optionalTarget(n)
		if err != nil {
			return nil, err
		}
		output, err := opts.str("output")
		if err != nil {
			return nil, err
		}
		return &ast.ScreenshotCmd{
			Meta:     meta,
			Output:   output,
			Format:   opts.word("format"),
			FullPage: opts.has("fullpage"),
			Target:   target,
		}, nil
	case RuleBox:
		target, err := requiredTarget(n)
		if err != nil {
			return nil, err
		}
		return &ast.BoxCmd{Meta: meta, Target: target}, nil

	// Actions.
	case RuleClick:
		target, err := requiredTarget(n)
		if err != nil {
			return nil, err
		}
		timeout, err := opts.duration("timeout")
		if err != nil {
			return nil, err
		}
		return &ast.ClickCmd{
			Meta:    meta,
			Target:  target,
			Double:  opts.has("double"),
			Right:   opts.has("right"),
			Middle:  opts.has("middle"),
			Force:   opts.has("force"),
			Ctrl:    opts.has("ctrl"),
			Shift:   opts.has("shift"),
			Alt:     opts.has("alt"),
			Timeout: timeout,
		}, nil
	case RuleType:
		target, err := requiredTarget(n)
		if err != nil {
			return nil, err
		}
		text, err := stringAt(n, 0)
		if err != nil {
			return nil, err
		}
		delay, err := opts.number("delay")
		if err != nil {
			return nil, err
		}
		timeout, err := opts.duration("timeout")
		if err != nil {
			return nil, err
		}
		return &ast.TypeCmd{
			Meta:    meta,
			Target:  target,
			Text:    text,
			Append:  opts.has("append"),
			Enter:   opts.has("enter"),
			Delay:   delay,
			Clear:   opts.has("clear"),
			Timeout: timeout,
		}, nil
	case RuleClear:
		target, err := requiredTarget(n)
		if err != nil {
			return nil, err
		}
		return &ast.ClearCmd{Meta: meta, Target: target}, nil
	case RulePress:
		combo, err := buildKeyCombo(wordAt(n, 0))
		if err != nil {
			return nil, err
		}
		return &ast.PressCmd{Meta: meta, Combo: combo}, nil
	case RuleKeydown:
		return &ast.KeydownCmd{Meta: meta, Key: wordAt(n, 0).Text}, nil
	case RuleKeyup:
		key := "all"
		if w := n.children(RuleWord); len(w) > 0 {
			key = w[0].Text
		}
		return &ast.KeyupCmd{Meta: meta, Key: key}, nil
	case RuleKeys:
		return &ast.KeysCmd{Meta: meta}, nil
	case RuleSelect:
		target, err := requiredTarget(n)
		if err != nil {
			return nil, err
		}
		value, err := valueText(n.Children[1])
		if err != nil {
			return nil, err
		}
		return &ast.SelectCmd{Meta: meta, Target: target, Value: value}, nil
	case RuleCheck:
		target, err := requiredTarget(n)
		if err != nil {
			return nil, err
		}
		return &ast.CheckCmd{Meta: meta, Target: target}, nil
	case RuleUncheck:
		target, err := requiredTarget(n)
		if err != nil {
			return nil, err
		}
		return &ast.UncheckCmd{Meta: meta, Target: target}, nil
	case RuleHover:
		target, err := requiredTarget(n)
		if err != nil {
			return nil, err
		}
		return &ast.HoverCmd{Meta: meta, Target: target}, nil
	case RuleFocus:
		target, err := requiredTarget(n)
		if err != nil {
			return nil, err
		}
		return &ast.FocusCmd{Meta: meta, Target: target}, nil
	case RuleScroll:
		return buildScroll(n, meta, opts)
	case RuleScrollUntil:
		return buildScrollUntil(n, meta, opts)
	case RuleSubmit:
		target, err := optionalTarget(n)
		if err != nil {
			return nil, err
		}
		return &ast.SubmitCmd{Meta: meta, Target: target}, nil

	// Wait.
	case RuleWait:
		return buildWait(n, meta, opts)

	// Extraction.
	case RuleExtract:
		return buildExtract(n, meta, opts)

	// Session / state.
	case RuleCookies:
		op, rest := subOp(n)
		cmd := &ast.CookiesCmd{Meta: meta, Op: op}
		if err := fillKeyValue(cmd.Op, rest, &cmd.Name, &cmd.Value); err != nil {
			return nil, err
		}
		return cmd, nil
	case RuleStorage:
		op, rest := subOp(n)
		cmd := &ast.StorageCmd{
			Meta:    meta,
			Op:      op,
			Local:   opts.has("local"),
			Session: opts.has("session"),
		}
		if err := fillKeyValue(cmd.Op, rest, &cmd.Key, &cmd.Value); err != nil {
			return nil, err
		}
		return cmd, nil
	case RuleSessions:
		return &ast.SessionsCmd{Meta: meta}, nil
	case RuleSession:
		cmd := &ast.SessionCmd{Meta: meta, Mode: opts.word("mode")}
		if words := n.children(RuleWord); len(words) > 0 {
			cmd.Op = words[0].Text
		}
		if str, ok := n.child(RuleString); ok {
			name, err := valueText(str)
			if err != nil {
				return nil, err
			}
			cmd.Session = name
		} else if words := n.children(RuleWord); len(words) > 1 {
			cmd.Session = words[1].Text
		}
		return cmd, nil
	case RuleState:
		path, err := valueText(n.Children[1])
		if err != nil {
			return nil, err
		}
		domain, err := opts.str("domain")
		if err != nil {
			return nil, err
		}
		return &ast.StateCmd{
			Meta:           meta,
			Op:             wordAt(n, 0).Text,
			Path:           path,
			CookiesOnly:    opts.has("cookies-only"),
			Domain:         domain,
			IncludeSession: opts.has("include-session"),
			Merge:          opts.has("merge"),
		}, nil
	case RuleHeaders:
		return buildHeaders(n, meta)

	// Tabs.
	case RuleTabs:
		return &ast.TabsCmd{Meta: meta}, nil
	case RuleTab:
		return buildTab(n, meta)

	// Intents.
	case RuleLogin:
		user, err := stringAt(n, 0)
		if err != nil {
			return nil, err
		}
		pass, err := stringAt(n, 1)
		if err != nil {
			return nil, err
		}
		timeout, err := opts.duration("timeout")
		if err != nil {
			return nil, err
		}
		return &ast.LoginCmd{
			Meta:     meta,
			User:     user,
			Pass:     pass,
			NoSubmit: opts.has("no-submit"),
			Wait:     opts.word("wait"),
			Timeout:  timeout,
		}, nil
	case RuleSearch:
		query, err := stringAt(n, 0)
		if err != nil {
			return nil, err
		}
		timeout, err := opts.duration("timeout")
		if err != nil {
			return nil, err
		}
		return &ast.SearchCmd{
			Meta:    meta,
			Query:   query,
			Submit:  opts.word("submit"),
			Wait:    opts.word("wait"),
			Timeout: timeout,
		}, nil
	case RuleDismiss:
		what := "popups"
		if len(n.Children) > 0 {
			v, err := valueText(n.Children[0])
			if err != nil {
				return nil, err
			}
			what = v
		}
		return &ast.DismissCmd{Meta: meta, What: what}, nil
	case RuleAcceptCookies:
		return &ast.AcceptCookiesCmd{Meta: meta}, nil

	// Packs.
	case RulePacks:
		return &ast.PacksCmd{Meta: meta}, nil
	case RulePack:
		arg, err := valueText(n.Children[1])
		if err != nil {
			return nil, err
		}
		return &ast.PackCmd{Meta: meta, Op: wordAt(n, 0).Text, Arg: arg}, nil
	case RuleIntents:
		return &ast.IntentsCmd{Meta: meta, Session: opts.has("session")}, nil
	case RuleDefine:
		return &ast.DefineCmd{Meta: meta, Intent: wordAt(n, 0).Text}, nil
	case RuleUndefine:
		return &ast.UndefineCmd{Meta: meta, Intent: wordAt(n, 0).Text}, nil
	case RuleExport:
		out, err := opts.str("out")
		if err != nil {
			return nil, err
		}
		return &ast.ExportCmd{Meta: meta, Intent: wordAt(n, 0).Text, Out: out}, nil
	case RuleRun:
		return buildRun(n, meta)

	// Network.
	case RuleIntercept:
		return buildIntercept(n, meta, opts)
	case RuleRequests:
		filter, err := opts.str("filter")
		if err != nil {
			return nil, err
		}
		last, err := opts.integer("last")
		if err != nil {
			return nil, err
		}
		return &ast.RequestsCmd{Meta: meta, Filter: filter, Method: opts.word("method"), Last: last}, nil

	// Console / errors.
	case RuleConsole:
		filter, err := opts.str("filter")
		if err != nil {
			return nil, err
		}
		last, err := opts.integer("last")
		if err != nil {
			return nil, err
		}
		return &ast.ConsoleCmd{
			Meta:   meta,
			Clear:  opts.has("clear"),
			Level:  opts.word("level"),
			Filter: filter,
			Last:   last,
		}, nil
	case RuleErrors:
		last, err := opts.integer("last")
		if err != nil {
			return nil, err
		}
		return &ast.ErrorsCmd{Meta: meta, Clear: opts.has("clear"), Last: last}, nil

	// Frames.
	case RuleFrames:
		return &ast.FramesCmd{Meta: meta}, nil
	case RuleFrame:
		if w := n.children(RuleWord); len(w) > 0 {
			return &ast.FrameCmd{Meta: meta, Kind: w[0].Text}, nil
		}
		target, err := optionalTarget(n)
		if err != nil {
			return nil, err
		}
		if target == nil {
			return &ast.FrameCmd{Meta: meta, Kind: "main"}, nil
		}
		return &ast.FrameCmd{Meta: meta, Kind: "target", Target: target}, nil

	// Dialog.
	case RuleDialog:
		return buildDialog(n, meta)

	// Viewport / device / media.
	case RuleViewport:
		width, err := numberText(n.Children[0])
		if err != nil {
			return nil, err
		}
		height, err := numberText(n.Children[1])
		if err != nil {
			return nil, err
		}
		return &ast.ViewportCmd{Meta: meta, Width: width, Height: height}, nil
	case RuleDevice:
		cmd := &ast.DeviceCmd{Meta: meta}
		if len(n.Children) > 0 {
			name, err := valueText(n.Children[0])
			if err != nil {
				return nil, err
			}
			if n.Children[0].Rule == RuleWord && name == "reset" {
				name = ""
			}
			cmd.Device = name
		}
		return cmd, nil
	case RuleDevices:
		return &ast.DevicesCmd{Meta: meta}, nil
	case RuleMedia:
		cmd := &ast.MediaCmd{Meta: meta}
		if words := n.children(RuleWord); len(words) == 2 {
			cmd.Feature = words[0].Text
			cmd.Value = words[1].Text
		}
		return cmd, nil

	// Recording.
	case RuleTrace:
		cmd := &ast.TraceCmd{Meta: meta, Start: wordAt(n, 0).Text == "start"}
		if path, ok := tracePath(n); ok {
			p, err := valueText(path)
			if err != nil {
				return nil, err
			}
			cmd.Path = p
		}
		return cmd, nil
	case RuleRecord:
		cmd := &ast.RecordCmd{Meta: meta, Start: wordAt(n, 0).Text == "start", Quality: opts.word("quality")}
		if path, ok := tracePath(n); ok {
			p, err := valueText(path)
			if err != nil {
				return nil, err
			}
			cmd.Path = p
		}
		return cmd, nil
	case RuleHighlight:
		target, err := optionalTarget(n)
		if err != nil {
			return nil, err
		}
		duration, err := opts.duration("duration")
		if err != nil {
			return nil, err
		}
		return &ast.HighlightCmd{
			Meta:     meta,
			Clear:    opts.has("clear"),
			Target:   target,
			Duration: duration,
			Color:    opts.word("color"),
		}, nil

	// Utility.
	case RulePDF:
		path, err := valueText(n.Children[0])
		if err != nil {
			return nil, err
		}
		margin, err := opts.str("margin")
		if err != nil {
			return nil, err
		}
		return &ast.PDFCmd{
			Meta:      meta,
			Path:      path,
			Format:    opts.word("format"),
			Landscape: opts.has("landscape"),
			Margin:    margin,
		}, nil
	case RuleLearn:
		cmd := &ast.LearnCmd{Meta: meta, Op: wordAt(n, 0).Text}
		if words := n.children(RuleWord); len(words) > 1 {
			cmd.Intent = words[1].Text
		}
		return cmd, nil
	case RuleExit:
		return &ast.ExitCmd{Meta: meta}, nil
	case RuleHelp:
		cmd := &ast.HelpCmd{Meta: meta}
		if words := n.children(RuleWord); len(words) > 0 {
			cmd.Topic = words[0].Text
		}
		return cmd, nil
	}
	return nil, errAt(n.Span, "no builder for rule %s", n.Rule)
}

// -- Command-specific builders --

func buildScroll(n Node, meta ast.Meta, opts optionSet) (ast.Command, error) {
	cmd := &ast.ScrollCmd{Meta: meta, Page: opts.has("page")}
	timeout, err := opts.duration("timeout")
	if err != nil {
		return nil, err
	}
	cmd.Timeout = timeout

	if words := n.children(RuleWord); len(words) > 0 {
		cmd.Direction = words[0].Text
	}
	if nums := n.children(RuleNumber); len(nums) > 0 {
		amount, err := numberText(nums[0])
		if err != nil {
			return nil, err
		}
		cmd.Amount = &amount
	}
	target, err := optionalTarget(n)
	if err != nil {
		return nil, err
	}
	cmd.Target = target
	return cmd, nil
}

func buildScrollUntil(n Node, meta ast.Meta, opts optionSet) (ast.Command, error) {
	target, err := requiredTarget(n)
	if err != nil {
		return nil, err
	}
	cmd := &ast.ScrollUntilCmd{Meta: meta, Target: target, Page: opts.has("page")}
	if nums := n.children(RuleNumber); len(nums) > 0 {
		amount, err := numberText(nums[0])
		if err != nil {
			return nil, err
		}
		cmd.Amount = &amount
	}
	timeout, err := opts.duration("timeout")
	if err != nil {
		return nil, err
	}
	cmd.Timeout = timeout
	return cmd, nil
}

func buildWait(n Node, meta ast.Meta, opts optionSet) (ast.Command, error) {
	kind := ast.WaitKind(wordAt(n, 0).Text)
	cond := ast.WaitCondition{Kind: kind}

	switch kind {
	case ast.WaitVisible, ast.WaitHidden:
		target, err := requiredTarget(n)
		if err != nil {
			return nil, err
		}
		cond.Target = &target
	case ast.WaitExists, ast.WaitGone:
		sel, err := waitSelectorText(n)
		if err != nil {
			return nil, err
		}
		cond.Selector = sel
	case ast.WaitURL:
		pattern, err := stringAt(n, 0)
		if err != nil {
			return nil, err
		}
		cond.Pattern = pattern
	case ast.WaitUntil:
		expr, err := stringAt(n, 0)
		if err != nil {
			return nil, err
		}
		cond.Expr = expr
	case ast.WaitItems:
		sel, err := waitSelectorText(n)
		if err != nil {
			return nil, err
		}
		cond.Selector = sel
		nums := n.children(RuleNumber)
		count, err := numberText(nums[0])
		if err != nil {
			return nil, err
		}
		cond.Count = count
	}

	timeout, err := opts.duration("timeout")
	if err != nil {
		return nil, err
	}
	return &ast.WaitCmd{Meta: meta, Cond: cond, Timeout: timeout}, nil
}

// waitSelectorText reads the selector payload of exists/gone/items from
// either a quoted string or a css(...) expression.
func waitSelectorText(n Node) (string, error) {
	if str, ok := n.child(RuleString); ok {
		return ast.UnquoteString(str.Text)
	}
	if sel, ok := n.child(RuleAtomSel); ok {
		kind, body, err := splitSelectorExpr(sel)
		if err != nil {
			return "", err
		}
		if kind != "css" {
			return "", errAt(sel.Span, "wait selectors must be css, not %s", kind)
		}
		return body, nil
	}
	return "", errAt(n.Span, "missing wait selector")
}

func buildExtract(n Node, meta ast.Meta, opts optionSet) (ast.Command, error) {
	cmd := &ast.ExtractCmd{Meta: meta, Format: opts.word("format")}

	if sel, ok := n.child(RuleAtomSel); ok {
		kind, body, err := splitSelectorExpr(sel)
		if err != nil {
			return nil, err
		}
		if kind != "css" {
			return nil, errAt(sel.Span, "extract accepts css(...) expressions, not %s", kind)
		}
		cmd.What = ast.ExtractCss
		cmd.CssArg = body
	} else {
		cmd.What = ast.ExtractKind(wordAt(n, 0).Text)
	}

	if str, ok := n.child(RuleString); ok {
		sel, err := ast.UnquoteString(str.Text)
		if err != nil {
			return nil, errAt(str.Span, "%v", err)
		}
		cmd.Selector = sel
	}
	return cmd, nil
}

func buildHeaders(n Node, meta ast.Meta) (ast.Command, error) {
	cmd := &ast.HeadersCmd{Meta: meta}
	if len(n.Children) == 0 {
		return cmd, nil
	}
	cmd.Op = wordAt(n, 0).Text

	values := n.Children[1:]
	switch cmd.Op {
	case "set":
		// Two values mean domain then JSON; one means JSON alone.
		if len(values) == 2 {
			domain, err := valueText(values[0])
			if err != nil {
				return nil, err
			}
			cmd.Domain = domain
			values = values[1:]
		}
		if len(values) != 1 {
			return nil, errAt(n.Span, "headers set needs a JSON object")
		}
		js, err := valueText(values[0])
		if err != nil {
			return nil, err
		}
		cmd.JSON = js
	case "clear":
		if len(values) == 1 {
			domain, err := valueText(values[0])
			if err != nil {
				return nil, err
			}
			cmd.Domain = domain
		}
	}
	return cmd, nil
}

func buildTab(n Node, meta ast.Meta) (ast.Command, error) {
	cmd := &ast.TabCmd{Meta: meta, Op: wordAt(n, 0).Text, Index: -1}
	switch cmd.Op {
	case "new":
		url, err := valueText(n.Children[1])
		if err != nil {
			return nil, err
		}
		cmd.URL = url
	case "switch":
		idx, err := intText(n.Children[1])
		if err != nil {
			return nil, err
		}
		cmd.Index = idx
	case "close":
		if len(n.Children) > 1 {
			idx, err := intText(n.Children[1])
			if err != nil {
				return nil, err
			}
			cmd.Index = idx
		}
	}
	return cmd, nil
}

func buildRun(n Node, meta ast.Meta) (ast.Command, error) {
	words := n.children(RuleWord)
	cmd := &ast.RunCmd{Meta: meta, Intent: words[0].Text}
	for _, w := range words[1:] {
		key, raw, _ := strings.Cut(w.Text, "=")
		if key == "" {
			return nil, errAt(w.Span, "parameter %q has an empty name", w.Text)
		}
		value := raw
		if strings.HasPrefix(raw, `"`) {
			v, err := ast.UnquoteString(raw)
			if err != nil {
				return nil, errAt(w.Span, "%v", err)
			}
			value = v
		}
		cmd.Params = append(cmd.Params, ast.Param{Key: key, Value: value})
	}
	return cmd, nil
}

func buildIntercept(n Node, meta ast.Meta, opts optionSet) (ast.Command, error) {
	if len(n.Children) > 0 && n.Children[0].Rule == RuleWord && n.Children[0].Text == "clear" {
		cmd := &ast.InterceptCmd{Meta: meta, Op: "clear"}
		if len(n.Children) > 1 {
			pattern, err := valueText(n.Children[1])
			if err != nil {
				return nil, err
			}
			cmd.Pattern = pattern
		}
		return cmd, nil
	}

	pattern, err := valueText(n.Children[0])
	if err != nil {
		return nil, err
	}
	respond, err := opts.str("respond")
	if err != nil {
		return nil, err
	}
	respondFile, err := opts.str("respond-file")
	if err != nil {
		return nil, err
	}
	status, err := opts.integer("status")
	if err != nil {
		return nil, err
	}
	return &ast.InterceptCmd{
		Meta:        meta,
		Op:          "set",
		Pattern:     pattern,
		Block:       opts.has("block"),
		Respond:     respond,
		RespondFile: respondFile,
		Status:      status,
	}, nil
}

func buildDialog(n Node, meta ast.Meta) (ast.Command, error) {
	cmd := &ast.DialogCmd{Meta: meta, Op: wordAt(n, 0).Text}
	switch cmd.Op {
	case "accept":
		if str, ok := n.child(RuleString); ok {
			text, err := ast.UnquoteString(str.Text)
			if err != nil {
				return nil, errAt(str.Span, "%v", err)
			}
			cmd.Text = text
		}
	case "auto":
		mode := wordAt(n, 1)
		switch mode.Text {
		case "accept", "dismiss", "off":
			cmd.Mode = mode.Text
		default:
			return nil, errExpected(mode.Span, "invalid dialog auto mode "+strconv.Quote(mode.Text), "accept", "dismiss", "off")
		}
	}
	return cmd, nil
}

// buildKeyCombo splits a press argument on "+" into modifiers plus one
// main key. Every token before the last must be a known modifier.
func buildKeyCombo(w Node) (ast.KeyCombo, error) {
	text := w.Text
	if text == "+" {
		return ast.KeyCombo{Tokens: []string{"+"}}, nil
	}
	parts := strings.Split(text, "+")
	for i, part := range parts {
		if part == "" {
			return ast.KeyCombo{}, errAt(w.Span, "malformed key combo %q", text)
		}
		if i < len(parts)-1 && !keywordIn(part, ModifierKeys) {
			return ast.KeyCombo{}, errExpected(w.Span, "unknown modifier "+strconv.Quote(part), ModifierKeys...)
		}
	}
	return ast.KeyCombo{Tokens: parts}, nil
}

// -- Shared lowering helpers --

// subOp reads the optional leading operation word of a subcommand,
// defaulting to list, and returns the remaining payload nodes.
func subOp(n Node) (string, []Node) {
	for i, c := range n.Children {
		if c.Rule == RuleWord {
			return c.Text, n.Children[i+1:]
		}
		if c.Rule != RuleOption {
			break
		}
	}
	return ast.OpList, nil
}

// fillKeyValue lowers the payload of a cookies/storage operation.
func fillKeyValue(op string, rest []Node, key, value *string) error {
	takes := 0
	switch op {
	case ast.OpGet, ast.OpDelete:
		takes = 1
	case ast.OpSet:
		takes = 2
	}
	if takes >= 1 {
		k, err := valueText(rest[0])
		if err != nil {
			return err
		}
		*key = k
	}
	if takes == 2 {
		v, err := valueText(rest[1])
		if err != nil {
			return err
		}
		*value = v
	}
	return nil
}

// tracePath finds the optional path argument of trace/record start.
func tracePath(n Node) (Node, bool) {
	if str, ok := n.child(RuleString); ok {
		return str, true
	}
	if words := n.children(RuleWord); len(words) > 1 {
		return words[1], true
	}
	return Node{}, false
}

// valueText lowers a string, word, or number leaf to its text. Quoted
// strings are decoded and selector expressions reduce to their body.
func valueText(n Node) (string, error) {
	switch n.Rule {
	case RuleString:
		s, err := ast.UnquoteString(n.Text)
		if err != nil {
			return "", errAt(n.Span, "%v", err)
		}
		return s, nil
	case RuleAtomSel:
		_, body, err := splitSelectorExpr(n)
		return body, err
	}
	return n.Text, nil
}

// stringAt lowers the i-th quoted string child.
func stringAt(n Node, i int) (string, error) {
	strs := n.children(RuleString)
	if i >= len(strs) {
		return "", errAt(n.Span, "missing string argument")
	}
	s, err := ast.UnquoteString(strs[i].Text)
	if err != nil {
		return "", errAt(strs[i].Span, "%v", err)
	}
	return s, nil
}

// wordAt returns the i-th word child; parse shapes guarantee presence.
func wordAt(n Node, i int) Node {
	words := n.children(RuleWord)
	if i >= len(words) {
		return Node{Span: n.Span}
	}
	return words[i]
}

func numberText(n Node) (float64, error) {
	f, err := ast.ParseNumber(n.Text)
	if err != nil {
		return 0, errAt(n.Span, "%v", err)
	}
	return f, nil
}

func intText(n Node) (int, error) {
	f, err := numberText(n)
	if err != nil {
		return 0, err
	}
	i, ok := ast.CoerceInt(f)
	if !ok {
		return 0, errAt(n.Span, "expected an integer, got %q", n.Text)
	}
	return i, nil
}

func requiredTarget(n Node) (ast.Target, error) {
	t, ok := n.child(RuleTarget)
	if !ok {
		return ast.Target{}, errAt(n.Span, "missing target")
	}
	return buildTarget(t)
}

func optionalTarget(n Node) (*ast.Target, error) {
	t, ok := n.child(RuleTarget)
	if !ok {
		return nil, nil
	}
	built, err := buildTarget(t)
	if err != nil {
		return nil, err
	}
	return &built, nil
}

// buildTarget lowers a flat atom/relation chain.
func buildTarget(n Node) (ast.Target, error) {
	primary, err := buildAtom(n.Children[0])
	if err != nil {
		return ast.Target{}, err
	}
	target := ast.Target{Primary: primary, Span: n.Span}
	for i := 1; i < len(n.Children); i += 2 {
		rel := ast.Relation(n.Children[i].Text)
		atom, err := buildAtom(n.Children[i+1])
		if err != nil {
			return ast.Target{}, err
		}
		target.Relations = append(target.Relations, ast.RelationTerm{Rel: rel, Atom: atom})
	}
	return target, nil
}

func buildAtom(n Node) (ast.TargetAtom, error) {
	switch n.Rule {
	case RuleAtomID:
		id, err := strconv.ParseUint(n.Text, 10, 32)
		if err != nil {
			return ast.TargetAtom{}, errAt(n.Span, "element id must be a non-negative integer, got %q", n.Text)
		}
		return ast.IDAtom(uint32(id), n.Span), nil
	case RuleAtomText:
		text, err := ast.UnquoteString(n.Text)
		if err != nil {
			return ast.TargetAtom{}, errAt(n.Span, "%v", err)
		}
		return ast.TextAtom(text, n.Span), nil
	case RuleAtomRole:
		return ast.RoleAtom(n.Text, n.Span), nil
	case RuleAtomSel:
		kind, body, err := splitSelectorExpr(n)
		if err != nil {
			return ast.TargetAtom{}, err
		}
		if kind == "xpath" {
			return ast.XPathAtom(body, n.Span), nil
		}
		return ast.CssAtom(body, n.Span), nil
	}
	return ast.TargetAtom{}, errAt(n.Span, "invalid target atom rule %s", n.Rule)
}

// splitSelectorExpr takes apart a css(...)/xpath(...) token into its
// kind and selector body. The body is usually quoted; a bare body is
// taken verbatim.
func splitSelectorExpr(n Node) (kind, body string, err error) {
	open := strings.IndexByte(n.Text, '(')
	if open < 0 || !strings.HasSuffix(n.Text, ")") {
		return "", "", errAt(n.Span, "malformed selector expression %q", n.Text)
	}
	kind = strings.ToLower(n.Text[:open])
	raw := n.Text[open+1 : len(n.Text)-1]
	if strings.HasPrefix(raw, `"`) {
		body, uerr := ast.UnquoteString(raw)
		if uerr != nil {
			return "", "", errAt(n.Span, "%v", uerr)
		}
		return kind, body, nil
	}
	return kind, strings.TrimSpace(raw), nil
}

// -- Options --

// optionSet gives builders folded access to a command's option nodes.
// has answers presence for boolean options; value accessors return the
// last occurrence, so repeating a value option overrides earlier ones.
type optionSet struct {
	opts []Node
}

func newOptions(n Node) optionSet {
	return optionSet{opts: n.children(RuleOption)}
}

func (o optionSet) has(name string) bool {
	for _, opt := range o.opts {
		if opt.Text == name {
			return true
		}
	}
	return false
}

func (o optionSet) last(name string) (Node, bool) {
	for i := len(o.opts) - 1; i >= 0; i-- {
		if o.opts[i].Text == name && len(o.opts[i].Children) > 0 {
			return o.opts[i].Children[0], true
		}
	}
	return Node{}, false
}

func (o optionSet) str(name string) (string, error) {
	v, ok := o.last(name)
	if !ok {
		return "", nil
	}
	return valueText(v)
}

func (o optionSet) word(name string) string {
	v, ok := o.last(name)
	if !ok {
		return ""
	}
	return v.Text
}

func (o optionSet) number(name string) (*float64, error) {
	v, ok := o.last(name)
	if !ok {
		return nil, nil
	}
	f, err := numberText(v)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (o optionSet) integer(name string) (int, error) {
	v, ok := o.last(name)
	if !ok {
		return 0, nil
	}
	return intText(v)
}

func (o optionSet) duration(name string) (ast.Duration, error) {
	v, ok := o.last(name)
	if !ok {
		return 0, nil
	}
	// A bare number is a millisecond count.
	if v.Rule == RuleNumber {
		f, err := numberText(v)
		if err != nil {
			return 0, err
		}
		if f < 0 {
			return 0, errAt(v.Span, "duration %q is negative", v.Text)
		}
		return ast.Duration(math.Round(f)), nil
	}
	d, err := ast.ParseDuration(v.Text)
	if err != nil {
		return 0, errAt(v.Span, "%v", err)
	}
	return d, nil
}
