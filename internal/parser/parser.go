// Package parser turns canonical command text into typed AST commands.
//
// Parsing is two-stage. The grammar stage (this file) consumes one
// canonical line and produces an untyped tree of rule-tagged nodes with
// byte-offset spans into the canonical text. The builder stage
// (builder.go) lowers that tree into typed commands. Dispatch and every
// literal keyword set live in ordered alternation tables (grammar.go)
// audited by CheckTables (lint.go).
//
// Each line parses fully or fails atomically. There is no error
// recovery: a failed line produces no command.
package parser

import (
	"sort"
	"strings"

	"github.com/xkilldash9x/oil-cli/internal/ast"
)

// Node is one vertex of the untyped parse tree. Leaves keep the raw
// token text; strings keep their quotes until the builder processes
// escapes.
type Node struct {
	Rule     Rule
	Text     string
	Span     ast.Span
	Children []Node
}

func (n Node) child(rule Rule) (Node, bool) {
	for _, c := range n.Children {
		if c.Rule == rule {
			return c, true
		}
	}
	return Node{}, false
}

func (n Node) children(rule Rule) []Node {
	var out []Node
	for _, c := range n.Children {
		if c.Rule == rule {
			out = append(out, c)
		}
	}
	return out
}

// Parse parses a whole canonical script. Blank lines yield nothing;
// comment-only lines yield a Line with no command.
func Parse(input string) (*ast.Script, error) {
	script := &ast.Script{}
	for i, raw := range strings.Split(input, "\n") {
		line := strings.TrimRight(raw, " \t")
		if strings.TrimSpace(line) == "" {
			continue
		}
		parsed, err := ParseLine(line, i+1)
		if err != nil {
			return nil, err
		}
		script.Lines = append(script.Lines, parsed)
	}
	return script, nil
}

// ParseLine parses one canonical line into a typed Line.
func ParseLine(line string, lineNo int) (ast.Line, error) {
	tree, err := ParseTree(line, lineNo)
	if err != nil {
		return ast.Line{}, err
	}
	return buildLine(tree, lineNo)
}

// ParseCommand parses a single canonical line and returns its command.
func ParseCommand(line string) (ast.Command, error) {
	parsed, err := ParseLine(line, 1)
	if err != nil {
		return nil, err
	}
	if parsed.Command == nil {
		return nil, errAt(parsed.Span, "expected a command")
	}
	return parsed.Command, nil
}

// ParseTree parses one canonical line into the untyped rule tree.
func ParseTree(line string, lineNo int) (Node, error) {
	toks, err := Lex(line, lineNo)
	if err != nil {
		return Node{}, err
	}
	p := &lineParser{toks: toks, lineNo: lineNo, lineLen: len(line)}
	return p.parseLine()
}

type lineParser struct {
	toks    []Token
	pos     int
	lineNo  int
	lineLen int
}

func (p *lineParser) peek() *Token {
	if p.pos < len(p.toks) {
		return &p.toks[p.pos]
	}
	return nil
}

func (p *lineParser) next() *Token {
	t := p.peek()
	if t != nil {
		p.pos++
	}
	return t
}

func (p *lineParser) eof() ast.Span {
	return ast.Span{Start: p.lineLen, End: p.lineLen, Line: p.lineNo, Col: p.lineLen + 1}
}

func (p *lineParser) here() ast.Span {
	if t := p.peek(); t != nil {
		return t.Span
	}
	return p.eof()
}

func (p *lineParser) parseLine() (Node, error) {
	line := Node{Rule: RuleLine, Span: span(0, p.lineLen, p.lineNo)}

	if t := p.peek(); t != nil && t.Kind == TokComment {
		p.next()
		line.Children = append(line.Children, Node{Rule: RuleComment, Text: t.Text, Span: t.Span})
		return line, nil
	}

	cmd, err := p.parseCommand()
	if err != nil {
		return Node{}, err
	}
	line.Children = append(line.Children, cmd)

	if t := p.peek(); t != nil && t.Kind == TokComment {
		p.next()
		line.Children = append(line.Children, Node{Rule: RuleComment, Text: t.Text, Span: t.Span})
	}
	if t := p.peek(); t != nil {
		return Node{}, errAt(t.Span, "unexpected trailing input %q", t.Text)
	}
	return line, nil
}

// parseCommand dispatches on the leading phrase and parses the
// command's arguments.
func (p *lineParser) parseCommand() (Node, error) {
	first := p.peek()
	if first == nil {
		return Node{}, errAt(p.eof(), "expected a command")
	}
	if first.Kind != TokWord {
		return Node{}, errAt(first.Span, "expected a command, got %q", first.Text)
	}

	rule, matched := p.dispatch()
	if rule == "" {
		return Node{}, errAt(first.Span, "unknown command %q", first.Text)
	}

	cmd := Node{Rule: rule, Span: matched}
	args, err := p.parseArgs(rule)
	if err != nil {
		return Node{}, err
	}
	cmd.Children = args
	for _, c := range args {
		cmd.Span = cmd.Span.Merge(c.Span)
	}
	return cmd, nil
}

// dispatch matches the longest leading phrase from the ordered table.
func (p *lineParser) dispatch() (Rule, ast.Span) {
	for _, phrase := range CommandDispatch {
		if p.pos+len(phrase.Words) > len(p.toks) {
			continue
		}
		ok := true
		for i, w := range phrase.Words {
			t := p.toks[p.pos+i]
			if t.Kind != TokWord || t.Text != w {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		sp := p.toks[p.pos].Span
		for i := 1; i < len(phrase.Words); i++ {
			sp = sp.Merge(p.toks[p.pos+i].Span)
		}
		p.pos += len(phrase.Words)
		return phrase.Rule, sp
	}
	return "", ast.Span{}
}

func (p *lineParser) parseArgs(rule Rule) ([]Node, error) {
	switch rule {
	case RuleBack, RuleForward, RuleURL, RuleTitle, RuleKeys, RuleSessions,
		RuleTabs, RulePacks, RuleFrames, RuleDevices, RuleExit, RuleAcceptCookies:
		return nil, nil

	case RuleGoto:
		return p.seq(rule, p.wantValue("URL"), p.wantOptions)
	case RuleRefresh, RuleObserve, RuleIntents, RuleRequests, RuleConsole, RuleErrors:
		return p.seq(rule, p.wantOptions)
	case RuleHTML:
		return p.seq(rule, p.maybeValue())
	case RuleText, RuleSubmit:
		return p.seq(rule, p.maybeTarget)
	case RuleScreenshot, RuleHighlight:
		return p.seq(rule, p.optionsAndTarget)
	case RuleBox, RuleClear, RuleCheck, RuleUncheck, RuleHover, RuleFocus:
		return p.seq(rule, p.wantTarget)
	case RuleClick:
		return p.seq(rule, p.wantTarget, p.wantOptions)
	case RuleType:
		return p.seq(rule, p.wantTarget, p.wantString("text"), p.wantOptions)
	case RulePress:
		return p.seq(rule, p.wantWord("key combo"))
	case RuleKeydown:
		return p.seq(rule, p.wantWord("key"))
	case RuleKeyup:
		return p.seq(rule, p.maybeWord())
	case RuleSelect:
		return p.seq(rule, p.wantTarget, p.wantValue("option value"))
	case RuleScroll:
		return p.parseScroll(rule)
	case RuleScrollUntil:
		return p.parseScrollUntil(rule)
	case RuleWait:
		return p.parseWait(rule)
	case RuleExtract:
		return p.parseExtract(rule)
	case RuleCookies:
		return p.parseKeyValueOps(rule, CookieOps)
	case RuleStorage:
		return p.parseStorage(rule)
	case RuleSession:
		return p.parseSession(rule)
	case RuleState:
		return p.seq(rule, p.wantOp(StateOps), p.wantValue("state file path"), p.wantOptions)
	case RuleHeaders:
		return p.parseHeaders(rule)
	case RuleTab:
		return p.parseTab(rule)
	case RuleLogin:
		return p.seq(rule, p.wantString("username"), p.wantString("password"), p.wantOptions)
	case RuleSearch:
		return p.seq(rule, p.wantString("search query"), p.wantOptions)
	case RuleDismiss:
		return p.seq(rule, p.maybeValue())
	case RulePack:
		return p.seq(rule, p.wantOp(PackOps), p.wantValue("pack name"))
	case RuleDefine:
		return p.seq(rule, p.wantWord("intent name"))
	case RuleUndefine:
		return p.seq(rule, p.wantWord("intent name"))
	case RuleExport:
		return p.seq(rule, p.wantWord("intent name"), p.wantOptions)
	case RuleRun:
		return p.parseRun(rule)
	case RuleIntercept:
		return p.parseIntercept(rule)
	case RuleFrame:
		return p.parseFrame(rule)
	case RuleDialog:
		return p.parseDialog(rule)
	case RuleViewport:
		return p.seq(rule, p.wantNumber("viewport width"), p.wantNumber("viewport height"))
	case RuleDevice:
		return p.seq(rule, p.maybeValue())
	case RuleMedia:
		return p.parseMedia(rule)
	case RuleTrace:
		return p.parseTrace(rule, false)
	case RuleRecord:
		return p.parseTrace(rule, true)
	case RulePDF:
		return p.seq(rule, p.wantValue("output path"), p.wantOptions)
	case RuleLearn:
		return p.parseLearn(rule)
	case RuleHelp:
		return p.seq(rule, p.maybeWord())
	}
	return nil, errAt(p.here(), "unhandled command rule %s", rule)
}

// seq runs argument parsers in order, collecting their nodes. A step
// returning a zero node contributes nothing.
func (p *lineParser) seq(rule Rule, steps ...func(Rule) ([]Node, error)) ([]Node, error) {
	var out []Node
	for _, step := range steps {
		nodes, err := step(rule)
		if err != nil {
			return nil, err
		}
		out = append(out, nodes...)
	}
	return out, nil
}

// -- Argument steps --

func (p *lineParser) wantOptions(rule Rule) ([]Node, error) {
	var out []Node
	allowed := optionsFor(rule)
	for {
		t := p.peek()
		if t == nil || t.Kind != TokOption {
			return out, nil
		}
		p.next()
		name := strings.TrimPrefix(t.Text, "--")
		arg, ok := allowed[name]
		if !ok {
			return nil, errExpected(t.Span, "unknown option "+t.Text, optionNames(allowed)...)
		}
		opt := Node{Rule: RuleOption, Text: name, Span: t.Span}
		if arg != argNone {
			val, err := p.optionValue(t.Text, arg)
			if err != nil {
				return nil, err
			}
			opt.Children = []Node{val}
			opt.Span = opt.Span.Merge(val.Span)
		}
		out = append(out, opt)
	}
}

func (p *lineParser) optionValue(optName string, arg optionArg) (Node, error) {
	t := p.peek()
	if t == nil || t.Kind == TokOption || t.Kind == TokComment {
		return Node{}, errAt(p.here(), "option %s requires a value", optName)
	}
	switch arg {
	case argString:
		if t.Kind != TokString && t.Kind != TokWord {
			return Node{}, errAt(t.Span, "option %s expects a string, got %q", optName, t.Text)
		}
	case argWord:
		if t.Kind != TokWord && t.Kind != TokNumber {
			return Node{}, errAt(t.Span, "option %s expects a word, got %q", optName, t.Text)
		}
	case argNumber:
		if t.Kind != TokNumber {
			return Node{}, errAt(t.Span, "option %s expects a number, got %q", optName, t.Text)
		}
	case argDuration:
		if t.Kind != TokWord && t.Kind != TokNumber {
			return Node{}, errAt(t.Span, "option %s expects a duration, got %q", optName, t.Text)
		}
	}
	p.next()
	return p.leaf(t), nil
}

func (p *lineParser) leaf(t *Token) Node {
	rule := RuleWord
	switch t.Kind {
	case TokString:
		rule = RuleString
	case TokNumber:
		rule = RuleNumber
	case TokSelector:
		rule = RuleAtomSel
	}
	return Node{Rule: rule, Text: t.Text, Span: t.Span}
}

func (p *lineParser) wantTarget(rule Rule) ([]Node, error) {
	target, err := p.parseTarget()
	if err != nil {
		return nil, err
	}
	return []Node{target}, nil
}

func (p *lineParser) maybeTarget(rule Rule) ([]Node, error) {
	if !p.atAtom() {
		return nil, nil
	}
	return p.wantTarget(rule)
}

// optionsAndTarget accepts options and at most one target in any
// order, for commands whose canonical form puts the target last.
func (p *lineParser) optionsAndTarget(rule Rule) ([]Node, error) {
	var out []Node
	seenTarget := false
	for {
		switch {
		case p.peek() != nil && p.peek().Kind == TokOption:
			opts, err := p.wantOptions(rule)
			if err != nil {
				return nil, err
			}
			out = append(out, opts...)
		case !seenTarget && p.atAtom():
			target, err := p.parseTarget()
			if err != nil {
				return nil, err
			}
			out = append(out, target)
			seenTarget = true
		default:
			return out, nil
		}
	}
}

func (p *lineParser) wantString(what string) func(Rule) ([]Node, error) {
	return func(Rule) ([]Node, error) {
		t := p.peek()
		if t == nil || t.Kind != TokString {
			return nil, errExpected(p.here(), "expected "+what, "quoted string")
		}
		p.next()
		return []Node{p.leaf(t)}, nil
	}
}

func (p *lineParser) wantWord(what string) func(Rule) ([]Node, error) {
	return func(Rule) ([]Node, error) {
		t := p.peek()
		if t == nil || (t.Kind != TokWord && t.Kind != TokNumber) {
			return nil, errExpected(p.here(), "expected "+what, "word")
		}
		p.next()
		return []Node{Node{Rule: RuleWord, Text: t.Text, Span: t.Span}}, nil
	}
}

func (p *lineParser) maybeWord() func(Rule) ([]Node, error) {
	return func(Rule) ([]Node, error) {
		t := p.peek()
		if t == nil || t.Kind != TokWord {
			return nil, nil
		}
		p.next()
		return []Node{Node{Rule: RuleWord, Text: t.Text, Span: t.Span}}, nil
	}
}

func (p *lineParser) wantNumber(what string) func(Rule) ([]Node, error) {
	return func(Rule) ([]Node, error) {
		t := p.peek()
		if t == nil || t.Kind != TokNumber {
			return nil, errExpected(p.here(), "expected "+what, "number")
		}
		p.next()
		return []Node{p.leaf(t)}, nil
	}
}

// wantValue accepts a string, word, or number argument.
func (p *lineParser) wantValue(what string) func(Rule) ([]Node, error) {
	return func(Rule) ([]Node, error) {
		t := p.peek()
		if t == nil || t.Kind == TokOption || t.Kind == TokComment {
			return nil, errExpected(p.here(), "expected "+what, "string", "word")
		}
		p.next()
		return []Node{p.leaf(t)}, nil
	}
}

func (p *lineParser) maybeValue() func(Rule) ([]Node, error) {
	return func(Rule) ([]Node, error) {
		t := p.peek()
		if t == nil || t.Kind == TokOption || t.Kind == TokComment {
			return nil, nil
		}
		p.next()
		return []Node{p.leaf(t)}, nil
	}
}

func (p *lineParser) wantOp(table []string) func(Rule) ([]Node, error) {
	return func(Rule) ([]Node, error) {
		t := p.peek()
		if t == nil || t.Kind != TokWord || !keywordIn(t.Text, table) {
			return nil, errExpected(p.here(), "expected operation", table...)
		}
		p.next()
		return []Node{Node{Rule: RuleWord, Text: t.Text, Span: t.Span}}, nil
	}
}

// -- Targets --

func (p *lineParser) atAtom() bool {
	t := p.peek()
	if t == nil {
		return false
	}
	switch t.Kind {
	case TokNumber, TokString, TokSelector:
		return true
	case TokWord:
		return !keywordIn(t.Text, Relations)
	}
	return false
}

// parseTarget parses an atom followed by any number of relation-atom
// pairs. The tree stays flat; associativity is the resolver's concern.
func (p *lineParser) parseTarget() (Node, error) {
	atom, err := p.parseAtom()
	if err != nil {
		return Node{}, err
	}
	target := Node{Rule: RuleTarget, Span: atom.Span, Children: []Node{atom}}

	for {
		t := p.peek()
		if t == nil || t.Kind != TokWord || !keywordIn(t.Text, Relations) {
			return target, nil
		}
		p.next()
		rel := Node{Rule: RuleRelation, Text: t.Text, Span: t.Span}
		next, err := p.parseAtom()
		if err != nil {
			return Node{}, err
		}
		target.Children = append(target.Children, rel, next)
		target.Span = target.Span.Merge(next.Span)
	}
}

func (p *lineParser) parseAtom() (Node, error) {
	t := p.peek()
	if t == nil {
		return Node{}, errExpected(p.eof(), "expected target", "element id", "quoted text", "role", "css(...)", "xpath(...)")
	}
	switch t.Kind {
	case TokNumber:
		p.next()
		return Node{Rule: RuleAtomID, Text: t.Text, Span: t.Span}, nil
	case TokString:
		p.next()
		return Node{Rule: RuleAtomText, Text: t.Text, Span: t.Span}, nil
	case TokSelector:
		p.next()
		return Node{Rule: RuleAtomSel, Text: t.Text, Span: t.Span}, nil
	case TokWord:
		if keywordIn(t.Text, Relations) {
			break
		}
		if !roleWordRe.MatchString(t.Text) {
			return Node{}, errAt(t.Span, "invalid target %q", t.Text)
		}
		p.next()
		return Node{Rule: RuleAtomRole, Text: t.Text, Span: t.Span}, nil
	}
	return Node{}, errExpected(t.Span, "expected target, got "+t.Kind.String(), "element id", "quoted text", "role", "css(...)", "xpath(...)")
}

// -- Command-specific shapes --

func (p *lineParser) parseScroll(rule Rule) ([]Node, error) {
	var out []Node
	hasDirection := false

	if t := p.peek(); t != nil && t.Kind == TokWord && keywordIn(t.Text, ScrollDirections) {
		p.next()
		out = append(out, Node{Rule: RuleWord, Text: t.Text, Span: t.Span})
		hasDirection = true
		if n := p.peek(); n != nil && n.Kind == TokNumber {
			p.next()
			out = append(out, p.leaf(n))
		}
	}

	seenTarget := false
	for {
		switch {
		case p.peek() != nil && p.peek().Kind == TokOption:
			opts, err := p.wantOptions(rule)
			if err != nil {
				return nil, err
			}
			out = append(out, opts...)
		case !hasDirection && !seenTarget && p.atAtom():
			target, err := p.parseTarget()
			if err != nil {
				return nil, err
			}
			out = append(out, target)
			seenTarget = true
		default:
			return out, nil
		}
	}
}

func (p *lineParser) parseScrollUntil(rule Rule) ([]Node, error) {
	target, err := p.parseTarget()
	if err != nil {
		return nil, err
	}
	out := []Node{target}
	if t := p.peek(); t != nil && t.Kind == TokNumber {
		p.next()
		out = append(out, p.leaf(t))
	}
	opts, err := p.wantOptions(rule)
	if err != nil {
		return nil, err
	}
	return append(out, opts...), nil
}

func (p *lineParser) parseWait(rule Rule) ([]Node, error) {
	t := p.peek()
	if t == nil || t.Kind != TokWord || !keywordIn(t.Text, WaitKinds) {
		return nil, errExpected(p.here(), "expected wait condition", WaitKinds...)
	}
	p.next()
	out := []Node{{Rule: RuleWord, Text: t.Text, Span: t.Span}}

	switch t.Text {
	case "visible", "hidden":
		target, err := p.parseTarget()
		if err != nil {
			return nil, err
		}
		out = append(out, target)
	case "exists", "gone":
		sel, err := p.waitSelector()
		if err != nil {
			return nil, err
		}
		out = append(out, sel)
	case "url", "until":
		strs, err := p.wantString(t.Text + " argument")(rule)
		if err != nil {
			return nil, err
		}
		out = append(out, strs...)
	case "items":
		sel, err := p.waitSelector()
		if err != nil {
			return nil, err
		}
		out = append(out, sel)
		counts, err := p.wantNumber("item count")(rule)
		if err != nil {
			return nil, err
		}
		out = append(out, counts...)
	}

	opts, err := p.wantOptions(rule)
	if err != nil {
		return nil, err
	}
	return append(out, opts...), nil
}

// waitSelector accepts either a quoted selector string or a css(...)
// expression.
func (p *lineParser) waitSelector() (Node, error) {
	t := p.peek()
	if t == nil || (t.Kind != TokString && t.Kind != TokSelector) {
		return Node{}, errExpected(p.here(), "expected selector", "quoted string", "css(...)")
	}
	p.next()
	return p.leaf(t), nil
}

func (p *lineParser) parseExtract(rule Rule) ([]Node, error) {
	t := p.peek()
	var out []Node
	switch {
	case t != nil && t.Kind == TokSelector:
		p.next()
		out = append(out, p.leaf(t))
	case t != nil && t.Kind == TokWord && keywordIn(t.Text, ExtractKinds):
		p.next()
		out = append(out, Node{Rule: RuleWord, Text: t.Text, Span: t.Span})
	default:
		return nil, errExpected(p.here(), "expected extraction source", append(append([]string{}, ExtractKinds...), "css(...)")...)
	}

	if s := p.peek(); s != nil && s.Kind == TokString {
		p.next()
		out = append(out, p.leaf(s))
	}
	opts, err := p.wantOptions(rule)
	if err != nil {
		return nil, err
	}
	return append(out, opts...), nil
}

// parseKeyValueOps covers cookies-style subcommands: list/clear take
// nothing, get/delete take a key, set takes key and value. A missing
// operation means list.
func (p *lineParser) parseKeyValueOps(rule Rule, ops []string) ([]Node, error) {
	t := p.peek()
	if t == nil || t.Kind == TokComment {
		return nil, nil
	}
	if t.Kind != TokWord || !keywordIn(t.Text, ops) {
		return nil, errExpected(t.Span, "expected operation", ops...)
	}
	p.next()
	out := []Node{{Rule: RuleWord, Text: t.Text, Span: t.Span}}
	switch t.Text {
	case "get", "delete":
		vals, err := p.wantValue("key name")(rule)
		if err != nil {
			return nil, err
		}
		out = append(out, vals...)
	case "set":
		keys, err := p.wantValue("key name")(rule)
		if err != nil {
			return nil, err
		}
		vals, err := p.wantValue("value")(rule)
		if err != nil {
			return nil, err
		}
		out = append(out, keys...)
		out = append(out, vals...)
	}
	return out, nil
}

func (p *lineParser) parseStorage(rule Rule) ([]Node, error) {
	var out []Node
	opts, err := p.wantOptions(rule)
	if err != nil {
		return nil, err
	}
	out = append(out, opts...)

	// Scope may also be spelled as a bare word: "storage local clear".
	if t := p.peek(); t != nil && t.Kind == TokWord && (t.Text == "local" || t.Text == "session") {
		p.next()
		out = append(out, Node{Rule: RuleOption, Text: t.Text, Span: t.Span})
	}

	rest, err := p.parseKeyValueOps(rule, StorageOps)
	if err != nil {
		return nil, err
	}
	return append(out, rest...), nil
}

// parseSession accepts an optional operation; bare "session" shows the
// current one.
func (p *lineParser) parseSession(rule Rule) ([]Node, error) {
	t := p.peek()
	if t == nil || t.Kind == TokComment {
		return nil, nil
	}
	if t.Kind != TokWord || !keywordIn(t.Text, SessionOps) {
		return nil, errExpected(t.Span, "expected operation", SessionOps...)
	}
	p.next()
	out := []Node{{Rule: RuleWord, Text: t.Text, Span: t.Span}}
	if v := p.peek(); v != nil && (v.Kind == TokString || v.Kind == TokWord) {
		p.next()
		out = append(out, p.leaf(v))
	}
	opts, err := p.wantOptions(rule)
	if err != nil {
		return nil, err
	}
	return append(out, opts...), nil
}

// parseHeaders accepts an optional operation; bare "headers" shows the
// active header sets.
func (p *lineParser) parseHeaders(rule Rule) ([]Node, error) {
	t := p.peek()
	if t == nil || t.Kind == TokComment {
		return nil, nil
	}
	if t.Kind != TokWord || !keywordIn(t.Text, HeaderOps) {
		return nil, errExpected(t.Span, "expected operation", HeaderOps...)
	}
	p.next()
	out := []Node{{Rule: RuleWord, Text: t.Text, Span: t.Span}}
	switch t.Text {
	case "set":
		first, err := p.wantValue("headers JSON")(rule)
		if err != nil {
			return nil, err
		}
		out = append(out, first...)
		if t := p.peek(); t != nil && (t.Kind == TokString || t.Kind == TokWord) {
			p.next()
			out = append(out, p.leaf(t))
		}
	case "clear":
		if t := p.peek(); t != nil && (t.Kind == TokString || t.Kind == TokWord) {
			p.next()
			out = append(out, p.leaf(t))
		}
	}
	return out, nil
}

func (p *lineParser) parseTab(rule Rule) ([]Node, error) {
	opNodes, err := p.wantOp(TabOps)(rule)
	if err != nil {
		return nil, err
	}
	out := opNodes
	switch opNodes[0].Text {
	case "new":
		vals, err := p.wantValue("URL")(rule)
		if err != nil {
			return nil, err
		}
		out = append(out, vals...)
	case "switch":
		nums, err := p.wantNumber("tab index")(rule)
		if err != nil {
			return nil, err
		}
		out = append(out, nums...)
	case "close":
		if t := p.peek(); t != nil && t.Kind == TokNumber {
			p.next()
			out = append(out, p.leaf(t))
		}
	}
	return out, nil
}

func (p *lineParser) parseRun(rule Rule) ([]Node, error) {
	nameNodes, err := p.wantWord("intent name")(rule)
	if err != nil {
		return nil, err
	}
	out := nameNodes
	for {
		t := p.peek()
		if t == nil || t.Kind == TokComment {
			return out, nil
		}
		if t.Kind != TokWord || !strings.Contains(t.Text, "=") {
			return nil, errAt(t.Span, "expected name=value parameter, got %q", t.Text)
		}
		p.next()
		out = append(out, Node{Rule: RuleWord, Text: t.Text, Span: t.Span})
	}
}

func (p *lineParser) parseIntercept(rule Rule) ([]Node, error) {
	if t := p.peek(); t != nil && t.Kind == TokWord && t.Text == "clear" {
		p.next()
		out := []Node{{Rule: RuleWord, Text: t.Text, Span: t.Span}}
		if s := p.peek(); s != nil && (s.Kind == TokString || s.Kind == TokWord) {
			p.next()
			out = append(out, p.leaf(s))
		}
		return out, nil
	}
	patterns, err := p.wantValue("URL pattern")(rule)
	if err != nil {
		return nil, err
	}
	opts, err := p.wantOptions(rule)
	if err != nil {
		return nil, err
	}
	return append(patterns, opts...), nil
}

func (p *lineParser) parseFrame(rule Rule) ([]Node, error) {
	t := p.peek()
	if t == nil || t.Kind == TokComment {
		return nil, nil
	}
	if t.Kind == TokWord && keywordIn(t.Text, FrameKinds) {
		p.next()
		return []Node{{Rule: RuleWord, Text: t.Text, Span: t.Span}}, nil
	}
	return p.wantTarget(rule)
}

func (p *lineParser) parseDialog(rule Rule) ([]Node, error) {
	opNodes, err := p.wantOp(DialogOps)(rule)
	if err != nil {
		return nil, err
	}
	out := opNodes
	switch opNodes[0].Text {
	case "accept":
		if t := p.peek(); t != nil && t.Kind == TokString {
			p.next()
			out = append(out, p.leaf(t))
		}
	case "auto":
		modes, err := p.wantWord("auto mode")(rule)
		if err != nil {
			return nil, err
		}
		out = append(out, modes...)
	}
	return out, nil
}

// parseLearn accepts an optional operation; bare "learn" reports the
// buffer status.
func (p *lineParser) parseLearn(rule Rule) ([]Node, error) {
	t := p.peek()
	if t == nil || t.Kind == TokComment {
		return nil, nil
	}
	if t.Kind != TokWord || !keywordIn(t.Text, LearnOps) {
		return nil, errExpected(t.Span, "expected operation", LearnOps...)
	}
	p.next()
	out := []Node{{Rule: RuleWord, Text: t.Text, Span: t.Span}}
	if w := p.peek(); w != nil && w.Kind == TokWord {
		p.next()
		out = append(out, Node{Rule: RuleWord, Text: w.Text, Span: w.Span})
	}
	return out, nil
}

func (p *lineParser) parseMedia(rule Rule) ([]Node, error) {
	t := p.peek()
	if t == nil || t.Kind == TokComment {
		return nil, nil
	}
	features, err := p.wantWord("media feature")(rule)
	if err != nil {
		return nil, err
	}
	values, err := p.wantWord("media value")(rule)
	if err != nil {
		return nil, err
	}
	return append(features, values...), nil
}

func (p *lineParser) parseTrace(rule Rule, withOptions bool) ([]Node, error) {
	opNodes, err := p.wantOp(TraceOps)(rule)
	if err != nil {
		return nil, err
	}
	out := opNodes
	if opNodes[0].Text == "start" {
		if t := p.peek(); t != nil && (t.Kind == TokString || t.Kind == TokWord) {
			p.next()
			out = append(out, p.leaf(t))
		}
	}
	if withOptions {
		opts, err := p.wantOptions(rule)
		if err != nil {
			return nil, err
		}
		out = append(out, opts...)
	}
	return out, nil
}

func optionNames(allowed map[string]optionArg) []string {
	names := make([]string, 0, len(allowed))
	for name := range allowed {
		names = append(names, "--"+name)
	}
	sort.Strings(names)
	return names
}
