package ast

import (
	"fmt"
	"strconv"
	"strings"
)

// Canonical renders a command back to canonical source text. Parsing the
// result yields a command equal to the original modulo spans, which is
// the round-trip contract the test suite holds every variant to.
//
// Option order is fixed here; repeated options collapse during building,
// so one canonical spelling exists per command value.
func Canonical(cmd Command) string {
	var b lineBuilder
	switch c := cmd.(type) {

	// Navigation.
	case *GotoCmd:
		b.word("goto")
		b.word(wordOrQuoted(c.URL))
		b.strOpt("--headers", c.Headers)
		b.durOpt("--timeout", c.Timeout)
	case *BackCmd:
		b.word("back")
	case *ForwardCmd:
		b.word("forward")
	case *RefreshCmd:
		b.word("refresh")
		b.flag("--hard", c.Hard)
	case *URLCmd:
		b.word("url")

	// Observation.
	case *ObserveCmd:
		b.word("observe")
		b.flag("--full", c.Full)
		b.flag("--minimal", c.Minimal)
		b.flag("--viewport", c.Viewport)
		b.flag("--hidden", c.Hidden)
		b.flag("--positions", c.Positions)
		b.flag("--diff", c.Diff)
		b.strOpt("--near", c.Near)
		b.durOpt("--timeout", c.Timeout)
	case *HTMLCmd:
		b.word("html")
		if c.Selector != "" {
			b.word(QuoteString(c.Selector))
		}
	case *TextCmd:
		b.word("text")
		b.targetOpt(c.Target)
	case *TitleCmd:
		b.word("title")
	case *ScreenshotCmd:
		b.word("screenshot")
		b.strOpt("--output", c.Output)
		b.wordOpt("--format", c.Format)
		b.flag("--fullpage", c.FullPage)
		b.targetOpt(c.Target)
	case *BoxCmd:
		b.word("box")
		b.target(c.Target)

	// Actions.
	case *ClickCmd:
		b.word("click")
		b.target(c.Target)
		b.flag("--double", c.Double)
		b.flag("--right", c.Right)
		b.flag("--middle", c.Middle)
		b.flag("--force", c.Force)
		b.flag("--ctrl", c.Ctrl)
		b.flag("--shift", c.Shift)
		b.flag("--alt", c.Alt)
		b.durOpt("--timeout", c.Timeout)
	case *TypeCmd:
		b.word("type")
		b.target(c.Target)
		b.word(QuoteString(c.Text))
		b.flag("--append", c.Append)
		b.flag("--enter", c.Enter)
		b.numOpt("--delay", c.Delay)
		b.flag("--clear", c.Clear)
		b.durOpt("--timeout", c.Timeout)
	case *ClearCmd:
		b.word("clear")
		b.target(c.Target)
	case *PressCmd:
		b.word("press")
		b.word(c.Combo.String())
	case *KeydownCmd:
		b.word("keydown")
		b.word(c.Key)
	case *KeyupCmd:
		b.word("keyup")
		b.word(c.Key)
	case *KeysCmd:
		b.word("keys")
	case *SelectCmd:
		b.word("select")
		b.target(c.Target)
		b.word(QuoteString(c.Value))
	case *CheckCmd:
		b.word("check")
		b.target(c.Target)
	case *UncheckCmd:
		b.word("uncheck")
		b.target(c.Target)
	case *HoverCmd:
		b.word("hover")
		b.target(c.Target)
	case *FocusCmd:
		b.word("focus")
		b.target(c.Target)
	case *ScrollCmd:
		b.word("scroll")
		if c.Direction != "" {
			b.word(c.Direction)
		}
		if c.Amount != nil {
			b.word(formatNumber(*c.Amount))
		}
		b.flag("--page", c.Page)
		b.durOpt("--timeout", c.Timeout)
		b.targetOpt(c.Target)
	case *SubmitCmd:
		b.word("submit")
		b.targetOpt(c.Target)

	// Wait.
	case *WaitCmd:
		b.word("wait")
		b.word(string(c.Cond.Kind))
		switch c.Cond.Kind {
		case WaitVisible, WaitHidden:
			b.targetOpt(c.Cond.Target)
		case WaitExists, WaitGone:
			b.word(QuoteString(c.Cond.Selector))
		case WaitURL:
			b.word(QuoteString(c.Cond.Pattern))
		case WaitUntil:
			b.word(QuoteString(c.Cond.Expr))
		case WaitItems:
			b.word(QuoteString(c.Cond.Selector))
			b.word(formatNumber(c.Cond.Count))
		}
		b.durOpt("--timeout", c.Timeout)

	// Extraction.
	case *ExtractCmd:
		b.word("extract")
		if c.What == ExtractCss {
			b.word(fmt.Sprintf("css(%s)", QuoteString(c.CssArg)))
		} else {
			b.word(string(c.What))
		}
		if c.Selector != "" {
			b.word(QuoteString(c.Selector))
		}
		b.wordOpt("--format", c.Format)

	// Session / state.
	case *CookiesCmd:
		b.word("cookies")
		switch c.Op {
		case OpGet, OpDelete:
			b.word(c.Op)
			b.word(QuoteString(c.Name))
		case OpSet:
			b.word(OpSet)
			b.word(QuoteString(c.Name))
			b.word(QuoteString(c.Value))
		case OpClear:
			b.word(OpClear)
		}
	case *StorageCmd:
		b.word("storage")
		b.flag("--local", c.Local)
		b.flag("--session", c.Session)
		switch c.Op {
		case OpGet, OpDelete:
			b.word(c.Op)
			b.word(QuoteString(c.Key))
		case OpSet:
			b.word(OpSet)
			b.word(QuoteString(c.Key))
			b.word(QuoteString(c.Value))
		case OpClear:
			b.word(OpClear)
		}
	case *SessionsCmd:
		b.word("sessions")
	case *SessionCmd:
		b.word("session")
		if c.Op != "" {
			b.word(c.Op)
		}
		if c.Session != "" {
			b.word(QuoteString(c.Session))
		}
		if c.Op == "new" {
			b.wordOpt("--mode", c.Mode)
		}
	case *StateCmd:
		b.word("state")
		b.word(c.Op)
		b.word(QuoteString(c.Path))
		if c.Op == "save" {
			b.flag("--cookies-only", c.CookiesOnly)
			b.strOpt("--domain", c.Domain)
			b.flag("--include-session", c.IncludeSession)
		} else {
			b.flag("--merge", c.Merge)
			b.flag("--cookies-only", c.CookiesOnly)
		}
	case *HeadersCmd:
		b.word("headers")
		switch c.Op {
		case "set":
			b.word("set")
			if c.Domain != "" {
				b.word(QuoteString(c.Domain))
			}
			b.word(QuoteString(c.JSON))
		case "clear":
			b.word("clear")
			if c.Domain != "" {
				b.word(QuoteString(c.Domain))
			}
		case "show":
			b.word("show")
		}

	// Tabs.
	case *TabsCmd:
		b.word("tabs")
	case *TabCmd:
		b.word("tab")
		switch c.Op {
		case "new":
			b.word("new")
			b.word(wordOrQuoted(c.URL))
		case "switch":
			b.word("switch")
			b.word(strconv.Itoa(c.Index))
		case "close":
			b.word("close")
			if c.Index >= 0 {
				b.word(strconv.Itoa(c.Index))
			}
		}

	// Intents.
	case *LoginCmd:
		b.word("login")
		b.word(QuoteString(c.User))
		b.word(QuoteString(c.Pass))
		b.flag("--no-submit", c.NoSubmit)
		b.wordOpt("--wait", c.Wait)
		b.durOpt("--timeout", c.Timeout)
	case *SearchCmd:
		b.word("search")
		b.word(QuoteString(c.Query))
		b.wordOpt("--submit", c.Submit)
		b.wordOpt("--wait", c.Wait)
		b.durOpt("--timeout", c.Timeout)
	case *DismissCmd:
		b.word("dismiss")
		b.word(QuoteString(c.What))
	case *AcceptCookiesCmd:
		b.word("accept_cookies")
	case *ScrollUntilCmd:
		b.word("scroll")
		b.word("until")
		b.target(c.Target)
		if c.Amount != nil {
			b.word(formatNumber(*c.Amount))
		}
		b.flag("--page", c.Page)
		b.durOpt("--timeout", c.Timeout)

	// Packs.
	case *PacksCmd:
		b.word("packs")
	case *PackCmd:
		b.word("pack")
		b.word(c.Op)
		b.word(wordOrQuoted(c.Arg))
	case *IntentsCmd:
		b.word("intents")
		b.flag("--session", c.Session)
	case *DefineCmd:
		b.word("define")
		b.word(c.Intent)
	case *UndefineCmd:
		b.word("undefine")
		b.word(c.Intent)
	case *ExportCmd:
		b.word("export")
		b.word(c.Intent)
		b.strOpt("--out", c.Out)
	case *RunCmd:
		b.word("run")
		b.word(c.Intent)
		for _, p := range c.Params {
			b.word(p.Key + "=" + QuoteString(p.Value))
		}

	// Network.
	case *InterceptCmd:
		b.word("intercept")
		if c.Op == "clear" {
			b.word("clear")
			if c.Pattern != "" {
				b.word(QuoteString(c.Pattern))
			}
		} else {
			b.word(QuoteString(c.Pattern))
			b.flag("--block", c.Block)
			b.strOpt("--respond", c.Respond)
			b.strOpt("--respond-file", c.RespondFile)
			if c.Status != 0 {
				b.word("--status")
				b.word(strconv.Itoa(c.Status))
			}
		}
	case *RequestsCmd:
		b.word("requests")
		b.strOpt("--filter", c.Filter)
		b.wordOpt("--method", c.Method)
		b.intOpt("--last", c.Last)

	// Console / errors.
	case *ConsoleCmd:
		b.word("console")
		b.flag("--clear", c.Clear)
		b.wordOpt("--level", c.Level)
		b.strOpt("--filter", c.Filter)
		b.intOpt("--last", c.Last)
	case *ErrorsCmd:
		b.word("errors")
		b.flag("--clear", c.Clear)
		b.intOpt("--last", c.Last)

	// Frames.
	case *FramesCmd:
		b.word("frames")
	case *FrameCmd:
		b.word("frame")
		switch c.Kind {
		case "main", "parent":
			b.word(c.Kind)
		default:
			b.targetOpt(c.Target)
		}

	// Dialog.
	case *DialogCmd:
		b.word("dialog")
		switch c.Op {
		case "accept":
			b.word("accept")
			if c.Text != "" {
				b.word(QuoteString(c.Text))
			}
		case "dismiss":
			b.word("dismiss")
		case "auto":
			b.word("auto")
			b.word(c.Mode)
		}

	// Viewport / device / media.
	case *ViewportCmd:
		b.word("viewport")
		b.word(formatNumber(c.Width))
		b.word(formatNumber(c.Height))
	case *DeviceCmd:
		b.word("device")
		if c.Device != "" {
			b.word(QuoteString(c.Device))
		}
	case *DevicesCmd:
		b.word("devices")
	case *MediaCmd:
		b.word("media")
		if c.Feature != "" {
			b.word(c.Feature)
			b.word(c.Value)
		}

	// Recording.
	case *TraceCmd:
		b.word("trace")
		if c.Start {
			b.word("start")
			if c.Path != "" {
				b.word(QuoteString(c.Path))
			}
		} else {
			b.word("stop")
		}
	case *RecordCmd:
		b.word("record")
		if c.Start {
			b.word("start")
			if c.Path != "" {
				b.word(QuoteString(c.Path))
			}
			b.wordOpt("--quality", c.Quality)
		} else {
			b.word("stop")
		}
	case *HighlightCmd:
		b.word("highlight")
		if c.Clear {
			b.word("--clear")
		} else {
			b.targetOpt(c.Target)
			b.durOpt("--duration", c.Duration)
			b.wordOpt("--color", c.Color)
		}

	// Utility.
	case *PDFCmd:
		b.word("pdf")
		b.word(QuoteString(c.Path))
		b.wordOpt("--format", c.Format)
		b.flag("--landscape", c.Landscape)
		b.strOpt("--margin", c.Margin)
	case *LearnCmd:
		b.word("learn")
		if c.Op != "" {
			b.word(c.Op)
		}
		if c.Intent != "" {
			b.word(c.Intent)
		}
	case *ExitCmd:
		b.word("exit")
	case *HelpCmd:
		b.word("help")
		if c.Topic != "" {
			b.word(c.Topic)
		}

	default:
		// Unreachable for values produced by the builder.
		return fmt.Sprintf("<unprintable command %T>", cmd)
	}
	return b.String()
}

// lineBuilder assembles a single canonical line word by word.
type lineBuilder struct {
	b strings.Builder
}

func (l *lineBuilder) word(w string) {
	if l.b.Len() > 0 {
		l.b.WriteByte(' ')
	}
	l.b.WriteString(w)
}

func (l *lineBuilder) flag(name string, set bool) {
	if set {
		l.word(name)
	}
}

func (l *lineBuilder) strOpt(name, val string) {
	if val != "" {
		l.word(name)
		l.word(QuoteString(val))
	}
}

func (l *lineBuilder) wordOpt(name, val string) {
	if val != "" {
		l.word(name)
		l.word(val)
	}
}

func (l *lineBuilder) durOpt(name string, d Duration) {
	if d != 0 {
		l.word(name)
		l.word(d.String())
	}
}

func (l *lineBuilder) numOpt(name string, f *float64) {
	if f != nil {
		l.word(name)
		l.word(formatNumber(*f))
	}
}

func (l *lineBuilder) intOpt(name string, n int) {
	if n != 0 {
		l.word(name)
		l.word(strconv.Itoa(n))
	}
}

func (l *lineBuilder) target(t Target) {
	l.word(t.String())
}

func (l *lineBuilder) targetOpt(t *Target) {
	if t != nil {
		l.word(t.String())
	}
}

func (l *lineBuilder) String() string { return l.b.String() }

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// wordOrQuoted renders a value that is usually a bare word, quoting it
// only when the raw form would not lex back as a single word.
func wordOrQuoted(w string) string {
	if w == "" || strings.HasPrefix(w, "--") || strings.HasPrefix(w, "#") || strings.ContainsAny(w, " \t\"\\") {
		return QuoteString(w)
	}
	return w
}
