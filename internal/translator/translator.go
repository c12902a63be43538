// Package translator lowers resolved commands into wire requests for the
// in-page engine. Translation is mechanical: action targets must already
// be concrete element IDs, so everything interesting happened in the
// resolver. Commands without a wire form (navigation, tabs, screenshots,
// key events) belong to the session host and are reported as errors here;
// callers dispatch them before translating.
package translator

import (
	"fmt"
	"strconv"

	"github.com/xkilldash9x/oil-cli/api/schemas"
	"github.com/xkilldash9x/oil-cli/internal/ast"
)

// Error is a translation failure: a target that should have been
// resolved first, or a command the engine has no request for.
type Error struct {
	Pos ast.Span
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

// Modifier bits carried by click requests.
const (
	modAlt   = 1
	modCtrl  = 2
	modMeta  = 4
	modShift = 8
)

// HasWireForm reports whether a command lowers to an engine request. The
// rest run on the session host.
func HasWireForm(cmd ast.Command) bool {
	switch cmd.(type) {
	case *ast.ObserveCmd, *ast.ClickCmd, *ast.TypeCmd, *ast.ClearCmd,
		*ast.SelectCmd, *ast.CheckCmd, *ast.UncheckCmd, *ast.HoverCmd,
		*ast.FocusCmd, *ast.SubmitCmd, *ast.ScrollCmd, *ast.WaitCmd,
		*ast.TextCmd, *ast.HTMLCmd, *ast.ExtractCmd, *ast.BoxCmd,
		*ast.HighlightCmd, *ast.StorageCmd:
		return true
	default:
		return false
	}
}

// Translate lowers one resolved command to its wire request.
func Translate(cmd ast.Command) (schemas.Request, error) {
	switch c := cmd.(type) {
	case *ast.ObserveCmd:
		return &schemas.ScanRequest{
			Cmd:       schemas.CmdScan,
			Full:      c.Full,
			Minimal:   c.Minimal,
			Viewport:  c.Viewport,
			Hidden:    c.Hidden,
			Positions: c.Positions,
			Diff:      c.Diff,
			Near:      c.Near,
			TimeoutMs: c.Timeout.Millis(),
		}, nil

	case *ast.ClickCmd:
		id, err := actionID(c.Target, "click")
		if err != nil {
			return nil, err
		}
		req := &schemas.ClickRequest{
			Cmd:       schemas.CmdClick,
			ID:        id,
			Modifiers: clickModifiers(c),
			Force:     c.Force,
		}
		switch {
		case c.Right:
			req.Button = "right"
		case c.Middle:
			req.Button = "middle"
		}
		if c.Double {
			req.ClickCount = 2
		}
		return req, nil

	case *ast.TypeCmd:
		id, err := actionID(c.Target, "type")
		if err != nil {
			return nil, err
		}
		req := &schemas.TypeRequest{
			Cmd:    schemas.CmdType,
			ID:     id,
			Text:   c.Text,
			Clear:  c.Clear,
			Submit: c.Enter,
		}
		if c.Delay != nil {
			req.DelayMs = *c.Delay
		}
		return req, nil

	case *ast.ClearCmd:
		id, err := actionID(c.Target, "clear")
		if err != nil {
			return nil, err
		}
		return &schemas.ClearRequest{Cmd: schemas.CmdClear, ID: id}, nil

	case *ast.SelectCmd:
		id, err := actionID(c.Target, "select")
		if err != nil {
			return nil, err
		}
		req := &schemas.SelectRequest{Cmd: schemas.CmdSelect, ID: id}
		// A bare non-negative number picks by option index, anything
		// else by visible label.
		if idx, err := strconv.Atoi(c.Value); err == nil && idx >= 0 {
			req.Index = &idx
		} else {
			req.Label = c.Value
		}
		return req, nil

	case *ast.CheckCmd:
		id, err := actionID(c.Target, "check")
		if err != nil {
			return nil, err
		}
		return &schemas.CheckRequest{Cmd: schemas.CmdCheck, ID: id, Checked: true}, nil

	case *ast.UncheckCmd:
		id, err := actionID(c.Target, "uncheck")
		if err != nil {
			return nil, err
		}
		return &schemas.CheckRequest{Cmd: schemas.CmdCheck, ID: id, Checked: false}, nil

	case *ast.HoverCmd:
		id, err := actionID(c.Target, "hover")
		if err != nil {
			return nil, err
		}
		return &schemas.HoverRequest{Cmd: schemas.CmdHover, ID: id}, nil

	case *ast.FocusCmd:
		id, err := actionID(c.Target, "focus")
		if err != nil {
			return nil, err
		}
		return &schemas.FocusRequest{Cmd: schemas.CmdFocus, ID: id}, nil

	case *ast.SubmitCmd:
		if c.Target == nil {
			// No target survived resolution: the engine locates the form
			// owning the focused element. Never a placeholder ID.
			return &schemas.SubmitRequest{
				Cmd:     schemas.CmdSubmit,
				Resolve: schemas.ResolveContainingForm,
			}, nil
		}
		id, err := actionID(*c.Target, "submit")
		if err != nil {
			return nil, err
		}
		return &schemas.SubmitRequest{Cmd: schemas.CmdSubmit, ID: &id}, nil

	case *ast.ScrollCmd:
		req := &schemas.ScrollRequest{
			Cmd:       schemas.CmdScroll,
			Direction: c.Direction,
			Page:      c.Page,
		}
		if c.Amount != nil {
			req.Amount = *c.Amount
		}
		if c.Target != nil {
			id, err := actionID(*c.Target, "scroll")
			if err != nil {
				return nil, err
			}
			req.ID = &id
		}
		return req, nil

	case *ast.WaitCmd:
		return translateWait(c)

	case *ast.TextCmd:
		req := &schemas.TextRequest{Cmd: schemas.CmdText}
		if c.Target != nil {
			switch {
			case c.Target.Resolved():
				id := c.Target.Primary.ID
				req.ID = &id
			case c.Target.Primary.Kind == ast.AtomCss && len(c.Target.Relations) == 0:
				req.Selector = c.Target.Primary.Value
			default:
				return nil, &Error{
					Pos: c.Target.Span,
					Msg: fmt.Sprintf("text target %s is not resolved to an element ID", c.Target),
				}
			}
		}
		return req, nil

	case *ast.HTMLCmd:
		return &schemas.HTMLRequest{Cmd: schemas.CmdHTML, Selector: c.Selector}, nil

	case *ast.ExtractCmd:
		sel := c.Selector
		if c.What == ast.ExtractCss {
			sel = c.CssArg
		}
		return &schemas.ExtractRequest{
			Cmd:      schemas.CmdExtract,
			What:     string(c.What),
			Selector: sel,
			Format:   c.Format,
		}, nil

	case *ast.BoxCmd:
		id, err := actionID(c.Target, "box")
		if err != nil {
			return nil, err
		}
		return &schemas.BoxRequest{Cmd: schemas.CmdBox, ID: id}, nil

	case *ast.HighlightCmd:
		req := &schemas.HighlightRequest{
			Cmd:        schemas.CmdHighlight,
			Clear:      c.Clear,
			DurationMs: c.Duration.Millis(),
			Color:      c.Color,
		}
		if c.Target != nil && !c.Clear {
			id, err := actionID(*c.Target, "highlight")
			if err != nil {
				return nil, err
			}
			req.ID = &id
		}
		return req, nil

	case *ast.StorageCmd:
		scope := "local"
		if c.Session {
			scope = "session"
		}
		op := c.Op
		if op == "" {
			op = ast.OpList
		}
		return &schemas.StorageRequest{
			Cmd:   schemas.CmdStorage,
			Scope: scope,
			Op:    op,
			Name:  c.Key,
			Value: c.Value,
		}, nil

	case *ast.DismissCmd, *ast.AcceptCookiesCmd:
		return nil, &Error{
			Pos: cmd.Pos(),
			Msg: fmt.Sprintf("%s lowers to a click during resolution; translate the resolved command", cmd.Name()),
		}

	default:
		return nil, &Error{
			Pos: cmd.Pos(),
			Msg: fmt.Sprintf("%s has no wire form; the session host executes it directly", cmd.Name()),
		}
	}
}

// actionID returns the concrete element ID of an action target.
func actionID(t ast.Target, verb string) (uint32, error) {
	if t.Resolved() {
		return t.Primary.ID, nil
	}
	return 0, &Error{
		Pos: t.Span,
		Msg: fmt.Sprintf("%s target %s is not resolved to an element ID", verb, t),
	}
}

func clickModifiers(c *ast.ClickCmd) int {
	m := 0
	if c.Alt {
		m |= modAlt
	}
	if c.Ctrl {
		m |= modCtrl
	}
	if c.Shift {
		m |= modShift
	}
	return m
}

// translateWait maps a wait condition onto the polling request. Textual
// condition targets ride Text and Role; Selector is strictly CSS, so an
// XPath target has nowhere to go and is rejected.
func translateWait(c *ast.WaitCmd) (schemas.Request, error) {
	req := &schemas.WaitRequest{Cmd: schemas.CmdWait, Condition: string(c.Cond.Kind)}
	switch c.Cond.Kind {
	case ast.WaitVisible, ast.WaitHidden:
		if c.Cond.Target == nil {
			return nil, &Error{
				Pos: c.Pos(),
				Msg: fmt.Sprintf("wait %s needs a target", c.Cond.Kind),
			}
		}
		if err := applyWaitTarget(req, *c.Cond.Target); err != nil {
			return nil, err
		}
	case ast.WaitExists, ast.WaitGone:
		req.Selector = c.Cond.Selector
	case ast.WaitURL:
		req.URL = c.Cond.Pattern
	case ast.WaitUntil:
		req.Expression = c.Cond.Expr
	case ast.WaitItems:
		req.Selector = c.Cond.Selector
		req.Count = c.Cond.Count
	case ast.WaitLoad, ast.WaitIdle, ast.WaitNavigation, ast.WaitReady:
		// Condition name alone suffices.
	default:
		return nil, &Error{
			Pos: c.Pos(),
			Msg: fmt.Sprintf("unknown wait condition %q", c.Cond.Kind),
		}
	}
	return req, nil
}

func applyWaitTarget(req *schemas.WaitRequest, t ast.Target) error {
	if len(t.Relations) > 0 {
		return &Error{
			Pos: t.Span,
			Msg: "wait targets take no relations; the condition is re-checked, not resolved",
		}
	}
	switch a := t.Primary; a.Kind {
	case ast.AtomID:
		id := a.ID
		req.ID = &id
	case ast.AtomCss:
		req.Selector = a.Value
	case ast.AtomText:
		req.Text = a.Value
	case ast.AtomRole:
		req.Role = a.Value
	default:
		return &Error{
			Pos: t.Span,
			Msg: fmt.Sprintf("wait cannot watch %s targets", a.Kind),
		}
	}
	return nil
}
