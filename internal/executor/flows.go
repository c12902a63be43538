package executor

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/xkilldash9x/oil-cli/api/schemas"
	"github.com/xkilldash9x/oil-cli/internal/ast"
	"github.com/xkilldash9x/oil-cli/internal/resolver"
)

// runLogin fills the recognized login form: type username, type
// password, submit, optionally wait. Always scans fresh; login pages
// love to swap their forms in late.
func (e *Executor) runLogin(ctx context.Context, c *ast.LoginCmd) (*schemas.Response, error) {
	m, err := e.freshScan(ctx)
	if err != nil {
		return nil, err
	}
	user, uok := m.PatternSlot(resolver.PatternLogin, resolver.SlotLoginUsername)
	pass, pok := m.PatternSlot(resolver.PatternLogin, resolver.SlotLoginPassword)
	if !uok || !pok {
		return nil, &schemas.ExecError{
			Code:    schemas.CodeElementNotFound,
			Message: "no login form recognized on this page",
		}
	}

	if _, err := e.process(ctx, &schemas.TypeRequest{
		Cmd: schemas.CmdType, ID: user, Text: c.User, Clear: true,
	}); err != nil {
		return nil, err
	}
	if _, err := e.process(ctx, &schemas.TypeRequest{
		Cmd: schemas.CmdType, ID: pass, Text: c.Pass, Clear: true,
	}); err != nil {
		return nil, err
	}

	var last *schemas.Response
	if !c.NoSubmit {
		if submit, ok := m.PatternSlot(resolver.PatternLogin, resolver.SlotLoginSubmit); ok {
			last, err = e.process(ctx, &schemas.ClickRequest{Cmd: schemas.CmdClick, ID: submit})
		} else {
			// No visible submit control; let the engine find the form
			// that owns the focused password field.
			last, err = e.process(ctx, &schemas.SubmitRequest{
				Cmd: schemas.CmdSubmit, Resolve: schemas.ResolveContainingForm,
			})
		}
		if err != nil {
			return nil, err
		}
	}

	resp := schemas.OKResponse("login")
	if last != nil {
		resp.Navigation = last.Navigation
		resp.DOMChanges = last.DOMChanges
	}
	return e.afterFlowWait(ctx, resp, c.Wait, c.Timeout)
}

// runSearch types into the recognized search box and submits per mode:
// enter (default), click, or none.
func (e *Executor) runSearch(ctx context.Context, c *ast.SearchCmd) (*schemas.Response, error) {
	m, err := e.freshScan(ctx)
	if err != nil {
		return nil, err
	}
	input, ok := m.PatternSlot(resolver.PatternSearch, resolver.SlotSearchInput)
	if !ok {
		return nil, &schemas.ExecError{
			Code:    schemas.CodeElementNotFound,
			Message: "no search box recognized on this page",
		}
	}

	mode := strings.ToLower(c.Submit)
	if mode == "" {
		mode = "enter"
	}
	var last *schemas.Response
	switch mode {
	case "enter":
		last, err = e.process(ctx, &schemas.TypeRequest{
			Cmd: schemas.CmdType, ID: input, Text: c.Query, Clear: true, Submit: true,
		})
	case "click":
		if last, err = e.process(ctx, &schemas.TypeRequest{
			Cmd: schemas.CmdType, ID: input, Text: c.Query, Clear: true,
		}); err != nil {
			return nil, err
		}
		if btn, ok := m.PatternSlot(resolver.PatternSearch, resolver.SlotSearchSubmit); ok {
			last, err = e.process(ctx, &schemas.ClickRequest{Cmd: schemas.CmdClick, ID: btn})
		} else {
			last, err = e.process(ctx, &schemas.SubmitRequest{
				Cmd: schemas.CmdSubmit, Resolve: schemas.ResolveContainingForm,
			})
		}
	case "none":
		last, err = e.process(ctx, &schemas.TypeRequest{
			Cmd: schemas.CmdType, ID: input, Text: c.Query, Clear: true,
		})
	default:
		return nil, &schemas.ExecError{
			Code:    schemas.CodeInvalidRequest,
			Message: fmt.Sprintf("search --submit must be enter, click, or none, not %q", c.Submit),
		}
	}
	if err != nil {
		return nil, err
	}

	resp := schemas.OKResponse("search")
	if last != nil {
		resp.Navigation = last.Navigation
		resp.DOMChanges = last.DOMChanges
	}
	return e.afterFlowWait(ctx, resp, c.Wait, c.Timeout)
}

// afterFlowWait runs the optional --wait condition of login/search and
// folds the waited response's page movement into resp.
func (e *Executor) afterFlowWait(ctx context.Context, resp *schemas.Response, wait string, timeout ast.Duration) (*schemas.Response, error) {
	if wait == "" {
		return resp, nil
	}
	kind := ast.WaitKind(strings.ToLower(wait))
	switch kind {
	case ast.WaitLoad, ast.WaitIdle, ast.WaitNavigation, ast.WaitReady:
	default:
		return nil, &schemas.ExecError{
			Code:    schemas.CodeInvalidRequest,
			Message: fmt.Sprintf("--wait must be load, idle, navigation, or ready, not %q", wait),
		}
	}
	waited, err := e.runWait(ctx, &ast.WaitCmd{Cond: ast.WaitCondition{Kind: kind}, Timeout: timeout})
	if err != nil {
		return nil, err
	}
	resp.WaitedMs = waited.WaitedMs
	if kind == ast.WaitNavigation {
		resp.Navigation = true
	}
	return resp, nil
}

// runExport writes an intent back out as a script file.
func (e *Executor) runExport(c *ast.ExportCmd) (*schemas.Response, error) {
	lines, err := e.intents.Export(c.Intent)
	if err != nil {
		return nil, err
	}
	path := c.Out
	if path == "" {
		path = c.Intent + ".oil"
	}
	body := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return nil, &schemas.ExecError{Code: schemas.CodeIOError, Message: err.Error()}
	}
	resp := schemas.OKResponse("export")
	resp.Text = fmt.Sprintf("exported %q to %s", c.Intent, path)
	return resp, nil
}

const maxRunDepth = 8

// runIntent expands an intent and executes its lines in order, stopping
// at the first failure. Nested runs share a depth budget so an intent
// that runs itself fails instead of spinning.
func (e *Executor) runIntent(ctx context.Context, c *ast.RunCmd) (*schemas.Response, error) {
	lines, err := e.intents.Expand(c.Intent, c.Params)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.runDepth >= maxRunDepth {
		e.mu.Unlock()
		return nil, &schemas.ExecError{
			Code:    schemas.CodeInvalidRequest,
			Message: fmt.Sprintf("intent %q nests more than %d runs deep", c.Intent, maxRunDepth),
		}
	}
	e.runDepth++
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.runDepth--
		e.mu.Unlock()
	}()

	executed := 0
	for i, line := range lines {
		res := e.ExecuteLine(ctx, line)
		if res == nil {
			continue
		}
		if res.Err != nil {
			return nil, fmt.Errorf("%s step %d (%s): %w", c.Intent, i+1, MaskLine(line), res.Err)
		}
		executed++
		if res.Exit {
			break
		}
	}
	resp := schemas.OKResponse("run")
	resp.Text = fmt.Sprintf("ran %s (%d commands)", c.Intent, executed)
	return resp, nil
}

// runPack handles pack load/unload/install.
func (e *Executor) runPack(ctx context.Context, c *ast.PackCmd) (*schemas.Response, error) {
	resp := schemas.OKResponse("pack")
	switch c.Op {
	case "load":
		n, err := e.intents.LoadPack(c.Arg)
		if err != nil {
			return nil, err
		}
		resp.Text = fmt.Sprintf("loaded pack %s (%d intents)", c.Arg, n)
	case "unload":
		if err := e.intents.UnloadPack(c.Arg); err != nil {
			return nil, err
		}
		resp.Text = fmt.Sprintf("unloaded pack %s", c.Arg)
	case "install":
		name, n, err := e.intents.InstallPack(ctx, c.Arg)
		if err != nil {
			return nil, err
		}
		resp.Text = fmt.Sprintf("installed pack %s (%d intents)", name, n)
	default:
		return nil, &schemas.ExecError{
			Code:    schemas.CodeInvalidRequest,
			Message: fmt.Sprintf("pack %s: expected load, unload, or install", c.Op),
		}
	}
	return resp, nil
}

// runLearn manages the recording buffer that accumulates successful
// actions for later promotion to an intent.
func (e *Executor) runLearn(c *ast.LearnCmd) (*schemas.Response, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	resp := schemas.OKResponse("learn")
	switch c.Op {
	case "", "status":
		resp.Text = fmt.Sprintf("learning buffer: %d command(s)", len(e.learned))
	case "show":
		if len(e.learned) == 0 {
			resp.Text = "learning buffer is empty"
			break
		}
		var b strings.Builder
		for i, line := range e.learned {
			fmt.Fprintf(&b, "%3d  %s\n", i+1, line)
		}
		resp.Text = strings.TrimRight(b.String(), "\n")
	case "save":
		if len(e.learned) == 0 {
			return nil, &schemas.ExecError{
				Code:    schemas.CodeInvalidRequest,
				Message: "learning buffer is empty; nothing to save",
			}
		}
		in, err := e.intents.Define(c.Intent, e.learned)
		if err != nil {
			return nil, err
		}
		n := len(e.learned)
		e.learned = nil
		resp.Text = fmt.Sprintf("saved %d command(s) as %q", n, in.Name)
	case "discard":
		n := len(e.learned)
		e.learned = nil
		resp.Text = fmt.Sprintf("discarded %d command(s)", n)
	default:
		return nil, &schemas.ExecError{
			Code:    schemas.CodeInvalidRequest,
			Message: fmt.Sprintf("learn %s: expected status, show, save, or discard", c.Op),
		}
	}
	return resp, nil
}

// noteLearn appends successful state-changing commands to the learning
// buffer, masked so saved intents never embed credentials.
func (e *Executor) noteLearn(res *Result) {
	if res == nil || res.Err != nil || !recordable(res.Cmd) {
		return
	}
	e.mu.Lock()
	e.learned = append(e.learned, MaskLine(res.Line))
	e.mu.Unlock()
}

// recordable picks the commands worth replaying: things that change the
// page, the session, or the emulation, not observations.
func recordable(cmd ast.Command) bool {
	switch c := cmd.(type) {
	case *ast.GotoCmd, *ast.BackCmd, *ast.ForwardCmd, *ast.RefreshCmd,
		*ast.ClickCmd, *ast.TypeCmd, *ast.ClearCmd, *ast.SelectCmd,
		*ast.CheckCmd, *ast.UncheckCmd, *ast.HoverCmd, *ast.FocusCmd,
		*ast.SubmitCmd, *ast.ScrollCmd, *ast.ScrollUntilCmd,
		*ast.PressCmd, *ast.KeydownCmd, *ast.KeyupCmd,
		*ast.WaitCmd, *ast.LoginCmd, *ast.SearchCmd,
		*ast.DismissCmd, *ast.AcceptCookiesCmd,
		*ast.ViewportCmd, *ast.DeviceCmd, *ast.MediaCmd:
		return true
	case *ast.CookiesCmd:
		return c.Op == ast.OpSet || c.Op == ast.OpDelete || c.Op == ast.OpClear
	case *ast.StorageCmd:
		return c.Op == ast.OpSet || c.Op == ast.OpDelete || c.Op == ast.OpClear
	}
	return false
}
