// Package executor runs parsed commands against a browser host. It owns
// the element-map cache and its generation counter, decides which
// commands need resolution, translates in-page commands to wire
// requests, and expands the composite verbs (login, search, run) into
// primitive steps. The host stays a dumb transport; sequencing and
// retries live here.
package executor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/oil-cli/api/schemas"
	"github.com/xkilldash9x/oil-cli/internal/ast"
	"github.com/xkilldash9x/oil-cli/internal/config"
	"github.com/xkilldash9x/oil-cli/internal/intent"
	"github.com/xkilldash9x/oil-cli/internal/normalizer"
	"github.com/xkilldash9x/oil-cli/internal/parser"
	"github.com/xkilldash9x/oil-cli/internal/resolver"
	"github.com/xkilldash9x/oil-cli/internal/translator"
)

// Host is the browser surface the executor drives. *scanner.Manager
// implements it; tests substitute a scripted fake.
type Host interface {
	// Process sends a translated request to the in-page engine.
	Process(ctx context.Context, req schemas.Request) (*schemas.Response, error)
	// Do executes a CDP-native command (navigation, tabs, emulation, ...).
	Do(ctx context.Context, cmd ast.Command) (*schemas.Response, error)
	Screenshot(ctx context.Context, opts schemas.ScreenshotOptions) (*schemas.Response, error)
	PDF(ctx context.Context, opts schemas.PDFOptions) (*schemas.Response, error)
	SessionState(ctx context.Context, includeSession bool) (*schemas.SessionState, error)
	ApplySessionState(ctx context.Context, st *schemas.SessionState, merge bool) error
}

// StateStore persists session state files. Save and Load return the
// path actually used so results can name it.
type StateStore interface {
	Save(name string, st *schemas.SessionState) (string, error)
	Load(name string) (*schemas.SessionState, string, error)
}

// Result is the outcome of one executed line.
type Result struct {
	Line     string // canonical text of the line, sensitive values intact
	Cmd      ast.Command
	Response *schemas.Response
	Err      error
	Took     time.Duration
	Exit     bool // an exit command was executed at the top level
}

// Failed reports whether the line ended in an error.
func (r *Result) Failed() bool { return r != nil && r.Err != nil }

// Executor sequences command execution for one operator session.
type Executor struct {
	cfg     *config.Config
	host    Host
	res     *resolver.Resolver
	intents *intent.Registry
	history History
	states  StateStore
	log     *zap.Logger

	// runID stamps history rows so one CLI invocation groups together.
	runID uuid.UUID

	mu         sync.Mutex
	generation uint64
	scan       *resolver.ElementMap
	defining   *definition
	learned    []string
	runDepth   int
}

// definition is an in-progress define..end capture.
type definition struct {
	name  string
	lines []string
}

// New builds an executor. History and states may be nil; the features
// backed by them quietly disable.
func New(cfg *config.Config, host Host, res *resolver.Resolver, reg *intent.Registry,
	history History, states StateStore, log *zap.Logger) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	if reg == nil {
		reg = intent.New("", log)
	}
	return &Executor{
		cfg:     cfg,
		host:    host,
		res:     res,
		intents: reg,
		history: history,
		states:  states,
		log:     log.Named("executor"),
		runID:   uuid.New(),
	}
}

// RunID identifies this executor's history session.
func (e *Executor) RunID() uuid.UUID { return e.runID }

// Defining reports the name of the intent currently being captured, or
// "" when not in define mode. The REPL uses it to switch prompts.
func (e *Executor) Defining() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.defining == nil {
		return ""
	}
	return e.defining.name
}

// ExecuteLine normalizes, parses, and executes one input line. Blank
// and comment-only lines return nil. During define capture the line is
// recorded instead of executed.
func (e *Executor) ExecuteLine(ctx context.Context, raw string) *Result {
	if res, captured := e.captureDefine(raw); captured {
		return res
	}
	line := normalizer.Normalize(raw)
	if line == "" {
		return nil
	}
	parsed, err := parser.ParseLine(line, 1)
	if err != nil {
		res := &Result{Line: line, Err: err}
		e.record(ctx, res)
		return res
	}
	if parsed.Command == nil {
		return nil
	}
	res := e.Execute(ctx, parsed.Command)
	res.Line = line
	e.record(ctx, res)
	e.noteLearn(res)
	return res
}

// Execute runs a single parsed command.
func (e *Executor) Execute(ctx context.Context, cmd ast.Command) *Result {
	start := time.Now()
	res := &Result{Cmd: cmd}
	res.Response, res.Err = e.dispatch(ctx, cmd)
	res.Took = time.Since(start)
	if _, ok := cmd.(*ast.ExitCmd); ok && res.Err == nil {
		res.Exit = true
	}
	if res.Err == nil {
		e.noteResponse(res.Response)
	}
	e.log.Debug("command executed",
		zap.String("command", cmd.Name()),
		zap.Duration("took", res.Took),
		zap.Bool("ok", res.Err == nil))
	return res
}

// dispatch routes a command to its handler: executor-owned verbs first,
// then the wire path for in-page commands, then the host for CDP-native
// ones.
func (e *Executor) dispatch(ctx context.Context, cmd ast.Command) (*schemas.Response, error) {
	switch c := cmd.(type) {
	case *ast.ExitCmd:
		return schemas.OKResponse("exit"), nil
	case *ast.HelpCmd:
		return &schemas.Response{Status: schemas.StatusOK, Text: helpText(c.Topic)}, nil

	case *ast.WaitCmd:
		return e.runWait(ctx, c)
	case *ast.ScrollUntilCmd:
		return e.runScrollUntil(ctx, c)
	case *ast.LoginCmd:
		return e.runLogin(ctx, c)
	case *ast.SearchCmd:
		return e.runSearch(ctx, c)
	case *ast.ExtractCmd:
		return e.runExtract(ctx, c)

	case *ast.ScreenshotCmd:
		return e.runScreenshot(ctx, c)
	case *ast.PDFCmd:
		return e.runPDF(ctx, c)
	case *ast.StateCmd:
		return e.runState(ctx, c)

	case *ast.DefineCmd:
		return e.startDefine(c.Intent)
	case *ast.UndefineCmd:
		if err := e.intents.Undefine(c.Intent); err != nil {
			return nil, err
		}
		resp := schemas.OKResponse("undefine")
		resp.Text = fmt.Sprintf("undefined %q", c.Intent)
		return resp, nil
	case *ast.ExportCmd:
		return e.runExport(c)
	case *ast.RunCmd:
		return e.runIntent(ctx, c)
	case *ast.IntentsCmd:
		return schemas.DataResponse(schemas.DataIntents, e.intents.List(c.Session))
	case *ast.PacksCmd:
		return schemas.DataResponse(schemas.DataPacks, e.intents.Packs())
	case *ast.PackCmd:
		return e.runPack(ctx, c)
	case *ast.LearnCmd:
		return e.runLearn(c)
	}

	if translator.HasWireForm(cmd) || resolver.NeedsResolution(cmd) {
		return e.runWire(ctx, cmd)
	}
	return e.host.Do(ctx, cmd)
}

// noteResponse bumps the map generation when a response reports page
// movement or DOM mutation, so the next resolution forces a rescan.
func (e *Executor) noteResponse(resp *schemas.Response) {
	if resp == nil {
		return
	}
	mutated := resp.DOMChanges != nil &&
		resp.DOMChanges.Added+resp.DOMChanges.Removed+resp.DOMChanges.Modified > 0
	if !resp.Navigation && !mutated {
		return
	}
	e.mu.Lock()
	e.generation++
	e.scan = nil
	e.mu.Unlock()
}

// Generation returns the current element-map generation.
func (e *Executor) Generation() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generation
}

// LastPage returns the page info of the cached scan, or nil when no
// current map exists. The REPL uses it for its status line.
func (e *Executor) LastPage() *schemas.PageInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.scan == nil {
		return nil
	}
	return e.scan.Page()
}

// captureDefine intercepts lines while a define..end block is open. The
// second return is false when no capture is active.
func (e *Executor) captureDefine(raw string) (*Result, bool) {
	e.mu.Lock()
	def := e.defining
	e.mu.Unlock()
	if def == nil {
		return nil, false
	}

	trimmed := normalizer.Normalize(raw)
	switch {
	case trimmed == "" || strings.HasPrefix(trimmed, "#"):
		return nil, true
	case trimmed == "end":
		e.mu.Lock()
		e.defining = nil
		e.mu.Unlock()
		in, err := e.intents.Define(def.name, def.lines)
		if err != nil {
			return &Result{Line: trimmed, Err: err}, true
		}
		resp := schemas.OKResponse("define")
		resp.Text = fmt.Sprintf("defined %q (%d commands)", in.Name, len(in.Lines))
		return &Result{Line: trimmed, Response: resp}, true
	case strings.HasPrefix(trimmed, "define "):
		return &Result{Line: trimmed, Err: &schemas.ExecError{
			Code:    schemas.CodeInvalidRequest,
			Message: fmt.Sprintf("already defining %q; finish with end", def.name),
		}}, true
	}

	// Validate now so a typo surfaces at define time, not on run. Lines
	// with bare ${param} placeholders only parse after substitution, so
	// they are recorded as-is.
	if !strings.Contains(trimmed, "${") {
		if _, err := parser.ParseLine(trimmed, 1); err != nil {
			return &Result{Line: trimmed, Err: err}, true
		}
	}

	def.lines = append(def.lines, trimmed)
	resp := &schemas.Response{Status: schemas.StatusOK, Text: "  + " + trimmed}
	return &Result{Line: trimmed, Response: resp}, true
}

func (e *Executor) startDefine(name string) (*schemas.Response, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.defining != nil {
		return nil, &schemas.ExecError{
			Code:    schemas.CodeInvalidRequest,
			Message: fmt.Sprintf("already defining %q; finish with end", e.defining.name),
		}
	}
	if !intent.ValidName(name) {
		return nil, &schemas.ExecError{
			Code:    schemas.CodeInvalidRequest,
			Message: fmt.Sprintf("invalid intent name %q", name),
		}
	}
	e.defining = &definition{name: name}
	resp := schemas.OKResponse("define")
	resp.Text = fmt.Sprintf("defining %q; add commands, finish with end", name)
	return resp, nil
}
