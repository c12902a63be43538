package scanner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/tracing"
	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/oil-cli/api/schemas"
	"github.com/xkilldash9x/oil-cli/internal/ast"
	capnet "github.com/xkilldash9x/oil-cli/internal/network"
)

const (
	captureTimeout = 10 * time.Second
	// traceFlushTimeout bounds the wait for the browser to stream
	// collected trace data after tracing.End.
	traceFlushTimeout = 15 * time.Second
)

// doIntercept installs or clears intercept rules and re-syncs CDP fetch
// interception to match.
func (m *Manager) doIntercept(ctx context.Context, c *ast.InterceptCmd) (*schemas.Response, error) {
	if _, err := m.currentSession(); err != nil {
		return nil, err
	}

	resp := schemas.OKResponse("intercept")
	switch c.Op {
	case ast.OpSet:
		rule := capnet.Rule{
			Pattern:     c.Pattern,
			Block:       c.Block,
			Respond:     c.Respond,
			RespondFile: c.RespondFile,
			Status:      c.Status,
		}
		if err := m.capture.Rules().Set(rule); err != nil {
			return nil, &schemas.ExecError{
				Code:    schemas.CodeInvalidRequest,
				Message: err.Error(),
				Details: schemas.ErrorDetails{Value: c.Pattern},
			}
		}
	case ast.OpClear:
		removed := m.capture.Rules().Clear(c.Pattern)
		resp.Text = fmt.Sprintf("removed %d intercept rule(s)", removed)
	default:
		return nil, &schemas.ExecError{
			Code:    schemas.CodeInvalidRequest,
			Message: fmt.Sprintf("unknown intercept operation %q", c.Op),
			Details: schemas.ErrorDetails{Value: c.Op},
		}
	}

	m.maybeSyncIntercept(ctx)
	return resp, nil
}

// doRequests lists the capture ring.
func (m *Manager) doRequests(c *ast.RequestsCmd) (*schemas.Response, error) {
	return schemas.DataResponse(schemas.DataRequests, m.capture.List(c.Filter, c.Method, c.Last))
}

// doConsole lists or clears the session's console buffer.
func (m *Manager) doConsole(c *ast.ConsoleCmd) (*schemas.Response, error) {
	s, err := m.currentSession()
	if err != nil {
		return nil, err
	}
	if c.Clear {
		s.console.clear()
		return schemas.OKResponse("console"), nil
	}
	return schemas.DataResponse(schemas.DataConsole, s.console.list(c.Level, c.Filter, c.Last))
}

// doErrors lists or clears the session's JavaScript error buffer.
func (m *Manager) doErrors(c *ast.ErrorsCmd) (*schemas.Response, error) {
	s, err := m.currentSession()
	if err != nil {
		return nil, err
	}
	if c.Clear {
		s.errors.clear()
		return schemas.OKResponse("errors"), nil
	}
	return schemas.DataResponse(schemas.DataErrors, s.errors.list(c.Last))
}

// doTrace starts or stops a performance trace on the active tab. Stop
// waits for the browser to flush collected events, then writes them as a
// DevTools-loadable JSON file.
func (m *Manager) doTrace(ctx context.Context, c *ast.TraceCmd) (*schemas.Response, error) {
	t, err := m.activeTab()
	if err != nil {
		return nil, err
	}

	if c.Start {
		path := c.Path
		if path == "" {
			path = "trace.json"
		}
		tr := &tracingState{path: path, done: make(chan struct{})}

		t.mu.Lock()
		if t.trace != nil {
			t.mu.Unlock()
			return nil, &schemas.ExecError{
				Code:    schemas.CodeInvalidRequest,
				Message: "tracing is already running",
			}
		}
		t.trace = tr
		t.mu.Unlock()

		opCtx, cancel := context.WithTimeout(ctx, captureTimeout)
		defer cancel()
		start := tracing.Start().WithTransferMode(tracing.TransferModeReportEvents)
		if err := t.run(opCtx, start); err != nil {
			t.mu.Lock()
			t.trace = nil
			t.mu.Unlock()
			return nil, asScannerError("start tracing", err)
		}
		return schemas.OKResponse("trace"), nil
	}

	// Grab the state before End; the complete event detaches it from
	// the tab.
	t.mu.Lock()
	tr := t.trace
	t.mu.Unlock()
	if tr == nil {
		return nil, &schemas.ExecError{
			Code:    schemas.CodeInvalidRequest,
			Message: "tracing is not running",
		}
	}

	opCtx, cancel := context.WithTimeout(ctx, captureTimeout)
	defer cancel()
	if err := t.run(opCtx, chromedp.ActionFunc(func(cc context.Context) error {
		return tracing.End().Do(cc)
	})); err != nil {
		return nil, asScannerError("stop tracing", err)
	}

	select {
	case <-tr.done:
	case <-time.After(traceFlushTimeout):
		return nil, &schemas.ExecError{
			Code:    schemas.CodeTimeout,
			Message: "trace data did not arrive before the deadline",
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := writeTraceFile(tr.path, tr.chunks); err != nil {
		return nil, &schemas.ExecError{
			Code:    schemas.CodeIOError,
			Message: fmt.Sprintf("write trace: %v", err),
		}
	}

	resp := schemas.OKResponse("trace")
	resp.Text = fmt.Sprintf("wrote %d trace events to %s", len(tr.chunks), tr.path)
	return resp, nil
}

// writeTraceFile assembles trace event chunks into the
// {"traceEvents":[...]} shape DevTools and Perfetto load.
func writeTraceFile(path string, chunks [][]byte) error {
	var buf bytes.Buffer
	buf.WriteString(`{"traceEvents":[`)
	for i, chunk := range chunks {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(chunk)
	}
	buf.WriteString(`]}`)
	return writeArtifact(path, buf.Bytes())
}

// doRecord starts or stops a screencast recording. Frames land in the
// target directory as numbered JPEGs while the pump acks each one.
func (m *Manager) doRecord(ctx context.Context, c *ast.RecordCmd) (*schemas.Response, error) {
	t, err := m.activeTab()
	if err != nil {
		return nil, err
	}

	if c.Start {
		quality, err := recordQuality(c.Quality)
		if err != nil {
			return nil, err
		}
		dir := c.Path
		if dir == "" {
			dir = "recording"
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &schemas.ExecError{
				Code:    schemas.CodeIOError,
				Message: fmt.Sprintf("create recording directory: %v", err),
			}
		}

		t.mu.Lock()
		if t.screencast != nil {
			t.mu.Unlock()
			return nil, &schemas.ExecError{
				Code:    schemas.CodeInvalidRequest,
				Message: "recording is already running",
			}
		}
		t.screencast = &screencastState{dir: dir}
		t.mu.Unlock()

		opCtx, cancel := context.WithTimeout(ctx, captureTimeout)
		defer cancel()
		start := page.StartScreencast().
			WithFormat(page.ScreencastFormatJpeg).
			WithQuality(quality).
			WithEveryNthFrame(1)
		if err := t.run(opCtx, start); err != nil {
			t.mu.Lock()
			t.screencast = nil
			t.mu.Unlock()
			return nil, asScannerError("start recording", err)
		}
		return schemas.OKResponse("record"), nil
	}

	t.mu.Lock()
	sc := t.screencast
	t.mu.Unlock()
	if sc == nil {
		return nil, &schemas.ExecError{
			Code:    schemas.CodeInvalidRequest,
			Message: "recording is not running",
		}
	}

	opCtx, cancel := context.WithTimeout(ctx, captureTimeout)
	defer cancel()
	if err := t.run(opCtx, page.StopScreencast()); err != nil {
		return nil, asScannerError("stop recording", err)
	}

	// The pump bumps count under the tab lock, so the read is ordered
	// after the last stored frame.
	t.mu.Lock()
	count := sc.count
	t.screencast = nil
	t.mu.Unlock()

	resp := schemas.OKResponse("record")
	resp.Text = fmt.Sprintf("saved %d frames to %s", count, sc.dir)
	return resp, nil
}

// recordQuality maps the user-facing quality word to a JPEG quality.
func recordQuality(q string) (int64, error) {
	switch strings.ToLower(q) {
	case "":
		return 80, nil
	case "low":
		return 50, nil
	case "medium":
		return 80, nil
	case "high":
		return 90, nil
	}
	n, err := strconv.Atoi(q)
	if err != nil || n < 1 || n > 100 {
		return 0, &schemas.ExecError{
			Code:    schemas.CodeInvalidRequest,
			Message: fmt.Sprintf("quality must be low, medium, high, or 1-100, got %q", q),
			Details: schemas.ErrorDetails{Value: q},
		}
	}
	return int64(n), nil
}
