package scanner

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	cdplog "github.com/chromedp/cdproto/log"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/tracing"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/oil-cli/api/schemas"
	capnet "github.com/xkilldash9x/oil-cli/internal/network"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// pendingRequest tracks one in-flight network request until a
// loading-finished or loading-failed event closes it out into the
// capture ring.
type pendingRequest struct {
	start   time.Time
	method  string
	url     string
	status  int
	rtype   string
	mime    string
	size    int64
	blocked bool
}

// screencastState is an active recording; frames land in dir as
// numbered JPEGs.
type screencastState struct {
	dir   string
	count int
}

// tracingState accumulates trace event chunks until the browser reports
// tracing complete. Only the event goroutine appends; readers wait on
// done first.
type tracingState struct {
	path   string
	chunks [][]byte
	done   chan struct{}
}

// listen attaches the tab's event pump. It must run before the first
// chromedp.Run on the tab context so no early event slips past.
func (t *tab) listen() {
	chromedp.ListenTarget(t.ctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *cdpruntime.EventConsoleAPICalled:
			t.handleConsole(e)
		case *cdplog.EventEntryAdded:
			t.handleLogEntry(e)
		case *cdpruntime.EventExceptionThrown:
			t.handleException(e)

		case *cdpruntime.EventExecutionContextCreated:
			t.handleContextCreated(e)
		case *cdpruntime.EventExecutionContextDestroyed:
			t.handleContextDestroyed(e)
		case *cdpruntime.EventExecutionContextsCleared:
			t.handleContextsCleared()
		case *page.EventFrameDetached:
			t.handleFrameDetached(e)

		case *network.EventRequestWillBeSent:
			t.handleRequestWillBeSent(e)
		case *network.EventResponseReceived:
			t.handleResponseReceived(e)
		case *network.EventLoadingFinished:
			t.handleLoadingFinished(e)
		case *network.EventLoadingFailed:
			t.handleLoadingFailed(e)

		// Replies go back through the CDP connection the dispatcher is
		// reading from, so they must not block it.
		case *page.EventJavascriptDialogOpening:
			go t.answerDialog(e)
		case *fetch.EventRequestPaused:
			go t.resolvePaused(e)

		case *page.EventScreencastFrame:
			t.handleScreencastFrame(e)
		case *tracing.EventDataCollected:
			t.handleTraceData(e)
		case *tracing.EventTracingComplete:
			t.handleTraceComplete()
		}
	})
}

// -- console, log, and exception events --

func (t *tab) handleConsole(e *cdpruntime.EventConsoleAPICalled) {
	var text strings.Builder
	for i, arg := range e.Args {
		if i > 0 {
			text.WriteString(" ")
		}
		// Prefer the concrete value; fall back to the remote object's
		// description, then its bare type.
		var val interface{}
		if arg.Value != nil && json.Unmarshal([]byte(arg.Value), &val) == nil {
			text.WriteString(fmt.Sprintf("%v", val))
		} else if arg.Description != "" {
			text.WriteString(arg.Description)
		} else {
			text.WriteString(fmt.Sprintf("[%s]", arg.Type))
		}
	}

	t.sess.console.add(schemas.ConsoleEntry{
		When:   e.Timestamp.Time(),
		Level:  string(e.Type),
		Text:   text.String(),
		Source: "console-api",
	})
}

func (t *tab) handleLogEntry(e *cdplog.EventEntryAdded) {
	if e.Entry == nil {
		return
	}
	t.sess.console.add(schemas.ConsoleEntry{
		When:   e.Entry.Timestamp.Time(),
		Level:  string(e.Entry.Level),
		Text:   e.Entry.Text,
		Source: string(e.Entry.Source),
	})
}

func (t *tab) handleException(e *cdpruntime.EventExceptionThrown) {
	d := e.ExceptionDetails
	if d == nil {
		return
	}
	// The exception description usually carries the message plus stack;
	// the bare Text ("Uncaught") is the fallback.
	msg := d.Text
	if d.Exception != nil && d.Exception.Description != "" {
		msg = d.Exception.Description
	}
	t.sess.errors.add(schemas.PageError{
		When:    e.Timestamp.Time(),
		Message: msg,
		URL:     d.URL,
		Line:    d.LineNumber,
		Column:  d.ColumnNumber,
		Stack:   formatStack(d.StackTrace),
	})
}

// formatStack renders a CDP stack trace the way DevTools prints one.
func formatStack(st *cdpruntime.StackTrace) string {
	if st == nil || len(st.CallFrames) == 0 {
		return ""
	}
	var b strings.Builder
	for i, f := range st.CallFrames {
		if i > 0 {
			b.WriteString("\n")
		}
		fn := f.FunctionName
		if fn == "" {
			fn = "<anonymous>"
		}
		fmt.Fprintf(&b, "    at %s (%s:%d:%d)", fn, f.URL, f.LineNumber+1, f.ColumnNumber+1)
	}
	return b.String()
}

// -- execution context and frame tracking --

// handleContextCreated records the default execution context of each
// frame so evaluations can target a subframe after a frame switch.
func (t *tab) handleContextCreated(e *cdpruntime.EventExecutionContextCreated) {
	if e.Context == nil || len(e.Context.AuxData) == 0 {
		return
	}
	var aux struct {
		FrameID   cdp.FrameID `json:"frameId"`
		IsDefault bool        `json:"isDefault"`
	}
	if err := json.Unmarshal([]byte(e.Context.AuxData), &aux); err != nil || !aux.IsDefault {
		return
	}
	t.mu.Lock()
	t.frameContexts[aux.FrameID] = e.Context.ID
	t.mu.Unlock()
}

func (t *tab) handleContextDestroyed(e *cdpruntime.EventExecutionContextDestroyed) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for frame, id := range t.frameContexts {
		if id == e.ExecutionContextID {
			delete(t.frameContexts, frame)
		}
	}
}

func (t *tab) handleContextsCleared() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frameContexts = make(map[cdp.FrameID]cdpruntime.ExecutionContextID)
}

// handleFrameDetached drops the frame's context and, when the operator
// had switched into the detached frame, falls back to the main frame.
func (t *tab) handleFrameDetached(e *page.EventFrameDetached) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.frameContexts, e.FrameID)
	if t.frameID == e.FrameID {
		t.frameID = ""
	}
}

// -- network capture --

func (t *tab) handleRequestWillBeSent(e *network.EventRequestWillBeSent) {
	if e.Request == nil {
		return
	}
	start := time.Now()
	if e.WallTime != nil {
		start = e.WallTime.Time()
	}

	t.mu.Lock()
	prev := t.pending[e.RequestID]
	t.pending[e.RequestID] = &pendingRequest{
		start:  start,
		method: e.Request.Method,
		url:    e.Request.URL,
		rtype:  strings.ToLower(string(e.Type)),
	}
	t.mu.Unlock()

	// A redirect reuses the request ID; the previous leg is complete and
	// recorded with the redirect status.
	if e.RedirectResponse != nil && prev != nil {
		prev.status = int(e.RedirectResponse.Status)
		t.record(*prev, "")
	}
}

func (t *tab) handleResponseReceived(e *network.EventResponseReceived) {
	if e.Response == nil {
		return
	}
	t.mu.Lock()
	if p, ok := t.pending[e.RequestID]; ok {
		p.status = int(e.Response.Status)
		p.mime = e.Response.MimeType
	}
	t.mu.Unlock()
}

func (t *tab) handleLoadingFinished(e *network.EventLoadingFinished) {
	t.mu.Lock()
	p, ok := t.pending[e.RequestID]
	delete(t.pending, e.RequestID)
	t.mu.Unlock()
	if !ok {
		return
	}
	p.size = int64(e.EncodedDataLength)

	if t.sess.mgr.capture.CaptureBodies() && capnet.IsTextContent(p.mime) {
		go t.recordWithBody(e.RequestID, *p)
		return
	}
	t.record(*p, "")
}

func (t *tab) handleLoadingFailed(e *network.EventLoadingFailed) {
	t.mu.Lock()
	p, ok := t.pending[e.RequestID]
	delete(t.pending, e.RequestID)
	t.mu.Unlock()
	if !ok {
		return
	}
	if strings.Contains(e.ErrorText, "BLOCKED_BY_CLIENT") {
		p.blocked = true
	}
	t.record(*p, "")
}

// record appends one finished exchange to the shared capture ring.
func (t *tab) record(p pendingRequest, body string) {
	t.sess.mgr.capture.Add(schemas.CapturedRequest{
		When:    p.start,
		Method:  p.method,
		URL:     p.url,
		Status:  p.status,
		Type:    p.rtype,
		Size:    p.size,
		TookMs:  time.Since(p.start).Milliseconds(),
		Blocked: p.blocked,
		Body:    body,
	})
}

// recordWithBody fetches the response body before recording. Bodies are
// only retained by the browser briefly, so this races the page; on a
// miss the exchange is recorded without one.
func (t *tab) recordWithBody(id network.RequestID, p pendingRequest) {
	if t.ctx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(t.execCtx(), 15*time.Second)
	defer cancel()

	body, err := network.GetResponseBody(id).Do(ctx)
	if err != nil {
		if ctx.Err() == nil {
			t.log.Debug("fetching response body for capture failed",
				zap.String("url", p.url), zap.Error(err))
		}
		t.record(p, "")
		return
	}
	if len(body) > capnet.MaxCapturedBody {
		body = body[:capnet.MaxCapturedBody]
	}
	t.record(p, string(body))
}

// -- dialogs --

// answerDialog resolves a JavaScript dialog with the session's armed
// one-shot reply or its sticky mode. In "off" mode the dialog stays
// open and the evaluate path reports it via its timeout.
func (t *tab) answerDialog(e *page.EventJavascriptDialogOpening) {
	accept, text, ok := t.sess.dialogAnswer()
	if !ok {
		t.log.Debug("leaving dialog unanswered",
			zap.String("type", string(e.Type)), zap.String("message", e.Message))
		return
	}

	action := page.HandleJavaScriptDialog(accept)
	if accept && text != "" && e.Type == page.DialogTypePrompt {
		action = action.WithPromptText(text)
	}

	ctx, cancel := context.WithTimeout(t.execCtx(), 5*time.Second)
	defer cancel()
	if err := action.Do(ctx); err != nil && t.ctx.Err() == nil {
		t.log.Warn("answering dialog failed",
			zap.String("message", e.Message), zap.Error(err))
		return
	}
	t.log.Debug("answered dialog",
		zap.String("type", string(e.Type)),
		zap.String("message", e.Message),
		zap.Bool("accepted", accept))
}

// -- fetch interception --

// setIntercepting mirrors the intercept table into CDP fetch
// interception. Both stages pause: the request stage for blocks,
// synthetic replies, and per-domain headers; the response stage for
// status rewrites.
func (t *tab) setIntercepting(ctx context.Context, on bool) error {
	t.mu.Lock()
	if t.intercepting == on {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	var action chromedp.Action
	if on {
		action = fetch.Enable().WithPatterns([]*fetch.RequestPattern{
			{URLPattern: "*", RequestStage: fetch.RequestStageRequest},
			{URLPattern: "*", RequestStage: fetch.RequestStageResponse},
		})
	} else {
		action = fetch.Disable()
	}
	if err := t.run(ctx, action); err != nil {
		return fmt.Errorf("toggle request interception: %w", err)
	}

	t.mu.Lock()
	t.intercepting = on
	t.mu.Unlock()
	return nil
}

// resolvePaused continues, rewrites, or fails one paused fetch. Every
// paused request must be resolved or the page hangs on it.
func (t *tab) resolvePaused(e *fetch.EventRequestPaused) {
	ctx, cancel := context.WithTimeout(t.execCtx(), 10*time.Second)
	defer cancel()

	if err := t.resolvePausedIn(ctx, e); err != nil && t.ctx.Err() == nil {
		t.log.Debug("resolving paused request failed",
			zap.String("url", pausedURL(e)), zap.Error(err))
	}
}

func (t *tab) resolvePausedIn(ctx context.Context, e *fetch.EventRequestPaused) error {
	rule := t.sess.mgr.capture.Rules().Match(pausedURL(e))

	// Response stage. Only status-only rules act here; everything else
	// already ran at the request stage.
	if e.ResponseStatusCode != 0 || e.ResponseErrorReason != "" {
		if rule != nil && rule.Status != 0 && !rule.Block && rule.Respond == "" && rule.RespondFile == "" {
			body, err := fetch.GetResponseBody(e.RequestID).Do(ctx)
			if err != nil {
				body = nil
			}
			return fetch.FulfillRequest(e.RequestID, int64(rule.Status)).
				WithResponseHeaders(e.ResponseHeaders).
				WithBody(base64.StdEncoding.EncodeToString(body)).
				Do(ctx)
		}
		return fetch.ContinueResponse(e.RequestID).Do(ctx)
	}

	// Request stage.
	switch {
	case rule != nil && rule.Block:
		return fetch.FailRequest(e.RequestID, network.ErrorReasonBlockedByClient).Do(ctx)

	case rule != nil && (rule.Respond != "" || rule.RespondFile != ""):
		body := rule.Respond
		if rule.RespondFile != "" {
			data, err := os.ReadFile(rule.RespondFile)
			if err != nil {
				t.log.Warn("intercept respond-file unreadable, passing request through",
					zap.String("pattern", rule.Pattern), zap.Error(err))
				return fetch.ContinueRequest(e.RequestID).Do(ctx)
			}
			body = string(data)
		}
		status := rule.Status
		if status == 0 {
			status = 200
		}
		return fetch.FulfillRequest(e.RequestID, int64(status)).
			WithResponseHeaders([]*fetch.HeaderEntry{
				{Name: "Content-Type", Value: capnet.GuessContentType(body)},
			}).
			WithBody(base64.StdEncoding.EncodeToString([]byte(body))).
			Do(ctx)
	}

	// No rule acted; forward, with the session's per-domain headers
	// merged in when any match.
	extra := t.sess.domainHeaders(hostOf(pausedURL(e)))
	if len(extra) == 0 || e.Request == nil {
		return fetch.ContinueRequest(e.RequestID).Do(ctx)
	}
	headers := make([]*fetch.HeaderEntry, 0, len(e.Request.Headers)+len(extra))
	for name, value := range e.Request.Headers {
		if v, ok := value.(string); ok {
			headers = append(headers, &fetch.HeaderEntry{Name: name, Value: v})
		}
	}
	for name, value := range extra {
		headers = append(headers, &fetch.HeaderEntry{Name: name, Value: value})
	}
	return fetch.ContinueRequest(e.RequestID).WithHeaders(headers).Do(ctx)
}

func pausedURL(e *fetch.EventRequestPaused) string {
	if e.Request != nil {
		return e.Request.URL
	}
	return ""
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// -- screencast and tracing --

func (t *tab) handleScreencastFrame(e *page.EventScreencastFrame) {
	// Ack regardless of recording state; Chrome stops sending after a
	// few unacknowledged frames.
	go func() {
		ctx, cancel := context.WithTimeout(t.execCtx(), 5*time.Second)
		defer cancel()
		if err := page.ScreencastFrameAck(e.SessionID).Do(ctx); err != nil && t.ctx.Err() == nil {
			t.log.Debug("screencast frame ack failed", zap.Error(err))
		}
	}()

	t.mu.Lock()
	sc := t.screencast
	var path string
	if sc != nil {
		path = filepath.Join(sc.dir, fmt.Sprintf("frame-%05d.jpg", sc.count))
		sc.count++
	}
	t.mu.Unlock()
	if sc == nil {
		return
	}

	data, err := base64.StdEncoding.DecodeString(e.Data)
	if err != nil {
		t.log.Debug("screencast frame not decodable", zap.Error(err))
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.log.Warn("writing screencast frame failed", zap.String("path", path), zap.Error(err))
	}
}

func (t *tab) handleTraceData(e *tracing.EventDataCollected) {
	t.mu.Lock()
	tr := t.trace
	t.mu.Unlock()
	if tr == nil {
		return
	}
	for _, v := range e.Value {
		tr.chunks = append(tr.chunks, []byte(v))
	}
}

func (t *tab) handleTraceComplete() {
	t.mu.Lock()
	tr := t.trace
	t.trace = nil
	t.mu.Unlock()
	if tr == nil {
		return
	}
	close(tr.done)
}
