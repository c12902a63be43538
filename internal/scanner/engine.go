// Package scanner owns the live browser: it launches Chrome through
// chromedp, keeps named isolated sessions with their tabs, injects the
// embedded in-page engine, and serves both halves of the command surface:
// wire requests evaluated inside the page and CDP-native operations
// (navigation, cookies, emulation, capture) the page cannot perform on
// itself.
package scanner

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/oil-cli/api/schemas"
	"github.com/xkilldash9x/oil-cli/internal/config"
)

//go:embed scanner.js
var engineJS string

const (
	// engineProbe checks whether the current execution context already
	// carries the engine. Evaluated before every request; a fresh document
	// (navigation, frame swap) probes true and gets reinjected.
	engineProbe = `typeof window.__oil__ === 'undefined'`

	// dialogBlockedMessage explains the one way an in-page evaluation can
	// time out on an otherwise healthy tab: a native dialog is pausing
	// script execution.
	dialogBlockedMessage = "command timed out - possibly blocked by a dialog (alert/confirm/prompt)"
)

// isContextError reports whether err is a destroyed or missing execution
// context failure. Navigation racing an evaluation produces these; they
// clear on their own once the new document is up, so the bridge retries
// them with a fresh injection.
func isContextError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Cannot find context") ||
		strings.Contains(msg, "Execution context was destroyed") ||
		strings.Contains(msg, "-32000")
}

// engine is the bridge between wire requests and the in-page
// window.__oil__ object.
type engine struct {
	cfg config.ScannerConfig
	log *zap.Logger
}

func newEngine(cfg config.ScannerConfig, logger *zap.Logger) *engine {
	return &engine{cfg: cfg, log: logger.Named("engine")}
}

// process delivers one encoded wire request to the engine inside t's
// active document and decodes the answer. Each attempt ensures the engine
// is injected first; destroyed-context failures retry after a short delay
// until the attempt budget runs out.
func (e *engine) process(ctx context.Context, t *tab, payload []byte) (*schemas.Response, error) {
	expr := fmt.Sprintf("window.__oil__.process(%s)", payload)

	attempts := e.cfg.ContextRetries
	if attempts <= 0 {
		attempts = 1
	}
	delay := e.cfg.ContextRetryDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, &schemas.ExecError{
					Code:    schemas.CodeConnectionLost,
					Message: fmt.Sprintf("cancelled while waiting for execution context: %v", lastErr),
				}
			case <-time.After(delay):
			}
		}

		if err := e.ensureInjected(ctx, t); err != nil {
			if isContextError(err) {
				lastErr = err
				continue
			}
			return nil, asScannerError("engine injection failed", err)
		}

		raw, err := e.evaluate(ctx, t, expr)
		if err != nil {
			if isContextError(err) {
				lastErr = err
				continue
			}
			return nil, err
		}
		return schemas.DecodeResponse(raw)
	}

	return nil, &schemas.ExecError{
		Code:    schemas.CodeScannerError,
		Message: fmt.Sprintf("no stable execution context after %d attempts: %v", attempts, lastErr),
	}
}

// ensureInjected probes for the engine and evaluates the embedded source
// when the document does not carry it yet. The persistent
// AddScriptToEvaluateOnNewDocument registration covers most documents;
// this handles tabs that were open before the registration and frames
// that cleared their contexts.
func (e *engine) ensureInjected(ctx context.Context, t *tab) error {
	stepCtx, cancel := context.WithTimeout(ctx, e.evalTimeout())
	defer cancel()

	var missing bool
	if err := t.run(stepCtx, chromedp.Evaluate(engineProbe, &missing, t.evalOptions)); err != nil {
		if stepCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return &schemas.ExecError{Code: schemas.CodeTimeout, Message: dialogBlockedMessage}
		}
		return err
	}
	if !missing {
		return nil
	}

	e.log.Debug("injecting in-page engine")
	if err := t.run(stepCtx, chromedp.Evaluate(engineJS, nil, t.evalOptions)); err != nil {
		if stepCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return &schemas.ExecError{Code: schemas.CodeTimeout, Message: dialogBlockedMessage}
		}
		return err
	}
	return nil
}

// evaluate runs one process() expression with the configured timeout and
// maps the failure modes: a deadline on a live tab means a dialog is
// blocking script execution, a thrown exception is a script error, and
// context losses pass through raw for the retry loop.
func (e *engine) evaluate(ctx context.Context, t *tab, expr string) ([]byte, error) {
	evalCtx, cancel := context.WithTimeout(ctx, e.evalTimeout())
	defer cancel()

	var raw []byte
	err := t.run(evalCtx, chromedp.Evaluate(expr, &raw, t.evalOptions))
	if err == nil {
		return raw, nil
	}

	if evalCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		return nil, &schemas.ExecError{Code: schemas.CodeTimeout, Message: dialogBlockedMessage}
	}
	if isContextError(err) {
		return nil, err
	}

	var exc *runtime.ExceptionDetails
	if errors.As(err, &exc) {
		return nil, &schemas.ExecError{Code: schemas.CodeScriptError, Message: exceptionText(exc)}
	}
	return nil, asScannerError("engine evaluation failed", err)
}

func (e *engine) evalTimeout() time.Duration {
	if e.cfg.EvalTimeout > 0 {
		return e.cfg.EvalTimeout
	}
	return 10 * time.Second
}

// exceptionText pulls the most descriptive message out of a thrown
// exception: the exception object's description usually includes the
// stack, the bare text is the fallback.
func exceptionText(exc *runtime.ExceptionDetails) string {
	if exc.Exception != nil && exc.Exception.Description != "" {
		return exc.Exception.Description
	}
	return exc.Text
}

// asScannerError wraps a raw CDP failure as a typed host error unless it
// already is one.
func asScannerError(prefix string, err error) error {
	var ee *schemas.ExecError
	if errors.As(err, &ee) {
		return ee
	}
	return &schemas.ExecError{
		Code:    schemas.CodeScannerError,
		Message: fmt.Sprintf("%s: %v", prefix, err),
	}
}
