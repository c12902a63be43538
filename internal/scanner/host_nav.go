package scanner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/oil-cli/api/schemas"
	"github.com/xkilldash9x/oil-cli/internal/ast"
)

// navTimeout picks the navigation deadline: the command's --timeout when
// given, the configured default otherwise.
func (m *Manager) navTimeout(d ast.Duration) time.Duration {
	if d > 0 {
		return time.Duration(d.Millis()) * time.Millisecond
	}
	return m.cfg.Browser.NavigationTimeout
}

func (m *Manager) doGoto(ctx context.Context, c *ast.GotoCmd) (*schemas.Response, error) {
	t, err := m.activeTab()
	if err != nil {
		return nil, err
	}

	var oneShot map[string]string
	if c.Headers != "" {
		if err := json.Unmarshal([]byte(c.Headers), &oneShot); err != nil {
			return nil, &schemas.ExecError{
				Code:    schemas.CodeInvalidRequest,
				Message: fmt.Sprintf("goto --headers must be a JSON object: %v", err),
			}
		}
	}

	navCtx, cancel := context.WithTimeout(ctx, m.navTimeout(c.Timeout))
	defer cancel()

	var actions []chromedp.Action
	if len(oneShot) > 0 {
		merged := t.sess.globalHeaders()
		for k, v := range oneShot {
			merged[k] = v
		}
		actions = append(actions, network.SetExtraHTTPHeaders(toNetworkHeaders(merged)))
	}
	actions = append(actions, chromedp.Navigate(normalizeGotoURL(c.URL)))

	navErr := t.run(navCtx, actions...)

	if len(oneShot) > 0 {
		// One-shot headers must not leak into later requests.
		restoreCtx, rcancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := t.run(restoreCtx, network.SetExtraHTTPHeaders(toNetworkHeaders(t.sess.globalHeaders()))); err != nil {
			t.log.Warn("restoring session headers after goto failed", zap.Error(err))
		}
		rcancel()
	}

	if navErr != nil {
		return nil, navError(navCtx, navErr, "navigation")
	}
	resp := schemas.OKResponse("goto")
	resp.Navigation = true
	return resp, nil
}

func (m *Manager) doBack(ctx context.Context) (*schemas.Response, error) {
	return m.historyStep(ctx, -1, "back")
}

func (m *Manager) doForward(ctx context.Context) (*schemas.Response, error) {
	return m.historyStep(ctx, 1, "forward")
}

// historyStep moves through session history via the page domain so a
// step past either end reports cleanly instead of silently reloading.
func (m *Manager) historyStep(ctx context.Context, delta int64, verb string) (*schemas.Response, error) {
	t, err := m.activeTab()
	if err != nil {
		return nil, err
	}
	navCtx, cancel := context.WithTimeout(ctx, m.cfg.Browser.NavigationTimeout)
	defer cancel()

	err = t.run(navCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		cur, entries, err := page.GetNavigationHistory().Do(ctx)
		if err != nil {
			return err
		}
		idx := cur + delta
		if idx < 0 || idx >= int64(len(entries)) {
			return fmt.Errorf("no %s history from here", verb)
		}
		return page.NavigateToHistoryEntry(entries[idx].ID).Do(ctx)
	}))
	if err != nil {
		return nil, navError(navCtx, err, verb)
	}
	resp := schemas.OKResponse(verb)
	resp.Navigation = true
	return resp, nil
}

func (m *Manager) doRefresh(ctx context.Context, c *ast.RefreshCmd) (*schemas.Response, error) {
	t, err := m.activeTab()
	if err != nil {
		return nil, err
	}
	navCtx, cancel := context.WithTimeout(ctx, m.cfg.Browser.NavigationTimeout)
	defer cancel()

	var actions []chromedp.Action
	if c.Hard {
		// Bracketing the reload with cache disabled gives the hard
		// semantics while keeping chromedp's load-event wait.
		actions = append(actions, network.SetCacheDisabled(true))
	}
	actions = append(actions, chromedp.Reload())
	if c.Hard && !m.cfg.Browser.DisableCache {
		actions = append(actions, network.SetCacheDisabled(false))
	}

	if err := t.run(navCtx, actions...); err != nil {
		return nil, navError(navCtx, err, "refresh")
	}
	resp := schemas.OKResponse("refresh")
	resp.Navigation = true
	return resp, nil
}

func (m *Manager) doURL(ctx context.Context) (*schemas.Response, error) {
	t, err := m.activeTab()
	if err != nil {
		return nil, err
	}
	loc, err := m.currentLocation(ctx, t)
	if err != nil {
		return nil, err
	}
	return &schemas.Response{Status: schemas.StatusOK, Text: loc}, nil
}

func (m *Manager) doTitle(ctx context.Context) (*schemas.Response, error) {
	t, err := m.activeTab()
	if err != nil {
		return nil, err
	}
	stepCtx, cancel := context.WithTimeout(ctx, m.engine.evalTimeout())
	defer cancel()

	var title string
	if err := t.run(stepCtx, chromedp.Title(&title)); err != nil {
		return nil, asScannerError("read title", err)
	}
	return &schemas.Response{Status: schemas.StatusOK, Text: title}, nil
}

// navError maps a failed navigation into the error taxonomy: a deadline
// hit is a TIMEOUT, everything else a NAVIGATION_ERROR with the browser's
// reason preserved.
func navError(ctx context.Context, err error, what string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &schemas.ExecError{
			Code:    schemas.CodeTimeout,
			Message: what + " timed out",
		}
	}
	return &schemas.ExecError{
		Code:    schemas.CodeNavigationError,
		Message: fmt.Sprintf("%s failed: %v", what, err),
	}
}

// normalizeGotoURL supplies the scheme operators habitually omit.
// Anything already carrying one, and browser-internal pages, pass
// through untouched.
func normalizeGotoURL(raw string) string {
	if strings.Contains(raw, "://") ||
		strings.HasPrefix(raw, "about:") ||
		strings.HasPrefix(raw, "data:") ||
		strings.HasPrefix(raw, "javascript:") {
		return raw
	}
	return "https://" + raw
}
