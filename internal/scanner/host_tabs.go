package scanner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/oil-cli/api/schemas"
	"github.com/xkilldash9x/oil-cli/internal/ast"
)

// tabTimeout bounds one tab or frame operation.
const tabTimeout = 10 * time.Second

// doSessions lists sessions in creation order.
func (m *Manager) doSessions() (*schemas.Response, error) {
	if _, err := m.currentSession(); err != nil {
		return nil, err
	}
	return schemas.DataResponse(schemas.DataSessions, m.sessionInfos())
}

// doSession manages named sessions; bare it names the current one.
func (m *Manager) doSession(ctx context.Context, c *ast.SessionCmd) (*schemas.Response, error) {
	switch c.Op {
	case "new":
		if _, err := m.createSession(c.Session, c.Mode); err != nil {
			return nil, err
		}
		return schemas.OKResponse("session"), nil
	case "switch":
		if _, err := m.switchSession(c.Session); err != nil {
			return nil, err
		}
		resp := schemas.OKResponse("session")
		resp.Navigation = true
		return resp, nil
	case "close":
		if err := m.closeSession(ctx, c.Session); err != nil {
			return nil, err
		}
		return schemas.OKResponse("session"), nil
	case "":
		s, err := m.currentSession()
		if err != nil {
			return nil, err
		}
		return &schemas.Response{Status: schemas.StatusOK, Text: s.name}, nil
	}
	return nil, &schemas.ExecError{
		Code:    schemas.CodeInvalidRequest,
		Message: fmt.Sprintf("unknown session operation %q", c.Op),
		Details: schemas.ErrorDetails{Value: c.Op},
	}
}

// doHeaders manages extra request headers. Global headers ride
// network.SetExtraHTTPHeaders on every tab; per-domain sets are injected
// by the fetch layer, which needs interception on.
func (m *Manager) doHeaders(ctx context.Context, c *ast.HeadersCmd) (*schemas.Response, error) {
	s, err := m.currentSession()
	if err != nil {
		return nil, err
	}

	switch c.Op {
	case ast.OpSet:
		var hdrs map[string]string
		if err := json.UnmarshalFromString(c.JSON, &hdrs); err != nil {
			return nil, &schemas.ExecError{
				Code:    schemas.CodeInvalidRequest,
				Message: fmt.Sprintf("headers set needs a JSON object: %v", err),
			}
		}
		s.setHeaders(c.Domain, hdrs)
	case ast.OpClear:
		s.clearHeaders(c.Domain, c.Domain == "")
	case "show", "":
		return schemas.DataResponse(schemas.DataHeaders, s.headerSets())
	default:
		return nil, &schemas.ExecError{
			Code:    schemas.CodeInvalidRequest,
			Message: fmt.Sprintf("unknown headers operation %q", c.Op),
			Details: schemas.ErrorDetails{Value: c.Op},
		}
	}

	if err := m.applySessionHeaders(ctx, s); err != nil {
		return nil, asScannerError("apply headers", err)
	}
	m.syncIntercept(ctx)
	return schemas.OKResponse("headers"), nil
}

// applySessionHeaders pushes the merged global header set to every tab
// of the session.
func (m *Manager) applySessionHeaders(ctx context.Context, s *session) error {
	hdrs := toNetworkHeaders(s.globalHeaders())
	tabs, _ := s.tabList()
	opCtx, cancel := context.WithTimeout(ctx, tabTimeout)
	defer cancel()
	for _, t := range tabs {
		if err := t.run(opCtx, network.SetExtraHTTPHeaders(hdrs)); err != nil {
			return err
		}
	}
	return nil
}

// doTabs lists the session's tabs with their live titles.
func (m *Manager) doTabs(ctx context.Context) (*schemas.Response, error) {
	s, err := m.currentSession()
	if err != nil {
		return nil, err
	}
	tabs, active := s.tabList()

	opCtx, cancel := context.WithTimeout(ctx, tabTimeout)
	defer cancel()

	infos := make([]schemas.TabInfo, 0, len(tabs))
	for i, t := range tabs {
		info := schemas.TabInfo{ID: string(t.id), Active: i == active}
		if err := t.run(opCtx, chromedp.Location(&info.URL), chromedp.Title(&info.Title)); err != nil && opCtx.Err() == nil {
			t.log.Debug("reading tab info failed", zap.Error(err))
		}
		infos = append(infos, info)
	}
	return schemas.DataResponse(schemas.DataTabs, infos)
}

// doTab opens, switches to, or closes a tab. Indexes are the zero-based
// positions tabs lists.
func (m *Manager) doTab(ctx context.Context, c *ast.TabCmd) (*schemas.Response, error) {
	s, err := m.currentSession()
	if err != nil {
		return nil, err
	}

	switch c.Op {
	case "new":
		url := "about:blank"
		if c.URL != "" {
			url = normalizeGotoURL(c.URL)
		}
		m.contextLock.Lock()
		_, err := s.addTabLocked(url)
		m.contextLock.Unlock()
		if err != nil {
			return nil, asScannerError("open tab", err)
		}
	case "switch":
		if err := s.switchTab(c.Index); err != nil {
			return nil, err
		}
	case "close":
		if err := s.closeTab(c.Index); err != nil {
			return nil, err
		}
	default:
		return nil, &schemas.ExecError{
			Code:    schemas.CodeInvalidRequest,
			Message: fmt.Sprintf("unknown tab operation %q", c.Op),
			Details: schemas.ErrorDetails{Value: c.Op},
		}
	}

	// Whatever happened, the visible page changed.
	resp := schemas.OKResponse("tab")
	resp.Navigation = true
	return resp, nil
}

// doFrames lists the page's frame tree depth-first.
func (m *Manager) doFrames(ctx context.Context) (*schemas.Response, error) {
	t, err := m.activeTab()
	if err != nil {
		return nil, err
	}
	tree, err := m.frameTree(ctx, t)
	if err != nil {
		return nil, err
	}

	current := t.activeFrame()
	var frames []schemas.FrameInfo
	var walk func(node *page.FrameTree, depth int)
	walk = func(node *page.FrameTree, depth int) {
		f := node.Frame
		frames = append(frames, schemas.FrameInfo{
			ID:      string(f.ID),
			URL:     f.URL,
			Name:    f.Name,
			Depth:   depth,
			Current: f.ID == current || (current == "" && depth == 0),
		})
		for _, child := range node.ChildFrames {
			walk(child, depth+1)
		}
	}
	walk(tree, 0)
	return schemas.DataResponse(schemas.DataFrames, frames)
}

// doFrame switches the frame that in-page evaluation targets.
func (m *Manager) doFrame(ctx context.Context, c *ast.FrameCmd) (*schemas.Response, error) {
	t, err := m.activeTab()
	if err != nil {
		return nil, err
	}

	switch c.Kind {
	case "main", "":
		t.setActiveFrame("")
		return schemas.OKResponse("frame"), nil

	case "parent":
		current := t.activeFrame()
		if current == "" {
			return nil, &schemas.ExecError{
				Code:    schemas.CodeInvalidRequest,
				Message: "the main frame has no parent",
			}
		}
		tree, err := m.frameTree(ctx, t)
		if err != nil {
			return nil, err
		}
		parent, ok := parentFrame(tree, current)
		if !ok || parent == tree.Frame.ID {
			parent = ""
		}
		t.setActiveFrame(parent)
		return schemas.OKResponse("frame"), nil

	case "target":
		if c.Target == nil || c.Target.Primary.Value == "" {
			return nil, &schemas.ExecError{
				Code:    schemas.CodeInvalidRequest,
				Message: "frame targets match by name or URL text",
			}
		}
		needle := strings.ToLower(c.Target.Primary.Value)
		tree, err := m.frameTree(ctx, t)
		if err != nil {
			return nil, err
		}
		id, ok := findFrame(tree, needle)
		if !ok {
			return nil, &schemas.ExecError{
				Code:    schemas.CodeElementNotFound,
				Message: fmt.Sprintf("no frame matching %q", c.Target.Primary.Value),
				Details: schemas.ErrorDetails{Value: c.Target.Primary.Value},
			}
		}
		if id == tree.Frame.ID {
			id = ""
		}
		t.setActiveFrame(id)
		return schemas.OKResponse("frame"), nil
	}

	return nil, &schemas.ExecError{
		Code:    schemas.CodeInvalidRequest,
		Message: fmt.Sprintf("unknown frame kind %q", c.Kind),
		Details: schemas.ErrorDetails{Value: c.Kind},
	}
}

// doDialog answers the next dialog or configures the sticky auto mode.
func (m *Manager) doDialog(c *ast.DialogCmd) (*schemas.Response, error) {
	s, err := m.currentSession()
	if err != nil {
		return nil, err
	}

	switch c.Op {
	case "accept":
		s.armDialog(true, c.Text)
	case "dismiss":
		s.armDialog(false, "")
	case "auto":
		switch c.Mode {
		case dialogAccept, dialogDismiss, dialogOff:
			s.setDialogMode(c.Mode)
		default:
			return nil, &schemas.ExecError{
				Code:    schemas.CodeInvalidRequest,
				Message: fmt.Sprintf("dialog auto mode must be accept, dismiss, or off, got %q", c.Mode),
				Details: schemas.ErrorDetails{Value: c.Mode},
			}
		}
	default:
		return nil, &schemas.ExecError{
			Code:    schemas.CodeInvalidRequest,
			Message: fmt.Sprintf("unknown dialog operation %q", c.Op),
			Details: schemas.ErrorDetails{Value: c.Op},
		}
	}
	return schemas.OKResponse("dialog"), nil
}

// -- frame helpers --

func (t *tab) activeFrame() cdp.FrameID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.frameID
}

func (t *tab) setActiveFrame(id cdp.FrameID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frameID = id
}

func (m *Manager) frameTree(ctx context.Context, t *tab) (*page.FrameTree, error) {
	opCtx, cancel := context.WithTimeout(ctx, tabTimeout)
	defer cancel()
	var tree *page.FrameTree
	err := t.run(opCtx, chromedp.ActionFunc(func(cc context.Context) (err error) {
		tree, err = page.GetFrameTree().Do(cc)
		return err
	}))
	if err != nil {
		return nil, asScannerError("read frame tree", err)
	}
	return tree, nil
}

// parentFrame finds the parent of the frame with the given id.
func parentFrame(node *page.FrameTree, id cdp.FrameID) (cdp.FrameID, bool) {
	for _, child := range node.ChildFrames {
		if child.Frame.ID == id {
			return node.Frame.ID, true
		}
		if p, ok := parentFrame(child, id); ok {
			return p, ok
		}
	}
	return "", false
}

// findFrame matches frames by name first, then by URL, case-insensitive
// substring either way.
func findFrame(node *page.FrameTree, needle string) (cdp.FrameID, bool) {
	if id, ok := findFrameBy(node, func(f *cdp.Frame) bool {
		return f.Name != "" && strings.Contains(strings.ToLower(f.Name), needle)
	}); ok {
		return id, true
	}
	return findFrameBy(node, func(f *cdp.Frame) bool {
		return strings.Contains(strings.ToLower(f.URL), needle)
	})
}

func findFrameBy(node *page.FrameTree, match func(*cdp.Frame) bool) (cdp.FrameID, bool) {
	if match(node.Frame) {
		return node.Frame.ID, true
	}
	for _, child := range node.ChildFrames {
		if id, ok := findFrameBy(child, match); ok {
			return id, ok
		}
	}
	return "", false
}
