package scanner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/oil-cli/api/schemas"
	"github.com/xkilldash9x/oil-cli/internal/ast"
	"github.com/xkilldash9x/oil-cli/internal/config"
	capnet "github.com/xkilldash9x/oil-cli/internal/network"
)

// Manager owns the browser process and the named sessions inside it. It
// is the host half of the scanner: wire commands go through Process into
// the in-page engine of the active tab, host commands are served
// natively from Do over CDP.
type Manager struct {
	cfg *config.Config
	log *zap.Logger

	capture *capnet.Capture
	engine  *engine

	// contextLock serializes browser context and target creation;
	// concurrent CreateTarget calls against a fresh context race inside
	// the browser.
	contextLock sync.Mutex

	mu            sync.Mutex
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	sessions      map[string]*session
	order         []string
	current       *session
	started       bool
	ruleGen       uint64
}

// NewManager builds the session host. Start must run before any command
// is served.
func NewManager(cfg *config.Config, logger *zap.Logger) *Manager {
	log := logger.Named("scanner")
	return &Manager{
		cfg:      cfg,
		log:      log,
		capture:  capnet.NewCapture(cfg.Network.CaptureBuffer, cfg.Network.CaptureBodies),
		engine:   newEngine(cfg.Scanner, log),
		sessions: make(map[string]*session),
	}
}

// Capture exposes the shared request capture ring.
func (m *Manager) Capture() *capnet.Capture { return m.capture }

// Start launches the browser and opens the default session with one
// blank tab.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return errors.New("scanner already started")
	}

	m.allocCtx, m.allocCancel = chromedp.NewExecAllocator(context.Background(), m.allocatorOptions()...)
	m.browserCtx, m.browserCancel = chromedp.NewContext(m.allocCtx,
		chromedp.WithLogf(m.log.Sugar().Debugf),
		chromedp.WithErrorf(m.log.Sugar().Errorf),
	)

	// Launch. The connection's initial blank tab stays unused; every
	// session, including default, runs in its own isolated browser
	// context.
	launchCtx, cancel := combineContext(m.browserCtx, ctx)
	err := chromedp.Run(launchCtx)
	cancel()
	if err != nil {
		m.browserCancel()
		m.allocCancel()
		return fmt.Errorf("launch browser: %w", err)
	}

	s, err := m.newSession("default", "")
	if err != nil {
		m.browserCancel()
		m.allocCancel()
		return fmt.Errorf("create default session: %w", err)
	}
	m.sessions[s.name] = s
	m.order = []string{s.name}
	m.current = s
	m.started = true

	m.log.Info("browser started",
		zap.Bool("headless", m.cfg.Browser.Headless),
		zap.Int("viewport_width", m.cfg.Browser.Viewport.Width),
		zap.Int("viewport_height", m.cfg.Browser.Viewport.Height))
	return nil
}

// Close tears down every session, then the browser process. The graceful
// shutdown is raced against the caller's deadline.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = false
	sessions := make([]*session, 0, len(m.sessions))
	for _, name := range m.order {
		sessions = append(sessions, m.sessions[name])
	}
	m.sessions = make(map[string]*session)
	m.order = nil
	m.current = nil
	m.mu.Unlock()

	for _, s := range sessions {
		s.close(ctx)
	}

	done := make(chan error, 1)
	go func() { done <- chromedp.Cancel(m.browserCtx) }()
	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	m.browserCancel()
	m.allocCancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("browser shutdown: %w", err)
	}
	m.log.Info("browser stopped")
	return nil
}

// allocatorOptions assembles the Chrome launch flags from configuration.
func (m *Manager) allocatorOptions() []chromedp.ExecAllocatorOption {
	cfg := m.cfg.Browser
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("enable-automation", true),
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.WindowSize(cfg.Viewport.Width, cfg.Viewport.Height),
	}
	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.IgnoreTLSErrors {
		opts = append(opts, chromedp.Flag("ignore-certificate-errors", true))
	}
	for _, arg := range cfg.Args {
		key, value, found := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		if found {
			opts = append(opts, chromedp.Flag(key, value))
		} else {
			opts = append(opts, chromedp.Flag(key, true))
		}
	}
	if p := m.cfg.Network.Proxy; p.Enabled && p.Address != "" && !strings.HasSuffix(p.Address, ":0") {
		opts = append(opts, chromedp.ProxyServer("http://"+p.Address))
	}
	return opts
}

// controllerCtx routes raw cdproto commands to the browser-level
// connection, for target and browser-context management.
func (m *Manager) controllerCtx() context.Context {
	c := chromedp.FromContext(m.browserCtx)
	return cdp.WithExecutor(m.browserCtx, c.Browser)
}

// -- session registry --

func (m *Manager) currentSession() (*session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started || m.current == nil {
		return nil, &schemas.ExecError{Code: schemas.CodeNotReady, Message: "browser not started"}
	}
	return m.current, nil
}

func (m *Manager) activeTab() (*tab, error) {
	s, err := m.currentSession()
	if err != nil {
		return nil, err
	}
	return s.activeTab()
}

// createSession opens a new named session and switches to it.
func (m *Manager) createSession(name, mode string) (*session, error) {
	if name == "" {
		return nil, &schemas.ExecError{Code: schemas.CodeInvalidRequest, Message: "session needs a name"}
	}
	m.mu.Lock()
	if _, exists := m.sessions[name]; exists {
		m.mu.Unlock()
		return nil, &schemas.ExecError{
			Code:    schemas.CodeInvalidRequest,
			Message: fmt.Sprintf("session %q already exists", name),
		}
	}
	m.mu.Unlock()

	s, err := m.newSession(name, mode)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[name] = s
	m.order = append(m.order, name)
	m.current = s
	m.mu.Unlock()
	return s, nil
}

// switchSession makes the named session current.
func (m *Manager) switchSession(name string) (*session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[name]
	if !ok {
		return nil, &schemas.ExecError{
			Code:    schemas.CodeInvalidRequest,
			Message: fmt.Sprintf("no session %q", name),
			Details: schemas.ErrorDetails{Value: name},
		}
	}
	m.current = s
	return s, nil
}

// closeSession tears down the named session. The default session cannot
// be closed; closing the current one falls back to default.
func (m *Manager) closeSession(ctx context.Context, name string) error {
	if name == "default" {
		return &schemas.ExecError{
			Code:    schemas.CodeInvalidRequest,
			Message: "the default session cannot be closed",
		}
	}
	m.mu.Lock()
	s, ok := m.sessions[name]
	if !ok {
		m.mu.Unlock()
		return &schemas.ExecError{
			Code:    schemas.CodeInvalidRequest,
			Message: fmt.Sprintf("no session %q", name),
			Details: schemas.ErrorDetails{Value: name},
		}
	}
	delete(m.sessions, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	if m.current == s {
		m.current = m.sessions["default"]
	}
	m.mu.Unlock()

	s.close(ctx)
	return nil
}

// sessionInfos lists sessions in creation order.
func (m *Manager) sessionInfos() []schemas.SessionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]schemas.SessionInfo, 0, len(m.order))
	for _, name := range m.order {
		s := m.sessions[name]
		tabs, _ := s.tabList()
		out = append(out, schemas.SessionInfo{
			ID:     s.id,
			Name:   s.name,
			Tabs:   len(tabs),
			Active: s == m.current,
		})
	}
	return out
}

// -- command surfaces --

// Process sends one wire command to the in-page engine of the active
// tab.
func (m *Manager) Process(ctx context.Context, req schemas.Request) (*schemas.Response, error) {
	m.maybeSyncIntercept(ctx)
	t, err := m.activeTab()
	if err != nil {
		return nil, err
	}
	payload, err := schemas.EncodeRequest(req)
	if err != nil {
		return nil, &schemas.ExecError{Code: schemas.CodeSerializationError, Message: err.Error()}
	}
	return m.engine.process(ctx, t, payload)
}

// ResolveSelector evaluates a raw CSS or XPath selector on the live page
// and returns the ids of the matching elements. The resolver uses it for
// css() and xpath() escape-hatch targets.
func (m *Manager) ResolveSelector(ctx context.Context, kind, expr string) ([]uint32, error) {
	resp, err := m.Process(ctx, &schemas.QueryRequest{
		Cmd:      schemas.CmdQuery,
		Selector: expr,
		Kind:     kind,
	})
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	ids := make([]uint32, 0, len(resp.Elements))
	for _, el := range resp.Elements {
		ids = append(ids, el.ID)
	}
	return ids, nil
}

// Do serves one host-side command: navigation, key dispatch, and
// everything else the in-page engine cannot reach.
func (m *Manager) Do(ctx context.Context, cmd ast.Command) (*schemas.Response, error) {
	m.maybeSyncIntercept(ctx)

	switch c := cmd.(type) {
	case *ast.GotoCmd:
		return m.doGoto(ctx, c)
	case *ast.BackCmd:
		return m.doBack(ctx)
	case *ast.ForwardCmd:
		return m.doForward(ctx)
	case *ast.RefreshCmd:
		return m.doRefresh(ctx, c)
	case *ast.URLCmd:
		return m.doURL(ctx)
	case *ast.TitleCmd:
		return m.doTitle(ctx)

	case *ast.PressCmd:
		return m.doPress(ctx, c)
	case *ast.KeydownCmd:
		return m.doKeydown(ctx, c)
	case *ast.KeyupCmd:
		return m.doKeyup(ctx, c)
	case *ast.KeysCmd:
		return m.doKeys()

	case *ast.CookiesCmd:
		return m.doCookies(ctx, c)

	case *ast.SessionsCmd:
		return m.doSessions()
	case *ast.SessionCmd:
		return m.doSession(ctx, c)
	case *ast.HeadersCmd:
		return m.doHeaders(ctx, c)

	case *ast.TabsCmd:
		return m.doTabs(ctx)
	case *ast.TabCmd:
		return m.doTab(ctx, c)
	case *ast.FramesCmd:
		return m.doFrames(ctx)
	case *ast.FrameCmd:
		return m.doFrame(ctx, c)
	case *ast.DialogCmd:
		return m.doDialog(c)

	case *ast.InterceptCmd:
		return m.doIntercept(ctx, c)
	case *ast.RequestsCmd:
		return m.doRequests(c)
	case *ast.ConsoleCmd:
		return m.doConsole(c)
	case *ast.ErrorsCmd:
		return m.doErrors(c)

	case *ast.ViewportCmd:
		return m.doViewport(ctx, c)
	case *ast.DeviceCmd:
		return m.doDevice(ctx, c)
	case *ast.DevicesCmd:
		return m.doDevices()
	case *ast.MediaCmd:
		return m.doMedia(ctx, c)

	case *ast.TraceCmd:
		return m.doTrace(ctx, c)
	case *ast.RecordCmd:
		return m.doRecord(ctx, c)
	}

	return nil, &schemas.ExecError{
		Code:    schemas.CodeNotSupported,
		Message: fmt.Sprintf("no host handler for %s", cmd.Name()),
	}
}

// maybeSyncIntercept reconciles CDP fetch interception with the rule
// table when its generation moved, so rules installed while other tabs
// were active still bite everywhere.
func (m *Manager) maybeSyncIntercept(ctx context.Context) {
	gen := m.capture.Rules().Generation()
	m.mu.Lock()
	if !m.started || gen == m.ruleGen {
		m.mu.Unlock()
		return
	}
	m.ruleGen = gen
	m.mu.Unlock()
	m.syncIntercept(ctx)
}

// syncIntercept toggles fetch interception on every tab to match the
// current need: any intercept rules, or per-domain headers on the tab's
// session.
func (m *Manager) syncIntercept(ctx context.Context) {
	m.mu.Lock()
	sessions := make([]*session, 0, len(m.sessions))
	for _, name := range m.order {
		sessions = append(sessions, m.sessions[name])
	}
	m.mu.Unlock()

	haveRules := m.capture.Rules().Len() > 0
	for _, s := range sessions {
		want := haveRules || s.hasDomainHeaders()
		tabs, _ := s.tabList()
		for _, t := range tabs {
			if err := t.setIntercepting(ctx, want); err != nil && t.ctx.Err() == nil {
				t.log.Warn("syncing request interception failed", zap.Error(err))
			}
		}
	}
}
