package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	cdplog "github.com/chromedp/cdproto/log"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/oil-cli/api/schemas"
)

// Dialog handling modes. The default answers every dialog so a stray
// alert() never wedges the evaluation path.
const (
	dialogAccept  = "accept"
	dialogDismiss = "dismiss"
	dialogOff     = "off"
)

const disposeTimeout = 10 * time.Second

// dialogReply is a one-shot answer armed for the next dialog.
type dialogReply struct {
	accept bool
	text   string
}

// heldKey is one key held down by keydown and not yet released.
type heldKey struct {
	name string
	def  keyDef
}

// session is one named, isolated browsing context: its own cookie jar,
// storage, and set of tabs.
type session struct {
	name             string
	id               string
	browserContextID cdp.BrowserContextID

	mgr *Manager
	log *zap.Logger

	mu     sync.Mutex
	tabs   []*tab
	active int
	closed bool

	console *consoleBuffer
	errors  *errorBuffer

	dialogMode  string
	dialogReply *dialogReply

	held []heldKey

	// headers maps a domain suffix to the extra headers injected for it;
	// the "" key applies to every request.
	headers map[string]map[string]string

	device *schemas.DeviceDescriptor
	media  map[string]string
}

// tab is one open page of a session. Its chromedp context carries the CDP
// target; the listener feeding the session buffers lives on it.
type tab struct {
	id     target.ID
	ctx    context.Context
	cancel context.CancelFunc
	sess   *session
	log    *zap.Logger

	mu            sync.Mutex
	frameID       cdp.FrameID // active frame; "" means main
	frameContexts map[cdp.FrameID]cdpruntime.ExecutionContextID
	pending       map[network.RequestID]*pendingRequest
	intercepting  bool
	screencast    *screencastState
	trace         *tracingState
}

func (m *Manager) newSession(name, mode string) (*session, error) {
	if mode != "" && mode != "incognito" && mode != "isolated" {
		return nil, &schemas.ExecError{
			Code:    schemas.CodeInvalidRequest,
			Message: fmt.Sprintf("unknown session mode %q", mode),
			Details: schemas.ErrorDetails{Value: mode},
		}
	}

	s := &session{
		name:       name,
		id:         uuid.New().String(),
		mgr:        m,
		log:        m.log.With(zap.String("session", name)),
		console:    newConsoleBuffer(eventBufferCap),
		errors:     newErrorBuffer(eventBufferCap),
		dialogMode: dialogAccept,
		headers:    make(map[string]map[string]string),
	}

	// Browser context creation is serialized; concurrent CreateTarget
	// calls against a fresh context race inside the browser.
	m.contextLock.Lock()
	defer m.contextLock.Unlock()

	ctxID, err := target.CreateBrowserContext().Do(m.controllerCtx())
	if err != nil {
		return nil, fmt.Errorf("create browser context: %w", err)
	}
	s.browserContextID = ctxID

	if _, err := s.addTabLocked("about:blank"); err != nil {
		s.disposeBrowserContext()
		return nil, err
	}
	return s, nil
}

// addTabLocked opens a tab in this session. Callers hold the manager's
// context creation lock.
func (s *session) addTabLocked(url string) (*tab, error) {
	tid, err := target.CreateTarget(url).
		WithBrowserContextID(s.browserContextID).
		Do(s.mgr.controllerCtx())
	if err != nil {
		return nil, fmt.Errorf("create target: %w", err)
	}

	tctx, tcancel := chromedp.NewContext(s.mgr.browserCtx, chromedp.WithTargetID(tid))
	t := &tab{
		id:            tid,
		ctx:           tctx,
		cancel:        tcancel,
		sess:          s,
		log:           s.log.With(zap.String("target", string(tid))),
		frameContexts: make(map[cdp.FrameID]cdpruntime.ExecutionContextID),
		pending:       make(map[network.RequestID]*pendingRequest),
	}

	// Listen before the first Run so no early event slips past.
	t.listen()

	if err := chromedp.Run(tctx, t.setupActions()...); err != nil {
		tcancel()
		return nil, fmt.Errorf("set up tab: %w", err)
	}

	if s.mgr.capture.Rules().Len() > 0 || s.hasDomainHeaders() {
		if err := t.setIntercepting(context.Background(), true); err != nil {
			t.log.Warn("enabling request interception on new tab failed", zap.Error(err))
		}
	}

	s.mu.Lock()
	s.tabs = append(s.tabs, t)
	s.active = len(s.tabs) - 1
	s.mu.Unlock()
	return t, nil
}

// setupActions enables the event domains the pump consumes and registers
// the engine to run on every new document, then applies the session's
// sticky state (headers, emulation) to the fresh target.
func (t *tab) setupActions() []chromedp.Action {
	s := t.sess
	cfg := s.mgr.cfg

	actions := []chromedp.Action{
		network.Enable(),
		cdpruntime.Enable(),
		cdplog.Enable(),
		page.Enable(),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(engineJS).Do(ctx)
			return err
		}),
	}
	if cfg.Browser.DisableCache {
		actions = append(actions, network.SetCacheDisabled(true))
	}
	if hdrs := s.globalHeaders(); len(hdrs) > 0 {
		actions = append(actions, network.SetExtraHTTPHeaders(toNetworkHeaders(hdrs)))
	}
	if s.deviceSnapshot() != nil {
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			return applyDevice(ctx, s.deviceSnapshot())
		}))
	}
	if overrides := s.mediaSnapshot(); len(overrides) > 0 {
		actions = append(actions, mediaParams(overrides))
	}
	return actions
}

// run executes chromedp actions against this tab, bounded by both the
// tab's lifetime and the caller's deadline.
func (t *tab) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := combineContext(t.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// evalOptions configures in-page evaluations: concrete values back,
// promises awaited, and the active frame's context targeted when the
// operator switched off the main frame.
func (t *tab) evalOptions(p *cdpruntime.EvaluateParams) *cdpruntime.EvaluateParams {
	p = p.WithReturnByValue(true).WithAwaitPromise(true).WithSilent(true)
	if id := t.frameContextID(); id != 0 {
		p = p.WithContextID(id)
	}
	return p
}

// frameContextID returns the execution context of the active frame, or 0
// when the main frame (default context) is active or the frame's context
// is not known yet.
func (t *tab) frameContextID() cdpruntime.ExecutionContextID {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.frameID == "" {
		return 0
	}
	return t.frameContexts[t.frameID]
}

// execCtx returns a context that routes raw cdproto commands to this
// tab's target. Event handlers use it to answer dialogs and paused
// fetches from inside the listener.
func (t *tab) execCtx() context.Context {
	c := chromedp.FromContext(t.ctx)
	return cdp.WithExecutor(t.ctx, c.Target)
}

func (t *tab) close() {
	// Graceful target close; falls back to hard cancel.
	if err := chromedp.Cancel(t.ctx); err != nil {
		t.cancel()
	}
}

// -- session accessors --

func (s *session) activeTab() (*tab, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || len(s.tabs) == 0 {
		return nil, &schemas.ExecError{Code: schemas.CodeNotReady, Message: "session has no open tab"}
	}
	return s.tabs[s.active], nil
}

func (s *session) tabList() ([]*tab, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*tab, len(s.tabs))
	copy(out, s.tabs)
	return out, s.active
}

func (s *session) switchTab(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.tabs) {
		return &schemas.ExecError{
			Code:    schemas.CodeInvalidRequest,
			Message: fmt.Sprintf("no tab %d (have %d)", index, len(s.tabs)),
		}
	}
	s.active = index
	return nil
}

// closeTab closes the tab at index (-1 for the active one). The session
// always keeps one open tab; closing the last one opens a blank
// replacement.
func (s *session) closeTab(index int) error {
	s.mu.Lock()
	if index == -1 {
		index = s.active
	}
	if index < 0 || index >= len(s.tabs) {
		n := len(s.tabs)
		s.mu.Unlock()
		return &schemas.ExecError{
			Code:    schemas.CodeInvalidRequest,
			Message: fmt.Sprintf("no tab %d (have %d)", index, n),
		}
	}
	t := s.tabs[index]
	s.tabs = append(s.tabs[:index], s.tabs[index+1:]...)
	if s.active >= len(s.tabs) {
		s.active = len(s.tabs) - 1
	}
	empty := len(s.tabs) == 0
	s.mu.Unlock()

	t.close()

	if empty {
		s.mgr.contextLock.Lock()
		_, err := s.addTabLocked("about:blank")
		s.mgr.contextLock.Unlock()
		if err != nil {
			return fmt.Errorf("reopen blank tab: %w", err)
		}
	}
	return nil
}

func (s *session) close(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	tabs := s.tabs
	s.tabs = nil
	s.mu.Unlock()

	for _, t := range tabs {
		t.close()
	}
	s.disposeBrowserContext()
	s.log.Debug("session closed")
	_ = ctx
}

func (s *session) disposeBrowserContext() {
	if s.browserContextID == "" || s.mgr.browserCtx.Err() != nil {
		return
	}
	disposeCtx, cancel := context.WithTimeout(s.mgr.browserCtx, disposeTimeout)
	defer cancel()
	c := chromedp.FromContext(s.mgr.browserCtx)
	if err := target.DisposeBrowserContext(s.browserContextID).Do(cdp.WithExecutor(disposeCtx, c.Browser)); err != nil {
		if s.mgr.browserCtx.Err() == nil {
			s.log.Warn("disposing browser context failed; it may be orphaned",
				zap.String("browser_context", string(s.browserContextID)),
				zap.Error(err))
		}
	}
}

// -- dialog state --

// dialogAnswer consumes the one-shot reply if armed, else falls back to
// the sticky mode. ok is false when dialogs are left unanswered.
func (s *session) dialogAnswer() (accept bool, text string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r := s.dialogReply; r != nil {
		s.dialogReply = nil
		return r.accept, r.text, true
	}
	switch s.dialogMode {
	case dialogAccept:
		return true, "", true
	case dialogDismiss:
		return false, "", true
	default:
		return false, "", false
	}
}

func (s *session) armDialog(accept bool, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dialogReply = &dialogReply{accept: accept, text: text}
}

func (s *session) setDialogMode(mode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dialogMode = mode
}

// -- header state --

func (s *session) setHeaders(domain string, hdrs map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(hdrs) == 0 {
		delete(s.headers, domain)
		return
	}
	s.headers[domain] = hdrs
}

func (s *session) clearHeaders(domain string, all bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if all {
		s.headers = make(map[string]map[string]string)
		return
	}
	delete(s.headers, domain)
}

// globalHeaders merges the configured defaults with the session's
// all-domain set. Per-domain sets are injected at the fetch layer.
func (s *session) globalHeaders() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	merged := make(map[string]string, len(s.mgr.cfg.Network.Headers)+len(s.headers[""]))
	for k, v := range s.mgr.cfg.Network.Headers {
		merged[k] = v
	}
	for k, v := range s.headers[""] {
		merged[k] = v
	}
	return merged
}

func (s *session) hasDomainHeaders() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for domain := range s.headers {
		if domain != "" {
			return true
		}
	}
	return false
}

// domainHeaders returns the extra headers for a host, most specific
// domain suffix first.
func (s *session) domainHeaders(host string) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]string{}
	for domain, hdrs := range s.headers {
		if domain == "" || !hostMatchesDomain(host, domain) {
			continue
		}
		for k, v := range hdrs {
			out[k] = v
		}
	}
	return out
}

func (s *session) headerSets() map[string]map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]map[string]string, len(s.headers))
	for domain, hdrs := range s.headers {
		cp := make(map[string]string, len(hdrs))
		for k, v := range hdrs {
			cp[k] = v
		}
		out[domain] = cp
	}
	return out
}

func (s *session) deviceSnapshot() *schemas.DeviceDescriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device
}

// -- helpers --

// combineContext derives a context from the tab context (which carries
// the CDP target) that is additionally cancelled when the operational
// context ends. chromedp needs the target values; the caller needs the
// deadline.
func combineContext(tabCtx, opCtx context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(tabCtx)
	go func() {
		select {
		case <-opCtx.Done():
			cancel()
		case <-combined.Done():
		}
	}()
	return combined, cancel
}

func toNetworkHeaders(h map[string]string) network.Headers {
	out := make(network.Headers, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

func hostMatchesDomain(host, domain string) bool {
	if host == domain {
		return true
	}
	return len(host) > len(domain) && host[len(host)-len(domain)-1] == '.' &&
		host[len(host)-len(domain):] == domain
}
