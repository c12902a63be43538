package executor

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/oil-cli/api/schemas"
	"github.com/xkilldash9x/oil-cli/internal/ast"
	"github.com/xkilldash9x/oil-cli/internal/config"
	"github.com/xkilldash9x/oil-cli/internal/intent"
	"github.com/xkilldash9x/oil-cli/internal/resolver"
)

// fakeHost scripts engine responses per command name and records every
// request it sees.
type fakeHost struct {
	mu        sync.Mutex
	processed []schemas.Request
	did       []ast.Command
	engine    map[string][]*schemas.Response
	doResp    func(cmd ast.Command) (*schemas.Response, error)

	shots      []schemas.ScreenshotOptions
	pdfs       []schemas.PDFOptions
	state      *schemas.SessionState
	stateAsked []bool
	applied    []*schemas.SessionState
	merges     []bool
}

func newFakeHost() *fakeHost {
	return &fakeHost{engine: make(map[string][]*schemas.Response)}
}

// queue schedules responses for an engine command, consumed in order.
// Commands without a queue answer with a bare ok.
func (f *fakeHost) queue(cmd string, resps ...*schemas.Response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.engine[cmd] = append(f.engine[cmd], resps...)
}

func (f *fakeHost) Process(_ context.Context, req schemas.Request) (*schemas.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed = append(f.processed, req)
	name := req.CmdName()
	if q := f.engine[name]; len(q) > 0 {
		resp := q[0]
		f.engine[name] = q[1:]
		return resp, nil
	}
	return schemas.OKResponse(name), nil
}

func (f *fakeHost) Do(_ context.Context, cmd ast.Command) (*schemas.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.did = append(f.did, cmd)
	if f.doResp != nil {
		return f.doResp(cmd)
	}
	return schemas.OKResponse(cmd.Name()), nil
}

func (f *fakeHost) Screenshot(_ context.Context, opts schemas.ScreenshotOptions) (*schemas.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shots = append(f.shots, opts)
	return schemas.OKResponse("screenshot"), nil
}

func (f *fakeHost) PDF(_ context.Context, opts schemas.PDFOptions) (*schemas.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pdfs = append(f.pdfs, opts)
	return schemas.OKResponse("pdf"), nil
}

func (f *fakeHost) SessionState(_ context.Context, includeSession bool) (*schemas.SessionState, error) {
	f.mu.Lock()
	f.stateAsked = append(f.stateAsked, includeSession)
	f.mu.Unlock()
	if f.state == nil {
		return &schemas.SessionState{}, nil
	}
	cp := *f.state
	cp.Cookies = append([]schemas.Cookie(nil), f.state.Cookies...)
	return &cp, nil
}

func (f *fakeHost) ApplySessionState(_ context.Context, st *schemas.SessionState, merge bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, st)
	f.merges = append(f.merges, merge)
	return nil
}

// cmdNames lists the engine commands processed so far, in order.
func (f *fakeHost) cmdNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, len(f.processed))
	for i, r := range f.processed {
		names[i] = r.CmdName()
	}
	return names
}

// reqOfType finds the first processed request of type T.
func reqOfType[T schemas.Request](t *testing.T, f *fakeHost) T {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.processed {
		if typed, ok := r.(T); ok {
			return typed
		}
	}
	var zero T
	t.Fatalf("no %T in processed requests", zero)
	return zero
}

type fakeSelectors struct{}

func (fakeSelectors) ResolveSelector(context.Context, string, string) ([]uint32, error) {
	return nil, nil
}

func newTestExecutor(t *testing.T, host Host) *Executor {
	t.Helper()
	return newTestExecutorWith(t, host, nil, nil)
}

func newTestExecutorWith(t *testing.T, host Host, hist History, states StateStore) *Executor {
	t.Helper()
	cfg := &config.Config{}
	cfg.Executor.WaitTimeout = 300 * time.Millisecond
	cfg.Executor.WaitInterval = 2 * time.Millisecond
	res := resolver.New(resolver.DefaultPolicy(), fakeSelectors{}, zap.NewNop())
	reg := intent.New(t.TempDir(), zap.NewNop())
	return New(cfg, host, res, reg, hist, states, zap.NewNop())
}

// fakeHistory collects recorded entries.
type fakeHistory struct {
	mu      sync.Mutex
	entries []HistoryEntry
}

func (h *fakeHistory) Record(_ context.Context, e HistoryEntry) {
	h.mu.Lock()
	h.entries = append(h.entries, e)
	h.mu.Unlock()
}

func (h *fakeHistory) all() []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]HistoryEntry(nil), h.entries...)
}

// idTarget builds a bare numeric target, the post-scan addressing form.
func idTarget(id uint32) ast.Target {
	return ast.Target{Primary: ast.IDAtom(id, ast.Span{})}
}

// scanResp builds a scan response whose elements carry the given IDs.
func scanResp(ids ...uint32) *schemas.Response {
	els := make([]schemas.Element, len(ids))
	for i, id := range ids {
		els[i] = schemas.Element{
			ID:    id,
			Type:  "button",
			Text:  fmt.Sprintf("Button %d", id),
			State: schemas.ElementState{Visible: true, Enabled: true},
		}
	}
	return &schemas.Response{
		Status:   schemas.StatusOK,
		Action:   "scan",
		Elements: els,
		Page:     &schemas.PageInfo{URL: "https://app.test/", Title: "App"},
		Stats:    &schemas.ScanStats{Total: len(els), Visible: len(els)},
	}
}

func errResp(code, msg string) *schemas.Response {
	return &schemas.Response{Status: schemas.StatusError, Code: code, Error: msg}
}

func TestExecuteLineSkipsBlankAndComments(t *testing.T) {
	e := newTestExecutor(t, newFakeHost())
	assert.Nil(t, e.ExecuteLine(context.Background(), ""))
	assert.Nil(t, e.ExecuteLine(context.Background(), "   \t"))
	assert.Nil(t, e.ExecuteLine(context.Background(), "# a comment"))
}

func TestExecuteLineParseError(t *testing.T) {
	host := newFakeHost()
	e := newTestExecutor(t, host)

	res := e.ExecuteLine(context.Background(), "flibber the widget")
	require.NotNil(t, res)
	assert.True(t, res.Failed())
	assert.Empty(t, host.cmdNames(), "nothing reaches the host on a parse error")
}

func TestNativeCommandsGoToHost(t *testing.T) {
	host := newFakeHost()
	host.doResp = func(cmd ast.Command) (*schemas.Response, error) {
		resp := schemas.OKResponse(cmd.Name())
		resp.Navigation = true
		return resp, nil
	}
	e := newTestExecutor(t, host)

	res := e.ExecuteLine(context.Background(), "goto example.com")
	require.NotNil(t, res)
	require.NoError(t, res.Err)
	require.Len(t, host.did, 1)
	gotoCmd, ok := host.did[0].(*ast.GotoCmd)
	require.True(t, ok, "got %T", host.did[0])
	assert.Equal(t, "example.com", gotoCmd.URL)
	assert.Empty(t, host.cmdNames(), "navigation never touches the engine")
}

func TestWirePathScansOnceAndCaches(t *testing.T) {
	host := newFakeHost()
	host.queue(schemas.CmdScan, scanResp(1, 2))
	e := newTestExecutor(t, host)

	res := e.Execute(context.Background(), &ast.ClickCmd{Target: idTarget(1)})
	require.NoError(t, res.Err)

	res = e.Execute(context.Background(), &ast.ClickCmd{Target: idTarget(2)})
	require.NoError(t, res.Err)

	assert.Equal(t, []string{"scan", "click", "click"}, host.cmdNames(),
		"second click reuses the cached map")
	click := reqOfType[*schemas.ClickRequest](t, host)
	assert.Equal(t, uint32(1), click.ID)
}

func TestNavigationInvalidatesScanCache(t *testing.T) {
	host := newFakeHost()
	host.queue(schemas.CmdScan, scanResp(1), scanResp(1))
	navClick := schemas.OKResponse("click")
	navClick.Navigation = true
	host.queue(schemas.CmdClick, navClick)
	e := newTestExecutor(t, host)

	require.NoError(t, e.Execute(context.Background(), &ast.ClickCmd{Target: idTarget(1)}).Err)
	gen := e.Generation()
	assert.Equal(t, uint64(1), gen, "navigation bumps the generation")

	require.NoError(t, e.Execute(context.Background(), &ast.ClickCmd{Target: idTarget(1)}).Err)
	assert.Equal(t, []string{"scan", "click", "scan", "click"}, host.cmdNames())
}

func TestDOMChangesInvalidateScanCache(t *testing.T) {
	host := newFakeHost()
	host.queue(schemas.CmdScan, scanResp(1), scanResp(1))
	mutClick := schemas.OKResponse("click")
	mutClick.DOMChanges = &schemas.DOMChanges{Added: 2}
	host.queue(schemas.CmdClick, mutClick)
	e := newTestExecutor(t, host)

	require.NoError(t, e.Execute(context.Background(), &ast.ClickCmd{Target: idTarget(1)}).Err)
	require.NoError(t, e.Execute(context.Background(), &ast.ClickCmd{Target: idTarget(1)}).Err)
	assert.Equal(t, []string{"scan", "click", "scan", "click"}, host.cmdNames())
}

func TestResolveMissAgainstCachedMapRescans(t *testing.T) {
	host := newFakeHost()
	host.queue(schemas.CmdScan, scanResp(1), scanResp(1, 9))
	e := newTestExecutor(t, host)

	// Prime the cache with a map that lacks element 9.
	require.NoError(t, e.Execute(context.Background(), &ast.ObserveCmd{}).Err)

	res := e.Execute(context.Background(), &ast.ClickCmd{Target: idTarget(9)})
	require.NoError(t, res.Err)
	assert.Equal(t, []string{"scan", "scan", "click"}, host.cmdNames(),
		"miss against the cached map forces one rescan")
}

func TestResolveMissAfterFreshScanFails(t *testing.T) {
	host := newFakeHost()
	host.queue(schemas.CmdScan, scanResp(1), scanResp(1))
	e := newTestExecutor(t, host)

	require.NoError(t, e.Execute(context.Background(), &ast.ObserveCmd{}).Err)
	res := e.Execute(context.Background(), &ast.ClickCmd{Target: idTarget(9)})
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "element 9 not found")
	assert.Equal(t, []string{"scan", "scan"}, host.cmdNames(), "no click is ever sent")
}

func TestStaleElementRetriesOnce(t *testing.T) {
	host := newFakeHost()
	host.queue(schemas.CmdScan, scanResp(1), scanResp(1))
	host.queue(schemas.CmdClick,
		errResp(schemas.CodeElementStale, "element 1 is stale"),
		schemas.OKResponse("click"))
	e := newTestExecutor(t, host)

	res := e.Execute(context.Background(), &ast.ClickCmd{Target: idTarget(1)})
	require.NoError(t, res.Err)
	assert.Equal(t, []string{"scan", "click", "scan", "click"}, host.cmdNames())
}

func TestStaleElementTwiceSurfaces(t *testing.T) {
	host := newFakeHost()
	host.queue(schemas.CmdScan, scanResp(1), scanResp(1))
	host.queue(schemas.CmdClick,
		errResp(schemas.CodeElementStale, "element 1 is stale"),
		errResp(schemas.CodeElementStale, "element 1 is stale"))
	e := newTestExecutor(t, host)

	res := e.Execute(context.Background(), &ast.ClickCmd{Target: idTarget(1)})
	require.Error(t, res.Err)
	assert.True(t, schemas.IsCode(res.Err, schemas.CodeElementStale))
}

func TestObserveRefreshesCacheAndPage(t *testing.T) {
	host := newFakeHost()
	host.queue(schemas.CmdScan, scanResp(1, 2, 3))
	e := newTestExecutor(t, host)

	res := e.ExecuteLine(context.Background(), "scan")
	require.NotNil(t, res)
	require.NoError(t, res.Err)
	require.NotNil(t, res.Response.Stats)
	assert.Equal(t, 3, res.Response.Stats.Total)

	page := e.LastPage()
	require.NotNil(t, page)
	assert.Equal(t, "https://app.test/", page.URL)
}

func TestExitAndHelp(t *testing.T) {
	e := newTestExecutor(t, newFakeHost())

	res := e.ExecuteLine(context.Background(), "exit")
	require.NotNil(t, res)
	assert.True(t, res.Exit)

	res = e.ExecuteLine(context.Background(), "help click")
	require.NotNil(t, res)
	require.NoError(t, res.Err)
	assert.Contains(t, res.Response.Text, "click <target>")

	res = e.ExecuteLine(context.Background(), "help")
	require.NoError(t, res.Err)
	assert.Contains(t, res.Response.Text, "intents")
}

func TestEngineErrorsSurfaceTyped(t *testing.T) {
	host := newFakeHost()
	host.queue(schemas.CmdScan, scanResp(4))
	host.queue(schemas.CmdClick, errResp(schemas.CodeElementDisabled, "element 4 is disabled"))
	e := newTestExecutor(t, host)

	res := e.Execute(context.Background(), &ast.ClickCmd{Target: idTarget(4)})
	require.Error(t, res.Err)
	assert.True(t, schemas.IsCode(res.Err, schemas.CodeElementDisabled))
}
