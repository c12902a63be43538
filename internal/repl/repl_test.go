package repl

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"golang.org/x/tools/txtar"

	"github.com/xkilldash9x/oil-cli/api/schemas"
	"github.com/xkilldash9x/oil-cli/internal/config"
	"github.com/xkilldash9x/oil-cli/internal/executor"
	"github.com/xkilldash9x/oil-cli/internal/formatter"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeExec scripts executor behavior for loop tests. Unknown lines
// succeed with an "ok <verb>" action; define/end mirror the real
// capture flow so the prompt switching is observable.
type fakeExec struct {
	mu       sync.Mutex
	results  map[string]*executor.Result
	defining string
	captured int
	got      []string
}

func newFakeExec() *fakeExec {
	return &fakeExec{results: map[string]*executor.Result{
		"click 99": {Line: "click 99", Err: &schemas.ExecError{
			Code:    schemas.CodeElementNotFound,
			Message: "element 99 not found",
		}},
		"goto example.com": {Line: "goto example.com", Response: &schemas.Response{
			Status: schemas.StatusOK,
			Page:   &schemas.PageInfo{URL: "https://example.com/welcome", Title: "Welcome"},
		}},
	}}
}

func (f *fakeExec) ExecuteLine(_ context.Context, raw string) *executor.Result {
	f.mu.Lock()
	defer f.mu.Unlock()

	line := strings.TrimSpace(raw)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}
	f.got = append(f.got, line)

	if f.defining != "" {
		if line == "end" {
			resp := schemas.OKResponse("define")
			resp.Text = fmt.Sprintf("defined %q (%d commands)", f.defining, f.captured)
			f.defining = ""
			return &executor.Result{Line: line, Response: resp}
		}
		f.captured++
		return &executor.Result{Line: line, Response: &schemas.Response{
			Status: schemas.StatusOK,
			Text:   "  + " + line,
		}}
	}
	if r, ok := f.results[line]; ok {
		return r
	}
	switch {
	case line == "exit":
		return &executor.Result{Line: line, Response: schemas.OKResponse("exit"), Exit: true}
	case strings.HasPrefix(line, "define "):
		name := strings.TrimSpace(strings.TrimPrefix(line, "define "))
		f.defining = name
		f.captured = 0
		resp := schemas.OKResponse("define")
		resp.Text = fmt.Sprintf("defining %q; add commands, finish with end", name)
		return &executor.Result{Line: line, Response: resp}
	}
	verb, _, _ := strings.Cut(line, " ")
	return &executor.Result{Line: line, Response: schemas.OKResponse(verb)}
}

func (f *fakeExec) Defining() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.defining
}

func (f *fakeExec) lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.got...)
}

func newTestLoop(fake *fakeExec, cfg config.REPLConfig, input string) (*Loop, *bytes.Buffer) {
	loop := New(fake, formatter.New(), cfg, zap.NewNop())
	var out bytes.Buffer
	loop.in = strings.NewReader(input)
	loop.out = &out
	return loop, &out
}

// normalize strips per-line trailing blanks and the final newline so
// transcript comparisons do not hinge on prompt padding.
func normalize(s string) string {
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " ")
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}

func TestGoldenTranscripts(t *testing.T) {
	archive, err := txtar.ParseFile(filepath.Join("testdata", "transcripts.txtar"))
	require.NoError(t, err)

	files := make(map[string]string, len(archive.Files))
	var names []string
	for _, f := range archive.Files {
		files[f.Name] = string(f.Data)
		if base, ok := strings.CutSuffix(f.Name, "/input"); ok {
			names = append(names, base)
		}
	}
	sort.Strings(names)
	require.NotEmpty(t, names)

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			want, ok := files[name+"/want"]
			require.True(t, ok, "fixture %s has no want file", name)

			loop, out := newTestLoop(newFakeExec(), config.REPLConfig{}, files[name+"/input"])
			require.NoError(t, loop.Run(context.Background()))
			assert.Equal(t, normalize(want), normalize(out.String()))
		})
	}
}

func TestRunFeedsRawLinesToTheExecutor(t *testing.T) {
	fake := newFakeExec()
	loop, _ := newTestLoop(fake, config.REPLConfig{}, "url\n# a comment\n\nexit\n")

	require.NoError(t, loop.Run(context.Background()))
	assert.Equal(t, []string{"url", "exit"}, fake.lines())
}

func TestRunUsesConfiguredPrompt(t *testing.T) {
	loop, out := newTestLoop(newFakeExec(), config.REPLConfig{Prompt: "cmd# "}, "url\nexit\n")

	require.NoError(t, loop.Run(context.Background()))
	assert.Contains(t, out.String(), "cmd# ok url")
}

func TestRunReturnsQuietlyWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	loop, out := newTestLoop(newFakeExec(), config.REPLConfig{}, "")

	require.NoError(t, loop.Run(ctx))
	assert.Contains(t, out.String(), "oil> ")
}

func TestPromptShowsHostUntilNavigationLosesIt(t *testing.T) {
	fake := newFakeExec()
	fake.results["click 1"] = &executor.Result{Line: "click 1", Response: &schemas.Response{
		Status:     schemas.StatusOK,
		Action:     "click",
		Navigation: true,
	}}
	loop, out := newTestLoop(fake, config.REPLConfig{}, "goto example.com\nclick 1\nurl\nexit\n")

	require.NoError(t, loop.Run(context.Background()))
	transcript := out.String()
	assert.Contains(t, transcript, "example.com> ok click")
	// After a navigation without a page header the prompt falls back.
	assert.Contains(t, transcript, "oil> ok url")
}

func TestHistoryFileGetsMaskedLines(t *testing.T) {
	histPath := filepath.Join(t.TempDir(), "sub", "history")
	fake := newFakeExec()
	loop, _ := newTestLoop(fake, config.REPLConfig{HistoryFile: histPath},
		"login \"bob\" \"hunter2\"\nexit\n")

	require.NoError(t, loop.Run(context.Background()))

	data, err := os.ReadFile(histPath)
	require.NoError(t, err)
	assert.Equal(t, "login \"bob\" \"****\"\nexit\n", string(data))
}

func TestErrorKeepsLoopAlive(t *testing.T) {
	fake := newFakeExec()
	loop, out := newTestLoop(fake, config.REPLConfig{}, "click 99\nurl\nexit\n")

	require.NoError(t, loop.Run(context.Background()))
	transcript := out.String()
	assert.Contains(t, transcript, "Error: element 99 not found")
	assert.Contains(t, transcript, "Hint: Run scan to refresh the element map")
	assert.Contains(t, transcript, "ok url")
}
