// Package repl implements the interactive command loop: read a line,
// execute it through the executor, print the rendered result, repeat
// until exit or EOF.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/oil-cli/api/schemas"
	"github.com/xkilldash9x/oil-cli/internal/config"
	"github.com/xkilldash9x/oil-cli/internal/executor"
	"github.com/xkilldash9x/oil-cli/internal/formatter"
)

// Executor is the slice of the command executor the loop drives.
type Executor interface {
	ExecuteLine(ctx context.Context, line string) *executor.Result
	Defining() string
}

// Loop reads intent lines from one reader and renders each result to
// one writer. It tracks the current page so the prompt shows where the
// session is.
type Loop struct {
	exec Executor
	fmtr *formatter.Formatter
	cfg  config.REPLConfig
	log  *zap.Logger

	in  io.Reader
	out io.Writer

	page *schemas.PageInfo
}

// New builds a loop bound to the process's stdin and stdout.
func New(exec Executor, fmtr *formatter.Formatter, cfg config.REPLConfig, log *zap.Logger) *Loop {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Prompt == "" {
		cfg.Prompt = "oil> "
	}
	return &Loop{
		exec: exec,
		fmtr: fmtr,
		cfg:  cfg,
		log:  log.Named("repl"),
		in:   os.Stdin,
		out:  os.Stdout,
	}
}

// Run executes lines until an exit command, EOF, or cancellation. A
// reader goroutine owns the input stream; it ends at EOF or as soon as
// the loop stops consuming. Cancellation ends the loop quietly, since
// an interrupt at the prompt is the operator leaving.
func (l *Loop) Run(ctx context.Context) error {
	fmt.Fprintln(l.out, `oil interactive. Type a command, "help" for the surface, "exit" to leave.`)

	var history io.Writer
	if f := l.openHistory(); f != nil {
		defer f.Close()
		history = f
	}

	lines := make(chan string)
	stop := make(chan struct{})
	defer close(stop)
	go l.read(lines, stop)

	for {
		fmt.Fprint(l.out, l.promptText())
		select {
		case <-ctx.Done():
			fmt.Fprintln(l.out)
			return nil
		case line, ok := <-lines:
			if !ok {
				// EOF: leave the shell on its own line.
				fmt.Fprintln(l.out)
				return nil
			}
			if l.handle(ctx, line, history) {
				return nil
			}
		}
	}
}

// read feeds input lines to the loop until EOF or until the loop quits
// mid-stream.
func (l *Loop) read(lines chan<- string, stop <-chan struct{}) {
	defer close(lines)
	sc := bufio.NewScanner(l.in)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		select {
		case lines <- sc.Text():
		case <-stop:
			return
		}
	}
	if err := sc.Err(); err != nil {
		l.log.Warn("reading input failed", zap.Error(err))
	}
}

// handle runs one line and renders the outcome. It reports whether the
// loop should end.
func (l *Loop) handle(ctx context.Context, line string, history io.Writer) bool {
	res := l.exec.ExecuteLine(ctx, line)
	if res == nil {
		return false
	}
	if history != nil && strings.TrimSpace(res.Line) != "" {
		fmt.Fprintln(history, executor.MaskLine(res.Line))
	}
	if res.Err != nil {
		fmt.Fprintln(l.out, l.fmtr.Error(res.Err))
		return false
	}
	l.track(res.Response)
	if rendered := l.fmtr.Response(res.Response); rendered != "" {
		fmt.Fprintln(l.out, rendered)
	}
	return res.Exit
}

// track keeps the page header current for the prompt.
func (l *Loop) track(resp *schemas.Response) {
	if resp == nil {
		return
	}
	switch {
	case resp.Page != nil:
		l.page = resp.Page
	case resp.Navigation:
		// The page moved and the response does not say where. Drop the
		// stale host until the next observe.
		l.page = nil
	}
}

// promptText is the input prompt: a capture marker while defining an
// intent, the current host once a page is loaded, the configured prompt
// otherwise.
func (l *Loop) promptText() string {
	if name := l.exec.Defining(); name != "" {
		return "define:" + name + "> "
	}
	if l.page != nil {
		if host := hostOf(l.page.URL); host != "" {
			return host + "> "
		}
	}
	return l.cfg.Prompt
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}

// openHistory opens the append-only line history file, best effort.
// Lines land masked, so the file is safe to keep around.
func (l *Loop) openHistory() *os.File {
	if l.cfg.HistoryFile == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(l.cfg.HistoryFile), 0o700); err != nil {
		l.log.Warn("history file unavailable", zap.Error(err))
		return nil
	}
	f, err := os.OpenFile(l.cfg.HistoryFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		l.log.Warn("history file unavailable", zap.Error(err))
		return nil
	}
	return f
}
