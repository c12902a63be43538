// File: cmd/run.go
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/oil-cli/internal/executor"
	"github.com/xkilldash9x/oil-cli/internal/formatter"
	"github.com/xkilldash9x/oil-cli/internal/observability"
)

// lineExecutor is the slice of the executor the script runner needs.
type lineExecutor interface {
	ExecuteLine(ctx context.Context, line string) *executor.Result
}

func newRunCmd() *cobra.Command {
	var (
		continueOnError bool
		follow          bool
	)

	runCmd := &cobra.Command{
		Use:   "run <script>",
		Short: "Run an intent script file",
		Long: `run executes the given script file line by line against a fresh browser
session. Execution stops at the first failed line unless --continue-on-error
is set. With --follow the file is kept open and lines appended by another
process are executed as they arrive, which lets an external generator drive
the session.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScript(cmd.Context(), cmd.OutOrStdout(), args[0], continueOnError, follow)
		},
	}

	runCmd.Flags().BoolVar(&continueOnError, "continue-on-error", false, "keep executing after a failed line")
	runCmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep the script open and execute appended lines")
	return runCmd
}

func runScript(ctx context.Context, out io.Writer, path string, continueOnError, follow bool) error {
	logger := observability.GetLogger()

	components, err := initializeApp(ctx, appCfg, logger)
	if err != nil {
		return err
	}
	defer components.Shutdown()

	runner := &scriptRunner{
		exec:            components.Executor,
		fmtr:            components.Formatter,
		out:             out,
		continueOnError: continueOnError,
		logger:          logger.Named("run"),
	}
	if follow {
		return runner.followFile(ctx, path)
	}
	return runner.runFile(ctx, path)
}

// scriptRunner feeds script lines through the executor and renders each
// result. It tracks failures so a --continue-on-error run still exits
// non-zero when anything failed.
type scriptRunner struct {
	exec            lineExecutor
	fmtr            *formatter.Formatter
	out             io.Writer
	continueOnError bool
	logger          *zap.Logger

	total  int
	failed int
}

func (r *scriptRunner) runFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open script: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		lineNo++
		stop, err := r.execLine(ctx, sc.Text(), lineNo, path)
		if err != nil || stop {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("failed to read script: %w", err)
	}
	return r.verdict()
}

// followFile tails the script and executes lines as they are appended.
// The tailer reopens the file on rotation so a generator may truncate
// and rewrite it.
func (r *scriptRunner) followFile(ctx context.Context, path string) error {
	t, err := tail.TailFile(path, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: true,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to tail script: %w", err)
	}
	defer func() {
		t.Stop()
		t.Cleanup()
	}()

	r.logger.Info("Following script file.", zap.String("path", path))
	lineNo := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-t.Lines:
			if !ok {
				return r.verdict()
			}
			if line.Err != nil {
				r.logger.Warn("Error reading script line", zap.Error(line.Err))
				continue
			}
			lineNo++
			stop, err := r.execLine(ctx, line.Text, lineNo, path)
			if err != nil || stop {
				return err
			}
		}
	}
}

// execLine runs one script line and renders the result. stop reports
// that the script asked to exit; a non-nil error aborts the run.
func (r *scriptRunner) execLine(ctx context.Context, line string, lineNo int, path string) (stop bool, err error) {
	res := r.exec.ExecuteLine(ctx, line)
	if res == nil {
		return false, nil
	}
	r.total++

	if res.Err != nil {
		r.failed++
		fmt.Fprintln(r.out, r.fmtr.Error(res.Err))
		if !r.continueOnError {
			return false, fmt.Errorf("%s failed at line %d", filepath.Base(path), lineNo)
		}
		return false, nil
	}
	if rendered := r.fmtr.Response(res.Response); rendered != "" {
		fmt.Fprintln(r.out, rendered)
	}
	return res.Exit, nil
}

func (r *scriptRunner) verdict() error {
	if r.failed > 0 {
		return fmt.Errorf("%d of %d lines failed", r.failed, r.total)
	}
	return nil
}
