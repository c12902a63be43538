// File: cmd/repl.go
package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/oil-cli/internal/observability"
	"github.com/xkilldash9x/oil-cli/internal/repl"
)

func newReplCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start the interactive command loop",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepl(cmd.Context())
		},
	}
}

// runRepl launches the browser session and hands control to the line loop.
// It backs both "oil repl" and a bare "oil" on a terminal.
func runRepl(ctx context.Context) error {
	logger := observability.GetLogger()

	components, err := initializeApp(ctx, appCfg, logger)
	if err != nil {
		return err
	}
	defer components.Shutdown()

	loop := repl.New(components.Executor, components.Formatter, appCfg.REPL, logger)
	return loop.Run(ctx)
}
