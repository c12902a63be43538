// File: cmd/exec.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/oil-cli/internal/observability"
)

func newExecCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exec <command>...",
		Short: "Execute a single intent command and exit",
		Long: `exec joins its arguments into one intent line, runs it against a fresh
browser session, prints the result, and exits. Quote arguments that contain
spaces:

  oil exec goto "https://example.org"
  oil exec click "Sign in"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execOnce(cmd.Context(), cmd.OutOrStdout(), strings.Join(args, " "))
		},
	}
}

func execOnce(ctx context.Context, out io.Writer, line string) error {
	logger := observability.GetLogger()

	components, err := initializeApp(ctx, appCfg, logger)
	if err != nil {
		return err
	}
	defer components.Shutdown()

	res := components.Executor.ExecuteLine(ctx, line)
	if res == nil {
		return nil
	}
	if res.Err != nil {
		fmt.Fprintln(out, components.Formatter.Error(res.Err))
		return fmt.Errorf("command failed")
	}
	if rendered := components.Formatter.Response(res.Response); rendered != "" {
		fmt.Fprintln(out, rendered)
	}
	return nil
}
