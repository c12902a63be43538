// File: cmd/history.go
package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/oil-cli/internal/observability"
	"github.com/xkilldash9x/oil-cli/internal/store"
)

func newHistoryCmd() *cobra.Command {
	var lines int

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent lines from the shared command history",
		Long: `history lists the newest executed lines from the history database,
oldest first so the output reads like a transcript. It needs history.dsn
(or OIL_HISTORY_DSN) to be configured; no browser session is started.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showHistory(cmd.Context(), cmd.OutOrStdout(), lines)
		},
	}

	historyCmd.Flags().IntVarP(&lines, "lines", "n", 20, "number of lines to show")
	return historyCmd
}

func showHistory(ctx context.Context, out io.Writer, lines int) error {
	if appCfg.History.DSN == "" {
		return fmt.Errorf("history is not configured; set history.dsn or OIL_HISTORY_DSN")
	}

	pool, err := pgxpool.New(ctx, appCfg.History.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to history database: %w", err)
	}
	h, err := store.NewHistory(ctx, pool, observability.GetLogger())
	if err != nil {
		pool.Close()
		return err
	}
	defer h.Close()

	rows, err := h.Recent(ctx, lines)
	if err != nil {
		return err
	}
	for i := len(rows) - 1; i >= 0; i-- {
		r := rows[i]
		fmt.Fprintf(out, "%s  %-5s  %s", r.At.Local().Format("2006-01-02 15:04:05"), r.Status, r.Line)
		if r.Code != "" {
			fmt.Fprintf(out, "  (%s)", r.Code)
		}
		fmt.Fprintln(out)
	}
	return nil
}
