// File: cmd/grammar.go
package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/oil-cli/internal/parser"
)

// newGrammarCmd groups the grammar maintenance tools. These run without a
// browser session, so they skip initializeApp entirely.
func newGrammarCmd() *cobra.Command {
	grammarCmd := &cobra.Command{
		Use:   "grammar",
		Short: "Inspect and audit the command grammar tables",
	}
	grammarCmd.AddCommand(newGrammarCheckCmd(), newGrammarDumpCmd())
	return grammarCmd
}

func newGrammarCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Audit the ordered alternation tables for shadowed entries",
		Long: `check audits every literal alternation table for the greedy prefix
hazard: in ordered choice, an entry that is a strict prefix of a later entry
makes the longer one unreachable. Run this after any table edit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			issues := parser.CheckTables()
			for _, issue := range issues {
				fmt.Fprintln(cmd.OutOrStdout(), issue.String())
			}
			if n := len(issues); n > 0 {
				return fmt.Errorf("%d grammar table issue(s)", n)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "grammar tables ok")
			return nil
		},
	}
}

func newGrammarDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Print the dispatch table and keyword sets",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			dumpGrammar(cmd.OutOrStdout())
		},
	}
}

func dumpGrammar(out io.Writer) {
	fmt.Fprintln(out, "command dispatch (ordered):")
	for _, phrase := range parser.CommandDispatch {
		fmt.Fprintf(out, "  %-16s %s\n", strings.Join(phrase.Words, " "), phrase.Rule)
	}

	tables := []struct {
		name    string
		entries []string
	}{
		{"relations", parser.Relations},
		{"wait kinds", parser.WaitKinds},
		{"extract kinds", parser.ExtractKinds},
		{"scroll directions", parser.ScrollDirections},
		{"key names", parser.KeyNames},
		{"modifier keys", parser.ModifierKeys},
		{"known roles", parser.KnownRoles},
		{"cookie ops", parser.CookieOps},
		{"storage ops", parser.StorageOps},
		{"session ops", parser.SessionOps},
		{"state ops", parser.StateOps},
		{"header ops", parser.HeaderOps},
		{"tab ops", parser.TabOps},
		{"dialog ops", parser.DialogOps},
		{"frame kinds", parser.FrameKinds},
		{"trace ops", parser.TraceOps},
		{"pack ops", parser.PackOps},
		{"learn ops", parser.LearnOps},
	}
	for _, t := range tables {
		fmt.Fprintf(out, "\n%s: %s\n", t.name, strings.Join(t.entries, ", "))
	}
}
