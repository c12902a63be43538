package parser

import (
	"fmt"
	"strings"
)

// TableIssue reports one ordering violation in a literal alternation
// table: an earlier entry that shadows a later one.
type TableIssue struct {
	Table   string
	Earlier string
	Later   string
}

func (i TableIssue) String() string {
	if i.Earlier == i.Later {
		return fmt.Sprintf("%s: duplicate entry %q", i.Table, i.Earlier)
	}
	return fmt.Sprintf("%s: %q shadows later entry %q (strict prefix must come after)", i.Table, i.Earlier, i.Later)
}

// CheckTables audits every ordered alternation table for the greedy
// prefix hazard: in ordered choice, a literal that is a strict prefix of
// a later literal matches first and the longer alternative becomes
// unreachable. Tables must therefore list prefix-related entries
// longest-first. Run via "oil grammar check" after any table edit.
func CheckTables() []TableIssue {
	var issues []TableIssue

	phrases := make([]string, len(CommandDispatch))
	for i, p := range CommandDispatch {
		phrases[i] = strings.Join(p.Words, " ")
	}
	issues = append(issues, checkOrder("command dispatch", phrases)...)

	named := []struct {
		name    string
		entries []string
	}{
		{"relations", Relations},
		{"wait kinds", WaitKinds},
		{"extract kinds", ExtractKinds},
		{"scroll directions", ScrollDirections},
		{"key names", KeyNames},
		{"modifier keys", ModifierKeys},
		{"known roles", KnownRoles},
		{"cookie ops", CookieOps},
		{"storage ops", StorageOps},
		{"session ops", SessionOps},
		{"state ops", StateOps},
		{"header ops", HeaderOps},
		{"tab ops", TabOps},
		{"dialog ops", DialogOps},
		{"frame kinds", FrameKinds},
		{"trace ops", TraceOps},
		{"pack ops", PackOps},
		{"learn ops", LearnOps},
	}
	for _, t := range named {
		issues = append(issues, checkOrder(t.name, t.entries)...)
	}
	return issues
}

func checkOrder(table string, entries []string) []TableIssue {
	var issues []TableIssue
	for i, earlier := range entries {
		for _, later := range entries[i+1:] {
			if earlier == later {
				issues = append(issues, TableIssue{Table: table, Earlier: earlier, Later: later})
				continue
			}
			if strings.HasPrefix(later, earlier) {
				issues = append(issues, TableIssue{Table: table, Earlier: earlier, Later: later})
			}
		}
	}
	return issues
}
