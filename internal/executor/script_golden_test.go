package executor

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"

	"github.com/xkilldash9x/oil-cli/api/schemas"
)

// transcript renders recorded history the way an operator audits it:
// status column, masked line, error code when one was assigned.
func transcript(entries []HistoryEntry) string {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%-5s  %s", e.Status, e.Line)
		if e.Code != "" {
			fmt.Fprintf(&b, "  # %s", e.Code)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// TestGoldenScripts drives whole scripts through ExecuteLine and
// compares the history they leave behind. The transcript is the
// contract: lines are recorded in canonical form with credentials
// masked, nested intent steps record individually, and define capture
// records nothing until the block runs.
func TestGoldenScripts(t *testing.T) {
	archive, err := txtar.ParseFile(filepath.Join("testdata", "scripts.txtar"))
	require.NoError(t, err)

	files := make(map[string]string, len(archive.Files))
	var names []string
	for _, f := range archive.Files {
		files[f.Name] = string(f.Data)
		if base, ok := strings.CutSuffix(f.Name, "/script"); ok {
			names = append(names, base)
		}
	}
	sort.Strings(names)
	require.NotEmpty(t, names)

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			want, ok := files[name+"/want"]
			require.True(t, ok, "fixture %s has no want file", name)

			host := newFakeHost()
			if page, ok := files[name+"/page"]; ok {
				// Every scan in the script gets the same page; scripts
				// here never scan more than a handful of times.
				for i := 0; i < 8; i++ {
					resp, err := schemas.DecodeResponse([]byte(page))
					require.NoError(t, err)
					host.queue(schemas.CmdScan, resp)
				}
			}

			hist := &fakeHistory{}
			e := newTestExecutorWith(t, host, hist, nil)
			for _, line := range strings.Split(files[name+"/script"], "\n") {
				e.ExecuteLine(context.Background(), line)
			}

			assert.Equal(t, strings.TrimRight(want, "\n"), transcript(hist.all()))
		})
	}
}
