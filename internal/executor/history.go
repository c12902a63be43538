package executor

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/xkilldash9x/oil-cli/api/schemas"
	"github.com/xkilldash9x/oil-cli/internal/resolver"
)

// HistoryEntry is one executed line as recorded for posterity.
type HistoryEntry struct {
	Line    string
	Status  string // "ok" or "error"
	Code    string // error code, empty on success
	Took    time.Duration
	Session uuid.UUID
}

// History receives executed lines. Implementations must not block the
// command path on durable storage; recording is fire-and-forget.
type History interface {
	Record(ctx context.Context, entry HistoryEntry)
}

// record appends the line to history, masked so credentials never land
// in storage.
func (e *Executor) record(ctx context.Context, res *Result) {
	if e.history == nil || res == nil || res.Line == "" {
		return
	}
	entry := HistoryEntry{
		Line:    MaskLine(res.Line),
		Status:  "ok",
		Took:    res.Took,
		Session: e.runID,
	}
	if res.Err != nil {
		entry.Status = "error"
		var ee *schemas.ExecError
		var se *resolver.SemanticError
		switch {
		case errors.As(res.Err, &ee):
			entry.Code = ee.Code
		case errors.As(res.Err, &se):
			entry.Code = se.Code
		}
	}
	e.history.Record(ctx, entry)
}

var (
	// The password is the second positional argument of login.
	loginPassPattern = regexp.MustCompile(`^(login\s+(?:"(?:[^"\\]|\\.)*"|\S+)\s+)("(?:[^"\\]|\\.)*"|\S+)`)
	// Credential-ish key=value run parameters.
	paramPassPattern = regexp.MustCompile(`\b(pass|password|secret|token)=("(?:[^"\\]|\\.)*"|\S+)`)
)

// MaskLine hides credential material in a command line before it is
// stored or displayed in buffers.
func MaskLine(line string) string {
	masked := loginPassPattern.ReplaceAllString(line, `$1"****"`)
	masked = paramPassPattern.ReplaceAllString(masked, `$1=****`)
	return masked
}
