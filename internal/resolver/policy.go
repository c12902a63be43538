package resolver

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/oil-cli/api/schemas"
	"github.com/xkilldash9x/oil-cli/internal/ast"
)

// SemanticError is a policy or resolution failure on a well-formed
// command. Code, when set, names the wire taxonomy entry the failure
// corresponds to so callers can surface a recovery hint; Candidates
// carries the tied element IDs of an ambiguous match.
type SemanticError struct {
	Pos        ast.Span
	Msg        string
	Code       string
	Candidates []uint32
}

func (e *SemanticError) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

// Conflict declares one mutually-exclusive option pair. An empty Command
// applies the pair to every verb that carries both options.
type Conflict struct {
	Command string
	OptionA string
	OptionB string
}

// Policy is the semantic-policy table threaded through resolution as a
// parameter. Versioning lets callers pin the table a script was written
// against; resolution logic never hard-codes a pair.
type Policy struct {
	Version   int
	Conflicts []Conflict
}

// DefaultPolicy returns the current conflict table. Boolean flags repeat
// freely and value options are last-wins at parse time, so presence of
// both members of a declared pair is the only conflict shape.
func DefaultPolicy() Policy {
	return Policy{
		Version: 1,
		Conflicts: []Conflict{
			{Command: "observe", OptionA: "--full", OptionB: "--minimal"},
			{Command: "storage", OptionA: "--local", OptionB: "--session"},
			{Command: "click", OptionA: "--right", OptionB: "--middle"},
		},
	}
}

// Check validates one command against the table. Conflicts are symmetric;
// order of appearance in the source never matters.
func (p Policy) Check(cmd ast.Command) error {
	flags := boolOptions(cmd)
	if len(flags) == 0 {
		return nil
	}
	for _, c := range p.Conflicts {
		if c.Command != "" && c.Command != cmd.Name() {
			continue
		}
		if flags[c.OptionA] && flags[c.OptionB] {
			return &SemanticError{
				Pos: cmd.Pos(),
				Msg: fmt.Sprintf("%s: %s conflicts with %s",
					cmd.Name(), c.OptionA, c.OptionB),
			}
		}
	}
	return nil
}

// boolOptions reports the boolean options present on a command, keyed by
// their source spelling. Commands without boolean options return nil.
func boolOptions(cmd ast.Command) map[string]bool {
	switch c := cmd.(type) {
	case *ast.ObserveCmd:
		return present(map[string]bool{
			"--full": c.Full, "--minimal": c.Minimal, "--viewport": c.Viewport,
			"--hidden": c.Hidden, "--positions": c.Positions, "--diff": c.Diff,
		})
	case *ast.ClickCmd:
		return present(map[string]bool{
			"--double": c.Double, "--right": c.Right, "--middle": c.Middle,
			"--force": c.Force, "--ctrl": c.Ctrl, "--shift": c.Shift, "--alt": c.Alt,
		})
	case *ast.TypeCmd:
		return present(map[string]bool{
			"--append": c.Append, "--enter": c.Enter, "--clear": c.Clear,
		})
	case *ast.StorageCmd:
		return present(map[string]bool{"--local": c.Local, "--session": c.Session})
	case *ast.RefreshCmd:
		return present(map[string]bool{"--hard": c.Hard})
	case *ast.ScreenshotCmd:
		return present(map[string]bool{"--full": c.FullPage})
	case *ast.ScrollCmd:
		return present(map[string]bool{"--page": c.Page})
	case *ast.ScrollUntilCmd:
		return present(map[string]bool{"--page": c.Page})
	case *ast.StateCmd:
		return present(map[string]bool{
			"--cookies-only": c.CookiesOnly, "--include-session": c.IncludeSession,
			"--merge": c.Merge,
		})
	case *ast.LoginCmd:
		return present(map[string]bool{"--no-submit": c.NoSubmit})
	case *ast.IntentsCmd:
		return present(map[string]bool{"--session": c.Session})
	case *ast.InterceptCmd:
		return present(map[string]bool{"--block": c.Block})
	case *ast.ConsoleCmd:
		return present(map[string]bool{"--clear": c.Clear})
	case *ast.ErrorsCmd:
		return present(map[string]bool{"--clear": c.Clear})
	case *ast.HighlightCmd:
		return present(map[string]bool{"--clear": c.Clear})
	case *ast.PDFCmd:
		return present(map[string]bool{"--landscape": c.Landscape})
	default:
		return nil
	}
}

func present(all map[string]bool) map[string]bool {
	out := make(map[string]bool, len(all))
	for name, on := range all {
		if on {
			out[name] = true
		}
	}
	return out
}

func errNoMatch(pos ast.Span, desc string) *SemanticError {
	return &SemanticError{
		Pos:  pos,
		Msg:  fmt.Sprintf("no element matches %s", desc),
		Code: schemas.CodeElementNotFound,
	}
}

func errAmbiguous(pos ast.Span, desc string, candidates []uint32) *SemanticError {
	ids := make([]string, len(candidates))
	for i, id := range candidates {
		ids[i] = fmt.Sprintf("%d", id)
	}
	return &SemanticError{
		Pos: pos,
		Msg: fmt.Sprintf("%s matches %d elements equally well: %s",
			desc, len(candidates), strings.Join(ids, ", ")),
		Candidates: candidates,
	}
}
