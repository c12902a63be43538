package parser

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/oil-cli/internal/ast"
)

// Error is a failure to parse or build one line. Lines parse atomically:
// an Error means the line had no effect at all. Expected carries the
// syntactic alternatives that could have matched at Pos, when known.
type Error struct {
	Pos      ast.Span
	Msg      string
	Expected []string
}

func (e *Error) Error() string {
	if len(e.Expected) > 0 {
		return fmt.Sprintf("%s: %s, expected %s", e.Pos, e.Msg, strings.Join(e.Expected, " | "))
	}
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

func errExpected(pos ast.Span, msg string, expected ...string) *Error {
	return &Error{Pos: pos, Msg: msg, Expected: expected}
}

func errAt(pos ast.Span, format string, args ...any) *Error {
	return &Error{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}
