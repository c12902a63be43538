package ast

import "fmt"

// Span locates a source fragment: byte offsets into the line plus the
// 1-based line and column where it starts. Spans feed diagnostics only;
// execution semantics never depend on them.
type Span struct {
	Start int
	End   int
	Line  int
	Col   int
}

// Merge combines two spans into the smallest span covering both.
func (s Span) Merge(o Span) Span {
	if o == (Span{}) {
		return s
	}
	if s == (Span{}) {
		return o
	}
	out := s
	if o.Start < out.Start {
		out.Start = o.Start
		out.Col = o.Col
	}
	if o.End > out.End {
		out.End = o.End
	}
	if o.Line < out.Line || out.Line == 0 {
		out.Line = o.Line
	}
	return out
}

// String renders the span for error messages.
func (s Span) String() string {
	return fmt.Sprintf("line %d, col %d", s.Line, s.Col)
}
