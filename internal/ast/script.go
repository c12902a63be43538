package ast

// Script is an ordered sequence of parsed input lines.
type Script struct {
	Lines []Line
}

// Commands returns the non-empty statements of the script in order.
func (s *Script) Commands() []Command {
	var out []Command
	for _, l := range s.Lines {
		if l.Command != nil {
			out = append(out, l.Command)
		}
	}
	return out
}

// Line is one input line: empty, a bare comment, or a command with an
// optional trailing comment.
type Line struct {
	// No is the 1-based line number in the source.
	No int
	// Command is nil for empty and comment-only lines.
	Command Command
	// Comment holds the text after "#", without the marker, when present.
	Comment string
	Span    Span
}

// IsEmpty reports whether the line carries neither command nor comment.
func (l Line) IsEmpty() bool { return l.Command == nil && l.Comment == "" }
