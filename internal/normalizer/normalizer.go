// Package normalizer turns raw operator input into canonical command
// text: one spelling per construct, so the grammar behind it stays small.
// Normalization is idempotent; canonical text passes through unchanged.
package normalizer

import (
	"regexp"
	"strings"
)

var numberRe = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// Normalize canonicalizes a whole script. Blank lines are dropped,
// comment-only lines are kept, and every command line is rewritten to
// its canonical form with any trailing comment preserved.
func Normalize(input string) string {
	var out []string
	for _, line := range strings.Split(input, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			out = append(out, trimmed)
			continue
		}

		command, comment, hasComment := splitComment(trimmed)
		if strings.TrimSpace(command) == "" {
			if hasComment {
				out = append(out, "#"+comment)
			}
			continue
		}

		normalized := normalizeCommand(command)
		if hasComment {
			normalized += " #" + comment
		}
		out = append(out, normalized)
	}
	return strings.Join(out, "\n")
}

// splitComment finds the comment boundary of a line. A "#" opens a
// comment only at the start of the line or directly after whitespace;
// "goto example.com#frag" keeps its fragment and "click 5#x" stays one
// token for the parser to reject. Quotes shield "#" entirely.
func splitComment(line string) (command, comment string, ok bool) {
	var inQuote byte
	escaped := false
	for i := 0; i < len(line); i++ {
		c := line[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\':
			escaped = true
		case inQuote != 0:
			if c == inQuote {
				inQuote = 0
			}
		case c == '"' || c == '\'':
			inQuote = c
		case c == '#':
			if i == 0 {
				return "", line[1:], true
			}
			if isSpace(line[i-1]) {
				return line[:i], line[i+1:], true
			}
		}
	}
	return line, "", false
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' }

// normalizeCommand canonicalizes a single command (comment already
// stripped).
func normalizeCommand(input string) string {
	tokens := tokenize(input)
	if len(tokens) == 0 {
		return input
	}

	verb, args := normalizeVerb(tokens[0], tokens[1:])

	var norm []string
	for i := 0; i < len(args); i++ {
		arg := args[i]

		// Selector expressions may have been split on inner spaces;
		// rejoin on paren balance and quote the selector body.
		if strings.HasPrefix(arg, "css(") || strings.HasPrefix(arg, "xpath(") {
			expr := arg
			balance := parenBalance(expr)
			for balance > 0 && i+1 < len(args) {
				i++
				expr += " " + args[i]
				balance += parenBalance(args[i])
			}
			if joined, ok := normalizeSelectorExpr(expr); ok {
				norm = append(norm, joined)
			} else {
				norm = append(norm, expr)
			}
			continue
		}

		// Bare JSON objects get slurped to brace balance and quoted.
		if strings.HasPrefix(arg, "{") {
			expr := arg
			balance := braceBalance(expr)
			for balance > 0 && i+1 < len(args) {
				i++
				expr += " " + args[i]
				balance += braceBalance(args[i])
			}
			norm = append(norm, `"`+strings.ReplaceAll(expr, `"`, `\"`)+`"`)
			continue
		}

		// Options: one long form, lowercase.
		if strings.HasPrefix(arg, "--") {
			norm = append(norm, strings.ToLower(arg))
			continue
		}
		if strings.HasPrefix(arg, "-") && !numberRe.MatchString(arg) {
			norm = append(norm, "-"+strings.ToLower(arg))
			continue
		}

		switch verb {
		case "observe":
			if strings.EqualFold(arg, "full") {
				arg = "--full"
			} else if strings.EqualFold(arg, "minimal") {
				arg = "--minimal"
			}
		case "press":
			arg = normalizeKeyToken(arg)
		case "device":
			// An unquoted device name may span several words; join and
			// quote them so "iphone 12 pro" parses as one name.
			if len(norm) == 0 && !strings.HasPrefix(arg, `"`) && !strings.EqualFold(arg, "reset") {
				name := arg
				for i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
					i++
					name += " " + args[i]
				}
				arg = `"` + name + `"`
			}
		}
		norm = append(norm, arg)
	}

	switch verb {
	case "press":
		norm = joinKeyCombos(norm)
	case "type":
		norm = reorderTypeText(norm)
	case "cookies":
		if len(norm) >= 3 && norm[0] == "set" && !strings.HasPrefix(norm[2], `"`) {
			norm[2] = `"` + norm[2] + `"`
		}
	}

	return strings.Join(append([]string{verb}, norm...), " ")
}

// normalizeVerb folds the leading token to its canonical verb, consuming
// a second token for the two-word aliases.
func normalizeVerb(first string, rest []string) (string, []string) {
	verb := strings.ToLower(first)
	switch verb {
	case "navigate", "nav":
		return "goto", rest
	case "go":
		if len(rest) > 0 && strings.EqualFold(rest[0], "to") {
			return "goto", rest[1:]
		}
		return "go", rest
	case "scan":
		return "observe", rest
	case "quit":
		return "exit", rest
	case "accept":
		if len(rest) > 0 && strings.EqualFold(rest[0], "cookies") {
			return "accept_cookies", rest[1:]
		}
		return "accept", rest
	}
	return verb, rest
}

// normalizeSelectorExpr canonicalizes css(...)/xpath(...): lowercase
// kind, body double-quoted with inner quotes escaped.
func normalizeSelectorExpr(expr string) (string, bool) {
	open := strings.IndexByte(expr, '(')
	end := strings.LastIndexByte(expr, ')')
	if open < 0 || end < open {
		return "", false
	}
	kind := strings.ToLower(strings.TrimSpace(expr[:open]))
	if kind != "css" && kind != "xpath" {
		return "", false
	}
	inner := strings.TrimSpace(expr[open+1 : end])
	var body string
	switch {
	case strings.HasPrefix(inner, `"`) && strings.HasSuffix(inner, `"`) && len(inner) >= 2:
		body = inner
	case strings.HasPrefix(inner, `'`) && strings.HasSuffix(inner, `'`) && len(inner) >= 2:
		unquoted := inner[1 : len(inner)-1]
		body = `"` + escapeQuotes(unquoted) + `"`
	default:
		body = `"` + escapeQuotes(inner) + `"`
	}
	return kind + "(" + body + ")", true
}

func escapeQuotes(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

// Key names that always canonicalize to lowercase. Character keys keep
// their case ("A" is shift-a).
var namedKeys = map[string]bool{
	"enter": true, "tab": true, "escape": true, "space": true,
	"backspace": true, "delete": true, "arrowup": true, "arrowdown": true,
	"arrowleft": true, "arrowright": true, "home": true, "end": true,
	"pageup": true, "pagedown": true,
	"f1": true, "f2": true, "f3": true, "f4": true, "f5": true, "f6": true,
	"f7": true, "f8": true, "f9": true, "f10": true, "f11": true, "f12": true,
}

var modifierKeys = map[string]bool{
	"control": true, "ctrl": true, "shift": true, "alt": true, "meta": true,
}

func normalizeKeyToken(arg string) string {
	lower := strings.ToLower(arg)
	if modifierKeys[lower] || namedKeys[lower] || strings.Contains(arg, "+") {
		return lower
	}
	return arg
}

// joinKeyCombos fuses "ctrl + shift + a" style token runs into one
// "ctrl+shift+a" combo token.
func joinKeyCombos(args []string) []string {
	var out []string
	var buf string
	for _, arg := range args {
		switch {
		case arg == "+":
			buf += "+"
		case strings.HasSuffix(buf, "+"):
			buf += strings.ToLower(arg)
		default:
			if buf != "" {
				out = append(out, buf)
			}
			buf = arg
		}
	}
	if buf != "" {
		out = append(out, buf)
	}
	return out
}

// reorderTypeText moves a type command's text literal after its full
// relational target, so "type email \"x\" inside \"Form\"" canonicalizes
// to "type email inside \"Form\" \"x\"".
func reorderTypeText(args []string) []string {
	strIdx := -1
	for i, arg := range args {
		if strings.HasPrefix(arg, `"`) {
			strIdx = i
			break
		}
	}
	if strIdx < 0 {
		return args
	}
	relAfter := false
	for _, arg := range args[strIdx+1:] {
		switch strings.ToLower(arg) {
		case "inside", "near", "after", "before", "contains":
			relAfter = true
		}
	}
	if !relAfter {
		return args
	}
	text := args[strIdx]
	rest := append(append([]string{}, args[:strIdx]...), args[strIdx+1:]...)
	insert := len(rest)
	for i, arg := range rest {
		if strings.HasPrefix(arg, "-") {
			insert = i
			break
		}
	}
	out := append([]string{}, rest[:insert]...)
	out = append(out, text)
	return append(out, rest[insert:]...)
}

// tokenize splits on whitespace while keeping quoted regions intact.
// Single-quoted strings come out double-quoted with escapes translated,
// which is the only quote form later stages accept.
func tokenize(input string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}

	for i := 0; i < len(input); i++ {
		c := input[i]
		if c == ' ' || c == '\t' {
			flush()
			continue
		}

		switch c {
		case '"':
			cur.WriteByte('"')
			for i++; i < len(input); i++ {
				ic := input[i]
				if ic == '\\' {
					cur.WriteByte('\\')
					if i+1 < len(input) {
						i++
						cur.WriteByte(input[i])
					}
					continue
				}
				cur.WriteByte(ic)
				if ic == '"' {
					break
				}
			}
		case '\'':
			cur.WriteByte('"')
			for i++; i < len(input); i++ {
				ic := input[i]
				if ic == '\\' {
					if i+1 < len(input) {
						i++
						if input[i] == '\'' {
							cur.WriteByte('\'')
						} else {
							cur.WriteByte('\\')
							cur.WriteByte(input[i])
						}
					} else {
						cur.WriteByte('\\')
					}
					continue
				}
				if ic == '\'' {
					cur.WriteByte('"')
					break
				}
				if ic == '"' {
					cur.WriteString(`\"`)
					continue
				}
				cur.WriteByte(ic)
			}
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return tokens
}

// parenBalance counts unmatched parens outside quotes.
func parenBalance(s string) int {
	balance := 0
	var inQuote byte
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\':
			escaped = true
		case inQuote != 0:
			if c == inQuote {
				inQuote = 0
			}
		case c == '"' || c == '\'':
			inQuote = c
		case c == '(':
			balance++
		case c == ')':
			balance--
		}
	}
	return balance
}

// braceBalance counts unmatched braces; quoting is irrelevant because
// bare JSON arrives unquoted by definition.
func braceBalance(s string) int {
	balance := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			balance++
		case '}':
			balance--
		}
	}
	return balance
}
