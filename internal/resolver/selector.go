package resolver

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/beevik/etree"
)

// ValidateSelector checks a CSS or XPath expression for syntax errors
// locally, so obviously malformed selectors fail before a page round
// trip. kind is "css" or "xpath".
func ValidateSelector(kind, expr string) error {
	switch kind {
	case "css":
		return validateCSS(expr)
	case "xpath":
		return validateXPath(expr)
	default:
		return fmt.Errorf("unknown selector kind %q", kind)
	}
}

// -- XPath --

// xpathCallRe spots function calls, which the local path compiler does
// not understand. text() is handled by the compiler and stripped before
// this check runs.
var xpathCallRe = regexp.MustCompile(`[a-zA-Z-]+\s*\(`)

// validateXPath rejects structurally broken expressions outright and
// compiles the path subset the local compiler covers. Expressions using
// richer XPath (functions, explicit axes) pass the structural check only
// and are left to the page evaluator.
func validateXPath(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return fmt.Errorf("empty xpath expression")
	}
	if err := checkBalanced(expr); err != nil {
		return err
	}
	stripped := strings.ReplaceAll(expr, "text()", "")
	if strings.Contains(stripped, "::") || xpathCallRe.MatchString(stripped) {
		return nil
	}
	if _, err := etree.CompilePath(expr); err != nil {
		return fmt.Errorf("invalid xpath %q: %v", expr, err)
	}
	return nil
}

// checkBalanced verifies quotes, brackets, and parens pair up. Bracket
// characters inside string literals are data.
func checkBalanced(expr string) error {
	var quote byte
	var brackets, parens int
	for i := 0; i < len(expr); i++ {
		ch := expr[i]
		if quote != 0 {
			if ch == quote {
				quote = 0
			}
			continue
		}
		switch ch {
		case '\'', '"':
			quote = ch
		case '[':
			brackets++
		case ']':
			brackets--
			if brackets < 0 {
				return fmt.Errorf("unmatched ] at offset %d", i)
			}
		case '(':
			parens++
		case ')':
			parens--
			if parens < 0 {
				return fmt.Errorf("unmatched ) at offset %d", i)
			}
		}
	}
	if quote != 0 {
		return fmt.Errorf("unterminated %c quote", quote)
	}
	if brackets != 0 {
		return fmt.Errorf("unclosed [")
	}
	if parens != 0 {
		return fmt.Errorf("unclosed (")
	}
	return nil
}

// -- CSS --

// cssParser is a strict selector-list scanner: it accepts the selector
// grammar (tags, #id, .class, [attr], pseudo-classes, combinators,
// commas) and reports the first syntax error instead of recovering.
type cssParser struct {
	input string
	pos   int
}

func validateCSS(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return fmt.Errorf("empty css selector")
	}
	p := &cssParser{input: expr}
	if err := p.parseSelectorList(); err != nil {
		return fmt.Errorf("invalid css selector %q: %v", expr, err)
	}
	return nil
}

func (p *cssParser) parseSelectorList() error {
	for {
		if err := p.parseComplexSelector(); err != nil {
			return err
		}
		p.consumeWhitespace()
		if p.eof() {
			return nil
		}
		if p.currentChar() != ',' {
			return fmt.Errorf("unexpected %q at offset %d", p.currentChar(), p.pos)
		}
		p.consumeChar()
	}
}

// parseComplexSelector consumes a run of compound selectors joined by
// combinators. A combinator must be followed by another compound.
func (p *cssParser) parseComplexSelector() error {
	p.consumeWhitespace()
	if err := p.parseCompound(); err != nil {
		return err
	}
	for {
		spaced := p.consumeWhitespace()
		if p.eof() || p.currentChar() == ',' {
			return nil
		}
		switch p.currentChar() {
		case '>', '+', '~':
			p.consumeChar()
			p.consumeWhitespace()
		default:
			if !spaced {
				return fmt.Errorf("unexpected %q at offset %d", p.currentChar(), p.pos)
			}
		}
		if err := p.parseCompound(); err != nil {
			return err
		}
	}
}

// parseCompound consumes one simple-selector sequence: an optional tag or
// universal selector followed by any number of #id, .class, [attr], and
// pseudo parts. At least one part must be present.
func (p *cssParser) parseCompound() error {
	if p.eof() {
		return fmt.Errorf("expected selector at offset %d", p.pos)
	}
	parts := 0
	if p.currentChar() == '*' {
		p.consumeChar()
		parts++
	} else if isIdentStart(p.currentChar()) {
		if p.parseIdentifier() == "" {
			return fmt.Errorf("expected tag name at offset %d", p.pos)
		}
		parts++
	}

	for !p.eof() {
		switch p.currentChar() {
		case '#':
			p.consumeChar()
			if p.parseIdentifier() == "" {
				return fmt.Errorf("empty id selector at offset %d", p.pos)
			}
		case '.':
			p.consumeChar()
			if p.parseIdentifier() == "" {
				return fmt.Errorf("empty class selector at offset %d", p.pos)
			}
		case '[':
			if err := p.parseAttribute(); err != nil {
				return err
			}
		case ':':
			if err := p.parsePseudo(); err != nil {
				return err
			}
		default:
			if parts == 0 {
				return fmt.Errorf("unexpected %q at offset %d", p.currentChar(), p.pos)
			}
			return nil
		}
		parts++
	}
	if parts == 0 {
		return fmt.Errorf("expected selector at offset %d", p.pos)
	}
	return nil
}

// parseAttribute consumes [name], [name=value], or an operator form with
// an optional trailing case flag, as in [href$=".pdf" i].
func (p *cssParser) parseAttribute() error {
	p.consumeChar() // [
	p.consumeWhitespace()
	if p.parseIdentifier() == "" {
		return fmt.Errorf("empty attribute name at offset %d", p.pos)
	}
	p.consumeWhitespace()
	if p.eof() {
		return fmt.Errorf("unterminated attribute selector")
	}
	if p.currentChar() == ']' {
		p.consumeChar()
		return nil
	}

	switch p.currentChar() {
	case '~', '|', '^', '$', '*':
		p.consumeChar()
		if p.eof() || p.currentChar() != '=' {
			return fmt.Errorf("expected = at offset %d", p.pos)
		}
		p.consumeChar()
	case '=':
		p.consumeChar()
	default:
		return fmt.Errorf("unexpected %q in attribute selector at offset %d", p.currentChar(), p.pos)
	}

	p.consumeWhitespace()
	if p.eof() {
		return fmt.Errorf("unterminated attribute selector")
	}
	if ch := p.currentChar(); ch == '"' || ch == '\'' {
		if err := p.parseQuoted(ch); err != nil {
			return err
		}
	} else if p.parseIdentifier() == "" {
		return fmt.Errorf("empty attribute value at offset %d", p.pos)
	}
	p.consumeWhitespace()

	// Optional case-sensitivity flag.
	if !p.eof() && p.currentChar() != ']' {
		flag := p.parseIdentifier()
		switch strings.ToLower(flag) {
		case "i", "s":
		default:
			return fmt.Errorf("unexpected %q in attribute selector at offset %d", flag, p.pos)
		}
		p.consumeWhitespace()
	}
	if p.eof() || p.currentChar() != ']' {
		return fmt.Errorf("expected ] at offset %d", p.pos)
	}
	p.consumeChar()
	return nil
}

// parsePseudo consumes :name, ::name, or :name(args) with args balanced.
// Functional arguments are not interpreted, only scanned, which covers
// :nth-child(2n+1) and nested selectors in :not() and :is().
func (p *cssParser) parsePseudo() error {
	p.consumeChar() // :
	if !p.eof() && p.currentChar() == ':' {
		p.consumeChar()
	}
	if p.parseIdentifier() == "" {
		return fmt.Errorf("empty pseudo selector at offset %d", p.pos)
	}
	if p.eof() || p.currentChar() != '(' {
		return nil
	}
	p.consumeChar()
	depth := 1
	for !p.eof() {
		switch ch := p.currentChar(); ch {
		case '(':
			depth++
			p.consumeChar()
		case ')':
			depth--
			p.consumeChar()
			if depth == 0 {
				return nil
			}
		case '"', '\'':
			if err := p.parseQuoted(ch); err != nil {
				return err
			}
		default:
			p.consumeChar()
		}
	}
	return fmt.Errorf("unclosed ( in pseudo selector")
}

func (p *cssParser) parseQuoted(quote byte) error {
	p.consumeChar() // opening quote
	for !p.eof() {
		ch := p.consumeChar()
		if ch == '\\' && !p.eof() {
			p.consumeChar()
			continue
		}
		if ch == quote {
			return nil
		}
	}
	return fmt.Errorf("unterminated string in selector")
}

func (p *cssParser) parseIdentifier() string {
	start := p.pos
	// Leading hyphens are legal in identifiers (-webkit-..., --custom).
	for !p.eof() && p.currentChar() == '-' {
		p.pos++
	}
	for !p.eof() && isIdentChar(p.currentChar()) {
		p.pos++
	}
	id := p.input[start:p.pos]
	if strings.Trim(id, "-") == "" && id != "" {
		// Bare hyphens are not an identifier.
		p.pos = start
		return ""
	}
	return id
}

func (p *cssParser) eof() bool { return p.pos >= len(p.input) }

func (p *cssParser) currentChar() byte {
	if p.eof() {
		return 0
	}
	return p.input[p.pos]
}

func (p *cssParser) consumeChar() byte {
	ch := p.currentChar()
	if !p.eof() {
		p.pos++
	}
	return ch
}

func (p *cssParser) consumeWhitespace() bool {
	consumed := false
	for !p.eof() {
		switch p.currentChar() {
		case ' ', '\t', '\n', '\r':
			p.pos++
			consumed = true
		default:
			return consumed
		}
	}
	return consumed
}

func isIdentStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_' || ch >= 0x80
}

func isIdentChar(ch byte) bool {
	return isIdentStart(ch) || (ch >= '0' && ch <= '9') || ch == '-' || ch == '\\'
}
