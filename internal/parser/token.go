package parser

import (
	"errors"
	"regexp"
	"strings"

	"github.com/xkilldash9x/oil-cli/internal/ast"
)

// TokenKind classifies a lexed token.
type TokenKind int

const (
	TokWord TokenKind = iota
	TokString
	TokNumber
	TokOption
	TokSelector
	TokComment
)

func (k TokenKind) String() string {
	switch k {
	case TokWord:
		return "word"
	case TokString:
		return "string"
	case TokNumber:
		return "number"
	case TokOption:
		return "option"
	case TokSelector:
		return "selector"
	case TokComment:
		return "comment"
	}
	return "invalid"
}

// Token is one lexical unit of a canonical line. Text is the raw slice
// of the line: strings keep their quotes, options keep their dashes.
type Token struct {
	Kind TokenKind
	Text string
	Span ast.Span
}

var (
	tokenNumberRe = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

	// roleWordRe is the shape a bare word must have to act as a role
	// atom. It keeps glued junk like "5#comment" out of targets while
	// words elsewhere (URLs, key combos) stay unrestricted.
	roleWordRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)
)

// Lex splits one canonical line into tokens with byte-offset spans.
// Spans index into the canonical text, which is what every later stage
// reports positions against.
func Lex(line string, lineNo int) ([]Token, error) {
	var toks []Token
	i := 0
	for i < len(line) {
		c := line[i]
		if c == ' ' || c == '\t' {
			i++
			continue
		}

		start := i
		switch {
		case c == '#' && (i == 0 || line[i-1] == ' ' || line[i-1] == '\t'):
			toks = append(toks, Token{
				Kind: TokComment,
				Text: line[i+1:],
				Span: span(start, len(line), lineNo),
			})
			return toks, nil

		case c == '"':
			end, err := scanString(line, i)
			if err != nil {
				return nil, &Error{Pos: span(start, len(line), lineNo), Msg: err.Error()}
			}
			toks = append(toks, Token{
				Kind: TokString,
				Text: line[start:end],
				Span: span(start, end, lineNo),
			})
			i = end

		default:
			end := scanWord(line, i)
			word := line[start:end]

			if isSelectorExpr(word) {
				toks = append(toks, Token{
					Kind: TokSelector,
					Text: word,
					Span: span(start, end, lineNo),
				})
				i = end
				continue
			}

			kind := TokWord
			switch {
			case tokenNumberRe.MatchString(word):
				kind = TokNumber
			case strings.HasPrefix(word, "--") && len(word) > 2:
				kind = TokOption
			}
			toks = append(toks, Token{
				Kind: kind,
				Text: word,
				Span: span(start, end, lineNo),
			})
			i = end
		}
	}
	return toks, nil
}

// scanString returns the index just past the closing quote.
func scanString(line string, start int) (int, error) {
	i := start + 1
	for i < len(line) {
		switch line[i] {
		case '\\':
			i += 2
		case '"':
			return i + 1, nil
		default:
			i++
		}
	}
	return 0, errors.New("unterminated string")
}

// scanWord consumes until unquoted whitespace. Embedded quoted regions
// (run parameters like key="a value") stay inside the word.
func scanWord(line string, start int) int {
	i := start
	var inQuote bool
	for i < len(line) {
		c := line[i]
		if inQuote {
			if c == '\\' {
				i += 2
				continue
			}
			if c == '"' {
				inQuote = false
			}
			i++
			continue
		}
		if c == ' ' || c == '\t' {
			return i
		}
		if c == '"' {
			inQuote = true
		}
		i++
	}
	return i
}

// isSelectorExpr reports whether a word is a css(...)/xpath(...) form.
func isSelectorExpr(word string) bool {
	return (strings.HasPrefix(word, "css(") || strings.HasPrefix(word, "xpath(")) &&
		strings.HasSuffix(word, ")")
}

func span(start, end, lineNo int) ast.Span {
	return ast.Span{Start: start, End: end, Line: lineNo, Col: start + 1}
}
