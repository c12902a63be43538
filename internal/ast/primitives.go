package ast

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Duration is a time span normalized to whole milliseconds.
type Duration int64

// ParseDuration parses the literal forms the language accepts: an integer
// or decimal count followed by ms, s, or m. Negative and overflowing
// values are rejected.
func ParseDuration(lit string) (Duration, error) {
	unit := ""
	num := lit
	switch {
	case strings.HasSuffix(lit, "ms"):
		unit, num = "ms", strings.TrimSuffix(lit, "ms")
	case strings.HasSuffix(lit, "s"):
		unit, num = "s", strings.TrimSuffix(lit, "s")
	case strings.HasSuffix(lit, "m"):
		unit, num = "m", strings.TrimSuffix(lit, "m")
	default:
		return 0, fmt.Errorf("duration %q missing unit (ms, s, or m)", lit)
	}
	if num == "" {
		return 0, fmt.Errorf("duration %q has no numeric part", lit)
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("duration %q is not numeric", lit)
	}
	if f < 0 {
		return 0, fmt.Errorf("duration %q is negative", lit)
	}
	var ms float64
	switch unit {
	case "ms":
		ms = f
	case "s":
		ms = f * 1000
	case "m":
		ms = f * 60000
	}
	if ms > math.MaxInt64 || math.IsInf(ms, 0) || math.IsNaN(ms) {
		return 0, fmt.Errorf("duration %q overflows", lit)
	}
	return Duration(math.Round(ms)), nil
}

// Millis returns the duration as a millisecond count.
func (d Duration) Millis() int64 { return int64(d) }

// String renders the canonical literal: the largest unit that divides the
// value exactly, so re-parsing yields the same duration.
func (d Duration) String() string {
	ms := int64(d)
	switch {
	case ms != 0 && ms%60000 == 0:
		return fmt.Sprintf("%dm", ms/60000)
	case ms != 0 && ms%1000 == 0:
		return fmt.Sprintf("%ds", ms/1000)
	default:
		return fmt.Sprintf("%dms", ms)
	}
}

// ParseNumber parses a numeric literal, rejecting malformed and
// non-finite values.
func ParseNumber(lit string) (float64, error) {
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return 0, fmt.Errorf("number %q is not numeric", lit)
	}
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("number %q is not finite", lit)
	}
	return f, nil
}

// CoerceInt converts a float to an int when it is integral and in range.
func CoerceInt(f float64) (int, bool) {
	if f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(f), true
}

// KeyCombo is an ordered key chord: zero or more modifiers followed by
// exactly one main key (the last token).
type KeyCombo struct {
	Tokens []string
}

// Mods returns the modifier tokens of the chord.
func (k KeyCombo) Mods() []string {
	if len(k.Tokens) <= 1 {
		return nil
	}
	return k.Tokens[:len(k.Tokens)-1]
}

// Key returns the main key of the chord, or "" for an empty combo.
func (k KeyCombo) Key() string {
	if len(k.Tokens) == 0 {
		return ""
	}
	return k.Tokens[len(k.Tokens)-1]
}

// String joins the chord with "+" in press-combo form.
func (k KeyCombo) String() string { return strings.Join(k.Tokens, "+") }

// UnquoteString decodes a double-quoted literal. Only \" \\ \n \r \t are
// recognized escapes; anything else after a backslash is an error, as is
// a missing closing quote.
func UnquoteString(lit string) (string, error) {
	if len(lit) < 2 || lit[0] != '"' || lit[len(lit)-1] != '"' {
		return "", fmt.Errorf("string literal %q is not quoted", lit)
	}
	body := lit[1 : len(lit)-1]
	var b strings.Builder
	b.Grow(len(body))
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(body) {
			return "", fmt.Errorf("string literal ends in bare backslash")
		}
		switch body[i] {
		case '"':
			b.WriteByte('"')
		case '\\':
			b.WriteByte('\\')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		default:
			return "", fmt.Errorf("unsupported escape \\%c", body[i])
		}
	}
	return b.String(), nil
}

// QuoteString encodes a string as a canonical double-quoted literal using
// the same escape set UnquoteString accepts.
func QuoteString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}
