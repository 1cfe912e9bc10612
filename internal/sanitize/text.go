package sanitize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Field length caps applied to generation input. Longer values are clamped,
// not rejected.
const (
	MaxTitleLength  = 140
	MaxAuthorLength = 120
	MaxSourceLength = 9000
)

// Field normalizes a single-line form value: NFC, control characters dropped,
// whitespace collapsed, clamped to max runes.
func Field(s string, max int) string {
	s = norm.NFC.String(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	return Clamp(strings.Join(strings.Fields(s), " "), max)
}

// Text normalizes multi-line source text: NFC, CRLF folded to LF, control
// characters other than newline and tab dropped, trimmed and clamped.
func Text(s string, max int) string {
	s = norm.NFC.String(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return Clamp(strings.TrimSpace(s), max)
}

// Clamp truncates s to at most max runes. A non-positive max disables it.
func Clamp(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max]))
}
