package sanitize

import (
	"regexp"
	"strings"
)

// MaxISBNLength is the length of an ISBN-13, the longest accepted form.
const MaxISBNLength = 13

var (
	isbn10Pattern = regexp.MustCompile(`^\d{9}[\dX]$`)
	isbn13Pattern = regexp.MustCompile(`^\d{13}$`)
)

// NormalizeISBN keeps digits and 'X', upper-cases and truncates to 13
// characters. It never rejects input.
func NormalizeISBN(raw string) string {
	var sb strings.Builder
	for _, r := range raw {
		if sb.Len() == MaxISBNLength {
			break
		}
		switch {
		case r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == 'x' || r == 'X':
			sb.WriteByte('X')
		}
	}
	return sb.String()
}

// IsValidISBN10 checks the ISBN-10 mod-11 checksum. 'X' is only allowed as
// the check character and counts as 10.
func IsValidISBN10(s string) bool {
	if !isbn10Pattern.MatchString(s) {
		return false
	}
	sum := 0
	for i := 0; i < 10; i++ {
		v := int(s[i] - '0')
		if s[i] == 'X' {
			v = 10
		}
		sum += v * (10 - i)
	}
	return sum%11 == 0
}

// IsValidISBN13 checks the EAN-13 checksum (weights 1 and 3).
func IsValidISBN13(s string) bool {
	if !isbn13Pattern.MatchString(s) {
		return false
	}
	sum := 0
	for i := 0; i < 12; i++ {
		d := int(s[i] - '0')
		if i%2 == 0 {
			sum += d
		} else {
			sum += d * 3
		}
	}
	check := (10 - sum%10) % 10
	return check == int(s[12]-'0')
}

// IsValidISBN accepts a normalized ISBN-10 or ISBN-13.
func IsValidISBN(s string) bool {
	switch len(s) {
	case 10:
		return IsValidISBN10(s)
	case 13:
		return IsValidISBN13(s)
	default:
		return false
	}
}
