package helpers

import (
	"strings"
	"unicode"
)

// TrimPaddedString removes trailing space and NUL padding from a fixed-width
// field as found in on-disc descriptors.
func TrimPaddedString(raw []byte) string {
	return strings.TrimRight(string(raw), " \x00")
}

// PascalString decodes a Pascal-style string where the first byte is the
// length of the string that follows. The length is clamped to the available
// bytes.
func PascalString(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	n := int(raw[0])
	if n > len(raw)-1 {
		n = len(raw) - 1
	}
	return string(raw[1 : 1+n])
}

// AllDigits reports whether s is non-empty and consists only of ASCII digits.
func AllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// CollapseSpaces replaces runs of whitespace with a single space and trims
// the ends.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
