package util

import (
	"strings"
	"unicode/utf8"
)

// Truncate shortens s to at most max runes, marking the cut with "...".
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	if max <= 3 {
		return string([]rune(s)[:max])
	}
	return string([]rune(s)[:max-3]) + "..."
}

// Preview returns a single-line excerpt of output for tables,
// or placeholder when the output is blank.
func Preview(output string, max int, placeholder string) string {
	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return placeholder
	}
	if i := strings.IndexByte(trimmed, '\n'); i >= 0 {
		trimmed = strings.TrimSpace(trimmed[:i]) + " ..."
	}
	return Truncate(trimmed, max)
}
