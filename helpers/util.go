package helpers

import (
	"strings"
)

// CollapseWhitespace trims s and folds any run of whitespace, including
// newlines and non-breaking spaces, into a single space.
func CollapseWhitespace(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	return strings.Join(strings.Fields(s), " ")
}

// TruncateRunes shortens s to at most limit runes, appending an ellipsis
// when anything was cut. Limits below 2 return the bare prefix.
func TruncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit < 2 {
		return string(runes[:limit])
	}
	return string(runes[:limit-1]) + "…"
}
