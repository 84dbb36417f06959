// Package strutil holds the small string normalizers shared by config
// and payload decoding.
package strutil

import "strings"

// NormalizeUpper trims surrounding whitespace and converts to upper
// case. Use for ISO country codes and other tokens compared
// case-insensitively.
func NormalizeUpper(value string) string {
	return strings.ToUpper(strings.TrimSpace(value))
}

// NormalizeLower trims surrounding whitespace and converts to lower
// case. Use for config enums such as the UI mode and start offset.
func NormalizeLower(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
