package rewrite

import "strings"

// NormalizeWhitespace collapses runs of whitespace to a single space
// and trims the ends. Embedded markup is left intact.
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
