package sqlcore

import "strings"

var backslashEscaper = strings.NewReplacer(
	"\\", "\\\\",
	"\x00", "\\0",
	"\n", "\\n",
	"\r", "\\r",
	"'", "\\'",
	"\"", "\\\"",
	"\x1a", "\\Z",
)

// EscapeBackslash escapes the way mysql's real_escape_string does.
func EscapeBackslash(s string) string { return backslashEscaper.Replace(s) }

// EscapeQuotes doubles single quotes, the standard SQL literal escape.
func EscapeQuotes(s string) string { return strings.ReplaceAll(s, "'", "''") }

// QuoteIdent wraps an identifier in the quote rune, doubling embedded quotes.
func QuoteIdent(name string, quote byte) string {
	q := string(quote)
	return q + strings.ReplaceAll(name, q, q+q) + q
}
