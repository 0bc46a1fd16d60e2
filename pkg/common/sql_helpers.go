package common

import (
	"regexp"
	"strings"
)

// identPattern matches safe SQL identifiers: a leading letter or
// underscore followed by letters, digits or underscores.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// QuoteIdent double-quotes an identifier, escaping embedded quotes.
// Identifiers sourced from schema files (tables, columns, pivot names)
// must pass through here before being spliced into SQL fragments.
func QuoteIdent(qualifier string) string {
	return `"` + strings.ReplaceAll(qualifier, `"`, `""`) + `"`
}

// QuoteLiteral single-quotes a string literal, escaping embedded quotes.
func QuoteLiteral(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}

// ValidIdent reports whether s is a safe bare SQL identifier.
func ValidIdent(s string) bool {
	return identPattern.MatchString(s)
}
