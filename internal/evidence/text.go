package evidence

import (
	"regexp"
	"strings"
)

var camelBoundary = regexp.MustCompile(`([a-z])([A-Z])`)

// NormalizeText prepares user text for matching: camelCase boundaries are
// split ("feverAndCough" -> "fever and cough" after lowering), the result
// is lower-cased and trimmed.
func NormalizeText(s string) string {
	s = camelBoundary.ReplaceAllString(s, "$1 $2")
	return strings.TrimSpace(strings.ToLower(s))
}
