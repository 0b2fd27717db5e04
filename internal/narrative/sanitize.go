package narrative

import (
	"regexp"
	"strings"
)

type sanitizer struct {
	name  string
	apply func(string) string
}

var trailingCommaRe = regexp.MustCompile(`,(\s*[}\]])`)

var smartQuotes = strings.NewReplacer(
	"“", `"`, "”", `"`, "„", `"`, "«", `"`, "»", `"`,
	"‘", "'", "’", "'",
)

// sanitizers run in order, each on the output of the previous one.
var sanitizers = []sanitizer{
	{name: "control_chars", apply: stripControl},
	{name: "smart_quotes", apply: smartQuotes.Replace},
	{name: "trailing_commas", apply: func(s string) string {
		return trailingCommaRe.ReplaceAllString(s, "$1")
	}},
}

// stripControl replaces control characters with spaces. Raw newlines and
// tabs inside string literals are invalid JSON; as spaces they are not.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return ' '
		}
		return r
	}, s)
}
