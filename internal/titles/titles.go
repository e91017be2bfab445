// Package titles derives comparison keys from scraped release titles.
package titles

import (
	"regexp"
	"strings"
	"unicode"
)

// Unknown is the title recorded when a detail page has no heading.
const Unknown = "Unknown Title"

var (
	parenthesized = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]`)

	releaseTokens = regexp.MustCompile(`(?i)` +
		`\bfree download\b` +
		`|\bv\d+(?:\.\d+)*[a-z0-9\-]*` +
		`|\bbuild \d+\b` +
		`|(?:\b(?:deluxe|definitive|ultimate|gold|complete|goty|enhanced|premium|special|anniversary)\s+)*\bedition\b.*$` +
		`|\b(?:p2p|gog|repack|flt|tenoke|rune|codex|skidrow|elamigos)\b`)
)

// Normalize strips parenthesized spans and release metadata (version strings,
// "Free Download", "Repack", "Build N", group tags and edition suffixes) from
// raw and returns the lower-cased remainder with whitespace collapsed.
// Titles differing only in those parts yield the same key.
func Normalize(raw string) string {
	stripped := parenthesized.ReplaceAllString(raw, " ")
	stripped = releaseTokens.ReplaceAllString(stripped, " ")

	return strings.ToLower(collapse(stripped))
}

// Matches reports the first pattern contained in the upper-cased title.
func Matches(title string, patterns []string) (string, bool) {
	upper := strings.ToUpper(title)
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}

		if strings.Contains(upper, strings.ToUpper(pattern)) {
			return pattern, true
		}
	}

	return "", false
}

func collapse(value string) string {
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return unicode.IsSpace(r)
	})

	joined := strings.Join(fields, " ")

	return strings.Trim(joined, " -–:|")
}
