package parser

import (
	"regexp"
	"strings"

	"catalogcrawler/internal/catalog"
)

// sizePatterns are tried in order; the first that matches anywhere wins.
// The Storage label deliberately precedes "available space": pages that
// carry both list the install size under Storage.
var sizePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Storage:\s*(\d+(?:\.\d+)?)\s*(GB|MB)`),
	regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(GB|MB)\s+available space`),
}

// extractSize runs over the page text so that markup between a label and
// its value does not hide a match.
func extractSize(text string) string {
	for _, pattern := range sizePatterns {
		match := pattern.FindStringSubmatch(text)
		if match == nil {
			continue
		}

		return match[1] + " " + strings.ToUpper(match[2])
	}

	return catalog.UndefinedSize
}
