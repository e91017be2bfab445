package urlutil

import (
	"net/url"
	"path"
	"strconv"
	"strings"
)

// Resolve resolves href against base and returns an absolute HTTP(S) URL
// without a fragment.
func Resolve(base *url.URL, href string) (string, bool) {
	trimmed := strings.TrimSpace(href)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return "", false
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", false
	}

	if !isSupportedScheme(parsed.Scheme) {
		return "", false
	}

	resolved := parsed
	if base != nil && parsed.Scheme == "" {
		resolved = base.ResolveReference(parsed)
	}

	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}

	resolved.Fragment = ""
	resolved.RawFragment = ""

	return resolved.String(), true
}

func isSupportedScheme(scheme string) bool {
	return scheme == "" || scheme == "http" || scheme == "https"
}

// PageURL returns the URL of listing page n under a category root,
// e.g. https://site/category/action/page/2.
func PageURL(root string, n int) string {
	return strings.TrimRight(root, "/") + "/page/" + strconv.Itoa(n)
}

// LastSegment returns the final non-empty path segment of rawURL.
func LastSegment(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}

	cleaned := strings.TrimRight(parsed.Path, "/")
	if cleaned == "" {
		return ""
	}

	return path.Base(cleaned)
}

// Hostname returns the lower-cased host of rawURL, or "" when it cannot be parsed.
func Hostname(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}

	return strings.ToLower(parsed.Hostname())
}
