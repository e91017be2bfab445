package hosts

import (
	"context"
	"net/url"
	"path"
	"strconv"
	"strings"

	"catalogcrawler/internal/size"
)

var archiveExtensions = []string{".zip", ".rar", ".7z"}

// direct matches plain archive downloads, optionally restricted to URLs
// containing match. The archive is never downloaded: a HEAD request decides.
type direct struct {
	baseHost
}

func (d direct) Matches(link string) bool {
	if d.match != "" && !strings.Contains(strings.ToLower(link), d.match) {
		return false
	}

	parsed, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return false
	}

	ext := strings.ToLower(path.Ext(parsed.Path))
	for _, candidate := range archiveExtensions {
		if ext == candidate {
			return true
		}
	}

	return false
}

func (direct) Probe(ctx context.Context, client Client, link string) (Verdict, bool) {
	result, ok := client.Head(ctx, link)
	if !ok {
		return Verdict{Valid: false, Reason: "head request failed"}, true
	}

	verdict := Verdict{Valid: true}

	length, err := strconv.ParseInt(strings.TrimSpace(result.Header.Get("Content-Length")), 10, 64)
	if err == nil && length > 0 {
		verdict.Size = size.FromBytes(length)
	}

	return verdict, true
}
