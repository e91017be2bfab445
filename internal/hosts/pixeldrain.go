package hosts

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"cloudeng.io/logging/ctxlog"

	"catalogcrawler/internal/size"
	"catalogcrawler/internal/urlutil"
)

type pixeldrain struct {
	baseHost
}

type pixeldrainInfo struct {
	Name string `json:"name"`
	Size *int64 `json:"size"`
}

// Probe queries the file info API. A torrent or magnet descriptor is invalid
// regardless of reachability; a reported byte size makes the link valid.
func (p pixeldrain) Probe(ctx context.Context, client Client, link string) (Verdict, bool) {
	apiURL, ok := pixeldrainInfoURL(link)
	if !ok {
		return Verdict{}, false
	}

	body, ok := client.Get(ctx, apiURL)
	if !ok {
		return Verdict{}, false
	}

	var info pixeldrainInfo
	if err := json.Unmarshal(body, &info); err != nil {
		ctxlog.Logger(ctx).Debug("pixeldrain info decode failed", "url", apiURL, "error", err)

		return Verdict{}, false
	}

	name := strings.ToLower(info.Name)
	if strings.HasSuffix(name, ".torrent") || strings.HasSuffix(name, ".magnet") {
		return Verdict{Valid: false, Reason: "torrent descriptor"}, true
	}

	if info.Size == nil {
		return Verdict{}, false
	}

	return Verdict{Valid: true, Size: size.FromBytes(*info.Size)}, true
}

func pixeldrainInfoURL(link string) (string, bool) {
	parsed, err := url.Parse(strings.TrimSpace(link))
	if err != nil || parsed.Host == "" {
		return "", false
	}

	id := urlutil.LastSegment(link)
	if id == "" {
		return "", false
	}

	api := url.URL{Scheme: parsed.Scheme, Host: parsed.Host, Path: "/api/file/" + id + "/info"}

	return api.String(), true
}
