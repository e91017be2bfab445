package hosts

import (
	"bytes"
	"context"
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"catalogcrawler/internal/urlutil"
)

// redirect matches intermediate download pages (datanodes.to/download and
// the like) that only link to the real archive. The page is fetched and each
// archive link on it is sized with a HEAD request; the first that answers
// decides the verdict.
type redirect struct {
	baseHost
}

func (redirect) Probe(ctx context.Context, client Client, link string) (Verdict, bool) {
	body, ok := client.Get(ctx, link)
	if !ok {
		return Verdict{Valid: false, Reason: "unreachable"}, true
	}

	archives := archiveLinks(body, link)
	if len(archives) == 0 {
		return Verdict{Valid: false, Reason: "no archive link on intermediate page"}, true
	}

	for _, archive := range archives {
		if verdict, _ := (direct{}).Probe(ctx, client, archive); verdict.Valid {
			return verdict, true
		}
	}

	return Verdict{Valid: false, Reason: "archive links unreachable"}, true
}

// archiveLinks returns the distinct archive URLs linked from an
// intermediate page, resolved against its URL.
func archiveLinks(body []byte, pageURL string) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	var (
		links   []string
		seen    = map[string]bool{}
		archive = direct{}
	)

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")

		resolved, ok := urlutil.Resolve(base, href)
		if !ok || seen[resolved] || !archive.Matches(resolved) {
			return
		}

		seen[resolved] = true
		links = append(links, resolved)
	})

	return links
}
