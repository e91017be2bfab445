package hosts

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	qiwiDownloadSpan = regexp.MustCompile(`Download \d+`)
	qiwiSize         = regexp.MustCompile(`(\d+\.?\d*)\s*(GB|MB|KB)`)
)

type qiwi struct {
	baseHost
}

// PageSize reads the size printed in the "Download <size>" button label.
func (qiwi) PageSize(doc *goquery.Document) (string, bool) {
	var found string

	doc.Find("span").EachWithBreak(func(_ int, selection *goquery.Selection) bool {
		text := strings.TrimSpace(selection.Text())
		if !qiwiDownloadSpan.MatchString(text) {
			return true
		}

		match := qiwiSize.FindStringSubmatch(text)
		if match == nil {
			return true
		}

		found = match[1] + " " + match[2]

		return false
	})

	return found, found != ""
}
