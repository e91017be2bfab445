package parser

import (
	"bytes"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"catalogcrawler/internal/catalog"
	"catalogcrawler/internal/hosts"
	"catalogcrawler/internal/reldate"
	"catalogcrawler/internal/urlutil"
)

// Selectors locate the structural markers of listing and detail pages.
type Selectors struct {
	ListingItem string `yaml:"listing_item"`
	LastPage    string `yaml:"last_page"`
	Title       string `yaml:"title"`
	Date        string `yaml:"date"`
}

// DefaultSelectors matches the repack-games WordPress theme.
func DefaultSelectors() Selectors {
	return Selectors{
		ListingItem: "div.articles-content li",
		LastPage:    "a.last",
		Title:       "h1.entry-title",
		Date:        ".time-article.updated a",
	}
}

var pageNumber = regexp.MustCompile(`page/(\d+)`)

// Parser extracts listing links, pagination and detail records from HTML.
type Parser struct {
	selectors Selectors
	hosts     *hosts.Registry
}

// New creates a Parser. Empty selectors fall back to the defaults.
func New(selectors Selectors, registry *hosts.Registry) *Parser {
	defaults := DefaultSelectors()
	if selectors.ListingItem == "" {
		selectors.ListingItem = defaults.ListingItem
	}

	if selectors.LastPage == "" {
		selectors.LastPage = defaults.LastPage
	}

	if selectors.Title == "" {
		selectors.Title = defaults.Title
	}

	if selectors.Date == "" {
		selectors.Date = defaults.Date
	}

	return &Parser{selectors: selectors, hosts: registry}
}

// LastPage returns the page number targeted by the pagination "last" control,
// or 1 when there is none.
func (p *Parser) LastPage(body []byte) int {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return 1
	}

	last := 1
	doc.Find(p.selectors.LastPage).EachWithBreak(func(_ int, selection *goquery.Selection) bool {
		href, ok := selection.Attr("href")
		if !ok {
			return true
		}

		match := pageNumber.FindStringSubmatch(href)
		if match == nil {
			return true
		}

		n, err := strconv.Atoi(match[1])
		if err != nil || n < 1 {
			return true
		}

		last = n

		return false
	})

	return last
}

// DetailLinks returns the anchor of every listing item in document order,
// resolved against pageURL. Missing markers yield an empty slice.
func (p *Parser) DetailLinks(body []byte, pageURL string) []string {
	links := []string{}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return links
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		base = nil
	}

	doc.Find(p.selectors.ListingItem).Each(func(_ int, item *goquery.Selection) {
		href, ok := item.Find("a[href]").First().Attr("href")
		if !ok {
			return
		}

		absolute, ok := urlutil.Resolve(base, href)
		if !ok {
			return
		}

		links = append(links, absolute)
	})

	return links
}

// Detail extracts a candidate record from a detail page. Missing elements
// become sentinels: unknown title, undefined size, absent date, no links.
func (p *Parser) Detail(body []byte, now time.Time) catalog.Candidate {
	candidate := catalog.Candidate{
		Title:    catalog.UnknownTitle,
		FileSize: catalog.UndefinedSize,
		URIs:     []string{},
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		candidate.FileSize = extractSize(string(body))

		return candidate
	}

	candidate.FileSize = extractSize(collapseSpaces(doc.Text()))

	if title, ok := firstText(doc, p.selectors.Title); ok {
		candidate.Title = title
	}

	if phrase, ok := firstText(doc, p.selectors.Date); ok {
		if at, ok := reldate.Resolve(phrase, now); ok {
			candidate.UploadDate = catalog.At(at)
		}
	}

	candidate.URIs = p.downloadLinks(doc)

	return candidate
}

func (p *Parser) downloadLinks(doc *goquery.Document) []string {
	hrefs := []string{}
	doc.Find("a[href]").Each(func(_ int, selection *goquery.Selection) {
		href, _ := selection.Attr("href")
		if href = strings.TrimSpace(href); href != "" {
			hrefs = append(hrefs, href)
		}
	})

	links := p.hosts.Filter(hrefs)
	if p.hosts.OnlyLowTrust(links) {
		return []string{}
	}

	return links
}
