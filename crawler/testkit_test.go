package crawler_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const categoryRoot = "https://site.test/category/action/"

var fixtureTime = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (fn roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return fn(req) }

func readFixture(t *testing.T, parts ...string) string {
	t.Helper()

	path := filepath.Join(append([]string{"..", "testdata"}, parts...)...)
	b, err := os.ReadFile(path)
	require.NoError(t, err, "failed to read fixture: %s", path)

	return string(b)
}

func responseWithBody(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{},
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
	}
}

// fakeSite serves fixed bodies keyed by absolute URL and records requests.
type fakeSite struct {
	mu       sync.Mutex
	pages    map[string]string
	requests []string
}

func newFakeSite(pages map[string]string) *fakeSite {
	return &fakeSite{pages: pages}
}

func (s *fakeSite) client() *http.Client {
	return &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		s.mu.Lock()
		s.requests = append(s.requests, req.URL.String())
		body, ok := s.pages[req.URL.String()]
		s.mu.Unlock()

		if !ok {
			return responseWithBody(http.StatusNotFound, "not found"), nil
		}

		return responseWithBody(http.StatusOK, body), nil
	})}
}

func (s *fakeSite) requested(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, request := range s.requests {
		if strings.HasPrefix(request, prefix) {
			n++
		}
	}

	return n
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Sleep(ctx context.Context, duration time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func listingHTML(paths ...string) string {
	var b strings.Builder
	b.WriteString(`<html><body><div class="articles-content"><ul>`)
	for _, path := range paths {
		fmt.Fprintf(&b, `<li><a href="%s">item</a></li>`, path)
	}
	b.WriteString(`</ul></div></body></html>`)

	return b.String()
}

func detailHTML(title, date string, links ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<html><body><h1 class="entry-title">%s</h1>`, title)
	fmt.Fprintf(&b, `<div class="time-article updated"><a>%s</a></div>`, date)
	for _, link := range links {
		fmt.Fprintf(&b, `<a href="%s">download</a>`, link)
	}
	b.WriteString(`</body></html>`)

	return b.String()
}
