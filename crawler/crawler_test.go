package crawler_test

import (
	"context"
	"encoding/json"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"catalogcrawler/crawler"
	"catalogcrawler/internal/catalog"
	"catalogcrawler/internal/events"
	"catalogcrawler/internal/rejects"
)

func baseOptions(t *testing.T, client *http.Client, sink events.Sink) crawler.Options {
	t.Helper()

	dir := t.TempDir()

	return crawler.Options{
		Categories:    []string{categoryRoot},
		CatalogPath:   filepath.Join(dir, "source.json"),
		RejectsPath:   filepath.Join(dir, "invalid_games.json"),
		Concurrency:   4,
		Timeout:       time.Second,
		IgnoredTitles: []string{"FULL UNLOCKED", "CRACKSTATUS"},
		HTTPClient:    client,
		Clock:         &testClock{now: fixtureTime},
		Sink:          sink,
	}
}

func loadRejects(t *testing.T, path string) rejects.Document {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc rejects.Document
	require.NoError(t, json.Unmarshal(data, &doc))

	return doc
}

func TestRunMergesNewerDetailAndValidates(t *testing.T) {
	t.Parallel()

	site := newFakeSite(map[string]string{
		categoryRoot:                                 readFixture(t, "site", "listing.html"),
		categoryRoot + "page/1":                      readFixture(t, "site", "listing.html"),
		"https://site.test/game-x-v1-2-repack/":      readFixture(t, "site", "game_a.html"),
		"https://site.test/game-x-build-99/":         readFixture(t, "site", "game_b.html"),
		"https://pixeldrain.com/api/file/gamexb/info": `{"name":"gamex.iso","size":44560285696}`,
	})

	recorder := &events.Recorder{}
	opts := baseOptions(t, site.client(), recorder)

	summary, err := crawler.Run(context.Background(), opts)
	require.NoError(t, err)

	require.Equal(t, 1, summary.New)
	require.Equal(t, 1, summary.Updated)
	require.Equal(t, 1, summary.Entries)
	require.Equal(t, 1, summary.Pages)
	require.Zero(t, summary.Removed)

	statuses := []catalog.Status{}
	for _, event := range recorder.Events() {
		require.Equal(t, summary.RunID, event.RunID)
		require.Equal(t, categoryRoot, event.Category)
		require.Equal(t, 1, event.Page)
		statuses = append(statuses, event.Status)
	}
	require.Equal(t, []catalog.Status{catalog.StatusNew, catalog.StatusUpdated}, statuses)

	doc, err := catalog.Load(opts.CatalogPath)
	require.NoError(t, err)
	require.Equal(t, catalog.DefaultName, doc.Name)
	require.Len(t, doc.Downloads, 1)

	entry := doc.Downloads[0]
	require.Equal(t, "Game X Build 99", entry.Title)
	require.Equal(t, []string{"https://pixeldrain.com/u/gamexb"}, entry.URIs)
	require.Equal(t, "41.50 GB", entry.FileSize)
	require.True(t, entry.UploadDate.Equal(fixtureTime.Add(-24*time.Hour)))

	// The overwritten link is never validated.
	require.Zero(t, site.requested("https://qiwi.gg/"))
}

func TestRunSkipsLinklessAndIgnoredTitles(t *testing.T) {
	t.Parallel()

	site := newFakeSite(map[string]string{
		categoryRoot:            listingHTML("/lonely/", "/unlocked/", "/nolinks/"),
		categoryRoot + "page/1": listingHTML("/lonely/", "/unlocked/", "/nolinks/"),
		"https://site.test/lonely/":   detailHTML("Lonely Game", "1 day ago", "https://1fichier.com/?only"),
		"https://site.test/unlocked/": detailHTML("Game Z FULL UNLOCKED", "1 day ago", "https://qiwi.gg/file/z"),
		"https://site.test/nolinks/":  detailHTML("Bare Game", "1 day ago"),
	})

	recorder := &events.Recorder{}
	opts := baseOptions(t, site.client(), recorder)
	opts.SkipValidation = true

	summary, err := crawler.Run(context.Background(), opts)
	require.NoError(t, err)

	require.Zero(t, summary.Entries)
	require.Equal(t, 2, recorder.Count(catalog.StatusNoLinks))
	require.Equal(t, 1, recorder.Count(catalog.StatusIgnored))

	doc, err := catalog.Load(opts.CatalogPath)
	require.NoError(t, err)
	require.Empty(t, doc.Downloads)

	rejected := loadRejects(t, opts.RejectsPath)
	require.Len(t, rejected.Records, 1)
	require.Equal(t, "Game Z FULL UNLOCKED", rejected.Records[0].Title)
	require.Equal(t, rejects.ReasonIgnoredTitle, rejected.Records[0].Reason)
}

func TestRunStopsAtItemCap(t *testing.T) {
	t.Parallel()

	secondRoot := "https://site.test/category/racing/"
	site := newFakeSite(map[string]string{
		categoryRoot:            listingHTML("/a/", "/b/", "/c/"),
		categoryRoot + "page/1": listingHTML("/a/", "/b/", "/c/"),
		"https://site.test/a/":  detailHTML("Alpha", "1 day ago", "https://qiwi.gg/file/a"),
		"https://site.test/b/":  detailHTML("Bravo", "1 day ago", "https://qiwi.gg/file/b"),
		"https://site.test/c/":  detailHTML("Charlie", "1 day ago", "https://qiwi.gg/file/c"),
		secondRoot:              listingHTML("/d/"),
	})

	opts := baseOptions(t, site.client(), &events.Recorder{})
	opts.Categories = []string{categoryRoot, secondRoot}
	opts.MaxItems = 2
	opts.SkipValidation = true

	summary, err := crawler.Run(context.Background(), opts)
	require.NoError(t, err)

	require.True(t, summary.CapReached)
	require.Equal(t, 2, summary.New)
	require.Equal(t, 2, summary.Entries)
	require.Zero(t, site.requested("https://site.test/c/"))
	require.Zero(t, site.requested(secondRoot))
}

func TestRunItemCapCountsKnownEntries(t *testing.T) {
	t.Parallel()

	secondRoot := "https://site.test/category/racing/"
	site := newFakeSite(map[string]string{
		categoryRoot:            listingHTML("/a/", "/b/", "/c/"),
		categoryRoot + "page/1": listingHTML("/a/", "/b/", "/c/"),
		"https://site.test/a/":  detailHTML("Alpha", "5 days ago", "https://qiwi.gg/file/a"),
		"https://site.test/b/":  detailHTML("Bravo", "5 days ago", "https://qiwi.gg/file/b"),
		"https://site.test/c/":  detailHTML("Charlie", "5 days ago", "https://qiwi.gg/file/c"),
		secondRoot:              listingHTML("/d/"),
	})

	recorder := &events.Recorder{}
	opts := baseOptions(t, site.client(), recorder)
	opts.Categories = []string{categoryRoot, secondRoot}
	opts.MaxItems = 2
	opts.SkipValidation = true

	recent := catalog.At(fixtureTime.Add(-time.Hour))
	existing := catalog.Document{Name: "Repack Games", Downloads: []catalog.Entry{
		{Title: "Alpha", URIs: []string{"https://qiwi.gg/file/a"}, FileSize: "1 GB", UploadDate: recent},
		{Title: "Bravo", URIs: []string{"https://qiwi.gg/file/b"}, FileSize: "1 GB", UploadDate: recent},
		{Title: "Charlie", URIs: []string{"https://qiwi.gg/file/c"}, FileSize: "1 GB", UploadDate: recent},
	}}
	require.NoError(t, catalog.Save(opts.CatalogPath, existing))

	summary, err := crawler.Run(context.Background(), opts)
	require.NoError(t, err)

	require.True(t, summary.CapReached)
	require.Equal(t, 2, summary.Processed)
	require.Equal(t, 2, summary.Ignored)
	require.Zero(t, summary.New)
	require.Equal(t, 2, recorder.Count(catalog.StatusIgnored))
	require.Zero(t, site.requested("https://site.test/c/"))
	require.Zero(t, site.requested(secondRoot))
}

func TestRunItemCapCountsLinklessRecords(t *testing.T) {
	t.Parallel()

	site := newFakeSite(map[string]string{
		categoryRoot:            listingHTML("/a/", "/b/", "/c/"),
		categoryRoot + "page/1": listingHTML("/a/", "/b/", "/c/"),
		"https://site.test/a/":  detailHTML("Alpha", "1 day ago"),
		"https://site.test/b/":  detailHTML("Bravo", "1 day ago", "https://qiwi.gg/file/b"),
		"https://site.test/c/":  detailHTML("Charlie", "1 day ago", "https://qiwi.gg/file/c"),
	})

	opts := baseOptions(t, site.client(), &events.Recorder{})
	opts.MaxItems = 2
	opts.SkipValidation = true

	summary, err := crawler.Run(context.Background(), opts)
	require.NoError(t, err)

	require.True(t, summary.CapReached)
	require.Equal(t, 1, summary.NoLinks)
	require.Equal(t, 1, summary.New)
	require.Equal(t, 1, summary.Entries)
	require.Zero(t, site.requested("https://site.test/c/"))
}

func TestRunRemovesEntriesWithoutValidLinks(t *testing.T) {
	t.Parallel()

	site := newFakeSite(map[string]string{
		"https://qiwi.gg/file/alive": `<span>Download 7.5 GB</span>`,
	})

	opts := baseOptions(t, site.client(), &events.Recorder{})
	opts.Categories = nil

	existing := catalog.Document{Name: "Repack Games", Downloads: []catalog.Entry{
		{Title: "Old Game", URIs: []string{"https://qiwi.gg/file/gone", "https://pixeldrain.com/u/gone"}, FileSize: "3 GB"},
		{Title: "Alive Game", URIs: []string{"https://qiwi.gg/file/alive"}, FileSize: "Undefined"},
		{Title: "Empty Game", URIs: []string{}, FileSize: "Undefined"},
	}}
	require.NoError(t, catalog.Save(opts.CatalogPath, existing))

	summary, err := crawler.Run(context.Background(), opts)
	require.NoError(t, err)
	require.Equal(t, 2, summary.Removed)

	doc, err := catalog.Load(opts.CatalogPath)
	require.NoError(t, err)
	require.Len(t, doc.Downloads, 1)
	require.Equal(t, "Alive Game", doc.Downloads[0].Title)
	require.Equal(t, "7.5 GB", doc.Downloads[0].FileSize)

	rejected := loadRejects(t, opts.RejectsPath)
	require.Len(t, rejected.Records, 2)

	byTitle := map[string]rejects.Record{}
	for _, record := range rejected.Records {
		byTitle[record.Title] = record
	}

	require.Equal(t, "All links invalid", byTitle["Old Game"].Reason)
	require.NotNil(t, byTitle["Old Game"].Links)
	require.Len(t, byTitle["Old Game"].Links.Original, 2)
	require.Len(t, byTitle["Old Game"].Links.Invalid, 2)
	require.Equal(t, "No links available", byTitle["Empty Game"].Reason)
	require.Nil(t, byTitle["Empty Game"].Links)
}

func TestRunInterruptedWritesNothing(t *testing.T) {
	t.Parallel()

	site := newFakeSite(map[string]string{
		categoryRoot:            listingHTML("/a/"),
		categoryRoot + "page/1": listingHTML("/a/"),
		"https://site.test/a/":  detailHTML("Alpha", "1 day ago", "https://qiwi.gg/file/a"),
	})

	opts := baseOptions(t, site.client(), &events.Recorder{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := crawler.Run(ctx, opts)
	require.ErrorIs(t, err, context.Canceled)

	_, statErr := os.Stat(opts.CatalogPath)
	require.ErrorIs(t, statErr, fs.ErrNotExist)

	_, statErr = os.Stat(opts.RejectsPath)
	require.ErrorIs(t, statErr, fs.ErrNotExist)
}

func TestRunCheckpointSurvivesInterruption(t *testing.T) {
	t.Parallel()

	secondRoot := "https://site.test/category/racing/"
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pages := map[string]string{
		categoryRoot:            listingHTML("/a/"),
		categoryRoot + "page/1": listingHTML("/a/"),
		"https://site.test/a/":  detailHTML("Alpha", "1 day ago", "https://qiwi.gg/file/a"),
	}

	client := &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if req.URL.String() == secondRoot {
			cancel()

			return nil, context.Canceled
		}

		body, ok := pages[req.URL.String()]
		if !ok {
			return responseWithBody(http.StatusNotFound, ""), nil
		}

		return responseWithBody(http.StatusOK, body), nil
	})}

	opts := baseOptions(t, client, &events.Recorder{})
	opts.Categories = []string{categoryRoot, secondRoot}
	opts.Checkpoint = true

	_, err := crawler.Run(ctx, opts)
	require.ErrorIs(t, err, context.Canceled)

	doc, err := catalog.Load(opts.CatalogPath)
	require.NoError(t, err)
	require.Len(t, doc.Downloads, 1)
	require.Equal(t, "Alpha", doc.Downloads[0].Title)
}

func TestRunSharesConcurrencyLimit(t *testing.T) {
	t.Parallel()

	var (
		inFlight int32
		peak     int32
	)

	pages := map[string]string{
		categoryRoot:            listingHTML("/a/", "/b/", "/c/", "/d/", "/e/"),
		categoryRoot + "page/1": listingHTML("/a/", "/b/", "/c/", "/d/", "/e/"),
	}

	client := &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		current := atomic.AddInt32(&inFlight, 1)
		defer atomic.AddInt32(&inFlight, -1)

		for {
			old := atomic.LoadInt32(&peak)
			if current <= old || atomic.CompareAndSwapInt32(&peak, old, current) {
				break
			}
		}

		time.Sleep(5 * time.Millisecond)

		if body, ok := pages[req.URL.String()]; ok {
			return responseWithBody(http.StatusOK, body), nil
		}

		return responseWithBody(http.StatusOK, detailHTML(req.URL.Path, "1 day ago", "https://qiwi.gg/file"+req.URL.Path)), nil
	})}

	opts := baseOptions(t, client, &events.Recorder{})
	opts.Concurrency = 2

	summary, err := crawler.Run(context.Background(), opts)
	require.NoError(t, err)
	require.Equal(t, 5, summary.New)
	require.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestNewRejectsBadOptions(t *testing.T) {
	t.Parallel()

	site := newFakeSite(nil)

	_, err := crawler.New(context.Background(), crawler.Options{})
	require.Error(t, err)

	opts := baseOptions(t, site.client(), nil)
	opts.Categories = []string{"/category/relative/"}
	_, err = crawler.New(context.Background(), opts)
	require.Error(t, err)

	opts = baseOptions(t, site.client(), nil)
	require.NoError(t, os.WriteFile(opts.CatalogPath, []byte("{not json"), 0o600))
	_, err = crawler.New(context.Background(), opts)
	require.Error(t, err)

	data, readErr := os.ReadFile(opts.CatalogPath)
	require.NoError(t, readErr)
	require.Equal(t, "{not json", string(data))
}
