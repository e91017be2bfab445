package crawler

import (
	"context"

	"cloudeng.io/logging/ctxlog"
	"cloudeng.io/sync/errgroup"

	"catalogcrawler/internal/catalog"
	"catalogcrawler/internal/events"
	"catalogcrawler/internal/rejects"
	"catalogcrawler/internal/titles"
	"catalogcrawler/internal/urlutil"
)

// crawlCategory walks pages 1..last of one category. Pages are processed
// sequentially; the details of one page are fetched concurrently.
func (c *Crawler) crawlCategory(ctx context.Context, root string) error {
	logger := ctxlog.Logger(ctx).With("category", root)

	last := 1
	if body, ok := c.fetch.Get(ctx, root); ok {
		last = c.parser.LastPage(body)
	} else if err := ctx.Err(); err != nil {
		return err
	}

	logger.Info("category discovered", "pages", last)

	c.mu.Lock()
	c.summary.Categories++
	c.mu.Unlock()

	for page := 1; page <= last; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if c.capReached() {
			logger.Info("item cap reached, stopping discovery", "page", page)

			return nil
		}

		if err := c.crawlPage(ctx, root, page); err != nil {
			return err
		}
	}

	return nil
}

func (c *Crawler) crawlPage(ctx context.Context, root string, page int) error {
	pageURL := urlutil.PageURL(root, page)

	body, ok := c.fetch.Get(ctx, pageURL)
	if !ok {
		ctxlog.Logger(ctx).Info("listing page skipped", "category", root, "page", page, "url", pageURL)

		return ctx.Err()
	}

	c.mu.Lock()
	c.summary.Pages++
	c.mu.Unlock()

	links := c.parser.DetailLinks(body, pageURL)
	if remaining := c.remaining(); remaining >= 0 && len(links) > remaining {
		links = links[:remaining]
	}

	candidates, err := c.details(ctx, links)
	if err != nil {
		return err
	}

	c.merge(ctx, root, page, candidates)

	return nil
}

// details fetches and extracts every detail page concurrently. The result
// keeps listing order; pages that could not be fetched are left out.
func (c *Crawler) details(ctx context.Context, links []string) ([]catalog.Candidate, error) {
	slots := make([]*catalog.Candidate, len(links))

	var group errgroup.T
	for i, link := range links {
		group.Go(func() error {
			body, ok := c.fetch.Get(ctx, link)
			if !ok {
				return nil
			}

			candidate := c.parser.Detail(body, c.clock.Now())
			candidate.SourceURL = link
			slots[i] = &candidate

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	candidates := make([]catalog.Candidate, 0, len(slots))
	for _, slot := range slots {
		if slot != nil {
			candidates = append(candidates, *slot)
		}
	}

	return candidates, nil
}

// merge applies one page's candidates as a single batch. Candidates without
// links or with an ignored title never reach the store. Every record that
// yields a status is charged against the item budget.
func (c *Crawler) merge(ctx context.Context, category string, page int, candidates []catalog.Candidate) {
	if remaining := c.remaining(); remaining >= 0 && len(candidates) > remaining {
		candidates = candidates[:remaining]
	}

	mergeable := make([]catalog.Candidate, 0, len(candidates))

	for _, candidate := range candidates {
		if len(candidate.URIs) == 0 {
			c.processed.Add(1)
			c.emit(ctx, category, page, candidate, catalog.StatusNoLinks, "")

			continue
		}

		if pattern, ok := titles.Matches(candidate.Title, c.opts.IgnoredTitles); ok {
			c.processed.Add(1)
			c.rejects.Add(candidate.Title, rejects.ReasonIgnoredTitle, nil)
			c.emit(ctx, category, page, candidate, catalog.StatusIgnored, "ignored title pattern "+pattern)

			continue
		}

		mergeable = append(mergeable, candidate)
	}

	type outcome struct {
		candidate catalog.Candidate
		status    catalog.Status
	}

	outcomes := make([]outcome, 0, len(mergeable))
	c.store.MergeBatch(mergeable, func(candidate catalog.Candidate, status catalog.Status) bool {
		c.processed.Add(1)
		outcomes = append(outcomes, outcome{candidate: candidate, status: status})

		return !c.capReached()
	})

	// Events are emitted outside the store lock.
	for _, o := range outcomes {
		c.emit(ctx, category, page, o.candidate, o.status, "")
	}
}

func (c *Crawler) emit(ctx context.Context, category string, page int, candidate catalog.Candidate, status catalog.Status, reason string) {
	c.mu.Lock()
	c.summary.Processed++
	switch status {
	case catalog.StatusNew:
		c.summary.New++
	case catalog.StatusUpdated:
		c.summary.Updated++
	case catalog.StatusIgnored:
		c.summary.Ignored++
	case catalog.StatusNoLinks:
		c.summary.NoLinks++
	}
	processed := c.summary.Processed
	c.mu.Unlock()

	c.sink.Emit(ctx, events.Event{
		RunID:     c.runID,
		Status:    status,
		Category:  category,
		Page:      page,
		Title:     candidate.Title,
		SourceURL: candidate.SourceURL,
		Reason:    reason,
		Processed: processed,
		At:        c.clock.Now(),
	})
}
