package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"

	cerrors "cloudeng.io/errors"
	"cloudeng.io/logging/ctxlog"

	"catalogcrawler/internal/catalog"
	"catalogcrawler/internal/events"
	"catalogcrawler/internal/fetcher"
	"catalogcrawler/internal/hosts"
	"catalogcrawler/internal/limiter"
	"catalogcrawler/internal/parser"
	"catalogcrawler/internal/rejects"
	"catalogcrawler/internal/validator"
)

var errHTTPClientRequired = errors.New("http client is required")

// Crawler owns the state of one run: the catalog store, the rejects log,
// the shared limiter and the processed-item budget.
type Crawler struct {
	opts      Options
	runID     string
	clock     limiter.Timer
	store     *catalog.Store
	rejects   *rejects.Log
	registry  *hosts.Registry
	fetch     *fetcher.Fetcher
	parser    *parser.Parser
	validator *validator.Validator
	sink      events.Sink

	processed atomic.Int64

	mu      sync.Mutex
	summary Summary
}

// New validates opts, loads the persisted catalog and rejects log, and
// prepares the run. Nothing is fetched yet.
func New(ctx context.Context, opts Options) (*Crawler, error) {
	opts = withDefaults(opts)

	if opts.HTTPClient == nil {
		return nil, errHTTPClientRequired
	}

	for _, category := range opts.Categories {
		parsed, err := url.Parse(category)
		if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			return nil, fmt.Errorf("invalid category url %q", category)
		}
	}

	registry, err := hosts.NewRegistry(opts.Hosts)
	if err != nil {
		return nil, err
	}

	doc, err := catalog.Load(opts.CatalogPath)
	if err != nil {
		return nil, err
	}

	if opts.Name != "" {
		doc.Name = opts.Name
	}

	rejectsLog, err := rejects.Open(ctx, opts.RejectsPath, opts.Clock.Now)
	if err != nil {
		return nil, err
	}

	fetch := fetcher.New(fetcher.Config{
		Client:    opts.HTTPClient,
		Limiter:   limiter.New(opts.Concurrency, opts.Delay, opts.Clock),
		Timeout:   opts.Timeout,
		Headers:   opts.Headers,
		UserAgent: opts.UserAgent,
	})

	sink := opts.Sink
	if sink == nil {
		sink = events.Log{}
	}

	c := &Crawler{
		opts:     opts,
		runID:    opts.RunID,
		clock:    opts.Clock,
		store:    catalog.NewStore(doc),
		rejects:  rejectsLog,
		registry: registry,
		fetch:    fetch,
		parser:   parser.New(opts.Selectors, registry),
		validator: validator.New(validator.Config{
			Client:     fetch,
			Registry:   registry,
			Signatures: opts.Signatures,
		}),
		sink: sink,
	}
	c.summary.RunID = c.runID

	return c, nil
}

func withDefaults(opts Options) Options {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}

	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	if opts.Clock == nil {
		opts.Clock = limiter.NewClock()
	}

	if len(opts.Hosts) == 0 {
		opts.Hosts = hosts.Default()
	}

	if len(opts.Signatures) == 0 {
		opts.Signatures = hosts.DefaultSignatures()
	}

	if opts.RunID == "" {
		opts.RunID = events.NewRunID()
	}

	if opts.MaxItems < 0 {
		opts.MaxItems = 0
	}

	return opts
}

// Run crawls every category, validates the catalog and persists it.
func Run(ctx context.Context, opts Options) (Summary, error) {
	c, err := New(ctx, opts)
	if err != nil {
		return Summary{}, err
	}

	return c.Run(ctx)
}

// Store returns the live catalog store.
func (c *Crawler) Store() *catalog.Store {
	return c.store
}

// RunID identifies this run in events and the SQLite mirror.
func (c *Crawler) RunID() string {
	return c.runID
}

// Run executes the crawl. When ctx is canceled nothing is written and
// ctx.Err() is returned; whatever was merged stays in memory only.
func (c *Crawler) Run(ctx context.Context) (Summary, error) {
	ctx = ctxlog.WithAttributes(ctx, "run_id", c.runID)
	logger := ctxlog.Logger(ctx)

	logger.Info("crawl started", "categories", len(c.opts.Categories), "entries", c.store.Len(), "max_items", c.opts.MaxItems)

	for _, category := range c.opts.Categories {
		if c.capReached() {
			logger.Info("item cap reached, skipping remaining categories", "max_items", c.opts.MaxItems)

			break
		}

		if err := c.crawlCategory(ctx, category); err != nil {
			return c.Summary(), err
		}

		if c.opts.Checkpoint {
			if err := c.saveCatalog(); err != nil {
				return c.Summary(), err
			}

			logger.Info("checkpoint saved", "category", category, "entries", c.store.Len())
		}
	}

	if err := ctx.Err(); err != nil {
		return c.Summary(), err
	}

	if !c.opts.SkipValidation {
		if err := c.validate(ctx); err != nil {
			return c.Summary(), err
		}
	}

	if err := c.persist(); err != nil {
		return c.Summary(), err
	}

	summary := c.Summary()
	logger.Info("crawl finished",
		"processed", summary.Processed,
		"new", summary.New,
		"updated", summary.Updated,
		"removed", summary.Removed,
		"entries", summary.Entries,
	)

	return summary, nil
}

// Summary returns the counters collected so far.
func (c *Crawler) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	summary := c.summary
	summary.Entries = c.store.Len()
	summary.CapReached = c.capReached()

	return summary
}

func (c *Crawler) capReached() bool {
	return c.opts.MaxItems > 0 && c.processed.Load() >= int64(c.opts.MaxItems)
}

// remaining returns how many more detail records the budget allows, or -1
// when there is no cap.
func (c *Crawler) remaining() int {
	if c.opts.MaxItems == 0 {
		return -1
	}

	return max(c.opts.MaxItems-int(c.processed.Load()), 0)
}

func (c *Crawler) validate(ctx context.Context) error {
	result, err := c.validator.Entries(ctx, c.store.Entries())
	if err != nil {
		return err
	}

	c.store.Replace(result.Kept)

	for _, removal := range result.Removed {
		var links *rejects.Links
		if removal.Reason != validator.ReasonNoLinks {
			links = &rejects.Links{
				Valid:    nonNil(removal.Valid),
				Invalid:  nonNil(removal.Invalid),
				Original: nonNil(removal.Entry.URIs),
			}
		}

		c.rejects.Add(removal.Entry.Title, removal.Reason, links)
	}

	c.mu.Lock()
	c.summary.Removed += len(result.Removed)
	c.mu.Unlock()

	ctxlog.Logger(ctx).Info("validation finished", "kept", len(result.Kept), "removed", len(result.Removed))

	return nil
}

func (c *Crawler) saveCatalog() error {
	if c.opts.CatalogPath == "" {
		return nil
	}

	return catalog.Save(c.opts.CatalogPath, c.store.Document())
}

func (c *Crawler) persist() error {
	var errs cerrors.M

	errs.Append(c.saveCatalog())
	errs.Append(c.rejects.Save())

	return errs.Err()
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}

	return values
}
