// Package validator re-checks the download links of catalog entries.
//
// Every link ends in one of two terminal states: valid, optionally with a
// recovered size, or invalid. Unverifiable links are invalid. Entries keep
// only their valid links and are dropped when nothing usable remains.
package validator

import (
	"bytes"
	"context"

	"cloudeng.io/logging/ctxlog"
	"cloudeng.io/sync/errgroup"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/singleflight"

	"catalogcrawler/internal/cache"
	"catalogcrawler/internal/catalog"
	"catalogcrawler/internal/hosts"
	"catalogcrawler/internal/size"
)

// Removal reasons.
const (
	ReasonNoLinks      = "No links available"
	ReasonOnlyLowTrust = "Only low-trust links"
	ReasonAllInvalid   = "All links invalid"
)

// Config configures a Validator.
type Config struct {
	Client     hosts.Client
	Registry   *hosts.Registry
	Signatures []string
	// Verdicts memoizes results across entries sharing a link.
	Verdicts *cache.Cache[hosts.Verdict]
}

// Removal describes an entry dropped during validation.
type Removal struct {
	Entry   catalog.Entry
	Reason  string
	Valid   []string
	Invalid []string
}

// Result is the outcome of validating a batch of entries.
type Result struct {
	Kept    []catalog.Entry
	Removed []Removal
}

// Validator classifies links and aggregates verdicts per entry.
type Validator struct {
	client     hosts.Client
	registry   *hosts.Registry
	signatures []string
	verdicts   *cache.Cache[hosts.Verdict]
	inflight   singleflight.Group
}

// New creates a Validator.
func New(cfg Config) *Validator {
	verdicts := cfg.Verdicts
	if verdicts == nil {
		verdicts = cache.New[hosts.Verdict](cache.DefaultSize)
	}

	return &Validator{
		client:     cfg.Client,
		registry:   cfg.Registry,
		signatures: cfg.Signatures,
		verdicts:   verdicts,
	}
}

// Link returns the verdict for one link. Concurrent calls for the same link
// share a single probe.
func (v *Validator) Link(ctx context.Context, link string) hosts.Verdict {
	if verdict, ok := v.verdicts.Get(link); ok {
		return verdict
	}

	value, _, _ := v.inflight.Do(link, func() (any, error) {
		verdict := v.probe(ctx, link)
		if ctx.Err() == nil {
			v.verdicts.Set(link, verdict)
		}

		return verdict, nil
	})

	return value.(hosts.Verdict)
}

func (v *Validator) probe(ctx context.Context, link string) hosts.Verdict {
	host, ok := v.registry.Lookup(link)
	if !ok {
		host = hosts.Unrecognized()
	}

	logger := ctxlog.Logger(ctx).With("host", host.Name(), "link", link)

	if verdict, handled := host.Probe(ctx, v.client, link); handled {
		logger.Debug("probed", "valid", verdict.Valid, "size", verdict.Size, "reason", verdict.Reason)

		return verdict
	}

	body, ok := v.client.Get(ctx, link)
	if !ok {
		logger.Debug("invalid", "reason", "unreachable")

		return hosts.Verdict{Reason: "unreachable"}
	}

	if signature, dead := host.Dead(body, v.signatures); dead {
		logger.Debug("invalid", "reason", "dead link", "signature", signature)

		return hosts.Verdict{Reason: "dead link: " + signature}
	}

	verdict := hosts.Verdict{Valid: true}

	if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body)); err == nil {
		if found, ok := host.PageSize(doc); ok {
			verdict.Size = found
		}
	}

	logger.Debug("valid", "size", verdict.Size)

	return verdict
}

// Entries validates every link of every entry concurrently. The shared
// limiter behind the client bounds the actual fetches. When ctx is canceled
// the partial result is discarded and ctx.Err() is returned.
func (v *Validator) Entries(ctx context.Context, entries []catalog.Entry) (Result, error) {
	verdicts := make([][]hosts.Verdict, len(entries))

	var group errgroup.T
	for i, entry := range entries {
		verdicts[i] = make([]hosts.Verdict, len(entry.URIs))
		for j, link := range entry.URIs {
			group.Go(func() error {
				verdicts[i][j] = v.Link(ctx, link)

				return nil
			})
		}
	}

	if err := group.Wait(); err != nil {
		return Result{}, err
	}

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	result := Result{Kept: make([]catalog.Entry, 0, len(entries))}
	for i, entry := range entries {
		kept, removal, ok := v.aggregate(ctx, entry, verdicts[i])
		if !ok {
			result.Removed = append(result.Removed, removal)

			continue
		}

		result.Kept = append(result.Kept, kept)
	}

	return result, nil
}

func (v *Validator) aggregate(ctx context.Context, entry catalog.Entry, verdicts []hosts.Verdict) (catalog.Entry, Removal, bool) {
	logger := ctxlog.Logger(ctx).With("title", entry.Title)

	if len(entry.URIs) == 0 {
		logger.Info("removed", "reason", ReasonNoLinks)

		return catalog.Entry{}, Removal{Entry: entry, Reason: ReasonNoLinks}, false
	}

	valid := []string{}
	invalid := []string{}
	sizes := []string{}

	for j, link := range entry.URIs {
		if !verdicts[j].Valid {
			invalid = append(invalid, link)

			continue
		}

		valid = append(valid, link)
		if verdicts[j].Size != "" {
			sizes = append(sizes, verdicts[j].Size)
		}
	}

	reason := ""
	switch {
	case len(valid) == 0:
		reason = ReasonAllInvalid
	case v.registry.OnlyLowTrust(valid):
		reason = ReasonOnlyLowTrust
	}

	if reason != "" {
		logger.Info("removed", "reason", reason, "valid", len(valid), "invalid", len(invalid))

		return catalog.Entry{}, Removal{Entry: entry, Reason: reason, Valid: valid, Invalid: invalid}, false
	}

	entry.URIs = valid
	if largest, ok := size.Largest(sizes); ok {
		if largest != entry.FileSize {
			logger.Info("size updated", "size", largest)
		}

		entry.FileSize = largest
	}

	return entry, Removal{}, true
}
