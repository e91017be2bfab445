// Package hosts describes the file hosts whose links are extracted and validated.
//
// Each recognized host is a Host value; variants differ in how they probe a
// link (metadata API, HEAD, landing page, intermediate page) and how they
// recover a file size.
package hosts

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"catalogcrawler/internal/fetcher"
)

// Kind selects the Host implementation for a configured host.
type Kind string

const (
	KindGeneric    Kind = "generic"
	KindPixeldrain Kind = "pixeldrain"
	KindQiwi       Kind = "qiwi"
	KindDirect     Kind = "direct"
	KindRedirect   Kind = "redirect"
)

// Spec is the configuration of one recognized host.
type Spec struct {
	Name     string `yaml:"name"`
	Match    string `yaml:"match"`
	Kind     Kind   `yaml:"kind"`
	LowTrust bool   `yaml:"low_trust"`
}

// Verdict is the terminal state of one link probe.
type Verdict struct {
	Valid  bool
	Size   string
	Reason string
}

// Client is the subset of the fetcher used by host probes.
type Client interface {
	Get(ctx context.Context, rawURL string) ([]byte, bool)
	Head(ctx context.Context, rawURL string) (fetcher.Result, bool)
}

// Host is the per-host capability used by extraction and validation.
type Host interface {
	Name() string
	Matches(link string) bool
	LowTrust() bool
	// Probe checks link through a host-specific channel. handled is false
	// when the caller should fall back to fetching the landing page.
	Probe(ctx context.Context, client Client, link string) (verdict Verdict, handled bool)
	// Dead reports whether a landing page announces the file is gone.
	Dead(body []byte, signatures []string) (string, bool)
	// PageSize recovers a displayed size from a landing page.
	PageSize(doc *goquery.Document) (string, bool)
}

// Default returns the built-in recognized hosts.
func Default() []Spec {
	return []Spec{
		{Name: "1fichier", Match: "1fichier.com", Kind: KindGeneric, LowTrust: true},
		{Name: "qiwi", Match: "qiwi.gg", Kind: KindQiwi},
		{Name: "pixeldrain", Match: "pixeldrain.com", Kind: KindPixeldrain},
	}
}

// DefaultSignatures returns the built-in dead-link phrases.
func DefaultSignatures() []string {
	return []string{
		"file could not be found",
		"unavailable for legal reasons",
		"unavailable",
		"qbittorrent",
		"torrent",
		"magnet:",
		".torrent",
	}
}

// New builds the Host for spec.
func New(spec Spec) (Host, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("host %q: missing name", spec.Match)
	}

	base := baseHost{name: spec.Name, match: strings.ToLower(spec.Match), lowTrust: spec.LowTrust}

	switch spec.Kind {
	case KindGeneric, "":
		if base.match == "" {
			return nil, fmt.Errorf("host %q: missing match", spec.Name)
		}

		return base, nil
	case KindPixeldrain:
		if base.match == "" {
			base.match = "pixeldrain.com"
		}

		return pixeldrain{baseHost: base}, nil
	case KindQiwi:
		if base.match == "" {
			base.match = "qiwi.gg"
		}

		return qiwi{baseHost: base}, nil
	case KindDirect:
		return direct{baseHost: base}, nil
	case KindRedirect:
		if base.match == "" {
			return nil, fmt.Errorf("host %q: missing match", spec.Name)
		}

		return redirect{baseHost: base}, nil
	default:
		return nil, fmt.Errorf("host %q: unknown kind %q", spec.Name, spec.Kind)
	}
}

// Unrecognized returns the host used for links no registered host matches.
// It probes by direct fetch and signature scan only.
func Unrecognized() Host {
	return baseHost{name: "unrecognized"}
}

type baseHost struct {
	name     string
	match    string
	lowTrust bool
}

func (h baseHost) Name() string { return h.name }

func (h baseHost) LowTrust() bool { return h.lowTrust }

func (h baseHost) Matches(link string) bool {
	return h.match != "" && strings.Contains(strings.ToLower(link), h.match)
}

func (baseHost) Probe(context.Context, Client, string) (Verdict, bool) {
	return Verdict{}, false
}

func (baseHost) Dead(body []byte, signatures []string) (string, bool) {
	lower := bytes.ToLower(body)
	for _, signature := range signatures {
		if signature == "" {
			continue
		}

		if bytes.Contains(lower, []byte(strings.ToLower(signature))) {
			return signature, true
		}
	}

	return "", false
}

func (baseHost) PageSize(*goquery.Document) (string, bool) {
	return "", false
}
