package crawler

import (
	"net/http"
	"time"

	"catalogcrawler/internal/events"
	"catalogcrawler/internal/hosts"
	"catalogcrawler/internal/limiter"
	"catalogcrawler/internal/parser"
)

const (
	DefaultConcurrency = 100
	DefaultTimeout     = 30 * time.Second
)

// Options configures a crawl run.
// MaxItems caps the number of processed detail records (NEW, UPDATED,
// IGNORED or NO_LINKS); zero means no cap.
// Concurrency is the number of global fetch permits shared by listing,
// detail and validation requests. Delay additionally spaces admissions.
type Options struct {
	Name           string
	Categories     []string
	CatalogPath    string
	RejectsPath    string
	MaxItems       int
	Concurrency    int
	Timeout        time.Duration
	Delay          time.Duration
	UserAgent      string
	Headers        map[string]string
	Hosts          []hosts.Spec
	Signatures     []string
	IgnoredTitles  []string
	Selectors      parser.Selectors
	SkipValidation bool
	Checkpoint     bool
	HTTPClient     *http.Client
	Clock          limiter.Timer
	Sink           events.Sink
	RunID          string
}

// Summary reports what a run did.
type Summary struct {
	RunID      string `json:"run_id"`
	Categories int    `json:"categories"`
	Pages      int    `json:"pages"`
	Processed  int    `json:"processed"`
	New        int    `json:"new"`
	Updated    int    `json:"updated"`
	Ignored    int    `json:"ignored"`
	NoLinks    int    `json:"no_links"`
	Removed    int    `json:"removed"`
	Entries    int    `json:"entries"`
	CapReached bool   `json:"cap_reached"`
}
