// Package rejects keeps the side log of entries excluded from the catalog.
package rejects

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"cloudeng.io/logging/ctxlog"

	"catalogcrawler/internal/catalog"
)

// ReasonIgnoredTitle marks a candidate skipped by an ignored-title pattern.
const ReasonIgnoredTitle = "Ignored title pattern"

// Links lists the link sets of an entry removed during validation.
type Links struct {
	Valid    []string `json:"valid_links"`
	Invalid  []string `json:"invalid_links"`
	Original []string `json:"original_links"`
}

// Record is one rejected entry.
type Record struct {
	Title  string            `json:"title"`
	Reason string            `json:"reason"`
	Date   catalog.Timestamp `json:"date"`
	Links  *Links            `json:"links,omitempty"`
}

// Document is the persisted rejects log.
type Document struct {
	Updated catalog.Timestamp `json:"updated"`
	Records []Record          `json:"invalid_games"`
}

// Log accumulates records in memory. It is loaded once and written once.
type Log struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
	doc  Document
}

// Open loads the log at path. A missing or unreadable document starts a new
// log; the previous content is then lost on the next Save.
func Open(ctx context.Context, path string, now func() time.Time) (*Log, error) {
	if now == nil {
		now = time.Now
	}

	log := &Log{path: path, now: now, doc: Document{Updated: catalog.At(now()), Records: []Record{}}}
	if path == "" {
		return log, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return log, nil
	}

	if err != nil {
		return nil, fmt.Errorf("read rejects %q: %w", path, err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return log, nil
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		ctxlog.Logger(ctx).Warn("rejects log unreadable, starting a new one", "path", path, "error", err)

		return log, nil
	}

	if doc.Records == nil {
		doc.Records = []Record{}
	}

	log.doc = doc

	return log, nil
}

// Add appends a record dated now. links may be nil.
func (l *Log) Add(title, reason string, links *Links) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := catalog.At(l.now())
	l.doc.Updated = now
	l.doc.Records = append(l.doc.Records, Record{Title: title, Reason: reason, Date: now, Links: links})
}

// Records returns a copy of every record.
func (l *Log) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]Record(nil), l.doc.Records...)
}

// Save writes the log. It is a no-op for a log opened without a path.
func (l *Log) Save() error {
	if l.path == "" {
		return nil
	}

	l.mu.Lock()
	data, err := catalog.EncodeIndented(l.doc)
	l.mu.Unlock()

	if err != nil {
		return fmt.Errorf("encode rejects: %w", err)
	}

	return catalog.WriteFileAtomic(l.path, data)
}
