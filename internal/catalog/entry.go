// Package catalog holds the downloadable-content catalog and its merge rules.
package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"catalogcrawler/internal/size"
	"catalogcrawler/internal/titles"
)

const (
	// DefaultName is the document name used when no catalog exists yet.
	DefaultName   = "Repack Games"
	UnknownTitle  = titles.Unknown
	UndefinedSize = size.Undefined
)

// timestampLayouts are accepted when reading persisted catalogs; the naive
// layout covers files written without a zone offset and is read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	time.DateTime,
	time.DateOnly,
}

// Timestamp is an optional instant. The zero value means absent and is
// serialized as JSON null.
type Timestamp struct {
	time.Time
}

// At wraps t as a present Timestamp.
func At(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// Present reports whether the timestamp is set.
func (t Timestamp) Present() bool {
	return !t.IsZero()
}

// Newer reports whether t is strictly more recent than other. A present
// timestamp is newer than an absent one; an absent one is never newer.
func (t Timestamp) Newer(other Timestamp) bool {
	if !t.Present() {
		return false
	}

	if !other.Present() {
		return true
	}

	return t.After(other.Time)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if !t.Present() {
		return []byte("null"), nil
	}

	return json.Marshal(t.Format(time.RFC3339))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*t = Timestamp{}

		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}

	if raw == "" {
		*t = Timestamp{}

		return nil
	}

	for _, layout := range timestampLayouts {
		parsed, err := time.Parse(layout, raw)
		if err == nil {
			*t = Timestamp{Time: parsed}

			return nil
		}
	}

	return fmt.Errorf("timestamp %q: unrecognized format", raw)
}

// Entry is one persisted catalog record.
type Entry struct {
	Title      string    `json:"title"`
	URIs       []string  `json:"uris"`
	FileSize   string    `json:"fileSize"`
	UploadDate Timestamp `json:"uploadDate"`
}

// Key returns the normalized title used as the entry's identity.
func (e Entry) Key() string {
	return titles.Normalize(e.Title)
}

func (e Entry) clone() Entry {
	e.URIs = append([]string{}, e.URIs...)

	return e
}

// Document is the persisted catalog.
type Document struct {
	Name      string  `json:"name"`
	Downloads []Entry `json:"downloads"`
}

// Candidate is a tentative record extracted from a detail page.
type Candidate struct {
	Title      string
	FileSize   string
	UploadDate Timestamp
	URIs       []string
	SourceURL  string
}
