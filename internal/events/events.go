// Package events carries the per-record status signal of a crawl run.
package events

import (
	"context"
	"sync"
	"time"

	"cloudeng.io/logging/ctxlog"
	"github.com/google/uuid"

	"catalogcrawler/internal/catalog"
)

// Event reports what happened to one processed detail record.
type Event struct {
	RunID     string         `json:"run_id"`
	Status    catalog.Status `json:"status"`
	Category  string         `json:"category"`
	Page      int            `json:"page"`
	Title     string         `json:"title"`
	SourceURL string         `json:"source_url,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Processed int            `json:"processed"`
	At        time.Time      `json:"at"`
}

// Sink receives events. Implementations must be safe for concurrent use.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NewRunID returns a fresh identifier for a crawl run.
func NewRunID() string {
	return uuid.NewString()
}

// Log writes events to the context logger.
type Log struct{}

func (Log) Emit(ctx context.Context, event Event) {
	ctxlog.Logger(ctx).Info("record",
		"status", string(event.Status),
		"category", event.Category,
		"page", event.Page,
		"title", event.Title,
		"reason", event.Reason,
		"processed", event.Processed,
		"run_id", event.RunID,
	)
}

// Multi fans an event out to several sinks.
type Multi []Sink

func (m Multi) Emit(ctx context.Context, event Event) {
	for _, sink := range m {
		if sink != nil {
			sink.Emit(ctx, event)
		}
	}
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(_ context.Context, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Event(nil), r.events...)
}

// Count returns how many recorded events have status.
func (r *Recorder) Count(status catalog.Status) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, event := range r.events {
		if event.Status == status {
			n++
		}
	}

	return n
}
