package catalog

import (
	"sync"

	"catalogcrawler/internal/titles"
)

// Status classifies the outcome of merging one candidate.
type Status string

const (
	StatusNew     Status = "NEW"
	StatusUpdated Status = "UPDATED"
	StatusIgnored Status = "IGNORED"
	StatusNoLinks Status = "NO_LINKS"
)

// Store is the in-memory catalog for one run. It holds exactly one entry per
// normalized title; all mutations are serialized.
type Store struct {
	mu      sync.RWMutex
	name    string
	entries []*Entry
	byKey   map[string]*Entry
}

// NewStore builds a store from a loaded document. Entries sharing a
// normalized title are collapsed to the most recent one.
func NewStore(doc Document) *Store {
	name := doc.Name
	if name == "" {
		name = DefaultName
	}

	store := &Store{name: name, byKey: map[string]*Entry{}}
	for _, entry := range doc.Downloads {
		store.collapse(entry.clone())
	}

	return store
}

func (s *Store) collapse(entry Entry) {
	key := entry.Key()

	existing, ok := s.byKey[key]
	if !ok {
		stored := entry
		s.entries = append(s.entries, &stored)
		s.byKey[key] = &stored

		return
	}

	if entry.UploadDate.Newer(existing.UploadDate) {
		*existing = entry
	}
}

// Name returns the catalog document name.
func (s *Store) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.name
}

// Merge applies one candidate.
//
// A candidate without links is never stored. A new normalized title is
// inserted. Otherwise the candidate replaces the stored entry's title, links,
// size and date only when its upload date is strictly newer; if not, it is
// discarded and the stored links are left untouched.
func (s *Store) Merge(candidate Candidate) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.merge(candidate)
}

// MergeBatch applies candidates in order under one lock acquisition, so no
// reader observes a partially merged page. visit is called after each merge;
// returning false stops the batch.
func (s *Store) MergeBatch(candidates []Candidate, visit func(Candidate, Status) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, candidate := range candidates {
		status := s.merge(candidate)
		if visit != nil && !visit(candidate, status) {
			return
		}
	}
}

func (s *Store) merge(candidate Candidate) Status {
	if len(candidate.URIs) == 0 {
		return StatusNoLinks
	}

	incoming := Entry{
		Title:      candidate.Title,
		URIs:       append([]string{}, candidate.URIs...),
		FileSize:   candidate.FileSize,
		UploadDate: candidate.UploadDate,
	}

	key := titles.Normalize(candidate.Title)

	existing, ok := s.byKey[key]
	if !ok {
		s.entries = append(s.entries, &incoming)
		s.byKey[key] = &incoming

		return StatusNew
	}

	if !candidate.UploadDate.Newer(existing.UploadDate) {
		return StatusIgnored
	}

	*existing = incoming

	return StatusUpdated
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

// Lookup returns the entry stored under title's normalized key.
func (s *Store) Lookup(title string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.byKey[titles.Normalize(title)]
	if !ok {
		return Entry{}, false
	}

	return entry.clone(), true
}

// Entries returns a copy of all entries in insertion order.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		out = append(out, entry.clone())
	}

	return out
}

// Document returns a snapshot suitable for persisting.
func (s *Store) Document() Document {
	return Document{Name: s.Name(), Downloads: s.Entries()}
}

// Replace swaps the stored entries, e.g. after link validation.
// Duplicate normalized titles in entries are collapsed.
func (s *Store) Replace(entries []Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = nil
	s.byKey = map[string]*Entry{}
	for _, entry := range entries {
		s.collapse(entry.clone())
	}
}
