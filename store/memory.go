package store

import (
	"context"
	"sync"
	"time"

	"github.com/ZaguanLabs/dyntrans"
)

// MemoryStore is a thread-safe in-memory translation store. It also acts as
// a content enumerator over source content registered with AddContent, which
// makes it usable as a CLI backend for small setups and as a test double.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record      // keyed by dyntrans.RecordKey
	content map[string][]Discovered // keyed by source name

	now func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
		content: make(map[string][]Discovered),
		now:     time.Now,
	}
}

// GetCached returns the records that exist for the given items at exactly
// the given locale.
func (s *MemoryStore) GetCached(ctx context.Context, items []Item, locale string) ([]Record, error) {
	if len(items) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, item := range items {
		key := dyntrans.RecordKey(item.ContentType, item.ContentID, locale)
		if rec, ok := s.records[key]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Save upserts records by primary key. Existing records keep their CreatedAt
// and get a fresh UpdatedAt; calling Save twice with the same logical record
// still leaves exactly one stored record per key.
func (s *MemoryStore) Save(ctx context.Context, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, rec := range records {
		key := dyntrans.RecordKey(rec.ContentType, rec.ContentID, rec.Locale)
		if existing, ok := s.records[key]; ok {
			rec.CreatedAt = existing.CreatedAt
		} else if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		rec.UpdatedAt = now
		s.records[key] = rec
	}
	return nil
}

// AddContent registers source content under a named source for discovery.
func (s *MemoryStore) AddContent(source string, items ...Discovered) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.content[source] = append(s.content[source], items...)
}

// Discover enumerates registered content. With no sources given, all
// registered sources are returned.
func (s *MemoryStore) Discover(ctx context.Context, sources []string) ([]Discovered, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(sources) == 0 {
		var out []Discovered
		for _, items := range s.content {
			out = append(out, items...)
		}
		return out, nil
	}

	var out []Discovered
	for _, source := range sources {
		out = append(out, s.content[source]...)
	}
	return out, nil
}

// Len returns the number of stored translation records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Get returns one stored record by primary key.
func (s *MemoryStore) Get(contentType, contentID, locale string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[dyntrans.RecordKey(contentType, contentID, locale)]
	return rec, ok
}

var (
	_ Store      = (*MemoryStore)(nil)
	_ Enumerator = (*MemoryStore)(nil)
)
