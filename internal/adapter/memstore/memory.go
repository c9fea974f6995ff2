package memstore

import (
	"sort"
	"sync"

	"pestmatch/internal/domain"
)

// ReferenceIndex is the immutable, in-memory list of reference entries. It
// is safe for concurrent readers; nothing mutates it after construction.
type ReferenceIndex struct {
	entries []domain.ReferenceEntry
	stats   domain.IndexStats
}

func NewReferenceIndex(entries []domain.ReferenceEntry) *ReferenceIndex {
	owned := make([]domain.ReferenceEntry, len(entries))
	copy(owned, entries)

	stats := domain.IndexStats{
		Entries:  len(owned),
		PerLabel: make(map[string]int),
	}
	for _, e := range owned {
		stats.PerLabel[e.Label]++
	}
	if len(owned) > 0 {
		stats.Dimension = len(owned[0].Embedding)
	}

	return &ReferenceIndex{entries: owned, stats: stats}
}

// Entries returns the entries in index order. Callers must not modify the
// returned slice.
func (ix *ReferenceIndex) Entries() []domain.ReferenceEntry {
	return ix.entries
}

func (ix *ReferenceIndex) Len() int {
	return len(ix.entries)
}

func (ix *ReferenceIndex) Stats() domain.IndexStats {
	perLabel := make(map[string]int, len(ix.stats.PerLabel))
	for k, v := range ix.stats.PerLabel {
		perLabel[k] = v
	}
	stats := ix.stats
	stats.PerLabel = perLabel
	return stats
}

// HistoryStore keeps comparison records in memory. Used when no database is
// configured, and in tests.
type HistoryStore struct {
	mu      sync.RWMutex
	records []domain.HistoryRecord
}

func NewHistoryStore() *HistoryStore {
	return &HistoryStore{}
}

func (s *HistoryStore) Put(rec domain.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

// List returns up to limit records, newest first. limit <= 0 returns all.
func (s *HistoryStore) List(limit int) ([]domain.HistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.HistoryRecord, len(s.records))
	copy(out, s.records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *HistoryStore) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

func (s *HistoryStore) Close() error {
	return nil
}
