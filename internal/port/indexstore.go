package port

import "pestmatch/internal/domain"

// ReferenceIndex is a read-only view over the built reference entries.
type ReferenceIndex interface {
	Entries() []domain.ReferenceEntry

	Len() int

	Stats() domain.IndexStats
}

// HistoryStore keeps a log of comparison results.
type HistoryStore interface {
	Put(rec domain.HistoryRecord) error

	List(limit int) ([]domain.HistoryRecord, error)

	Count() (int, error)

	Close() error
}
