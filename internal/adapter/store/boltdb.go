package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"pestmatch/internal/domain"
)

var (
	bucketHistory = []byte("history")
	bucketMeta    = []byte("meta")
)

// HistoryStore persists comparison results in a bbolt file. Keys are the
// big-endian creation time followed by the record ID, so a reverse cursor
// walks newest first.
type HistoryStore struct {
	db *bbolt.DB
}

func NewHistoryStore(path string) (*HistoryStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketHistory, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &HistoryStore{db: db}, nil
}

func (s *HistoryStore) DB() *bbolt.DB {
	return s.db
}

type recordMeta struct {
	Label       string  `json:"label"`
	Category    string  `json:"category"`
	Similarity  float64 `json:"similarity"`
	ImageDigest string  `json:"image_digest,omitempty"`
	CreatedAt   int64   `json:"created_at"`
}

func historyKey(rec domain.HistoryRecord) []byte {
	key := make([]byte, 8, 8+len(rec.ID))
	binary.BigEndian.PutUint64(key, uint64(rec.CreatedAt.UnixNano()))
	return append(key, rec.ID...)
}

func (s *HistoryStore) Put(rec domain.HistoryRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("history record has no id")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(recordMeta{
			Label:       rec.Label,
			Category:    rec.Category,
			Similarity:  rec.Similarity,
			ImageDigest: rec.ImageDigest,
			CreatedAt:   rec.CreatedAt.UnixNano(),
		})
		if err != nil {
			return err
		}
		return tx.Bucket(bucketHistory).Put(historyKey(rec), data)
	})
}

// List returns up to limit records, newest first. limit <= 0 returns all.
func (s *HistoryStore) List(limit int) ([]domain.HistoryRecord, error) {
	records := []domain.HistoryRecord{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketHistory).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(records) >= limit {
				break
			}
			if len(k) < 8 {
				continue
			}
			var meta recordMeta
			if err := json.Unmarshal(v, &meta); err != nil {
				return fmt.Errorf("corrupt history record %x: %w", k, err)
			}
			records = append(records, domain.HistoryRecord{
				ID:          string(k[8:]),
				Label:       meta.Label,
				Category:    meta.Category,
				Similarity:  meta.Similarity,
				ImageDigest: meta.ImageDigest,
				CreatedAt:   time.Unix(0, meta.CreatedAt).UTC(),
			})
		}
		return nil
	})
	return records, err
}

func (s *HistoryStore) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketHistory).Stats().KeyN
		return nil
	})
	return n, err
}

// Prune drops all but the newest keep records and returns how many were
// removed.
func (s *HistoryStore) Prune(keep int) (int, error) {
	removed := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketHistory)
		var stale [][]byte
		seen := 0
		c := b.Cursor()
		for k, _ := c.Last(); k != nil; k, _ = c.Prev() {
			seen++
			if seen > keep {
				stale = append(stale, append([]byte(nil), k...))
			}
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	return removed, err
}

func (s *HistoryStore) Close() error {
	return s.db.Close()
}
