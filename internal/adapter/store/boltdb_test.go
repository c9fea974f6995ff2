package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pestmatch/config"
	"pestmatch/internal/domain"
)

func openTestStore(t *testing.T) *HistoryStore {
	t.Helper()
	s, err := NewHistoryStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func putRecords(t *testing.T, s *HistoryStore, labels ...string) {
	t.Helper()
	base := time.Date(2025, 5, 10, 9, 0, 0, 0, time.UTC)
	for i, label := range labels {
		require.NoError(t, s.Put(domain.HistoryRecord{
			ID:          uuid.NewString(),
			Label:       label,
			Category:    "juta",
			Similarity:  float64(50 + i),
			ImageDigest: "d" + label,
			CreatedAt:   base.Add(time.Duration(i) * time.Second),
		}))
	}
}

func TestHistoryStore_PutList(t *testing.T) {
	s := openTestStore(t)
	putRecords(t, s, "Besouro", "Lagarta da juta", "Gafanhoto")

	n, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	all, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Gafanhoto", all[0].Label)
	assert.Equal(t, "Besouro", all[2].Label)
	assert.Equal(t, 52.0, all[0].Similarity)
	assert.Equal(t, "juta", all[0].Category)
	assert.Equal(t, "dGafanhoto", all[0].ImageDigest)
	assert.Equal(t, time.Date(2025, 5, 10, 9, 0, 2, 0, time.UTC), all[0].CreatedAt)

	recent, err := s.List(2)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
	assert.Equal(t, all[0].ID, recent[0].ID)
}

func TestHistoryStore_Empty(t *testing.T) {
	s := openTestStore(t)
	records, err := s.List(10)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.NotNil(t, records)
}

func TestHistoryStore_RejectsMissingID(t *testing.T) {
	s := openTestStore(t)
	assert.Error(t, s.Put(domain.HistoryRecord{Label: "x", CreatedAt: time.Now()}))
}

func TestHistoryStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := NewHistoryStore(path)
	require.NoError(t, err)
	putRecords(t, s, "a", "b")
	require.NoError(t, s.Close())

	s, err = NewHistoryStore(path)
	require.NoError(t, err)
	defer s.Close()
	n, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestHistoryStore_Prune(t *testing.T) {
	s := openTestStore(t)
	putRecords(t, s, "a", "b", "c", "d")

	removed, err := s.Prune(1)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	records, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "d", records[0].Label)
}

func TestMigrations(t *testing.T) {
	s := openTestStore(t)
	cfg := config.DefaultConfig()

	res, err := s.CheckMigration(cfg)
	require.NoError(t, err)
	assert.True(t, res.NeedsMigration)
	assert.Equal(t, 0, res.OldVersion)

	require.NoError(t, s.Migrate(cfg))
	res, err = s.CheckMigration(cfg)
	require.NoError(t, err)
	assert.False(t, res.NeedsMigration)
	assert.False(t, res.ConfigChanged)

	changed := config.DefaultConfig()
	changed.Embedding.Provider = "mock"
	res, err = s.CheckMigration(changed)
	require.NoError(t, err)
	assert.True(t, res.ConfigChanged)
	assert.Equal(t, "embedding configuration changed", res.Reason)
}

func TestMigrations_NewerSchemaRefused(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SetSchemaInfo(&SchemaInfo{Version: CurrentSchemaVersion + 1}))

	res, err := s.CheckMigration(config.DefaultConfig())
	require.NoError(t, err)
	assert.True(t, res.Unsupported)
	assert.Error(t, s.Migrate(config.DefaultConfig()))
}

func TestClear(t *testing.T) {
	s := openTestStore(t)
	cfg := config.DefaultConfig()
	require.NoError(t, s.Migrate(cfg))
	putRecords(t, s, "a", "b")

	require.NoError(t, s.Clear())
	n, err := s.Count()
	require.NoError(t, err)
	assert.Zero(t, n)

	info, err := s.GetSchemaInfo()
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, info.Version)
	assert.Equal(t, ComputeConfigHash(cfg), info.ConfigHash)
}
