package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pestmatch/internal/adapter/retriever"
	"pestmatch/internal/domain"
)

func ref(label string, v ...float32) domain.ReferenceEntry {
	return domain.ReferenceEntry{Label: label, Category: "juta", Embedding: domain.Embedding(v)}
}

func TestLeaveOneOut(t *testing.T) {
	entries := []domain.ReferenceEntry{
		ref("a", 0, 0),
		ref("a", 0, 1),
		ref("b", 10, 10),
		ref("b", 10, 11),
		ref("c", 50, 50), // singleton, not queried
	}

	report, err := LeaveOneOut(entries, retriever.NewNearestMatcher(), 2)
	require.NoError(t, err)

	assert.Equal(t, 4, report.Queries)
	assert.Equal(t, 1.0, report.Top1Accuracy)
	assert.Equal(t, 1.0, report.MRR)
	assert.Equal(t, 0.5, report.PrecisionAtK)
	assert.Equal(t, 1.0, report.MajorityAtK)
	require.Len(t, report.PerLabel, 2)
	assert.Equal(t, "a", report.PerLabel[0].Label)
	assert.Equal(t, 2, report.PerLabel[0].Queries)
}

func TestLeaveOneOut_Misses(t *testing.T) {
	entries := []domain.ReferenceEntry{
		ref("a", 0, 0),
		ref("b", 1, 0),
		ref("a", 5, 0),
		ref("b", 20, 0),
	}

	report, err := LeaveOneOut(entries, retriever.NewNearestMatcher(), 1)
	require.NoError(t, err)

	// every nearest neighbour has the other label; the same label sits at
	// rank 2 except for b@1, where it is rank 3
	assert.Equal(t, 4, report.Queries)
	assert.Zero(t, report.Top1Accuracy)
	assert.InDelta(t, (0.5+1.0/3+0.5+0.5)/4, report.MRR, 1e-9)
}

func TestLeaveOneOut_Empty(t *testing.T) {
	report, err := LeaveOneOut(nil, retriever.NewNearestMatcher(), 0)
	require.NoError(t, err)
	assert.Zero(t, report.Queries)
	assert.Equal(t, 5, report.K)
}
