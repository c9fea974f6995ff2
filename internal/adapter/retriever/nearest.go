package retriever

import (
	"fmt"
	"math"
	"sort"

	"pestmatch/internal/domain"
)

// NearestMatcher ranks reference entries by Euclidean distance to the query.
// It holds no state and is safe for concurrent use.
type NearestMatcher struct{}

func NewNearestMatcher() *NearestMatcher {
	return &NearestMatcher{}
}

// Match returns the closest entry. Ties keep index order, so the first
// minimal entry wins.
func (m *NearestMatcher) Match(query domain.Embedding, entries []domain.ReferenceEntry) (domain.ComparisonResult, error) {
	ranked, err := m.Rank(query, entries, 1)
	if err != nil {
		return domain.ComparisonResult{}, err
	}
	best := ranked[0]
	return domain.ComparisonResult{
		Label:      best.Label,
		Category:   best.Category,
		Similarity: Similarity(best.Distance),
	}, nil
}

// Rank scores every entry and returns the k closest, ascending by distance.
// k <= 0 or k > len(entries) returns all of them.
func (m *NearestMatcher) Rank(query domain.Embedding, entries []domain.ReferenceEntry, k int) ([]domain.CandidateScore, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no reference entries", domain.ErrEmptyIndex)
	}

	scores := make([]domain.CandidateScore, len(entries))
	for i, e := range entries {
		scores[i] = domain.CandidateScore{
			Label:    e.Label,
			Category: e.Category,
			Path:     e.Path,
			Distance: Euclidean(query, e.Embedding),
		}
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Distance < scores[j].Distance
	})

	if k > 0 && k < len(scores) {
		scores = scores[:k]
	}
	return scores, nil
}

// Euclidean returns the L2 distance between a and b. Embeddings of
// different lengths come from different models and are a programming error.
func Euclidean(a, b domain.Embedding) float64 {
	if len(a) != len(b) {
		panic(fmt.Sprintf("retriever: embedding length mismatch: %d != %d", len(a), len(b)))
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Similarity maps a distance to a percentage in (0, 100], rounded to two
// decimals.
func Similarity(distance float64) float64 {
	return math.Round(100/(1+distance)*100) / 100
}
