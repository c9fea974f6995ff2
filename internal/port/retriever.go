package port

import "pestmatch/internal/domain"

// Matcher finds the reference entries nearest to a query embedding.
type Matcher interface {
	// Match returns the single best result for the query.
	Match(query domain.Embedding, entries []domain.ReferenceEntry) (domain.ComparisonResult, error)

	// Rank returns the k nearest candidates, closest first.
	Rank(query domain.Embedding, entries []domain.ReferenceEntry, k int) ([]domain.CandidateScore, error)
}
