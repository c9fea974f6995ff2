package retriever

import "pestmatch/internal/domain"

// Labels extracts the candidate labels in rank order.
func Labels(ranked []domain.CandidateScore) []string {
	labels := make([]string, len(ranked))
	for i, c := range ranked {
		labels[i] = c.Label
	}
	return labels
}

// ReciprocalRank is 1/rank of the first candidate carrying the wanted
// label, or 0 when none does.
func ReciprocalRank(labels []string, want string) float64 {
	for i, l := range labels {
		if l == want {
			return 1.0 / float64(i+1)
		}
	}
	return 0
}

// PrecisionAtK is the share of the retrieved labels equal to want.
func PrecisionAtK(labels []string, want string) float64 {
	if len(labels) == 0 {
		return 0
	}
	hits := 0
	for _, l := range labels {
		if l == want {
			hits++
		}
	}
	return float64(hits) / float64(len(labels))
}

// MajorityLabel returns the most frequent label, preferring the one ranked
// earliest on ties.
func MajorityLabel(labels []string) string {
	counts := make(map[string]int, len(labels))
	best, bestCount := "", 0
	for _, l := range labels {
		counts[l]++
	}
	for _, l := range labels {
		if counts[l] > bestCount {
			best, bestCount = l, counts[l]
		}
	}
	return best
}
