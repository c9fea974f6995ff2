package usecase

import (
	"sort"

	"pestmatch/internal/adapter/retriever"
	"pestmatch/internal/domain"
	"pestmatch/internal/port"
)

// LabelScore is the leave-one-out accuracy of one label.
type LabelScore struct {
	Label    string  `json:"label"`
	Queries  int     `json:"queries"`
	Accuracy float64 `json:"accuracy"`
}

// EvalReport summarizes a leave-one-out run over the index.
type EvalReport struct {
	Queries      int          `json:"queries"`
	Top1Accuracy float64      `json:"top1_accuracy"`
	MRR          float64      `json:"mrr"`
	PrecisionAtK float64      `json:"precision_at_k"`
	MajorityAtK  float64      `json:"majority_at_k"`
	K            int          `json:"k"`
	PerLabel     []LabelScore `json:"per_label"`
}

// LeaveOneOut queries every entry against all the others and measures how
// often the nearest neighbours carry the same label. Entries whose label
// has no other reference are left out, since they cannot be matched.
func LeaveOneOut(entries []domain.ReferenceEntry, matcher port.Matcher, k int) (EvalReport, error) {
	if k <= 0 {
		k = 5
	}
	report := EvalReport{K: k}

	perLabel := make(map[string]int)
	for _, e := range entries {
		perLabel[e.Label]++
	}

	type tally struct{ queries, hits int }
	tallies := make(map[string]*tally)

	var top1, rr, prec, majority float64
	rest := make([]domain.ReferenceEntry, 0, len(entries))
	for i, query := range entries {
		if perLabel[query.Label] < 2 {
			continue
		}

		rest = rest[:0]
		rest = append(rest, entries[:i]...)
		rest = append(rest, entries[i+1:]...)

		ranked, err := matcher.Rank(query.Embedding, rest, 0)
		if err != nil {
			return EvalReport{}, err
		}
		labels := retriever.Labels(ranked)
		topK := labels
		if len(topK) > k {
			topK = topK[:k]
		}

		t := tallies[query.Label]
		if t == nil {
			t = &tally{}
			tallies[query.Label] = t
		}
		t.queries++
		report.Queries++

		if labels[0] == query.Label {
			top1++
			t.hits++
		}
		rr += retriever.ReciprocalRank(labels, query.Label)
		prec += retriever.PrecisionAtK(topK, query.Label)
		if retriever.MajorityLabel(topK) == query.Label {
			majority++
		}
	}

	if report.Queries == 0 {
		return report, nil
	}

	n := float64(report.Queries)
	report.Top1Accuracy = top1 / n
	report.MRR = rr / n
	report.PrecisionAtK = prec / n
	report.MajorityAtK = majority / n

	for label, t := range tallies {
		report.PerLabel = append(report.PerLabel, LabelScore{
			Label:    label,
			Queries:  t.queries,
			Accuracy: float64(t.hits) / float64(t.queries),
		})
	}
	sort.Slice(report.PerLabel, func(i, j int) bool {
		return report.PerLabel[i].Label < report.PerLabel[j].Label
	})
	return report, nil
}
