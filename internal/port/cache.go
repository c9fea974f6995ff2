package port

import "pestmatch/internal/domain"

// ResultCache memoizes comparison results by image content digest.
type ResultCache interface {
	Get(digest string) (domain.ComparisonResult, bool)
	Put(digest string, result domain.ComparisonResult)
}
