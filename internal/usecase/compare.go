package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pestmatch/internal/adapter/fs"
	"pestmatch/internal/domain"
	"pestmatch/internal/metrics"
	"pestmatch/internal/port"
)

// IndexProvider hands out the shared reference index.
type IndexProvider interface {
	EnsureBuilt(ctx context.Context) (port.ReferenceIndex, error)
}

// CompareUseCase answers "which reference image is this closest to".
type CompareUseCase struct {
	index     IndexProvider
	extractor port.FeatureExtractor
	matcher   port.Matcher
	models    port.ModelProvider
	history   port.HistoryStore
	cache     port.ResultCache
	logger    *zap.Logger
	now       func() time.Time
}

// NewCompareUseCase creates a new compare use case. history may be nil.
func NewCompareUseCase(
	index IndexProvider,
	extractor port.FeatureExtractor,
	matcher port.Matcher,
	models port.ModelProvider,
	history port.HistoryStore,
	logger *zap.Logger,
) *CompareUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompareUseCase{
		index:     index,
		extractor: extractor,
		matcher:   matcher,
		models:    models,
		history:   history,
		logger:    logger,
		now:       time.Now,
	}
}

// WithCache makes Compare consult cache before extracting.
func (u *CompareUseCase) WithCache(cache port.ResultCache) *CompareUseCase {
	u.cache = cache
	return u
}

// WarmUp loads the model and builds the index so that failures show up at
// startup rather than on the first request.
func (u *CompareUseCase) WarmUp(ctx context.Context) error {
	if _, err := u.models.Get(ctx); err != nil {
		return err
	}
	_, err := u.index.EnsureBuilt(ctx)
	return err
}

// Compare returns the best match for the image at imagePath. Errors from
// the index, extractor and matcher are returned unchanged.
func (u *CompareUseCase) Compare(ctx context.Context, imagePath string) (domain.ComparisonResult, error) {
	start := time.Now()

	result, cached, digest, err := u.compare(ctx, imagePath)
	if err != nil {
		metrics.ComparisonsTotal.WithLabelValues(outcome(err)).Inc()
		return domain.ComparisonResult{}, err
	}

	if cached {
		metrics.ComparisonsTotal.WithLabelValues("cached").Inc()
	} else {
		metrics.ComparisonsTotal.WithLabelValues("match").Inc()
		metrics.CompareDuration.Observe(time.Since(start).Seconds())
	}
	metrics.BestSimilarity.Observe(result.Similarity)

	u.logger.Debug("comparison done",
		zap.String("label", result.Label),
		zap.Float64("similarity", result.Similarity),
		zap.Bool("cached", cached),
		zap.Duration("elapsed", time.Since(start)),
	)

	u.record(digest, result)
	return result, nil
}

func (u *CompareUseCase) compare(ctx context.Context, imagePath string) (domain.ComparisonResult, bool, string, error) {
	ix, err := u.index.EnsureBuilt(ctx)
	if err != nil {
		return domain.ComparisonResult{}, false, "", err
	}

	var digest string
	if u.cache != nil || u.history != nil {
		if digest, err = fs.FileDigest(imagePath); err != nil {
			return domain.ComparisonResult{}, false, "", err
		}
	}

	if u.cache != nil {
		if result, ok := u.cache.Get(digest); ok {
			return result, true, digest, nil
		}
	}

	query, err := u.extractor.Extract(ctx, imagePath)
	if err != nil {
		return domain.ComparisonResult{}, false, "", err
	}

	result, err := u.matcher.Match(query, ix.Entries())
	if err != nil {
		return domain.ComparisonResult{}, false, "", err
	}

	if u.cache != nil {
		u.cache.Put(digest, result)
	}
	return result, false, digest, nil
}

// CompareTopK returns the k closest reference entries, nearest first.
func (u *CompareUseCase) CompareTopK(ctx context.Context, imagePath string, k int) ([]domain.CandidateScore, error) {
	ix, err := u.index.EnsureBuilt(ctx)
	if err != nil {
		return nil, err
	}

	query, err := u.extractor.Extract(ctx, imagePath)
	if err != nil {
		return nil, err
	}

	return u.matcher.Rank(query, ix.Entries(), k)
}

// record appends the result to the history log. A failing history store
// does not fail the comparison.
func (u *CompareUseCase) record(digest string, result domain.ComparisonResult) {
	if u.history == nil {
		return
	}

	rec := domain.HistoryRecord{
		ID:          uuid.NewString(),
		Label:       result.Label,
		Category:    result.Category,
		Similarity:  result.Similarity,
		ImageDigest: digest,
		CreatedAt:   u.now().UTC(),
	}
	if err := u.history.Put(rec); err != nil {
		u.logger.Warn("failed to record comparison", zap.Error(err))
	}
}

// History returns up to limit recent comparisons, newest first.
func (u *CompareUseCase) History(limit int) ([]domain.HistoryRecord, error) {
	if u.history == nil {
		return []domain.HistoryRecord{}, nil
	}
	return u.history.List(limit)
}

func outcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyIndex):
		return "empty_index"
	case errors.Is(err, domain.ErrModelLoad):
		return "model_error"
	case errors.Is(err, domain.ErrIO):
		return "io_error"
	case errors.Is(err, domain.ErrIndexBuild):
		return "index_error"
	default:
		return "error"
	}
}
