package usecase

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pestmatch/internal/adapter/memstore"
	"pestmatch/internal/domain"
	"pestmatch/internal/metrics"
	"pestmatch/internal/port"
)

// ProgressFunc is called after each file is processed. done counts both
// indexed and skipped files.
type ProgressFunc func(done, total int)

// IndexUseCase builds the in-memory reference index from the dataset.
type IndexUseCase struct {
	walker    port.DatasetWalker
	extractor port.FeatureExtractor
	root      string
	workers   int
	logger    *zap.Logger

	mu     sync.Mutex
	done   bool
	result *IndexResult
	err    error
	builds int

	current atomic.Pointer[memstore.ReferenceIndex]
}

// NewIndexUseCase creates a new index use case. workers <= 0 uses
// GOMAXPROCS.
func NewIndexUseCase(
	walker port.DatasetWalker,
	extractor port.FeatureExtractor,
	root string,
	workers int,
	logger *zap.Logger,
) *IndexUseCase {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IndexUseCase{
		walker:    walker,
		extractor: extractor,
		root:      root,
		workers:   workers,
		logger:    logger,
	}
}

// IndexResult contains the results of an indexing operation.
type IndexResult struct {
	Index    *memstore.ReferenceIndex
	Files    int
	Skipped  int
	Errors   []string
	Duration time.Duration
}

type extraction struct {
	entry domain.ReferenceEntry
	err   error
}

// Build scans the dataset root and extracts one embedding per image. A file
// that fails to extract is logged, recorded in Errors and left out. A model
// load failure or a cancelled context aborts the whole build.
//
// Build always runs a fresh scan; use EnsureBuilt for the shared index.
func (u *IndexUseCase) Build(ctx context.Context, progress ProgressFunc) (*IndexResult, error) {
	start := time.Now()

	files, err := u.walker.Walk(u.root)
	if err != nil {
		return nil, err
	}

	results := make([]extraction, len(files))
	var (
		progressMu sync.Mutex
		processed  int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.workers)
	for i, file := range files {
		g.Go(func() error {
			emb, err := u.extractor.Extract(gctx, file.Path)
			if err != nil {
				if errors.Is(err, domain.ErrModelLoad) || gctx.Err() != nil {
					return err
				}
				results[i].err = err
			} else {
				results[i].entry = domain.ReferenceEntry{
					Label:     file.Label,
					Category:  file.Category,
					Path:      file.Path,
					Embedding: emb,
				}
			}

			if progress != nil {
				progressMu.Lock()
				processed++
				progress(processed, len(files))
				progressMu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIndexBuild, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIndexBuild, err)
	}

	result := &IndexResult{Files: len(files)}
	entries := make([]domain.ReferenceEntry, 0, len(files))
	for i, r := range results {
		if r.err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("failed to index %s: %v", files[i].Path, r.err))
			u.logger.Warn("skipping reference image", zap.String("path", files[i].Path), zap.Error(r.err))
			continue
		}
		entries = append(entries, r.entry)
	}

	result.Index = memstore.NewReferenceIndex(entries)
	result.Duration = time.Since(start)

	metrics.IndexBuildDuration.Observe(result.Duration.Seconds())
	metrics.IndexSkippedFiles.Add(float64(result.Skipped))

	u.logger.Info("reference index built",
		zap.String("root", u.root),
		zap.Int("entries", result.Index.Len()),
		zap.Int("skipped", result.Skipped),
		zap.Duration("elapsed", result.Duration),
	)
	return result, nil
}

// EnsureBuilt returns the process-wide index, building it on first use.
// Concurrent callers wait for the same build; a failed build is returned to
// every caller until Reset. The build ignores the caller's cancellation so
// that one abandoned request cannot poison the shared index.
func (u *IndexUseCase) EnsureBuilt(ctx context.Context) (port.ReferenceIndex, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if !u.done {
		u.builds++
		u.result, u.err = u.Build(context.WithoutCancel(ctx), nil)
		u.done = true
		if u.err == nil {
			u.current.Store(u.result.Index)
			metrics.IndexEntries.Set(float64(u.result.Index.Len()))
		}
	}
	if u.err != nil {
		return nil, u.err
	}
	return u.result.Index, nil
}

// Current returns the built index without blocking, or false while no
// build has succeeded.
func (u *IndexUseCase) Current() (*memstore.ReferenceIndex, bool) {
	ix := u.current.Load()
	return ix, ix != nil
}

// Status returns the stats of the built index, or false while no build has
// succeeded.
func (u *IndexUseCase) Status() (domain.IndexStats, bool) {
	ix, ok := u.Current()
	if !ok {
		return domain.IndexStats{}, false
	}
	return ix.Stats(), true
}

// LastResult returns the result of the shared build, if it ran.
func (u *IndexUseCase) LastResult() *IndexResult {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.result
}

// Reset discards a cached build failure so the next EnsureBuilt retries.
func (u *IndexUseCase) Reset() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.err != nil {
		u.done = false
		u.err = nil
		u.result = nil
	}
}

// Builds reports how many shared builds have run.
func (u *IndexUseCase) Builds() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.builds
}
