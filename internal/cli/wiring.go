package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"pestmatch/config"
	"pestmatch/internal/adapter/cache"
	"pestmatch/internal/adapter/embedding"
	"pestmatch/internal/adapter/fs"
	"pestmatch/internal/adapter/imaging"
	"pestmatch/internal/adapter/memstore"
	"pestmatch/internal/adapter/retriever"
	"pestmatch/internal/adapter/store"
	"pestmatch/internal/port"
	"pestmatch/internal/usecase"
)

// service holds the wired comparison pipeline for one command run.
type service struct {
	loader  *embedding.Loader
	index   *usecase.IndexUseCase
	compare *usecase.CompareUseCase
	history port.HistoryStore
}

type serviceOptions struct {
	history bool
	cache   bool
}

func newService(cfg *config.Config, logger *zap.Logger, opts serviceOptions) (*service, error) {
	embCfg := cfg.Embedding
	embCfg.ModelCacheDir = resolvePath(embCfg.ModelCacheDir)
	if !strings.HasPrefix(embCfg.ModelSource, "http://") && !strings.HasPrefix(embCfg.ModelSource, "https://") {
		embCfg.ModelSource = resolvePath(embCfg.ModelSource)
	}

	load, err := embedding.NewLoadFunc(embCfg)
	if err != nil {
		return nil, err
	}

	loader := embedding.NewLoader(load, logger.Named("model"))
	extractor := embedding.NewExtractor(imaging.NewPreprocessor(cfg.Embedding.InputSize), loader)
	walker := fs.NewDatasetWalker(cfg.Dataset.Category, cfg.Dataset.Includes)
	index := usecase.NewIndexUseCase(walker, extractor, resolvePath(cfg.Dataset.Root), cfg.Dataset.Workers, logger.Named("index"))

	var history port.HistoryStore
	if opts.history {
		history, err = openHistory(cfg, logger)
		if err != nil {
			loader.Close()
			return nil, err
		}
	}

	compare := usecase.NewCompareUseCase(index, extractor, retriever.NewNearestMatcher(), loader, history, logger.Named("compare"))
	if opts.cache {
		compare.WithCache(cache.NewResultCache(cfg.Cache.MaxSize, time.Duration(cfg.Cache.TTLSeconds)*time.Second))
	}

	return &service{
		loader:  loader,
		index:   index,
		compare: compare,
		history: history,
	}, nil
}

// openHistory opens the bbolt history log, or an in-memory one when
// history persistence is disabled.
func openHistory(cfg *config.Config, logger *zap.Logger) (port.HistoryStore, error) {
	if !cfg.History.Enabled {
		return memstore.NewHistoryStore(), nil
	}

	path := resolvePath(cfg.History.Path)
	if err := config.EnsureDir(path); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	st, err := store.NewHistoryStore(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}

	res, err := st.CheckMigration(cfg)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to check migration: %w", err)
	}
	switch {
	case res.Unsupported:
		st.Close()
		return nil, errors.New(res.Reason)
	case res.ConfigChanged:
		logger.Warn("history written under a different embedding configuration; similarities are not comparable",
			zap.String("path", path))
	case res.NeedsMigration:
		logger.Info("migrating history store", zap.String("reason", res.Reason))
	}
	if err := st.Migrate(cfg); err != nil {
		st.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return st, nil
}

func (s *service) Close() error {
	var errs []error
	if s.history != nil {
		errs = append(errs, s.history.Close())
	}
	errs = append(errs, s.loader.Close())
	return errors.Join(errs...)
}
