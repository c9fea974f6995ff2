package embedding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"pestmatch/internal/domain"
	"pestmatch/internal/metrics"
	"pestmatch/internal/port"
)

// LoadFunc performs the one-time, expensive model load.
type LoadFunc func(ctx context.Context) (port.Model, error)

// Loader caches a single model instance for the process.
//
// The first Get runs the load while holding the lock, so concurrent first
// callers wait for it instead of loading again. A failed load is cached too:
// every later Get returns the same error until Reset is called. The load runs
// detached from the caller's cancellation, since its result is shared.
type Loader struct {
	load   LoadFunc
	logger *zap.Logger

	mu    sync.Mutex
	done  bool
	model port.Model
	err   error
	loads int
}

func NewLoader(load LoadFunc, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{load: load, logger: logger}
}

// Get returns the loaded model, loading it on first use.
func (l *Loader) Get(ctx context.Context) (port.Model, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.done {
		return l.model, l.err
	}

	start := time.Now()
	l.loads++
	model, err := l.load(context.WithoutCancel(ctx))
	l.done = true
	if err != nil {
		l.err = fmt.Errorf("%w: %v", domain.ErrModelLoad, err)
		metrics.ModelLoadTotal.WithLabelValues("error").Inc()
		l.logger.Error("embedding model load failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return nil, l.err
	}
	if model == nil {
		l.err = fmt.Errorf("%w: loader returned no model", domain.ErrModelLoad)
		metrics.ModelLoadTotal.WithLabelValues("error").Inc()
		return nil, l.err
	}

	l.model = model
	metrics.ModelLoadTotal.WithLabelValues("ok").Inc()
	metrics.ModelLoadDuration.Observe(time.Since(start).Seconds())
	l.logger.Info("embedding model loaded",
		zap.String("model", model.ModelName()),
		zap.Int("dimension", model.Dimension()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return l.model, nil
}

// Reset discards a cached failure so the next Get retries the load. A
// successfully loaded model is kept.
func (l *Loader) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		l.done = false
		l.err = nil
	}
}

// Loads reports how many load attempts have run.
func (l *Loader) Loads() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loads
}

// Close releases the loaded model, if any.
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.model == nil {
		return nil
	}
	err := l.model.Close()
	l.model = nil
	l.done = false
	return err
}
