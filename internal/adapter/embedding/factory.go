package embedding

import (
	"context"
	"fmt"
	"time"

	"pestmatch/config"
	"pestmatch/internal/port"
)

// NewLoadFunc returns the load step for the configured provider. Nothing is
// loaded until the returned function runs.
func NewLoadFunc(cfg config.EmbeddingConfig) (LoadFunc, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second

	switch cfg.Provider {
	case "onnx":
		opts := ONNXOptions{
			Source:            cfg.ModelSource,
			CacheDir:          cfg.ModelCacheDir,
			SharedLibraryPath: cfg.SharedLibraryPath,
			InputName:         cfg.InputName,
			OutputName:        cfg.OutputName,
			Layout:            cfg.Layout,
			Dimension:         cfg.Dimension,
			Timeout:           timeout,
		}
		return func(ctx context.Context) (port.Model, error) {
			return LoadONNXModel(ctx, opts)
		}, nil
	case "tfserving":
		return func(ctx context.Context) (port.Model, error) {
			return LoadTFServingModel(ctx, cfg.BaseURL, cfg.ModelName, cfg.Dimension, timeout)
		}, nil
	case "mock":
		return func(context.Context) (port.Model, error) {
			return NewMockModel(cfg.Dimension), nil
		}, nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}
