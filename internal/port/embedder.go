package port

import (
	"context"

	"pestmatch/internal/domain"
)

// Model runs a forward pass of a pretrained image model.
type Model interface {
	// Predict returns the output activation for a [1,H,W,3] input tensor.
	// The returned slice may be in any shape the model produces; callers
	// flatten it.
	Predict(ctx context.Context, input domain.Tensor) ([]float32, error)

	// Dimension returns the expected output length, or 0 if unknown.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string

	Close() error
}

// ModelProvider hands out the process-wide model instance.
type ModelProvider interface {
	Get(ctx context.Context) (Model, error)
}

// Preprocessor turns an image file into a model input tensor.
type Preprocessor interface {
	Preprocess(path string) (domain.Tensor, error)
}

// FeatureExtractor produces an embedding for an image file.
type FeatureExtractor interface {
	Extract(ctx context.Context, path string) (domain.Embedding, error)
}
