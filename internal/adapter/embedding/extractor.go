package embedding

import (
	"context"
	"fmt"

	"pestmatch/internal/domain"
	"pestmatch/internal/port"
)

// Extractor turns an image file into an embedding: preprocess, forward pass,
// flatten.
type Extractor struct {
	preprocessor port.Preprocessor
	models       port.ModelProvider
}

func NewExtractor(preprocessor port.Preprocessor, models port.ModelProvider) *Extractor {
	return &Extractor{
		preprocessor: preprocessor,
		models:       models,
	}
}

// Extract returns the embedding for the image at path. Errors from the
// preprocessor (domain.ErrIO) and the loader (domain.ErrModelLoad) are
// returned unchanged.
func (e *Extractor) Extract(ctx context.Context, path string) (domain.Embedding, error) {
	model, err := e.models.Get(ctx)
	if err != nil {
		return nil, err
	}

	tensor, err := e.preprocessor.Preprocess(path)
	if err != nil {
		return nil, err
	}

	activation, err := model.Predict(ctx, tensor)
	if err != nil {
		return nil, fmt.Errorf("forward pass failed for %s: %w", path, err)
	}
	if len(activation) == 0 {
		return nil, fmt.Errorf("model %s returned an empty activation", model.ModelName())
	}

	embedding := make(domain.Embedding, len(activation))
	copy(embedding, activation)
	return embedding, nil
}
