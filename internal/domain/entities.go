package domain

import "time"

// Embedding is the flattened activation vector produced by the embedding
// model for one image. Two embeddings are comparable only when produced by
// the same model configuration.
type Embedding []float32

// Tensor is a dense float32 tensor in NHWC layout.
type Tensor struct {
	Shape []int
	Data  []float32
}

type ReferenceEntry struct {
	Label     string
	Category  string
	Path      string
	Embedding Embedding
}

type CandidateScore struct {
	Label    string  `json:"label"`
	Category string  `json:"category"`
	Path     string  `json:"path,omitempty"`
	Distance float64 `json:"distance"`
}

type ComparisonResult struct {
	Label      string  `json:"label"`
	Category   string  `json:"category"`
	Similarity float64 `json:"similarity"`
}

type HistoryRecord struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	Category    string    `json:"category"`
	Similarity  float64   `json:"similarity"`
	ImageDigest string    `json:"image_digest,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type IndexStats struct {
	Entries   int            `json:"entries"`
	Dimension int            `json:"dimension"`
	PerLabel  map[string]int `json:"per_label"`
}
