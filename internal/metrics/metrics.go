// Package metrics holds the Prometheus collectors shared by the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ComparisonsTotal counts comparison requests by outcome
	// ("match", "empty_index", "io_error", "model_error", "error", "cached").
	ComparisonsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pestmatch_comparisons_total",
			Help: "Total number of image comparisons by outcome",
		},
		[]string{"outcome"},
	)

	CompareDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pestmatch_compare_duration_seconds",
			Help:    "Time to extract and match one query image",
			Buckets: prometheus.DefBuckets,
		},
	)

	// BestSimilarity records the similarity of the winning entry.
	BestSimilarity = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pestmatch_best_similarity",
			Help:    "Similarity percentage of the best match per comparison",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 95, 100},
		},
	)

	IndexEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pestmatch_index_entries",
			Help: "Number of reference entries in the in-memory index",
		},
	)

	IndexBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pestmatch_index_build_duration_seconds",
			Help:    "Time to build the reference index",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		},
	)

	IndexSkippedFiles = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pestmatch_index_skipped_files_total",
			Help: "Reference images skipped because extraction failed",
		},
	)

	ModelLoadTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pestmatch_model_load_total",
			Help: "Embedding model load attempts by result",
		},
		[]string{"result"},
	)

	ModelLoadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pestmatch_model_load_duration_seconds",
			Help:    "Time to load the embedding model",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pestmatch_http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"route", "code"},
	)

	// LogEntriesTotal counts log entries by level
	LogEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pestmatch_log_entries_total",
			Help: "Total number of log entries by level",
		},
		[]string{"level"},
	)
)
