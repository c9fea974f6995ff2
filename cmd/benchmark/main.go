package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pestmatch/config"
	"pestmatch/internal/adapter/embedding"
	"pestmatch/internal/adapter/fs"
	"pestmatch/internal/adapter/imaging"
	"pestmatch/internal/adapter/retriever"
	"pestmatch/internal/logging"
	"pestmatch/internal/usecase"
)

func main() {
	dir := flag.String("dir", ".", "Directory holding pestmatch.yaml")
	cfgFile := flag.String("config", "", "Config file (overrides -dir lookup)")
	topK := flag.Int("k", 5, "Neighbours considered for precision@k and majority@k")
	asJSON := flag.Bool("json", false, "Print the report as JSON")
	flag.Parse()

	var (
		cfg *config.Config
		err error
	)
	if *cfgFile != "" {
		cfg, err = config.Load(*cfgFile)
	} else {
		cfg, err = config.LoadFromDir(*dir)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(logging.Config{Format: "console", Level: "warn"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	root := cfg.Dataset.Root
	if !filepath.IsAbs(root) {
		root = filepath.Join(*dir, root)
	}
	embCfg := cfg.Embedding
	if !filepath.IsAbs(embCfg.ModelCacheDir) {
		embCfg.ModelCacheDir = filepath.Join(*dir, embCfg.ModelCacheDir)
	}
	isURL := strings.HasPrefix(embCfg.ModelSource, "http://") || strings.HasPrefix(embCfg.ModelSource, "https://")
	if !isURL && !filepath.IsAbs(embCfg.ModelSource) {
		embCfg.ModelSource = filepath.Join(*dir, embCfg.ModelSource)
	}

	load, err := embedding.NewLoadFunc(embCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Model setup failed: %v\n", err)
		os.Exit(1)
	}
	loader := embedding.NewLoader(load, logger)
	defer loader.Close()

	extractor := embedding.NewExtractor(imaging.NewPreprocessor(cfg.Embedding.InputSize), loader)
	walker := fs.NewDatasetWalker(cfg.Dataset.Category, cfg.Dataset.Includes)
	indexUC := usecase.NewIndexUseCase(walker, extractor, root, cfg.Dataset.Workers, logger)

	fmt.Println("LEAVE-ONE-OUT BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Dataset: %s\n", root)
	fmt.Printf("Model:   %s (%s)\n", cfg.Embedding.ModelName, cfg.Embedding.Provider)

	result, err := indexUC.Build(context.Background(), nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Index build failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Entries: %d (skipped %d)\n\n", result.Index.Len(), result.Skipped)

	report, err := usecase.LeaveOneOut(result.Index.Entries(), retriever.NewNearestMatcher(), *topK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Evaluation failed: %v\n", err)
		os.Exit(1)
	}

	if *asJSON {
		output, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(output))
		return
	}

	if report.Queries == 0 {
		fmt.Println("No label has two or more references; nothing to evaluate.")
		return
	}

	fmt.Printf("%-32s %8s %9s\n", "LABEL", "QUERIES", "TOP-1")
	fmt.Println(strings.Repeat("-", 70))
	for _, l := range report.PerLabel {
		fmt.Printf("%-32s %8d %8.1f%%\n", l.Label, l.Queries, l.Accuracy*100)
	}

	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY METRICS:\n")
	fmt.Printf("  Queries:          %d\n", report.Queries)
	fmt.Printf("  Top-1 accuracy:   %.3f\n", report.Top1Accuracy)
	fmt.Printf("  MRR:              %.3f\n", report.MRR)
	fmt.Printf("  Precision@%d:      %.3f\n", report.K, report.PrecisionAtK)
	fmt.Printf("  Majority@%d:       %.3f\n", report.K, report.MajorityAtK)

	if report.Top1Accuracy > 0.8 {
		fmt.Println("  Status: GOOD - embeddings separate the labels well")
	} else if report.Top1Accuracy > 0.5 {
		fmt.Println("  Status: OK - labels partly overlap")
	} else {
		fmt.Println("  Status: POOR - consider a different model or cleaner references")
	}
}
