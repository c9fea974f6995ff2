package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the reference index and print its stats",
	Long: `Scan the dataset root (one directory per label), extract an embedding for
every image and report what was indexed. The index lives in memory only;
this command is a dry run of what 'serve' does at startup.

Examples:
  pestmatch index
  pestmatch index -d /srv/pestmatch`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	svc, err := newService(cfg, logger, serviceOptions{})
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("Scanning %s...\n", resolvePath(cfg.Dataset.Root))

	var (
		bar       *progressbar.ProgressBar
		barMu     sync.Mutex
		startTime time.Time
	)

	progressCallback := func(processed, total int) {
		barMu.Lock()
		defer barMu.Unlock()

		if bar == nil {
			startTime = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Indexing[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}

		_ = bar.Set(processed)

		elapsed := time.Since(startTime)
		if rate := float64(processed) / elapsed.Seconds(); rate > 0 {
			eta := time.Duration(float64(total-processed)/rate) * time.Second
			bar.Describe(fmt.Sprintf("[cyan]Indexing[reset] ETA: %s", formatDuration(eta)))
		}
	}

	result, err := svc.index.Build(ctx, progressCallback)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	stats := result.Index.Stats()
	fmt.Printf("\nIndexing complete:\n")
	fmt.Printf("  Images found:   %d\n", result.Files)
	fmt.Printf("  Entries:        %d\n", stats.Entries)
	fmt.Printf("  Skipped:        %d\n", result.Skipped)
	fmt.Printf("  Dimension:      %d\n", stats.Dimension)
	fmt.Printf("  Elapsed:        %s\n", formatDuration(result.Duration))

	if len(stats.PerLabel) > 0 {
		labels := make([]string, 0, len(stats.PerLabel))
		for l := range stats.PerLabel {
			labels = append(labels, l)
		}
		sort.Strings(labels)
		fmt.Printf("\nLabels (%d):\n", len(labels))
		for _, l := range labels {
			fmt.Printf("  %-32s %d\n", l, stats.PerLabel[l])
		}
	}

	if len(result.Errors) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}
	return nil
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
