package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"pestmatch/internal/adapter/store"
)

var (
	historyLimit int
	historyJSON  bool
	historyPrune int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent comparisons",
	Long: `List the comparison log kept in history.path, newest first.

Examples:
  pestmatch history
  pestmatch history --limit 50 --json
  pestmatch history --prune 1000     # keep only the newest 1000 records`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of records (0 for all)")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "output as JSON")
	historyCmd.Flags().IntVar(&historyPrune, "prune", -1, "delete all but the newest N records")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if !cfg.History.Enabled {
		return fmt.Errorf("history is disabled (history.enabled: false)")
	}

	hs, err := openHistory(cfg, logger)
	if err != nil {
		return err
	}
	defer hs.Close()

	if historyPrune >= 0 {
		st, ok := hs.(*store.HistoryStore)
		if !ok {
			return fmt.Errorf("prune requires the persistent history store")
		}
		removed, err := st.Prune(historyPrune)
		if err != nil {
			return fmt.Errorf("prune failed: %w", err)
		}
		fmt.Printf("Removed %d records.\n", removed)
		return nil
	}

	records, err := hs.List(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}

	if historyJSON {
		output, _ := json.MarshalIndent(records, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	total, _ := hs.Count()
	if len(records) == 0 {
		fmt.Println("No comparisons recorded.")
		return nil
	}
	fmt.Printf("Showing %d of %d comparisons:\n\n", len(records), total)
	for _, r := range records {
		fmt.Printf("  %s  %-28s %-8s %6.2f%%\n", r.CreatedAt.Local().Format(time.DateTime), r.Label, r.Category, r.Similarity)
	}
	return nil
}
