package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	compareTopK int
	compareJSON bool
)

var compareCmd = &cobra.Command{
	Use:   "compare <image>",
	Short: "Find the closest reference image",
	Long: `Build the reference index, then match one image against it.

Examples:
  pestmatch compare foto.jpg
  pestmatch compare foto.jpg --top-k 5 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runCompare,
}

func init() {
	rootCmd.AddCommand(compareCmd)
	compareCmd.Flags().IntVarP(&compareTopK, "top-k", "k", 0, "list the k nearest references instead of the best match")
	compareCmd.Flags().BoolVar(&compareJSON, "json", false, "output as JSON")
}

func runCompare(cmd *cobra.Command, args []string) error {
	imagePath := args[0]
	if _, err := os.Stat(imagePath); err != nil {
		return fmt.Errorf("image not found: %w", err)
	}

	svc, err := newService(GetConfig(), logger, serviceOptions{history: compareTopK == 0})
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx := cmd.Context()

	if compareTopK > 0 {
		ranked, err := svc.compare.CompareTopK(ctx, imagePath, compareTopK)
		if err != nil {
			return fmt.Errorf("comparison failed: %w", err)
		}
		if compareJSON {
			output, _ := json.MarshalIndent(ranked, "", "  ")
			fmt.Println(string(output))
			return nil
		}
		fmt.Printf("Nearest %d references for %s:\n\n", len(ranked), imagePath)
		for i, c := range ranked {
			fmt.Printf("  [%d] %-28s %-8s distance=%.4f  %s\n", i+1, c.Label, c.Category, c.Distance, c.Path)
		}
		return nil
	}

	result, err := svc.compare.Compare(ctx, imagePath)
	if err != nil {
		return fmt.Errorf("comparison failed: %w", err)
	}

	if compareJSON {
		output, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(output))
		return nil
	}
	fmt.Printf("Label:      %s\n", result.Label)
	fmt.Printf("Category:   %s\n", result.Category)
	fmt.Printf("Similarity: %.2f%%\n", result.Similarity)
	return nil
}
