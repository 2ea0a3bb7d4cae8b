package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fornello/stock-service/internal/nfimport"
)

var (
	batchesLimit  int
	batchesOutput string
	viewOutput    string
)

// batchesCmd represents the batches command
var batchesCmd = &cobra.Command{
	Use:   "batches",
	Short: "List recent import batches",
	Long: `List recent import batches with their status and classification summary.
Archived batches are not shown.

Output can be formatted as a human-readable table (default) or JSON.`,
	Example: `  stock-service batches
  stock-service batches --limit 10
  stock-service batches --output json`,
	Args: cobra.NoArgs,
	RunE: runBatches,
}

// viewCmd represents the view command
var viewCmd = &cobra.Command{
	Use:   "view <batchId>",
	Short: "Show the full review view of one batch",
	Long: `Show one batch in detail: every line with its status, the pending-mapping
groups with catalog suggestions, and the applied-change history.`,
	Example: `  stock-service view nfb_abc123
  stock-service view nfb_abc123 --output json`,
	Args: cobra.ExactArgs(1),
	RunE: runView,
}

func init() {
	rootCmd.AddCommand(batchesCmd)
	rootCmd.AddCommand(viewCmd)

	batchesCmd.Flags().IntVar(&batchesLimit, "limit", 30, "Maximum number of batches to list")
	batchesCmd.Flags().StringVar(&batchesOutput, "output", "table", "Output format: table or json")
	viewCmd.Flags().StringVar(&viewOutput, "output", "table", "Output format: table or json")
}

func runBatches(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	batches, err := importService().ListBatches(ctx, batchesLimit)
	if err != nil {
		return fmt.Errorf("failed to list batches: %w", err)
	}

	switch strings.ToLower(batchesOutput) {
	case "json":
		return outputJSON(batches)
	case "table":
		outputBatchesTable(batches)
	default:
		return fmt.Errorf("invalid output format: %s (use 'table' or 'json')", batchesOutput)
	}

	return nil
}

func outputBatchesTable(batches []*nfimport.Batch) {
	if len(batches) == 0 {
		fmt.Println("No batches found")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tTOTAL\tREADY\tPENDING\tAPPLIED\tCREATED")
	fmt.Fprintln(w, "--\t----\t------\t-----\t-----\t-------\t-------\t-------")

	for _, b := range batches {
		pending := b.Summary.PendingMapping + b.Summary.PendingConversion
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			b.ID, b.Name, b.Status, b.Summary.Total, b.Summary.Ready,
			pending, b.Summary.Applied, b.CreatedAt.Format("2006-01-02 15:04:05"))
	}

	w.Flush()
}

func runView(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	view, err := importService().GetBatchView(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to load batch: %w", err)
	}

	switch strings.ToLower(viewOutput) {
	case "json":
		return outputJSON(view)
	case "table":
		outputViewTable(view)
	default:
		return fmt.Errorf("invalid output format: %s (use 'table' or 'json')", viewOutput)
	}

	return nil
}

func outputViewTable(view *nfimport.BatchView) {
	displayBatchSummary(view.Batch)

	fmt.Printf("\nLines (%d):\n", len(view.Lines))
	fmt.Println(strings.Repeat("-", 60))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ROW\tINGREDIENT\tSTATUS\tQTY\tUNIT\tCOST\tERROR")
	fmt.Fprintln(w, "---\t----------\t------\t---\t----\t----\t-----")
	for _, line := range view.Lines {
		errCode := "-"
		if line.ErrorCode != nil {
			errCode = *line.ErrorCode
		}
		qty := "-"
		if line.QtyEntry != nil {
			qty = fmt.Sprintf("%g", *line.QtyEntry)
		}
		unit := "-"
		if line.UnitEntry != nil {
			unit = *line.UnitEntry
		}
		cost := "-"
		if line.CostAmount != nil {
			cost = fmt.Sprintf("%.2f", *line.CostAmount)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			line.RowNumber, line.IngredientName, line.Status, qty, unit, cost, errCode)
	}
	w.Flush()

	if len(view.PendingMappingGroups) > 0 {
		fmt.Printf("\nPending mappings (%d):\n", len(view.PendingMappingGroups))
		fmt.Println(strings.Repeat("-", 60))
		for _, group := range view.PendingMappingGroups {
			fmt.Printf("%s (%d lines)\n", group.IngredientName, group.Count)
			for _, s := range group.Suggestions {
				fmt.Printf("  - %s (%s, score %d)\n", s.Name, s.ID, s.Score)
			}
		}
	}
}

func outputJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
