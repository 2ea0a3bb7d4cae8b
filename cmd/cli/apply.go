package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var applyActor string

// applyCmd represents the apply command
var applyCmd = &cobra.Command{
	Use:   "apply <batchId>",
	Short: "Apply every ready line of a batch to the item catalog",
	Long: `Apply a reviewed batch: each ready line updates the purchase cost of its
mapped item and an audit record is written so the batch can be rolled back
later. Lines that are pending, invalid, or duplicates of already-applied
rows are left untouched.`,
	Example: `  stock-service apply nfb_abc123
  stock-service apply nfb_abc123 --actor joao`,
	Args: cobra.ExactArgs(1),
	RunE: runApply,
}

func init() {
	rootCmd.AddCommand(applyCmd)

	applyCmd.Flags().StringVar(&applyActor, "actor", "", "Who is applying the batch")
}

func runApply(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	var actor *string
	if applyActor != "" {
		actor = &applyActor
	}

	result, err := importService().ApplyBatch(ctx, args[0], actor)
	if err != nil {
		return fmt.Errorf("apply failed: %w", err)
	}

	logger.Info().
		Int("applied", result.Applied).
		Int("errors", result.Errors).
		Msg("Batch applied")

	fmt.Printf("Applied %d lines (%d errors, %d skipped as duplicates)\n",
		result.Applied, result.Errors, result.Summary.SkippedDuplicate)

	return nil
}
