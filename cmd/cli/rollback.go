package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var rollbackActor string

// rollbackCmd represents the rollback command
var rollbackCmd = &cobra.Command{
	Use:   "rollback <batchId>",
	Short: "Undo a previously applied batch",
	Long: `Roll back an applied batch: each audit record is walked newest-first and the
previous cost of the item is restored. A change whose cost was edited by hand
after the import is reported as a conflict and left alone.`,
	Example: `  stock-service rollback nfb_abc123
  stock-service rollback nfb_abc123 --actor joao`,
	Args: cobra.ExactArgs(1),
	RunE: runRollback,
}

func init() {
	rootCmd.AddCommand(rollbackCmd)

	rollbackCmd.Flags().StringVar(&rollbackActor, "actor", "", "Who is rolling back the batch")
}

func runRollback(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	var actor *string
	if rollbackActor != "" {
		actor = &rollbackActor
	}

	result, err := importService().RollbackBatch(ctx, args[0], actor)
	if err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}

	logger.Info().
		Int("rolled_back", result.RolledBack).
		Int("conflicts", result.Conflicts).
		Int("errors", result.Errors).
		Msg("Batch rolled back")

	fmt.Printf("Rolled back %d changes (%d conflicts, %d errors)\n",
		result.RolledBack, result.Conflicts, result.Errors)

	return nil
}
