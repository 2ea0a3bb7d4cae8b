package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fornello/stock-service/internal/database"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Long: `Apply the embedded database schema. Every statement is idempotent
(CREATE TABLE IF NOT EXISTS), so the command is safe to run repeatedly.`,
	Example: `  stock-service migrate`,
	Args:    cobra.NoArgs,
	RunE:    runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if err := database.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	logger.Info().Msg("Schema applied")
	return nil
}
