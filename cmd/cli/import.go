package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fornello/stock-service/internal/database"
	"github.com/fornello/stock-service/internal/nfimport"
)

var (
	importName       string
	importUploadedBy string
	importDryRun     bool
)

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a stock movement spreadsheet into a new batch",
	Long: `Import a stock movement spreadsheet (XLSX) exported from the saipos POS.
The file is parsed, every row is classified against the item catalog, and the
resulting batch is persisted for review. Nothing is applied yet: use the apply
command once the batch has been reviewed.`,
	Example: `  stock-service import ./data/movimentacoes.xlsx
  stock-service import ./data/movimentacoes.xlsx --name "Agosto 2026" --uploaded-by joao
  stock-service import ./data/movimentacoes.xlsx --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVar(&importName, "name", "", "Batch name (defaults to an auto-generated name)")
	importCmd.Flags().StringVar(&importUploadedBy, "uploaded-by", "", "Who is uploading the file")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Classify against the live catalog without persisting anything")
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	filePath := args[0]

	logger.Info().Str("file", filePath).Msg("Reading file")
	content, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	input := nfimport.CreateBatchInput{
		FileName:  filepath.Base(filePath),
		Content:   content,
		BatchName: importName,
	}
	if importUploadedBy != "" {
		input.UploadedBy = &importUploadedBy
	}

	svc := importService()
	if importDryRun {
		mem, err := seedMemStore(ctx)
		if err != nil {
			return fmt.Errorf("failed to load catalog for dry run: %w", err)
		}
		svc = nfimport.NewService(mem, *logger)
	}

	batch, err := svc.CreateBatchFromFile(ctx, input)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	if importDryRun {
		logger.Info().Str("status", string(batch.Status)).Msg("Dry run complete, nothing persisted")
	} else {
		logger.Info().Str("batch_id", batch.ID).Str("status", string(batch.Status)).Msg("Batch created")
	}
	displayBatchSummary(batch)

	return nil
}

// seedMemStore copies the live catalog into a MemStore so a dry run classifies
// against real items without writing a batch.
func seedMemStore(ctx context.Context) (*nfimport.MemStore, error) {
	pg := database.NewPgStore(database.Pool())
	mem := nfimport.NewMemStore()

	items, err := pg.ListActiveItems(ctx)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		mem.SeedItem(item)
	}

	aliases, err := pg.ListAliases(ctx, nfimport.SourceSystem, nfimport.SourceType)
	if err != nil {
		return nil, err
	}
	for _, alias := range aliases {
		mem.SeedAlias(alias)
	}

	conversions, err := pg.ListUnitConversions(ctx)
	if err != nil {
		return nil, err
	}
	for _, conv := range conversions {
		mem.SeedConversion(conv)
	}

	return mem, nil
}

func displayBatchSummary(batch *nfimport.Batch) {
	fmt.Printf("\nBatch %s (%s)\n", batch.ID, batch.Name)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "STATUS\tCOUNT")
	fmt.Fprintln(w, "------\t-----")
	fmt.Fprintf(w, "total\t%d\n", batch.Summary.Total)
	fmt.Fprintf(w, "ready\t%d\n", batch.Summary.Ready)
	fmt.Fprintf(w, "pending_mapping\t%d\n", batch.Summary.PendingMapping)
	fmt.Fprintf(w, "pending_conversion\t%d\n", batch.Summary.PendingConversion)
	fmt.Fprintf(w, "applied\t%d\n", batch.Summary.Applied)
	fmt.Fprintf(w, "skipped_duplicate\t%d\n", batch.Summary.SkippedDuplicate)
	fmt.Fprintf(w, "invalid\t%d\n", batch.Summary.Invalid)
	fmt.Fprintf(w, "error\t%d\n", batch.Summary.Error)
	w.Flush()
}
