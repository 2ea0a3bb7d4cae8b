package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fornello/stock-service/internal/nfimport"
)

var parseOutput string

// parseCmd represents the parse command
var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Parse a spreadsheet locally without touching the database",
	Long: `Parse a stock movement spreadsheet (XLSX) and show how each row would be
read: movement date, ingredient, quantities, and cost. Rows are classified
offline against an empty catalog, so mapping statuses only distinguish
invalid rows from parseable ones. Use the import command to create a batch.`,
	Example: `  stock-service parse ./data/movimentacoes.xlsx
  stock-service parse ./data/movimentacoes.xlsx --output json`,
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().StringVar(&parseOutput, "output", "table", "Output format: table or json")
}

func runParse(cmd *cobra.Command, args []string) error {
	filePath := args[0]

	logger.Info().Str("file", filePath).Msg("Reading file")
	content, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	sheetName, rows, err := nfimport.ReadFirstSheet(content)
	if err != nil {
		return fmt.Errorf("failed to read workbook: %w", err)
	}

	headerIdx := nfimport.FindHeaderRow(rows)
	if headerIdx < 0 {
		return fmt.Errorf("table header not found in worksheet %q", sheetName)
	}

	lookup := nfimport.NewLookup(nil, nil, nil)
	lines := make([]*nfimport.Line, 0, len(rows)-headerIdx-1)
	for i := headerIdx + 1; i < len(rows); i++ {
		if nfimport.IsEmptyRow(rows[i]) {
			continue
		}
		line := nfimport.ParseRow(rows[i], i+1)
		nfimport.ClassifyLine(line, lookup)
		lines = append(lines, line)
	}

	logger.Info().Str("worksheet", sheetName).Int("rows", len(lines)).Msg("Parsed worksheet")

	switch strings.ToLower(parseOutput) {
	case "json":
		return outputJSON(lines)
	case "table":
		outputParseTable(sheetName, lines)
	default:
		return fmt.Errorf("invalid output format: %s (use 'table' or 'json')", parseOutput)
	}

	return nil
}

func outputParseTable(sheetName string, lines []*nfimport.Line) {
	fmt.Printf("\nParse results for worksheet %q\n", sheetName)
	fmt.Println(strings.Repeat("-", 60))

	invalid := 0
	for _, line := range lines {
		if line.Status == nfimport.StatusInvalid {
			invalid++
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintf(w, "Metric\tValue\n")
	fmt.Fprintf(w, "------\t-----\n")
	fmt.Fprintf(w, "Total Rows\t%d\n", len(lines))
	fmt.Fprintf(w, "Valid Rows\t%d\n", len(lines)-invalid)
	fmt.Fprintf(w, "Invalid Rows\t%d\n", invalid)
	w.Flush()

	// Show first few invalid rows if any
	if invalid > 0 {
		fmt.Printf("\nInvalid rows:\n")
		fmt.Println(strings.Repeat("-", 60))
		shown := 0
		for _, line := range lines {
			if line.Status != nfimport.StatusInvalid {
				continue
			}
			if shown >= 10 {
				fmt.Printf("... and %d more invalid rows\n", invalid-shown)
				break
			}
			msg := ""
			if line.ErrorMessage != nil {
				msg = *line.ErrorMessage
			}
			fmt.Printf("Row %d (%s): %s\n", line.RowNumber, line.IngredientName, msg)
			shown++
		}
	}

	// Show sample of parsed rows
	if len(lines) > 0 {
		fmt.Printf("\nSample rows (first %d):\n", min(len(lines), 5))
		fmt.Println(strings.Repeat("-", 60))
		for i, line := range lines {
			if i >= 5 {
				break
			}
			qty := "-"
			if line.QtyEntry != nil && line.UnitEntry != nil {
				qty = fmt.Sprintf("%g/%s", *line.QtyEntry, *line.UnitEntry)
			}
			cost := "-"
			if line.CostAmount != nil {
				cost = fmt.Sprintf("R$ %.2f", *line.CostAmount)
			}
			fmt.Printf("%d. %s - %s (Cost: %s)\n", line.RowNumber, line.IngredientName, qty, cost)
		}
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
