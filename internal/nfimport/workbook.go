package nfimport

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ReadFirstSheet opens a workbook from memory and returns the name and raw
// cell rows of its first sheet.
func ReadFirstSheet(content []byte) (string, [][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return "", nil, fmt.Errorf("failed to read worksheet %s: %w", sheets[0], err)
	}
	return sheets[0], rows, nil
}
