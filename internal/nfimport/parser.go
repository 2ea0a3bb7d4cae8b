package nfimport

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Column layout of the saipos stock movement export, after the header row.
const (
	colDate = iota
	colIngredient
	colMotivo
	colIdentification
	colQtyEntry
	colQtyConsumption
	colCost
	colCostTotal
	colObservation
)

var (
	ptBRDateTimeRe = regexp.MustCompile(`^(\d{2})/(\d{2})/(\d{4})(?:\s+(\d{2}):(\d{2})(?::(\d{2}))?)?$`)
	invoiceRe      = regexp.MustCompile(`(?i)NF\s*:\s*([A-Za-z0-9\-./]+)`)
)

// ParsePtBRDateTime parses "DD/MM/YYYY" optionally followed by "HH:mm[:ss]".
// Returns nil when the value does not match; downstream validation turns a nil
// movement date into an invalid_date classification.
func ParsePtBRDateTime(value string) *time.Time {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return nil
	}
	m := ptBRDateTimeRe.FindStringSubmatch(raw)
	if m == nil {
		return nil
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	hour, min, sec := 0, 0, 0
	if m[4] != "" {
		hour, _ = strconv.Atoi(m[4])
		min, _ = strconv.Atoi(m[5])
	}
	if m[6] != "" {
		sec, _ = strconv.Atoi(m[6])
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return nil
	}
	t := time.Date(year, time.Month(month), day, hour, min, sec, 0, time.Local)
	// Reject rollovers such as 31/02.
	if t.Day() != day || int(t.Month()) != month {
		return nil
	}
	return &t
}

// ParsePtBRDecimal parses a pt-BR formatted decimal: "." as thousands
// separator, "," as decimal separator ("1.234,56" -> 1234.56).
func ParsePtBRDecimal(value string) *float64 {
	raw := strings.TrimSpace(value)
	raw = strings.ReplaceAll(raw, ".", "")
	raw = strings.Replace(raw, ",", ".", 1)
	if raw == "" {
		return nil
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(n, 0) || math.IsNaN(n) {
		return nil
	}
	return &n
}

// ParseDotDecimal parses an already-normalized dot-decimal cell, tolerating a
// single comma as decimal separator.
func ParseDotDecimal(value string) *float64 {
	raw := strings.Replace(strings.TrimSpace(value), ",", ".", 1)
	if raw == "" {
		return nil
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(n, 0) || math.IsNaN(n) {
		return nil
	}
	return &n
}

// ParseQtyUnitCell splits a "10/CX" style cell into quantity and unit. A cell
// without "/" is quantity only.
func ParseQtyUnitCell(value string) (*float64, *string) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, "/")
	if len(parts) >= 2 {
		unit := strings.ToUpper(strings.TrimSpace(parts[1]))
		var unitPtr *string
		if unit != "" {
			unitPtr = &unit
		}
		return ParsePtBRDecimal(strings.TrimSpace(parts[0])), unitPtr
	}
	return ParsePtBRDecimal(raw), nil
}

// ExtractInvoiceNumber scans a free-text identification cell for "NF: <token>".
func ExtractInvoiceNumber(value string) *string {
	m := invoiceRe.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil || m[1] == "" {
		return nil
	}
	return &m[1]
}

// IsEmptyRow reports whether every cell in the row is blank.
func IsEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// FindHeaderRow locates the table header by its literal marker pair in the
// first two columns. Returns -1 when not found.
func FindHeaderRow(rows [][]string) int {
	for i, row := range rows {
		if len(row) < 2 {
			continue
		}
		if NormalizeName(row[0]) == "DATA:" && NormalizeName(row[1]) == "INGREDIENTE" {
			return i
		}
	}
	return -1
}

// rawCellSnapshot is the audit snapshot stored with each line, keyed by the
// export's original column names.
type rawCellSnapshot struct {
	Row   []string          `json:"row"`
	Cells map[string]string `json:"cells"`
}

func cellAt(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// ParseRow converts one raw spreadsheet row into a candidate line. The caller
// is responsible for skipping blank rows and assigning identifiers.
func ParseRow(raw []string, rowNumber int) *Line {
	ingredientName := cellAt(raw, colIngredient)
	qtyEntry, unitEntry := ParseQtyUnitCell(cellAt(raw, colQtyEntry))
	qtyConsumption, unitConsumption := ParseQtyUnitCell(cellAt(raw, colQtyConsumption))

	movementUnit := unitEntry
	if movementUnit == nil {
		movementUnit = unitConsumption
	}

	line := &Line{
		RowNumber:                rowNumber,
		MovementAt:               ParsePtBRDateTime(cellAt(raw, colDate)),
		IngredientName:           ingredientName,
		IngredientNameNormalized: NormalizeName(ingredientName),
		Motivo:                   optionalCell(raw, colMotivo),
		Identification:           optionalCell(raw, colIdentification),
		InvoiceNumber:            ExtractInvoiceNumber(cellAt(raw, colIdentification)),
		QtyEntry:                 qtyEntry,
		UnitEntry:                unitEntry,
		QtyConsumption:           qtyConsumption,
		UnitConsumption:          unitConsumption,
		MovementUnit:             movementUnit,
		CostAmount:               ParseDotDecimal(cellAt(raw, colCost)),
		CostTotalAmount:          ParseDotDecimal(cellAt(raw, colCostTotal)),
		Observation:              optionalCell(raw, colObservation),
	}

	line.SourceFingerprint = Fingerprint(line, cellAt(raw, colDate))
	line.RawData = snapshotJSON(raw)
	return line
}

func optionalCell(row []string, idx int) *string {
	v := cellAt(row, idx)
	if v == "" {
		return nil
	}
	return &v
}

func snapshotJSON(raw []string) string {
	snapshot := rawCellSnapshot{
		Row: raw,
		Cells: map[string]string{
			"data":          cellAt(raw, colDate),
			"ingrediente":   cellAt(raw, colIngredient),
			"motivo":        cellAt(raw, colMotivo),
			"identificacao": cellAt(raw, colIdentification),
			"qtdEntrada":    cellAt(raw, colQtyEntry),
			"qtdConsumo":    cellAt(raw, colQtyConsumption),
			"custo":         cellAt(raw, colCost),
			"custoTotal":    cellAt(raw, colCostTotal),
			"observacao":    cellAt(raw, colObservation),
		},
	}
	data, _ := json.Marshal(snapshot)
	return string(data)
}
