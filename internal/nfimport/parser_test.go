package nfimport

import (
	"testing"
	"time"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Farinha de Trigo", "FARINHA DE TRIGO"},
		{"  açúcar   refinado  ", "ACUCAR REFINADO"},
		{"PÃO FRANCÊS", "PAO FRANCES"},
		{"óleo\tde\nsoja", "OLEO DE SOJA"},
		{"", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		if got := NormalizeName(tt.input); got != tt.expected {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestParsePtBRDateTime(t *testing.T) {
	tests := []struct {
		input    string
		expected *time.Time
	}{
		{"05/08/2026", TimePtr(time.Date(2026, 8, 5, 0, 0, 0, 0, time.Local))},
		{"05/08/2026 10:30", TimePtr(time.Date(2026, 8, 5, 10, 30, 0, 0, time.Local))},
		{"05/08/2026 10:30:45", TimePtr(time.Date(2026, 8, 5, 10, 30, 45, 0, time.Local))},
		{"31/02/2026", nil}, // rollover
		{"2026-08-05", nil},
		{"not a date", nil},
		{"", nil},
	}

	for _, tt := range tests {
		got := ParsePtBRDateTime(tt.input)
		if tt.expected == nil {
			if got != nil {
				t.Errorf("ParsePtBRDateTime(%q) = %v, want nil", tt.input, got)
			}
			continue
		}
		if got == nil || !got.Equal(*tt.expected) {
			t.Errorf("ParsePtBRDateTime(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestParsePtBRDecimal(t *testing.T) {
	tests := []struct {
		input    string
		expected *float64
	}{
		{"1.234,56", Float64Ptr(1234.56)},
		{"25,5", Float64Ptr(25.5)},
		{"100", Float64Ptr(100)},
		{"", nil},
		{"abc", nil},
	}

	for _, tt := range tests {
		got := ParsePtBRDecimal(tt.input)
		if tt.expected == nil {
			if got != nil {
				t.Errorf("ParsePtBRDecimal(%q) = %v, want nil", tt.input, *got)
			}
			continue
		}
		if got == nil || *got != *tt.expected {
			t.Errorf("ParsePtBRDecimal(%q) = %v, want %v", tt.input, got, *tt.expected)
		}
	}
}

func TestParseQtyUnitCell(t *testing.T) {
	tests := []struct {
		input    string
		wantQty  *float64
		wantUnit *string
	}{
		{"10/CX", Float64Ptr(10), StringPtr("CX")},
		{"2,5/KG", Float64Ptr(2.5), StringPtr("KG")},
		{"10/cx", Float64Ptr(10), StringPtr("CX")},
		{"15", Float64Ptr(15), nil},
		{"", nil, nil},
	}

	for _, tt := range tests {
		qty, unit := ParseQtyUnitCell(tt.input)
		if (qty == nil) != (tt.wantQty == nil) || (qty != nil && *qty != *tt.wantQty) {
			t.Errorf("ParseQtyUnitCell(%q) qty = %v, want %v", tt.input, qty, tt.wantQty)
		}
		if (unit == nil) != (tt.wantUnit == nil) || (unit != nil && *unit != *tt.wantUnit) {
			t.Errorf("ParseQtyUnitCell(%q) unit = %v, want %v", tt.input, unit, tt.wantUnit)
		}
	}
}

func TestExtractInvoiceNumber(t *testing.T) {
	tests := []struct {
		input    string
		expected *string
	}{
		{"NF: 12345", StringPtr("12345")},
		{"nf:987-6/A", StringPtr("987-6/A")},
		{"Entrada NF : ABC.123", StringPtr("ABC.123")},
		{"sem nota fiscal", nil},
		{"", nil},
	}

	for _, tt := range tests {
		got := ExtractInvoiceNumber(tt.input)
		if tt.expected == nil {
			if got != nil {
				t.Errorf("ExtractInvoiceNumber(%q) = %q, want nil", tt.input, *got)
			}
			continue
		}
		if got == nil || *got != *tt.expected {
			t.Errorf("ExtractInvoiceNumber(%q) = %v, want %q", tt.input, got, *tt.expected)
		}
	}
}

func TestFindHeaderRow(t *testing.T) {
	rows := [][]string{
		{"Relatório de Movimentações"},
		{"01/08/2026", "31/08/2026"},
		{"Data:", "Ingrediente", "Motivo"},
		{"05/08/2026", "FARINHA", "Entrada por NF"},
	}
	if got := FindHeaderRow(rows); got != 2 {
		t.Errorf("FindHeaderRow = %d, want 2", got)
	}
	if got := FindHeaderRow([][]string{{"a", "b"}, {"c"}}); got != -1 {
		t.Errorf("FindHeaderRow on rows without header = %d, want -1", got)
	}
}

func TestParseRow(t *testing.T) {
	raw := []string{
		"05/08/2026 10:30",
		"Farinha de Trigo",
		"Entrada por NF",
		"NF: 12345",
		"10/CX",
		"100/UN",
		"25.50",
		"255.00",
		"obs",
	}
	line := ParseRow(raw, 7)

	if line.RowNumber != 7 {
		t.Errorf("RowNumber = %d, want 7", line.RowNumber)
	}
	if line.MovementAt == nil {
		t.Fatal("MovementAt is nil")
	}
	if line.IngredientNameNormalized != "FARINHA DE TRIGO" {
		t.Errorf("IngredientNameNormalized = %q", line.IngredientNameNormalized)
	}
	if line.InvoiceNumber == nil || *line.InvoiceNumber != "12345" {
		t.Errorf("InvoiceNumber = %v, want 12345", line.InvoiceNumber)
	}
	if line.QtyEntry == nil || *line.QtyEntry != 10 {
		t.Errorf("QtyEntry = %v, want 10", line.QtyEntry)
	}
	if line.MovementUnit == nil || *line.MovementUnit != "CX" {
		t.Errorf("MovementUnit = %v, want CX", line.MovementUnit)
	}
	if line.CostAmount == nil || *line.CostAmount != 25.50 {
		t.Errorf("CostAmount = %v, want 25.50", line.CostAmount)
	}
	if line.SourceFingerprint == "" {
		t.Error("SourceFingerprint is empty")
	}
	if line.RawData == "" {
		t.Error("RawData is empty")
	}
}
