package nfimport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flourItem() *Item {
	return &Item{
		ID:            "itm_flour",
		Name:          "Farinha de Trigo",
		PurchaseUm:    StringPtr("CX"),
		ConsumptionUm: StringPtr("KG"),
		Active:        true,
	}
}

func classifiedLine(t *testing.T, row []string, lookup *Lookup) *Line {
	t.Helper()
	line := ParseRow(row, 5)
	ClassifyLine(line, lookup)
	return line
}

// TestClassifyLineStageOrder verifies that validation short-circuits in a
// fixed order before mapping is even attempted.
func TestClassifyLineStageOrder(t *testing.T) {
	lookup := NewLookup([]*Item{flourItem()}, nil, nil)

	tests := []struct {
		name       string
		mutate     func(row []string)
		wantStatus LineStatus
		wantCode   string
	}{
		{
			name:       "wrong motivo",
			mutate:     func(row []string) { row[2] = "Saída por venda" },
			wantStatus: StatusInvalid,
			wantCode:   ErrMotivoNotSupported,
		},
		{
			name: "bad date beats missing invoice",
			mutate: func(row []string) {
				row[0] = "99/99/9999"
				row[3] = "sem nota"
			},
			wantStatus: StatusInvalid,
			wantCode:   ErrInvalidDate,
		},
		{
			name:       "missing invoice",
			mutate:     func(row []string) { row[3] = "entrada avulsa" },
			wantStatus: StatusInvalid,
			wantCode:   ErrMissingInvoice,
		},
		{
			name:       "zero cost",
			mutate:     func(row []string) { row[6] = "0" },
			wantStatus: StatusInvalid,
			wantCode:   ErrInvalidCost,
		},
		{
			name:       "negative cost",
			mutate:     func(row []string) { row[6] = "-3.50" },
			wantStatus: StatusInvalid,
			wantCode:   ErrInvalidCost,
		},
		{
			name:       "unknown ingredient",
			mutate:     func(row []string) { row[1] = "Fermento Biológico" },
			wantStatus: StatusPendingMapping,
			wantCode:   ErrItemNotMapped,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := sampleRow()
			tt.mutate(row)
			line := classifiedLine(t, row, lookup)

			assert.Equal(t, tt.wantStatus, line.Status)
			require.NotNil(t, line.ErrorCode)
			assert.Equal(t, tt.wantCode, *line.ErrorCode)
		})
	}
}

func TestClassifyLineMotivoIsCaseAndAccentInsensitive(t *testing.T) {
	lookup := NewLookup([]*Item{flourItem()}, nil, nil)

	row := sampleRow()
	row[2] = "  entrada POR nf "
	line := classifiedLine(t, row, lookup)
	assert.Equal(t, StatusReady, line.Status)
}

func TestClassifyLineSameUnitConversion(t *testing.T) {
	lookup := NewLookup([]*Item{flourItem()}, nil, nil)

	line := classifiedLine(t, sampleRow(), lookup)

	require.Equal(t, StatusReady, line.Status)
	assert.Nil(t, line.ErrorCode)
	require.NotNil(t, line.MappedItemID)
	assert.Equal(t, "itm_flour", *line.MappedItemID)
	assert.Equal(t, MappingExact, *line.MappingSource)
	assert.Equal(t, ConversionSameUnit, *line.ConversionSource)
	assert.Equal(t, 25.50, *line.ConvertedCostAmount)
	assert.Equal(t, 1.0, *line.ConversionFactorUsed)
	assert.Equal(t, "CX", *line.TargetUnit)
}

func TestClassifyLineItemFactorConversion(t *testing.T) {
	item := flourItem()
	item.PurchaseToConsumptionFactor = Float64Ptr(10)
	lookup := NewLookup([]*Item{item}, nil, nil)

	// Movement in KG (consumption unit), item cost tracked in CX (purchase
	// unit): reverse direction multiplies.
	row := sampleRow()
	row[4] = "100/KG"
	row[5] = ""
	line := classifiedLine(t, row, lookup)

	require.Equal(t, StatusReady, line.Status)
	assert.Equal(t, ConversionItemFactorReverse, *line.ConversionSource)
	assert.Equal(t, 255.0, *line.ConvertedCostAmount)
}

func TestClassifyLineMeasurementTableConversion(t *testing.T) {
	item := flourItem()
	item.PurchaseUm = StringPtr("KG")
	item.ConsumptionUm = nil
	lookup := NewLookup([]*Item{item}, nil, []*UnitConversion{
		{ID: "cv1", FromUnit: "CX", ToUnit: "KG", Factor: 5, Active: true},
	})

	line := classifiedLine(t, sampleRow(), lookup)

	require.Equal(t, StatusReady, line.Status)
	assert.Equal(t, ConversionMeasurementDirect, *line.ConversionSource)
	assert.Equal(t, 25.50/5, *line.ConvertedCostAmount)
}

func TestClassifyLineNoConversionPath(t *testing.T) {
	item := flourItem()
	item.PurchaseUm = StringPtr("LT")
	item.ConsumptionUm = nil
	lookup := NewLookup([]*Item{item}, nil, nil)

	line := classifiedLine(t, sampleRow(), lookup)

	require.Equal(t, StatusPendingConversion, line.Status)
	assert.Equal(t, ErrConversionNotFound, *line.ErrorCode)
	assert.Equal(t, "Sem conversão automática de CX para LT", *line.ErrorMessage)
	assert.Equal(t, "LT", *line.TargetUnit)
}

func TestClassifyLineManualFactorWins(t *testing.T) {
	item := flourItem()
	item.PurchaseUm = StringPtr("LT")
	item.ConsumptionUm = nil
	lookup := NewLookup([]*Item{item}, nil, nil)

	line := ParseRow(sampleRow(), 5)
	line.ManualConversionFactor = Float64Ptr(2)
	ClassifyLine(line, lookup)

	require.Equal(t, StatusReady, line.Status)
	assert.Equal(t, ConversionManual, *line.ConversionSource)
	assert.Equal(t, 12.75, *line.ConvertedCostAmount)
}

func TestClassifyLineItemWithoutUnits(t *testing.T) {
	item := flourItem()
	item.PurchaseUm = nil
	item.ConsumptionUm = nil
	lookup := NewLookup([]*Item{item}, nil, nil)

	line := classifiedLine(t, sampleRow(), lookup)

	require.Equal(t, StatusPendingConversion, line.Status)
	assert.Equal(t, ErrItemUnitMissing, *line.ErrorCode)
}

func TestClassifyLineMissingMovementUnit(t *testing.T) {
	lookup := NewLookup([]*Item{flourItem()}, nil, nil)

	row := sampleRow()
	row[4] = "10"
	row[5] = "100"
	line := classifiedLine(t, row, lookup)

	require.Equal(t, StatusPendingConversion, line.Status)
	assert.Equal(t, ErrMissingMovementUnit, *line.ErrorCode)
}

// TestAutoMapAmbiguousExactMatch verifies that two items sharing a normalized
// name never auto-map; the line must go through manual review.
func TestAutoMapAmbiguousExactMatch(t *testing.T) {
	items := []*Item{
		{ID: "itm_a", Name: "Farinha de Trigo", PurchaseUm: StringPtr("CX"), Active: true},
		{ID: "itm_b", Name: "FARINHA DE TRIGO", PurchaseUm: StringPtr("CX"), Active: true},
	}
	lookup := NewLookup(items, nil, nil)

	line := classifiedLine(t, sampleRow(), lookup)

	assert.Equal(t, StatusPendingMapping, line.Status)
	assert.Nil(t, line.MappedItemID)
}

func TestAutoMapViaAlias(t *testing.T) {
	item := flourItem()
	lookup := NewLookup([]*Item{item}, []*ItemAlias{
		{
			ID:              "als1",
			SourceSystem:    SourceSystem,
			SourceType:      SourceType,
			AliasNormalized: "FARINHA ESPECIAL",
			ItemID:          item.ID,
			Active:          true,
		},
	}, nil)

	row := sampleRow()
	row[1] = "Farinha Especial"
	line := classifiedLine(t, row, lookup)

	require.Equal(t, StatusReady, line.Status)
	assert.Equal(t, MappingAlias, *line.MappingSource)
	assert.Equal(t, item.ID, *line.MappedItemID)
}

func TestReclassifyLineKeepsManualMapping(t *testing.T) {
	item := flourItem()
	lookup := NewLookup([]*Item{item}, nil, nil)

	line := ParseRow(sampleRow(), 5)
	line.MappedItemID = StringPtr(item.ID)
	line.MappingSource = StringPtr(MappingManual)
	ReclassifyLine(line, lookup)

	require.Equal(t, StatusReady, line.Status)
	assert.Equal(t, MappingManual, *line.MappingSource)
}

func TestReclassifyLineMappedItemGone(t *testing.T) {
	lookup := NewLookup(nil, nil, nil)

	line := ParseRow(sampleRow(), 5)
	line.MappedItemID = StringPtr("itm_gone")
	line.Status = StatusReady
	ReclassifyLine(line, lookup)

	require.Equal(t, StatusPendingMapping, line.Status)
	assert.Equal(t, ErrItemNotFound, *line.ErrorCode)
	assert.Nil(t, line.MappedItemName)
}
