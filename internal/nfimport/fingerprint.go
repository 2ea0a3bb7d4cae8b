package nfimport

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// fingerprintInput is the canonical identity of a row. Field order is fixed so
// the marshaled JSON, and therefore the hash, is stable across uploads.
type fingerprintInput struct {
	SourceSystem    string   `json:"sourceSystem"`
	SourceType      string   `json:"sourceType"`
	MovementAt      string   `json:"movementAt"`
	IngredientName  string   `json:"ingredientName"`
	InvoiceNumber   *string  `json:"invoiceNumber"`
	QtyEntry        *float64 `json:"qtyEntry"`
	UnitEntry       *string  `json:"unitEntry"`
	QtyConsumption  *float64 `json:"qtyConsumption"`
	UnitConsumption *string  `json:"unitConsumption"`
	CostAmount      *float64 `json:"costAmount"`
	CostTotalAmount *float64 `json:"costTotalAmount"`
}

// Fingerprint computes the deterministic content hash of a candidate line.
// Semantically identical rows always hash to the same value regardless of raw
// cell formatting; rawDate is used only when the movement date failed to parse.
func Fingerprint(line *Line, rawDate string) string {
	movementAt := rawDate
	if line.MovementAt != nil {
		movementAt = line.MovementAt.UTC().Format(time.RFC3339)
	}

	input := fingerprintInput{
		SourceSystem:    SourceSystem,
		SourceType:      SourceType,
		MovementAt:      movementAt,
		IngredientName:  line.IngredientNameNormalized,
		InvoiceNumber:   line.InvoiceNumber,
		QtyEntry:        line.QtyEntry,
		UnitEntry:       line.UnitEntry,
		QtyConsumption:  line.QtyConsumption,
		UnitConsumption: line.UnitConsumption,
		CostAmount:      line.CostAmount,
		CostTotalAmount: line.CostTotalAmount,
	}

	data, _ := json.Marshal(input)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
