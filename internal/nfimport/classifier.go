package nfimport

import "math"

// motivoEntradaNF is the only business reason code this importer accepts.
const motivoEntradaNF = "ENTRADA POR NF"

func markInvalid(line *Line, code, message string) {
	line.Status = StatusInvalid
	line.ErrorCode = &code
	line.ErrorMessage = &message
}

func markPendingMapping(line *Line, code, message string) {
	line.Status = StatusPendingMapping
	line.ErrorCode = &code
	line.ErrorMessage = &message
	line.MappedItemID = nil
	line.MappedItemName = nil
	line.MappingSource = nil
	line.TargetUnit = nil
	line.ConvertedCostAmount = nil
	line.ConversionSource = nil
	line.ConversionFactorUsed = nil
}

// setConversionOutcome applies a conversion result to the line, clearing the
// error fields on success.
func setConversionOutcome(line *Line, item *Item, conv ConversionResult) {
	line.Status = conv.Status
	if conv.Status == StatusReady {
		line.ErrorCode = nil
		line.ErrorMessage = nil
	} else {
		code, msg := conv.ErrorCode, conv.ErrorMessage
		line.ErrorCode = &code
		line.ErrorMessage = &msg
	}
	if conv.TargetUnit != nil {
		line.TargetUnit = conv.TargetUnit
	} else {
		line.TargetUnit = ResolveTargetUnit(item)
	}
	line.ConvertedCostAmount = conv.ConvertedCostAmount
	line.ConversionSource = conv.ConversionSource
	line.ConversionFactorUsed = conv.ConversionFactorUsed
}

// ClassifyLine assigns exactly one status to a candidate line, short-circuiting
// in a fixed stage order: business rules, ingredient mapping, unit conversion.
// Re-running it against the same lookup is idempotent.
func ClassifyLine(line *Line, lookup *Lookup) {
	motivo := ""
	if line.Motivo != nil {
		motivo = *line.Motivo
	}
	if NormalizeName(motivo) != motivoEntradaNF {
		markInvalid(line, ErrMotivoNotSupported, "Motivo diferente de Entrada por NF")
		return
	}
	if line.MovementAt == nil {
		markInvalid(line, ErrInvalidDate, "Data inválida")
		return
	}
	if line.InvoiceNumber == nil {
		markInvalid(line, ErrMissingInvoice, "NF não identificada")
		return
	}
	if line.CostAmount == nil || math.IsNaN(*line.CostAmount) || math.IsInf(*line.CostAmount, 0) || *line.CostAmount <= 0 {
		markInvalid(line, ErrInvalidCost, "Custo inválido")
		return
	}

	item, source := lookup.AutoMap(line.IngredientName)
	if item == nil {
		markPendingMapping(line, ErrItemNotMapped, "Ingrediente não mapeado")
		return
	}

	line.MappedItemID = &item.ID
	line.MappedItemName = &item.Name
	line.MappingSource = &source
	setConversionOutcome(line, item, ResolveConversion(line, item, lookup))
}

// ReclassifyLine re-runs classification for a persisted line during recompute.
// Lines already mapped keep their mapping (re-resolving only the conversion);
// unmapped lines go through auto-mapping again. A mapped item that no longer
// exists in the catalog demotes the line back to pending_mapping.
func ReclassifyLine(line *Line, lookup *Lookup) {
	if line.MappedItemID != nil {
		item := lookup.ItemByID(*line.MappedItemID)
		if item == nil {
			markPendingMapping(line, ErrItemNotFound, "Item mapeado não existe mais")
			return
		}
		line.MappedItemName = &item.Name
		setConversionOutcome(line, item, ResolveConversion(line, item, lookup))
		return
	}
	ClassifyLine(line, lookup)
}
