package nfimport

import (
	"fmt"
	"math"
)

// ConversionResult is the outcome of resolving a line's cost into the mapped
// item's target unit.
type ConversionResult struct {
	Status               LineStatus
	ErrorCode            string
	ErrorMessage         string
	TargetUnit           *string
	ConvertedCostAmount  *float64
	ConversionSource     *string
	ConversionFactorUsed *float64
}

// ResolveTargetUnit returns the unit the item's cost is tracked in: its
// purchase unit, falling back to its consumption unit.
func ResolveTargetUnit(item *Item) *string {
	if u := NormalizeUnit(item.PurchaseUm); u != nil {
		return u
	}
	return NormalizeUnit(item.ConsumptionUm)
}

func readyConversion(target string, converted, factor float64, source string) ConversionResult {
	return ConversionResult{
		Status:               StatusReady,
		TargetUnit:           &target,
		ConvertedCostAmount:  &converted,
		ConversionSource:     &source,
		ConversionFactorUsed: &factor,
	}
}

// ResolveConversion decides how a line's raw cost converts into the item's
// target unit. Resolution order: same unit, manual override factor, the item's
// own purchase<->consumption factor (both directions), then the catalog-wide
// measurement conversion table (both directions).
func ResolveConversion(line *Line, item *Item, lookup *Lookup) ConversionResult {
	movementUnit := NormalizeUnit(line.MovementUnit)
	if movementUnit == nil {
		movementUnit = NormalizeUnit(line.UnitEntry)
	}
	if movementUnit == nil {
		movementUnit = NormalizeUnit(line.UnitConsumption)
	}
	targetUnit := ResolveTargetUnit(item)

	if line.CostAmount == nil || math.IsNaN(*line.CostAmount) || math.IsInf(*line.CostAmount, 0) || *line.CostAmount <= 0 {
		return ConversionResult{
			Status:       StatusInvalid,
			ErrorCode:    ErrInvalidCost,
			ErrorMessage: "Custo inválido",
		}
	}
	cost := *line.CostAmount

	if movementUnit == nil {
		return ConversionResult{
			Status:       StatusPendingConversion,
			ErrorCode:    ErrMissingMovementUnit,
			ErrorMessage: "UM da movimentação não identificada",
		}
	}
	if targetUnit == nil {
		return ConversionResult{
			Status:       StatusPendingConversion,
			ErrorCode:    ErrItemUnitMissing,
			ErrorMessage: "Item sem UM configurada",
		}
	}

	if *movementUnit == *targetUnit {
		return readyConversion(*targetUnit, cost, 1, ConversionSameUnit)
	}

	if line.ManualConversionFactor != nil && *line.ManualConversionFactor > 0 {
		factor := *line.ManualConversionFactor
		return readyConversion(*targetUnit, cost/factor, factor, ConversionManual)
	}

	itemPurchase := NormalizeUnit(item.PurchaseUm)
	itemConsumption := NormalizeUnit(item.ConsumptionUm)
	if itemPurchase != nil && itemConsumption != nil &&
		item.PurchaseToConsumptionFactor != nil && *item.PurchaseToConsumptionFactor > 0 {
		factor := *item.PurchaseToConsumptionFactor
		if *movementUnit == *itemPurchase && *targetUnit == *itemConsumption {
			return readyConversion(*targetUnit, cost/factor, factor, ConversionItemFactor)
		}
		if *movementUnit == *itemConsumption && *targetUnit == *itemPurchase {
			return readyConversion(*targetUnit, cost*factor, factor, ConversionItemFactorReverse)
		}
	}

	if factor, reverse, ok := lookup.FindConversion(*movementUnit, *targetUnit); ok {
		if reverse {
			return readyConversion(*targetUnit, cost*factor, factor, ConversionMeasurementReverse)
		}
		return readyConversion(*targetUnit, cost/factor, factor, ConversionMeasurementDirect)
	}

	return ConversionResult{
		Status:       StatusPendingConversion,
		ErrorCode:    ErrConversionNotFound,
		ErrorMessage: fmt.Sprintf("Sem conversão automática de %s para %s", *movementUnit, *targetUnit),
		TargetUnit:   targetUnit,
	}
}
