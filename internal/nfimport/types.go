package nfimport

import "time"

// Source tags stamped on every batch, line and alias produced by this importer.
const (
	SourceSystem = "saipos"
	SourceType   = "entrada_nf"
)

// Reference types written on cost records so rollback can detect whether the
// current cost still belongs to this import.
const (
	CostReferenceTypeLine     = "stock-nf-import-line"
	CostReferenceTypeRollback = "stock-nf-import-rollback"
)

// LineStatus is the classification outcome of a single spreadsheet row.
// Exactly one status holds for a line at any time.
type LineStatus string

const (
	StatusInvalid           LineStatus = "invalid"
	StatusPendingMapping    LineStatus = "pending_mapping"
	StatusPendingConversion LineStatus = "pending_conversion"
	StatusReady             LineStatus = "ready"
	StatusApplied           LineStatus = "applied"
	StatusSkippedDuplicate  LineStatus = "skipped_duplicate"
	StatusError             LineStatus = "error"
)

// BatchStatus is derived from the line statuses plus the applied/rolled-back
// timestamps, except for archived which is set explicitly.
type BatchStatus string

const (
	BatchDraft      BatchStatus = "draft"
	BatchValidated  BatchStatus = "validated"
	BatchApplied    BatchStatus = "applied"
	BatchPartial    BatchStatus = "partial"
	BatchRolledBack BatchStatus = "rolled_back"
	BatchArchived   BatchStatus = "archived"
)

// Error codes carried on lines alongside the status.
const (
	ErrMotivoNotSupported   = "motivo_not_supported"
	ErrInvalidDate          = "invalid_date"
	ErrMissingInvoice       = "missing_invoice"
	ErrInvalidCost          = "invalid_cost"
	ErrItemNotMapped        = "item_not_mapped"
	ErrItemNotFound         = "item_not_found"
	ErrMissingMovementUnit  = "missing_movement_unit"
	ErrItemUnitMissing      = "item_unit_missing"
	ErrConversionNotFound   = "conversion_not_found"
	ErrDuplicateInBatch     = "duplicate_in_batch"
	ErrDuplicateApplied     = "duplicate_already_applied"
	ErrItemMissingApply     = "item_missing_apply"
	ErrInvalidConvertedCost = "invalid_converted_cost"
	ErrApplyError           = "apply_error"
)

// Mapping sources.
const (
	MappingExact  = "exact"
	MappingAlias  = "alias"
	MappingManual = "manual"
)

// Conversion sources.
const (
	ConversionSameUnit            = "same-unit"
	ConversionManual              = "manual"
	ConversionItemFactor          = "item_purchase_factor"
	ConversionItemFactorReverse   = "item_purchase_factor_reverse"
	ConversionMeasurementDirect   = "measurement_conversion_direct"
	ConversionMeasurementReverse  = "measurement_conversion_reverse"
)

// Rollback statuses recorded on applied changes.
const (
	RollbackSuccess  = "success"
	RollbackConflict = "conflict"
	RollbackError    = "error"
)

// BatchSummary is the denormalized per-status line count cached on the batch.
type BatchSummary struct {
	Total             int `json:"total"`
	Ready             int `json:"ready"`
	Invalid           int `json:"invalid"`
	PendingMapping    int `json:"pendingMapping"`
	PendingConversion int `json:"pendingConversion"`
	Applied           int `json:"applied"`
	SkippedDuplicate  int `json:"skippedDuplicate"`
	Error             int `json:"error"`
}

// Batch represents one spreadsheet upload.
type Batch struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	SourceSystem     string       `json:"sourceSystem"`
	SourceType       string       `json:"sourceType"`
	Status           BatchStatus  `json:"status"`
	OriginalFileName string       `json:"originalFileName"`
	WorksheetName    string       `json:"worksheetName"`
	PeriodStart      *time.Time   `json:"periodStart,omitempty"`
	PeriodEnd        *time.Time   `json:"periodEnd,omitempty"`
	UploadedBy       *string      `json:"uploadedBy,omitempty"`
	Summary          BatchSummary `json:"summary"`
	AppliedAt        *time.Time   `json:"appliedAt,omitempty"`
	RolledBackAt     *time.Time   `json:"rolledBackAt,omitempty"`
	ArchivedAt       *time.Time   `json:"archivedAt,omitempty"`
	CreatedAt        time.Time    `json:"createdAt"`
}

// Line represents one spreadsheet row, owned by exactly one batch.
type Line struct {
	ID                       string     `json:"id"`
	BatchID                  string     `json:"batchId"`
	RowNumber                int        `json:"rowNumber"`
	Status                   LineStatus `json:"status"`
	ErrorCode                *string    `json:"errorCode,omitempty"`
	ErrorMessage             *string    `json:"errorMessage,omitempty"`
	RawData                  string     `json:"rawData"` // JSON snapshot of the original cells
	MovementAt               *time.Time `json:"movementAt,omitempty"`
	IngredientName           string     `json:"ingredientName"`
	IngredientNameNormalized string     `json:"ingredientNameNormalized"`
	Motivo                   *string    `json:"motivo,omitempty"`
	Identification           *string    `json:"identification,omitempty"`
	InvoiceNumber            *string    `json:"invoiceNumber,omitempty"`
	QtyEntry                 *float64   `json:"qtyEntry,omitempty"`
	UnitEntry                *string    `json:"unitEntry,omitempty"`
	QtyConsumption           *float64   `json:"qtyConsumption,omitempty"`
	UnitConsumption          *string    `json:"unitConsumption,omitempty"`
	MovementUnit             *string    `json:"movementUnit,omitempty"`
	CostAmount               *float64   `json:"costAmount,omitempty"`
	CostTotalAmount          *float64   `json:"costTotalAmount,omitempty"`
	Observation              *string    `json:"observation,omitempty"`
	SourceFingerprint        string     `json:"sourceFingerprint"`
	DuplicateOfLineID        *string    `json:"duplicateOfLineId,omitempty"`
	MappedItemID             *string    `json:"mappedItemId,omitempty"`
	MappedItemName           *string    `json:"mappedItemName,omitempty"`
	MappingSource            *string    `json:"mappingSource,omitempty"`
	ManualConversionFactor   *float64   `json:"manualConversionFactor,omitempty"`
	ConversionSource         *string    `json:"conversionSource,omitempty"`
	ConversionFactorUsed     *float64   `json:"conversionFactorUsed,omitempty"`
	TargetUnit               *string    `json:"targetUnit,omitempty"`
	ConvertedCostAmount      *float64   `json:"convertedCostAmount,omitempty"`
	AppliedAt                *time.Time `json:"appliedAt,omitempty"`
	RolledBackAt             *time.Time `json:"rolledBackAt,omitempty"`
}

// AppliedChange is the append-only audit record of one line's effect on an
// item's cost. Immutable once created except for the rollback fields.
type AppliedChange struct {
	ID                      string     `json:"id"`
	BatchID                 string     `json:"batchId"`
	LineID                  string     `json:"lineId"`
	ItemID                  string     `json:"itemId"`
	ItemVariationID         string     `json:"itemVariationId"`
	PreviousCostVariationID *string    `json:"previousCostVariationId,omitempty"`
	PreviousCostAmount      *float64   `json:"previousCostAmount,omitempty"`
	PreviousCostUnit        *string    `json:"previousCostUnit,omitempty"`
	NewCostAmount           float64    `json:"newCostAmount"`
	NewCostUnit             *string    `json:"newCostUnit,omitempty"`
	MovementUnit            *string    `json:"movementUnit,omitempty"`
	ConversionSource        *string    `json:"conversionSource,omitempty"`
	ConversionFactorUsed    *float64   `json:"conversionFactorUsed,omitempty"`
	InvoiceNumber           *string    `json:"invoiceNumber,omitempty"`
	MovementAt              *time.Time `json:"movementAt,omitempty"`
	AppliedBy               *string    `json:"appliedBy,omitempty"`
	AppliedAt               time.Time  `json:"appliedAt"`
	RollbackStatus          *string    `json:"rollbackStatus,omitempty"`
	RollbackMessage         *string    `json:"rollbackMessage,omitempty"`
	RolledBackAt            *time.Time `json:"rolledBackAt,omitempty"`
	Metadata                map[string]any `json:"metadata,omitempty"`
}

// Item is an inventory catalog item.
type Item struct {
	ID                          string   `json:"id"`
	Name                        string   `json:"name"`
	Classification              *string  `json:"classification,omitempty"`
	PurchaseUm                  *string  `json:"purchaseUm,omitempty"`
	ConsumptionUm               *string  `json:"consumptionUm,omitempty"`
	PurchaseToConsumptionFactor *float64 `json:"purchaseToConsumptionFactor,omitempty"`
	Active                      bool     `json:"active"`
}

// ItemVariation is a cost-tracking unit of an item. The base variation is the
// default one used when no specific variant is selected.
type ItemVariation struct {
	ID     string `json:"id"`
	ItemID string `json:"itemId"`
	Name   string `json:"name"`
}

// CostRecord is the current cost of an item variation, tagged with the
// reference that produced it.
type CostRecord struct {
	ID              string         `json:"id"`
	ItemVariationID string         `json:"itemVariationId"`
	CostAmount      float64        `json:"costAmount"`
	Unit            *string        `json:"unit,omitempty"`
	Source          string         `json:"source"`
	ReferenceType   *string        `json:"referenceType,omitempty"`
	ReferenceID     *string        `json:"referenceId,omitempty"`
	ValidFrom       time.Time      `json:"validFrom"`
	UpdatedBy       *string        `json:"updatedBy,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// ItemAlias is a learned mapping from a normalized ingredient name to a
// catalog item, scoped by source system/type. At most one active alias per
// (source system, source type, normalized name).
type ItemAlias struct {
	ID              string  `json:"id"`
	SourceSystem    string  `json:"sourceSystem"`
	SourceType      string  `json:"sourceType"`
	AliasName       string  `json:"aliasName"`
	AliasNormalized string  `json:"aliasNormalized"`
	ItemID          string  `json:"itemId"`
	Active          bool    `json:"active"`
	CreatedBy       *string `json:"createdBy,omitempty"`
}

// UnitConversion is a catalog-wide measurement unit conversion factor.
type UnitConversion struct {
	ID       string  `json:"id"`
	FromUnit string  `json:"fromUnit"`
	ToUnit   string  `json:"toUnit"`
	Factor   float64 `json:"factor"`
	Active   bool    `json:"active"`
}

// StringPtr returns a pointer to the given string.
func StringPtr(s string) *string {
	return &s
}

// Float64Ptr returns a pointer to the given float64.
func Float64Ptr(f float64) *float64 {
	return &f
}

// TimePtr returns a pointer to the given time.
func TimePtr(t time.Time) *time.Time {
	return &t
}
