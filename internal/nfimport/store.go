package nfimport

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errors.New("record not found")

// LineSelector narrows which lines a manual mapping applies to: a single line,
// or every not-yet-applied line in the batch sharing a normalized ingredient
// name.
type LineSelector struct {
	BatchID                  string
	LineID                   string
	IngredientNameNormalized string
	ApplyToAllSameIngredient bool
}

// Store is the persistence surface the import engine needs. internal/database
// implements it against Postgres; MemStore implements it in memory for tests
// and dry runs.
type Store interface {
	// Batches
	CreateBatch(ctx context.Context, batch *Batch, lines []*Line) error
	GetBatch(ctx context.Context, batchID string) (*Batch, error)
	ListBatches(ctx context.Context, limit int) ([]*Batch, error)
	UpdateBatchStatus(ctx context.Context, batchID string, summary BatchSummary, status BatchStatus) error
	SetBatchApplied(ctx context.Context, batchID string, at time.Time) error
	SetBatchRolledBack(ctx context.Context, batchID string, at time.Time, status BatchStatus) error
	SetBatchArchived(ctx context.Context, batchID string, at time.Time) error

	// Lines
	ListLines(ctx context.Context, batchID string) ([]*Line, error)
	GetLine(ctx context.Context, lineID string) (*Line, error)
	SelectLines(ctx context.Context, sel LineSelector) ([]*Line, error)
	UpdateLine(ctx context.Context, line *Line) error

	// Duplicate detection. AppliedFingerprints returns the subset of the given
	// fingerprints that are applied on some non-rolled-back batch.
	// FindAppliedDuplicate returns the id of another applied line with the same
	// fingerprint on a non-rolled-back batch, or "" when there is none.
	AppliedFingerprints(ctx context.Context, fingerprints []string) (map[string]bool, error)
	FindAppliedDuplicate(ctx context.Context, fingerprint, excludeLineID string) (string, error)

	// Catalog
	ListActiveItems(ctx context.Context) ([]*Item, error)
	GetItem(ctx context.Context, itemID string) (*Item, error)
	ListAliases(ctx context.Context, sourceSystem, sourceType string) ([]*ItemAlias, error)
	UpsertAlias(ctx context.Context, alias *ItemAlias) error
	ListUnitConversions(ctx context.Context) ([]*UnitConversion, error)

	// Cost ledger
	EnsureBaseVariation(ctx context.Context, itemID string) (*ItemVariation, error)
	GetCurrentCost(ctx context.Context, itemVariationID string) (*CostRecord, error)
	SetCurrentCost(ctx context.Context, record *CostRecord) error

	// Audit trail
	CreateAppliedChange(ctx context.Context, change *AppliedChange) error
	ListPendingChanges(ctx context.Context, batchID string) ([]*AppliedChange, error)
	ListRecentChanges(ctx context.Context, batchID string, limit int) ([]*AppliedChange, error)
	SetChangeRollback(ctx context.Context, changeID, status string, message *string, at *time.Time) error
}
