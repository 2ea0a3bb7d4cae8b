package nfimport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fornello/stock-service/internal/pkg/cuid2"
)

// User-facing validation errors, surfaced verbatim by the HTTP layer and CLI.
var (
	ErrBatchNotFound       = errors.New("Lote não encontrado")
	ErrBatchAlreadyRolled  = errors.New("Lote já foi revertido")
	ErrHeaderNotFound      = errors.New("Cabeçalho da tabela não encontrado na planilha")
	ErrCatalogItemMissing  = errors.New("Item não encontrado")
	ErrNoLineSelected      = errors.New("Linha inválida para mapear")
	ErrInvalidLine         = errors.New("Linha inválida")
	ErrInvalidManualFactor = errors.New("Informe um fator maior que zero")
)

// Service orchestrates the import pipeline: parse, classify, aggregate, apply
// and roll back. All persistence goes through the Store interface.
type Service struct {
	store  Store
	logger zerolog.Logger
}

func NewService(store Store, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger.With().Str("component", "nfimport").Logger(),
	}
}

// CreateBatchInput carries one uploaded spreadsheet.
type CreateBatchInput struct {
	FileName   string
	Content    []byte
	BatchName  string
	UploadedBy *string
}

// ApplyResult reports the outcome of an apply pass.
type ApplyResult struct {
	Applied int          `json:"applied"`
	Errors  int          `json:"errors"`
	Summary BatchSummary `json:"summary"`
}

// RollbackResult reports the outcome of a rollback pass.
type RollbackResult struct {
	RolledBack int          `json:"rolledBack"`
	Conflicts  int          `json:"conflicts"`
	Errors     int          `json:"errors"`
	Summary    BatchSummary `json:"summary"`
}

// PendingMappingGroup aggregates the pending-mapping lines sharing one
// normalized ingredient name, with scored catalog suggestions.
type PendingMappingGroup struct {
	IngredientName           string       `json:"ingredientName"`
	IngredientNameNormalized string       `json:"ingredientNameNormalized"`
	Count                    int          `json:"count"`
	LineIDs                  []string     `json:"lineIds"`
	Suggestions              []Suggestion `json:"suggestions"`
}

// BatchView is the full read model of one batch for review screens.
type BatchView struct {
	Batch                *Batch                `json:"batch"`
	Lines                []*Line               `json:"lines"`
	Items                []*Item               `json:"items"`
	PendingMappingGroups []PendingMappingGroup `json:"pendingMappingGroups"`
	Summary              BatchSummary          `json:"summary"`
	AppliedChanges       []*AppliedChange      `json:"appliedChanges"`
}

/// MapLinesInput is a manual mapping decision: bind one line, or every
// not-yet-applied line with the same normalized ingredient name, to an item.
type MapLinesInput struct {
	BatchID                  string
	LineID                   string
	IngredientNameNormalized string
	ItemID                   string
	ApplyToAllSameIngredient bool
	SaveAlias                bool
	Actor                    *string
}

func (s *Service) loadLookup(ctx context.Context) (*Lookup, error) {
	items, err := s.store.ListActiveItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load items: %w", err)
	}
	aliases, err := s.store.ListAliases(ctx, SourceSystem, SourceType)
	if err != nil {
		return nil, fmt.Errorf("failed to load aliases: %w", err)
	}
	conversions, err := s.store.ListUnitConversions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load unit conversions: %w", err)
	}
	return NewLookup(items, aliases, conversions), nil
}

// CreateBatchFromFile parses an uploaded spreadsheet, classifies every data
// row and persists the batch with its lines. The batch is never rejected for
// content problems; bad rows land as invalid/pending lines for review.
func (s *Service) CreateBatchFromFile(ctx context.Context, input CreateBatchInput) (*Batch, error) {
	sheetName, rows, err := ReadFirstSheet(input.Content)
	if err != nil {
		return nil, err
	}

	headerIndex := FindHeaderRow(rows)
	if headerIndex < 0 {
		return nil, ErrHeaderNotFound
	}

	// Row 2 of the export carries the period filter the user exported with.
	var periodStart, periodEnd *time.Time
	if len(rows) > 1 {
		periodStart = ParsePtBRDateTime(cellAt(rows[1], 0))
		periodEnd = ParsePtBRDateTime(cellAt(rows[1], 1))
	}

	lookup, err := s.loadLookup(ctx)
	if err != nil {
		return nil, err
	}

	batchID := cuid2.GeneratePrefixedId("nfb", cuid2.PrefixedIdOptions{TimeSortable: true})
	lines := make([]*Line, 0, len(rows)-headerIndex-1)
	seenInBatch := make(map[string]string)

	for i := headerIndex + 1; i < len(rows); i++ {
		raw := rows[i]
		if IsEmptyRow(raw) {
			continue
		}

		line := ParseRow(raw, i+1)
		line.ID = cuid2.GeneratePrefixedId("nfl", cuid2.PrefixedIdOptions{TimeSortable: true})
		line.BatchID = batchID
		ClassifyLine(line, lookup)

		if firstID, seen := seenInBatch[line.SourceFingerprint]; seen {
			line.Status = StatusSkippedDuplicate
			line.ErrorCode = StringPtr(ErrDuplicateInBatch)
			line.ErrorMessage = StringPtr("Linha duplicada no mesmo arquivo")
			line.DuplicateOfLineID = &firstID
		} else {
			seenInBatch[line.SourceFingerprint] = line.ID
		}

		lines = append(lines, line)
	}

	// Cross-batch pass: fingerprints already applied elsewhere get skipped so a
	// re-upload of last week's file cannot double-apply.
	fingerprints := make([]string, 0, len(lines))
	for fp := range seenInBatch {
		fingerprints = append(fingerprints, fp)
	}
	appliedElsewhere, err := s.store.AppliedFingerprints(ctx, fingerprints)
	if err != nil {
		return nil, fmt.Errorf("failed to check applied fingerprints: %w", err)
	}
	for _, line := range lines {
		if appliedElsewhere[line.SourceFingerprint] {
			line.Status = StatusSkippedDuplicate
			line.ErrorCode = StringPtr(ErrDuplicateApplied)
			line.ErrorMessage = StringPtr("Linha já importada em lote anterior")
		}
	}

	for _, line := range lines {
		linesClassified.WithLabelValues(string(line.Status)).Inc()
	}
	batchLines.Observe(float64(len(lines)))

	summary := Summarize(lines)
	name := input.BatchName
	if name == "" {
		name = fmt.Sprintf("Importação NF %s", time.Now().Format("02/01/2006 15:04:05"))
	}

	batch := &Batch{
		ID:               batchID,
		Name:             name,
		SourceSystem:     SourceSystem,
		SourceType:       SourceType,
		Status:           DerivePreApplyStatus(summary),
		OriginalFileName: input.FileName,
		WorksheetName:    sheetName,
		PeriodStart:      periodStart,
		PeriodEnd:        periodEnd,
		UploadedBy:       input.UploadedBy,
		Summary:          summary,
		CreatedAt:        time.Now(),
	}

	if err := s.store.CreateBatch(ctx, batch, lines); err != nil {
		return nil, fmt.Errorf("failed to persist batch: %w", err)
	}

	s.logger.Info().
		Str("batch_id", batch.ID).
		Str("file", input.FileName).
		Int("total", summary.Total).
		Int("ready", summary.Ready).
		Int("skipped_duplicate", summary.SkippedDuplicate).
		Msg("import batch created")

	return batch, nil
}

// recomputeBatchLines re-runs classification for every not-yet-applied line of
// a batch against the current catalog, then refreshes the cached summary.
// File-internal duplicate markers are preserved; the cross-batch duplicate
// check runs again so a rolled-back competitor frees the fingerprint.
func (s *Service) recomputeBatchLines(ctx context.Context, batchID string) (BatchSummary, error) {
	lines, err := s.store.ListLines(ctx, batchID)
	if err != nil {
		return BatchSummary{}, fmt.Errorf("failed to list lines: %w", err)
	}
	lookup, err := s.loadLookup(ctx)
	if err != nil {
		return BatchSummary{}, err
	}

	fingerprints := make([]string, 0, len(lines))
	for _, line := range lines {
		fingerprints = append(fingerprints, line.SourceFingerprint)
	}
	appliedElsewhere, err := s.store.AppliedFingerprints(ctx, fingerprints)
	if err != nil {
		return BatchSummary{}, fmt.Errorf("failed to check applied fingerprints: %w", err)
	}

	for _, line := range lines {
		if line.AppliedAt != nil {
			continue
		}

		switch {
		case line.Status == StatusSkippedDuplicate && line.ErrorCode != nil && *line.ErrorCode == ErrDuplicateInBatch:
			// Keep file-internal duplicates skipped.
		case appliedElsewhere[line.SourceFingerprint]:
			line.Status = StatusSkippedDuplicate
			line.ErrorCode = StringPtr(ErrDuplicateApplied)
			line.ErrorMessage = StringPtr("Linha já importada em lote anterior")
		default:
			ReclassifyLine(line, lookup)
		}

		if err := s.store.UpdateLine(ctx, line); err != nil {
			return BatchSummary{}, fmt.Errorf("failed to update line %s: %w", line.ID, err)
		}
	}

	return s.refreshBatchSummary(ctx, batchID)
}

// refreshBatchSummary recounts the batch's lines and persists the derived
// summary and status.
func (s *Service) refreshBatchSummary(ctx context.Context, batchID string) (BatchSummary, error) {
	lines, err := s.store.ListLines(ctx, batchID)
	if err != nil {
		return BatchSummary{}, fmt.Errorf("failed to list lines: %w", err)
	}
	batch, err := s.store.GetBatch(ctx, batchID)
	if err != nil {
		return BatchSummary{}, fmt.Errorf("failed to load batch: %w", err)
	}

	summary := Summarize(lines)
	status := DeriveBatchStatus(batch, summary)
	if err := s.store.UpdateBatchStatus(ctx, batchID, summary, status); err != nil {
		return BatchSummary{}, fmt.Errorf("failed to update batch status: %w", err)
	}
	return summary, nil
}

// RecomputeBatch re-validates a batch against the current catalog. Exposed for
// review screens so a catalog fix is reflected without a re-upload.
func (s *Service) RecomputeBatch(ctx context.Context, batchID string) (BatchSummary, error) {
	if _, err := s.store.GetBatch(ctx, batchID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return BatchSummary{}, ErrBatchNotFound
		}
		return BatchSummary{}, err
	}
	return s.recomputeBatchLines(ctx, batchID)
}

// MapLinesToItem binds a pending-mapping decision to a catalog item,
// optionally persisting it as an alias so future uploads auto-map.
func (s *Service) MapLinesToItem(ctx context.Context, input MapLinesInput) error {
	item, err := s.store.GetItem(ctx, input.ItemID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrCatalogItemMissing
		}
		return err
	}

	sel := LineSelector{BatchID: input.BatchID}
	switch {
	case input.ApplyToAllSameIngredient && input.IngredientNameNormalized != "":
		sel.IngredientNameNormalized = input.IngredientNameNormalized
		sel.ApplyToAllSameIngredient = true
	case input.LineID != "":
		sel.LineID = input.LineID
	default:
		return ErrNoLineSelected
	}

	lines, err := s.store.SelectLines(ctx, sel)
	if err != nil {
		return fmt.Errorf("failed to select lines: %w", err)
	}

	lookup, err := s.loadLookup(ctx)
	if err != nil {
		return err
	}

	for _, line := range lines {
		line.MappedItemID = &item.ID
		line.MappedItemName = &item.Name
		line.MappingSource = StringPtr(MappingManual)
		setConversionOutcome(line, item, ResolveConversion(line, item, lookup))
		if err := s.store.UpdateLine(ctx, line); err != nil {
			return fmt.Errorf("failed to update line %s: %w", line.ID, err)
		}
	}

	if input.SaveAlias && input.IngredientNameNormalized != "" {
		for _, line := range lines {
			if line.IngredientNameNormalized != input.IngredientNameNormalized {
				continue
			}
			alias := &ItemAlias{
				ID:              cuid2.GeneratePrefixedId("als", cuid2.PrefixedIdOptions{TimeSortable: true}),
				SourceSystem:    SourceSystem,
				SourceType:      SourceType,
				AliasName:       line.IngredientName,
				AliasNormalized: line.IngredientNameNormalized,
				ItemID:          item.ID,
				Active:          true,
				CreatedBy:       input.Actor,
			}
			if err := s.store.UpsertAlias(ctx, alias); err != nil {
				return fmt.Errorf("failed to save alias: %w", err)
			}
			break
		}
	}

	_, err = s.recomputeBatchLines(ctx, input.BatchID)
	return err
}

// SetLineManualConversionFactor records a per-line conversion override, then
// recomputes the batch so the line can become ready.
func (s *Service) SetLineManualConversionFactor(ctx context.Context, batchID, lineID string, factor float64) error {
	if !(factor > 0) {
		return ErrInvalidManualFactor
	}
	line, err := s.store.GetLine(ctx, lineID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidLine
		}
		return err
	}
	if line.BatchID != batchID {
		return ErrInvalidLine
	}

	line.ManualConversionFactor = &factor
	if err := s.store.UpdateLine(ctx, line); err != nil {
		return fmt.Errorf("failed to update line: %w", err)
	}

	_, err = s.recomputeBatchLines(ctx, batchID)
	return err
}

// ApplyBatch applies every ready line of a batch: per line it re-checks
// cross-batch duplication, writes the item's new current cost and appends an
// audit change record. Line failures are contained; the pass always finishes.
func (s *Service) ApplyBatch(ctx context.Context, batchID string, actor *string) (*ApplyResult, error) {
	started := time.Now()
	batch, err := s.store.GetBatch(ctx, batchID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrBatchNotFound
		}
		return nil, err
	}
	if batch.RolledBackAt != nil {
		return nil, ErrBatchAlreadyRolled
	}

	if _, err := s.recomputeBatchLines(ctx, batchID); err != nil {
		return nil, err
	}

	lines, err := s.store.ListLines(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list lines: %w", err)
	}

	result := &ApplyResult{}
	for _, line := range lines {
		if line.Status != StatusReady || line.AppliedAt != nil {
			continue
		}
		s.applyLine(ctx, batchID, line, actor, result)
	}

	if err := s.store.SetBatchApplied(ctx, batchID, time.Now()); err != nil {
		return nil, fmt.Errorf("failed to mark batch applied: %w", err)
	}

	summary, err := s.refreshBatchSummary(ctx, batchID)
	if err != nil {
		return nil, err
	}
	result.Summary = summary
	applyDuration.Observe(time.Since(started).Seconds())

	s.logger.Info().
		Str("batch_id", batchID).
		Int("applied", result.Applied).
		Int("errors", result.Errors).
		Msg("import batch applied")

	return result, nil
}

func (s *Service) applyLine(ctx context.Context, batchID string, line *Line, actor *string, result *ApplyResult) {
	markError := func(code, message string) {
		line.Status = StatusError
		line.ErrorCode = &code
		line.ErrorMessage = &message
		if err := s.store.UpdateLine(ctx, line); err != nil {
			s.logger.Error().Err(err).Str("line_id", line.ID).Msg("failed to persist line error")
		}
		result.Errors++
		linesApplied.WithLabelValues("error").Inc()
	}

	// Last-moment duplicate check: another batch may have applied the same row
	// between upload and apply.
	duplicateID, err := s.store.FindAppliedDuplicate(ctx, line.SourceFingerprint, line.ID)
	if err != nil {
		markError(ErrApplyError, err.Error())
		return
	}
	if duplicateID != "" {
		line.Status = StatusSkippedDuplicate
		line.ErrorCode = StringPtr(ErrDuplicateApplied)
		line.ErrorMessage = StringPtr("Linha já aplicada em outro lote")
		if err := s.store.UpdateLine(ctx, line); err != nil {
			s.logger.Error().Err(err).Str("line_id", line.ID).Msg("failed to persist duplicate skip")
		}
		linesApplied.WithLabelValues("skipped_duplicate").Inc()
		return
	}

	if line.MappedItemID == nil {
		markError(ErrItemMissingApply, "Item não encontrado na aplicação")
		return
	}
	item, err := s.store.GetItem(ctx, *line.MappedItemID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			markError(ErrItemMissingApply, "Item não encontrado na aplicação")
		} else {
			markError(ErrApplyError, err.Error())
		}
		return
	}

	if line.ConvertedCostAmount == nil || !(*line.ConvertedCostAmount > 0) {
		markError(ErrInvalidConvertedCost, "Custo convertido inválido")
		return
	}
	nextCost := *line.ConvertedCostAmount

	baseVar, err := s.store.EnsureBaseVariation(ctx, item.ID)
	if err != nil {
		markError(ErrApplyError, err.Error())
		return
	}

	var previous *CostRecord
	if current, err := s.store.GetCurrentCost(ctx, baseVar.ID); err == nil {
		previous = current
	} else if !errors.Is(err, ErrNotFound) {
		markError(ErrApplyError, err.Error())
		return
	}

	newUnit := line.TargetUnit
	if newUnit == nil {
		newUnit = line.MovementUnit
	}
	validFrom := time.Now()
	if line.MovementAt != nil {
		validFrom = *line.MovementAt
	}

	record := &CostRecord{
		ID:              uuid.NewString(),
		ItemVariationID: baseVar.ID,
		CostAmount:      nextCost,
		Unit:            newUnit,
		Source:          "import",
		ReferenceType:   StringPtr(CostReferenceTypeLine),
		ReferenceID:     &line.ID,
		ValidFrom:       validFrom,
		UpdatedBy:       actor,
		Metadata: map[string]any{
			"importBatchId":        batchID,
			"importLineId":         line.ID,
			"sourceSystem":         SourceSystem,
			"sourceType":           SourceType,
			"ingredientName":       line.IngredientName,
			"invoiceNumber":        line.InvoiceNumber,
			"movementUnit":         line.MovementUnit,
			"targetUnit":           line.TargetUnit,
			"conversionSource":     line.ConversionSource,
			"conversionFactorUsed": line.ConversionFactorUsed,
			"qtyEntry":             line.QtyEntry,
			"qtyConsumption":       line.QtyConsumption,
			"rawCostAmount":        line.CostAmount,
			"rawCostTotalAmount":   line.CostTotalAmount,
		},
	}
	if err := s.store.SetCurrentCost(ctx, record); err != nil {
		markError(ErrApplyError, err.Error())
		return
	}

	change := &AppliedChange{
		ID:                   cuid2.GeneratePrefixedId("chg", cuid2.PrefixedIdOptions{TimeSortable: true}),
		BatchID:              batchID,
		LineID:               line.ID,
		ItemID:               item.ID,
		ItemVariationID:      baseVar.ID,
		NewCostAmount:        nextCost,
		NewCostUnit:          newUnit,
		MovementUnit:         line.MovementUnit,
		ConversionSource:     line.ConversionSource,
		ConversionFactorUsed: line.ConversionFactorUsed,
		InvoiceNumber:        line.InvoiceNumber,
		MovementAt:           line.MovementAt,
		AppliedBy:            actor,
		AppliedAt:            time.Now(),
		Metadata: map[string]any{
			"ingredientName":    line.IngredientName,
			"sourceFingerprint": line.SourceFingerprint,
			"rowNumber":         line.RowNumber,
		},
	}
	if previous != nil {
		change.PreviousCostVariationID = &previous.ID
		change.PreviousCostAmount = &previous.CostAmount
		change.PreviousCostUnit = previous.Unit
	}
	if err := s.store.CreateAppliedChange(ctx, change); err != nil {
		markError(ErrApplyError, err.Error())
		return
	}

	line.Status = StatusApplied
	line.AppliedAt = TimePtr(time.Now())
	line.ErrorCode = nil
	line.ErrorMessage = nil
	if err := s.store.UpdateLine(ctx, line); err != nil {
		markError(ErrApplyError, err.Error())
		return
	}
	result.Applied++
	linesApplied.WithLabelValues("applied").Inc()
}

// RollbackBatch walks the batch's audit changes newest-first and restores the
// previous cost of each, skipping with a conflict any item whose current cost
// no longer references this import's line.
func (s *Service) RollbackBatch(ctx context.Context, batchID string, actor *string) (*RollbackResult, error) {
	if _, err := s.store.GetBatch(ctx, batchID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrBatchNotFound
		}
		return nil, err
	}

	changes, err := s.store.ListPendingChanges(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending changes: %w", err)
	}

	result := &RollbackResult{}
	for _, change := range changes {
		s.rollbackChange(ctx, batchID, change, actor, result)
	}

	status := BatchRolledBack
	if result.Conflicts > 0 || result.Errors > 0 {
		status = BatchPartial
	}
	if err := s.store.SetBatchRolledBack(ctx, batchID, time.Now(), status); err != nil {
		return nil, fmt.Errorf("failed to mark batch rolled back: %w", err)
	}

	summary, err := s.refreshBatchSummary(ctx, batchID)
	if err != nil {
		return nil, err
	}
	result.Summary = summary

	s.logger.Info().
		Str("batch_id", batchID).
		Int("rolled_back", result.RolledBack).
		Int("conflicts", result.Conflicts).
		Int("errors", result.Errors).
		Msg("import batch rolled back")

	return result, nil
}

func (s *Service) rollbackChange(ctx context.Context, batchID string, change *AppliedChange, actor *string, result *RollbackResult) {
	markConflict := func(message string) {
		if err := s.store.SetChangeRollback(ctx, change.ID, RollbackConflict, &message, nil); err != nil {
			s.logger.Error().Err(err).Str("change_id", change.ID).Msg("failed to persist rollback conflict")
		}
		result.Conflicts++
		changesRolledBack.WithLabelValues("conflict").Inc()
	}
	markRollbackError := func(message string) {
		if err := s.store.SetChangeRollback(ctx, change.ID, RollbackError, &message, nil); err != nil {
			s.logger.Error().Err(err).Str("change_id", change.ID).Msg("failed to persist rollback error")
		}
		result.Errors++
		changesRolledBack.WithLabelValues("error").Inc()
	}

	current, err := s.store.GetCurrentCost(ctx, change.ItemVariationID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			markConflict("Custo atual não encontrado")
		} else {
			markRollbackError(err.Error())
		}
		return
	}

	// Reference match is the rollback safety check: only undo the cost if this
	// import's line is still what produced it.
	currentRefType, currentRefID := "", ""
	if current.ReferenceType != nil {
		currentRefType = *current.ReferenceType
	}
	if current.ReferenceID != nil {
		currentRefID = *current.ReferenceID
	}
	if currentRefType != CostReferenceTypeLine || currentRefID != change.LineID {
		markConflict("Item foi alterado após esta importação; referência atual difere")
		return
	}

	if change.PreviousCostAmount != nil && *change.PreviousCostAmount >= 0 {
		restore := &CostRecord{
			ID:              uuid.NewString(),
			ItemVariationID: change.ItemVariationID,
			CostAmount:      *change.PreviousCostAmount,
			Unit:            change.PreviousCostUnit,
			Source:          "import",
			ReferenceType:   StringPtr(CostReferenceTypeRollback),
			ReferenceID:     &change.ID,
			ValidFrom:       time.Now(),
			UpdatedBy:       actor,
			Metadata: map[string]any{
				"rollbackOfBatchId":           batchID,
				"rollbackOfLineId":            change.LineID,
				"restoredFromAppliedChangeId": change.ID,
			},
		}
		if err := s.store.SetCurrentCost(ctx, restore); err != nil {
			markRollbackError(err.Error())
			return
		}
	}

	now := time.Now()
	if err := s.store.SetChangeRollback(ctx, change.ID, RollbackSuccess, nil, &now); err != nil {
		markRollbackError(err.Error())
		return
	}

	line, err := s.store.GetLine(ctx, change.LineID)
	if err == nil {
		line.Status = StatusReady
		line.AppliedAt = nil
		line.RolledBackAt = &now
		if err := s.store.UpdateLine(ctx, line); err != nil {
			s.logger.Error().Err(err).Str("line_id", line.ID).Msg("failed to reset rolled-back line")
		}
	}

	result.RolledBack++
	changesRolledBack.WithLabelValues("success").Inc()
}

// ArchiveBatch hides a batch from listings. Archival never touches item costs.
func (s *Service) ArchiveBatch(ctx context.Context, batchID string) error {
	if _, err := s.store.GetBatch(ctx, batchID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrBatchNotFound
		}
		return err
	}
	return s.store.SetBatchArchived(ctx, batchID, time.Now())
}

// ListBatches returns the most recent non-archived batches.
func (s *Service) ListBatches(ctx context.Context, limit int) ([]*Batch, error) {
	if limit <= 0 {
		limit = 30
	}
	return s.store.ListBatches(ctx, limit)
}

// GetBatchView assembles the full review read model for one batch.
func (s *Service) GetBatchView(ctx context.Context, batchID string) (*BatchView, error) {
	batch, err := s.store.GetBatch(ctx, batchID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrBatchNotFound
		}
		return nil, err
	}
	lines, err := s.store.ListLines(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list lines: %w", err)
	}
	items, err := s.store.ListActiveItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load items: %w", err)
	}
	changes, err := s.store.ListRecentChanges(ctx, batchID, 200)
	if err != nil {
		return nil, fmt.Errorf("failed to load applied changes: %w", err)
	}

	groupIndex := make(map[string]*PendingMappingGroup)
	groupOrder := make([]string, 0)
	for _, line := range lines {
		if line.Status != StatusPendingMapping {
			continue
		}
		key := line.IngredientNameNormalized
		if key == "" {
			key = NormalizeName(line.IngredientName)
		}
		group, ok := groupIndex[key]
		if !ok {
			group = &PendingMappingGroup{
				IngredientName:           line.IngredientName,
				IngredientNameNormalized: key,
			}
			groupIndex[key] = group
			groupOrder = append(groupOrder, key)
		}
		group.Count++
		group.LineIDs = append(group.LineIDs, line.ID)
	}

	groups := make([]PendingMappingGroup, 0, len(groupOrder))
	for _, key := range groupOrder {
		group := groupIndex[key]
		group.Suggestions = BuildSuggestions(group.IngredientName, items, 5)
		groups = append(groups, *group)
	}

	return &BatchView{
		Batch:                batch,
		Lines:                lines,
		Items:                items,
		PendingMappingGroups: groups,
		Summary:              Summarize(lines),
		AppliedChanges:       changes,
	}, nil
}
