package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fornello/stock-service/internal/nfimport"
)

// PgStore implements nfimport.Store against Postgres using raw SQL.
type PgStore struct {
	pool *pgxpool.Pool
}

var _ nfimport.Store = (*PgStore)(nil)

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

const lineColumns = `
	id, batch_id, row_number, status, error_code, error_message, raw_data,
	movement_at, ingredient_name, ingredient_name_normalized, motivo,
	identification, invoice_number, qty_entry, unit_entry, qty_consumption,
	unit_consumption, movement_unit, cost_amount, cost_total_amount,
	observation, source_fingerprint, duplicate_of_line_id, mapped_item_id,
	mapped_item_name, mapping_source, manual_conversion_factor,
	conversion_source, conversion_factor_used, target_unit,
	converted_cost_amount, applied_at, rolled_back_at`

func scanLine(row pgx.Row) (*nfimport.Line, error) {
	var line nfimport.Line
	var rawData []byte
	err := row.Scan(
		&line.ID, &line.BatchID, &line.RowNumber, &line.Status, &line.ErrorCode,
		&line.ErrorMessage, &rawData, &line.MovementAt, &line.IngredientName,
		&line.IngredientNameNormalized, &line.Motivo, &line.Identification,
		&line.InvoiceNumber, &line.QtyEntry, &line.UnitEntry,
		&line.QtyConsumption, &line.UnitConsumption, &line.MovementUnit,
		&line.CostAmount, &line.CostTotalAmount, &line.Observation,
		&line.SourceFingerprint, &line.DuplicateOfLineID, &line.MappedItemID,
		&line.MappedItemName, &line.MappingSource, &line.ManualConversionFactor,
		&line.ConversionSource, &line.ConversionFactorUsed, &line.TargetUnit,
		&line.ConvertedCostAmount, &line.AppliedAt, &line.RolledBackAt,
	)
	if err != nil {
		return nil, err
	}
	line.RawData = string(rawData)
	return &line, nil
}

func collectLines(rows pgx.Rows) ([]*nfimport.Line, error) {
	defer rows.Close()
	lines := make([]*nfimport.Line, 0)
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

const batchColumns = `
	id, name, source_system, source_type, status, original_file_name,
	worksheet_name, period_start, period_end, uploaded_by, summary,
	applied_at, rolled_back_at, archived_at, created_at`

func scanBatch(row pgx.Row) (*nfimport.Batch, error) {
	var batch nfimport.Batch
	var summary []byte
	err := row.Scan(
		&batch.ID, &batch.Name, &batch.SourceSystem, &batch.SourceType,
		&batch.Status, &batch.OriginalFileName, &batch.WorksheetName,
		&batch.PeriodStart, &batch.PeriodEnd, &batch.UploadedBy, &summary,
		&batch.AppliedAt, &batch.RolledBackAt, &batch.ArchivedAt, &batch.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(summary, &batch.Summary); err != nil {
		return nil, fmt.Errorf("failed to decode batch summary: %w", err)
	}
	return &batch, nil
}

func (s *PgStore) CreateBatch(ctx context.Context, batch *nfimport.Batch, lines []*nfimport.Line) error {
	summary, err := json.Marshal(batch.Summary)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO stock_nf_import_batches (
			id, name, source_system, source_type, status, original_file_name,
			worksheet_name, period_start, period_end, uploaded_by, summary,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, batch.ID, batch.Name, batch.SourceSystem, batch.SourceType, batch.Status,
		batch.OriginalFileName, batch.WorksheetName, batch.PeriodStart,
		batch.PeriodEnd, batch.UploadedBy, summary, batch.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert batch: %w", err)
	}

	for _, line := range lines {
		_, err = tx.Exec(ctx, `
			INSERT INTO stock_nf_import_batch_lines (
				id, batch_id, row_number, status, error_code, error_message,
				raw_data, movement_at, ingredient_name,
				ingredient_name_normalized, motivo, identification,
				invoice_number, qty_entry, unit_entry, qty_consumption,
				unit_consumption, movement_unit, cost_amount, cost_total_amount,
				observation, source_fingerprint, duplicate_of_line_id,
				mapped_item_id, mapped_item_name, mapping_source,
				manual_conversion_factor, conversion_source,
				conversion_factor_used, target_unit, converted_cost_amount
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
				$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26,
				$27, $28, $29, $30, $31
			)
		`, line.ID, line.BatchID, line.RowNumber, line.Status, line.ErrorCode,
			line.ErrorMessage, []byte(line.RawData), line.MovementAt,
			line.IngredientName, line.IngredientNameNormalized, line.Motivo,
			line.Identification, line.InvoiceNumber, line.QtyEntry,
			line.UnitEntry, line.QtyConsumption, line.UnitConsumption,
			line.MovementUnit, line.CostAmount, line.CostTotalAmount,
			line.Observation, line.SourceFingerprint, line.DuplicateOfLineID,
			line.MappedItemID, line.MappedItemName, line.MappingSource,
			line.ManualConversionFactor, line.ConversionSource,
			line.ConversionFactorUsed, line.TargetUnit, line.ConvertedCostAmount)
		if err != nil {
			return fmt.Errorf("failed to insert line %d: %w", line.RowNumber, err)
		}
	}

	return tx.Commit(ctx)
}

func (s *PgStore) GetBatch(ctx context.Context, batchID string) (*nfimport.Batch, error) {
	batch, err := scanBatch(s.pool.QueryRow(ctx,
		`SELECT `+batchColumns+` FROM stock_nf_import_batches WHERE id = $1`, batchID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nfimport.ErrNotFound
	}
	return batch, err
}

func (s *PgStore) ListBatches(ctx context.Context, limit int) ([]*nfimport.Batch, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+batchColumns+`
		FROM stock_nf_import_batches
		WHERE archived_at IS NULL
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	batches := make([]*nfimport.Batch, 0)
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}
	return batches, rows.Err()
}

func (s *PgStore) UpdateBatchStatus(ctx context.Context, batchID string, summary nfimport.BatchSummary, status nfimport.BatchStatus) error {
	encoded, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE stock_nf_import_batches SET summary = $2, status = $3 WHERE id = $1
	`, batchID, encoded, status)
	return err
}

func (s *PgStore) SetBatchApplied(ctx context.Context, batchID string, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE stock_nf_import_batches SET applied_at = $2 WHERE id = $1`, batchID, at)
	return err
}

func (s *PgStore) SetBatchRolledBack(ctx context.Context, batchID string, at time.Time, status nfimport.BatchStatus) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE stock_nf_import_batches SET rolled_back_at = $2, status = $3 WHERE id = $1
	`, batchID, at, status)
	return err
}

func (s *PgStore) SetBatchArchived(ctx context.Context, batchID string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE stock_nf_import_batches SET archived_at = $2, status = 'archived' WHERE id = $1
	`, batchID, at)
	return err
}

func (s *PgStore) ListLines(ctx context.Context, batchID string) ([]*nfimport.Line, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+lineColumns+`
		FROM stock_nf_import_batch_lines
		WHERE batch_id = $1
		ORDER BY row_number ASC
	`, batchID)
	if err != nil {
		return nil, err
	}
	return collectLines(rows)
}

func (s *PgStore) GetLine(ctx context.Context, lineID string) (*nfimport.Line, error) {
	line, err := scanLine(s.pool.QueryRow(ctx,
		`SELECT `+lineColumns+` FROM stock_nf_import_batch_lines WHERE id = $1`, lineID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nfimport.ErrNotFound
	}
	return line, err
}

func (s *PgStore) SelectLines(ctx context.Context, sel nfimport.LineSelector) ([]*nfimport.Line, error) {
	var rows pgx.Rows
	var err error
	if sel.ApplyToAllSameIngredient {
		rows, err = s.pool.Query(ctx, `
			SELECT `+lineColumns+`
			FROM stock_nf_import_batch_lines
			WHERE batch_id = $1 AND ingredient_name_normalized = $2 AND applied_at IS NULL
			ORDER BY row_number ASC
		`, sel.BatchID, sel.IngredientNameNormalized)
	} else {
		rows, err = s.pool.Query(ctx, `
			SELECT `+lineColumns+`
			FROM stock_nf_import_batch_lines
			WHERE batch_id = $1 AND id = $2
		`, sel.BatchID, sel.LineID)
	}
	if err != nil {
		return nil, err
	}
	return collectLines(rows)
}

func (s *PgStore) UpdateLine(ctx context.Context, line *nfimport.Line) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE stock_nf_import_batch_lines SET
			status = $2, error_code = $3, error_message = $4,
			mapped_item_id = $5, mapped_item_name = $6, mapping_source = $7,
			manual_conversion_factor = $8, conversion_source = $9,
			conversion_factor_used = $10, target_unit = $11,
			converted_cost_amount = $12, duplicate_of_line_id = $13,
			applied_at = $14, rolled_back_at = $15
		WHERE id = $1
	`, line.ID, line.Status, line.ErrorCode, line.ErrorMessage,
		line.MappedItemID, line.MappedItemName, line.MappingSource,
		line.ManualConversionFactor, line.ConversionSource,
		line.ConversionFactorUsed, line.TargetUnit, line.ConvertedCostAmount,
		line.DuplicateOfLineID, line.AppliedAt, line.RolledBackAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return nfimport.ErrNotFound
	}
	return nil
}

func (s *PgStore) AppliedFingerprints(ctx context.Context, fingerprints []string) (map[string]bool, error) {
	found := make(map[string]bool)
	if len(fingerprints) == 0 {
		return found, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT l.source_fingerprint
		FROM stock_nf_import_batch_lines l
		JOIN stock_nf_import_batches b ON b.id = l.batch_id
		WHERE l.source_fingerprint = ANY($1)
		  AND l.applied_at IS NOT NULL
		  AND b.status IN ('applied', 'partial')
		  AND b.rolled_back_at IS NULL
	`, fingerprints)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, err
		}
		found[fp] = true
	}
	return found, rows.Err()
}

func (s *PgStore) FindAppliedDuplicate(ctx context.Context, fingerprint, excludeLineID string) (string, error) {
	var lineID string
	err := s.pool.QueryRow(ctx, `
		SELECT l.id
		FROM stock_nf_import_batch_lines l
		JOIN stock_nf_import_batches b ON b.id = l.batch_id
		WHERE l.source_fingerprint = $1
		  AND l.id <> $2
		  AND l.applied_at IS NOT NULL
		  AND b.rolled_back_at IS NULL
		LIMIT 1
	`, fingerprint, excludeLineID).Scan(&lineID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return lineID, err
}

func (s *PgStore) ListActiveItems(ctx context.Context) ([]*nfimport.Item, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, classification, purchase_um, consumption_um,
		       purchase_to_consumption_factor, active
		FROM items
		WHERE active
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*nfimport.Item, 0)
	for rows.Next() {
		var item nfimport.Item
		if err := rows.Scan(&item.ID, &item.Name, &item.Classification,
			&item.PurchaseUm, &item.ConsumptionUm,
			&item.PurchaseToConsumptionFactor, &item.Active); err != nil {
			return nil, err
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}

func (s *PgStore) GetItem(ctx context.Context, itemID string) (*nfimport.Item, error) {
	var item nfimport.Item
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, classification, purchase_um, consumption_um,
		       purchase_to_consumption_factor, active
		FROM items
		WHERE id = $1
	`, itemID).Scan(&item.ID, &item.Name, &item.Classification,
		&item.PurchaseUm, &item.ConsumptionUm,
		&item.PurchaseToConsumptionFactor, &item.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nfimport.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *PgStore) ListAliases(ctx context.Context, sourceSystem, sourceType string) ([]*nfimport.ItemAlias, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, source_system, source_type, alias_name, alias_normalized,
		       item_id, active, created_by
		FROM item_import_aliases
		WHERE source_system = $1 AND source_type = $2 AND active
	`, sourceSystem, sourceType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	aliases := make([]*nfimport.ItemAlias, 0)
	for rows.Next() {
		var alias nfimport.ItemAlias
		if err := rows.Scan(&alias.ID, &alias.SourceSystem, &alias.SourceType,
			&alias.AliasName, &alias.AliasNormalized, &alias.ItemID,
			&alias.Active, &alias.CreatedBy); err != nil {
			return nil, err
		}
		aliases = append(aliases, &alias)
	}
	return aliases, rows.Err()
}

func (s *PgStore) UpsertAlias(ctx context.Context, alias *nfimport.ItemAlias) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO item_import_aliases (
			id, source_system, source_type, alias_name, alias_normalized,
			item_id, active, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (source_system, source_type, alias_normalized)
		DO UPDATE SET alias_name = EXCLUDED.alias_name,
		              item_id = EXCLUDED.item_id,
		              active = TRUE
	`, alias.ID, alias.SourceSystem, alias.SourceType, alias.AliasName,
		alias.AliasNormalized, alias.ItemID, alias.Active, alias.CreatedBy)
	return err
}

func (s *PgStore) ListUnitConversions(ctx context.Context) ([]*nfimport.UnitConversion, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, from_unit, to_unit, factor, active
		FROM measurement_unit_conversions
		WHERE active
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	conversions := make([]*nfimport.UnitConversion, 0)
	for rows.Next() {
		var conv nfimport.UnitConversion
		if err := rows.Scan(&conv.ID, &conv.FromUnit, &conv.ToUnit,
			&conv.Factor, &conv.Active); err != nil {
			return nil, err
		}
		conversions = append(conversions, &conv)
	}
	return conversions, rows.Err()
}

func (s *PgStore) EnsureBaseVariation(ctx context.Context, itemID string) (*nfimport.ItemVariation, error) {
	variation := &nfimport.ItemVariation{ItemID: itemID, Name: "Base"}
	err := s.pool.QueryRow(ctx, `
		SELECT id FROM item_variations WHERE item_id = $1 AND name = 'Base'
	`, itemID).Scan(&variation.ID)
	if err == nil {
		return variation, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	variation.ID = uuid.NewString()
	err = s.pool.QueryRow(ctx, `
		INSERT INTO item_variations (id, item_id, name)
		VALUES ($1, $2, 'Base')
		ON CONFLICT (item_id, name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`, variation.ID, itemID).Scan(&variation.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure base variation: %w", err)
	}
	return variation, nil
}

func (s *PgStore) GetCurrentCost(ctx context.Context, itemVariationID string) (*nfimport.CostRecord, error) {
	var record nfimport.CostRecord
	var metadata []byte
	err := s.pool.QueryRow(ctx, `
		SELECT id, item_variation_id, cost_amount, unit, source,
		       reference_type, reference_id, valid_from, updated_by, metadata
		FROM item_cost_variations
		WHERE item_variation_id = $1
	`, itemVariationID).Scan(&record.ID, &record.ItemVariationID,
		&record.CostAmount, &record.Unit, &record.Source,
		&record.ReferenceType, &record.ReferenceID, &record.ValidFrom,
		&record.UpdatedBy, &metadata)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nfimport.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &record.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode cost metadata: %w", err)
		}
	}
	return &record, nil
}

func (s *PgStore) SetCurrentCost(ctx context.Context, record *nfimport.CostRecord) error {
	metadata, err := json.Marshal(record.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode cost metadata: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO item_cost_variations (
			id, item_variation_id, cost_amount, unit, source, reference_type,
			reference_id, valid_from, updated_by, metadata, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT (item_variation_id) DO UPDATE SET
			id = EXCLUDED.id,
			cost_amount = EXCLUDED.cost_amount,
			unit = EXCLUDED.unit,
			source = EXCLUDED.source,
			reference_type = EXCLUDED.reference_type,
			reference_id = EXCLUDED.reference_id,
			valid_from = EXCLUDED.valid_from,
			updated_by = EXCLUDED.updated_by,
			metadata = EXCLUDED.metadata,
			updated_at = NOW()
	`, record.ID, record.ItemVariationID, record.CostAmount, record.Unit,
		record.Source, record.ReferenceType, record.ReferenceID,
		record.ValidFrom, record.UpdatedBy, metadata)
	return err
}

func (s *PgStore) CreateAppliedChange(ctx context.Context, change *nfimport.AppliedChange) error {
	metadata, err := json.Marshal(change.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode change metadata: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO stock_nf_import_applied_changes (
			id, batch_id, line_id, item_id, item_variation_id,
			previous_cost_variation_id, previous_cost_amount,
			previous_cost_unit, new_cost_amount, new_cost_unit, movement_unit,
			conversion_source, conversion_factor_used, invoice_number,
			movement_at, applied_by, applied_at, metadata
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18
		)
	`, change.ID, change.BatchID, change.LineID, change.ItemID,
		change.ItemVariationID, change.PreviousCostVariationID,
		change.PreviousCostAmount, change.PreviousCostUnit,
		change.NewCostAmount, change.NewCostUnit, change.MovementUnit,
		change.ConversionSource, change.ConversionFactorUsed,
		change.InvoiceNumber, change.MovementAt, change.AppliedBy,
		change.AppliedAt, metadata)
	return err
}

const changeColumns = `
	id, batch_id, line_id, item_id, item_variation_id,
	previous_cost_variation_id, previous_cost_amount, previous_cost_unit,
	new_cost_amount, new_cost_unit, movement_unit, conversion_source,
	conversion_factor_used, invoice_number, movement_at, applied_by,
	applied_at, rollback_status, rollback_message, rolled_back_at, metadata`

func scanChange(row pgx.Row) (*nfimport.AppliedChange, error) {
	var change nfimport.AppliedChange
	var metadata []byte
	err := row.Scan(&change.ID, &change.BatchID, &change.LineID, &change.ItemID,
		&change.ItemVariationID, &change.PreviousCostVariationID,
		&change.PreviousCostAmount, &change.PreviousCostUnit,
		&change.NewCostAmount, &change.NewCostUnit, &change.MovementUnit,
		&change.ConversionSource, &change.ConversionFactorUsed,
		&change.InvoiceNumber, &change.MovementAt, &change.AppliedBy,
		&change.AppliedAt, &change.RollbackStatus, &change.RollbackMessage,
		&change.RolledBackAt, &metadata)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &change.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode change metadata: %w", err)
		}
	}
	return &change, nil
}

func (s *PgStore) listChanges(ctx context.Context, query string, args ...any) ([]*nfimport.AppliedChange, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	changes := make([]*nfimport.AppliedChange, 0)
	for rows.Next() {
		change, err := scanChange(rows)
		if err != nil {
			return nil, err
		}
		changes = append(changes, change)
	}
	return changes, rows.Err()
}

func (s *PgStore) ListPendingChanges(ctx context.Context, batchID string) ([]*nfimport.AppliedChange, error) {
	return s.listChanges(ctx, `
		SELECT `+changeColumns+`
		FROM stock_nf_import_applied_changes
		WHERE batch_id = $1 AND rolled_back_at IS NULL
		ORDER BY applied_at DESC
	`, batchID)
}

func (s *PgStore) ListRecentChanges(ctx context.Context, batchID string, limit int) ([]*nfimport.AppliedChange, error) {
	return s.listChanges(ctx, `
		SELECT `+changeColumns+`
		FROM stock_nf_import_applied_changes
		WHERE batch_id = $1
		ORDER BY applied_at DESC
		LIMIT $2
	`, batchID, limit)
}

func (s *PgStore) SetChangeRollback(ctx context.Context, changeID, status string, message *string, at *time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE stock_nf_import_applied_changes
		SET rollback_status = $2, rollback_message = $3, rolled_back_at = $4
		WHERE id = $1
	`, changeID, status, message, at)
	return err
}
