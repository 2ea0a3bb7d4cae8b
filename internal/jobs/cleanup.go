// Package jobs holds periodic maintenance tasks run by the server.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/fornello/stock-service/internal/storage"
)

// CleanupConfig configures retention policies for cleanup jobs
type CleanupConfig struct {
	ArchivedBatchRetentionDays int
	UploadArchiveRetentionDays int
}

// DefaultCleanupConfig returns sensible retention defaults
func DefaultCleanupConfig() CleanupConfig {
	return CleanupConfig{
		ArchivedBatchRetentionDays: 90,  // Keep archived batches for 90 days
		UploadArchiveRetentionDays: 180, // Keep original spreadsheets for 180 days
	}
}

// CleanupArchivedBatches removes batches that were archived long ago and were
// never applied. Applied batches are kept forever: their audit trail has to
// stay queryable even after archiving.
func CleanupArchivedBatches(ctx context.Context, db *pgxpool.Pool, cfg CleanupConfig) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -cfg.ArchivedBatchRetentionDays)

	result, err := db.Exec(ctx, `
		DELETE FROM stock_nf_import_batches
		WHERE archived_at IS NOT NULL
		  AND archived_at < $1
		  AND applied_at IS NULL
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup archived batches: %w", err)
	}

	deleted := int(result.RowsAffected())
	log.Info().Int("deleted", deleted).Time("cutoff", cutoff).Msg("Cleaned up archived batches")
	return deleted, nil
}

// CleanupUploadArchives removes archived spreadsheet files older than the
// retention window.
func CleanupUploadArchives(ctx context.Context, store storage.Storage, cfg CleanupConfig) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -cfg.UploadArchiveRetentionDays)

	keys, err := store.List(ctx, "uploads/")
	if err != nil {
		return 0, fmt.Errorf("list upload archives: %w", err)
	}

	deleted := 0
	for _, key := range keys {
		info, err := store.GetInfo(ctx, key)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to stat upload archive")
			continue
		}
		if info.ModifiedAt.After(cutoff) {
			continue
		}
		if err := store.Delete(ctx, key); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to delete upload archive")
			continue
		}
		deleted++
	}

	log.Info().Int("deleted", deleted).Time("cutoff", cutoff).Msg("Cleaned up upload archives")
	return deleted, nil
}

// RunDailyCleanup runs all cleanup jobs in sequence. Individual job failures
// are logged but do not stop the remaining jobs.
func RunDailyCleanup(ctx context.Context, db *pgxpool.Pool, store storage.Storage, cfg CleanupConfig) {
	log.Info().Msg("Starting cleanup jobs")

	if _, err := CleanupArchivedBatches(ctx, db, cfg); err != nil {
		log.Error().Err(err).Msg("Failed to cleanup archived batches")
	}

	if store != nil {
		if _, err := CleanupUploadArchives(ctx, store, cfg); err != nil {
			log.Error().Err(err).Msg("Failed to cleanup upload archives")
		}
	}

	log.Info().Msg("Cleanup jobs completed")
}
