package database

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/xuri/excelize/v2"

	"github.com/fornello/stock-service/internal/nfimport"
)

func setupTestStore(t *testing.T) (*PgStore, *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForAll(
				wait.ForListeningPort("5432/tcp").
					WithStartupTimeout(60*time.Second),
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(1).
					WithStartupTimeout(60*time.Second),
			),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, schemaSQL)
	require.NoError(t, err)

	return NewPgStore(pool), pool
}

func seedCatalog(ctx context.Context, t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	_, err := pool.Exec(ctx, `
		INSERT INTO items (id, name, purchase_um, consumption_um, purchase_to_consumption_factor, active)
		VALUES ('itm_flour', 'Farinha de Trigo', 'CX', 'KG', 10, TRUE),
		       ('itm_yeast', 'Fermento Biológico', 'CX', NULL, NULL, TRUE)
	`)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `
		INSERT INTO measurement_unit_conversions (id, from_unit, to_unit, factor, active)
		VALUES ('cv_cx_kg', 'CX', 'KG', 5, TRUE)
	`)
	require.NoError(t, err)
}

func importWorkbook(t *testing.T, rows [][]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	all := [][]string{
		{"Relatório de Movimentações"},
		{"01/08/2026", "31/08/2026"},
		{"Data:", "Ingrediente", "Motivo", "Identificação", "Qtd Entrada", "Qtd Consumo", "Custo", "Custo Total", "Observação"},
	}
	all = append(all, rows...)
	for i, row := range all {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

// TestPgStoreImportLifecycle runs the full upload/map/apply/rollback flow
// against a real Postgres.
func TestPgStoreImportLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	store, pool := setupTestStore(t)
	seedCatalog(ctx, t, pool)

	svc := nfimport.NewService(store, zerolog.Nop())

	content := importWorkbook(t, [][]string{
		{"05/08/2026 10:30", "Farinha de Trigo", "Entrada por NF", "NF: 12345", "10/CX", "100/UN", "25.50", "255.00", ""},
		{"06/08/2026", "Fermento Seco", "Entrada por NF", "NF: 12346", "2/CX", "", "8.00", "16.00", ""},
	})

	batch, err := svc.CreateBatchFromFile(ctx, nfimport.CreateBatchInput{
		FileName:   "movimentacoes.xlsx",
		Content:    content,
		UploadedBy: nfimport.StringPtr("tester"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, batch.Summary.Total)
	assert.Equal(t, 1, batch.Summary.Ready)
	assert.Equal(t, 1, batch.Summary.PendingMapping)

	// Round-trip of the persisted batch and lines.
	loaded, err := store.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, batch.Summary, loaded.Summary)
	require.NotNil(t, loaded.PeriodStart)

	lines, err := store.ListLines(ctx, batch.ID)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, nfimport.StatusReady, lines[0].Status)
	assert.NotEmpty(t, lines[0].RawData)

	// Map the unknown ingredient, saving an alias.
	err = svc.MapLinesToItem(ctx, nfimport.MapLinesInput{
		BatchID:                  batch.ID,
		IngredientNameNormalized: "FERMENTO SECO",
		ItemID:                   "itm_yeast",
		ApplyToAllSameIngredient: true,
		SaveAlias:                true,
	})
	require.NoError(t, err)

	aliases, err := store.ListAliases(ctx, nfimport.SourceSystem, nfimport.SourceType)
	require.NoError(t, err)
	require.Len(t, aliases, 1)
	assert.Equal(t, "FERMENTO SECO", aliases[0].AliasNormalized)

	// Apply.
	result, err := svc.ApplyBatch(ctx, batch.ID, nfimport.StringPtr("tester"))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Applied)
	assert.Equal(t, 0, result.Errors)

	baseVar, err := store.EnsureBaseVariation(ctx, "itm_flour")
	require.NoError(t, err)
	cost, err := store.GetCurrentCost(ctx, baseVar.ID)
	require.NoError(t, err)
	assert.Equal(t, nfimport.CostReferenceTypeLine, *cost.ReferenceType)

	changes, err := store.ListRecentChanges(ctx, batch.ID, 10)
	require.NoError(t, err)
	assert.Len(t, changes, 2)

	// Re-upload skips everything as already applied.
	second, err := svc.CreateBatchFromFile(ctx, nfimport.CreateBatchInput{
		FileName: "movimentacoes.xlsx",
		Content:  content,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Summary.SkippedDuplicate)

	// Rollback restores and frees the fingerprints.
	rollback, err := svc.RollbackBatch(ctx, batch.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, rollback.RolledBack)

	rolled, err := store.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, nfimport.BatchRolledBack, rolled.Status)

	summary, err := svc.RecomputeBatch(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.SkippedDuplicate)
}

// TestPgStoreAliasUpsert checks the unique constraint path.
func TestPgStoreAliasUpsert(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	store, pool := setupTestStore(t)
	seedCatalog(ctx, t, pool)

	alias := &nfimport.ItemAlias{
		ID:              "als_1",
		SourceSystem:    nfimport.SourceSystem,
		SourceType:      nfimport.SourceType,
		AliasName:       "Farinha Especial",
		AliasNormalized: "FARINHA ESPECIAL",
		ItemID:          "itm_flour",
		Active:          true,
	}
	require.NoError(t, store.UpsertAlias(ctx, alias))

	// Second upsert with the same normalized name updates in place.
	alias.ID = "als_2"
	alias.AliasName = "FARINHA ESPECIAL PREMIUM"
	require.NoError(t, store.UpsertAlias(ctx, alias))

	aliases, err := store.ListAliases(ctx, nfimport.SourceSystem, nfimport.SourceType)
	require.NoError(t, err)
	require.Len(t, aliases, 1)
	assert.Equal(t, "als_1", aliases[0].ID)
	assert.Equal(t, "FARINHA ESPECIAL PREMIUM", aliases[0].AliasName)
}
