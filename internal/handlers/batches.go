package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/fornello/stock-service/internal/nfimport"
	"github.com/fornello/stock-service/internal/storage"
)

var (
	importService  *nfimport.Service
	uploadSem      *semaphore.Weighted
	maxUploadBytes int64
	uploadStore    storage.Storage
	listLimit      int
)

// InitImportHandlers wires the import service into the HTTP layer.
func InitImportHandlers(svc *nfimport.Service, maxConcurrentUploads, maxFileSizeMB int64, uploads storage.Storage, defaultListLimit int) {
	importService = svc
	uploadSem = semaphore.NewWeighted(maxConcurrentUploads)
	maxUploadBytes = maxFileSizeMB * 1024 * 1024
	uploadStore = uploads
	listLimit = defaultListLimit
}

// importError maps service errors to HTTP statuses. Validation errors carry
// user-facing pt-BR messages and must reach the client verbatim.
func importError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, nfimport.ErrBatchNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, nfimport.ErrCatalogItemMissing),
		errors.Is(err, nfimport.ErrInvalidLine):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, nfimport.ErrBatchAlreadyRolled):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, nfimport.ErrHeaderNotFound),
		errors.Is(err, nfimport.ErrNoLineSelected),
		errors.Is(err, nfimport.ErrInvalidManualFactor):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("import request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// UploadImportBatch handles spreadsheet upload.
// POST /internal/stock/imports
func UploadImportBatch(c *gin.Context) {
	ctx := c.Request.Context()

	// Parsing a workbook is CPU and memory heavy; cap concurrent uploads.
	if err := uploadSem.Acquire(ctx, 1); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "upload capacity exhausted"})
		return
	}
	defer uploadSem.Release(1)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file field is required"})
		return
	}
	if fileHeader.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("file exceeds %d bytes", maxUploadBytes),
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to open uploaded file"})
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read uploaded file"})
		return
	}
	if int64(len(content)) > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("file exceeds %d bytes", maxUploadBytes),
		})
		return
	}

	input := nfimport.CreateBatchInput{
		FileName:  fileHeader.Filename,
		Content:   content,
		BatchName: c.PostForm("name"),
	}
	if uploadedBy := c.PostForm("uploadedBy"); uploadedBy != "" {
		input.UploadedBy = &uploadedBy
	}

	batch, err := importService.CreateBatchFromFile(ctx, input)
	if err != nil {
		importError(c, err)
		return
	}

	archiveUpload(ctx, batch, fileHeader.Filename, content)

	c.JSON(http.StatusCreated, batch)
}

// archiveUpload keeps a copy of the original spreadsheet for audits.
// Failures are logged, never surfaced: the batch is already persisted.
func archiveUpload(ctx context.Context, batch *nfimport.Batch, fileName string, content []byte) {
	if uploadStore == nil {
		return
	}
	metadata := &storage.Metadata{
		ContentType:  "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		OriginalName: fileName,
		BatchID:      batch.ID,
		UploadedAt:   time.Now(),
	}
	if batch.UploadedBy != nil {
		metadata.UploadedBy = *batch.UploadedBy
	}
	key := storage.BuildUploadKey(batch.ID, time.Now(), fileName)
	if err := uploadStore.Put(ctx, key, content, metadata); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to archive upload")
	}
}

// ListImportBatches returns recent non-archived batches.
// GET /internal/stock/imports
func ListImportBatches(c *gin.Context) {
	batches, err := importService.ListBatches(c.Request.Context(), listLimit)
	if err != nil {
		importError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"batches": batches})
}

// GetImportBatch returns the full review view of one batch.
// GET /internal/stock/imports/:id
func GetImportBatch(c *gin.Context) {
	view, err := importService.GetBatchView(c.Request.Context(), c.Param("id"))
	if err != nil {
		importError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// RecomputeImportBatch re-validates a batch against the current catalog.
// POST /internal/stock/imports/:id/recompute
func RecomputeImportBatch(c *gin.Context) {
	summary, err := importService.RecomputeBatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		importError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

// MapImportLinesRequest is the manual mapping payload.
type MapImportLinesRequest struct {
	LineID                   string `json:"lineId"`
	IngredientNameNormalized string `json:"ingredientNameNormalized"`
	ItemID                   string `json:"itemId" binding:"required"`
	ApplyToAllSameIngredient bool   `json:"applyToAllSameIngredient"`
	SaveAlias                bool   `json:"saveAlias"`
	Actor                    string `json:"actor"`
}

// MapImportLines binds pending lines to a catalog item.
// POST /internal/stock/imports/:id/map
func MapImportLines(c *gin.Context) {
	var req MapImportLinesRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	input := nfimport.MapLinesInput{
		BatchID:                  c.Param("id"),
		LineID:                   req.LineID,
		IngredientNameNormalized: req.IngredientNameNormalized,
		ItemID:                   req.ItemID,
		ApplyToAllSameIngredient: req.ApplyToAllSameIngredient,
		SaveAlias:                req.SaveAlias,
	}
	if req.Actor != "" {
		input.Actor = &req.Actor
	}

	if err := importService.MapLinesToItem(c.Request.Context(), input); err != nil {
		importError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// SetConversionFactorRequest carries a manual conversion override.
type SetConversionFactorRequest struct {
	Factor float64 `json:"factor" binding:"required"`
}

// SetImportLineConversionFactor records a manual conversion factor for a line.
// POST /internal/stock/imports/:id/lines/:lineId/conversion-factor
func SetImportLineConversionFactor(c *gin.Context) {
	var req SetConversionFactorRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	err := importService.SetLineManualConversionFactor(
		c.Request.Context(), c.Param("id"), c.Param("lineId"), req.Factor)
	if err != nil {
		importError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ApplyImportBatch applies every ready line of a batch.
// POST /internal/stock/imports/:id/apply
func ApplyImportBatch(c *gin.Context) {
	var actor *string
	if v := c.Query("actor"); v != "" {
		actor = &v
	}

	result, err := importService.ApplyBatch(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		importError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// RollbackImportBatch undoes a previously applied batch.
// POST /internal/stock/imports/:id/rollback
func RollbackImportBatch(c *gin.Context) {
	var actor *string
	if v := c.Query("actor"); v != "" {
		actor = &v
	}

	result, err := importService.RollbackBatch(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		importError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ArchiveImportBatch hides a batch from listings.
// POST /internal/stock/imports/:id/archive
func ArchiveImportBatch(c *gin.Context) {
	if err := importService.ArchiveBatch(c.Request.Context(), c.Param("id")); err != nil {
		importError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "archived"})
}
