package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/fornello/stock-service/internal/nfimport"
	"github.com/fornello/stock-service/internal/storage"
)

func setupImportRouter(t *testing.T) (*gin.Engine, *nfimport.MemStore) {
	t.Helper()
	store := nfimport.NewMemStore()
	store.SeedItem(&nfimport.Item{
		ID:         "itm_flour",
		Name:       "Farinha de Trigo",
		PurchaseUm: nfimport.StringPtr("CX"),
		Active:     true,
	})

	uploads, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	InitImportHandlers(nfimport.NewService(store, zerolog.Nop()), 2, 10, uploads, 30)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	imports := router.Group("/internal/stock/imports")
	{
		imports.POST("", UploadImportBatch)
		imports.GET("", ListImportBatches)
		imports.GET("/:id", GetImportBatch)
		imports.POST("/:id/recompute", RecomputeImportBatch)
		imports.POST("/:id/map", MapImportLines)
		imports.POST("/:id/lines/:lineId/conversion-factor", SetImportLineConversionFactor)
		imports.POST("/:id/apply", ApplyImportBatch)
		imports.POST("/:id/rollback", RollbackImportBatch)
		imports.POST("/:id/archive", ArchiveImportBatch)
	}
	return router, store
}

func testWorkbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	rows := [][]string{
		{"Relatório"},
		{"01/08/2026", "31/08/2026"},
		{"Data:", "Ingrediente", "Motivo", "Identificação", "Qtd Entrada", "Qtd Consumo", "Custo", "Custo Total", "Observação"},
		{"05/08/2026 10:30", "Farinha de Trigo", "Entrada por NF", "NF: 12345", "10/CX", "", "25.50", "255.00", ""},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func multipartUpload(t *testing.T, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "movimentacoes.xlsx")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.WriteField("name", "Lote de teste"))
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func uploadTestBatch(t *testing.T, router *gin.Engine) nfimport.Batch {
	t.Helper()
	body, contentType := multipartUpload(t, testWorkbook(t))
	req := httptest.NewRequest(http.MethodPost, "/internal/stock/imports", body)
	req.Header.Set("Content-Type", contentType)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var batch nfimport.Batch
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &batch))
	return batch
}

func TestUploadImportBatch(t *testing.T) {
	router, _ := setupImportRouter(t)

	batch := uploadTestBatch(t, router)
	assert.Equal(t, "Lote de teste", batch.Name)
	assert.Equal(t, nfimport.BatchValidated, batch.Status)
	assert.Equal(t, 1, batch.Summary.Ready)
}

func TestUploadImportBatchWithoutFile(t *testing.T) {
	router, _ := setupImportRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/internal/stock/imports", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListAndViewImportBatches(t *testing.T) {
	router, _ := setupImportRouter(t)
	batch := uploadTestBatch(t, router)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/internal/stock/imports", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var listResp struct {
		Batches []nfimport.Batch `json:"batches"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listResp))
	require.Len(t, listResp.Batches, 1)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/internal/stock/imports/"+batch.ID, nil))
	require.Equal(t, http.StatusOK, w.Code)

	var view nfimport.BatchView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Len(t, view.Lines, 1)
}

func TestApplyAndRollbackEndpoints(t *testing.T) {
	router, _ := setupImportRouter(t)
	batch := uploadTestBatch(t, router)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost,
		fmt.Sprintf("/internal/stock/imports/%s/apply?actor=tester", batch.ID), nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var applyResult nfimport.ApplyResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &applyResult))
	assert.Equal(t, 1, applyResult.Applied)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost,
		fmt.Sprintf("/internal/stock/imports/%s/rollback", batch.ID), nil))
	require.Equal(t, http.StatusOK, w.Code)

	var rollbackResult nfimport.RollbackResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rollbackResult))
	assert.Equal(t, 1, rollbackResult.RolledBack)

	// Applying a rolled-back batch conflicts.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost,
		fmt.Sprintf("/internal/stock/imports/%s/apply", batch.ID), nil))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestImportBatchNotFound(t *testing.T) {
	router, _ := setupImportRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/internal/stock/imports/nfb_missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMapImportLinesEndpoint(t *testing.T) {
	router, store := setupImportRouter(t)

	store.SeedItem(&nfimport.Item{
		ID:         "itm_yeast",
		Name:       "Fermento Biológico",
		PurchaseUm: nfimport.StringPtr("CX"),
		Active:     true,
	})

	// Upload a file whose ingredient is unknown.
	f := excelize.NewFile()
	rows := [][]string{
		{"Relatório"},
		{"01/08/2026", "31/08/2026"},
		{"Data:", "Ingrediente", "Motivo", "Identificação", "Qtd Entrada", "Qtd Consumo", "Custo", "Custo Total", "Observação"},
		{"05/08/2026", "Fermento Seco", "Entrada por NF", "NF: 9", "1/CX", "", "8.00", "8.00", ""},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	f.Close()

	body, contentType := multipartUpload(t, buf.Bytes())
	req := httptest.NewRequest(http.MethodPost, "/internal/stock/imports", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var batch nfimport.Batch
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &batch))
	require.Equal(t, 1, batch.Summary.PendingMapping)

	mapBody, err := json.Marshal(MapImportLinesRequest{
		IngredientNameNormalized: "FERMENTO SECO",
		ItemID:                   "itm_yeast",
		ApplyToAllSameIngredient: true,
		SaveAlias:                true,
	})
	require.NoError(t, err)

	w = httptest.NewRecorder()
	mapReq := httptest.NewRequest(http.MethodPost,
		"/internal/stock/imports/"+batch.ID+"/map", bytes.NewReader(mapBody))
	mapReq.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, mapReq)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/internal/stock/imports/"+batch.ID, nil))
	require.Equal(t, http.StatusOK, w.Code)

	var view nfimport.BatchView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, nfimport.StatusReady, view.Lines[0].Status)
	assert.Empty(t, view.PendingMappingGroups)
}
