package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"product-importer/internal/importer"
	"product-importer/internal/models"
	"product-importer/internal/worker"
)

type memoryStore struct {
	mu   sync.Mutex
	rows map[string]importer.ValidatedProduct
}

func newMemoryStore() *memoryStore {
	return &memoryStore{rows: make(map[string]importer.ValidatedProduct)}
}

func (s *memoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *memoryStore) UpsertBatch(ctx context.Context, products []importer.ValidatedProduct) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range products {
		s.rows[p.SKUNormalized] = p
	}
	return int64(len(products)), nil
}

func (s *memoryStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func setupImportRouter(t *testing.T, store importer.Store) (*gin.Engine, *worker.Pool) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	service := importer.NewService(store, importer.Options{}, nil, nil, logger)
	pool := worker.NewPool(1, 4, logger)
	handler := NewImportHandler(service, pool, t.TempDir(), logger)

	router := gin.New()
	router.POST("/api/v1/imports", handler.StartImport)
	router.GET("/api/v1/imports/template", handler.GetImportTemplate)
	router.GET("/api/v1/imports/:id", handler.GetImportStatus)
	router.POST("/api/v1/imports/:id/cancel", handler.CancelImport)
	return router, pool
}

func uploadCSV(t *testing.T, router *gin.Engine, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	assert.NoError(t, err)
	_, err = part.Write([]byte(content))
	assert.NoError(t, err)
	assert.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/imports", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func pollJob(t *testing.T, router *gin.Engine, jobID string) models.ImportJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/imports/"+jobID, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Data models.ImportJob `json:"data"`
		}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		if resp.Data.Status.Terminal() {
			return resp.Data
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job never reached a terminal state")
	return models.ImportJob{}
}

func TestImportHandler_UploadRunsToCompletion(t *testing.T) {
	store := newMemoryStore()
	router, pool := setupImportRouter(t, store)
	defer shutdownPool(t, pool)

	w := uploadCSV(t, router, "products.csv",
		"sku,name,description,active\n"+
			"TSH-1,Blue Tee,Soft,true\n"+
			"tsh-1,Blue Tee v2,Softer,true\n"+
			",missing,key,true\n")
	assert.Equal(t, http.StatusAccepted, w.Code)

	var resp struct {
		Data models.StartImportResponse `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEqual(t, "", resp.Data.JobID.String())

	job := pollJob(t, router, resp.Data.JobID.String())
	assert.Equal(t, models.JobStatusSucceeded, job.Status)
	assert.Equal(t, int64(3), job.RowsRead)
	assert.Equal(t, int64(1), job.RowsInvalid)
	assert.Equal(t, 1, store.count())
}

func TestImportHandler_RejectsNonCSVUpload(t *testing.T) {
	router, pool := setupImportRouter(t, newMemoryStore())
	defer shutdownPool(t, pool)

	w := uploadCSV(t, router, "products.xlsx", "not a csv")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp models.ErrorResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_FORMAT", resp.Error.Code)
}

func TestImportHandler_RejectsMissingFile(t *testing.T) {
	router, pool := setupImportRouter(t, newMemoryStore())
	defer shutdownPool(t, pool)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/imports", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImportHandler_StatusForUnknownJob(t *testing.T) {
	router, pool := setupImportRouter(t, newMemoryStore())
	defer shutdownPool(t, pool)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/imports/1cc6dfb2-4452-4843-a0e0-7a01f3b1f9a5", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/imports/not-a-uuid", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImportHandler_CancelUnknownJob(t *testing.T) {
	router, pool := setupImportRouter(t, newMemoryStore())
	defer shutdownPool(t, pool)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/imports/1cc6dfb2-4452-4843-a0e0-7a01f3b1f9a5/cancel", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestImportHandler_SchemaErrorFailsJob(t *testing.T) {
	store := newMemoryStore()
	router, pool := setupImportRouter(t, store)
	defer shutdownPool(t, pool)

	w := uploadCSV(t, router, "products.csv", "sku,price\nTSH-1,10\n")
	assert.Equal(t, http.StatusAccepted, w.Code)

	var resp struct {
		Data models.StartImportResponse `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	job := pollJob(t, router, resp.Data.JobID.String())
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Equal(t, 0, store.count())
}

func TestImportHandler_TemplateFormats(t *testing.T) {
	router, pool := setupImportRouter(t, newMemoryStore())
	defer shutdownPool(t, pool)

	tests := []struct {
		query       string
		contentType string
	}{
		{"", "application/json"},
		{"?format=csv", "text/csv"},
		{"?format=xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/imports/template"+tt.query, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code, tt.query)
		assert.Contains(t, w.Header().Get("Content-Type"), tt.contentType, tt.query)
		assert.NotZero(t, w.Body.Len(), tt.query)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/imports/template?format=csv", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, fmt.Sprintf("%s\n", "sku,name,description,active"), w.Body.String())
}

func shutdownPool(t *testing.T, pool *worker.Pool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, pool.Shutdown(ctx))
}
