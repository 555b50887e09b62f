package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"docstream/internal/domain"
	"docstream/internal/handler"
	"docstream/internal/service"
	"docstream/mocks"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newBatchRouter() (*gin.Engine, *mocks.MockBatchService) {
	mockSvc := new(mocks.MockBatchService)
	h := handler.NewBatchHandler(mockSvc)

	r := gin.New()
	r.POST("/api/v1/batches", h.Create)
	r.GET("/api/v1/batches/:id", h.GetByID)
	r.POST("/api/v1/batches/:id/cancel", h.Cancel)
	r.GET("/api/v1/batches/:id/export", h.Export)
	return r, mockSvc
}

func TestBatchHandler_Create_Success(t *testing.T) {
	r, mockSvc := newBatchRouter()

	docTypeID := uuid.New()
	docIDs := []uuid.UUID{uuid.New(), uuid.New()}
	expected := &domain.Batch{
		ID:             uuid.New(),
		DocumentTypeID: docTypeID,
		Total:          2,
		Status:         domain.BatchStatusPending,
	}

	mockSvc.On("CreateBatch", mock.Anything, mock.MatchedBy(func(input *service.CreateBatchInput) bool {
		return input.DocumentTypeID == docTypeID && len(input.DocumentIDs) == 2
	})).Return(expected, nil)

	body, _ := json.Marshal(map[string]interface{}{
		"document_type_id": docTypeID.String(),
		"document_ids":     []string{docIDs[0].String(), docIDs[1].String()},
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/batches", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp handler.APIResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	mockSvc.AssertExpectations(t)
}

func TestBatchHandler_Create_MissingFields(t *testing.T) {
	r, mockSvc := newBatchRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/batches", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockSvc.AssertNotCalled(t, "CreateBatch", mock.Anything, mock.Anything)
}

func TestBatchHandler_Create_EmptyBatch(t *testing.T) {
	r, mockSvc := newBatchRouter()

	mockSvc.On("CreateBatch", mock.Anything, mock.Anything).Return(nil, domain.ErrEmptyBatch)

	body, _ := json.Marshal(map[string]interface{}{
		"document_type_id": uuid.New().String(),
		"document_ids":     []string{},
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/batches", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp handler.APIResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "EMPTY_BATCH", resp.Error.Code)
}

func TestBatchHandler_GetByID_Success(t *testing.T) {
	r, mockSvc := newBatchRouter()

	batchID := uuid.New()
	batch := &domain.Batch{ID: batchID, Total: 1, Completed: 1, Status: domain.BatchStatusCompleted}
	jobs := []domain.Job{{ID: uuid.New(), Status: domain.JobStatusCompleted}}

	mockSvc.On("GetBatch", mock.Anything, batchID).Return(batch, jobs, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/batches/"+batchID.String(), nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), batchID.String())
}

func TestBatchHandler_GetByID_NotFound(t *testing.T) {
	r, mockSvc := newBatchRouter()

	mockSvc.On("GetBatch", mock.Anything, mock.Anything).Return(nil, nil, domain.ErrBatchNotFound)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/batches/"+uuid.New().String(), nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBatchHandler_GetByID_InvalidID(t *testing.T) {
	r, _ := newBatchRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/batches/not-a-uuid", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBatchHandler_Cancel_Success(t *testing.T) {
	r, mockSvc := newBatchRouter()

	batchID := uuid.New()
	cancelled := &domain.Batch{ID: batchID, Status: domain.BatchStatusCancelled}
	mockSvc.On("CancelBatch", mock.Anything, batchID).Return(cancelled, false, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/batches/"+batchID.String()+"/cancel", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), "cancelled")
	assert.Contains(t, w.Body.String(), `"already_finished":false`)
}

func TestBatchHandler_Export_NotTerminal(t *testing.T) {
	r, mockSvc := newBatchRouter()

	batchID := uuid.New()
	batch := &domain.Batch{ID: batchID, Total: 2, Status: domain.BatchStatusProcessing}
	mockSvc.On("GetBatch", mock.Anything, batchID).Return(batch, []domain.Job{}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/batches/"+batchID.String()+"/export", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestBatchHandler_Export_Success(t *testing.T) {
	r, mockSvc := newBatchRouter()

	batchID := uuid.New()
	now := time.Now().UTC()
	batch := &domain.Batch{
		ID:          batchID,
		Total:       1,
		Completed:   1,
		Status:      domain.BatchStatusCompleted,
		CreatedAt:   now,
		CompletedAt: &now,
	}
	jobs := []domain.Job{{
		ID:            uuid.New(),
		DocumentID:    uuid.New(),
		Status:        domain.JobStatusCompleted,
		Progress:      100,
		ExtractedData: json.RawMessage(`{"total": 12}`),
	}}
	mockSvc.On("GetBatch", mock.Anything, batchID).Return(batch, jobs, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/batches/"+batchID.String()+"/export", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), batchID.String())
	assert.NotEmpty(t, w.Body.Bytes())
}
