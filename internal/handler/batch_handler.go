package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"docstream/internal/export"
	"docstream/internal/service"
)

// BatchHandler handles batch orchestration endpoints.
type BatchHandler struct {
	batchService service.BatchService
}

// NewBatchHandler creates a new BatchHandler.
func NewBatchHandler(batchService service.BatchService) *BatchHandler {
	return &BatchHandler{batchService: batchService}
}

// Create handles POST /api/v1/batches
func (h *BatchHandler) Create(c *gin.Context) {
	var req struct {
		DocumentTypeID uuid.UUID   `json:"document_type_id" binding:"required"`
		DocumentIDs    []uuid.UUID `json:"document_ids" binding:"required"`
		WebhookURL     string      `json:"webhook_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "document_type_id and document_ids are required")
		return
	}

	batch, err := h.batchService.CreateBatch(c.Request.Context(), &service.CreateBatchInput{
		DocumentTypeID: req.DocumentTypeID,
		DocumentIDs:    req.DocumentIDs,
		WebhookURL:     req.WebhookURL,
	})
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondCreated(c, batch)
}

// GetByID handles GET /api/v1/batches/:id
func (h *BatchHandler) GetByID(c *gin.Context) {
	batchID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid batch id")
		return
	}

	batch, jobs, err := h.batchService.GetBatch(c.Request.Context(), batchID)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, gin.H{"batch": batch, "jobs": jobs})
}

// Cancel handles POST /api/v1/batches/:id/cancel
func (h *BatchHandler) Cancel(c *gin.Context) {
	batchID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid batch id")
		return
	}

	batch, alreadyFinished, err := h.batchService.CancelBatch(c.Request.Context(), batchID)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondAccepted(c, gin.H{
		"batch":            batch,
		"already_finished": alreadyFinished,
	})
}

// Export handles GET /api/v1/batches/:id/export
func (h *BatchHandler) Export(c *gin.Context) {
	batchID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid batch id")
		return
	}

	batch, jobs, err := h.batchService.GetBatch(c.Request.Context(), batchID)
	if err != nil {
		HandleError(c, err)
		return
	}
	if !batch.Status.IsTerminal() {
		RespondError(c, http.StatusConflict, "BATCH_NOT_TERMINAL", "batch is still processing; export is available once it finishes")
		return
	}

	buf, err := export.BatchToXLSX(batch, jobs)
	if err != nil {
		HandleError(c, err)
		return
	}

	filename := fmt.Sprintf("batch-%s.xlsx", batchID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		buf.Bytes())
}
