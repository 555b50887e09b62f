package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"docstream/internal/domain"
	"docstream/internal/service"
)

// DocumentHandler handles document storage and single-document extraction
// endpoints.
type DocumentHandler struct {
	documentService   service.DocumentService
	extractionService service.ExtractionService
}

// NewDocumentHandler creates a new DocumentHandler.
func NewDocumentHandler(documentService service.DocumentService, extractionService service.ExtractionService) *DocumentHandler {
	return &DocumentHandler{
		documentService:   documentService,
		extractionService: extractionService,
	}
}

// Upload handles POST /api/v1/documents. It expects a multipart form with a
// "file" part and a "document_type_id" field.
func (h *DocumentHandler) Upload(c *gin.Context) {
	docTypeID, err := uuid.Parse(c.PostForm("document_type_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "document_type_id is required")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "file is required")
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "could not read uploaded file")
		return
	}
	defer func() { _ = f.Close() }()

	content, err := io.ReadAll(f)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "could not read uploaded file")
		return
	}

	doc, err := h.documentService.Upload(c.Request.Context(), &service.UploadDocumentInput{
		DocumentTypeID: docTypeID,
		Filename:       fileHeader.Filename,
		ContentType:    fileHeader.Header.Get("Content-Type"),
		Content:        content,
	})
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondCreated(c, doc)
}

// Delete handles DELETE /api/v1/documents/:id
func (h *DocumentHandler) Delete(c *gin.Context) {
	docID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid document id")
		return
	}

	if err := h.documentService.Delete(c.Request.Context(), docID); err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, gin.H{"document_id": docID})
}

// Process handles POST /api/v1/documents/:id/process. It blocks until the
// job reaches a terminal state and returns the final job.
func (h *DocumentHandler) Process(c *gin.Context) {
	docID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid document id")
		return
	}

	job, err := h.extractionService.ProcessDocument(c.Request.Context(), docID)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, job)
}

// ProcessStream handles GET /api/v1/documents/:id/process/stream. It runs an
// extraction job and pushes its lifecycle events over SSE until the job
// reaches a terminal state.
func (h *DocumentHandler) ProcessStream(c *gin.Context) {
	docID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid document id")
		return
	}

	clientGone := c.Request.Context().Done()
	eventCh := make(chan domain.Event, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(eventCh)
		_, runErr := h.extractionService.ProcessDocumentStream(c.Request.Context(), docID, func(ev domain.Event) error {
			select {
			case eventCh <- ev:
				return nil
			case <-clientGone:
				return c.Request.Context().Err()
			}
		})
		errCh <- runErr
	}()

	// Hold off on SSE headers until the job actually starts, so setup
	// failures (unknown document) still get a JSON error response.
	select {
	case ev, ok := <-eventCh:
		if !ok {
			if setupErr := <-errCh; setupErr != nil {
				HandleError(c, setupErr)
				return
			}
			RespondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "stream produced no events")
			return
		}
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.SSEvent(sseEventName(ev.Type), ev)
		c.Writer.Flush()
	case <-clientGone:
		return
	}

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-eventCh:
			if !ok {
				// Terminal event already sent; tell the client the stream is
				// complete. A client abort skips this on purpose.
				c.SSEvent("done", gin.H{})
				return false
			}
			c.SSEvent(sseEventName(ev.Type), ev)
			return true
		case <-clientGone:
			return false
		}
	})
}

// sseEventName maps bus event types onto the single-document stream's own
// vocabulary: started, partial, complete, error.
func sseEventName(t domain.EventType) string {
	switch t {
	case domain.EventJobStarted:
		return "started"
	case domain.EventJobProgress:
		return "partial"
	case domain.EventJobCompleted:
		return "complete"
	case domain.EventJobFailed:
		return "error"
	}
	return string(t)
}

// CancelJob handles POST /api/v1/jobs/:id/cancel
func (h *DocumentHandler) CancelJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid job id")
		return
	}

	job, err := h.extractionService.CancelJob(c.Request.Context(), jobID)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondAccepted(c, job)
}

// GetJob handles GET /api/v1/jobs/:id
func (h *DocumentHandler) GetJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid job id")
		return
	}

	job, err := h.extractionService.GetJob(c.Request.Context(), jobID)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, job)
}
