package export_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/xuri/excelize/v2"

	"docstream/internal/domain"
	"docstream/internal/export"
)

func TestBatchToXLSX_SummaryAndJobs(t *testing.T) {
	now := time.Now().UTC()
	batch := &domain.Batch{
		ID:             uuid.New(),
		DocumentTypeID: uuid.New(),
		Total:          2,
		Completed:      1,
		Failed:         1,
		Status:         domain.BatchStatusCompleted,
		CreatedAt:      now,
		CompletedAt:    &now,
	}
	jobs := []domain.Job{
		{
			ID:            uuid.New(),
			DocumentID:    uuid.New(),
			Status:        domain.JobStatusCompleted,
			Progress:      100,
			ExtractedData: json.RawMessage(`{"total": 10}`),
			StartedAt:     &now,
			CompletedAt:   &now,
		},
		{
			ID:         uuid.New(),
			DocumentID: uuid.New(),
			Status:     domain.JobStatusFailed,
			Error:      "model returned non-JSON text",
		},
	}

	buf, err := export.BatchToXLSX(batch, jobs)
	assert.NoError(t, err)
	assert.NotEmpty(t, buf.Bytes())

	f, err := excelize.OpenReader(buf)
	assert.NoError(t, err)
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	assert.Contains(t, sheets, "Summary")
	assert.Contains(t, sheets, "Jobs")

	status, err := f.GetCellValue("Summary", "B3")
	assert.NoError(t, err)
	assert.Equal(t, "completed", status)

	header, err := f.GetCellValue("Jobs", "A1")
	assert.NoError(t, err)
	assert.Equal(t, "Job ID", header)

	firstJobID, err := f.GetCellValue("Jobs", "A2")
	assert.NoError(t, err)
	assert.Equal(t, jobs[0].ID.String(), firstJobID)

	failedErr, err := f.GetCellValue("Jobs", "E3")
	assert.NoError(t, err)
	assert.Equal(t, "model returned non-JSON text", failedErr)
}

func TestBatchToXLSX_EmptyJobs(t *testing.T) {
	batch := &domain.Batch{
		ID:     uuid.New(),
		Status: domain.BatchStatusCancelled,
		Total:  0,
	}

	buf, err := export.BatchToXLSX(batch, nil)
	assert.NoError(t, err)
	assert.NotEmpty(t, buf.Bytes())
}
