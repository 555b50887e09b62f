package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"docstream/internal/domain"
)

var columns = []string{
	"Job ID",
	"Document ID",
	"Status",
	"Progress",
	"Error",
	"Schema Warnings",
	"Extracted Data",
	"Started At",
	"Completed At",
}

// BatchToXLSX renders a terminal batch and its jobs as an XLSX workbook with
// a summary sheet and one row per job.
func BatchToXLSX(batch *domain.Batch, jobs []domain.Job) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	const summarySheet = "Summary"
	const jobsSheet = "Jobs"

	// excelize creates "Sheet1" by default; rename it for the summary.
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("xlsx export: %w", err)
	}
	if _, err := f.NewSheet(jobsSheet); err != nil {
		return nil, fmt.Errorf("xlsx export: %w", err)
	}

	summary := [][]interface{}{
		{"Batch ID", batch.ID.String()},
		{"Document Type ID", batch.DocumentTypeID.String()},
		{"Status", string(batch.Status)},
		{"Total", batch.Total},
		{"Completed", batch.Completed},
		{"Failed", batch.Failed},
		{"Created At", formatTime(&batch.CreatedAt)},
		{"Completed At", formatTime(batch.CompletedAt)},
	}
	for i, pair := range summary {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &pair); err != nil {
			return nil, fmt.Errorf("xlsx export: %w", err)
		}
	}

	header := make([]interface{}, len(columns))
	for i, col := range columns {
		header[i] = col
	}
	if err := f.SetSheetRow(jobsSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("xlsx export: %w", err)
	}

	for i := range jobs {
		job := &jobs[i]
		row := []interface{}{
			job.ID.String(),
			job.DocumentID.String(),
			string(job.Status),
			job.Progress,
			job.Error,
			string(job.SchemaWarnings),
			string(job.ExtractedData),
			formatTime(job.StartedAt),
			formatTime(job.CompletedAt),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(jobsSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("xlsx export: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx export: %w", err)
	}
	return buf, nil
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
