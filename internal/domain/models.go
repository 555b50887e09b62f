package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Document represents an uploaded document eligible for extraction.
type Document struct {
	ID             uuid.UUID `db:"id" json:"id"`
	DocumentTypeID uuid.UUID `db:"document_type_id" json:"document_type_id"`
	Filename       string    `db:"filename" json:"filename"`
	ContentType    string    `db:"content_type" json:"content_type"`
	S3Bucket       string    `db:"s3_bucket" json:"s3_bucket"`
	S3Key          string    `db:"s3_key" json:"s3_key"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// DocumentType carries the extraction schema and optional model overrides
// for one class of documents.
type DocumentType struct {
	ID                     uuid.UUID       `db:"id" json:"id"`
	Name                   string          `db:"name" json:"name"`
	Schema                 json.RawMessage `db:"schema" json:"schema"`
	ValidationInstructions string          `db:"validation_instructions" json:"validation_instructions"`
	ModelName              string          `db:"model_name" json:"model_name"`
	CreatedAt              time.Time       `db:"created_at" json:"created_at"`
}

// Job is one extraction attempt for one document. BatchID is nil for
// ad-hoc single-document processing.
type Job struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	DocumentID     uuid.UUID       `db:"document_id" json:"document_id"`
	BatchID        *uuid.UUID      `db:"batch_id" json:"batch_id"`
	Status         JobStatus       `db:"status" json:"status"`
	Progress       int             `db:"progress" json:"progress"`
	PartialData    json.RawMessage `db:"partial_data" json:"partial_data,omitempty"`
	ExtractedData  json.RawMessage `db:"extracted_data" json:"extracted_data,omitempty"`
	Error          string          `db:"error" json:"error,omitempty"`
	SchemaWarnings json.RawMessage `db:"schema_warnings" json:"schema_warnings,omitempty"`
	StartedAt      *time.Time      `db:"started_at" json:"started_at"`
	CompletedAt    *time.Time      `db:"completed_at" json:"completed_at"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// Batch groups N jobs created and processed together. Completed and Failed
// are running counters; completed + failed never exceeds Total.
type Batch struct {
	ID             uuid.UUID   `db:"id" json:"id"`
	DocumentTypeID uuid.UUID   `db:"document_type_id" json:"document_type_id"`
	Total          int         `db:"total" json:"total"`
	Completed      int         `db:"completed" json:"completed"`
	Failed         int         `db:"failed" json:"failed"`
	Status         BatchStatus `db:"status" json:"status"`
	WebhookURL     string      `db:"webhook_url" json:"webhook_url,omitempty"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
	CompletedAt    *time.Time  `db:"completed_at" json:"completed_at"`
}

// Remaining returns how many jobs have not yet reached a terminal state.
func (b *Batch) Remaining() int {
	return b.Total - b.Completed - b.Failed
}
