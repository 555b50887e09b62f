package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType discriminates lifecycle events pushed to subscribers.
type EventType string

const (
	EventJobStarted     EventType = "job:started"
	EventJobProgress    EventType = "job:progress"
	EventJobCompleted   EventType = "job:completed"
	EventJobFailed      EventType = "job:failed"
	EventBatchStarted   EventType = "batch:started"
	EventBatchProgress  EventType = "batch:progress"
	EventBatchCompleted EventType = "batch:completed"
	EventBatchFailed    EventType = "batch:failed"
	EventBatchCancelled EventType = "batch:cancelled"
)

// Event is a single lifecycle notification. DocumentTypeID is the primary
// routing key; JobID/BatchID exist for legacy per-job and per-batch
// subscriptions. Construct events through the New* functions below so each
// kind carries exactly the fields relevant to it.
type Event struct {
	Type           EventType       `json:"type"`
	JobID          *uuid.UUID      `json:"job_id,omitempty"`
	BatchID        *uuid.UUID      `json:"batch_id,omitempty"`
	DocumentID     *uuid.UUID      `json:"document_id,omitempty"`
	DocumentTypeID *uuid.UUID      `json:"document_type_id,omitempty"`
	Data           json.RawMessage `json:"data,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}

func newEvent(t EventType) Event {
	return Event{Type: t, Timestamp: time.Now().UTC()}
}

// NewJobStarted signals a job entering the processing state.
func NewJobStarted(job *Job, documentTypeID uuid.UUID) Event {
	e := newEvent(EventJobStarted)
	e.JobID = &job.ID
	e.BatchID = job.BatchID
	e.DocumentID = &job.DocumentID
	e.DocumentTypeID = &documentTypeID
	return e
}

// NewJobProgress carries a partial structured value accepted mid-stream.
func NewJobProgress(job *Job, documentTypeID uuid.UUID, partial json.RawMessage) Event {
	e := newEvent(EventJobProgress)
	e.JobID = &job.ID
	e.BatchID = job.BatchID
	e.DocumentID = &job.DocumentID
	e.DocumentTypeID = &documentTypeID
	e.Data = partial
	return e
}

// NewJobCompleted carries the final extracted data.
func NewJobCompleted(job *Job, documentTypeID uuid.UUID, data json.RawMessage) Event {
	e := newEvent(EventJobCompleted)
	e.JobID = &job.ID
	e.BatchID = job.BatchID
	e.DocumentID = &job.DocumentID
	e.DocumentTypeID = &documentTypeID
	e.Data = data
	return e
}

// NewJobFailed carries the failure reason. documentTypeID is nil when the
// failure happened before the type could be resolved; the event then routes
// only through its job and batch scopes.
func NewJobFailed(job *Job, documentTypeID *uuid.UUID, errMsg string) Event {
	e := newEvent(EventJobFailed)
	e.JobID = &job.ID
	e.BatchID = job.BatchID
	e.DocumentID = &job.DocumentID
	e.DocumentTypeID = documentTypeID
	e.Data, _ = json.Marshal(map[string]string{"error": errMsg})
	return e
}

// BatchProgressPayload is the data payload of batch progress/terminal events.
type BatchProgressPayload struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// NewBatchStarted signals a batch entering the processing state.
func NewBatchStarted(batch *Batch) Event {
	e := newEvent(EventBatchStarted)
	e.BatchID = &batch.ID
	e.DocumentTypeID = &batch.DocumentTypeID
	e.Data, _ = json.Marshal(BatchProgressPayload{Total: batch.Total})
	return e
}

// NewBatchProgress carries updated counters after a job reached a terminal state.
func NewBatchProgress(batchID, documentTypeID uuid.UUID, total, completed, failed int) Event {
	e := newEvent(EventBatchProgress)
	e.BatchID = &batchID
	e.DocumentTypeID = &documentTypeID
	e.Data, _ = json.Marshal(BatchProgressPayload{Total: total, Completed: completed, Failed: failed})
	return e
}

// NewBatchCompleted signals orchestration completion, regardless of per-job outcomes.
func NewBatchCompleted(batch *Batch) Event {
	e := newEvent(EventBatchCompleted)
	e.BatchID = &batch.ID
	e.DocumentTypeID = &batch.DocumentTypeID
	e.Data, _ = json.Marshal(BatchProgressPayload{Total: batch.Total, Completed: batch.Completed, Failed: batch.Failed})
	return e
}

// NewBatchFailed signals a structural batch failure.
func NewBatchFailed(batch *Batch, errMsg string) Event {
	e := newEvent(EventBatchFailed)
	e.BatchID = &batch.ID
	e.DocumentTypeID = &batch.DocumentTypeID
	e.Data, _ = json.Marshal(map[string]string{"error": errMsg})
	return e
}

// NewBatchCancelled signals that cancellation took effect; in-flight jobs
// already counted toward the payload counters.
func NewBatchCancelled(batch *Batch) Event {
	e := newEvent(EventBatchCancelled)
	e.BatchID = &batch.ID
	e.DocumentTypeID = &batch.DocumentTypeID
	e.Data, _ = json.Marshal(BatchProgressPayload{Total: batch.Total, Completed: batch.Completed, Failed: batch.Failed})
	return e
}
