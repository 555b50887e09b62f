package port

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"docstream/internal/domain"
)

// DocumentRepository defines the contract for document persistence.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, docID uuid.UUID) (*domain.Document, error)
	ListByIDs(ctx context.Context, docIDs []uuid.UUID) ([]domain.Document, error)
	Delete(ctx context.Context, docID uuid.UUID) error
}

// DocumentTypeRepository defines the contract for document type lookup.
type DocumentTypeRepository interface {
	GetByID(ctx context.Context, typeID uuid.UUID) (*domain.DocumentType, error)
}

// JobRepository defines the contract for job persistence. Status-mutating
// methods enforce forward-only transitions at the row level: marking a job
// that is already terminal is a no-op that returns domain.ErrJobAlreadyTerminal.
type JobRepository interface {
	Create(ctx context.Context, job *domain.Job) error
	GetByID(ctx context.Context, jobID uuid.UUID) (*domain.Job, error)
	ListByBatch(ctx context.Context, batchID uuid.UUID) ([]domain.Job, error)
	MarkProcessing(ctx context.Context, jobID uuid.UUID, startedAt time.Time) error
	UpdateProgress(ctx context.Context, jobID uuid.UUID, progress int, partial json.RawMessage) error
	MarkCompleted(ctx context.Context, jobID uuid.UUID, extracted, schemaWarnings json.RawMessage) error
	MarkFailed(ctx context.Context, jobID uuid.UUID, errMsg string) error
	MarkCancelled(ctx context.Context, jobID uuid.UUID) error
	CancelPending(ctx context.Context, batchID uuid.UUID) (int, error)
}

// BatchCounters is the counter snapshot returned by the increment methods.
type BatchCounters struct {
	Total     int `db:"total"`
	Completed int `db:"completed"`
	Failed    int `db:"failed"`
}

// BatchRepository defines the contract for batch persistence. The increment
// methods are single-row atomic updates returning the post-update counters.
type BatchRepository interface {
	CreateWithJobs(ctx context.Context, batch *domain.Batch, jobs []domain.Job) error
	GetByID(ctx context.Context, batchID uuid.UUID) (*domain.Batch, error)
	MarkProcessing(ctx context.Context, batchID uuid.UUID) error
	IncrementCompleted(ctx context.Context, batchID uuid.UUID) (*BatchCounters, error)
	IncrementFailed(ctx context.Context, batchID uuid.UUID) (*BatchCounters, error)
	MarkTerminal(ctx context.Context, batchID uuid.UUID, status domain.BatchStatus, completedAt time.Time) error
	RequestCancel(ctx context.Context, batchID uuid.UUID) (bool, error)
}
