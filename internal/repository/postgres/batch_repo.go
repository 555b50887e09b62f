package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"docstream/internal/domain"
	"docstream/internal/port"
)

type batchRepo struct {
	db *sqlx.DB
}

// NewBatchRepo creates a new PostgreSQL-backed BatchRepository.
func NewBatchRepo(db *sqlx.DB) port.BatchRepository {
	return &batchRepo{db: db}
}

func (r *batchRepo) CreateWithJobs(ctx context.Context, batch *domain.Batch, jobs []domain.Job) error {
	now := time.Now().UTC()
	batch.CreatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("batchRepo.CreateWithJobs: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `INSERT INTO batches (
		id, document_type_id, total, completed, failed,
		status, webhook_url, created_at, completed_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		batch.ID, batch.DocumentTypeID, batch.Total, batch.Completed, batch.Failed,
		batch.Status, batch.WebhookURL, batch.CreatedAt, batch.CompletedAt)
	if err != nil {
		return fmt.Errorf("batchRepo.CreateWithJobs: inserting batch: %w", err)
	}

	for i := range jobs {
		jobs[i].CreatedAt = now
		_, err = tx.ExecContext(ctx, `INSERT INTO jobs (
			id, document_id, batch_id, status, progress,
			partial_data, extracted_data, error, schema_warnings,
			started_at, completed_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			jobs[i].ID, jobs[i].DocumentID, jobs[i].BatchID, jobs[i].Status, jobs[i].Progress,
			jobs[i].PartialData, jobs[i].ExtractedData, jobs[i].Error, jobs[i].SchemaWarnings,
			jobs[i].StartedAt, jobs[i].CompletedAt, jobs[i].CreatedAt)
		if err != nil {
			return fmt.Errorf("batchRepo.CreateWithJobs: inserting job %s: %w", jobs[i].ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("batchRepo.CreateWithJobs: %w", err)
	}
	return nil
}

func (r *batchRepo) GetByID(ctx context.Context, batchID uuid.UUID) (*domain.Batch, error) {
	var batch domain.Batch
	err := r.db.GetContext(ctx, &batch,
		"SELECT * FROM batches WHERE id = $1", batchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBatchNotFound
		}
		return nil, fmt.Errorf("batchRepo.GetByID: %w", err)
	}
	return &batch, nil
}

func (r *batchRepo) MarkProcessing(ctx context.Context, batchID uuid.UUID) error {
	query := `UPDATE batches SET status = $2
		WHERE id = $1 AND status = $3`

	res, err := r.db.ExecContext(ctx, query,
		batchID, domain.BatchStatusProcessing, domain.BatchStatusPending)
	if err != nil {
		return fmt.Errorf("batchRepo.MarkProcessing: %w", err)
	}
	return r.checkUpdate(ctx, batchID, res, "MarkProcessing")
}

func (r *batchRepo) IncrementCompleted(ctx context.Context, batchID uuid.UUID) (*port.BatchCounters, error) {
	return r.increment(ctx, batchID, "completed")
}

func (r *batchRepo) IncrementFailed(ctx context.Context, batchID uuid.UUID) (*port.BatchCounters, error) {
	return r.increment(ctx, batchID, "failed")
}

func (r *batchRepo) increment(ctx context.Context, batchID uuid.UUID, column string) (*port.BatchCounters, error) {
	query := fmt.Sprintf(`UPDATE batches SET %s = %s + 1
		WHERE id = $1
		RETURNING total, completed, failed`, column, column)

	var counters port.BatchCounters
	err := r.db.GetContext(ctx, &counters, query, batchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBatchNotFound
		}
		return nil, fmt.Errorf("batchRepo.increment %s: %w", column, err)
	}
	return &counters, nil
}

func (r *batchRepo) MarkTerminal(ctx context.Context, batchID uuid.UUID, status domain.BatchStatus, completedAt time.Time) error {
	query := `UPDATE batches SET status = $2, completed_at = $3
		WHERE id = $1 AND status NOT IN ($4, $5, $6)`

	res, err := r.db.ExecContext(ctx, query,
		batchID, status, completedAt,
		domain.BatchStatusCompleted, domain.BatchStatusFailed, domain.BatchStatusCancelled)
	if err != nil {
		return fmt.Errorf("batchRepo.MarkTerminal: %w", err)
	}
	return r.checkUpdate(ctx, batchID, res, "MarkTerminal")
}

// RequestCancel flips a non-terminal batch to cancelled. It reports whether
// this call performed the transition, so a second cancel stays idempotent.
func (r *batchRepo) RequestCancel(ctx context.Context, batchID uuid.UUID) (bool, error) {
	query := `UPDATE batches SET status = $2, completed_at = $3
		WHERE id = $1 AND status NOT IN ($4, $5, $6)`

	res, err := r.db.ExecContext(ctx, query,
		batchID, domain.BatchStatusCancelled, time.Now().UTC(),
		domain.BatchStatusCompleted, domain.BatchStatusFailed, domain.BatchStatusCancelled)
	if err != nil {
		return false, fmt.Errorf("batchRepo.RequestCancel: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("batchRepo.RequestCancel: %w", err)
	}
	if n > 0 {
		return true, nil
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists,
		"SELECT EXISTS (SELECT 1 FROM batches WHERE id = $1)", batchID); err != nil {
		return false, fmt.Errorf("batchRepo.RequestCancel: %w", err)
	}
	if !exists {
		return false, domain.ErrBatchNotFound
	}
	return false, nil
}

func (r *batchRepo) checkUpdate(ctx context.Context, batchID uuid.UUID, res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("batchRepo.%s: %w", op, err)
	}
	if n > 0 {
		return nil
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists,
		"SELECT EXISTS (SELECT 1 FROM batches WHERE id = $1)", batchID); err != nil {
		return fmt.Errorf("batchRepo.%s: %w", op, err)
	}
	if !exists {
		return domain.ErrBatchNotFound
	}
	return domain.ErrBatchAlreadyTerminal
}
