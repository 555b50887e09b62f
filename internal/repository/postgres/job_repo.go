package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"docstream/internal/domain"
	"docstream/internal/port"
)

type jobRepo struct {
	db *sqlx.DB
}

// NewJobRepo creates a new PostgreSQL-backed JobRepository.
func NewJobRepo(db *sqlx.DB) port.JobRepository {
	return &jobRepo{db: db}
}

func (r *jobRepo) Create(ctx context.Context, job *domain.Job) error {
	job.CreatedAt = time.Now().UTC()

	query := `INSERT INTO jobs (
		id, document_id, batch_id, status, progress,
		partial_data, extracted_data, error, schema_warnings,
		started_at, completed_at, created_at
	) VALUES (
		$1, $2, $3, $4, $5,
		$6, $7, $8, $9,
		$10, $11, $12
	)`

	_, err := r.db.ExecContext(ctx, query,
		job.ID, job.DocumentID, job.BatchID, job.Status, job.Progress,
		job.PartialData, job.ExtractedData, job.Error, job.SchemaWarnings,
		job.StartedAt, job.CompletedAt, job.CreatedAt)
	if err != nil {
		return fmt.Errorf("jobRepo.Create: %w", err)
	}
	return nil
}

func (r *jobRepo) GetByID(ctx context.Context, jobID uuid.UUID) (*domain.Job, error) {
	var job domain.Job
	err := r.db.GetContext(ctx, &job,
		"SELECT * FROM jobs WHERE id = $1", jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("jobRepo.GetByID: %w", err)
	}
	return &job, nil
}

func (r *jobRepo) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]domain.Job, error) {
	jobs := []domain.Job{}
	err := r.db.SelectContext(ctx, &jobs,
		"SELECT * FROM jobs WHERE batch_id = $1 ORDER BY created_at", batchID)
	if err != nil {
		return nil, fmt.Errorf("jobRepo.ListByBatch: %w", err)
	}
	return jobs, nil
}

func (r *jobRepo) MarkProcessing(ctx context.Context, jobID uuid.UUID, startedAt time.Time) error {
	query := `UPDATE jobs
		SET status = $2, started_at = $3, progress = 0
		WHERE id = $1 AND status = $4`

	res, err := r.db.ExecContext(ctx, query,
		jobID, domain.JobStatusProcessing, startedAt, domain.JobStatusPending)
	if err != nil {
		return fmt.Errorf("jobRepo.MarkProcessing: %w", err)
	}
	return r.checkTransition(ctx, jobID, res, "MarkProcessing")
}

func (r *jobRepo) UpdateProgress(ctx context.Context, jobID uuid.UUID, progress int, partial json.RawMessage) error {
	query := `UPDATE jobs
		SET progress = $2, partial_data = $3
		WHERE id = $1 AND status = $4`

	res, err := r.db.ExecContext(ctx, query,
		jobID, progress, partial, domain.JobStatusProcessing)
	if err != nil {
		return fmt.Errorf("jobRepo.UpdateProgress: %w", err)
	}
	return r.checkTransition(ctx, jobID, res, "UpdateProgress")
}

func (r *jobRepo) MarkCompleted(ctx context.Context, jobID uuid.UUID, extracted, schemaWarnings json.RawMessage) error {
	query := `UPDATE jobs
		SET status = $2, progress = 100, extracted_data = $3,
			schema_warnings = $4, partial_data = NULL, completed_at = $5
		WHERE id = $1 AND status NOT IN ($6, $7, $8)`

	res, err := r.db.ExecContext(ctx, query,
		jobID, domain.JobStatusCompleted, extracted, schemaWarnings, time.Now().UTC(),
		domain.JobStatusCompleted, domain.JobStatusFailed, domain.JobStatusCancelled)
	if err != nil {
		return fmt.Errorf("jobRepo.MarkCompleted: %w", err)
	}
	return r.checkTransition(ctx, jobID, res, "MarkCompleted")
}

func (r *jobRepo) MarkFailed(ctx context.Context, jobID uuid.UUID, errMsg string) error {
	query := `UPDATE jobs
		SET status = $2, error = $3, completed_at = $4
		WHERE id = $1 AND status NOT IN ($5, $6, $7)`

	res, err := r.db.ExecContext(ctx, query,
		jobID, domain.JobStatusFailed, errMsg, time.Now().UTC(),
		domain.JobStatusCompleted, domain.JobStatusFailed, domain.JobStatusCancelled)
	if err != nil {
		return fmt.Errorf("jobRepo.MarkFailed: %w", err)
	}
	return r.checkTransition(ctx, jobID, res, "MarkFailed")
}

func (r *jobRepo) MarkCancelled(ctx context.Context, jobID uuid.UUID) error {
	query := `UPDATE jobs
		SET status = $2, completed_at = $3
		WHERE id = $1 AND status NOT IN ($4, $5, $6)`

	res, err := r.db.ExecContext(ctx, query,
		jobID, domain.JobStatusCancelled, time.Now().UTC(),
		domain.JobStatusCompleted, domain.JobStatusFailed, domain.JobStatusCancelled)
	if err != nil {
		return fmt.Errorf("jobRepo.MarkCancelled: %w", err)
	}
	return r.checkTransition(ctx, jobID, res, "MarkCancelled")
}

func (r *jobRepo) CancelPending(ctx context.Context, batchID uuid.UUID) (int, error) {
	query := `UPDATE jobs
		SET status = $2, completed_at = $3
		WHERE batch_id = $1 AND status = $4`

	res, err := r.db.ExecContext(ctx, query,
		batchID, domain.JobStatusCancelled, time.Now().UTC(), domain.JobStatusPending)
	if err != nil {
		return 0, fmt.Errorf("jobRepo.CancelPending: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("jobRepo.CancelPending: %w", err)
	}
	return int(n), nil
}

// checkTransition distinguishes a missing job from a transition blocked by an
// already-terminal status when a guarded UPDATE touched no rows.
func (r *jobRepo) checkTransition(ctx context.Context, jobID uuid.UUID, res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("jobRepo.%s: %w", op, err)
	}
	if n > 0 {
		return nil
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists,
		"SELECT EXISTS (SELECT 1 FROM jobs WHERE id = $1)", jobID); err != nil {
		return fmt.Errorf("jobRepo.%s: %w", op, err)
	}
	if !exists {
		return domain.ErrJobNotFound
	}
	return domain.ErrJobAlreadyTerminal
}
