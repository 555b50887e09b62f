package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"docstream/internal/domain"
	"docstream/internal/port"
)

type documentRepo struct {
	db *sqlx.DB
}

// NewDocumentRepo creates a new PostgreSQL-backed DocumentRepository.
func NewDocumentRepo(db *sqlx.DB) port.DocumentRepository {
	return &documentRepo{db: db}
}

func (r *documentRepo) Create(ctx context.Context, doc *domain.Document) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO documents (id, document_type_id, filename, content_type, s3_bucket, s3_key)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		doc.ID, doc.DocumentTypeID, doc.Filename, doc.ContentType, doc.S3Bucket, doc.S3Key)
	if err != nil {
		return fmt.Errorf("documentRepo.Create: %w", err)
	}
	return nil
}

func (r *documentRepo) GetByID(ctx context.Context, docID uuid.UUID) (*domain.Document, error) {
	var doc domain.Document
	err := r.db.GetContext(ctx, &doc,
		"SELECT * FROM documents WHERE id = $1", docID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("documentRepo.GetByID: %w", err)
	}
	return &doc, nil
}

func (r *documentRepo) ListByIDs(ctx context.Context, docIDs []uuid.UUID) ([]domain.Document, error) {
	if len(docIDs) == 0 {
		return []domain.Document{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM documents WHERE id IN (?)", docIDs)
	if err != nil {
		return nil, fmt.Errorf("documentRepo.ListByIDs: %w", err)
	}
	query = r.db.Rebind(query)

	docs := []domain.Document{}
	if err := r.db.SelectContext(ctx, &docs, query, args...); err != nil {
		return nil, fmt.Errorf("documentRepo.ListByIDs: %w", err)
	}
	return docs, nil
}

func (r *documentRepo) Delete(ctx context.Context, docID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM documents WHERE id = $1", docID)
	if err != nil {
		return fmt.Errorf("documentRepo.Delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("documentRepo.Delete: %w", err)
	}
	if n == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}
