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

type documentTypeRepo struct {
	db *sqlx.DB
}

// NewDocumentTypeRepo creates a new PostgreSQL-backed DocumentTypeRepository.
func NewDocumentTypeRepo(db *sqlx.DB) port.DocumentTypeRepository {
	return &documentTypeRepo{db: db}
}

func (r *documentTypeRepo) GetByID(ctx context.Context, typeID uuid.UUID) (*domain.DocumentType, error) {
	var dt domain.DocumentType
	err := r.db.GetContext(ctx, &dt,
		"SELECT * FROM document_types WHERE id = $1", typeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDocumentTypeNotFound
		}
		return nil, fmt.Errorf("documentTypeRepo.GetByID: %w", err)
	}
	return &dt, nil
}
