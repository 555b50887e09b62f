package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"docstream/internal/domain"
)

// MockDocumentTypeRepo is a mock implementation of port.DocumentTypeRepository.
type MockDocumentTypeRepo struct {
	mock.Mock
}

func (m *MockDocumentTypeRepo) GetByID(ctx context.Context, typeID uuid.UUID) (*domain.DocumentType, error) {
	args := m.Called(ctx, typeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DocumentType), args.Error(1)
}
