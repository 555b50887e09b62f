package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"docstream/internal/domain"
	"docstream/internal/service"
)

// MockBatchService is a mock implementation of service.BatchService.
type MockBatchService struct {
	mock.Mock
}

func (m *MockBatchService) CreateBatch(ctx context.Context, input *service.CreateBatchInput) (*domain.Batch, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Batch), args.Error(1)
}

func (m *MockBatchService) GetBatch(ctx context.Context, batchID uuid.UUID) (*domain.Batch, []domain.Job, error) {
	args := m.Called(ctx, batchID)
	var batch *domain.Batch
	var jobs []domain.Job
	if args.Get(0) != nil {
		batch = args.Get(0).(*domain.Batch)
	}
	if args.Get(1) != nil {
		jobs = args.Get(1).([]domain.Job)
	}
	return batch, jobs, args.Error(2)
}

func (m *MockBatchService) CancelBatch(ctx context.Context, batchID uuid.UUID) (*domain.Batch, bool, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.Batch), args.Bool(1), args.Error(2)
}

func (m *MockBatchService) Wait() {
	m.Called()
}
