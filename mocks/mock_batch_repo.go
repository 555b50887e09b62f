package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"docstream/internal/domain"
	"docstream/internal/port"
)

// MockBatchRepo is a mock implementation of port.BatchRepository.
type MockBatchRepo struct {
	mock.Mock
}

func (m *MockBatchRepo) CreateWithJobs(ctx context.Context, batch *domain.Batch, jobs []domain.Job) error {
	args := m.Called(ctx, batch, jobs)
	return args.Error(0)
}

func (m *MockBatchRepo) GetByID(ctx context.Context, batchID uuid.UUID) (*domain.Batch, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Batch), args.Error(1)
}

func (m *MockBatchRepo) MarkProcessing(ctx context.Context, batchID uuid.UUID) error {
	args := m.Called(ctx, batchID)
	return args.Error(0)
}

func (m *MockBatchRepo) IncrementCompleted(ctx context.Context, batchID uuid.UUID) (*port.BatchCounters, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.BatchCounters), args.Error(1)
}

func (m *MockBatchRepo) IncrementFailed(ctx context.Context, batchID uuid.UUID) (*port.BatchCounters, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.BatchCounters), args.Error(1)
}

func (m *MockBatchRepo) MarkTerminal(ctx context.Context, batchID uuid.UUID, status domain.BatchStatus, completedAt time.Time) error {
	args := m.Called(ctx, batchID, status, completedAt)
	return args.Error(0)
}

func (m *MockBatchRepo) RequestCancel(ctx context.Context, batchID uuid.UUID) (bool, error) {
	args := m.Called(ctx, batchID)
	return args.Bool(0), args.Error(1)
}
