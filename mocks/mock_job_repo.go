package mocks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"docstream/internal/domain"
)

// MockJobRepo is a mock implementation of port.JobRepository.
type MockJobRepo struct {
	mock.Mock
}

func (m *MockJobRepo) Create(ctx context.Context, job *domain.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockJobRepo) GetByID(ctx context.Context, jobID uuid.UUID) (*domain.Job, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Job), args.Error(1)
}

func (m *MockJobRepo) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]domain.Job, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Job), args.Error(1)
}

func (m *MockJobRepo) MarkProcessing(ctx context.Context, jobID uuid.UUID, startedAt time.Time) error {
	args := m.Called(ctx, jobID, startedAt)
	return args.Error(0)
}

func (m *MockJobRepo) UpdateProgress(ctx context.Context, jobID uuid.UUID, progress int, partial json.RawMessage) error {
	args := m.Called(ctx, jobID, progress, partial)
	return args.Error(0)
}

func (m *MockJobRepo) MarkCompleted(ctx context.Context, jobID uuid.UUID, extracted, schemaWarnings json.RawMessage) error {
	args := m.Called(ctx, jobID, extracted, schemaWarnings)
	return args.Error(0)
}

func (m *MockJobRepo) MarkFailed(ctx context.Context, jobID uuid.UUID, errMsg string) error {
	args := m.Called(ctx, jobID, errMsg)
	return args.Error(0)
}

func (m *MockJobRepo) MarkCancelled(ctx context.Context, jobID uuid.UUID) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}

func (m *MockJobRepo) CancelPending(ctx context.Context, batchID uuid.UUID) (int, error) {
	args := m.Called(ctx, batchID)
	return args.Int(0), args.Error(1)
}
