package mocks

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"

	"docstream/internal/port"
)

// MockExtractor is a mock implementation of port.Extractor.
type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) Extract(ctx context.Context, input port.ExtractInput) (json.RawMessage, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *MockExtractor) ExtractStream(ctx context.Context, input port.ExtractInput, emit func(chunk string) error) error {
	args := m.Called(ctx, input, emit)
	return args.Error(0)
}

func (m *MockExtractor) Validate(ctx context.Context, input port.ExtractInput, instructions string) (bool, string, error) {
	args := m.Called(ctx, input, instructions)
	return args.Bool(0), args.String(1), args.Error(2)
}
