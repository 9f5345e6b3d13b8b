package events

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockPublisher is a mock implementation of the Publisher interface
// for testing.
type MockPublisher struct {
	mock.Mock
}

// Publish is the mock implementation of the Publish method.
func (m *MockPublisher) Publish(ctx context.Context, outcome Outcome) error {
	args := m.Called(ctx, outcome)
	return args.Error(0)
}

// Close is the mock implementation of the Close method.
func (m *MockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}
