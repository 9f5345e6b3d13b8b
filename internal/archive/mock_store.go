package archive

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockStore is a mock implementation of the Store interface for
// testing.
type MockStore struct {
	mock.Mock
}

// Save is the mock implementation of the Save method.
func (m *MockStore) Save(ctx context.Context, objectName string, data []byte) error {
	args := m.Called(ctx, objectName, data)
	return args.Error(0)
}
