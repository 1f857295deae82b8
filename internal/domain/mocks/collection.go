package mocks

import "context"

// CollectionManager is a mock implementation of ports.CollectionManager.
// It records the vector size of every EnsureCollection call.
type CollectionManager struct {
	EnsureErr error

	VectorSizes []uint64
}

// EnsureCollection records vectorSize and returns EnsureErr.
func (m *CollectionManager) EnsureCollection(_ context.Context, vectorSize uint64) error {
	m.VectorSizes = append(m.VectorSizes, vectorSize)
	return m.EnsureErr
}
