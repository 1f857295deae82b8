package ports

import "context"

// CollectionManager prepares the vector index backing a project.
// Read/write callers use VectorIndex and never need it.
type CollectionManager interface {
	// EnsureCollection creates the node collection and its payload indexes
	// if they are missing. It is safe to call repeatedly.
	EnsureCollection(ctx context.Context, vectorSize uint64) error
}
