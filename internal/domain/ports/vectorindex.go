package ports

import (
	"context"

	"github.com/ersonp/lore-graph/internal/domain/entities"
)

// ScoredNode is a vector index hit.
type ScoredNode struct {
	NodeID string
	Score  float64
}

// VectorIndex mirrors node embeddings into an approximate nearest-neighbour
// index. The graph store stays authoritative; the index only shortlists.
type VectorIndex interface {
	// UpsertNodes stores the embeddings of the given nodes.
	UpsertNodes(ctx context.Context, nodes []entities.GraphNode) error

	// DeleteNodes removes nodes by ID.
	DeleteNodes(ctx context.Context, nodeIDs []string) error

	// DeleteWorld removes every point of a world.
	DeleteWorld(ctx context.Context, worldID string) error

	// Search returns up to limit node IDs nearest to embedding.
	Search(ctx context.Context, worldID string, embedding []float32, types []entities.EntityType, limit int) ([]ScoredNode, error)
}
