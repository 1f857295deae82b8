package handlers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ersonp/lore-graph/internal/domain/ports"
)

// WorldHandler handles world-wide data removal.
type WorldHandler struct {
	graph  ports.GraphStore
	source ports.SourceWriter
	index  ports.VectorIndex
	logger *zap.Logger
}

// NewWorldHandler creates a new world handler. index may be nil.
func NewWorldHandler(graph ports.GraphStore, source ports.SourceWriter, index ports.VectorIndex, logger *zap.Logger) *WorldHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorldHandler{
		graph:  graph,
		source: source,
		index:  index,
		logger: logger.Named("world"),
	}
}

// Delete removes every graph row, source entity and indexed vector of a
// world. A vector index failure is logged, since the index is rebuilt from
// the graph store.
func (h *WorldHandler) Delete(ctx context.Context, worldID string) error {
	if err := h.graph.DeleteWorld(ctx, worldID); err != nil {
		return fmt.Errorf("deleting graph: %w", err)
	}
	if err := h.source.DeleteWorldSources(ctx, worldID); err != nil {
		return fmt.Errorf("deleting source entities: %w", err)
	}
	if h.index != nil {
		if err := h.index.DeleteWorld(ctx, worldID); err != nil {
			h.logger.Warn("removing world from vector index failed",
				zap.String("world_id", worldID), zap.Error(err))
		}
	}
	return nil
}
