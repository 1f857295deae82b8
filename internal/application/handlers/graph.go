package handlers

import (
	"go.uber.org/zap"

	"github.com/ersonp/lore-graph/internal/domain/ports"
	"github.com/ersonp/lore-graph/internal/domain/services"
)

// GraphHandler groups the handlers exposed to agents and the CLI.
type GraphHandler struct {
	Build     *BuildHandler
	Search    *SearchHandler
	Traversal *TraversalHandler
	Causal    *CausalHandler
	History   *HistoryHandler
}

// NewGraphHandler wires the graph use cases onto their services.
func NewGraphHandler(
	syncService *services.SyncService,
	queryService *services.QueryService,
	causalService *services.CausalService,
	audit ports.AuditLog,
	logger *zap.Logger,
) *GraphHandler {
	return &GraphHandler{
		Build:     NewBuildHandler(syncService, logger),
		Search:    NewSearchHandler(queryService),
		Traversal: NewTraversalHandler(queryService),
		Causal:    NewCausalHandler(causalService),
		History:   NewHistoryHandler(audit),
	}
}
