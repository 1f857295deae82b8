package handlers

import (
	"context"
	"strings"

	"github.com/ersonp/lore-graph/internal/domain/apperror"
	"github.com/ersonp/lore-graph/internal/domain/entities"
	"github.com/ersonp/lore-graph/internal/domain/services"
)

// SearchHandler handles semantic search and similarity queries.
type SearchHandler struct {
	service *services.QueryService
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(service *services.QueryService) *SearchHandler {
	return &SearchHandler{
		service: service,
	}
}

// SearchRequest is a free-text search over a world's graph.
type SearchRequest struct {
	WorldID     string
	Query       string
	EntityTypes []string
	Limit       int
}

// Handle ranks a world's nodes against a query.
func (h *SearchHandler) Handle(ctx context.Context, req SearchRequest) ([]services.SearchResult, error) {
	types, err := entities.ParseEntityTypes(req.EntityTypes)
	if err != nil {
		return nil, invalidArgument(err)
	}
	if req.Limit < 0 {
		return nil, apperror.InvalidArgument("limit must not be negative")
	}
	return h.service.SemanticSearch(ctx, req.WorldID, req.Query, types, req.Limit)
}

// SimilarRequest asks for entities resembling one entity.
type SimilarRequest struct {
	WorldID     string
	EntityType  string
	EntityID    string
	TargetTypes []string
	Limit       int
}

// Similar ranks other nodes by similarity to an entity.
func (h *SearchHandler) Similar(ctx context.Context, req SimilarRequest) ([]services.SearchResult, error) {
	ref, err := parseRef(req.EntityType, req.EntityID)
	if err != nil {
		return nil, err
	}
	types, err := entities.ParseEntityTypes(req.TargetTypes)
	if err != nil {
		return nil, invalidArgument(err)
	}
	if req.Limit < 0 {
		return nil, apperror.InvalidArgument("limit must not be negative")
	}
	return h.service.FindSimilarEntities(ctx, req.WorldID, ref, types, req.Limit)
}

// parseRef validates an entity type and ID pair.
func parseRef(entityType, entityID string) (entities.EntityRef, error) {
	t, err := entities.ParseEntityType(entityType)
	if err != nil {
		return entities.EntityRef{}, invalidArgument(err)
	}
	id := strings.TrimSpace(entityID)
	if id == "" {
		return entities.EntityRef{}, apperror.InvalidArgument("entity_id is required")
	}
	return entities.EntityRef{Type: t, ID: id}, nil
}
