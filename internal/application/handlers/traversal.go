package handlers

import (
	"context"
	"strings"

	"github.com/ersonp/lore-graph/internal/domain/apperror"
	"github.com/ersonp/lore-graph/internal/domain/entities"
	"github.com/ersonp/lore-graph/internal/domain/services"
)

// TraversalHandler handles neighbourhood queries over the graph.
type TraversalHandler struct {
	service *services.QueryService
}

// NewTraversalHandler creates a new traversal handler.
func NewTraversalHandler(service *services.QueryService) *TraversalHandler {
	return &TraversalHandler{
		service: service,
	}
}

// RelatedRequest asks for the neighbourhood of an entity.
type RelatedRequest struct {
	WorldID           string
	EntityType        string
	EntityID          string
	Depth             int
	RelationshipTypes []string
}

// Related returns the entities within Depth hops of an entity.
func (h *TraversalHandler) Related(ctx context.Context, req RelatedRequest) (*services.RelatedEntities, error) {
	ref, err := parseRef(req.EntityType, req.EntityID)
	if err != nil {
		return nil, err
	}
	relTypes, err := entities.ParseRelationshipTypes(req.RelationshipTypes)
	if err != nil {
		return nil, invalidArgument(err)
	}
	if req.Depth < 0 {
		return nil, apperror.InvalidArgument("depth must not be negative")
	}
	return h.service.FindRelatedEntities(ctx, req.WorldID, ref, req.Depth, relTypes)
}

// BeatContextRequest asks for the entities around a beat.
type BeatContextRequest struct {
	WorldID     string
	BeatID      string
	MaxEntities int
}

// BeatContext returns a beat with its nearby entities.
func (h *TraversalHandler) BeatContext(ctx context.Context, req BeatContextRequest) (*services.BeatContext, error) {
	beatID := strings.TrimSpace(req.BeatID)
	if beatID == "" {
		return nil, apperror.InvalidArgument("beat_id is required")
	}
	return h.service.GetBeatContext(ctx, req.WorldID, entities.BeatID(beatID), req.MaxEntities)
}

// ArcRequest asks for a character's appearances.
type ArcRequest struct {
	WorldID     string
	CharacterID string
	StoryID     string
}

// Arc returns a character's beats in story order.
func (h *TraversalHandler) Arc(ctx context.Context, req ArcRequest) (*services.CharacterArc, error) {
	characterID := strings.TrimSpace(req.CharacterID)
	if characterID == "" {
		return nil, apperror.InvalidArgument("character_id is required")
	}
	return h.service.GetCharacterStoryArc(ctx, req.WorldID,
		entities.CharacterID(characterID), entities.StoryID(strings.TrimSpace(req.StoryID)))
}
