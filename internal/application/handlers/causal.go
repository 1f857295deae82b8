package handlers

import (
	"context"
	"strings"

	"github.com/ersonp/lore-graph/internal/domain/apperror"
	"github.com/ersonp/lore-graph/internal/domain/entities"
	"github.com/ersonp/lore-graph/internal/domain/services"
)

// CausalHandler handles causal chain traces and dependency edits.
type CausalHandler struct {
	service *services.CausalService
}

// NewCausalHandler creates a new causal handler.
func NewCausalHandler(service *services.CausalService) *CausalHandler {
	return &CausalHandler{
		service: service,
	}
}

// TraceRequest asks for the causal chain of an event.
type TraceRequest struct {
	WorldID   string
	EventID   string
	Direction string
	MaxDepth  int
}

// Trace follows causal links from an event.
func (h *CausalHandler) Trace(ctx context.Context, req TraceRequest) (*services.EventChain, error) {
	eventID := strings.TrimSpace(req.EventID)
	if eventID == "" {
		return nil, apperror.InvalidArgument("event_id is required")
	}
	direction, err := services.ParseChainDirection(req.Direction)
	if err != nil {
		return nil, err
	}
	if req.MaxDepth < 0 {
		return nil, apperror.InvalidArgument("max_depth must not be negative")
	}
	return h.service.TraceEventChain(ctx, req.WorldID, entities.EventID(eventID), direction, req.MaxDepth)
}

// DependencyRequest names an effect event and one of its causes.
type DependencyRequest struct {
	WorldID      string
	EventID      string
	CauseEventID string
}

// Add records that EventID was caused by CauseEventID.
func (h *CausalHandler) Add(ctx context.Context, req DependencyRequest) (*services.DependencyChange, error) {
	return h.service.AddEventDependency(ctx, req.WorldID,
		entities.EventID(strings.TrimSpace(req.EventID)), entities.EventID(strings.TrimSpace(req.CauseEventID)))
}

// Remove deletes a caused-by link.
func (h *CausalHandler) Remove(ctx context.Context, req DependencyRequest) (*services.DependencyChange, error) {
	return h.service.RemoveEventDependency(ctx, req.WorldID,
		entities.EventID(strings.TrimSpace(req.EventID)), entities.EventID(strings.TrimSpace(req.CauseEventID)))
}
