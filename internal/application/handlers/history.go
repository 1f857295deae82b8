package handlers

import (
	"context"
	"fmt"

	"github.com/ersonp/lore-graph/internal/domain/entities"
	"github.com/ersonp/lore-graph/internal/domain/ports"
)

// HistoryHandler lists the audit log of a world.
type HistoryHandler struct {
	audit ports.AuditLog
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(audit ports.AuditLog) *HistoryHandler {
	return &HistoryHandler{
		audit: audit,
	}
}

// Handle returns up to limit audit entries, newest first.
func (h *HistoryHandler) Handle(ctx context.Context, worldID string, limit int) ([]entities.AuditEntry, error) {
	entries, err := h.audit.FindAuditLog(ctx, worldID, limit)
	if err != nil {
		return nil, fmt.Errorf("reading audit log: %w", err)
	}
	if entries == nil {
		entries = []entities.AuditEntry{}
	}
	return entries, nil
}
