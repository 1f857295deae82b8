// Package handlers contains application use case handlers.
package handlers

import (
	"context"
	"fmt"

	"github.com/ersonp/lore-graph/internal/domain/ports"
	"github.com/ersonp/lore-graph/internal/infrastructure/config"
)

// InitHandler handles project initialization.
type InitHandler struct {
	collectionManager ports.CollectionManager
	vectorSize        uint64
}

// NewInitHandler creates a new init handler. collectionManager may be nil
// when no vector index is configured.
func NewInitHandler(collectionManager ports.CollectionManager, vectorSize uint64) *InitHandler {
	return &InitHandler{
		collectionManager: collectionManager,
		vectorSize:        vectorSize,
	}
}

// InitResult contains the result of initialization.
type InitResult struct {
	ConfigPath     string
	CollectionName string
}

// Handle writes the default configuration and prepares the vector index.
func (h *InitHandler) Handle(ctx context.Context, basePath string) (*InitResult, error) {
	if config.Exists(basePath) {
		return nil, fmt.Errorf("lore already initialized in %s", basePath)
	}

	if err := config.WriteDefault(basePath); err != nil {
		return nil, fmt.Errorf("writing default config: %w", err)
	}

	result := &InitResult{ConfigPath: config.ConfigFilePath(basePath)}
	if h.collectionManager == nil {
		return result, nil
	}

	cfg, err := config.Load(basePath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := h.collectionManager.EnsureCollection(ctx, h.vectorSize); err != nil {
		return nil, fmt.Errorf("creating collection: %w", err)
	}
	result.CollectionName = cfg.Qdrant.Collection

	return result, nil
}
