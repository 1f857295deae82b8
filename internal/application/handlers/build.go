package handlers

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/ersonp/lore-graph/internal/domain/entities"
	"github.com/ersonp/lore-graph/internal/domain/services"
)

// BuildHandler handles graph builds and status checks.
type BuildHandler struct {
	service *services.SyncService
	logger  *zap.Logger

	// base parents every background build; Shutdown cancels it.
	base     context.Context
	shutdown context.CancelFunc

	mu      sync.Mutex
	running map[string]*services.BuildHandle
}

// NewBuildHandler creates a new build handler.
func NewBuildHandler(service *services.SyncService, logger *zap.Logger) *BuildHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	base, shutdown := context.WithCancel(context.Background())
	return &BuildHandler{
		service:  service,
		logger:   logger.Named("build"),
		base:     base,
		shutdown: shutdown,
		running:  make(map[string]*services.BuildHandle),
	}
}

// BuildRequest selects the world and kind of build.
type BuildRequest struct {
	WorldID     string
	FullRebuild bool
	// Async returns once the build has started instead of when it ends.
	Async bool
}

// BuildResult contains the outcome of a build request.
type BuildResult struct {
	WorldID string                `json:"world_id"`
	Started bool                  `json:"started"`
	Report  *entities.BuildReport `json:"report,omitempty"`
}

// Handle runs a build. Async builds outlive the caller's context and are
// reported through Status and Wait. They stop when Shutdown is called.
func (h *BuildHandler) Handle(ctx context.Context, req BuildRequest) (*BuildResult, error) {
	if !req.Async {
		report, err := h.service.BuildWorldGraph(ctx, req.WorldID, req.FullRebuild)
		if err != nil {
			return nil, err
		}
		return &BuildResult{WorldID: req.WorldID, Started: true, Report: report}, nil
	}

	if err := h.base.Err(); err != nil {
		return nil, fmt.Errorf("build handler shut down: %w", err)
	}
	handle, err := h.service.StartBuild(h.base, req.WorldID, req.FullRebuild)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	h.running[req.WorldID] = handle
	h.mu.Unlock()

	go func() {
		<-handle.Done()
		report, err := handle.Wait(context.Background())
		if err != nil {
			h.logger.Error("background build failed", zap.String("world_id", req.WorldID), zap.Error(err))
		} else {
			h.logger.Info("background build finished",
				zap.String("world_id", req.WorldID),
				zap.Int("nodes_created", report.NodesCreated),
				zap.Int("nodes_updated", report.NodesUpdated),
				zap.Int("edges_created", report.EdgesCreated),
			)
		}
		h.mu.Lock()
		if h.running[req.WorldID] == handle {
			delete(h.running, req.WorldID)
		}
		h.mu.Unlock()
	}()

	return &BuildResult{WorldID: req.WorldID, Started: true}, nil
}

// Status returns the sync status of a world.
func (h *BuildHandler) Status(ctx context.Context, worldID string) (*entities.SyncStatus, error) {
	status, err := h.service.GetStatus(ctx, worldID)
	if err != nil {
		return nil, fmt.Errorf("getting status: %w", err)
	}
	return status, nil
}

// Shutdown cancels every background build and refuses new ones. The
// cancelled builds still release their flags; call Wait before closing
// the stores they write to.
func (h *BuildHandler) Shutdown() {
	h.shutdown()
}

// Wait blocks until every background build has finished or ctx ends.
func (h *BuildHandler) Wait(ctx context.Context) error {
	h.mu.Lock()
	handles := make([]*services.BuildHandle, 0, len(h.running))
	for _, handle := range h.running {
		handles = append(handles, handle)
	}
	h.mu.Unlock()

	for _, handle := range handles {
		select {
		case <-handle.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
