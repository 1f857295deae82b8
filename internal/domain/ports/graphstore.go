package ports

import (
	"context"
	"time"

	"github.com/ersonp/lore-graph/internal/domain/entities"
)

// GraphStore persists world graph nodes and edges.
// Every write is a single statement or transaction.
type GraphStore interface {
	// UpsertNode inserts or updates a node keyed by (world, type, entity).
	UpsertNode(ctx context.Context, node *entities.GraphNode) (created bool, err error)

	// FindNode returns the node for an entity, or nil if it has none.
	FindNode(ctx context.Context, worldID string, ref entities.EntityRef) (*entities.GraphNode, error)

	// FindNodesByIDs returns the nodes of a world with the given IDs.
	FindNodesByIDs(ctx context.Context, worldID string, ids []string) ([]entities.GraphNode, error)

	// ListNodes returns a world's nodes ordered by ID, optionally filtered by type.
	ListNodes(ctx context.Context, worldID string, types []entities.EntityType) ([]entities.GraphNode, error)

	// DeleteNode removes a node and its edges, returning the removed edge count.
	DeleteNode(ctx context.Context, nodeID string) (edgesRemoved int, err error)

	// UpdateImportance writes importance scores, skipping unchanged values.
	UpdateImportance(ctx context.Context, worldID string, scores map[string]float64) (int, error)

	// CountNodes returns the number of nodes in a world.
	CountNodes(ctx context.Context, worldID string) (int, error)

	// UpsertEdge inserts or updates an edge keyed by (source, target, type).
	// Both endpoints must exist in the edge's world.
	UpsertEdge(ctx context.Context, edge *entities.GraphEdge) (created bool, err error)

	// DeleteEdge removes an edge by ID.
	DeleteEdge(ctx context.Context, edgeID string) (bool, error)

	// ListEdges returns a world's edges ordered by ID, optionally filtered by type.
	ListEdges(ctx context.Context, worldID string, types []entities.RelationshipType) ([]entities.GraphEdge, error)

	// ListEdgesForNodes returns edges touching any of the given nodes.
	ListEdgesForNodes(ctx context.Context, worldID string, nodeIDs []string, types []entities.RelationshipType) ([]entities.GraphEdge, error)

	// CountEdges returns the number of edges in a world.
	CountEdges(ctx context.Context, worldID string) (int, error)

	// ClearWorldGraph deletes a world's nodes and edges but keeps its status row.
	ClearWorldGraph(ctx context.Context, worldID string) (nodes int, edges int, err error)

	// DeleteWorld deletes a world's nodes, edges, status and audit history.
	DeleteWorld(ctx context.Context, worldID string) error
}

// SyncStatusStore owns the per-world build flag and status row.
type SyncStatusStore interface {
	// TryStartSync sets sync_in_progress for token if the flag is clear or
	// was last renewed more than staleAfter ago.
	TryStartSync(ctx context.Context, worldID, token string, staleAfter time.Duration) (bool, error)

	// RenewSync refreshes the flag's timestamp while token still owns it.
	RenewSync(ctx context.Context, worldID, token string) (bool, error)

	// FinishSync clears the flag and records the outcome if token owns it.
	FinishSync(ctx context.Context, worldID, token string, outcome entities.SyncOutcome) (bool, error)

	// GetSyncStatus returns the status row, recovering a flag not renewed within staleAfter.
	GetSyncStatus(ctx context.Context, worldID string, staleAfter time.Duration) (*entities.SyncStatus, error)
}

// AuditLog records graph actions per world.
type AuditLog interface {
	LogAction(ctx context.Context, worldID, action string, details map[string]any) error
	FindAuditLog(ctx context.Context, worldID string, limit int) ([]entities.AuditEntry, error)
}

// GraphDB is the full relational surface the graph services need.
type GraphDB interface {
	GraphStore
	SyncStatusStore
	AuditLog
}

// DependencyStore owns each event's ordered caused-by list.
type DependencyStore interface {
	// CausedBy returns the causes of an event in a world.
	CausedBy(ctx context.Context, worldID, eventID string) ([]string, error)

	// AddDependency records "eventID caused-by causeID" after checking, in the
	// same transaction, that it keeps the dependency graph acyclic.
	AddDependency(ctx context.Context, worldID, eventID, causeID string) (added bool, err error)

	// RemoveDependency deletes the reference if present.
	RemoveDependency(ctx context.Context, worldID, eventID, causeID string) (removed bool, err error)
}
