package entities

import "time"

// SyncStatus tracks the graph build state of one world.
type SyncStatus struct {
	WorldID             string     `json:"world_id"`
	LastFullSync        *time.Time `json:"last_full_sync,omitempty"`
	LastIncrementalSync *time.Time `json:"last_incremental_sync,omitempty"`
	NodeCount           int        `json:"node_count"`
	EdgeCount           int        `json:"edge_count"`
	SyncInProgress      bool       `json:"sync_in_progress"`
	SyncStartedAt       *time.Time `json:"sync_started_at,omitempty"`
	LastError           string     `json:"last_error,omitempty"`
}

// IsBuilt reports whether any build ever completed for the world.
func (s *SyncStatus) IsBuilt() bool {
	return s.LastFullSync != nil || s.LastIncrementalSync != nil
}

// SyncOutcome is what a finished build records in the status row.
type SyncOutcome struct {
	FullRebuild bool
	Completed   bool
	NodeCount   int
	EdgeCount   int
	LastError   string
}

// BuildReport summarizes one graph build.
type BuildReport struct {
	WorldID        string        `json:"world_id"`
	FullRebuild    bool          `json:"full_rebuild"`
	NodesCreated   int           `json:"nodes_created"`
	NodesUpdated   int           `json:"nodes_updated"`
	NodesRemoved   int           `json:"nodes_removed"`
	EdgesCreated   int           `json:"edges_created"`
	EdgesRemoved   int           `json:"edges_removed"`
	FailedEntities []EntityRef   `json:"failed_entities,omitempty"`
	Duration       time.Duration `json:"duration"`
}

// Changed reports whether the build modified anything.
func (r *BuildReport) Changed() bool {
	return r.NodesCreated+r.NodesUpdated+r.NodesRemoved+r.EdgesCreated+r.EdgesRemoved > 0
}
