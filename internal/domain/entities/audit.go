package entities

import "time"

// Audit actions.
const (
	ActionBuildGraph       = "build_graph"
	ActionAddDependency    = "add_event_dependency"
	ActionRemoveDependency = "remove_event_dependency"
	ActionImport           = "import"
)

// AuditEntry represents a logged graph action for a world.
type AuditEntry struct {
	ID        int64          `json:"id"`
	WorldID   string         `json:"world_id"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
