package entities

import (
	"time"

	"github.com/google/uuid"
)

// graphNamespace seeds deterministic node and edge IDs.
var graphNamespace = uuid.MustParse("8d3f6b52-1c4e-5a7b-9e20-4f6a1d8c3b75")

// GraphNode is the projection of one source entity into a world graph.
type GraphNode struct {
	ID              string     `json:"id"`
	WorldID         string     `json:"world_id"`
	EntityType      EntityType `json:"entity_type"`
	EntityID        string     `json:"entity_id"`
	ContentHash     string     `json:"content_hash,omitempty"`
	Embedding       []float32  `json:"-"`
	SemanticSummary string     `json:"semantic_summary,omitempty"`
	ImportanceScore float64    `json:"importance_score"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Ref returns the reference to the projected source entity.
func (n *GraphNode) Ref() EntityRef {
	return EntityRef{Type: n.EntityType, ID: n.EntityID}
}

// HasEmbedding reports whether the node was embedded successfully.
func (n *GraphNode) HasEmbedding() bool {
	return len(n.Embedding) > 0
}

// NodeID returns the stable node ID for an entity in a world.
func NodeID(worldID string, ref EntityRef) string {
	return uuid.NewSHA1(graphNamespace, []byte(worldID+"/"+string(ref.Type)+"/"+ref.ID)).String()
}

// GraphEdge is a directed, typed, weighted relationship between two nodes
// of the same world.
type GraphEdge struct {
	ID               string           `json:"id"`
	WorldID          string           `json:"world_id"`
	SourceNodeID     string           `json:"source_node_id"`
	TargetNodeID     string           `json:"target_node_id"`
	RelationshipType RelationshipType `json:"relationship_type"`
	Strength         float64          `json:"strength"`
	Metadata         map[string]any   `json:"metadata,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}

// EdgeKey is the uniqueness key of an edge.
type EdgeKey struct {
	Source string
	Target string
	Type   RelationshipType
}

// Key returns the edge's uniqueness key.
func (e *GraphEdge) Key() EdgeKey {
	return EdgeKey{Source: e.SourceNodeID, Target: e.TargetNodeID, Type: e.RelationshipType}
}

// Other returns the endpoint opposite nodeID.
func (e *GraphEdge) Other(nodeID string) string {
	if e.SourceNodeID == nodeID {
		return e.TargetNodeID
	}
	return e.SourceNodeID
}

// EdgeID returns the stable edge ID for a key.
func EdgeID(key EdgeKey) string {
	return uuid.NewSHA1(graphNamespace, []byte(key.Source+"->"+key.Target+"#"+string(key.Type))).String()
}

// NewEdge builds an edge with its stable ID.
// Semantic edges are normalized so the smaller node ID is the source.
func NewEdge(worldID, source, target string, relType RelationshipType, strength float64, metadata map[string]any) GraphEdge {
	if relType.IsSemantic() && target < source {
		source, target = target, source
	}
	key := EdgeKey{Source: source, Target: target, Type: relType}
	return GraphEdge{
		ID:               EdgeID(key),
		WorldID:          worldID,
		SourceNodeID:     source,
		TargetNodeID:     target,
		RelationshipType: relType,
		Strength:         clampStrength(strength),
		Metadata:         metadata,
	}
}

func clampStrength(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
