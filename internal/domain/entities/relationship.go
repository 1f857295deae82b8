package entities

import "fmt"

// RelationshipType defines the kind of edge between two graph nodes.
type RelationshipType string

const (
	RelationMentions          RelationshipType = "mentions"
	RelationAppearsIn         RelationshipType = "appears_in"
	RelationLocatedAt         RelationshipType = "located_at"
	RelationKnows             RelationshipType = "knows"
	RelationCauses            RelationshipType = "causes"
	RelationSemanticSimilar   RelationshipType = "semantic_similar"
	RelationTemporalProximity RelationshipType = "temporal_proximity"
	RelationContains          RelationshipType = "contains"
	RelationPartOf            RelationshipType = "part_of"
)

// AllRelationshipTypes lists every relationship type.
var AllRelationshipTypes = []RelationshipType{
	RelationMentions,
	RelationAppearsIn,
	RelationLocatedAt,
	RelationKnows,
	RelationCauses,
	RelationSemanticSimilar,
	RelationTemporalProximity,
	RelationContains,
	RelationPartOf,
}

// StructuralRelationshipTypes are re-derived from source entities on every sync.
var StructuralRelationshipTypes = []RelationshipType{
	RelationMentions,
	RelationAppearsIn,
	RelationLocatedAt,
	RelationKnows,
	RelationCauses,
	RelationTemporalProximity,
	RelationContains,
	RelationPartOf,
}

// IsValid reports whether t is a known relationship type.
func (t RelationshipType) IsValid() bool {
	for _, v := range AllRelationshipTypes {
		if v == t {
			return true
		}
	}
	return false
}

// IsSemantic reports whether edges of this type come from embedding similarity.
func (t RelationshipType) IsSemantic() bool {
	return t == RelationSemanticSimilar
}

// ParseRelationshipTypes parses user input. An empty list means all types.
func ParseRelationshipTypes(values []string) ([]RelationshipType, error) {
	if len(values) == 0 {
		return nil, nil
	}
	result := make([]RelationshipType, 0, len(values))
	for _, v := range values {
		t := RelationshipType(v)
		if !t.IsValid() {
			return nil, fmt.Errorf("unknown relationship type %q", v)
		}
		result = append(result, t)
	}
	return result, nil
}

// Relation is one relationship declared by a source entity.
// The edge runs from the declaring entity to Target, or the other way when
// Inbound is set (a child location declares the parent that contains it).
type Relation struct {
	Type     RelationshipType
	Target   EntityRef
	Inbound  bool
	Metadata map[string]any
}
