package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityType_IsValid(t *testing.T) {
	tests := []struct {
		name       string
		entityType EntityType
		expected   bool
	}{
		{name: "character is valid", entityType: EntityCharacter, expected: true},
		{name: "location is valid", entityType: EntityLocation, expected: true},
		{name: "event is valid", entityType: EntityEvent, expected: true},
		{name: "story is valid", entityType: EntityStory, expected: true},
		{name: "beat is valid", entityType: EntityBeat, expected: true},
		{name: "fact is invalid", entityType: "fact", expected: false},
		{name: "empty is invalid", entityType: "", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.entityType.IsValid())
		})
	}
}

func TestParseEntityTypes(t *testing.T) {
	types, err := ParseEntityTypes([]string{"Character", " beat "})
	require.NoError(t, err)
	assert.Equal(t, []EntityType{EntityCharacter, EntityBeat}, types)

	types, err = ParseEntityTypes(nil)
	require.NoError(t, err)
	assert.Nil(t, types)

	_, err = ParseEntityTypes([]string{"dragon"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dragon")
}

func TestParseRelationshipTypes(t *testing.T) {
	types, err := ParseRelationshipTypes([]string{"mentions", "semantic_similar"})
	require.NoError(t, err)
	assert.Equal(t, []RelationshipType{RelationMentions, RelationSemanticSimilar}, types)

	_, err = ParseRelationshipTypes([]string{"hates"})
	require.Error(t, err)
}

func TestNodeID_Deterministic(t *testing.T) {
	alice := CharacterID("alice").Ref()

	assert.Equal(t, NodeID("w1", alice), NodeID("w1", alice))
	assert.NotEqual(t, NodeID("w1", alice), NodeID("w2", alice))
	assert.NotEqual(t, NodeID("w1", alice), NodeID("w1", LocationID("alice").Ref()))
}

func TestNewEdge(t *testing.T) {
	t.Run("semantic edges are normalized", func(t *testing.T) {
		a := NewEdge("w1", "b-node", "a-node", RelationSemanticSimilar, 0.8, nil)
		b := NewEdge("w1", "a-node", "b-node", RelationSemanticSimilar, 0.8, nil)

		assert.Equal(t, "a-node", a.SourceNodeID)
		assert.Equal(t, a.ID, b.ID)
	})

	t.Run("structural edges keep direction", func(t *testing.T) {
		e := NewEdge("w1", "b-node", "a-node", RelationMentions, 1, nil)

		assert.Equal(t, "b-node", e.SourceNodeID)
		assert.Equal(t, "a-node", e.TargetNodeID)
	})

	t.Run("strength is clamped", func(t *testing.T) {
		assert.Equal(t, 1.0, NewEdge("w1", "a", "b", RelationKnows, 1.7, nil).Strength)
		assert.Equal(t, 0.0, NewEdge("w1", "a", "b", RelationKnows, -0.2, nil).Strength)
	})
}

func TestDependencyGraph_WouldCycle(t *testing.T) {
	// B caused-by A, C caused-by B.
	g := DependencyGraph{
		"B": {"A"},
		"C": {"B"},
	}

	assert.True(t, g.WouldCycle("A", "C"))
	assert.True(t, g.WouldCycle("A", "A"))
	assert.False(t, g.WouldCycle("C", "A"))
	assert.False(t, g.WouldCycle("D", "C"))
}

func TestDependencyGraph_ReachesWithCycle(t *testing.T) {
	g := DependencyGraph{
		"A": {"B"},
		"B": {"A"},
	}

	assert.True(t, g.Reaches("A", "B"))
	assert.False(t, g.Reaches("A", "Z"))
}

func TestBeat_Relationships(t *testing.T) {
	beat := &Beat{
		ID:           "b1",
		StoryID:      "s1",
		Sequence:     3,
		LocationID:   "l1",
		CharacterIDs: []CharacterID{"alice", "bob"},
		EventIDs:     []EventID{"e1"},
	}

	rels := beat.Relationships()
	require.Len(t, rels, 5)
	assert.Equal(t, Relation{Type: RelationPartOf, Target: StoryID("s1").Ref(), Metadata: map[string]any{"sequence": 3}}, rels[0])
	assert.Equal(t, RelationLocatedAt, rels[1].Type)
	assert.Equal(t, CharacterID("alice").Ref(), rels[2].Target)
	assert.Equal(t, EventID("e1").Ref(), rels[4].Target)
}

func TestEvent_CausedByIsInbound(t *testing.T) {
	event := &Event{ID: "e2", CausedBy: []EventID{"e1"}}

	rels := event.Relationships()
	require.Len(t, rels, 1)
	assert.Equal(t, RelationCauses, rels[0].Type)
	assert.True(t, rels[0].Inbound)
	assert.Equal(t, EventID("e1").Ref(), rels[0].Target)
}

func TestCharacter_RelationshipsSkipSelf(t *testing.T) {
	c := &Character{ID: "alice", KnownIDs: []CharacterID{"alice", "bob"}}

	rels := c.Relationships()
	require.Len(t, rels, 1)
	assert.Equal(t, CharacterID("bob").Ref(), rels[0].Target)
}
