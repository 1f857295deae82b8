package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/lore-graph/internal/domain/entities"
)

func nodeIndex(refs ...entities.EntityRef) map[entities.EntityRef]*entities.GraphNode {
	nodes := make(map[entities.EntityRef]*entities.GraphNode, len(refs))
	for _, ref := range refs {
		nodes[ref] = &entities.GraphNode{
			ID:         entities.NodeID(testWorld, ref),
			WorldID:    testWorld,
			EntityType: ref.Type,
			EntityID:   ref.ID,
		}
	}
	return nodes
}

func TestDeriveStructuralEdges(t *testing.T) {
	alice := entities.CharacterID("alice")
	bob := entities.CharacterID("bob")
	story := entities.StoryID("s1")
	garden := entities.LocationID("garden")
	palace := entities.LocationID("palace")

	sources := []entities.SourceEntity{
		&entities.Character{ID: alice, WorldID: testWorld, Name: "Alice", LocationID: garden, KnownIDs: []entities.CharacterID{bob, "ghost"}},
		&entities.Character{ID: bob, WorldID: testWorld, Name: "Bob"},
		&entities.Location{ID: garden, WorldID: testWorld, Name: "Garden", ParentID: palace},
		&entities.Location{ID: palace, WorldID: testWorld, Name: "Palace"},
		&entities.Story{ID: story, WorldID: testWorld, Title: "Tea"},
		&entities.Beat{ID: "b1", WorldID: testWorld, StoryID: story, Sequence: 1, Content: "x", CharacterIDs: []entities.CharacterID{alice, bob}},
		&entities.Beat{ID: "b3", WorldID: testWorld, StoryID: story, Sequence: 4, Content: "z", CharacterIDs: []entities.CharacterID{alice, alice}},
		&entities.Beat{ID: "b2", WorldID: testWorld, StoryID: story, Sequence: 2, Content: "y"},
	}
	refs := make([]entities.EntityRef, 0, len(sources))
	for _, s := range sources {
		refs = append(refs, s.Ref())
	}
	nodes := nodeIndex(refs...)
	id := func(ref entities.EntityRef) string { return nodes[ref].ID }

	edges, dangling := deriveStructuralEdges(testWorld, sources, nodes)
	assert.Equal(t, []string{"character:alice knows character:ghost"}, dangling)

	get := func(from, to entities.EntityRef, relType entities.RelationshipType) (entities.GraphEdge, bool) {
		e, ok := edges[entities.EdgeKey{Source: id(from), Target: id(to), Type: relType}]
		return e, ok
	}

	_, ok := get(alice.Ref(), bob.Ref(), entities.RelationKnows)
	assert.True(t, ok, "knows")
	_, ok = get(alice.Ref(), garden.Ref(), entities.RelationLocatedAt)
	assert.True(t, ok, "located_at")
	_, ok = get(palace.Ref(), garden.Ref(), entities.RelationContains)
	assert.True(t, ok, "parent contains child")

	partOf, ok := get(entities.BeatID("b3").Ref(), story.Ref(), entities.RelationPartOf)
	require.True(t, ok, "part_of")
	assert.Equal(t, 4, partOf.Metadata["sequence"])

	first, ok := get(entities.BeatID("b1").Ref(), entities.BeatID("b2").Ref(), entities.RelationTemporalProximity)
	require.True(t, ok)
	assert.Equal(t, 1.0, first.Strength)
	second, ok := get(entities.BeatID("b2").Ref(), entities.BeatID("b3").Ref(), entities.RelationTemporalProximity)
	require.True(t, ok)
	assert.InDelta(t, 0.5, second.Strength, 1e-12)
	assert.Equal(t, 2, second.Metadata["gap"])
	_, ok = get(entities.BeatID("b1").Ref(), entities.BeatID("b3").Ref(), entities.RelationTemporalProximity)
	assert.False(t, ok, "only consecutive beats are linked")

	aliceIn, ok := get(alice.Ref(), story.Ref(), entities.RelationAppearsIn)
	require.True(t, ok)
	assert.InDelta(t, 2.0/3.0, aliceIn.Strength, 1e-12)
	bobIn, ok := get(bob.Ref(), story.Ref(), entities.RelationAppearsIn)
	require.True(t, ok)
	assert.InDelta(t, 1.0/3.0, bobIn.Strength, 1e-12)
}

func TestDeriveStructuralEdges_CausesRunCauseToEffect(t *testing.T) {
	sources := []entities.SourceEntity{
		&entities.Event{ID: "spark", WorldID: testWorld, Name: "Spark"},
		&entities.Event{ID: "fire", WorldID: testWorld, Name: "Fire", CausedBy: []entities.EventID{"spark"}},
	}
	nodes := nodeIndex(sources[0].Ref(), sources[1].Ref())

	edges, dangling := deriveStructuralEdges(testWorld, sources, nodes)
	assert.Empty(t, dangling)
	require.Len(t, edges, 1)
	for key, e := range edges {
		assert.Equal(t, nodes[sources[0].Ref()].ID, key.Source)
		assert.Equal(t, nodes[sources[1].Ref()].ID, key.Target)
		assert.Equal(t, entities.RelationCauses, e.RelationshipType)
		assert.Equal(t, 0, e.Metadata["position"])
	}
}

func TestDeriveStructuralEdges_SkipsEntitiesWithoutNodes(t *testing.T) {
	sources := []entities.SourceEntity{
		&entities.Beat{ID: "b1", WorldID: testWorld, Content: "x", CharacterIDs: []entities.CharacterID{"alice"}},
	}
	edges, dangling := deriveStructuralEdges(testWorld, sources, nodeIndex(entities.CharacterID("alice").Ref()))
	assert.Empty(t, edges)
	assert.Empty(t, dangling)
}

func TestEdgeChanged(t *testing.T) {
	stored := entities.NewEdge(testWorld, "a", "b", entities.RelationPartOf, 1, map[string]any{"sequence": float64(3)})

	same := entities.NewEdge(testWorld, "a", "b", entities.RelationPartOf, 1, map[string]any{"sequence": 3})
	assert.False(t, edgeChanged(stored, same))

	moved := entities.NewEdge(testWorld, "a", "b", entities.RelationPartOf, 1, map[string]any{"sequence": 4})
	assert.True(t, edgeChanged(stored, moved))

	weaker := entities.NewEdge(testWorld, "a", "b", entities.RelationPartOf, 0.5, map[string]any{"sequence": 3})
	assert.True(t, edgeChanged(stored, weaker))

	assert.True(t, metadataEqual(nil, map[string]any{}))
}
