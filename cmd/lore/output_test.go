package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ersonp/lore-graph/internal/domain/entities"
	"github.com/ersonp/lore-graph/internal/domain/services"
)

func TestWriteSearchResults(t *testing.T) {
	var buf bytes.Buffer
	writeSearchResults(&buf, nil)
	assert.Equal(t, "No matching entities.\n", buf.String())

	buf.Reset()
	writeSearchResults(&buf, []services.SearchResult{
		{EntityType: entities.EntityCharacter, EntityID: "alice", RelevanceScore: 0.91, ImportanceScore: 1.2, SemanticSummary: "A curious girl."},
		{EntityType: entities.EntityBeat, EntityID: "b1", RelevanceScore: 0.5, ImportanceScore: 0.8},
	})
	assert.Equal(t, "1. [character] alice (relevance: 0.91, importance: 1.20)\n"+
		"   A curious girl.\n"+
		"2. [beat] b1 (relevance: 0.50, importance: 0.80)\n", buf.String())
}

func TestWriteRelatedNodes(t *testing.T) {
	var buf bytes.Buffer
	writeRelatedNodes(&buf, []services.RelatedNode{
		{GraphNode: entities.GraphNode{EntityType: entities.EntityBeat, EntityID: "b1", ImportanceScore: 1}, Depth: 1},
		{GraphNode: entities.GraphNode{EntityType: entities.EntityCharacter, EntityID: "bob", ImportanceScore: 0.5}, Depth: 2},
	})
	assert.Equal(t, "  beat:b1 (importance: 1.00)\n    character:bob (importance: 0.50)\n", buf.String())
}

func TestWriteStatus(t *testing.T) {
	var buf bytes.Buffer
	writeStatus(&buf, &entities.SyncStatus{WorldID: "w", NodeCount: 3, EdgeCount: 2, LastError: "1 entities failed to embed"})

	out := buf.String()
	assert.Contains(t, out, "World:            w")
	assert.Contains(t, out, "Nodes:            3")
	assert.Contains(t, out, "Last full build:  never")
	assert.Contains(t, out, "Last error:       1 entities failed to embed")
	assert.NotContains(t, out, "Build running")
}

func TestWriteBuildReport(t *testing.T) {
	var buf bytes.Buffer
	writeBuildReport(&buf, &entities.BuildReport{
		WorldID:        "w",
		FullRebuild:    true,
		NodesCreated:   3,
		EdgesCreated:   2,
		FailedEntities: []entities.EntityRef{entities.CharacterID("alice").Ref()},
		Duration:       1500 * time.Millisecond,
	})

	out := buf.String()
	assert.Contains(t, out, "Full build of w finished in 1.5s")
	assert.Contains(t, out, "Nodes: 3 created, 0 updated, 0 removed")
	assert.Contains(t, out, "Edges: 2 created, 0 removed")
	assert.Contains(t, out, "Not embedded (1): character:alice")
}

func TestWriteChainLinks(t *testing.T) {
	var buf bytes.Buffer
	writeChainLinks(&buf, "Leads to", nil)
	assert.Equal(t, "Leads to:\n  (none)\n", buf.String())

	buf.Reset()
	writeChainLinks(&buf, "Caused by", []services.ChainLink{
		{EventID: "e1", Depth: 1, SemanticSummary: "Storm"},
		{EventID: "e0", Depth: 2},
	})
	assert.Equal(t, "Caused by:\n  e1: Storm\n    e0\n", buf.String())
}
