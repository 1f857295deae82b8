package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/lore-graph/internal/domain/apperror"
	"github.com/ersonp/lore-graph/internal/domain/entities"
	"github.com/ersonp/lore-graph/internal/domain/mocks"
)

func structuralEdges(t *testing.T, f *fixture) []entities.GraphEdge {
	t.Helper()
	edges, err := f.repo.ListEdges(context.Background(), testWorld, entities.StructuralRelationshipTypes)
	require.NoError(t, err)
	return edges
}

func TestBuildWorldGraph_ProjectsEntities(t *testing.T) {
	f := newFixture(t)
	seedAliceAndBob(t, f.repo)

	report := f.build(t, false)
	assert.Equal(t, 3, report.NodesCreated)
	assert.Equal(t, 0, report.NodesUpdated)
	assert.Empty(t, report.FailedEntities)

	beat := f.node(t, entities.BeatID("b1").Ref())
	alice := f.node(t, entities.CharacterID("alice").Ref())
	bob := f.node(t, entities.CharacterID("bob").Ref())
	require.NotNil(t, beat)
	require.NotNil(t, alice)
	require.NotNil(t, bob)
	assert.True(t, alice.HasEmbedding())
	assert.NotEmpty(t, alice.ContentHash)
	assert.Contains(t, alice.SemanticSummary, "summary of character:alice")

	edges := structuralEdges(t, f)
	require.Len(t, edges, 2)
	for _, e := range edges {
		assert.Equal(t, entities.RelationMentions, e.RelationshipType)
		assert.Equal(t, beat.ID, e.SourceNodeID)
	}
	assert.ElementsMatch(t, []string{alice.ID, bob.ID}, []string{edges[0].TargetNodeID, edges[1].TargetNodeID})

	status, err := f.sync.GetStatus(context.Background(), testWorld)
	require.NoError(t, err)
	assert.Equal(t, 3, status.NodeCount)
	assert.False(t, status.SyncInProgress)
	assert.NotNil(t, status.LastIncrementalSync)
	assert.Nil(t, status.LastFullSync)
	assert.Empty(t, status.LastError)
}

func TestBuildWorldGraph_ReembedsOnlyChangedEntities(t *testing.T) {
	f := newFixture(t)
	seedAliceAndBob(t, f.repo)
	f.build(t, false)
	firstAlice := f.node(t, entities.CharacterID("alice").Ref())

	require.NoError(t, f.repo.SaveCharacter(context.Background(), &entities.Character{
		ID: "alice", WorldID: testWorld, Name: "Alice", Description: "A queen of hearts now.",
	}))
	f.embedder.Reset()

	report := f.build(t, false)
	assert.Equal(t, 0, report.NodesCreated)
	assert.Equal(t, 1, report.NodesUpdated)

	texts := f.embedder.Texts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "queen of hearts")

	alice := f.node(t, entities.CharacterID("alice").Ref())
	assert.Equal(t, firstAlice.ID, alice.ID)
	assert.NotEqual(t, firstAlice.ContentHash, alice.ContentHash)
}

func TestBuildWorldGraph_IncrementalNoop(t *testing.T) {
	f := newFixture(t)
	seedAliceAndBob(t, f.repo)
	f.build(t, false)
	before, err := f.repo.ListNodes(context.Background(), testWorld, nil)
	require.NoError(t, err)
	f.embedder.Reset()

	report := f.build(t, false)
	assert.False(t, report.Changed())
	assert.Zero(t, f.embedder.Calls())

	after, err := f.repo.ListNodes(context.Background(), testWorld, nil)
	require.NoError(t, err)
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].ContentHash, after[i].ContentHash)
		assert.Equal(t, before[i].ImportanceScore, after[i].ImportanceScore)
	}
}

func TestBuildWorldGraph_FullRebuildIsIdempotent(t *testing.T) {
	f := newFixture(t)
	seedAliceAndBob(t, f.repo)
	ctx := context.Background()
	require.NoError(t, f.repo.SaveStory(ctx, &entities.Story{ID: "s1", WorldID: testWorld, Title: "Market Day"}))
	require.NoError(t, f.repo.SaveBeat(ctx, &entities.Beat{
		ID: "b2", WorldID: testWorld, StoryID: "s1", Sequence: 2, Content: "Bob sells bread.",
		CharacterIDs: []entities.CharacterID{"bob"},
	}))
	require.NoError(t, f.repo.SaveBeat(ctx, &entities.Beat{
		ID: "b3", WorldID: testWorld, StoryID: "s1", Sequence: 3, Content: "Alice buys bread.",
		CharacterIDs: []entities.CharacterID{"alice"},
	}))

	f.build(t, true)
	nodesBefore, err := f.repo.ListNodes(ctx, testWorld, nil)
	require.NoError(t, err)
	edgesBefore, err := f.repo.ListEdges(ctx, testWorld, nil)
	require.NoError(t, err)

	report := f.build(t, true)
	assert.Equal(t, len(nodesBefore), report.NodesRemoved)
	assert.Equal(t, len(nodesBefore), report.NodesCreated)

	nodesAfter, err := f.repo.ListNodes(ctx, testWorld, nil)
	require.NoError(t, err)
	edgesAfter, err := f.repo.ListEdges(ctx, testWorld, nil)
	require.NoError(t, err)

	require.Len(t, nodesAfter, len(nodesBefore))
	for i := range nodesBefore {
		assert.Equal(t, nodesBefore[i].ID, nodesAfter[i].ID)
		assert.InDelta(t, nodesBefore[i].ImportanceScore, nodesAfter[i].ImportanceScore, 1e-12)
	}
	assert.ElementsMatch(t, edgeKeys(edgesBefore), edgeKeys(edgesAfter))

	status, err := f.sync.GetStatus(ctx, testWorld)
	require.NoError(t, err)
	assert.NotNil(t, status.LastFullSync)
	assert.Equal(t, len(edgesAfter), status.EdgeCount)
}

func TestBuildWorldGraph_RejectsConcurrentBuild(t *testing.T) {
	f := newFixture(t)
	seedAliceAndBob(t, f.repo)
	f.embedder.Block = make(chan struct{})
	f.embedder.Started = make(chan struct{}, 1)

	handle, err := f.sync.StartBuild(context.Background(), testWorld, false)
	require.NoError(t, err)
	<-f.embedder.Started

	_, err = f.sync.BuildWorldGraph(context.Background(), testWorld, true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrSyncInProgress))

	_, err = f.sync.StartBuild(context.Background(), testWorld, false)
	assert.True(t, errors.Is(err, apperror.ErrSyncInProgress))

	status, err := f.sync.GetStatus(context.Background(), testWorld)
	require.NoError(t, err)
	assert.True(t, status.SyncInProgress)

	close(f.embedder.Block)
	report, err := handle.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.NodesCreated)

	status, err = f.sync.GetStatus(context.Background(), testWorld)
	require.NoError(t, err)
	assert.False(t, status.SyncInProgress)
}

func TestBuildWorldGraph_CancellationReleasesFlag(t *testing.T) {
	f := newFixture(t)
	seedAliceAndBob(t, f.repo)
	f.embedder.Block = make(chan struct{})
	f.embedder.Started = make(chan struct{}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	handle, err := f.sync.StartBuild(ctx, testWorld, false)
	require.NoError(t, err)
	<-f.embedder.Started
	cancel()

	_, err = handle.Wait(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	status, err := f.sync.GetStatus(context.Background(), testWorld)
	require.NoError(t, err)
	assert.False(t, status.SyncInProgress)
	assert.Contains(t, status.LastError, "context canceled")
	assert.Nil(t, status.LastIncrementalSync)

	f.embedder.Block = nil
	report := f.build(t, false)
	assert.Equal(t, 3, report.NodesCreated)
}

func TestBuildWorldGraph_LongBuildKeepsFlag(t *testing.T) {
	f := newFixture(t)
	seedAliceAndBob(t, f.repo)
	f.embedder.Block = make(chan struct{})
	f.embedder.Started = make(chan struct{}, 1)

	opts := DefaultSyncOptions()
	opts.StaleAfter = 150 * time.Millisecond
	svc := NewSyncService(f.repo, f.repo, f.embedder, f.summarizer, opts, nil)

	handle, err := svc.StartBuild(context.Background(), testWorld, false)
	require.NoError(t, err)
	<-f.embedder.Started

	// Outlive the stale timeout several times over.
	time.Sleep(4 * opts.StaleAfter)

	status, err := svc.GetStatus(context.Background(), testWorld)
	require.NoError(t, err)
	assert.True(t, status.SyncInProgress)
	assert.Empty(t, status.LastError)

	_, err = svc.BuildWorldGraph(context.Background(), testWorld, false)
	require.ErrorIs(t, err, apperror.ErrSyncInProgress)

	close(f.embedder.Block)
	report, err := handle.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.NodesCreated)

	status, err = svc.GetStatus(context.Background(), testWorld)
	require.NoError(t, err)
	assert.False(t, status.SyncInProgress)
	assert.Empty(t, status.LastError)
	assert.Equal(t, 3, status.NodeCount)
}

func TestBuildWorldGraph_StopsWhenFlagTakenOver(t *testing.T) {
	f := newFixture(t)
	seedAliceAndBob(t, f.repo)
	f.embedder.Block = make(chan struct{})
	f.embedder.Started = make(chan struct{}, 1)

	opts := DefaultSyncOptions()
	opts.StaleAfter = 60 * time.Millisecond
	svc := NewSyncService(f.repo, f.repo, f.embedder, f.summarizer, opts, nil)

	handle, err := svc.StartBuild(context.Background(), testWorld, false)
	require.NoError(t, err)
	<-f.embedder.Started

	// A negative timeout treats any flag as stale.
	ok, err := f.repo.TryStartSync(context.Background(), testWorld, "other-build", -time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	waitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = handle.Wait(waitCtx)
	require.ErrorIs(t, err, errSyncFlagLost)

	status, err := f.repo.GetSyncStatus(context.Background(), testWorld, time.Hour)
	require.NoError(t, err)
	assert.True(t, status.SyncInProgress, "the new owner keeps the flag")
}

func TestBuildWorldGraph_IsolatesEmbeddingFailures(t *testing.T) {
	f := newFixture(t)
	seedAliceAndBob(t, f.repo)
	f.embedder.FailOn = []string{"baker"}

	report := f.build(t, false)
	require.Equal(t, []entities.EntityRef{entities.CharacterID("bob").Ref()}, report.FailedEntities)
	assert.Equal(t, 3, report.NodesCreated)

	bob := f.node(t, entities.CharacterID("bob").Ref())
	require.NotNil(t, bob)
	assert.False(t, bob.HasEmbedding())
	assert.Empty(t, bob.ContentHash)
	assert.True(t, f.node(t, entities.CharacterID("alice").Ref()).HasEmbedding())
	assert.Len(t, structuralEdges(t, f), 2)

	status, err := f.sync.GetStatus(context.Background(), testWorld)
	require.NoError(t, err)
	assert.Contains(t, status.LastError, "1 entities failed to embed")
	assert.Contains(t, status.LastError, "character:bob")
	assert.NotNil(t, status.LastIncrementalSync)

	f.embedder.FailOn = nil
	report = f.build(t, false)
	assert.Empty(t, report.FailedEntities)
	assert.Equal(t, 1, report.NodesUpdated)
	assert.True(t, f.node(t, entities.CharacterID("bob").Ref()).HasEmbedding())

	status, err = f.sync.GetStatus(context.Background(), testWorld)
	require.NoError(t, err)
	assert.Empty(t, status.LastError)
}

func TestBuildWorldGraph_KeepsExistingNodeOnFailure(t *testing.T) {
	f := newFixture(t)
	seedAliceAndBob(t, f.repo)
	f.build(t, false)
	before := f.node(t, entities.CharacterID("bob").Ref())

	require.NoError(t, f.repo.SaveCharacter(context.Background(), &entities.Character{
		ID: "bob", WorldID: testWorld, Name: "Bob", Description: "A baker who lost his oven.",
	}))
	f.embedder.FailOn = []string{"baker"}

	report := f.build(t, false)
	assert.Len(t, report.FailedEntities, 1)
	assert.Zero(t, report.NodesUpdated)

	after := f.node(t, entities.CharacterID("bob").Ref())
	assert.Equal(t, before.ContentHash, after.ContentHash)
	assert.Equal(t, before.Embedding, after.Embedding)
}

func TestBuildWorldGraph_RemovesOrphanedNodes(t *testing.T) {
	f := newFixture(t)
	seedAliceAndBob(t, f.repo)
	f.build(t, false)
	bob := f.node(t, entities.CharacterID("bob").Ref())

	require.NoError(t, f.repo.DeleteEntity(context.Background(), testWorld, entities.CharacterID("bob").Ref()))

	report := f.build(t, false)
	assert.Equal(t, 1, report.NodesRemoved)
	assert.GreaterOrEqual(t, report.EdgesRemoved, 1)
	assert.Nil(t, f.node(t, entities.CharacterID("bob").Ref()))

	edges, err := f.repo.ListEdges(context.Background(), testWorld, nil)
	require.NoError(t, err)
	for _, e := range edges {
		assert.NotEqual(t, bob.ID, e.SourceNodeID)
		assert.NotEqual(t, bob.ID, e.TargetNodeID)
	}
	assert.Len(t, structuralEdges(t, f), 1)
}

func TestBuildWorldGraph_SummarizerFallback(t *testing.T) {
	f := newFixture(t)
	seedAliceAndBob(t, f.repo)
	f.summarizer.Err = errors.New("model unavailable")

	f.build(t, false)

	alice := f.node(t, entities.CharacterID("alice").Ref())
	assert.Equal(t, "Alice: A curious girl who follows rabbits.", alice.SemanticSummary)
	assert.Positive(t, f.summarizer.Calls())
}

func TestBuildWorldGraph_WithoutSummarizer(t *testing.T) {
	repo := setupTestRepo(t)
	seedAliceAndBob(t, repo)
	svc := NewSyncService(repo, repo, &mocks.Embedder{}, nil, DefaultSyncOptions(), nil)

	_, err := svc.BuildWorldGraph(context.Background(), testWorld, false)
	require.NoError(t, err)

	node, err := repo.FindNode(context.Background(), testWorld, entities.CharacterID("bob").Ref())
	require.NoError(t, err)
	assert.Equal(t, "Bob: A baker with flour on his sleeves.", node.SemanticSummary)
}

func TestBuildWorldGraph_SemanticEdges(t *testing.T) {
	f := newFixture(t)
	f.embedder.Vectors = map[string][]float32{
		"dragon": {1, 0},
		"wyrm":   {0.95, 0.31225},
		"teapot": {0, 1},
	}
	ctx := context.Background()
	require.NoError(t, f.repo.SaveCharacter(ctx, &entities.Character{ID: "smaug", WorldID: testWorld, Name: "Smaug", Description: "A dragon"}))
	require.NoError(t, f.repo.SaveCharacter(ctx, &entities.Character{ID: "glaurung", WorldID: testWorld, Name: "Glaurung", Description: "A wyrm"}))
	require.NoError(t, f.repo.SaveLocation(ctx, &entities.Location{ID: "kitchen", WorldID: testWorld, Name: "Kitchen", Description: "A teapot"}))

	f.build(t, false)

	edges, err := f.repo.ListEdges(ctx, testWorld, []entities.RelationshipType{entities.RelationSemanticSimilar})
	require.NoError(t, err)
	require.Len(t, edges, 1)
	e := edges[0]
	assert.Less(t, e.SourceNodeID, e.TargetNodeID)
	assert.InDelta(t, 0.95, e.Strength, 1e-4)
	assert.ElementsMatch(t,
		[]string{entities.NodeID(testWorld, entities.CharacterID("smaug").Ref()), entities.NodeID(testWorld, entities.CharacterID("glaurung").Ref())},
		[]string{e.SourceNodeID, e.TargetNodeID})

	// Moving the wyrm away drops the edge on the next build.
	require.NoError(t, f.repo.SaveCharacter(ctx, &entities.Character{ID: "glaurung", WorldID: testWorld, Name: "Glaurung", Description: "A teapot"}))
	report := f.build(t, false)
	assert.GreaterOrEqual(t, report.EdgesRemoved, 1)

	edges, err = f.repo.ListEdges(ctx, testWorld, []entities.RelationshipType{entities.RelationSemanticSimilar})
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.ElementsMatch(t,
		[]string{entities.NodeID(testWorld, entities.LocationID("kitchen").Ref()), entities.NodeID(testWorld, entities.CharacterID("glaurung").Ref())},
		[]string{edges[0].SourceNodeID, edges[0].TargetNodeID})
}

func TestBuildWorldGraph_MirrorsVectorIndex(t *testing.T) {
	f := newFixture(t)
	seedAliceAndBob(t, f.repo)
	index := mocks.NewVectorIndex()
	f.sync.WithVectorIndex(index)

	f.build(t, false)
	assert.Equal(t, 3, index.Len())

	require.NoError(t, f.repo.DeleteEntity(context.Background(), testWorld, entities.CharacterID("bob").Ref()))
	f.build(t, false)
	assert.Equal(t, 2, index.Len())

	f.build(t, true)
	assert.Equal(t, []string{testWorld}, index.DeletedWorldIDs)
	assert.Equal(t, 2, index.Len())
}

func TestBuildWorldGraph_VectorIndexFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	seedAliceAndBob(t, f.repo)
	index := mocks.NewVectorIndex()
	index.UpsertErr = errors.New("qdrant down")
	f.sync.WithVectorIndex(index)

	report := f.build(t, false)
	assert.Equal(t, 3, report.NodesCreated)
}

func TestBuildWorldGraph_RecordsAudit(t *testing.T) {
	f := newFixture(t)
	seedAliceAndBob(t, f.repo)
	f.build(t, false)

	log, err := f.repo.FindAuditLog(context.Background(), testWorld, 10)
	require.NoError(t, err)
	require.NotEmpty(t, log)
	assert.Equal(t, entities.ActionBuildGraph, log[0].Action)
}

func TestBuildWorldGraph_RejectsEmptyWorld(t *testing.T) {
	f := newFixture(t)
	_, err := f.sync.BuildWorldGraph(context.Background(), "", false)
	assert.True(t, errors.Is(err, apperror.ErrInvalidArgument))
}

func TestBuildWorldGraph_EmptyWorld(t *testing.T) {
	f := newFixture(t)
	report := f.build(t, false)
	assert.False(t, report.Changed())

	status, err := f.sync.GetStatus(context.Background(), testWorld)
	require.NoError(t, err)
	assert.Zero(t, status.NodeCount)
	assert.True(t, status.IsBuilt())
}

func TestBuildWorldGraph_SeparateEntitySource(t *testing.T) {
	repo := setupTestRepo(t)
	source := mocks.NewEntitySource(
		&entities.Character{ID: "alice", WorldID: testWorld, Name: "Alice"},
		&entities.Location{ID: "garden", WorldID: testWorld, Name: "Garden"},
	)
	svc := NewSyncService(repo, source, &mocks.Embedder{}, nil, DefaultSyncOptions(), nil)
	ctx := context.Background()

	report, err := svc.BuildWorldGraph(ctx, testWorld, false)
	require.NoError(t, err)
	assert.Equal(t, 2, report.NodesCreated)

	source.Remove(testWorld, entities.LocationID("garden").Ref())
	report, err = svc.BuildWorldGraph(ctx, testWorld, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.NodesRemoved)

	count, err := repo.CountNodes(ctx, testWorld)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestBuildWorldGraph_SourceFailureReleasesFlag(t *testing.T) {
	repo := setupTestRepo(t)
	sourceErr := errors.New("source unavailable")
	source := &mocks.EntitySource{Err: sourceErr}
	svc := NewSyncService(repo, source, &mocks.Embedder{}, nil, DefaultSyncOptions(), nil)
	ctx := context.Background()

	_, err := svc.BuildWorldGraph(ctx, testWorld, false)
	require.ErrorIs(t, err, sourceErr)

	status, err := svc.GetStatus(ctx, testWorld)
	require.NoError(t, err)
	assert.False(t, status.SyncInProgress)
	assert.Contains(t, status.LastError, "source unavailable")
	assert.False(t, status.IsBuilt())
}
