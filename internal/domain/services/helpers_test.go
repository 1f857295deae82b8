package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ersonp/lore-graph/internal/domain/entities"
	"github.com/ersonp/lore-graph/internal/domain/mocks"
	"github.com/ersonp/lore-graph/internal/infrastructure/config"
	"github.com/ersonp/lore-graph/internal/infrastructure/relationaldb/sqlite"
)

const testWorld = "w"

// setupTestRepo creates an in-memory SQLite repository for testing.
func setupTestRepo(t *testing.T) *sqlite.Repository {
	t.Helper()
	repo, err := sqlite.NewRepository(config.SQLiteConfig{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	require.NoError(t, repo.EnsureSchema(context.Background()))
	return repo
}

// fixture wires every service against one repository and mock providers.
type fixture struct {
	repo       *sqlite.Repository
	embedder   *mocks.Embedder
	summarizer *mocks.Summarizer
	sync       *SyncService
	query      *QueryService
	causal     *CausalService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := setupTestRepo(t)
	f := &fixture{
		repo:       repo,
		embedder:   &mocks.Embedder{},
		summarizer: &mocks.Summarizer{},
	}
	opts := DefaultSyncOptions()
	opts.BatchSize = 2
	f.sync = NewSyncService(repo, repo, f.embedder, f.summarizer, opts, nil)
	f.query = NewQueryService(repo, repo, f.embedder, QueryOptions{}, nil)
	f.causal = NewCausalService(repo, repo, repo, nil)
	return f
}

func (f *fixture) build(t *testing.T, full bool) *entities.BuildReport {
	t.Helper()
	report, err := f.sync.BuildWorldGraph(context.Background(), testWorld, full)
	require.NoError(t, err)
	return report
}

func (f *fixture) node(t *testing.T, ref entities.EntityRef) *entities.GraphNode {
	t.Helper()
	node, err := f.repo.FindNode(context.Background(), testWorld, ref)
	require.NoError(t, err)
	return node
}

// seedAliceAndBob stores two characters and a beat mentioning both.
func seedAliceAndBob(t *testing.T, repo *sqlite.Repository) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, repo.SaveCharacter(ctx, &entities.Character{
		ID: "alice", WorldID: testWorld, Name: "Alice", Description: "A curious girl who follows rabbits.",
	}))
	require.NoError(t, repo.SaveCharacter(ctx, &entities.Character{
		ID: "bob", WorldID: testWorld, Name: "Bob", Description: "A baker with flour on his sleeves.",
	}))
	require.NoError(t, repo.SaveBeat(ctx, &entities.Beat{
		ID: "b1", WorldID: testWorld, Sequence: 1, Content: "Alice meets Bob at the market.",
		CharacterIDs: []entities.CharacterID{"alice", "bob"},
	}))
}

// saveNode stores a node with an embedding and returns its ID.
func saveNode(t *testing.T, repo *sqlite.Repository, ref entities.EntityRef, embedding []float32) string {
	t.Helper()
	node := &entities.GraphNode{
		WorldID:     testWorld,
		EntityType:  ref.Type,
		EntityID:    ref.ID,
		ContentHash: "hash-" + ref.ID,
		Embedding:   embedding,
	}
	_, err := repo.UpsertNode(context.Background(), node)
	require.NoError(t, err)
	return node.ID
}

// saveEdge stores an edge between two node IDs.
func saveEdge(t *testing.T, repo *sqlite.Repository, source, target string, relType entities.RelationshipType) {
	t.Helper()
	edge := entities.NewEdge(testWorld, source, target, relType, 1, nil)
	_, err := repo.UpsertEdge(context.Background(), &edge)
	require.NoError(t, err)
}

func edgeKeys(edges []entities.GraphEdge) []entities.EdgeKey {
	keys := make([]entities.EdgeKey, len(edges))
	for i, e := range edges {
		keys[i] = e.Key()
	}
	return keys
}
