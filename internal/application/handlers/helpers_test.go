package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ersonp/lore-graph/internal/domain/entities"
	"github.com/ersonp/lore-graph/internal/domain/mocks"
	"github.com/ersonp/lore-graph/internal/domain/services"
	"github.com/ersonp/lore-graph/internal/infrastructure/config"
	"github.com/ersonp/lore-graph/internal/infrastructure/relationaldb/sqlite"
)

const testWorld = "w"

// rabbitVector is the fixed embedding of any text mentioning rabbits.
var rabbitVector = unitVector(0)

func unitVector(i int) []float32 {
	v := make([]float32, mocks.DefaultDimensions)
	v[i] = 1
	return v
}

type testEnv struct {
	repo     *sqlite.Repository
	embedder *mocks.Embedder
	index    *mocks.VectorIndex
	graph    *GraphHandler
	imports  *ImportHandler
	worlds   *WorldHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo, err := sqlite.NewRepository(config.SQLiteConfig{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	require.NoError(t, repo.EnsureSchema(context.Background()))

	env := &testEnv{
		repo:     repo,
		embedder: &mocks.Embedder{Vectors: map[string][]float32{"rabbits": rabbitVector}},
		index:    mocks.NewVectorIndex(),
	}
	syncService := services.NewSyncService(repo, repo, env.embedder, nil, services.DefaultSyncOptions(), nil).
		WithVectorIndex(env.index)
	queryService := services.NewQueryService(repo, repo, env.embedder, services.QueryOptions{}, nil)
	causalService := services.NewCausalService(repo, repo, repo, nil)

	env.graph = NewGraphHandler(syncService, queryService, causalService, repo, nil)
	env.imports = NewImportHandler(services.NewImportService(repo, repo, repo, nil))
	env.worlds = NewWorldHandler(repo, repo, env.index, nil)
	t.Cleanup(func() { _ = env.graph.Build.Wait(context.Background()) })
	return env
}

// seed stores Alice, Bob, a beat mentioning both, and two linked events.
func (e *testEnv) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.repo.SaveCharacter(ctx, &entities.Character{
		ID: "alice", WorldID: testWorld, Name: "Alice", Description: "A curious girl who follows rabbits.",
	}))
	require.NoError(t, e.repo.SaveCharacter(ctx, &entities.Character{
		ID: "bob", WorldID: testWorld, Name: "Bob", Description: "A baker with flour on his sleeves.",
	}))
	require.NoError(t, e.repo.SaveStory(ctx, &entities.Story{ID: "s1", WorldID: testWorld, Title: "Market Day"}))
	require.NoError(t, e.repo.SaveBeat(ctx, &entities.Beat{
		ID: "b1", WorldID: testWorld, StoryID: "s1", Sequence: 1, Content: "Alice meets Bob at the market.",
		CharacterIDs: []entities.CharacterID{"alice", "bob"},
	}))
	require.NoError(t, e.repo.SaveEvent(ctx, &entities.Event{ID: "e1", WorldID: testWorld, Name: "Storm"}))
	require.NoError(t, e.repo.SaveEvent(ctx, &entities.Event{ID: "e2", WorldID: testWorld, Name: "Flood"}))
	_, err := e.repo.AddDependency(ctx, testWorld, "e2", "e1")
	require.NoError(t, err)
}

func (e *testEnv) build(t *testing.T) *entities.BuildReport {
	t.Helper()
	result, err := e.graph.Build.Handle(context.Background(), BuildRequest{WorldID: testWorld})
	require.NoError(t, err)
	require.NotNil(t, result.Report)
	return result.Report
}
