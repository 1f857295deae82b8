package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/lore-graph/internal/application/handlers"
	"github.com/ersonp/lore-graph/internal/domain/entities"
	"github.com/ersonp/lore-graph/internal/domain/mocks"
	"github.com/ersonp/lore-graph/internal/domain/services"
	"github.com/ersonp/lore-graph/internal/infrastructure/config"
	"github.com/ersonp/lore-graph/internal/infrastructure/relationaldb/sqlite"
)

const testWorld = "wonderland"

type testServer struct {
	repo    *sqlite.Repository
	handler *handlers.GraphHandler
	session *mcp.ClientSession
}

// setupServer connects a client to a server over in-memory transports.
func setupServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	ctx := context.Background()

	repo, err := sqlite.NewRepository(config.SQLiteConfig{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	require.NoError(t, repo.EnsureSchema(ctx))

	rabbits := make([]float32, mocks.DefaultDimensions)
	rabbits[0] = 1
	embedder := &mocks.Embedder{Vectors: map[string][]float32{"rabbits": rabbits}}
	h := handlers.NewGraphHandler(
		services.NewSyncService(repo, repo, embedder, nil, services.DefaultSyncOptions(), nil),
		services.NewQueryService(repo, repo, embedder, services.QueryOptions{}, nil),
		services.NewCausalService(repo, repo, repo, nil),
		repo,
		nil,
	)
	t.Cleanup(func() { _ = h.Build.Wait(context.Background()) })

	srv := NewServer(h, opts)
	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	_, err = srv.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })

	return &testServer{repo: repo, handler: h, session: session}
}

func (s *testServer) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.repo.SaveCharacter(ctx, &entities.Character{
		ID: "alice", WorldID: testWorld, Name: "Alice", Description: "A curious girl who follows rabbits.",
	}))
	require.NoError(t, s.repo.SaveCharacter(ctx, &entities.Character{
		ID: "bob", WorldID: testWorld, Name: "Bob", Description: "A baker with flour on his sleeves.",
	}))
	require.NoError(t, s.repo.SaveBeat(ctx, &entities.Beat{
		ID: "b1", WorldID: testWorld, Sequence: 1, Content: "Alice meets Bob at the market.",
		CharacterIDs: []entities.CharacterID{"alice", "bob"},
	}))
	require.NoError(t, s.repo.SaveEvent(ctx, &entities.Event{ID: "e1", WorldID: testWorld, Name: "Storm"}))
	require.NoError(t, s.repo.SaveEvent(ctx, &entities.Event{ID: "e2", WorldID: testWorld, Name: "Flood"}))
}

// call invokes a tool and decodes its JSON result into out.
func (s *testServer) call(t *testing.T, name string, args map[string]any, out any) {
	t.Helper()
	result, err := s.session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotEmpty(t, result.Content)
	tc, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	require.False(t, result.IsError, "%s returned error: %s", name, tc.Text)
	if out != nil {
		require.NoError(t, json.Unmarshal([]byte(tc.Text), out))
	}
}

// callError invokes a tool that should fail and returns the error text.
func (s *testServer) callError(t *testing.T, name string, args map[string]any) string {
	t.Helper()
	result, err := s.session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotEmpty(t, result.Content)
	tc := result.Content[0].(*mcp.TextContent)
	require.True(t, result.IsError, "%s: expected error but got: %s", name, tc.Text)
	return tc.Text
}

func TestNewServer_ListTools(t *testing.T) {
	s := setupServer(t, Options{DefaultWorld: testWorld})

	result, err := s.session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	names := make([]string, len(result.Tools))
	for i, tool := range result.Tools {
		names[i] = tool.Name
	}
	assert.ElementsMatch(t, []string{
		"semantic_search",
		"find_related_entities",
		"find_similar_entities",
		"get_beat_context",
		"get_character_story_arc",
		"trace_event_chain",
		"get_graph_status",
		"build_world_graph",
		"add_event_dependency",
		"remove_event_dependency",
	}, names)
}

func TestTools_EndToEnd(t *testing.T) {
	s := setupServer(t, Options{DefaultWorld: testWorld})
	s.seed(t)

	var build handlers.BuildResult
	s.call(t, "build_world_graph", map[string]any{}, &build)
	require.NotNil(t, build.Report)
	assert.Equal(t, 5, build.Report.NodesCreated)

	var status entities.SyncStatus
	s.call(t, "get_graph_status", map[string]any{}, &status)
	assert.Equal(t, 5, status.NodeCount)
	assert.False(t, status.SyncInProgress)

	var results []services.SearchResult
	s.call(t, "semantic_search", map[string]any{"query": "curious girl rabbits", "limit": 2}, &results)
	require.Len(t, results, 2)
	assert.Equal(t, "alice", results[0].EntityID)

	var related services.RelatedEntities
	s.call(t, "find_related_entities", map[string]any{
		"entity_type":        "character",
		"entity_id":          "alice",
		"relationship_types": []string{"mentions"},
	}, &related)
	require.Len(t, related.Nodes, 2)
	assert.Equal(t, "b1", related.Nodes[0].EntityID)

	var bc services.BeatContext
	s.call(t, "get_beat_context", map[string]any{"beat_id": "b1"}, &bc)
	assert.Equal(t, entities.BeatID("b1"), bc.Beat.ID)

	var arc services.CharacterArc
	s.call(t, "get_character_story_arc", map[string]any{"character_id": "alice"}, &arc)
	require.Len(t, arc.Appearances, 1)

	var similar []services.SearchResult
	s.call(t, "find_similar_entities", map[string]any{"entity_type": "character", "entity_id": "bob"}, &similar)
	for _, r := range similar {
		assert.NotEqual(t, "bob", r.EntityID)
	}

	var change services.DependencyChange
	s.call(t, "add_event_dependency", map[string]any{"event_id": "e2", "cause_event_id": "e1"}, &change)
	assert.True(t, change.Changed)

	var chain services.EventChain
	s.call(t, "trace_event_chain", map[string]any{"event_id": "e1", "direction": "causes"}, &chain)
	require.Len(t, chain.Causes, 1)
	assert.Equal(t, entities.EventID("e2"), chain.Causes[0].EventID)

	text := s.callError(t, "add_event_dependency", map[string]any{"event_id": "e1", "cause_event_id": "e2"})
	assert.Contains(t, text, "invalid dependency")

	s.call(t, "remove_event_dependency", map[string]any{"event_id": "e2", "cause_event_id": "e1"}, &change)
	assert.True(t, change.Changed)
	assert.Empty(t, change.CausedBy)
}

func TestTools_GraphNotBuilt(t *testing.T) {
	s := setupServer(t, Options{DefaultWorld: testWorld})
	s.seed(t)

	text := s.callError(t, "semantic_search", map[string]any{"query": "rabbits"})
	assert.Contains(t, text, "run build first")
}

func TestTools_AsyncBuild(t *testing.T) {
	s := setupServer(t, Options{DefaultWorld: testWorld})
	s.seed(t)

	var build handlers.BuildResult
	s.call(t, "build_world_graph", map[string]any{"async": true, "full_rebuild": true}, &build)
	assert.True(t, build.Started)
	assert.Nil(t, build.Report)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.handler.Build.Wait(ctx))

	var status entities.SyncStatus
	s.call(t, "get_graph_status", map[string]any{}, &status)
	assert.Equal(t, 5, status.NodeCount)
	assert.NotNil(t, status.LastFullSync)
}

func TestTools_WorldSelection(t *testing.T) {
	t.Run("no default and no world_id", func(t *testing.T) {
		s := setupServer(t, Options{})
		text := s.callError(t, "get_graph_status", map[string]any{})
		assert.Contains(t, text, "world_id is required")
	})

	t.Run("explicit world_id", func(t *testing.T) {
		s := setupServer(t, Options{})
		var status entities.SyncStatus
		s.call(t, "get_graph_status", map[string]any{"world_id": "other"}, &status)
		assert.Equal(t, "other", status.WorldID)
	})

	t.Run("resolver maps names", func(t *testing.T) {
		resolve := func(nameOrID string) (string, error) {
			if nameOrID == "Wonderland" || nameOrID == testWorld {
				return testWorld, nil
			}
			return "", fmt.Errorf("world %q not found", nameOrID)
		}
		s := setupServer(t, Options{ResolveWorld: resolve})

		var status entities.SyncStatus
		s.call(t, "get_graph_status", map[string]any{"world_id": "Wonderland"}, &status)
		assert.Equal(t, testWorld, status.WorldID)

		text := s.callError(t, "get_graph_status", map[string]any{"world_id": "narnia"})
		assert.Contains(t, text, `world "narnia" not found`)
	})
}

func TestTools_InvalidArguments(t *testing.T) {
	s := setupServer(t, Options{DefaultWorld: testWorld})

	tests := []struct {
		tool string
		args map[string]any
		want string
	}{
		{"semantic_search", map[string]any{"query": "x", "entity_types": []string{"faction"}}, "unknown entity type"},
		{"find_related_entities", map[string]any{"entity_type": "character", "entity_id": ""}, "entity_id is required"},
		{"get_beat_context", map[string]any{"beat_id": ""}, "beat_id is required"},
		{"trace_event_chain", map[string]any{"event_id": "e1", "direction": "sideways"}, "unknown direction"},
	}

	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			text := s.callError(t, tt.tool, tt.args)
			assert.Contains(t, text, tt.want)
		})
	}
}
