package tools

import (
	"context"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/ersonp/lore-graph/internal/application/handlers"
)

// GraphTools holds the handler behind the graph tools.
type GraphTools struct {
	handler      *handlers.GraphHandler
	defaultWorld string
	resolve      func(string) (string, error)
	logger       *zap.Logger
}

// --- Input types ---

type WorldInput struct {
	WorldID string `json:"world_id,omitempty" jsonschema:"World to query; defaults to the server's world"`
}

type SemanticSearchInput struct {
	WorldID     string   `json:"world_id,omitempty" jsonschema:"World to query; defaults to the server's world"`
	Query       string   `json:"query" jsonschema:"Free-text description of what to find"`
	EntityTypes []string `json:"entity_types,omitempty" jsonschema:"Restrict results to these types: character, location, event, story, beat"`
	Limit       int      `json:"limit,omitempty" jsonschema:"Maximum number of results (default 10)"`
}

type FindRelatedInput struct {
	WorldID           string   `json:"world_id,omitempty" jsonschema:"World to query; defaults to the server's world"`
	EntityType        string   `json:"entity_type" jsonschema:"Type of the starting entity"`
	EntityID          string   `json:"entity_id" jsonschema:"ID of the starting entity"`
	Depth             int      `json:"depth,omitempty" jsonschema:"Maximum number of hops (default 2)"`
	RelationshipTypes []string `json:"relationship_types,omitempty" jsonschema:"Only follow these relationship types"`
}

type FindSimilarInput struct {
	WorldID     string   `json:"world_id,omitempty" jsonschema:"World to query; defaults to the server's world"`
	EntityType  string   `json:"entity_type" jsonschema:"Type of the entity to compare against"`
	EntityID    string   `json:"entity_id" jsonschema:"ID of the entity to compare against"`
	TargetTypes []string `json:"target_types,omitempty" jsonschema:"Restrict results to these entity types"`
	Limit       int      `json:"limit,omitempty" jsonschema:"Maximum number of results (default 5)"`
}

type BeatContextInput struct {
	WorldID     string `json:"world_id,omitempty" jsonschema:"World to query; defaults to the server's world"`
	BeatID      string `json:"beat_id" jsonschema:"ID of the beat"`
	MaxEntities int    `json:"max_entities,omitempty" jsonschema:"Maximum number of surrounding entities (default 10)"`
}

type StoryArcInput struct {
	WorldID     string `json:"world_id,omitempty" jsonschema:"World to query; defaults to the server's world"`
	CharacterID string `json:"character_id" jsonschema:"ID of the character"`
	StoryID     string `json:"story_id,omitempty" jsonschema:"Only include beats of this story"`
}

type TraceEventInput struct {
	WorldID   string `json:"world_id,omitempty" jsonschema:"World to query; defaults to the server's world"`
	EventID   string `json:"event_id" jsonschema:"ID of the event to start from"`
	Direction string `json:"direction,omitempty" jsonschema:"causes, caused_by or both (default both)"`
	MaxDepth  int    `json:"max_depth,omitempty" jsonschema:"Maximum chain length (default 3)"`
}

type BuildInput struct {
	WorldID     string `json:"world_id,omitempty" jsonschema:"World to build; defaults to the server's world"`
	FullRebuild bool   `json:"full_rebuild,omitempty" jsonschema:"Discard the graph and rebuild it from scratch"`
	Async       bool   `json:"async,omitempty" jsonschema:"Return once the build has started"`
}

type DependencyInput struct {
	WorldID      string `json:"world_id,omitempty" jsonschema:"World of both events; defaults to the server's world"`
	EventID      string `json:"event_id" jsonschema:"ID of the effect event"`
	CauseEventID string `json:"cause_event_id" jsonschema:"ID of the cause event"`
}

// --- Handlers ---

func (t *GraphTools) SemanticSearch(ctx context.Context, _ *mcp.CallToolRequest, input SemanticSearchInput) (*mcp.CallToolResult, any, error) {
	worldID, errResult := t.world(input.WorldID)
	if errResult != nil {
		return errResult, nil, nil
	}
	results, err := t.handler.Search.Handle(ctx, handlers.SearchRequest{
		WorldID:     worldID,
		Query:       input.Query,
		EntityTypes: input.EntityTypes,
		Limit:       input.Limit,
	})
	if err != nil {
		return t.fail("semantic_search", err), nil, nil
	}
	return toolJSON(results)
}

func (t *GraphTools) FindRelatedEntities(ctx context.Context, _ *mcp.CallToolRequest, input FindRelatedInput) (*mcp.CallToolResult, any, error) {
	worldID, errResult := t.world(input.WorldID)
	if errResult != nil {
		return errResult, nil, nil
	}
	related, err := t.handler.Traversal.Related(ctx, handlers.RelatedRequest{
		WorldID:           worldID,
		EntityType:        input.EntityType,
		EntityID:          input.EntityID,
		Depth:             input.Depth,
		RelationshipTypes: input.RelationshipTypes,
	})
	if err != nil {
		return t.fail("find_related_entities", err), nil, nil
	}
	return toolJSON(related)
}

func (t *GraphTools) FindSimilarEntities(ctx context.Context, _ *mcp.CallToolRequest, input FindSimilarInput) (*mcp.CallToolResult, any, error) {
	worldID, errResult := t.world(input.WorldID)
	if errResult != nil {
		return errResult, nil, nil
	}
	results, err := t.handler.Search.Similar(ctx, handlers.SimilarRequest{
		WorldID:     worldID,
		EntityType:  input.EntityType,
		EntityID:    input.EntityID,
		TargetTypes: input.TargetTypes,
		Limit:       input.Limit,
	})
	if err != nil {
		return t.fail("find_similar_entities", err), nil, nil
	}
	return toolJSON(results)
}

func (t *GraphTools) GetBeatContext(ctx context.Context, _ *mcp.CallToolRequest, input BeatContextInput) (*mcp.CallToolResult, any, error) {
	worldID, errResult := t.world(input.WorldID)
	if errResult != nil {
		return errResult, nil, nil
	}
	bc, err := t.handler.Traversal.BeatContext(ctx, handlers.BeatContextRequest{
		WorldID:     worldID,
		BeatID:      input.BeatID,
		MaxEntities: input.MaxEntities,
	})
	if err != nil {
		return t.fail("get_beat_context", err), nil, nil
	}
	return toolJSON(bc)
}

func (t *GraphTools) GetCharacterStoryArc(ctx context.Context, _ *mcp.CallToolRequest, input StoryArcInput) (*mcp.CallToolResult, any, error) {
	worldID, errResult := t.world(input.WorldID)
	if errResult != nil {
		return errResult, nil, nil
	}
	arc, err := t.handler.Traversal.Arc(ctx, handlers.ArcRequest{
		WorldID:     worldID,
		CharacterID: input.CharacterID,
		StoryID:     input.StoryID,
	})
	if err != nil {
		return t.fail("get_character_story_arc", err), nil, nil
	}
	return toolJSON(arc)
}

func (t *GraphTools) TraceEventChain(ctx context.Context, _ *mcp.CallToolRequest, input TraceEventInput) (*mcp.CallToolResult, any, error) {
	worldID, errResult := t.world(input.WorldID)
	if errResult != nil {
		return errResult, nil, nil
	}
	chain, err := t.handler.Causal.Trace(ctx, handlers.TraceRequest{
		WorldID:   worldID,
		EventID:   input.EventID,
		Direction: input.Direction,
		MaxDepth:  input.MaxDepth,
	})
	if err != nil {
		return t.fail("trace_event_chain", err), nil, nil
	}
	return toolJSON(chain)
}

func (t *GraphTools) GetGraphStatus(ctx context.Context, _ *mcp.CallToolRequest, input WorldInput) (*mcp.CallToolResult, any, error) {
	worldID, errResult := t.world(input.WorldID)
	if errResult != nil {
		return errResult, nil, nil
	}
	status, err := t.handler.Build.Status(ctx, worldID)
	if err != nil {
		return t.fail("get_graph_status", err), nil, nil
	}
	return toolJSON(status)
}

func (t *GraphTools) BuildWorldGraph(ctx context.Context, _ *mcp.CallToolRequest, input BuildInput) (*mcp.CallToolResult, any, error) {
	worldID, errResult := t.world(input.WorldID)
	if errResult != nil {
		return errResult, nil, nil
	}
	result, err := t.handler.Build.Handle(ctx, handlers.BuildRequest{
		WorldID:     worldID,
		FullRebuild: input.FullRebuild,
		Async:       input.Async,
	})
	if err != nil {
		return t.fail("build_world_graph", err), nil, nil
	}
	return toolJSON(result)
}

func (t *GraphTools) AddEventDependency(ctx context.Context, _ *mcp.CallToolRequest, input DependencyInput) (*mcp.CallToolResult, any, error) {
	worldID, errResult := t.world(input.WorldID)
	if errResult != nil {
		return errResult, nil, nil
	}
	change, err := t.handler.Causal.Add(ctx, handlers.DependencyRequest{
		WorldID:      worldID,
		EventID:      input.EventID,
		CauseEventID: input.CauseEventID,
	})
	if err != nil {
		return t.fail("add_event_dependency", err), nil, nil
	}
	return toolJSON(change)
}

func (t *GraphTools) RemoveEventDependency(ctx context.Context, _ *mcp.CallToolRequest, input DependencyInput) (*mcp.CallToolResult, any, error) {
	worldID, errResult := t.world(input.WorldID)
	if errResult != nil {
		return errResult, nil, nil
	}
	change, err := t.handler.Causal.Remove(ctx, handlers.DependencyRequest{
		WorldID:      worldID,
		EventID:      input.EventID,
		CauseEventID: input.CauseEventID,
	})
	if err != nil {
		return t.fail("remove_event_dependency", err), nil, nil
	}
	return toolJSON(change)
}

// world picks the call's world, falling back to the server default.
func (t *GraphTools) world(requested string) (string, *mcp.CallToolResult) {
	worldID := strings.TrimSpace(requested)
	if worldID == "" {
		worldID = t.defaultWorld
	}
	if worldID == "" {
		return "", toolError("world_id is required")
	}
	if t.resolve == nil {
		return worldID, nil
	}
	resolved, err := t.resolve(worldID)
	if err != nil {
		return "", toolError("%v", err)
	}
	return resolved, nil
}

func (t *GraphTools) fail(tool string, err error) *mcp.CallToolResult {
	t.logger.Debug("tool call failed", zap.String("tool", tool), zap.Error(err))
	return toolError("%s", handlers.UserMessage(err))
}
