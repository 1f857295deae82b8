// Package tools exposes the graph use cases as MCP tools.
package tools

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/ersonp/lore-graph/internal/application/handlers"
)

// Options configures the MCP server.
type Options struct {
	// Name and Version identify the server to clients.
	Name    string
	Version string
	// DefaultWorld is used when a call omits world_id.
	DefaultWorld string
	// ResolveWorld maps a world name or ID to a registered world ID.
	// A nil resolver accepts any non-empty ID.
	ResolveWorld func(nameOrID string) (string, error)
	Logger       *zap.Logger
}

// NewServer creates an MCP server with every graph tool registered.
func NewServer(h *handlers.GraphHandler, opts Options) *mcp.Server {
	if opts.Name == "" {
		opts.Name = "lore-graph"
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	gt := &GraphTools{
		handler:      h,
		defaultWorld: opts.DefaultWorld,
		resolve:      opts.ResolveWorld,
		logger:       opts.Logger.Named("tools"),
	}

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    opts.Name,
		Version: opts.Version,
	}, nil)

	// Read tools
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "semantic_search",
		Description: "Search a world's entities by meaning. Results are ordered by relevance, then importance.",
	}, gt.SemanticSearch)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "find_related_entities",
		Description: "List the entities within a number of hops of an entity, optionally restricted to relationship types",
	}, gt.FindRelatedEntities)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "find_similar_entities",
		Description: "Find the entities whose content is most similar to an entity",
	}, gt.FindSimilarEntities)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_beat_context",
		Description: "Get a story beat with the characters, locations and events around it",
	}, gt.GetBeatContext)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_character_story_arc",
		Description: "List the beats a character appears in, in story order",
	}, gt.GetCharacterStoryArc)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "trace_event_chain",
		Description: "Follow the causes and consequences of an event (direction: causes, caused_by or both)",
	}, gt.TraceEventChain)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_graph_status",
		Description: "Get node and edge counts, last sync times and build state of a world graph",
	}, gt.GetGraphStatus)

	// Write tools
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "build_world_graph",
		Description: "Build or refresh a world graph from its entities. Set async to return as soon as the build starts.",
	}, gt.BuildWorldGraph)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "add_event_dependency",
		Description: "Record that an event was caused by another event. Rejected if it would create a causal cycle.",
	}, gt.AddEventDependency)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "remove_event_dependency",
		Description: "Remove a caused-by link between two events",
	}, gt.RemoveEventDependency)

	return srv
}
