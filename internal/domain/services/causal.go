package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ersonp/lore-graph/internal/domain/apperror"
	"github.com/ersonp/lore-graph/internal/domain/entities"
	"github.com/ersonp/lore-graph/internal/domain/ports"
)

const (
	// DefaultChainDepth is the default depth of a causal trace.
	DefaultChainDepth = 3
	// MaxChainDepth caps the depth of a causal trace.
	MaxChainDepth = 10
)

// ChainDirection selects which way a causal trace walks.
type ChainDirection string

const (
	DirectionCauses   ChainDirection = "causes"
	DirectionCausedBy ChainDirection = "caused_by"
	DirectionBoth     ChainDirection = "both"
)

// ParseChainDirection converts user input into a ChainDirection. Empty input
// means both directions.
func ParseChainDirection(s string) (ChainDirection, error) {
	switch d := ChainDirection(strings.ToLower(strings.TrimSpace(s))); d {
	case "":
		return DirectionBoth, nil
	case DirectionCauses, DirectionCausedBy, DirectionBoth:
		return d, nil
	default:
		return "", apperror.InvalidArgument("unknown direction %q (want causes, caused_by or both)", s)
	}
}

// ChainLink is one event reached by a causal trace.
type ChainLink struct {
	EventID         entities.EventID `json:"event_id"`
	Depth           int              `json:"depth"`
	SemanticSummary string           `json:"semantic_summary,omitempty"`
}

// EventChain is the result of a causal trace.
type EventChain struct {
	EventID   entities.EventID `json:"event_id"`
	Direction ChainDirection   `json:"direction"`
	Causes    []ChainLink      `json:"causes"`
	CausedBy  []ChainLink      `json:"caused_by"`
}

// CausalService traces and edits causal links between events.
//
// The caused-by list of each event is the source of truth. causes edges in the
// graph (cause to effect) mirror it: builds re-derive them, and the mutations
// here update the mirrored edges straight away when both events have nodes.
type CausalService struct {
	graph  ports.GraphDB
	deps   ports.DependencyStore
	source ports.EntitySource
	logger *zap.Logger
}

// NewCausalService creates a new causal service.
func NewCausalService(graph ports.GraphDB, deps ports.DependencyStore, source ports.EntitySource, logger *zap.Logger) *CausalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CausalService{
		graph:  graph,
		deps:   deps,
		source: source,
		logger: logger.Named("causal"),
	}
}

// TraceEventChain follows causal links from an event up to maxDepth levels.
// causes walks the graph's causes edges forward; caused_by walks the
// dependency lists backward.
func (s *CausalService) TraceEventChain(ctx context.Context, worldID string, eventID entities.EventID, direction ChainDirection, maxDepth int) (*EventChain, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultChainDepth
	}
	maxDepth = min(maxDepth, MaxChainDepth)
	if direction == "" {
		direction = DirectionBoth
	}

	if _, err := s.source.GetEntity(ctx, worldID, eventID.Ref()); err != nil {
		return nil, err
	}

	chain := &EventChain{EventID: eventID, Direction: direction, Causes: []ChainLink{}, CausedBy: []ChainLink{}}

	if direction == DirectionCauses || direction == DirectionBoth {
		causes, err := s.traceCauses(ctx, worldID, eventID, maxDepth, direction == DirectionCauses)
		if err != nil {
			return nil, err
		}
		chain.Causes = causes
	}
	if direction == DirectionCausedBy || direction == DirectionBoth {
		causedBy, err := s.traceCausedBy(ctx, worldID, eventID, maxDepth)
		if err != nil {
			return nil, err
		}
		chain.CausedBy = causedBy
	}
	return chain, nil
}

func (s *CausalService) traceCauses(ctx context.Context, worldID string, eventID entities.EventID, maxDepth int, required bool) ([]ChainLink, error) {
	start, err := s.graph.FindNode(ctx, worldID, eventID.Ref())
	if err != nil {
		return nil, fmt.Errorf("finding node: %w", err)
	}
	if start == nil {
		if required {
			return nil, apperror.ErrGraphNotBuilt.WithMessage("event %s has no graph node yet", eventID)
		}
		return []ChainLink{}, nil
	}

	depths := map[string]int{start.ID: 0}
	var order []string
	frontier := []string{start.ID}
	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		edges, err := s.graph.ListEdgesForNodes(ctx, worldID, frontier,
			[]entities.RelationshipType{entities.RelationCauses})
		if err != nil {
			return nil, fmt.Errorf("expanding causes: %w", err)
		}
		inFrontier := make(map[string]bool, len(frontier))
		for _, id := range frontier {
			inFrontier[id] = true
		}
		var next []string
		for _, e := range edges {
			if !inFrontier[e.SourceNodeID] {
				continue
			}
			if _, seen := depths[e.TargetNodeID]; seen {
				continue
			}
			depths[e.TargetNodeID] = depth
			next = append(next, e.TargetNodeID)
			order = append(order, e.TargetNodeID)
		}
		frontier = next
	}

	nodes, err := s.graph.FindNodesByIDs(ctx, worldID, order)
	if err != nil {
		return nil, fmt.Errorf("loading caused events: %w", err)
	}
	byID := make(map[string]entities.GraphNode, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	links := make([]ChainLink, 0, len(order))
	for _, id := range order {
		n, ok := byID[id]
		if !ok || n.EntityType != entities.EntityEvent {
			continue
		}
		links = append(links, ChainLink{
			EventID:         entities.EventID(n.EntityID),
			Depth:           depths[id],
			SemanticSummary: n.SemanticSummary,
		})
	}
	return links, nil
}

func (s *CausalService) traceCausedBy(ctx context.Context, worldID string, eventID entities.EventID, maxDepth int) ([]ChainLink, error) {
	seen := map[string]bool{string(eventID): true}
	var links []ChainLink
	frontier := []string{string(eventID)}
	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			causes, err := s.deps.CausedBy(ctx, worldID, id)
			if apperror.CodeOf(err) == apperror.CodeEntityNotFound {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("loading causes of %s: %w", id, err)
			}
			for _, cause := range causes {
				if seen[cause] {
					continue
				}
				seen[cause] = true
				next = append(next, cause)
				links = append(links, ChainLink{EventID: entities.EventID(cause), Depth: depth})
			}
		}
		frontier = next
	}

	if len(links) == 0 {
		return []ChainLink{}, nil
	}
	nodeIDs := make([]string, len(links))
	for i, l := range links {
		nodeIDs[i] = entities.NodeID(worldID, l.EventID.Ref())
	}
	nodes, err := s.graph.FindNodesByIDs(ctx, worldID, nodeIDs)
	if err != nil {
		return nil, fmt.Errorf("loading cause nodes: %w", err)
	}
	summaries := make(map[string]string, len(nodes))
	for _, n := range nodes {
		summaries[n.EntityID] = n.SemanticSummary
	}
	for i := range links {
		links[i].SemanticSummary = summaries[string(links[i].EventID)]
	}
	return links, nil
}

// DependencyChange reports the effect of a dependency mutation.
type DependencyChange struct {
	EventID      entities.EventID `json:"event_id"`
	CauseEventID entities.EventID `json:"cause_event_id"`
	Changed      bool             `json:"changed"`
	CausedBy     []string         `json:"caused_by"`
}

// AddEventDependency records that eventID was caused by causeID. It fails
// with apperror.ErrCycleDetected when the link would close a causal cycle;
// the check runs in the same transaction as the write.
func (s *CausalService) AddEventDependency(ctx context.Context, worldID string, eventID, causeID entities.EventID) (*DependencyChange, error) {
	if eventID == "" || causeID == "" {
		return nil, apperror.InvalidArgument("event_id and cause_event_id are required")
	}
	added, err := s.deps.AddDependency(ctx, worldID, string(eventID), string(causeID))
	if err != nil {
		return nil, err
	}
	return s.afterChange(ctx, worldID, eventID, causeID, added, entities.ActionAddDependency)
}

// RemoveEventDependency removes a caused-by link. Removing a missing link is
// not an error.
func (s *CausalService) RemoveEventDependency(ctx context.Context, worldID string, eventID, causeID entities.EventID) (*DependencyChange, error) {
	if eventID == "" || causeID == "" {
		return nil, apperror.InvalidArgument("event_id and cause_event_id are required")
	}
	removed, err := s.deps.RemoveDependency(ctx, worldID, string(eventID), string(causeID))
	if err != nil {
		return nil, err
	}
	return s.afterChange(ctx, worldID, eventID, causeID, removed, entities.ActionRemoveDependency)
}

func (s *CausalService) afterChange(ctx context.Context, worldID string, eventID, causeID entities.EventID, changed bool, action string) (*DependencyChange, error) {
	causes, err := s.deps.CausedBy(ctx, worldID, string(eventID))
	if err != nil {
		return nil, fmt.Errorf("reloading causes: %w", err)
	}
	change := &DependencyChange{EventID: eventID, CauseEventID: causeID, Changed: changed, CausedBy: causes}
	if !changed {
		return change, nil
	}

	if err := s.materialize(ctx, worldID, eventID, causes); err != nil {
		return nil, err
	}
	err = s.graph.LogAction(ctx, worldID, action, map[string]any{
		"event_id":       string(eventID),
		"cause_event_id": string(causeID),
	})
	if err != nil {
		s.logger.Warn("writing audit entry failed", zap.Error(err))
	}
	return change, nil
}

// materialize rewrites the causes edges pointing at an event so they match
// its caused-by list. Causes without a node are left for the next build.
func (s *CausalService) materialize(ctx context.Context, worldID string, eventID entities.EventID, causes []string) error {
	effect, err := s.graph.FindNode(ctx, worldID, eventID.Ref())
	if err != nil {
		return fmt.Errorf("finding node: %w", err)
	}
	if effect == nil {
		return nil
	}

	desired := make(map[entities.EdgeKey]entities.GraphEdge, len(causes))
	for i, cause := range causes {
		node, err := s.graph.FindNode(ctx, worldID, entities.EventID(cause).Ref())
		if err != nil {
			return fmt.Errorf("finding node: %w", err)
		}
		if node == nil {
			continue
		}
		edge := entities.NewEdge(worldID, node.ID, effect.ID, entities.RelationCauses, 1, map[string]any{"position": i})
		desired[edge.Key()] = edge
	}

	stored, err := s.graph.ListEdgesForNodes(ctx, worldID, []string{effect.ID},
		[]entities.RelationshipType{entities.RelationCauses})
	if err != nil {
		return fmt.Errorf("listing causes edges: %w", err)
	}
	have := make(map[entities.EdgeKey]entities.GraphEdge)
	for _, e := range stored {
		if e.TargetNodeID == effect.ID {
			have[e.Key()] = e
		}
	}

	for _, key := range sortedEdgeKeys(desired) {
		edge := desired[key]
		if old, ok := have[key]; ok && !edgeChanged(old, edge) {
			continue
		}
		if _, err := s.graph.UpsertEdge(ctx, &edge); err != nil {
			return fmt.Errorf("saving causes edge: %w", err)
		}
	}
	for key, old := range have {
		if _, ok := desired[key]; ok {
			continue
		}
		if _, err := s.graph.DeleteEdge(ctx, old.ID); err != nil {
			return fmt.Errorf("removing causes edge: %w", err)
		}
	}
	return nil
}
