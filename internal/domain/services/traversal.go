package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/ersonp/lore-graph/internal/domain/apperror"
	"github.com/ersonp/lore-graph/internal/domain/entities"
)

const (
	// DefaultTraversalDepth is the default hop limit for related entities.
	DefaultTraversalDepth = 2
	// MaxTraversalDepth caps the hop limit.
	MaxTraversalDepth = 8
	// DefaultBeatContextSize is the default number of entities in a beat context.
	DefaultBeatContextSize = 10
)

// RelatedNode is a node reached by traversal and its hop distance.
type RelatedNode struct {
	entities.GraphNode
	Depth int `json:"depth"`
}

// RelatedEntities is the neighbourhood of a source node.
type RelatedEntities struct {
	Source entities.GraphNode   `json:"source"`
	Nodes  []RelatedNode        `json:"nodes"`
	Edges  []entities.GraphEdge `json:"edges"`
}

// FindRelatedEntities walks the graph breadth-first from an entity's node in
// both edge directions, up to depth hops. The source node is excluded from
// the result; edges are those whose endpoints were both reached.
func (s *QueryService) FindRelatedEntities(ctx context.Context, worldID string, ref entities.EntityRef, depth int, relTypes []entities.RelationshipType) (*RelatedEntities, error) {
	depth = clampDepth(depth)

	source, err := s.graph.FindNode(ctx, worldID, ref)
	if err != nil {
		return nil, fmt.Errorf("finding node: %w", err)
	}
	if source == nil {
		return nil, apperror.EntityNotFound(fmt.Sprintf("node for %s", ref))
	}

	depths := map[string]int{source.ID: 0}
	frontier := []string{source.ID}
	for hop := 1; hop <= depth && len(frontier) > 0; hop++ {
		edges, err := s.graph.ListEdgesForNodes(ctx, worldID, frontier, relTypes)
		if err != nil {
			return nil, fmt.Errorf("expanding hop %d: %w", hop, err)
		}
		inFrontier := make(map[string]bool, len(frontier))
		for _, id := range frontier {
			inFrontier[id] = true
		}

		var next []string
		for i := range edges {
			for _, from := range []string{edges[i].SourceNodeID, edges[i].TargetNodeID} {
				if !inFrontier[from] {
					continue
				}
				other := edges[i].Other(from)
				if _, seen := depths[other]; seen {
					continue
				}
				depths[other] = hop
				next = append(next, other)
			}
		}
		sort.Strings(next)
		frontier = next
	}

	visited := make([]string, 0, len(depths))
	for id := range depths {
		visited = append(visited, id)
	}
	sort.Strings(visited)

	result := &RelatedEntities{Source: *source, Nodes: []RelatedNode{}, Edges: []entities.GraphEdge{}}
	if len(visited) == 1 {
		return result, nil
	}

	edges, err := s.graph.ListEdgesForNodes(ctx, worldID, visited, relTypes)
	if err != nil {
		return nil, fmt.Errorf("collecting edges: %w", err)
	}
	for _, e := range edges {
		_, okSource := depths[e.SourceNodeID]
		_, okTarget := depths[e.TargetNodeID]
		if okSource && okTarget {
			result.Edges = append(result.Edges, e)
		}
	}

	nodes, err := s.graph.FindNodesByIDs(ctx, worldID, visited)
	if err != nil {
		return nil, fmt.Errorf("loading related nodes: %w", err)
	}
	for _, n := range nodes {
		if n.ID == source.ID {
			continue
		}
		result.Nodes = append(result.Nodes, RelatedNode{GraphNode: n, Depth: depths[n.ID]})
	}
	sortRelated(result.Nodes)
	return result, nil
}

// BeatContext is a beat with the entities around it.
type BeatContext struct {
	Beat     *entities.Beat       `json:"beat"`
	Node     entities.GraphNode   `json:"node"`
	Entities []RelatedNode        `json:"entities"`
	Edges    []entities.GraphEdge `json:"edges"`
}

// GetBeatContext returns a beat and up to maxEntities entities within two
// hops of it, nearest and most important first.
func (s *QueryService) GetBeatContext(ctx context.Context, worldID string, beatID entities.BeatID, maxEntities int) (*BeatContext, error) {
	if maxEntities <= 0 {
		maxEntities = DefaultBeatContextSize
	}

	entity, err := s.source.GetEntity(ctx, worldID, beatID.Ref())
	if err != nil {
		return nil, err
	}
	beat, ok := entity.(*entities.Beat)
	if !ok {
		return nil, fmt.Errorf("source returned %T for beat %s", entity, beatID)
	}

	related, err := s.FindRelatedEntities(ctx, worldID, beatID.Ref(), DefaultTraversalDepth, nil)
	if apperror.CodeOf(err) == apperror.CodeEntityNotFound {
		return nil, apperror.ErrGraphNotBuilt.WithMessage("beat %s has no graph node yet", beatID)
	}
	if err != nil {
		return nil, err
	}

	kept := related.Nodes
	if len(kept) > maxEntities {
		kept = kept[:maxEntities]
	}
	inContext := map[string]bool{related.Source.ID: true}
	for _, n := range kept {
		inContext[n.ID] = true
	}
	edges := make([]entities.GraphEdge, 0, len(related.Edges))
	for _, e := range related.Edges {
		if inContext[e.SourceNodeID] && inContext[e.TargetNodeID] {
			edges = append(edges, e)
		}
	}

	return &BeatContext{Beat: beat, Node: related.Source, Entities: kept, Edges: edges}, nil
}

// ArcAppearance is one beat in which a character appears.
type ArcAppearance struct {
	StoryID         entities.StoryID `json:"story_id,omitempty"`
	BeatID          entities.BeatID  `json:"beat_id"`
	Sequence        int              `json:"sequence"`
	Title           string           `json:"title,omitempty"`
	SemanticSummary string           `json:"semantic_summary,omitempty"`
	ImportanceScore float64          `json:"importance_score"`
}

// CharacterArc is a character's ordered appearances across beats.
type CharacterArc struct {
	CharacterID entities.CharacterID `json:"character_id"`
	Name        string               `json:"name"`
	StoryID     entities.StoryID     `json:"story_id,omitempty"`
	Appearances []ArcAppearance      `json:"appearances"`
}

// GetCharacterStoryArc returns the beats that mention a character, ordered by
// story and sequence, optionally restricted to one story.
func (s *QueryService) GetCharacterStoryArc(ctx context.Context, worldID string, characterID entities.CharacterID, storyID entities.StoryID) (*CharacterArc, error) {
	character, err := s.source.GetEntity(ctx, worldID, characterID.Ref())
	if err != nil {
		return nil, err
	}
	if storyID != "" {
		if _, err := s.source.GetEntity(ctx, worldID, storyID.Ref()); err != nil {
			return nil, err
		}
	}

	node, err := s.graph.FindNode(ctx, worldID, characterID.Ref())
	if err != nil {
		return nil, fmt.Errorf("finding node: %w", err)
	}
	if node == nil {
		return nil, apperror.ErrGraphNotBuilt.WithMessage("character %s has no graph node yet", characterID)
	}

	edges, err := s.graph.ListEdgesForNodes(ctx, worldID, []string{node.ID},
		[]entities.RelationshipType{entities.RelationMentions})
	if err != nil {
		return nil, fmt.Errorf("listing mentions: %w", err)
	}
	var mentioning []string
	for _, e := range edges {
		if e.TargetNodeID == node.ID {
			mentioning = append(mentioning, e.SourceNodeID)
		}
	}
	beatNodes, err := s.graph.FindNodesByIDs(ctx, worldID, mentioning)
	if err != nil {
		return nil, fmt.Errorf("loading beat nodes: %w", err)
	}

	arc := &CharacterArc{
		CharacterID: characterID,
		Name:        EntityLabel(character),
		StoryID:     storyID,
		Appearances: []ArcAppearance{},
	}
	for _, bn := range beatNodes {
		if bn.EntityType != entities.EntityBeat {
			continue
		}
		entity, err := s.source.GetEntity(ctx, worldID, bn.Ref())
		if apperror.CodeOf(err) == apperror.CodeEntityNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		beat, ok := entity.(*entities.Beat)
		if !ok || (storyID != "" && beat.StoryID != storyID) {
			continue
		}
		arc.Appearances = append(arc.Appearances, ArcAppearance{
			StoryID:         beat.StoryID,
			BeatID:          beat.ID,
			Sequence:        beat.Sequence,
			Title:           beat.Title,
			SemanticSummary: bn.SemanticSummary,
			ImportanceScore: bn.ImportanceScore,
		})
	}

	sort.Slice(arc.Appearances, func(i, j int) bool {
		a, b := arc.Appearances[i], arc.Appearances[j]
		if a.StoryID != b.StoryID {
			return a.StoryID < b.StoryID
		}
		if a.Sequence != b.Sequence {
			return a.Sequence < b.Sequence
		}
		return a.BeatID < b.BeatID
	})
	return arc, nil
}

func clampDepth(depth int) int {
	if depth <= 0 {
		return DefaultTraversalDepth
	}
	return min(depth, MaxTraversalDepth)
}

func sortRelated(nodes []RelatedNode) {
	sort.Slice(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if a.Depth != b.Depth {
			return a.Depth < b.Depth
		}
		if a.ImportanceScore != b.ImportanceScore {
			return a.ImportanceScore > b.ImportanceScore
		}
		return a.EntityID < b.EntityID
	})
}
