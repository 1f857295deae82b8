package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/ersonp/lore-graph/internal/domain/entities"
)

// strengthEpsilon is the smallest strength change that rewrites an edge.
const strengthEpsilon = 1e-9

// deriveStructuralEdges computes every structural edge of a world from its
// source entities. Relationships whose target has no node are returned as
// dangling descriptions instead of edges.
//
// Besides the relationships each entity declares, two edge kinds are derived
// from beats: consecutive beats of a story are linked by temporal_proximity
// (earlier to later), and every character mentioned in a story's beats
// appears_in that story with strength equal to the share of beats mentioning it.
func deriveStructuralEdges(
	worldID string,
	sources []entities.SourceEntity,
	nodes map[entities.EntityRef]*entities.GraphNode,
) (map[entities.EdgeKey]entities.GraphEdge, []string) {
	edges := make(map[entities.EdgeKey]entities.GraphEdge)
	var dangling []string

	add := func(source, target string, relType entities.RelationshipType, strength float64, metadata map[string]any) {
		if source == target {
			return
		}
		edge := entities.NewEdge(worldID, source, target, relType, strength, metadata)
		edges[edge.Key()] = edge
	}

	storyBeats := make(map[entities.StoryID][]*entities.Beat)
	for _, e := range sources {
		node := nodes[e.Ref()]
		if node == nil {
			continue
		}
		for _, rel := range e.Relationships() {
			target := nodes[rel.Target]
			if target == nil {
				dangling = append(dangling, fmt.Sprintf("%s %s %s", e.Ref(), rel.Type, rel.Target))
				continue
			}
			source, dest := node.ID, target.ID
			if rel.Inbound {
				source, dest = dest, source
			}
			add(source, dest, rel.Type, 1, rel.Metadata)
		}
		if beat, ok := e.(*entities.Beat); ok && beat.StoryID != "" {
			storyBeats[beat.StoryID] = append(storyBeats[beat.StoryID], beat)
		}
	}

	for storyID, beats := range storyBeats {
		story := nodes[storyID.Ref()]
		sort.Slice(beats, func(i, j int) bool {
			if beats[i].Sequence != beats[j].Sequence {
				return beats[i].Sequence < beats[j].Sequence
			}
			return beats[i].ID < beats[j].ID
		})

		for i := 1; i < len(beats); i++ {
			prev, next := nodes[beats[i-1].Ref()], nodes[beats[i].Ref()]
			if prev == nil || next == nil {
				continue
			}
			gap := beats[i].Sequence - beats[i-1].Sequence
			add(prev.ID, next.ID, entities.RelationTemporalProximity, 1/float64(max(gap, 1)),
				map[string]any{"gap": gap})
		}

		if story == nil {
			continue
		}
		appearances := make(map[entities.CharacterID]int)
		for _, beat := range beats {
			seen := make(map[entities.CharacterID]bool)
			for _, c := range beat.CharacterIDs {
				if !seen[c] {
					seen[c] = true
					appearances[c]++
				}
			}
		}
		for charID, count := range appearances {
			char := nodes[charID.Ref()]
			if char == nil {
				continue
			}
			add(char.ID, story.ID, entities.RelationAppearsIn, float64(count)/float64(len(beats)),
				map[string]any{"beats": count})
		}
	}

	sort.Strings(dangling)
	return edges, dangling
}

// edgeChanged reports whether desired differs from stored in a way that
// needs a write.
func edgeChanged(stored, desired entities.GraphEdge) bool {
	if math.Abs(stored.Strength-desired.Strength) > strengthEpsilon {
		return true
	}
	return !metadataEqual(stored.Metadata, desired.Metadata)
}

// metadataEqual compares metadata by JSON encoding, since stored numbers come
// back as float64.
func metadataEqual(a, b map[string]any) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ja, jb)
}

func sortedEdgeKeys(edges map[entities.EdgeKey]entities.GraphEdge) []entities.EdgeKey {
	keys := make([]entities.EdgeKey, 0, len(edges))
	for k := range edges {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Source != keys[j].Source {
			return keys[i].Source < keys[j].Source
		}
		if keys[i].Target != keys[j].Target {
			return keys[i].Target < keys[j].Target
		}
		return keys[i].Type < keys[j].Type
	})
	return keys
}
