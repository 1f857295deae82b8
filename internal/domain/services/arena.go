package services

import (
	"sort"

	"github.com/ersonp/lore-graph/internal/domain/entities"
)

// arena is an index-based view of one world's graph. Nodes are addressed by
// position and edges hold positions instead of node IDs.
type arena struct {
	ids   []string
	index map[string]int
	out   [][]arenaEdge
}

type arenaEdge struct {
	to     int
	weight float64
}

// newArena builds an arena over nodes. Edges with an endpoint outside the node
// set are ignored. Semantic edges are undirected and are added both ways.
func newArena(nodes []entities.GraphNode, edges []entities.GraphEdge) *arena {
	a := &arena{
		ids:   make([]string, len(nodes)),
		index: make(map[string]int, len(nodes)),
		out:   make([][]arenaEdge, len(nodes)),
	}
	for i, n := range nodes {
		a.ids[i] = n.ID
	}
	sort.Strings(a.ids)
	for i, id := range a.ids {
		a.index[id] = i
	}

	for _, e := range edges {
		from, ok := a.index[e.SourceNodeID]
		if !ok {
			continue
		}
		to, ok := a.index[e.TargetNodeID]
		if !ok || from == to {
			continue
		}
		a.out[from] = append(a.out[from], arenaEdge{to: to, weight: e.Strength})
		if e.RelationshipType.IsSemantic() {
			a.out[to] = append(a.out[to], arenaEdge{to: from, weight: e.Strength})
		}
	}
	return a
}

func (a *arena) len() int {
	return len(a.ids)
}

// outWeight returns the total weight leaving node i.
func (a *arena) outWeight(i int) float64 {
	var total float64
	for _, e := range a.out[i] {
		total += e.weight
	}
	return total
}
