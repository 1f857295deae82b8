package services

import "github.com/ersonp/lore-graph/internal/domain/entities"

// ImportanceOptions configures importance scoring.
type ImportanceOptions struct {
	Damping    float64
	Iterations int
}

// DefaultImportanceOptions returns the standard PageRank parameters.
func DefaultImportanceOptions() ImportanceOptions {
	return ImportanceOptions{Damping: 0.85, Iterations: 20}
}

// ComputeImportance runs strength-weighted PageRank over a world's nodes and
// edges and returns scores keyed by node ID, scaled so the mean score is 1.
//
// The result depends only on the node and edge sets, never on their order.
func ComputeImportance(nodes []entities.GraphNode, edges []entities.GraphEdge, opts ImportanceOptions) map[string]float64 {
	if len(nodes) == 0 {
		return map[string]float64{}
	}
	if opts.Iterations <= 0 {
		opts.Iterations = DefaultImportanceOptions().Iterations
	}
	if opts.Damping <= 0 || opts.Damping >= 1 {
		opts.Damping = DefaultImportanceOptions().Damping
	}

	a := newArena(nodes, edges)
	n := a.len()
	weights := make([]float64, n)
	for i := range weights {
		weights[i] = a.outWeight(i)
	}

	rank := make([]float64, n)
	for i := range rank {
		rank[i] = 1 / float64(n)
	}
	next := make([]float64, n)
	base := (1 - opts.Damping) / float64(n)

	for iter := 0; iter < opts.Iterations; iter++ {
		var dangling float64
		for i := range next {
			next[i] = 0
		}
		for i := 0; i < n; i++ {
			if weights[i] == 0 {
				dangling += rank[i]
				continue
			}
			for _, e := range a.out[i] {
				next[e.to] += rank[i] * e.weight / weights[i]
			}
		}
		spread := dangling / float64(n)
		for i := range next {
			next[i] = base + opts.Damping*(next[i]+spread)
		}
		rank, next = next, rank
	}

	scores := make(map[string]float64, n)
	for i, id := range a.ids {
		scores[id] = rank[i] * float64(n)
	}
	return scores
}
