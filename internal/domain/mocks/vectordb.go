package mocks

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/ersonp/lore-graph/internal/domain/entities"
	"github.com/ersonp/lore-graph/internal/domain/ports"
)

// VectorIndex is a mock implementation of ports.VectorIndex.
// Search returns the world's stored nodes ordered by ID with a zero score.
type VectorIndex struct {
	Nodes     map[string]entities.GraphNode
	UpsertErr error
	DeleteErr error
	SearchErr error

	mu              sync.Mutex
	UpsertCallCount int
	DeleteCallCount int
	SearchCallCount int
	LastSearchLimit int
	DeletedWorldIDs []string
}

// NewVectorIndex creates an empty mock index.
func NewVectorIndex() *VectorIndex {
	return &VectorIndex{Nodes: make(map[string]entities.GraphNode)}
}

// UpsertNodes stores nodes by ID.
func (m *VectorIndex) UpsertNodes(_ context.Context, nodes []entities.GraphNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpsertCallCount++
	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	for _, n := range nodes {
		m.Nodes[n.ID] = n
	}
	return nil
}

// DeleteNodes removes nodes by ID.
func (m *VectorIndex) DeleteNodes(_ context.Context, nodeIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCallCount++
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	for _, id := range nodeIDs {
		delete(m.Nodes, id)
	}
	return nil
}

// DeleteWorld removes every node of a world.
func (m *VectorIndex) DeleteWorld(_ context.Context, worldID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCallCount++
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	m.DeletedWorldIDs = append(m.DeletedWorldIDs, worldID)
	for id, n := range m.Nodes {
		if n.WorldID == worldID {
			delete(m.Nodes, id)
		}
	}
	return nil
}

// Search returns up to limit nodes of the world matching types.
func (m *VectorIndex) Search(_ context.Context, worldID string, _ []float32, types []entities.EntityType, limit int) ([]ports.ScoredNode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SearchCallCount++
	m.LastSearchLimit = limit
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}

	ids := make([]string, 0, len(m.Nodes))
	for id, n := range m.Nodes {
		if n.WorldID != worldID {
			continue
		}
		if len(types) > 0 && !slices.Contains(types, n.EntityType) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	result := make([]ports.ScoredNode, len(ids))
	for i, id := range ids {
		result[i] = ports.ScoredNode{NodeID: id}
	}
	return result, nil
}

// Len returns the number of stored nodes.
func (m *VectorIndex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Nodes)
}
