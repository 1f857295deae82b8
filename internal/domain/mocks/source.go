package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/ersonp/lore-graph/internal/domain/apperror"
	"github.com/ersonp/lore-graph/internal/domain/entities"
)

// EntitySource is an in-memory implementation of ports.EntitySource.
type EntitySource struct {
	Err error

	mu       sync.Mutex
	entities map[string]map[entities.EntityRef]entities.SourceEntity
}

// NewEntitySource creates a source holding the given entities.
func NewEntitySource(items ...entities.SourceEntity) *EntitySource {
	s := &EntitySource{entities: make(map[string]map[entities.EntityRef]entities.SourceEntity)}
	for _, e := range items {
		s.Put(e)
	}
	return s
}

// Put adds or replaces an entity.
func (s *EntitySource) Put(e entities.SourceEntity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	world := s.entities[e.World()]
	if world == nil {
		world = make(map[entities.EntityRef]entities.SourceEntity)
		s.entities[e.World()] = world
	}
	world[e.Ref()] = e
}

// Remove deletes an entity.
func (s *EntitySource) Remove(worldID string, ref entities.EntityRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entities[worldID], ref)
}

// ListEntities returns the world's entities of one type ordered by ID.
func (s *EntitySource) ListEntities(_ context.Context, worldID string, entityType entities.EntityType) ([]entities.SourceEntity, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []entities.SourceEntity
	for ref, e := range s.entities[worldID] {
		if ref.Type == entityType {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Ref().ID < result[j].Ref().ID
	})
	return result, nil
}

// GetEntity returns one entity.
func (s *EntitySource) GetEntity(_ context.Context, worldID string, ref entities.EntityRef) (entities.SourceEntity, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[worldID][ref]
	if !ok {
		return nil, apperror.EntityNotFound(ref.String())
	}
	return e, nil
}
