package ports

import (
	"context"

	"github.com/ersonp/lore-graph/internal/domain/entities"
)

// EntitySource reads the source entities a world graph is built from.
type EntitySource interface {
	// ListEntities returns every entity of one type in a world.
	ListEntities(ctx context.Context, worldID string, entityType entities.EntityType) ([]entities.SourceEntity, error)

	// GetEntity returns one entity or an apperror.ErrEntityNotFound error.
	GetEntity(ctx context.Context, worldID string, ref entities.EntityRef) (entities.SourceEntity, error)
}

// SourceWriter persists source entities. The graph never calls it; it backs
// world imports and world deletion.
type SourceWriter interface {
	SaveCharacter(ctx context.Context, c *entities.Character) error
	SaveLocation(ctx context.Context, l *entities.Location) error
	SaveEvent(ctx context.Context, e *entities.Event) error
	SaveStory(ctx context.Context, s *entities.Story) error
	SaveBeat(ctx context.Context, b *entities.Beat) error
	DeleteEntity(ctx context.Context, worldID string, ref entities.EntityRef) error
	DeleteWorldSources(ctx context.Context, worldID string) error
}
