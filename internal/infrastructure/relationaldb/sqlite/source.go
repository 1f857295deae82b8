package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ersonp/lore-graph/internal/domain/apperror"
	"github.com/ersonp/lore-graph/internal/domain/entities"
)

// sourceTables maps entity types to their tables.
var sourceTables = map[entities.EntityType]string{
	entities.EntityCharacter: "characters",
	entities.EntityLocation:  "locations",
	entities.EntityEvent:     "events",
	entities.EntityStory:     "stories",
	entities.EntityBeat:      "beats",
}

const (
	characterColumns = `id, world_id, name, description, role, backstory, location_id, known_ids, updated_at`
	locationColumns  = `id, world_id, name, description, significance, parent_id, updated_at`
	eventColumns     = `id, world_id, name, description, significance, story_time, location_id, participant_ids, caused_by, updated_at`
	storyColumns     = `id, world_id, title, summary, genre, updated_at`
	beatColumns      = `id, world_id, story_id, sequence, title, content, location_id, character_ids, event_ids, updated_at`
)

// ListEntities returns every entity of one type in a world, ordered by ID.
func (r *Repository) ListEntities(ctx context.Context, worldID string, entityType entities.EntityType) ([]entities.SourceEntity, error) {
	return r.querySource(ctx, entityType, "world_id = ? ORDER BY id", worldID)
}

// GetEntity returns one source entity.
func (r *Repository) GetEntity(ctx context.Context, worldID string, ref entities.EntityRef) (entities.SourceEntity, error) {
	result, err := r.querySource(ctx, ref.Type, "world_id = ? AND id = ?", worldID, ref.ID)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, apperror.EntityNotFound(fmt.Sprintf("%s %q", ref.Type, ref.ID))
	}
	return result[0], nil
}

// SaveCharacter saves or updates a character.
func (r *Repository) SaveCharacter(ctx context.Context, c *entities.Character) error {
	known, err := encodeIDs(c.KnownIDs)
	if err != nil {
		return err
	}
	c.UpdatedAt = timeNow()
	query := `
		INSERT INTO characters (` + characterColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			role = excluded.role,
			backstory = excluded.backstory,
			location_id = excluded.location_id,
			known_ids = excluded.known_ids,
			updated_at = excluded.updated_at
		WHERE characters.world_id = excluded.world_id
	`
	return r.execSave(ctx, "character", query,
		string(c.ID), c.WorldID, c.Name, c.Description, c.Role, c.Backstory,
		string(c.LocationID), known, c.UpdatedAt,
	)
}

// SaveLocation saves or updates a location.
func (r *Repository) SaveLocation(ctx context.Context, l *entities.Location) error {
	l.UpdatedAt = timeNow()
	query := `
		INSERT INTO locations (` + locationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			significance = excluded.significance,
			parent_id = excluded.parent_id,
			updated_at = excluded.updated_at
		WHERE locations.world_id = excluded.world_id
	`
	return r.execSave(ctx, "location", query,
		string(l.ID), l.WorldID, l.Name, l.Description, l.Significance, string(l.ParentID), l.UpdatedAt,
	)
}

// SaveEvent saves or updates an event. The caused-by list is only written
// when the event is first inserted; later changes go through AddDependency
// and RemoveDependency.
func (r *Repository) SaveEvent(ctx context.Context, e *entities.Event) error {
	participants, err := encodeIDs(e.ParticipantIDs)
	if err != nil {
		return err
	}
	causedBy, err := encodeIDs(e.CausedBy)
	if err != nil {
		return err
	}
	e.UpdatedAt = timeNow()
	query := `
		INSERT INTO events (` + eventColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			significance = excluded.significance,
			story_time = excluded.story_time,
			location_id = excluded.location_id,
			participant_ids = excluded.participant_ids,
			updated_at = excluded.updated_at
		WHERE events.world_id = excluded.world_id
	`
	return r.execSave(ctx, "event", query,
		string(e.ID), e.WorldID, e.Name, e.Description, e.Significance, e.StoryTime,
		string(e.LocationID), participants, causedBy, e.UpdatedAt,
	)
}

// SaveStory saves or updates a story.
func (r *Repository) SaveStory(ctx context.Context, s *entities.Story) error {
	s.UpdatedAt = timeNow()
	query := `
		INSERT INTO stories (` + storyColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			summary = excluded.summary,
			genre = excluded.genre,
			updated_at = excluded.updated_at
		WHERE stories.world_id = excluded.world_id
	`
	return r.execSave(ctx, "story", query,
		string(s.ID), s.WorldID, s.Title, s.Summary, s.Genre, s.UpdatedAt,
	)
}

// SaveBeat saves or updates a beat.
func (r *Repository) SaveBeat(ctx context.Context, b *entities.Beat) error {
	characters, err := encodeIDs(b.CharacterIDs)
	if err != nil {
		return err
	}
	events, err := encodeIDs(b.EventIDs)
	if err != nil {
		return err
	}
	b.UpdatedAt = timeNow()
	query := `
		INSERT INTO beats (` + beatColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			story_id = excluded.story_id,
			sequence = excluded.sequence,
			title = excluded.title,
			content = excluded.content,
			location_id = excluded.location_id,
			character_ids = excluded.character_ids,
			event_ids = excluded.event_ids,
			updated_at = excluded.updated_at
		WHERE beats.world_id = excluded.world_id
	`
	return r.execSave(ctx, "beat", query,
		string(b.ID), b.WorldID, string(b.StoryID), b.Sequence, b.Title, b.Content,
		string(b.LocationID), characters, events, b.UpdatedAt,
	)
}

// DeleteEntity removes a source entity. Deleting an event also drops it from
// the caused-by lists of the world's other events.
func (r *Repository) DeleteEntity(ctx context.Context, worldID string, ref entities.EntityRef) error {
	table, ok := sourceTables[ref.Type]
	if !ok {
		return apperror.InvalidArgument("unknown entity type %q", ref.Type)
	}
	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE world_id = ? AND id = ?`, table), worldID, ref.ID)
		if err != nil {
			return fmt.Errorf("deleting %s: %w", ref.Type, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("reading rows affected: %w", err)
		}
		if n == 0 {
			return apperror.EntityNotFound(fmt.Sprintf("%s %q", ref.Type, ref.ID))
		}
		if ref.Type != entities.EntityEvent {
			return nil
		}

		graph, err := loadDependencyGraph(ctx, tx, worldID)
		if err != nil {
			return err
		}
		for eventID, causes := range graph {
			kept := make([]string, 0, len(causes))
			for _, c := range causes {
				if c != ref.ID {
					kept = append(kept, c)
				}
			}
			if len(kept) != len(causes) {
				if err := saveCausedBy(ctx, tx, eventID, kept); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// DeleteWorldSources removes every source entity of a world.
func (r *Repository) DeleteWorldSources(ctx context.Context, worldID string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		for _, t := range entities.AllEntityTypes {
			if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE world_id = ?`, sourceTables[t]), worldID); err != nil {
				return fmt.Errorf("deleting %s rows: %w", t, err)
			}
		}
		return nil
	})
}

func (r *Repository) execSave(ctx context.Context, what, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("saving %s: %w", what, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if n == 0 {
		return apperror.ErrInconsistentWorld.WithMessage("%s %v already exists in another world", what, args[0])
	}
	return nil
}

// querySource loads source entities of one type with the given WHERE clause.
func (r *Repository) querySource(ctx context.Context, entityType entities.EntityType, where string, args ...any) ([]entities.SourceEntity, error) {
	var columns string
	switch entityType {
	case entities.EntityCharacter:
		columns = characterColumns
	case entities.EntityLocation:
		columns = locationColumns
	case entities.EntityEvent:
		columns = eventColumns
	case entities.EntityStory:
		columns = storyColumns
	case entities.EntityBeat:
		columns = beatColumns
	default:
		return nil, apperror.InvalidArgument("unknown entity type %q", entityType)
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s`, columns, sourceTables[entityType], where)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", sourceTables[entityType], err)
	}
	defer rows.Close()

	result := make([]entities.SourceEntity, 0, 16)
	for rows.Next() {
		entity, err := scanSource(entityType, rows)
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", entityType, err)
		}
		result = append(result, entity)
	}
	return result, rows.Err()
}

func scanSource(entityType entities.EntityType, rows *sql.Rows) (entities.SourceEntity, error) {
	switch entityType {
	case entities.EntityCharacter:
		var c entities.Character
		var known string
		if err := rows.Scan(&c.ID, &c.WorldID, &c.Name, &c.Description, &c.Role, &c.Backstory,
			&c.LocationID, &known, &c.UpdatedAt); err != nil {
			return nil, err
		}
		ids, err := decodeIDs[entities.CharacterID](known)
		if err != nil {
			return nil, err
		}
		c.KnownIDs = ids
		return &c, nil

	case entities.EntityLocation:
		var l entities.Location
		if err := rows.Scan(&l.ID, &l.WorldID, &l.Name, &l.Description, &l.Significance,
			&l.ParentID, &l.UpdatedAt); err != nil {
			return nil, err
		}
		return &l, nil

	case entities.EntityEvent:
		var e entities.Event
		var participants, causedBy string
		if err := rows.Scan(&e.ID, &e.WorldID, &e.Name, &e.Description, &e.Significance,
			&e.StoryTime, &e.LocationID, &participants, &causedBy, &e.UpdatedAt); err != nil {
			return nil, err
		}
		var err error
		if e.ParticipantIDs, err = decodeIDs[entities.CharacterID](participants); err != nil {
			return nil, err
		}
		if e.CausedBy, err = decodeIDs[entities.EventID](causedBy); err != nil {
			return nil, err
		}
		return &e, nil

	case entities.EntityStory:
		var s entities.Story
		if err := rows.Scan(&s.ID, &s.WorldID, &s.Title, &s.Summary, &s.Genre, &s.UpdatedAt); err != nil {
			return nil, err
		}
		return &s, nil

	default:
		var b entities.Beat
		var characters, events string
		if err := rows.Scan(&b.ID, &b.WorldID, &b.StoryID, &b.Sequence, &b.Title, &b.Content,
			&b.LocationID, &characters, &events, &b.UpdatedAt); err != nil {
			return nil, err
		}
		var err error
		if b.CharacterIDs, err = decodeIDs[entities.CharacterID](characters); err != nil {
			return nil, err
		}
		if b.EventIDs, err = decodeIDs[entities.EventID](events); err != nil {
			return nil, err
		}
		return &b, nil
	}
}
