// Package entities contains core domain data structures.
package entities

import "time"

// SourceEntity is a world entity as stored by its owning repository.
// The graph only reads these; it never mutates them.
type SourceEntity interface {
	// Ref returns the erased reference to the entity.
	Ref() EntityRef
	// World returns the owning world ID.
	World() string
	// TextFields returns the semantically relevant text in display order.
	TextFields() []TextField
	// Relationships returns the structural relationships the entity declares.
	Relationships() []Relation
}

// TextField is one named piece of entity text.
type TextField struct {
	Name  string
	Value string
}

// Character is a person or creature in a world.
type Character struct {
	ID          CharacterID   `json:"id"`
	WorldID     string        `json:"world_id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Role        string        `json:"role,omitempty"`
	Backstory   string        `json:"backstory,omitempty"`
	LocationID  LocationID    `json:"location_id,omitempty"`
	KnownIDs    []CharacterID `json:"known_ids,omitempty"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func (c *Character) Ref() EntityRef { return c.ID.Ref() }
func (c *Character) World() string  { return c.WorldID }

func (c *Character) TextFields() []TextField {
	return []TextField{
		{Name: "name", Value: c.Name},
		{Name: "description", Value: c.Description},
		{Name: "role", Value: c.Role},
		{Name: "backstory", Value: c.Backstory},
	}
}

func (c *Character) Relationships() []Relation {
	rels := make([]Relation, 0, len(c.KnownIDs)+1)
	if c.LocationID != "" {
		rels = append(rels, Relation{Type: RelationLocatedAt, Target: c.LocationID.Ref()})
	}
	for _, known := range c.KnownIDs {
		if known == c.ID {
			continue
		}
		rels = append(rels, Relation{Type: RelationKnows, Target: known.Ref()})
	}
	return rels
}

// Location is a place in a world. Locations nest through ParentID.
type Location struct {
	ID           LocationID `json:"id"`
	WorldID      string     `json:"world_id"`
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	Significance string     `json:"significance,omitempty"`
	ParentID     LocationID `json:"parent_id,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (l *Location) Ref() EntityRef { return l.ID.Ref() }
func (l *Location) World() string  { return l.WorldID }

func (l *Location) TextFields() []TextField {
	return []TextField{
		{Name: "name", Value: l.Name},
		{Name: "description", Value: l.Description},
		{Name: "significance", Value: l.Significance},
	}
}

func (l *Location) Relationships() []Relation {
	if l.ParentID == "" || l.ParentID == l.ID {
		return nil
	}
	return []Relation{{Type: RelationContains, Target: l.ParentID.Ref(), Inbound: true}}
}

// Event is something that happens in a world. CausedBy is the ordered list of
// events that caused it and is the authoritative causal record.
type Event struct {
	ID             EventID       `json:"id"`
	WorldID        string        `json:"world_id"`
	Name           string        `json:"name"`
	Description    string        `json:"description,omitempty"`
	Significance   string        `json:"significance,omitempty"`
	StoryTime      string        `json:"story_time,omitempty"`
	LocationID     LocationID    `json:"location_id,omitempty"`
	ParticipantIDs []CharacterID `json:"participant_ids,omitempty"`
	CausedBy       []EventID     `json:"caused_by,omitempty"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

func (e *Event) Ref() EntityRef { return e.ID.Ref() }
func (e *Event) World() string  { return e.WorldID }

func (e *Event) TextFields() []TextField {
	return []TextField{
		{Name: "name", Value: e.Name},
		{Name: "description", Value: e.Description},
		{Name: "significance", Value: e.Significance},
		{Name: "story_time", Value: e.StoryTime},
	}
}

func (e *Event) Relationships() []Relation {
	rels := make([]Relation, 0, len(e.ParticipantIDs)+len(e.CausedBy)+1)
	if e.LocationID != "" {
		rels = append(rels, Relation{Type: RelationLocatedAt, Target: e.LocationID.Ref()})
	}
	for _, p := range e.ParticipantIDs {
		rels = append(rels, Relation{Type: RelationMentions, Target: p.Ref()})
	}
	for i, cause := range e.CausedBy {
		rels = append(rels, Relation{
			Type:     RelationCauses,
			Target:   cause.Ref(),
			Inbound:  true,
			Metadata: map[string]any{"position": i},
		})
	}
	return rels
}

// Story is a narrative told within a world.
type Story struct {
	ID        StoryID   `json:"id"`
	WorldID   string    `json:"world_id"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary,omitempty"`
	Genre     string    `json:"genre,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Story) Ref() EntityRef { return s.ID.Ref() }
func (s *Story) World() string  { return s.WorldID }

func (s *Story) TextFields() []TextField {
	return []TextField{
		{Name: "title", Value: s.Title},
		{Name: "summary", Value: s.Summary},
		{Name: "genre", Value: s.Genre},
	}
}

func (s *Story) Relationships() []Relation { return nil }

// Beat is one ordered step of a story.
type Beat struct {
	ID           BeatID        `json:"id"`
	WorldID      string        `json:"world_id"`
	StoryID      StoryID       `json:"story_id,omitempty"`
	Sequence     int           `json:"sequence"`
	Title        string        `json:"title,omitempty"`
	Content      string        `json:"content"`
	LocationID   LocationID    `json:"location_id,omitempty"`
	CharacterIDs []CharacterID `json:"character_ids,omitempty"`
	EventIDs     []EventID     `json:"event_ids,omitempty"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

func (b *Beat) Ref() EntityRef { return b.ID.Ref() }
func (b *Beat) World() string  { return b.WorldID }

func (b *Beat) TextFields() []TextField {
	return []TextField{
		{Name: "title", Value: b.Title},
		{Name: "content", Value: b.Content},
	}
}

func (b *Beat) Relationships() []Relation {
	rels := make([]Relation, 0, len(b.CharacterIDs)+len(b.EventIDs)+2)
	if b.StoryID != "" {
		rels = append(rels, Relation{
			Type:     RelationPartOf,
			Target:   b.StoryID.Ref(),
			Metadata: map[string]any{"sequence": b.Sequence},
		})
	}
	if b.LocationID != "" {
		rels = append(rels, Relation{Type: RelationLocatedAt, Target: b.LocationID.Ref()})
	}
	for _, c := range b.CharacterIDs {
		rels = append(rels, Relation{Type: RelationMentions, Target: c.Ref()})
	}
	for _, e := range b.EventIDs {
		rels = append(rels, Relation{Type: RelationMentions, Target: e.Ref()})
	}
	return rels
}
