package entities

// EntityRef is a type-erased reference to a source entity.
// Typed identifiers convert into it through their Ref methods.
type EntityRef struct {
	Type EntityType `json:"entity_type"`
	ID   string     `json:"entity_id"`
}

// String returns the reference as "type:id".
func (r EntityRef) String() string {
	return string(r.Type) + ":" + r.ID
}

// IsZero reports whether the reference is unset.
func (r EntityRef) IsZero() bool {
	return r.ID == ""
}

// CharacterID identifies a character.
type CharacterID string

// Ref returns the erased reference.
func (id CharacterID) Ref() EntityRef { return EntityRef{Type: EntityCharacter, ID: string(id)} }

// LocationID identifies a location.
type LocationID string

// Ref returns the erased reference.
func (id LocationID) Ref() EntityRef { return EntityRef{Type: EntityLocation, ID: string(id)} }

// EventID identifies an event.
type EventID string

// Ref returns the erased reference.
func (id EventID) Ref() EntityRef { return EntityRef{Type: EntityEvent, ID: string(id)} }

// StoryID identifies a story.
type StoryID string

// Ref returns the erased reference.
func (id StoryID) Ref() EntityRef { return EntityRef{Type: EntityStory, ID: string(id)} }

// BeatID identifies a story beat.
type BeatID string

// Ref returns the erased reference.
func (id BeatID) Ref() EntityRef { return EntityRef{Type: EntityBeat, ID: string(id)} }
