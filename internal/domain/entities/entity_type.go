package entities

import (
	"fmt"
	"strings"
)

// EntityType identifies which kind of source entity a graph node projects.
type EntityType string

const (
	EntityCharacter EntityType = "character"
	EntityLocation  EntityType = "location"
	EntityEvent     EntityType = "event"
	EntityStory     EntityType = "story"
	EntityBeat      EntityType = "beat"
)

// AllEntityTypes lists every supported entity type.
var AllEntityTypes = []EntityType{
	EntityCharacter,
	EntityLocation,
	EntityEvent,
	EntityStory,
	EntityBeat,
}

// IsValid reports whether t is one of the supported entity types.
func (t EntityType) IsValid() bool {
	switch t {
	case EntityCharacter, EntityLocation, EntityEvent, EntityStory, EntityBeat:
		return true
	}
	return false
}

// ParseEntityType converts user input into an EntityType.
func ParseEntityType(s string) (EntityType, error) {
	t := EntityType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("unknown entity type %q (valid: %s)", s, joinTypes(AllEntityTypes))
	}
	return t, nil
}

// ParseEntityTypes parses a list of entity types. An empty list means all types.
func ParseEntityTypes(values []string) ([]EntityType, error) {
	if len(values) == 0 {
		return nil, nil
	}
	result := make([]EntityType, 0, len(values))
	for _, v := range values {
		t, err := ParseEntityType(v)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, nil
}

func joinTypes(types []EntityType) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}
