// Package parsers reads world files: the source entities of a world in JSON,
// YAML or CSV form.
package parsers

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/ersonp/lore-graph/internal/domain/entities"
)

// WorldFile is the content of an imported world file. Entities without a
// world ID take the import's target world.
type WorldFile struct {
	Characters []entities.Character `json:"characters,omitempty"`
	Locations  []entities.Location  `json:"locations,omitempty"`
	Events     []entities.Event     `json:"events,omitempty"`
	Stories    []entities.Story     `json:"stories,omitempty"`
	Beats      []entities.Beat      `json:"beats,omitempty"`
}

// Len returns the number of entities in the file.
func (f *WorldFile) Len() int {
	return len(f.Characters) + len(f.Locations) + len(f.Events) + len(f.Stories) + len(f.Beats)
}

// Parser defines the interface for parsing world files.
type Parser interface {
	Parse(r io.Reader) (*WorldFile, error)
}

// ForFormat returns the appropriate parser for the given format.
// Supported formats: "json", "yaml", "csv".
func ForFormat(format string) Parser {
	switch strings.ToLower(format) {
	case "json":
		return &JSONParser{}
	case "yaml", "yml":
		return &YAMLParser{}
	case "csv":
		return &CSVParser{}
	default:
		return nil
	}
}

// ForFile returns the appropriate parser based on file extension.
func ForFile(filename string) Parser {
	return ForFormat(strings.TrimPrefix(filepath.Ext(filename), "."))
}
