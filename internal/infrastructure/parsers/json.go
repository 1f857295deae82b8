package parsers

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSONParser parses world files in JSON format.
type JSONParser struct{}

// Parse reads a JSON world file from the reader.
func (p *JSONParser) Parse(r io.Reader) (*WorldFile, error) {
	var file WorldFile

	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}

	return &file, nil
}
