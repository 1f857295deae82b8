package parsers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLParser parses world files in YAML format. Keys match the JSON format.
type YAMLParser struct{}

// Parse reads a YAML world file from the reader.
func (p *YAMLParser) Parse(r io.Reader) (*WorldFile, error) {
	var doc map[string]any
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return &WorldFile{}, nil
		}
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	// Entity types carry JSON tags only, so decoding goes through JSON.
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("converting YAML: %w", err)
	}
	file, err := (&JSONParser{}).Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	return file, nil
}
