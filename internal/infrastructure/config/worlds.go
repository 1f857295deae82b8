package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// WorldsConfig holds dynamic world definitions (read/write).
// Worlds are keyed by their sanitized ID.
type WorldsConfig struct {
	Worlds map[string]WorldEntry `yaml:"worlds,omitempty"`
}

// WorldEntry holds configuration for a specific world.
type WorldEntry struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description,omitempty"`
	CreatedAt   time.Time `yaml:"created_at"`
}

// LoadWorlds loads world configuration from the .lore directory.
func LoadWorlds(basePath string) (*WorldsConfig, error) {
	data, err := os.ReadFile(WorldsFilePath(basePath))
	if os.IsNotExist(err) {
		// Return empty config if file doesn't exist
		return &WorldsConfig{
			Worlds: make(map[string]WorldEntry),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading worlds file: %w", err)
	}

	var cfg WorldsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing worlds file: %w", err)
	}

	if cfg.Worlds == nil {
		cfg.Worlds = make(map[string]WorldEntry)
	}

	return &cfg, nil
}

// Save writes the worlds configuration to the worlds file.
func (w *WorldsConfig) Save(basePath string) error {
	configDir := filepath.Join(basePath, DefaultConfigDir)

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(w)
	if err != nil {
		return fmt.Errorf("marshaling worlds config: %w", err)
	}

	if err := os.WriteFile(WorldsFilePath(basePath), data, 0600); err != nil {
		return fmt.Errorf("writing worlds file: %w", err)
	}

	return nil
}

// Add registers a world under the ID derived from its name and returns the ID.
func (w *WorldsConfig) Add(name, description string) (string, error) {
	if w.Worlds == nil {
		w.Worlds = make(map[string]WorldEntry)
	}
	id := SanitizeWorldName(name)
	if _, ok := w.Worlds[id]; ok {
		return "", fmt.Errorf("world %q already exists", id)
	}
	w.Worlds[id] = WorldEntry{
		Name:        name,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	return id, nil
}

// Remove removes a world from the configuration.
func (w *WorldsConfig) Remove(id string) {
	if w.Worlds != nil {
		delete(w.Worlds, id)
	}
}

// Get returns the configuration for a specific world.
func (w *WorldsConfig) Get(id string) (*WorldEntry, error) {
	if len(w.Worlds) == 0 {
		return nil, errors.New("no worlds configured")
	}

	entry, ok := w.Worlds[id]
	if !ok {
		available := w.IDs()
		if len(available) > 5 {
			available = append(available[:5], "...")
		}
		return nil, fmt.Errorf("world %q not found (available: %s)", id, strings.Join(available, ", "))
	}

	return &entry, nil
}

// Resolve accepts either a world ID or a display name.
func (w *WorldsConfig) Resolve(nameOrID string) (string, error) {
	if w.Exists(nameOrID) {
		return nameOrID, nil
	}
	id := SanitizeWorldName(nameOrID)
	if _, err := w.Get(id); err != nil {
		return "", err
	}
	return id, nil
}

// IDs returns the registered world IDs in sorted order.
func (w *WorldsConfig) IDs() []string {
	ids := make([]string, 0, len(w.Worlds))
	for id := range w.Worlds {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Exists checks if a world exists in the configuration.
func (w *WorldsConfig) Exists(id string) bool {
	if w.Worlds == nil {
		return false
	}
	_, ok := w.Worlds[id]
	return ok
}

// WorldsExists checks if a worlds config file exists in the given path.
func WorldsExists(basePath string) bool {
	_, err := os.Stat(WorldsFilePath(basePath))
	return err == nil
}
