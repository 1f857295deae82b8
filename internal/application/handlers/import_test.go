package handlers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/lore-graph/internal/domain/entities"
)

const worldJSON = `{
	"characters": [{"id": "alice", "name": "Alice", "description": "Follows rabbits."}],
	"events": [
		{"id": "e1", "name": "Storm"},
		{"id": "e2", "name": "Flood", "caused_by": ["e1"]}
	]
}`

const worldYAML = `
locations:
  - id: castle
    name: Castle
characters:
  - id: bob
    name: Bob
    location_id: castle
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestImportHandler_Handle_JSON(t *testing.T) {
	env := newTestEnv(t)
	path := writeFile(t, "world.json", worldJSON)

	result, err := env.imports.Handle(context.Background(), testWorld, path, ImportOptions{})

	require.NoError(t, err)
	assert.Equal(t, 3, result.Imported)
	assert.Equal(t, 1, result.Dependencies)
	assert.Empty(t, result.Errors)

	causes, err := env.repo.CausedBy(context.Background(), testWorld, "e2")
	require.NoError(t, err)
	assert.Equal(t, []string{"e1"}, causes)
}

func TestImportHandler_Handle_YAMLWithFormat(t *testing.T) {
	env := newTestEnv(t)
	path := writeFile(t, "world.txt", worldYAML)

	result, err := env.imports.Handle(context.Background(), testWorld, path, ImportOptions{Format: "yaml"})

	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)

	entity, err := env.repo.GetEntity(context.Background(), testWorld, entities.CharacterID("bob").Ref())
	require.NoError(t, err)
	assert.Equal(t, entities.LocationID("castle"), entity.(*entities.Character).LocationID)
}

func TestImportHandler_Handle_DryRun(t *testing.T) {
	env := newTestEnv(t)
	path := writeFile(t, "world.json", worldJSON)

	result, err := env.imports.Handle(context.Background(), testWorld, path, ImportOptions{DryRun: true})

	require.NoError(t, err)
	assert.Equal(t, 3, result.Imported)

	list, err := env.repo.ListEntities(context.Background(), testWorld, entities.EntityCharacter)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestImportHandler_Handle_Empty(t *testing.T) {
	env := newTestEnv(t)
	path := writeFile(t, "world.yaml", "")

	result, err := env.imports.Handle(context.Background(), testWorld, path, ImportOptions{})

	require.NoError(t, err)
	assert.Zero(t, result.Imported)
}

func TestImportHandler_Handle_Errors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name    string
		path    string
		opts    ImportOptions
		wantErr string
	}{
		{"unsupported extension", writeFile(t, "world.txt", worldJSON), ImportOptions{}, "unsupported format"},
		{"unsupported format", writeFile(t, "world.json", worldJSON), ImportOptions{Format: "xml"}, "unsupported format"},
		{"missing file", filepath.Join(t.TempDir(), "missing.json"), ImportOptions{}, "opening file"},
		{"invalid content", writeFile(t, "world.json", `{"characters": [`), ImportOptions{}, "parsing file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.imports.Handle(context.Background(), testWorld, tt.path, tt.opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
