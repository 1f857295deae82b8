package main

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/lore-graph/internal/infrastructure/config"
)

func TestCreateWorld(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, config.WriteDefault(tmpDir))

	id, err := createWorld(tmpDir, "Middle Earth", "Tolkien's world")
	require.NoError(t, err)
	assert.Equal(t, "middle_earth", id)

	worlds, err := config.LoadWorlds(tmpDir)
	require.NoError(t, err)
	entry, err := worlds.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "Middle Earth", entry.Name)
	assert.Equal(t, "Tolkien's world", entry.Description)
	assert.False(t, entry.CreatedAt.IsZero())

	resolved, err := worlds.Resolve("Middle Earth")
	require.NoError(t, err)
	assert.Equal(t, id, resolved)
}

func TestCreateWorld_Duplicate(t *testing.T) {
	tmpDir := t.TempDir()

	_, err := createWorld(tmpDir, "Narnia", "")
	require.NoError(t, err)

	_, err = createWorld(tmpDir, "narnia", "")
	assert.ErrorContains(t, err, "already exists")
}

func TestPrintWorlds(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		var buf bytes.Buffer
		printWorlds(&buf, &config.WorldsConfig{})
		assert.Contains(t, buf.String(), "No worlds configured.")
	})

	t.Run("sorted by id", func(t *testing.T) {
		worlds := &config.WorldsConfig{}
		_, err := worlds.Add("Narnia", "Through the wardrobe")
		require.NoError(t, err)
		_, err = worlds.Add("Middle Earth", "")
		require.NoError(t, err)

		var buf bytes.Buffer
		printWorlds(&buf, worlds)
		out := buf.String()

		assert.Contains(t, out, "Through the wardrobe")
		assert.Less(t, bytes.Index(buf.Bytes(), []byte("middle_earth")), bytes.Index(buf.Bytes(), []byte("narnia")))
		assert.Contains(t, out, "Middle Earth")
	})
}

func TestRequireWorld(t *testing.T) {
	worlds := &config.WorldsConfig{}
	_, err := worlds.Add("Narnia", "")
	require.NoError(t, err)

	prev := globalWorld
	t.Cleanup(func() { globalWorld = prev })

	globalWorld = ""
	_, err = requireWorld(worlds)
	assert.ErrorContains(t, err, "world is required")

	globalWorld = "Narnia"
	id, err := requireWorld(worlds)
	require.NoError(t, err)
	assert.Equal(t, "narnia", id)

	globalWorld = "atlantis"
	_, err = requireWorld(worlds)
	assert.ErrorContains(t, err, `world "atlantis" not found`)
}

func TestEnableQdrant(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, config.WriteDefault(tmpDir))

	require.NoError(t, enableQdrant(config.ConfigFilePath(tmpDir)))

	cfg, err := config.Load(tmpDir)
	require.NoError(t, err)
	assert.True(t, cfg.Qdrant.Enabled)
	assert.Equal(t, "lore_graph_nodes", cfg.Qdrant.Collection)

	data, err := os.ReadFile(config.ConfigFilePath(tmpDir))
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Lore Graph Configuration")
}

func TestFormatDetails(t *testing.T) {
	assert.Equal(t, "", formatDetails(nil))
	assert.Equal(t, "cause_event_id=e1 event_id=e2", formatDetails(map[string]any{
		"event_id":       "e2",
		"cause_event_id": "e1",
	}))
}
