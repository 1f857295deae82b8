package handlers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/lore-graph/internal/domain/mocks"
	"github.com/ersonp/lore-graph/internal/infrastructure/config"
)

func TestNewInitHandler(t *testing.T) {
	cm := &mocks.CollectionManager{}

	handler := NewInitHandler(cm, 1536)

	require.NotNil(t, handler)
	assert.Equal(t, cm, handler.collectionManager)
	assert.Equal(t, uint64(1536), handler.vectorSize)
}

func TestInitHandler_Handle_Success(t *testing.T) {
	tmpDir := t.TempDir()
	cm := &mocks.CollectionManager{}

	result, err := NewInitHandler(cm, 1536).Handle(t.Context(), tmpDir)

	require.NoError(t, err)
	assert.Contains(t, result.ConfigPath, "config.yaml")
	assert.Equal(t, "lore_graph_nodes", result.CollectionName)
	assert.Equal(t, []uint64{1536}, cm.VectorSizes)
	assert.True(t, config.Exists(tmpDir))
}

func TestInitHandler_Handle_WithoutIndex(t *testing.T) {
	tmpDir := t.TempDir()

	result, err := NewInitHandler(nil, 0).Handle(t.Context(), tmpDir)

	require.NoError(t, err)
	assert.Empty(t, result.CollectionName)
	assert.True(t, config.Exists(tmpDir))
}

func TestInitHandler_Handle_AlreadyInitialized(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, config.WriteDefault(tmpDir))

	cm := &mocks.CollectionManager{}
	_, err := NewInitHandler(cm, 1536).Handle(t.Context(), tmpDir)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "already initialized")
	assert.Empty(t, cm.VectorSizes)
}

func TestInitHandler_Handle_CollectionError(t *testing.T) {
	tmpDir := t.TempDir()
	cm := &mocks.CollectionManager{EnsureErr: errors.New("connection failed")}

	_, err := NewInitHandler(cm, 1536).Handle(t.Context(), tmpDir)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "creating collection")
	assert.Contains(t, err.Error(), "connection failed")
}
