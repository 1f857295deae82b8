package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/lore-graph/internal/domain/apperror"
	"github.com/ersonp/lore-graph/internal/domain/entities"
)

// seedEvents stores events with no causes in a world.
func seedEvents(t *testing.T, repo *Repository, worldID string, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, repo.SaveEvent(context.Background(), &entities.Event{
			ID:      entities.EventID(id),
			WorldID: worldID,
			Name:    "Event " + id,
		}))
	}
}

func TestRepository_AddDependency(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	seedEvents(t, repo, "w1", "A", "B", "C")

	added, err := repo.AddDependency(ctx, "w1", "B", "A")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = repo.AddDependency(ctx, "w1", "C", "B")
	require.NoError(t, err)
	assert.True(t, added)

	t.Run("closing the cycle is rejected", func(t *testing.T) {
		_, err := repo.AddDependency(ctx, "w1", "A", "C")
		require.Error(t, err)
		assert.ErrorIs(t, err, apperror.ErrCycleDetected)

		causes, err := repo.CausedBy(ctx, "w1", "A")
		require.NoError(t, err)
		assert.Empty(t, causes, "list for A is unchanged")
	})

	t.Run("self reference is rejected", func(t *testing.T) {
		_, err := repo.AddDependency(ctx, "w1", "A", "A")
		assert.ErrorIs(t, err, apperror.ErrCycleDetected)
	})

	t.Run("duplicate is a no-op", func(t *testing.T) {
		added, err := repo.AddDependency(ctx, "w1", "B", "A")
		require.NoError(t, err)
		assert.False(t, added)

		causes, err := repo.CausedBy(ctx, "w1", "B")
		require.NoError(t, err)
		assert.Equal(t, []string{"A"}, causes)
	})

	t.Run("order is preserved", func(t *testing.T) {
		_, err := repo.AddDependency(ctx, "w1", "C", "A")
		require.NoError(t, err)

		causes, err := repo.CausedBy(ctx, "w1", "C")
		require.NoError(t, err)
		assert.Equal(t, []string{"B", "A"}, causes)
	})

	t.Run("unknown events", func(t *testing.T) {
		_, err := repo.AddDependency(ctx, "w1", "Z", "A")
		assert.ErrorIs(t, err, apperror.ErrEntityNotFound)

		_, err = repo.AddDependency(ctx, "w1", "A", "Z")
		assert.ErrorIs(t, err, apperror.ErrEntityNotFound)
	})

	t.Run("cause in another world", func(t *testing.T) {
		seedEvents(t, repo, "w2", "X")

		_, err := repo.AddDependency(ctx, "w1", "A", "X")
		assert.ErrorIs(t, err, apperror.ErrInconsistentWorld)
	})
}

func TestRepository_RemoveDependency(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	seedEvents(t, repo, "w1", "A", "B")

	_, err := repo.AddDependency(ctx, "w1", "B", "A")
	require.NoError(t, err)

	removed, err := repo.RemoveDependency(ctx, "w1", "B", "A")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.RemoveDependency(ctx, "w1", "B", "A")
	require.NoError(t, err)
	assert.False(t, removed, "removal is idempotent")

	_, err = repo.AddDependency(ctx, "w1", "A", "B")
	require.NoError(t, err, "the reverse direction is allowed once the old link is gone")
}
