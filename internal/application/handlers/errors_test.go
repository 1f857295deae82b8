package handlers

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ersonp/lore-graph/internal/domain/apperror"
)

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"plain error", errors.New("disk full"), "disk full"},
		{"sync in progress", apperror.SyncInProgress("w"), "graph is being rebuilt, try again shortly"},
		{"wrapped sync in progress", fmt.Errorf("building: %w", apperror.SyncInProgress("w")), "graph is being rebuilt, try again shortly"},
		{"graph not built", apperror.GraphNotBuilt("w"), `graph for world "w" has not been built: run build first`},
		{"cycle", apperror.CycleDetected("a", "c"), `invalid dependency: event "a" cannot be caused by "c": it would create a causal cycle`},
		{"self cycle", apperror.CycleDetected("a", "a"), `invalid dependency: event "a" cannot be caused by itself`},
		{"not found", apperror.EntityNotFound("character:carol"), "character:carol not found"},
		{"provider", apperror.Provider(errors.New("429 too many requests"), true), "embedding provider failed: 429 too many requests"},
		{"invalid argument", apperror.InvalidArgument("limit must not be negative"), "limit must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.err))
		})
	}
}
