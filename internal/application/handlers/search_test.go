package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/lore-graph/internal/domain/apperror"
	"github.com/ersonp/lore-graph/internal/domain/entities"
)

func TestSearchHandler_Handle(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)
	env.build(t)

	results, err := env.graph.Search.Handle(context.Background(), SearchRequest{
		WorldID: testWorld,
		Query:   "who follows rabbits",
		Limit:   3,
	})

	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "alice", results[0].EntityID)
	assert.InDelta(t, 1.0, results[0].RelevanceScore, 1e-6)
}

func TestSearchHandler_Handle_TypeFilter(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)
	env.build(t)

	results, err := env.graph.Search.Handle(context.Background(), SearchRequest{
		WorldID:     testWorld,
		Query:       "storm",
		EntityTypes: []string{"event"},
	})

	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, entities.EntityEvent, r.EntityType)
	}
}

func TestSearchHandler_Handle_Errors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		req  SearchRequest
		code apperror.Code
	}{
		{"unknown type", SearchRequest{WorldID: testWorld, Query: "x", EntityTypes: []string{"faction"}}, apperror.CodeInvalidArgument},
		{"negative limit", SearchRequest{WorldID: testWorld, Query: "x", Limit: -1}, apperror.CodeInvalidArgument},
		{"empty query", SearchRequest{WorldID: testWorld, Query: "  "}, apperror.CodeInvalidArgument},
		{"not built", SearchRequest{WorldID: testWorld, Query: "rabbits"}, apperror.CodeGraphNotBuilt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.graph.Search.Handle(context.Background(), tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.code, apperror.CodeOf(err))
		})
	}
}

func TestSearchHandler_Similar(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)
	env.build(t)

	results, err := env.graph.Search.Similar(context.Background(), SimilarRequest{
		WorldID:     testWorld,
		EntityType:  "character",
		EntityID:    "bob",
		TargetTypes: []string{"character"},
	})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "alice", results[0].EntityID)
}

func TestSearchHandler_Similar_Errors(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)
	env.build(t)

	tests := []struct {
		name string
		req  SimilarRequest
		code apperror.Code
	}{
		{"bad type", SimilarRequest{WorldID: testWorld, EntityType: "dragon", EntityID: "x"}, apperror.CodeInvalidArgument},
		{"missing id", SimilarRequest{WorldID: testWorld, EntityType: "character"}, apperror.CodeInvalidArgument},
		{"bad target type", SimilarRequest{WorldID: testWorld, EntityType: "character", EntityID: "bob", TargetTypes: []string{"x"}}, apperror.CodeInvalidArgument},
		{"unknown entity", SimilarRequest{WorldID: testWorld, EntityType: "character", EntityID: "carol"}, apperror.CodeEntityNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.graph.Search.Similar(context.Background(), tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.code, apperror.CodeOf(err))
		})
	}
}
