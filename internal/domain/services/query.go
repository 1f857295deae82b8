package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ersonp/lore-graph/internal/domain/apperror"
	"github.com/ersonp/lore-graph/internal/domain/entities"
	"github.com/ersonp/lore-graph/internal/domain/ports"
)

const (
	// DefaultSearchLimit is the default number of search results.
	DefaultSearchLimit = 10
	// DefaultSimilarLimit is the default number of similar entities.
	DefaultSimilarLimit = 5
	// DefaultCandidateFactor multiplies the limit when shortlisting from a vector index.
	DefaultCandidateFactor = 4
)

// SearchResult is one ranked node.
type SearchResult struct {
	NodeID          string              `json:"node_id"`
	EntityType      entities.EntityType `json:"entity_type"`
	EntityID        string              `json:"entity_id"`
	SemanticSummary string              `json:"semantic_summary,omitempty"`
	RelevanceScore  float64             `json:"relevance_score"`
	ImportanceScore float64             `json:"importance_score"`
}

// QueryOptions tunes read queries.
type QueryOptions struct {
	// MinRelevance drops results scoring below it.
	MinRelevance float64
	// CandidateFactor sets the vector index shortlist to limit × factor.
	CandidateFactor int
}

// QueryService answers read-only queries against committed graph state.
type QueryService struct {
	graph    ports.GraphStore
	source   ports.EntitySource
	embedder ports.Embedder
	index    ports.VectorIndex
	opts     QueryOptions
	logger   *zap.Logger
}

// NewQueryService creates a new query service.
func NewQueryService(graph ports.GraphStore, source ports.EntitySource, embedder ports.Embedder, opts QueryOptions, logger *zap.Logger) *QueryService {
	if opts.CandidateFactor <= 0 {
		opts.CandidateFactor = DefaultCandidateFactor
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryService{
		graph:    graph,
		source:   source,
		embedder: embedder,
		opts:     opts,
		logger:   logger.Named("query"),
	}
}

// WithVectorIndex shortlists search candidates from index.
func (s *QueryService) WithVectorIndex(index ports.VectorIndex) *QueryService {
	s.index = index
	return s
}

// SemanticSearch ranks a world's embedded nodes by similarity to query.
// Results are ordered by relevance, then importance, then entity ID.
func (s *QueryService) SemanticSearch(ctx context.Context, worldID, query string, types []entities.EntityType, limit int) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperror.InvalidArgument("query is required")
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	if err := s.requireBuilt(ctx, worldID); err != nil {
		return nil, err
	}

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("generating query embedding: %w", err)
	}

	candidates, err := s.candidates(ctx, worldID, embedding, types, limit)
	if err != nil {
		return nil, err
	}
	return rankNodes(candidates, embedding, "", s.opts.MinRelevance, limit), nil
}

// FindSimilarEntities ranks other nodes by similarity to an entity's own
// embedding. The entity itself is never returned.
func (s *QueryService) FindSimilarEntities(ctx context.Context, worldID string, ref entities.EntityRef, targetTypes []entities.EntityType, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = DefaultSimilarLimit
	}

	node, err := s.graph.FindNode(ctx, worldID, ref)
	if err != nil {
		return nil, fmt.Errorf("finding node: %w", err)
	}
	if node == nil {
		if err := s.requireBuilt(ctx, worldID); err != nil {
			return nil, err
		}
		return nil, apperror.EntityNotFound(fmt.Sprintf("node for %s", ref))
	}
	if !node.HasEmbedding() {
		return nil, apperror.ErrGraphNotBuilt.WithMessage("%s has no embedding yet", ref)
	}

	candidates, err := s.candidates(ctx, worldID, node.Embedding, targetTypes, limit+1)
	if err != nil {
		return nil, err
	}
	return rankNodes(candidates, node.Embedding, node.ID, s.opts.MinRelevance, limit), nil
}

func (s *QueryService) requireBuilt(ctx context.Context, worldID string) error {
	count, err := s.graph.CountNodes(ctx, worldID)
	if err != nil {
		return fmt.Errorf("counting nodes: %w", err)
	}
	if count == 0 {
		return apperror.GraphNotBuilt(worldID)
	}
	return nil
}

// candidates returns the nodes to score exactly. With a vector index they
// are its shortlist; otherwise every node of the world.
func (s *QueryService) candidates(ctx context.Context, worldID string, embedding []float32, types []entities.EntityType, limit int) ([]entities.GraphNode, error) {
	if s.index != nil {
		hits, err := s.index.Search(ctx, worldID, embedding, types, limit*s.opts.CandidateFactor)
		if err == nil && len(hits) > 0 {
			ids := make([]string, len(hits))
			for i, h := range hits {
				ids[i] = h.NodeID
			}
			nodes, err := s.graph.FindNodesByIDs(ctx, worldID, ids)
			if err != nil {
				return nil, fmt.Errorf("loading candidate nodes: %w", err)
			}
			return filterTypes(nodes, types), nil
		}
		if err != nil {
			s.logger.Warn("vector index search failed, scanning graph store", zap.Error(err))
		}
	}

	nodes, err := s.graph.ListNodes(ctx, worldID, types)
	if err != nil {
		return nil, fmt.Errorf("listing nodes: %w", err)
	}
	return nodes, nil
}

// rankNodes scores embedded nodes against embedding and returns the top
// limit results. Nodes without an embedding are skipped.
func rankNodes(nodes []entities.GraphNode, embedding []float32, excludeID string, minRelevance float64, limit int) []SearchResult {
	results := make([]SearchResult, 0, len(nodes))
	for i := range nodes {
		n := &nodes[i]
		if n.ID == excludeID || !n.HasEmbedding() {
			continue
		}
		score := CosineSimilarity(embedding, n.Embedding)
		if score < minRelevance {
			continue
		}
		results = append(results, SearchResult{
			NodeID:          n.ID,
			EntityType:      n.EntityType,
			EntityID:        n.EntityID,
			SemanticSummary: n.SemanticSummary,
			RelevanceScore:  score,
			ImportanceScore: n.ImportanceScore,
		})
	}
	sortResults(results)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

// sortResults orders by relevance desc, importance desc, entity ID asc.
func sortResults(results []SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.RelevanceScore != b.RelevanceScore {
			return a.RelevanceScore > b.RelevanceScore
		}
		if a.ImportanceScore != b.ImportanceScore {
			return a.ImportanceScore > b.ImportanceScore
		}
		return a.EntityID < b.EntityID
	})
}

func filterTypes(nodes []entities.GraphNode, types []entities.EntityType) []entities.GraphNode {
	if len(types) == 0 {
		return nodes
	}
	allowed := make(map[entities.EntityType]bool, len(types))
	for _, t := range types {
		allowed[t] = true
	}
	result := nodes[:0]
	for _, n := range nodes {
		if allowed[n.EntityType] {
			result = append(result, n)
		}
	}
	return result
}
