package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/ersonp/lore-graph/internal/application/handlers"
	"github.com/ersonp/lore-graph/internal/domain/ports"
	"github.com/ersonp/lore-graph/internal/domain/services"
	"github.com/ersonp/lore-graph/internal/infrastructure/config"
	embedder "github.com/ersonp/lore-graph/internal/infrastructure/embedder/openai"
	llm "github.com/ersonp/lore-graph/internal/infrastructure/llm/openai"
	"github.com/ersonp/lore-graph/internal/infrastructure/logging"
	"github.com/ersonp/lore-graph/internal/infrastructure/relationaldb/sqlite"
	"github.com/ersonp/lore-graph/internal/infrastructure/resilient"
	"github.com/ersonp/lore-graph/internal/infrastructure/vectordb/qdrant"
)

// Deps holds high-level dependencies for commands.
// Only handlers are exposed - services and repositories are internal.
type Deps struct {
	BasePath string
	Config   *config.Config
	Worlds   *config.WorldsConfig
	Logger   *zap.Logger
	Graph    *handlers.GraphHandler

	relationalDB *sqlite.Repository
	index        *qdrant.Repository
}

// storeDeps holds the stores every command needs, without model providers.
type storeDeps struct {
	BasePath     string
	Config       *config.Config
	Worlds       *config.WorldsConfig
	Logger       *zap.Logger
	WorldHandler *handlers.WorldHandler

	relationalDB *sqlite.Repository
	index        *qdrant.Repository
}

// withDeps loads config, opens the stores, builds the model providers and
// every handler, then calls the provided function.
// It handles cleanup automatically.
func withDeps(ctx context.Context, fn func(*Deps) error) error {
	return withStore(ctx, func(s *storeDeps) error {
		cfg := s.Config

		emb, err := embedder.NewEmbedder(cfg.Embedder)
		if err != nil {
			return fmt.Errorf("creating embedder: %w", err)
		}
		policy := resilient.NewPolicy(cfg.Retry, s.Logger)

		var summarizer ports.Summarizer
		if !cfg.LLM.Disabled {
			client, err := llm.NewSummarizer(cfg.LLM)
			if err != nil {
				return fmt.Errorf("creating summarizer: %w", err)
			}
			summarizer = resilient.NewSummarizer(client, policy)
		}

		return fn(newDeps(s, resilient.NewEmbedder(emb, policy), summarizer))
	})
}

// withOfflineDeps is withDeps for commands that only read stored
// embeddings. No provider is created, so no API key is needed; building
// and free-text search are unavailable.
func withOfflineDeps(ctx context.Context, fn func(*Deps) error) error {
	return withStore(ctx, func(s *storeDeps) error {
		return fn(newDeps(s, nil, nil))
	})
}

func newDeps(s *storeDeps, embedderPort ports.Embedder, summarizer ports.Summarizer) *Deps {
	cfg := s.Config

	syncService := services.NewSyncService(s.relationalDB, s.relationalDB, embedderPort, summarizer, syncOptions(cfg.Graph), s.Logger)
	queryService := services.NewQueryService(s.relationalDB, s.relationalDB, embedderPort, services.QueryOptions{
		MinRelevance:    cfg.Graph.SearchMinRelevance,
		CandidateFactor: cfg.Graph.CandidateFactor,
	}, s.Logger)
	if s.index != nil {
		syncService.WithVectorIndex(s.index)
		queryService.WithVectorIndex(s.index)
	}
	causalService := services.NewCausalService(s.relationalDB, s.relationalDB, s.relationalDB, s.Logger)

	return &Deps{
		BasePath: s.BasePath,
		Config:   cfg,
		Worlds:   s.Worlds,
		Logger:   s.Logger,
		Graph:    handlers.NewGraphHandler(syncService, queryService, causalService, s.relationalDB, s.Logger),

		relationalDB: s.relationalDB,
		index:        s.index,
	}
}

// withStore loads config and opens the graph store and the optional vector
// index. Commands that never call a model provider use it directly.
func withStore(ctx context.Context, fn func(*storeDeps) error) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	cfg, err := config.Load(cwd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	worlds, err := config.LoadWorlds(cwd)
	if err != nil {
		return fmt.Errorf("loading worlds: %w", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	relationalDB, err := sqlite.NewRepository(config.SQLiteConfig{Path: cfg.SQLitePath(cwd)})
	if err != nil {
		return fmt.Errorf("creating sqlite repository: %w", err)
	}
	defer relationalDB.Close()

	if err := relationalDB.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensuring sqlite schema: %w", err)
	}

	var index *qdrant.Repository
	var vectorIndex ports.VectorIndex
	if cfg.Qdrant.Enabled {
		index, err = qdrant.NewRepository(cfg.Qdrant)
		if err != nil {
			return fmt.Errorf("creating qdrant repository: %w", err)
		}
		defer index.Close()
		vectorIndex = index
	}

	deps := &storeDeps{
		BasePath:     cwd,
		Config:       cfg,
		Worlds:       worlds,
		Logger:       logger,
		WorldHandler: handlers.NewWorldHandler(relationalDB, relationalDB, vectorIndex, logger),
		relationalDB: relationalDB,
		index:        index,
	}

	return fn(deps)
}

// withGraphStore provides read access to the graph store for exports.
func withGraphStore(ctx context.Context, fn func(ports.GraphStore, *config.WorldsConfig) error) error {
	return withStore(ctx, func(s *storeDeps) error {
		return fn(s.relationalDB, s.Worlds)
	})
}

// requireWorld resolves the --world flag against the registered worlds.
func requireWorld(worlds *config.WorldsConfig) (string, error) {
	if globalWorld == "" {
		return "", errors.New("world is required (use --world flag)")
	}
	return worlds.Resolve(globalWorld)
}

func syncOptions(g config.GraphConfig) services.SyncOptions {
	opts := services.DefaultSyncOptions()
	opts.SimilarityThreshold = g.SimilarityThreshold
	opts.SameTypeOnly = g.SimilaritySameTypeOnly
	opts.Importance = services.ImportanceOptions{
		Damping:    g.ImportanceDamping,
		Iterations: g.ImportanceIterations,
	}
	opts.BatchSize = g.BatchSize
	opts.StaleAfter = g.StaleSyncTimeout
	return opts
}
