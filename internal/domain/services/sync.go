package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ersonp/lore-graph/internal/domain/apperror"
	"github.com/ersonp/lore-graph/internal/domain/entities"
	"github.com/ersonp/lore-graph/internal/domain/ports"
)

// timeNow is the clock used for build durations, replaceable in tests.
var timeNow = time.Now

// maxErrorSamples bounds how many entity failures are spelled out in last_error.
const maxErrorSamples = 3

// renewDivisor sets how often a running build renews its flag, as a
// fraction of StaleAfter.
const renewDivisor = 3

// errSyncFlagLost ends a build whose flag was reclaimed by another build.
var errSyncFlagLost = errors.New("build flag was reclaimed by another build")

// SyncOptions tunes graph builds.
type SyncOptions struct {
	SimilarityThreshold float64
	SameTypeOnly        bool
	Importance          ImportanceOptions
	BatchSize           int
	StaleAfter          time.Duration
}

// DefaultSyncOptions returns the default build settings.
func DefaultSyncOptions() SyncOptions {
	return SyncOptions{
		SimilarityThreshold: 0.7,
		Importance:          DefaultImportanceOptions(),
		BatchSize:           32,
		StaleAfter:          30 * time.Minute,
	}
}

// SyncService builds and refreshes world graphs from source entities.
type SyncService struct {
	graph      ports.GraphDB
	source     ports.EntitySource
	embedder   ports.Embedder
	summarizer ports.Summarizer
	index      ports.VectorIndex
	opts       SyncOptions
	logger     *zap.Logger
}

// NewSyncService creates a new sync service. A nil summarizer keeps
// extractive summaries; a nil logger discards logs.
func NewSyncService(
	graph ports.GraphDB,
	source ports.EntitySource,
	embedder ports.Embedder,
	summarizer ports.Summarizer,
	opts SyncOptions,
	logger *zap.Logger,
) *SyncService {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultSyncOptions().BatchSize
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = DefaultSyncOptions().StaleAfter
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncService{
		graph:      graph,
		source:     source,
		embedder:   embedder,
		summarizer: summarizer,
		opts:       opts,
		logger:     logger.Named("sync"),
	}
}

// WithVectorIndex mirrors node embeddings into index after each build.
func (s *SyncService) WithVectorIndex(index ports.VectorIndex) *SyncService {
	s.index = index
	return s
}

// BuildWorldGraph runs a full or incremental build of a world's graph.
// It fails with apperror.ErrSyncInProgress if a build is already running.
func (s *SyncService) BuildWorldGraph(ctx context.Context, worldID string, fullRebuild bool) (*entities.BuildReport, error) {
	token, err := s.acquire(ctx, worldID)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, worldID, token, fullRebuild)
}

// BuildHandle tracks a build started with StartBuild.
type BuildHandle struct {
	WorldID     string
	FullRebuild bool

	done   chan struct{}
	report *entities.BuildReport
	err    error
}

// Done is closed when the build finishes.
func (h *BuildHandle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the build finishes or ctx ends.
func (h *BuildHandle) Wait(ctx context.Context) (*entities.BuildReport, error) {
	select {
	case <-h.done:
		return h.report, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// StartBuild claims the world's build flag and runs the build in the
// background. Rejection is reported synchronously.
func (s *SyncService) StartBuild(ctx context.Context, worldID string, fullRebuild bool) (*BuildHandle, error) {
	token, err := s.acquire(ctx, worldID)
	if err != nil {
		return nil, err
	}
	h := &BuildHandle{WorldID: worldID, FullRebuild: fullRebuild, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		h.report, h.err = s.run(ctx, worldID, token, fullRebuild)
	}()
	return h, nil
}

// GetStatus returns the sync status of a world.
func (s *SyncService) GetStatus(ctx context.Context, worldID string) (*entities.SyncStatus, error) {
	status, err := s.graph.GetSyncStatus(ctx, worldID, s.opts.StaleAfter)
	if err != nil {
		return nil, fmt.Errorf("getting sync status: %w", err)
	}
	return status, nil
}

// acquire claims the world's build flag and returns the token owning it.
func (s *SyncService) acquire(ctx context.Context, worldID string) (string, error) {
	if worldID == "" {
		return "", apperror.InvalidArgument("world id is required")
	}
	token := uuid.NewString()
	ok, err := s.graph.TryStartSync(ctx, worldID, token, s.opts.StaleAfter)
	if err != nil {
		return "", fmt.Errorf("starting sync: %w", err)
	}
	if !ok {
		return "", apperror.SyncInProgress(worldID)
	}
	return token, nil
}

// run executes a build whose flag is already held and always releases it.
func (s *SyncService) run(ctx context.Context, worldID, token string, fullRebuild bool) (*entities.BuildReport, error) {
	b := &build{
		SyncService: s,
		worldID:     worldID,
		token:       token,
		report:      &entities.BuildReport{WorldID: worldID, FullRebuild: fullRebuild},
		logger:      s.logger.With(zap.String("world_id", worldID), zap.Bool("full_rebuild", fullRebuild)),
	}
	start := timeNow()

	buildCtx, cancel := context.WithCancelCause(ctx)
	renewDone := make(chan struct{})
	go func() {
		defer close(renewDone)
		b.renew(buildCtx, cancel)
	}()

	var err error
	defer func() {
		recovered := recover()
		if recovered != nil {
			err = fmt.Errorf("graph build panicked: %v", recovered)
		}
		cancel(nil)
		<-renewDone
		b.report.Duration = timeNow().Sub(start)
		b.finish(context.WithoutCancel(ctx), err)
		if recovered != nil {
			panic(recovered)
		}
	}()

	b.logger.Info("graph build started")
	err = b.execute(buildCtx)
	if err != nil {
		if errors.Is(context.Cause(buildCtx), errSyncFlagLost) {
			err = errSyncFlagLost
		}
		return nil, err
	}
	return b.report, nil
}

// renew keeps the build flag fresh until ctx ends. Losing the flag cancels
// the build.
func (b *build) renew(ctx context.Context, cancel context.CancelCauseFunc) {
	ticker := time.NewTicker(max(b.opts.StaleAfter/renewDivisor, time.Millisecond))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		ok, err := b.graph.RenewSync(ctx, b.worldID, b.token)
		if err != nil {
			if ctx.Err() == nil {
				b.logger.Warn("renewing sync flag failed", zap.Error(err))
			}
			continue
		}
		if !ok {
			b.logger.Error("sync flag taken over, stopping build")
			cancel(errSyncFlagLost)
			return
		}
	}
}

// build holds the state of one build run.
type build struct {
	*SyncService
	worldID  string
	token    string
	report   *entities.BuildReport
	failures []string
	logger   *zap.Logger

	// embedded are nodes written with a fresh embedding during this run.
	embedded []entities.GraphNode
	// removed are node IDs deleted during this run.
	removed []string
}

func (b *build) execute(ctx context.Context) error {
	if b.report.FullRebuild {
		nodes, edges, err := b.graph.ClearWorldGraph(ctx, b.worldID)
		if err != nil {
			return fmt.Errorf("clearing world graph: %w", err)
		}
		b.report.NodesRemoved += nodes
		b.report.EdgesRemoved += edges
		if b.index != nil {
			if err := b.index.DeleteWorld(ctx, b.worldID); err != nil {
				b.logger.Warn("clearing vector index failed", zap.Error(err))
			}
		}
	}

	sources, err := b.loadSources(ctx)
	if err != nil {
		return err
	}

	existing, err := b.graph.ListNodes(ctx, b.worldID, nil)
	if err != nil {
		return fmt.Errorf("listing nodes: %w", err)
	}
	nodes := make(map[entities.EntityRef]*entities.GraphNode, len(existing))
	for i := range existing {
		nodes[existing[i].Ref()] = &existing[i]
	}

	if err := b.removeOrphans(ctx, sources, nodes); err != nil {
		return err
	}

	var stale []entities.SourceEntity
	for _, e := range sources {
		node := nodes[e.Ref()]
		if node == nil || node.ContentHash != Fingerprint(e) {
			stale = append(stale, e)
		}
	}
	if err := b.embedStale(ctx, stale, nodes); err != nil {
		return err
	}

	current, err := b.graph.ListNodes(ctx, b.worldID, nil)
	if err != nil {
		return fmt.Errorf("listing nodes: %w", err)
	}
	if err := b.syncStructuralEdges(ctx, sources, current); err != nil {
		return err
	}
	if err := b.syncSemanticEdges(ctx, current); err != nil {
		return err
	}
	if err := b.scoreImportance(ctx); err != nil {
		return err
	}

	b.mirror(ctx)
	b.audit(ctx)
	return nil
}

// loadSources lists every entity type of the world concurrently.
func (b *build) loadSources(ctx context.Context) ([]entities.SourceEntity, error) {
	results := make([][]entities.SourceEntity, len(entities.AllEntityTypes))
	g, gctx := errgroup.WithContext(ctx)
	for i, entityType := range entities.AllEntityTypes {
		g.Go(func() error {
			list, err := b.source.ListEntities(gctx, b.worldID, entityType)
			if err != nil {
				return fmt.Errorf("listing %s entities: %w", entityType, err)
			}
			results[i] = list
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []entities.SourceEntity
	for _, list := range results {
		for _, e := range list {
			if e.World() != b.worldID {
				return nil, apperror.InconsistentWorld(e.Ref().String(), b.worldID, e.World())
			}
			all = append(all, e)
		}
	}
	return all, nil
}

func (b *build) removeOrphans(ctx context.Context, sources []entities.SourceEntity, nodes map[entities.EntityRef]*entities.GraphNode) error {
	live := make(map[entities.EntityRef]bool, len(sources))
	for _, e := range sources {
		live[e.Ref()] = true
	}
	for ref, node := range nodes {
		if live[ref] {
			continue
		}
		edges, err := b.graph.DeleteNode(ctx, node.ID)
		if err != nil {
			return fmt.Errorf("removing node for %s: %w", ref, err)
		}
		b.report.NodesRemoved++
		b.report.EdgesRemoved += edges
		b.removed = append(b.removed, node.ID)
		delete(nodes, ref)
		b.logger.Debug("removed orphaned node", zap.String("entity", ref.String()))
	}
	return nil
}

// embedStale embeds entities in batches. A failed batch is retried one
// entity at a time so a single bad entity does not fail its neighbours.
func (b *build) embedStale(ctx context.Context, stale []entities.SourceEntity, nodes map[entities.EntityRef]*entities.GraphNode) error {
	for start := 0; start < len(stale); start += b.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+b.opts.BatchSize, len(stale))
		batch := stale[start:end]

		texts := make([]string, len(batch))
		for i, e := range batch {
			texts[i] = EntityText(e)
		}

		vectors, err := b.embedder.EmbedBatch(ctx, texts)
		if err == nil && len(vectors) != len(batch) {
			err = fmt.Errorf("embedding batch: got %d vectors for %d texts", len(vectors), len(batch))
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.logger.Warn("batch embedding failed, retrying entities one by one",
				zap.Int("batch_size", len(batch)), zap.Error(err))
			vectors = make([][]float32, len(batch))
			for i := range batch {
				vec, err := b.embedder.Embed(ctx, texts[i])
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					if err := b.recordFailure(ctx, batch[i], nodes[batch[i].Ref()], err); err != nil {
						return err
					}
					continue
				}
				vectors[i] = vec
			}
		}

		for i, e := range batch {
			if vectors[i] == nil {
				continue
			}
			if err := b.writeNode(ctx, e, texts[i], vectors[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *build) writeNode(ctx context.Context, e entities.SourceEntity, text string, vector []float32) error {
	ref := e.Ref()
	node := entities.GraphNode{
		ID:              entities.NodeID(b.worldID, ref),
		WorldID:         b.worldID,
		EntityType:      ref.Type,
		EntityID:        ref.ID,
		ContentHash:     Fingerprint(e),
		Embedding:       vector,
		SemanticSummary: b.summarize(ctx, e, text),
	}
	created, err := b.graph.UpsertNode(ctx, &node)
	if err != nil {
		return fmt.Errorf("saving node for %s: %w", ref, err)
	}
	if created {
		b.report.NodesCreated++
	} else {
		b.report.NodesUpdated++
	}
	b.embedded = append(b.embedded, node)
	return nil
}

// recordFailure isolates an entity whose embedding failed. A new entity is
// still projected, without embedding and with an empty hash so the next
// build retries it. An existing node keeps its previous content.
func (b *build) recordFailure(ctx context.Context, e entities.SourceEntity, existing *entities.GraphNode, cause error) error {
	ref := e.Ref()
	b.report.FailedEntities = append(b.report.FailedEntities, ref)
	b.failures = append(b.failures, fmt.Sprintf("%s: %v", ref, cause))
	b.logger.Warn("embedding failed", zap.String("entity", ref.String()), zap.Error(cause))

	if existing != nil {
		return nil
	}
	node := entities.GraphNode{
		ID:              entities.NodeID(b.worldID, ref),
		WorldID:         b.worldID,
		EntityType:      ref.Type,
		EntityID:        ref.ID,
		SemanticSummary: ExtractiveSummary(e),
	}
	if _, err := b.graph.UpsertNode(ctx, &node); err != nil {
		return fmt.Errorf("saving placeholder node for %s: %w", ref, err)
	}
	b.report.NodesCreated++
	return nil
}

func (b *build) summarize(ctx context.Context, e entities.SourceEntity, text string) string {
	if b.summarizer == nil {
		return ExtractiveSummary(e)
	}
	summary, err := b.summarizer.Summarize(ctx, e.Ref(), text)
	if err != nil || strings.TrimSpace(summary) == "" {
		if err != nil {
			b.logger.Debug("summarizer failed, using extractive summary",
				zap.String("entity", e.Ref().String()), zap.Error(err))
		}
		return ExtractiveSummary(e)
	}
	return strings.TrimSpace(summary)
}

// syncStructuralEdges re-derives every structural edge of the world and
// applies the difference against the stored set.
func (b *build) syncStructuralEdges(ctx context.Context, sources []entities.SourceEntity, nodes []entities.GraphNode) error {
	byRef := make(map[entities.EntityRef]*entities.GraphNode, len(nodes))
	for i := range nodes {
		byRef[nodes[i].Ref()] = &nodes[i]
	}

	desired, dangling := deriveStructuralEdges(b.worldID, sources, byRef)
	for _, d := range dangling {
		b.logger.Warn("skipping relationship to missing entity", zap.String("relationship", d))
	}

	stored, err := b.graph.ListEdges(ctx, b.worldID, entities.StructuralRelationshipTypes)
	if err != nil {
		return fmt.Errorf("listing structural edges: %w", err)
	}
	return b.applyEdgeDiff(ctx, desired, stored)
}

// syncSemanticEdges recomputes similarity edges touching re-embedded nodes.
func (b *build) syncSemanticEdges(ctx context.Context, nodes []entities.GraphNode) error {
	if len(b.embedded) == 0 {
		return nil
	}

	changed := make([]string, len(b.embedded))
	for i, n := range b.embedded {
		changed[i] = n.ID
	}

	desired := make(map[entities.EdgeKey]entities.GraphEdge)
	for _, src := range b.embedded {
		for i := range nodes {
			other := &nodes[i]
			if other.ID == src.ID || !other.HasEmbedding() {
				continue
			}
			if b.opts.SameTypeOnly && other.EntityType != src.EntityType {
				continue
			}
			sim := CosineSimilarity(src.Embedding, other.Embedding)
			if sim < b.opts.SimilarityThreshold || sim <= 0 {
				continue
			}
			edge := entities.NewEdge(b.worldID, src.ID, other.ID, entities.RelationSemanticSimilar, sim, nil)
			desired[edge.Key()] = edge
		}
	}

	stored, err := b.graph.ListEdgesForNodes(ctx, b.worldID, changed,
		[]entities.RelationshipType{entities.RelationSemanticSimilar})
	if err != nil {
		return fmt.Errorf("listing semantic edges: %w", err)
	}
	return b.applyEdgeDiff(ctx, desired, stored)
}

// applyEdgeDiff inserts missing edges, rewrites changed ones and deletes
// stored edges that are no longer desired.
func (b *build) applyEdgeDiff(ctx context.Context, desired map[entities.EdgeKey]entities.GraphEdge, stored []entities.GraphEdge) error {
	have := make(map[entities.EdgeKey]entities.GraphEdge, len(stored))
	for _, e := range stored {
		have[e.Key()] = e
	}

	for _, key := range sortedEdgeKeys(desired) {
		edge := desired[key]
		if old, ok := have[key]; ok && !edgeChanged(old, edge) {
			continue
		}
		created, err := b.graph.UpsertEdge(ctx, &edge)
		if err != nil {
			return fmt.Errorf("saving %s edge: %w", edge.RelationshipType, err)
		}
		if created {
			b.report.EdgesCreated++
		}
	}

	for key, old := range have {
		if _, ok := desired[key]; ok {
			continue
		}
		removed, err := b.graph.DeleteEdge(ctx, old.ID)
		if err != nil {
			return fmt.Errorf("removing %s edge: %w", old.RelationshipType, err)
		}
		if removed {
			b.report.EdgesRemoved++
		}
	}
	return nil
}

func (b *build) scoreImportance(ctx context.Context) error {
	nodes, err := b.graph.ListNodes(ctx, b.worldID, nil)
	if err != nil {
		return fmt.Errorf("listing nodes: %w", err)
	}
	edges, err := b.graph.ListEdges(ctx, b.worldID, nil)
	if err != nil {
		return fmt.Errorf("listing edges: %w", err)
	}
	scores := ComputeImportance(nodes, edges, b.opts.Importance)
	updated, err := b.graph.UpdateImportance(ctx, b.worldID, scores)
	if err != nil {
		return fmt.Errorf("updating importance: %w", err)
	}
	b.logger.Debug("importance scored", zap.Int("nodes", len(nodes)), zap.Int("updated", updated))
	return nil
}

// mirror copies this run's node changes into the vector index. The graph
// store stays authoritative, so failures are logged and ignored.
func (b *build) mirror(ctx context.Context) {
	if b.index == nil {
		return
	}
	if len(b.removed) > 0 {
		if err := b.index.DeleteNodes(ctx, b.removed); err != nil {
			b.logger.Warn("removing nodes from vector index failed", zap.Error(err))
		}
	}
	if len(b.embedded) > 0 {
		if err := b.index.UpsertNodes(ctx, b.embedded); err != nil {
			b.logger.Warn("mirroring nodes to vector index failed", zap.Error(err))
		}
	}
}

func (b *build) audit(ctx context.Context) {
	r := b.report
	err := b.graph.LogAction(ctx, b.worldID, entities.ActionBuildGraph, map[string]any{
		"full_rebuild":    r.FullRebuild,
		"nodes_created":   r.NodesCreated,
		"nodes_updated":   r.NodesUpdated,
		"nodes_removed":   r.NodesRemoved,
		"edges_created":   r.EdgesCreated,
		"edges_removed":   r.EdgesRemoved,
		"failed_entities": len(r.FailedEntities),
	})
	if err != nil {
		b.logger.Warn("writing audit entry failed", zap.Error(err))
	}
}

// finish releases the build flag and records the outcome. It runs on every
// exit path with a context that is not cancelled with the build.
func (b *build) finish(ctx context.Context, runErr error) {
	outcome := entities.SyncOutcome{
		FullRebuild: b.report.FullRebuild,
		Completed:   runErr == nil,
		LastError:   b.lastError(runErr),
	}

	var err error
	if outcome.NodeCount, err = b.graph.CountNodes(ctx, b.worldID); err != nil {
		b.logger.Error("counting nodes failed", zap.Error(err))
	}
	if outcome.EdgeCount, err = b.graph.CountEdges(ctx, b.worldID); err != nil {
		b.logger.Error("counting edges failed", zap.Error(err))
	}
	released, err := b.graph.FinishSync(ctx, b.worldID, b.token, outcome)
	if err != nil {
		b.logger.Error("releasing sync flag failed", zap.Error(err))
	} else if !released {
		b.logger.Warn("sync flag owned by another build, outcome not recorded")
	}

	fields := []zap.Field{
		zap.Int("nodes_created", b.report.NodesCreated),
		zap.Int("nodes_updated", b.report.NodesUpdated),
		zap.Int("nodes_removed", b.report.NodesRemoved),
		zap.Int("edges_created", b.report.EdgesCreated),
		zap.Int("edges_removed", b.report.EdgesRemoved),
		zap.Int("failed_entities", len(b.report.FailedEntities)),
		zap.Duration("duration", b.report.Duration),
	}
	switch {
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		b.logger.Warn("graph build cancelled", append(fields, zap.Error(runErr))...)
	case runErr != nil:
		b.logger.Error("graph build failed", append(fields, zap.Error(runErr))...)
	default:
		b.logger.Info("graph build finished", fields...)
	}
}

func (b *build) lastError(runErr error) string {
	if runErr != nil {
		return runErr.Error()
	}
	if len(b.failures) == 0 {
		return ""
	}
	samples := b.failures
	if len(samples) > maxErrorSamples {
		samples = samples[:maxErrorSamples]
	}
	msg := fmt.Sprintf("%d entities failed to embed: %s", len(b.failures), strings.Join(samples, "; "))
	if len(b.failures) > maxErrorSamples {
		msg += "; ..."
	}
	return msg
}
