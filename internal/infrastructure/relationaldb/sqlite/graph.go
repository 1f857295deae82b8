package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/ersonp/lore-graph/internal/domain/apperror"
	"github.com/ersonp/lore-graph/internal/domain/entities"
)

// importanceEpsilon is the smallest importance change worth writing.
const importanceEpsilon = 1e-9

const nodeColumns = `id, world_id, entity_type, entity_id, content_hash, embedding,
	semantic_summary, importance_score, created_at, updated_at`

const edgeColumns = `id, world_id, source_node_id, target_node_id, relationship_type,
	strength, metadata, created_at`

// UpsertNode inserts a node or rewrites its content fields.
// Importance is left to UpdateImportance.
func (r *Repository) UpsertNode(ctx context.Context, node *entities.GraphNode) (bool, error) {
	if node.ID == "" {
		node.ID = entities.NodeID(node.WorldID, node.Ref())
	}
	now := timeNow()
	if node.CreatedAt.IsZero() {
		node.CreatedAt = now
	}
	node.UpdatedAt = now

	created := false
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM graph_nodes WHERE world_id = ? AND entity_type = ? AND entity_id = ?`,
			node.WorldID, string(node.EntityType), node.EntityID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("checking node: %w", err)
		}
		created = exists == 0

		query := `
			INSERT INTO graph_nodes (id, world_id, entity_type, entity_id, content_hash, embedding,
				semantic_summary, importance_score, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(world_id, entity_type, entity_id) DO UPDATE SET
				content_hash = excluded.content_hash,
				embedding = excluded.embedding,
				semantic_summary = excluded.semantic_summary,
				updated_at = excluded.updated_at
		`
		_, err = tx.ExecContext(ctx, query,
			node.ID,
			node.WorldID,
			string(node.EntityType),
			node.EntityID,
			node.ContentHash,
			encodeEmbedding(node.Embedding),
			node.SemanticSummary,
			node.ImportanceScore,
			node.CreatedAt,
			node.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("saving node: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// FindNode returns the node projecting ref, or nil if there is none.
func (r *Repository) FindNode(ctx context.Context, worldID string, ref entities.EntityRef) (*entities.GraphNode, error) {
	query := `SELECT ` + nodeColumns + ` FROM graph_nodes
		WHERE world_id = ? AND entity_type = ? AND entity_id = ?`
	nodes, err := r.queryNodes(ctx, query, worldID, string(ref.Type), ref.ID)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, nil
	}
	return &nodes[0], nil
}

// FindNodesByIDs returns the world's nodes with the given IDs, ordered by ID.
func (r *Repository) FindNodesByIDs(ctx context.Context, worldID string, ids []string) ([]entities.GraphNode, error) {
	result := make([]entities.GraphNode, 0, len(ids))
	for _, part := range chunk(ids, maxInClause) {
		marks, args := placeholders(part)
		query := fmt.Sprintf(`SELECT %s FROM graph_nodes WHERE world_id = ? AND id IN (%s)`, nodeColumns, marks)
		nodes, err := r.queryNodes(ctx, query, append([]any{worldID}, args...)...)
		if err != nil {
			return nil, err
		}
		result = append(result, nodes...)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// ListNodes returns a world's nodes ordered by ID.
func (r *Repository) ListNodes(ctx context.Context, worldID string, types []entities.EntityType) ([]entities.GraphNode, error) {
	query := `SELECT ` + nodeColumns + ` FROM graph_nodes WHERE world_id = ?`
	args := []any{worldID}
	if len(types) > 0 {
		marks, typeArgs := placeholders(types)
		query += fmt.Sprintf(` AND entity_type IN (%s)`, marks)
		args = append(args, typeArgs...)
	}
	query += ` ORDER BY id`
	return r.queryNodes(ctx, query, args...)
}

// DeleteNode removes a node; its edges cascade.
func (r *Repository) DeleteNode(ctx context.Context, nodeID string) (int, error) {
	var edges int
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM graph_edges WHERE source_node_id = ? OR target_node_id = ?`,
			nodeID, nodeID,
		).Scan(&edges)
		if err != nil {
			return fmt.Errorf("counting node edges: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM graph_nodes WHERE id = ?`, nodeID); err != nil {
			return fmt.Errorf("deleting node: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return edges, nil
}

// UpdateImportance writes the scores that moved by more than importanceEpsilon.
func (r *Repository) UpdateImportance(ctx context.Context, worldID string, scores map[string]float64) (int, error) {
	if len(scores) == 0 {
		return 0, nil
	}
	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	updated := 0
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			UPDATE graph_nodes SET importance_score = ?
			WHERE id = ? AND world_id = ? AND abs(importance_score - ?) > ?
		`)
		if err != nil {
			return fmt.Errorf("preparing importance update: %w", err)
		}
		defer stmt.Close()

		for _, id := range ids {
			score := scores[id]
			res, err := stmt.ExecContext(ctx, score, id, worldID, score, importanceEpsilon)
			if err != nil {
				return fmt.Errorf("updating importance: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("reading rows affected: %w", err)
			}
			updated += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

// CountNodes returns the number of nodes in a world.
func (r *Repository) CountNodes(ctx context.Context, worldID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM graph_nodes WHERE world_id = ?`, worldID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting nodes: %w", err)
	}
	return count, nil
}

// UpsertEdge inserts or updates an edge after checking both endpoints belong
// to the edge's world.
func (r *Repository) UpsertEdge(ctx context.Context, edge *entities.GraphEdge) (bool, error) {
	if edge.ID == "" {
		edge.ID = entities.EdgeID(edge.Key())
	}
	if edge.CreatedAt.IsZero() {
		edge.CreatedAt = timeNow()
	}

	var metadata sql.NullString
	if len(edge.Metadata) > 0 {
		data, err := json.Marshal(edge.Metadata)
		if err != nil {
			return false, fmt.Errorf("marshaling edge metadata: %w", err)
		}
		metadata = sql.NullString{String: string(data), Valid: true}
	}

	created := false
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		for _, nodeID := range []string{edge.SourceNodeID, edge.TargetNodeID} {
			var worldID string
			err := tx.QueryRowContext(ctx, `SELECT world_id FROM graph_nodes WHERE id = ?`, nodeID).Scan(&worldID)
			if errors.Is(err, sql.ErrNoRows) {
				return apperror.EntityNotFound(fmt.Sprintf("node %s", nodeID))
			}
			if err != nil {
				return fmt.Errorf("checking edge endpoint: %w", err)
			}
			if worldID != edge.WorldID {
				return apperror.InconsistentWorld("node "+nodeID, edge.WorldID, worldID)
			}
		}

		var exists int
		err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM graph_edges
			WHERE source_node_id = ? AND target_node_id = ? AND relationship_type = ?
		`, edge.SourceNodeID, edge.TargetNodeID, string(edge.RelationshipType)).Scan(&exists)
		if err != nil {
			return fmt.Errorf("checking edge: %w", err)
		}
		created = exists == 0

		query := `
			INSERT INTO graph_edges (id, world_id, source_node_id, target_node_id,
				relationship_type, strength, metadata, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(source_node_id, target_node_id, relationship_type) DO UPDATE SET
				strength = excluded.strength,
				metadata = excluded.metadata
		`
		_, err = tx.ExecContext(ctx, query,
			edge.ID,
			edge.WorldID,
			edge.SourceNodeID,
			edge.TargetNodeID,
			string(edge.RelationshipType),
			edge.Strength,
			metadata,
			edge.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("saving edge: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// DeleteEdge removes an edge by ID.
func (r *Repository) DeleteEdge(ctx context.Context, edgeID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM graph_edges WHERE id = ?`, edgeID)
	if err != nil {
		return false, fmt.Errorf("deleting edge: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading rows affected: %w", err)
	}
	return n > 0, nil
}

// ListEdges returns a world's edges ordered by ID.
func (r *Repository) ListEdges(ctx context.Context, worldID string, types []entities.RelationshipType) ([]entities.GraphEdge, error) {
	query := `SELECT ` + edgeColumns + ` FROM graph_edges WHERE world_id = ?`
	args := []any{worldID}
	if len(types) > 0 {
		marks, typeArgs := placeholders(types)
		query += fmt.Sprintf(` AND relationship_type IN (%s)`, marks)
		args = append(args, typeArgs...)
	}
	query += ` ORDER BY id`
	return r.queryEdges(ctx, query, args...)
}

// ListEdgesForNodes returns the world's edges with either endpoint in nodeIDs,
// ordered by ID.
func (r *Repository) ListEdgesForNodes(ctx context.Context, worldID string, nodeIDs []string, types []entities.RelationshipType) ([]entities.GraphEdge, error) {
	seen := make(map[string]bool)
	var result []entities.GraphEdge
	for _, part := range chunk(nodeIDs, maxInClause) {
		marks, idArgs := placeholders(part)
		query := fmt.Sprintf(`SELECT %s FROM graph_edges
			WHERE world_id = ? AND (source_node_id IN (%s) OR target_node_id IN (%s))`,
			edgeColumns, marks, marks)
		args := append([]any{worldID}, idArgs...)
		args = append(args, idArgs...)
		if len(types) > 0 {
			typeMarks, typeArgs := placeholders(types)
			query += fmt.Sprintf(` AND relationship_type IN (%s)`, typeMarks)
			args = append(args, typeArgs...)
		}

		edges, err := r.queryEdges(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			if !seen[e.ID] {
				seen[e.ID] = true
				result = append(result, e)
			}
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// CountEdges returns the number of edges in a world.
func (r *Repository) CountEdges(ctx context.Context, worldID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM graph_edges WHERE world_id = ?`, worldID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting edges: %w", err)
	}
	return count, nil
}

// ClearWorldGraph deletes a world's nodes and edges, keeping its status row.
func (r *Repository) ClearWorldGraph(ctx context.Context, worldID string) (int, int, error) {
	var nodes, edges int
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM graph_edges WHERE world_id = ?`, worldID)
		if err != nil {
			return fmt.Errorf("deleting edges: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("reading rows affected: %w", err)
		}
		edges = int(n)

		res, err = tx.ExecContext(ctx, `DELETE FROM graph_nodes WHERE world_id = ?`, worldID)
		if err != nil {
			return fmt.Errorf("deleting nodes: %w", err)
		}
		n, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("reading rows affected: %w", err)
		}
		nodes = int(n)
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return nodes, edges, nil
}

// DeleteWorld removes every graph row of a world.
func (r *Repository) DeleteWorld(ctx context.Context, worldID string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		stmts := []struct {
			query string
			what  string
		}{
			{`DELETE FROM graph_nodes WHERE world_id = ?`, "deleting nodes"},
			{`DELETE FROM graph_edges WHERE world_id = ?`, "deleting edges"},
			{`DELETE FROM graph_sync_status WHERE world_id = ?`, "deleting sync status"},
			{`DELETE FROM audit_log WHERE world_id = ?`, "deleting audit log"},
		}
		for _, s := range stmts {
			if _, err := tx.ExecContext(ctx, s.query, worldID); err != nil {
				return fmt.Errorf("%s: %w", s.what, err)
			}
		}
		return nil
	})
}

// queryNodes is a helper to execute node queries.
func (r *Repository) queryNodes(ctx context.Context, query string, args ...any) ([]entities.GraphNode, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying nodes: %w", err)
	}
	defer rows.Close()

	nodes := make([]entities.GraphNode, 0, 16)
	for rows.Next() {
		var node entities.GraphNode
		var entityType string
		var embedding []byte
		if err := rows.Scan(
			&node.ID,
			&node.WorldID,
			&entityType,
			&node.EntityID,
			&node.ContentHash,
			&embedding,
			&node.SemanticSummary,
			&node.ImportanceScore,
			&node.CreatedAt,
			&node.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning node: %w", err)
		}
		node.EntityType = entities.EntityType(entityType)
		node.Embedding, err = decodeEmbedding(embedding)
		if err != nil {
			return nil, fmt.Errorf("decoding node %s: %w", node.ID, err)
		}
		nodes = append(nodes, node)
	}
	return nodes, rows.Err()
}

// queryEdges is a helper to execute edge queries.
func (r *Repository) queryEdges(ctx context.Context, query string, args ...any) ([]entities.GraphEdge, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying edges: %w", err)
	}
	defer rows.Close()

	edges := make([]entities.GraphEdge, 0, 16)
	for rows.Next() {
		var edge entities.GraphEdge
		var relType string
		var metadata sql.NullString
		if err := rows.Scan(
			&edge.ID,
			&edge.WorldID,
			&edge.SourceNodeID,
			&edge.TargetNodeID,
			&relType,
			&edge.Strength,
			&metadata,
			&edge.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning edge: %w", err)
		}
		edge.RelationshipType = entities.RelationshipType(relType)
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &edge.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshaling edge metadata: %w", err)
			}
		}
		edges = append(edges, edge)
	}
	return edges, rows.Err()
}
