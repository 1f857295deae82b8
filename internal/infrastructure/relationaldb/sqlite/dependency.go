package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/ersonp/lore-graph/internal/domain/apperror"
	"github.com/ersonp/lore-graph/internal/domain/entities"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// CausedBy returns the ordered causes of an event.
func (r *Repository) CausedBy(ctx context.Context, worldID, eventID string) ([]string, error) {
	return loadCausedBy(ctx, r.db, worldID, eventID)
}

// AddDependency records "eventID caused-by causeID". Existence, world
// membership and acyclicity are checked in the same transaction as the write.
func (r *Repository) AddDependency(ctx context.Context, worldID, eventID, causeID string) (bool, error) {
	added := false
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		causes, err := loadCausedBy(ctx, tx, worldID, eventID)
		if err != nil {
			return err
		}

		var causeWorld string
		err = tx.QueryRowContext(ctx, `SELECT world_id FROM events WHERE id = ?`, causeID).Scan(&causeWorld)
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.EntityNotFound(fmt.Sprintf("event %q", causeID))
		}
		if err != nil {
			return fmt.Errorf("loading cause event: %w", err)
		}
		if causeWorld != worldID {
			return apperror.InconsistentWorld(fmt.Sprintf("event %q", causeID), worldID, causeWorld)
		}

		if eventID == causeID {
			return apperror.CycleDetected(eventID, causeID)
		}
		if slices.Contains(causes, causeID) {
			return nil
		}

		graph, err := loadDependencyGraph(ctx, tx, worldID)
		if err != nil {
			return err
		}
		if graph.WouldCycle(eventID, causeID) {
			return apperror.CycleDetected(eventID, causeID)
		}

		if err := saveCausedBy(ctx, tx, eventID, append(causes, causeID)); err != nil {
			return err
		}
		added = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return added, nil
}

// RemoveDependency removes causeID from the event's caused-by list.
func (r *Repository) RemoveDependency(ctx context.Context, worldID, eventID, causeID string) (bool, error) {
	removed := false
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		causes, err := loadCausedBy(ctx, tx, worldID, eventID)
		if err != nil {
			return err
		}
		idx := slices.Index(causes, causeID)
		if idx < 0 {
			return nil
		}
		if err := saveCausedBy(ctx, tx, eventID, slices.Delete(causes, idx, idx+1)); err != nil {
			return err
		}
		removed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

func loadCausedBy(ctx context.Context, q queryer, worldID, eventID string) ([]string, error) {
	var eventWorld, raw string
	err := q.QueryRowContext(ctx, `SELECT world_id, caused_by FROM events WHERE id = ?`, eventID).Scan(&eventWorld, &raw)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && eventWorld != worldID) {
		return nil, apperror.EntityNotFound(fmt.Sprintf("event %q in world %q", eventID, worldID))
	}
	if err != nil {
		return nil, fmt.Errorf("loading event: %w", err)
	}
	return decodeIDs[string](raw)
}

func loadDependencyGraph(ctx context.Context, q queryer, worldID string) (entities.DependencyGraph, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, caused_by FROM events WHERE world_id = ?`, worldID)
	if err != nil {
		return nil, fmt.Errorf("querying dependencies: %w", err)
	}
	defer rows.Close()

	graph := make(entities.DependencyGraph)
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scanning dependency: %w", err)
		}
		causes, err := decodeIDs[string](raw)
		if err != nil {
			return nil, err
		}
		if len(causes) > 0 {
			graph[id] = causes
		}
	}
	return graph, rows.Err()
}

func saveCausedBy(ctx context.Context, tx *sql.Tx, eventID string, causes []string) error {
	raw, err := encodeIDs(causes)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `UPDATE events SET caused_by = ?, updated_at = ? WHERE id = ?`, raw, timeNow(), eventID)
	if err != nil {
		return fmt.Errorf("saving caused_by: %w", err)
	}
	return nil
}
