package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ersonp/lore-graph/internal/domain/entities"
)

// recoveredSyncError is recorded when a stale build flag is reclaimed.
const recoveredSyncError = "previous build did not finish; its flag was reclaimed"

// TryStartSync atomically sets the world's sync_in_progress flag and records
// token as its owner. A flag not renewed within staleAfter belongs to a
// crashed build and is taken over.
func (r *Repository) TryStartSync(ctx context.Context, worldID, token string, staleAfter time.Duration) (bool, error) {
	now := timeNow()
	staleCutoff := now.Add(-staleAfter).UnixMilli()

	acquired := false
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO graph_sync_status (world_id) VALUES (?) ON CONFLICT(world_id) DO NOTHING`,
			worldID,
		)
		if err != nil {
			return fmt.Errorf("creating sync status: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE graph_sync_status SET
				last_error = CASE WHEN sync_in_progress = 1 THEN ? ELSE last_error END,
				sync_in_progress = 1,
				sync_started_at = ?,
				sync_token = ?
			WHERE world_id = ?
				AND (sync_in_progress = 0 OR sync_started_at IS NULL OR sync_started_at < ?)
		`, recoveredSyncError, now.UnixMilli(), token, worldID, staleCutoff)
		if err != nil {
			return fmt.Errorf("setting sync flag: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("reading rows affected: %w", err)
		}
		acquired = n == 1
		return nil
	})
	if err != nil {
		return false, err
	}
	return acquired, nil
}

// RenewSync refreshes sync_started_at of a flag held by token. It reports
// false once the flag belongs to someone else.
func (r *Repository) RenewSync(ctx context.Context, worldID, token string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE graph_sync_status SET sync_started_at = ?
		WHERE world_id = ? AND sync_in_progress = 1 AND sync_token = ?
	`, timeNow().UnixMilli(), worldID, token)
	if err != nil {
		return false, fmt.Errorf("renewing sync flag: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading rows affected: %w", err)
	}
	return n == 1, nil
}

// FinishSync clears the flag held by token and records the build outcome.
// Sync timestamps are only stamped for completed builds. It reports false
// and writes nothing when token no longer owns the flag.
func (r *Repository) FinishSync(ctx context.Context, worldID, token string, outcome entities.SyncOutcome) (bool, error) {
	now := timeNow()
	stampFull := outcome.Completed && outcome.FullRebuild
	stampIncremental := outcome.Completed && !outcome.FullRebuild

	query := `
		UPDATE graph_sync_status SET
			sync_in_progress = 0,
			sync_started_at = NULL,
			sync_token = NULL,
			node_count = ?,
			edge_count = ?,
			last_error = ?,
			last_full_sync = CASE WHEN ? = 1 THEN ? ELSE last_full_sync END,
			last_incremental_sync = CASE WHEN ? = 1 THEN ? ELSE last_incremental_sync END
		WHERE world_id = ? AND sync_in_progress = 1 AND sync_token = ?
	`
	res, err := r.db.ExecContext(ctx, query,
		outcome.NodeCount,
		outcome.EdgeCount,
		nullString(outcome.LastError),
		boolToInt(stampFull), now,
		boolToInt(stampIncremental), now,
		worldID, token,
	)
	if err != nil {
		return false, fmt.Errorf("finishing sync: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading rows affected: %w", err)
	}
	return n == 1, nil
}

// GetSyncStatus returns the world's status row. A world that was never built
// gets a zero status. A flag not renewed within staleAfter is cleared before
// reading.
func (r *Repository) GetSyncStatus(ctx context.Context, worldID string, staleAfter time.Duration) (*entities.SyncStatus, error) {
	staleCutoff := timeNow().Add(-staleAfter).UnixMilli()
	_, err := r.db.ExecContext(ctx, `
		UPDATE graph_sync_status SET
			sync_in_progress = 0,
			sync_started_at = NULL,
			sync_token = NULL,
			last_error = ?
		WHERE world_id = ? AND sync_in_progress = 1
			AND (sync_started_at IS NULL OR sync_started_at < ?)
	`, recoveredSyncError, worldID, staleCutoff)
	if err != nil {
		return nil, fmt.Errorf("recovering stale sync: %w", err)
	}

	query := `
		SELECT world_id, last_full_sync, last_incremental_sync, node_count, edge_count,
			sync_in_progress, sync_started_at, last_error
		FROM graph_sync_status
		WHERE world_id = ?
	`
	var (
		status          entities.SyncStatus
		lastFull        sql.NullTime
		lastIncremental sql.NullTime
		inProgress      int
		startedAt       sql.NullInt64
		lastError       sql.NullString
	)
	err = r.db.QueryRowContext(ctx, query, worldID).Scan(
		&status.WorldID,
		&lastFull,
		&lastIncremental,
		&status.NodeCount,
		&status.EdgeCount,
		&inProgress,
		&startedAt,
		&lastError,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return &entities.SyncStatus{WorldID: worldID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning sync status: %w", err)
	}

	if lastFull.Valid {
		t := lastFull.Time
		status.LastFullSync = &t
	}
	if lastIncremental.Valid {
		t := lastIncremental.Time
		status.LastIncrementalSync = &t
	}
	if startedAt.Valid {
		t := time.UnixMilli(startedAt.Int64).UTC()
		status.SyncStartedAt = &t
	}
	status.SyncInProgress = inProgress == 1
	status.LastError = lastError.String

	return &status, nil
}
