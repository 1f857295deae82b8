package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ersonp/lore-graph/internal/domain/entities"
)

// defaultAuditLimit caps audit queries that pass no limit.
const defaultAuditLimit = 50

// LogAction logs an action to the audit log.
func (r *Repository) LogAction(ctx context.Context, worldID, action string, details map[string]any) error {
	var detailsJSON sql.NullString
	if details != nil {
		data, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("marshaling details: %w", err)
		}
		detailsJSON = sql.NullString{String: string(data), Valid: true}
	}

	query := `INSERT INTO audit_log (world_id, action, details, created_at) VALUES (?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, worldID, action, detailsJSON, timeNow())
	if err != nil {
		return fmt.Errorf("logging action: %w", err)
	}
	return nil
}

// FindAuditLog returns a world's most recent audit entries, newest first.
func (r *Repository) FindAuditLog(ctx context.Context, worldID string, limit int) ([]entities.AuditEntry, error) {
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	query := `
		SELECT id, world_id, action, details, created_at
		FROM audit_log
		WHERE world_id = ?
		ORDER BY id DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, worldID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close()

	entries := make([]entities.AuditEntry, 0, limit)
	for rows.Next() {
		var entry entities.AuditEntry
		var details sql.NullString
		if err := rows.Scan(
			&entry.ID,
			&entry.WorldID,
			&entry.Action,
			&details,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}

		if details.Valid && details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &entry.Details); err != nil {
				return nil, fmt.Errorf("unmarshaling details: %w", err)
			}
		}

		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
