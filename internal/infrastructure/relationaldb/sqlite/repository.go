// Package sqlite provides the SQLite implementation of the graph store, the
// event dependency store and the source entity repositories.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/ersonp/lore-graph/internal/infrastructure/config"
)

// timeNow returns the current time (can be mocked in tests).
var timeNow = func() time.Time { return time.Now().UTC() }

// maxInClause bounds the number of placeholders per IN (...) query.
const maxInClause = 500

// Repository implements ports.GraphDB, ports.DependencyStore,
// ports.EntitySource and ports.SourceWriter using SQLite.
type Repository struct {
	db   *sql.DB
	path string
}

// NewRepository creates a new SQLite repository.
func NewRepository(cfg config.SQLiteConfig) (*Repository, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite path is required")
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// A single connection serializes writers and keeps :memory: databases whole.
	db.SetMaxOpenConns(1)

	pragmas := []struct {
		stmt string
		what string
	}{
		{"PRAGMA foreign_keys = ON", "enabling foreign keys"},
		{"PRAGMA journal_mode = WAL", "enabling WAL mode"},
		{"PRAGMA busy_timeout = 5000", "setting busy timeout"},
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p.stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", p.what, err)
		}
	}

	return &Repository{
		db:   db,
		path: cfg.Path,
	}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Path returns the database file path.
func (r *Repository) Path() string {
	return r.path
}

// EnsureSchema creates the database schema if it doesn't exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	schema := `
	-- Source entities
	CREATE TABLE IF NOT EXISTS characters (
		id TEXT PRIMARY KEY,
		world_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT '',
		backstory TEXT NOT NULL DEFAULT '',
		location_id TEXT NOT NULL DEFAULT '',
		known_ids TEXT NOT NULL DEFAULT '[]',
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_characters_world ON characters(world_id);

	CREATE TABLE IF NOT EXISTS locations (
		id TEXT PRIMARY KEY,
		world_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		significance TEXT NOT NULL DEFAULT '',
		parent_id TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_locations_world ON locations(world_id);

	-- caused_by is the authoritative ordered list of causing event IDs
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		world_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		significance TEXT NOT NULL DEFAULT '',
		story_time TEXT NOT NULL DEFAULT '',
		location_id TEXT NOT NULL DEFAULT '',
		participant_ids TEXT NOT NULL DEFAULT '[]',
		caused_by TEXT NOT NULL DEFAULT '[]',
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_events_world ON events(world_id);

	CREATE TABLE IF NOT EXISTS stories (
		id TEXT PRIMARY KEY,
		world_id TEXT NOT NULL,
		title TEXT NOT NULL,
		summary TEXT NOT NULL DEFAULT '',
		genre TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_stories_world ON stories(world_id);

	CREATE TABLE IF NOT EXISTS beats (
		id TEXT PRIMARY KEY,
		world_id TEXT NOT NULL,
		story_id TEXT NOT NULL DEFAULT '',
		sequence INTEGER NOT NULL DEFAULT 0,
		title TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		location_id TEXT NOT NULL DEFAULT '',
		character_ids TEXT NOT NULL DEFAULT '[]',
		event_ids TEXT NOT NULL DEFAULT '[]',
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_beats_world ON beats(world_id);
	CREATE INDEX IF NOT EXISTS idx_beats_story ON beats(story_id, sequence);

	-- World graph
	CREATE TABLE IF NOT EXISTS graph_nodes (
		id TEXT PRIMARY KEY,
		world_id TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		content_hash TEXT NOT NULL DEFAULT '',
		embedding BLOB,
		semantic_summary TEXT NOT NULL DEFAULT '',
		importance_score REAL NOT NULL DEFAULT 0 CHECK (importance_score >= 0),
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(world_id, entity_type, entity_id)
	);
	CREATE INDEX IF NOT EXISTS idx_graph_nodes_world ON graph_nodes(world_id, entity_type);

	CREATE TABLE IF NOT EXISTS graph_edges (
		id TEXT PRIMARY KEY,
		world_id TEXT NOT NULL,
		source_node_id TEXT NOT NULL REFERENCES graph_nodes(id) ON DELETE CASCADE,
		target_node_id TEXT NOT NULL REFERENCES graph_nodes(id) ON DELETE CASCADE,
		relationship_type TEXT NOT NULL,
		strength REAL NOT NULL DEFAULT 1 CHECK (strength >= 0 AND strength <= 1),
		metadata TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(source_node_id, target_node_id, relationship_type)
	);
	CREATE INDEX IF NOT EXISTS idx_graph_edges_world ON graph_edges(world_id, relationship_type);
	CREATE INDEX IF NOT EXISTS idx_graph_edges_source ON graph_edges(source_node_id);
	CREATE INDEX IF NOT EXISTS idx_graph_edges_target ON graph_edges(target_node_id);

	-- sync_started_at is unix milliseconds so stale checks compare numerically;
	-- it is renewed by the running build. sync_token identifies that build.
	CREATE TABLE IF NOT EXISTS graph_sync_status (
		world_id TEXT PRIMARY KEY,
		last_full_sync TIMESTAMP,
		last_incremental_sync TIMESTAMP,
		node_count INTEGER NOT NULL DEFAULT 0,
		edge_count INTEGER NOT NULL DEFAULT 0,
		sync_in_progress INTEGER NOT NULL DEFAULT 0,
		sync_started_at INTEGER,
		sync_token TEXT,
		last_error TEXT
	);

	-- Audit log (tracks graph actions)
	CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		world_id TEXT NOT NULL,
		action TEXT NOT NULL,
		details TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_audit_log_world ON audit_log(world_id, id);
	CREATE INDEX IF NOT EXISTS idx_audit_log_action ON audit_log(action);
	`

	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return r.ensureColumn(ctx, "graph_sync_status", "sync_token", "TEXT")
}

// ensureColumn adds a column missing from a table created by an older schema.
func (r *Repository) ensureColumn(ctx context.Context, table, column, decl string) error {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("inspecting %s: %w", table, err)
	}
	if count > 0 {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, table, column, decl)); err != nil {
		return fmt.Errorf("adding %s.%s: %w", table, column, err)
	}
	return nil
}

// withTx runs fn inside a transaction, rolling back on error.
// fn must only use tx; the pool has a single connection.
func (r *Repository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// placeholders returns "?,?,..." with n markers and the values as args.
func placeholders[T ~string](values []T) (string, []any) {
	marks := make([]string, len(values))
	args := make([]any, len(values))
	for i, v := range values {
		marks[i] = "?"
		args[i] = string(v)
	}
	return strings.Join(marks, ","), args
}

// chunk splits ids into slices of at most size elements.
func chunk(ids []string, size int) [][]string {
	var chunks [][]string
	for len(ids) > size {
		chunks = append(chunks, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		chunks = append(chunks, ids)
	}
	return chunks
}

// encodeEmbedding packs a vector as little-endian float32s.
func encodeEmbedding(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeEmbedding reverses encodeEmbedding.
func decodeEmbedding(buf []byte) ([]float32, error) {
	if len(buf) == 0 {
		return nil, nil
	}
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("embedding blob has %d bytes, not a multiple of 4", len(buf))
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v, nil
}

// encodeIDs stores an ID list as a JSON array.
func encodeIDs[T ~string](ids []T) (string, error) {
	if len(ids) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("marshaling id list: %w", err)
	}
	return string(data), nil
}

// decodeIDs parses a JSON array column.
func decodeIDs[T ~string](raw string) ([]T, error) {
	if raw == "" || raw == "[]" {
		return nil, nil
	}
	var ids []T
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("unmarshaling id list: %w", err)
	}
	return ids, nil
}

// nullString maps "" to NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
