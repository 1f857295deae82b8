package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ersonp/lore-graph/internal/domain/apperror"
	"github.com/ersonp/lore-graph/internal/domain/entities"
	"github.com/ersonp/lore-graph/internal/domain/ports"
	"github.com/ersonp/lore-graph/internal/infrastructure/parsers"
)

// ImportOptions controls import behavior.
type ImportOptions struct {
	DryRun bool // Validate without saving
}

// ImportError represents an error for a specific entity during import.
type ImportError struct {
	Entity  entities.EntityRef
	Field   string // Which field has the error
	Message string // Human-readable error message
}

func (e ImportError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Entity, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Entity, e.Message)
}

// ImportResult contains the result of an import operation.
type ImportResult struct {
	Imported     int
	Dependencies int
	Errors       []ImportError
}

// ImportService loads world files into the source entity store. Causal
// links are applied through the dependency store so imports cannot create
// cycles.
type ImportService struct {
	writer ports.SourceWriter
	deps   ports.DependencyStore
	audit  ports.AuditLog
	logger *zap.Logger
}

// NewImportService creates a new import service.
func NewImportService(writer ports.SourceWriter, deps ports.DependencyStore, audit ports.AuditLog, logger *zap.Logger) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportService{
		writer: writer,
		deps:   deps,
		audit:  audit,
		logger: logger.Named("import"),
	}
}

// Import validates a world file and saves its entities into worldID.
// Entities that fail validation are reported and skipped.
func (s *ImportService) Import(ctx context.Context, worldID string, file *parsers.WorldFile, opts ImportOptions) (*ImportResult, error) {
	if worldID == "" {
		return nil, apperror.InvalidArgument("world id is required")
	}
	result := &ImportResult{}

	items, causes := s.collect(worldID, file, result)
	if opts.DryRun {
		result.Imported = len(items)
		for _, c := range causes {
			result.Dependencies += len(c.causes)
		}
		return result, nil
	}

	for _, item := range items {
		if err := item.save(ctx); err != nil {
			return nil, fmt.Errorf("saving %s: %w", item.ref, err)
		}
		result.Imported++
	}

	for _, c := range causes {
		for _, cause := range c.causes {
			added, err := s.deps.AddDependency(ctx, worldID, string(c.event), string(cause))
			switch apperror.CodeOf(err) {
			case "":
				if err != nil {
					return nil, fmt.Errorf("adding dependency %s <- %s: %w", c.event, cause, err)
				}
				if added {
					result.Dependencies++
				}
			case apperror.CodeCycleDetected, apperror.CodeEntityNotFound, apperror.CodeInconsistentWorld:
				result.Errors = append(result.Errors, ImportError{
					Entity:  c.event.Ref(),
					Field:   "caused_by",
					Message: err.Error(),
				})
			default:
				return nil, fmt.Errorf("adding dependency %s <- %s: %w", c.event, cause, err)
			}
		}
	}

	err := s.audit.LogAction(ctx, worldID, entities.ActionImport, map[string]any{
		"imported":     result.Imported,
		"dependencies": result.Dependencies,
		"errors":       len(result.Errors),
	})
	if err != nil {
		s.logger.Warn("writing audit entry failed", zap.Error(err))
	}

	return result, nil
}

// importItem is a validated entity ready to save.
type importItem struct {
	ref  entities.EntityRef
	save func(ctx context.Context) error
}

// eventCauses holds the caused-by list of an imported event, applied after
// every entity is saved.
type eventCauses struct {
	event  entities.EventID
	causes []entities.EventID
}

// collect validates every entity and returns them in save order.
func (s *ImportService) collect(worldID string, file *parsers.WorldFile, result *ImportResult) ([]importItem, []eventCauses) {
	var items []importItem
	var causes []eventCauses

	check := func(ref entities.EntityRef, world *string, required map[string]string) bool {
		if ref.ID == "" {
			result.Errors = append(result.Errors, ImportError{Entity: ref, Field: "id", Message: "missing required field: id"})
			return false
		}
		if *world != "" && *world != worldID {
			result.Errors = append(result.Errors, ImportError{
				Entity:  ref,
				Field:   "world_id",
				Message: fmt.Sprintf("belongs to world %q, importing into %q", *world, worldID),
			})
			return false
		}
		for field, value := range required {
			if value == "" {
				result.Errors = append(result.Errors, ImportError{Entity: ref, Field: field, Message: "missing required field: " + field})
				return false
			}
		}
		*world = worldID
		return true
	}

	for i := range file.Locations {
		l := &file.Locations[i]
		if check(l.Ref(), &l.WorldID, map[string]string{"name": l.Name}) {
			items = append(items, importItem{ref: l.Ref(), save: func(ctx context.Context) error { return s.writer.SaveLocation(ctx, l) }})
		}
	}
	for i := range file.Characters {
		c := &file.Characters[i]
		if check(c.Ref(), &c.WorldID, map[string]string{"name": c.Name}) {
			items = append(items, importItem{ref: c.Ref(), save: func(ctx context.Context) error { return s.writer.SaveCharacter(ctx, c) }})
		}
	}
	for i := range file.Stories {
		st := &file.Stories[i]
		if check(st.Ref(), &st.WorldID, map[string]string{"title": st.Title}) {
			items = append(items, importItem{ref: st.Ref(), save: func(ctx context.Context) error { return s.writer.SaveStory(ctx, st) }})
		}
	}
	for i := range file.Events {
		e := &file.Events[i]
		if !check(e.Ref(), &e.WorldID, map[string]string{"name": e.Name}) {
			continue
		}
		if len(e.CausedBy) > 0 {
			causes = append(causes, eventCauses{event: e.ID, causes: e.CausedBy})
		}
		event := *e
		event.CausedBy = nil
		items = append(items, importItem{ref: e.Ref(), save: func(ctx context.Context) error { return s.writer.SaveEvent(ctx, &event) }})
	}
	for i := range file.Beats {
		b := &file.Beats[i]
		if check(b.Ref(), &b.WorldID, map[string]string{"content": b.Content}) {
			items = append(items, importItem{ref: b.Ref(), save: func(ctx context.Context) error { return s.writer.SaveBeat(ctx, b) }})
		}
	}

	return items, causes
}
