// Package apperror defines the graph error taxonomy shared by every layer.
package apperror

import (
	"errors"
	"fmt"
)

// Code classifies an application error.
type Code string

const (
	CodeEntityNotFound    Code = "entity_not_found"
	CodeGraphNotBuilt     Code = "graph_not_built"
	CodeSyncInProgress    Code = "sync_in_progress"
	CodeCycleDetected     Code = "cycle_detected"
	CodeEmbeddingProvider Code = "embedding_provider_error"
	CodeInconsistentWorld Code = "inconsistent_world_reference"
	CodeInvalidArgument   Code = "invalid_argument"
)

// Error is an application error carrying a code, a user-facing message and an
// optional internal cause.
type Error struct {
	Code      Code
	Message   string
	Internal  error
	Details   map[string]any
	Transient bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the internal error.
func (e *Error) Unwrap() error {
	return e.Internal
}

// Is matches any *Error with the same code, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithInternal returns a copy of the error with an internal error attached.
func (e *Error) WithInternal(err error) *Error {
	c := *e
	c.Internal = err
	return &c
}

// WithMessage returns a copy of the error with a custom message.
func (e *Error) WithMessage(format string, args ...any) *Error {
	c := *e
	c.Message = fmt.Sprintf(format, args...)
	return &c
}

// WithDetails returns a copy of the error with details attached.
func (e *Error) WithDetails(details map[string]any) *Error {
	c := *e
	c.Details = details
	return &c
}

// New creates a new application error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

var (
	ErrEntityNotFound    = New(CodeEntityNotFound, "entity not found")
	ErrGraphNotBuilt     = New(CodeGraphNotBuilt, "world graph has not been built")
	ErrSyncInProgress    = New(CodeSyncInProgress, "a graph build is already running for this world")
	ErrCycleDetected     = New(CodeCycleDetected, "dependency would create a cycle")
	ErrEmbeddingProvider = New(CodeEmbeddingProvider, "embedding provider failed")
	ErrInconsistentWorld = New(CodeInconsistentWorld, "reference spans two worlds")
	ErrInvalidArgument   = New(CodeInvalidArgument, "invalid argument")
)

// EntityNotFound reports a missing entity, node or event.
func EntityNotFound(what string) *Error {
	return ErrEntityNotFound.WithMessage("%s not found", what)
}

// GraphNotBuilt reports a query against a world or node with no graph data.
func GraphNotBuilt(worldID string) *Error {
	return ErrGraphNotBuilt.WithMessage("graph for world %q has not been built", worldID).
		WithDetails(map[string]any{"world_id": worldID})
}

// SyncInProgress reports a rejected concurrent build.
func SyncInProgress(worldID string) *Error {
	return ErrSyncInProgress.WithMessage("a graph build is already running for world %q", worldID).
		WithDetails(map[string]any{"world_id": worldID})
}

// CycleDetected reports a rejected dependency naming the offending pair.
func CycleDetected(eventID, causeID string) *Error {
	msg := fmt.Sprintf("event %q cannot be caused by %q: it would create a causal cycle", eventID, causeID)
	if eventID == causeID {
		msg = fmt.Sprintf("event %q cannot be caused by itself", eventID)
	}
	return ErrCycleDetected.WithMessage("%s", msg).
		WithDetails(map[string]any{"event_id": eventID, "cause_event_id": causeID})
}

// InconsistentWorld reports a reference between two different worlds.
func InconsistentWorld(what, expected, actual string) *Error {
	return ErrInconsistentWorld.WithMessage("%s belongs to world %q, expected %q", what, actual, expected)
}

// InvalidArgument reports bad caller input.
func InvalidArgument(format string, args ...any) *Error {
	return ErrInvalidArgument.WithMessage(format, args...)
}

// Provider wraps an embedding or summarization provider failure.
func Provider(err error, transient bool) *Error {
	e := ErrEmbeddingProvider.WithInternal(err)
	e.Transient = transient
	return e
}

// IsTransient reports whether err is a provider failure worth retrying.
func IsTransient(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == CodeEmbeddingProvider && e.Transient
	}
	return false
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
