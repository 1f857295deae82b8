// Package ports defines interfaces for external service communication.
package ports

import (
	"context"

	"github.com/ersonp/lore-graph/internal/domain/entities"
)

// Summarizer produces the short semantic summary stored on a graph node.
type Summarizer interface {
	// Summarize condenses an entity's canonical text into one or two sentences.
	Summarize(ctx context.Context, ref entities.EntityRef, text string) (string, error)
}
