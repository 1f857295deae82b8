package ports

import "context"

// Embedder defines the interface for generating vector embeddings.
// Implementations return apperror provider errors marked transient or
// permanent so callers can decide whether to retry.
type Embedder interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates vector embeddings for multiple texts.
	// The result has one embedding per input, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
