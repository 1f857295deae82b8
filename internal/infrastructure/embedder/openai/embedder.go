// Package openai provides an Embedder implementation using OpenAI.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/sashabaranov/go-openai"

	"github.com/ersonp/lore-graph/internal/domain/apperror"
	"github.com/ersonp/lore-graph/internal/infrastructure/config"
)

// VectorSize is the dimension of text-embedding-3-small vectors.
const VectorSize = 1536

// Embedder implements the Embedder interface using OpenAI.
type Embedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// NewEmbedder creates a new OpenAI embedder.
func NewEmbedder(cfg config.EmbedderConfig) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}
	return newEmbedder(openai.DefaultConfig(cfg.APIKey), cfg.Model), nil
}

func newEmbedder(clientCfg openai.ClientConfig, model string) *Embedder {
	m := openai.SmallEmbedding3
	if model != "" {
		m = openai.EmbeddingModel(model)
	}
	return &Embedder{
		client: openai.NewClientWithConfig(clientCfg),
		model:  m,
	}
}

// Embed generates a vector embedding for the given text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch generates vector embeddings for multiple texts, in input order.
// Failures are returned as apperror provider errors; rate limits, server
// errors and network timeouts are marked transient.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: e.model,
		Input: texts,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ClassifyError(fmt.Errorf("creating embeddings: %w", err))
	}

	if len(resp.Data) != len(texts) {
		return nil, apperror.Provider(
			fmt.Errorf("got %d embeddings for %d inputs", len(resp.Data), len(texts)), false)
	}

	embeddings := make([][]float32, len(texts))
	for i, data := range resp.Data {
		idx := data.Index
		if idx < 0 || idx >= len(texts) {
			idx = i
		}
		if len(data.Embedding) == 0 {
			return nil, apperror.Provider(fmt.Errorf("empty embedding for input %d", idx), false)
		}
		embeddings[idx] = data.Embedding
	}
	for i, v := range embeddings {
		if v == nil {
			return nil, apperror.Provider(fmt.Errorf("missing embedding for input %d", i), false)
		}
	}

	return embeddings, nil
}

// ClassifyError wraps an OpenAI client error as an apperror provider error,
// transient when a retry may succeed.
func ClassifyError(err error) error {
	return apperror.Provider(err, isTransient(err))
}

func isTransient(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500
}
