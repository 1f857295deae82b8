// Package resilient wraps model providers with rate limiting and retries.
//
// Every call first waits on a shared token bucket. Transient provider errors
// are retried with exponential backoff; anything else returns immediately.
package resilient

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ersonp/lore-graph/internal/domain/apperror"
	"github.com/ersonp/lore-graph/internal/domain/entities"
	"github.com/ersonp/lore-graph/internal/domain/ports"
	"github.com/ersonp/lore-graph/internal/infrastructure/config"
)

// Policy is the shared rate limit and retry schedule.
type Policy struct {
	limiter         *rate.Limiter
	maxTries        uint
	initialInterval time.Duration
	maxInterval     time.Duration
	logger          *zap.Logger
}

// NewPolicy builds a policy from config. A zero request rate disables the
// limiter.
func NewPolicy(cfg config.RetryConfig, logger *zap.Logger) *Policy {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := max(cfg.Burst, 1)
	return &Policy{
		limiter:         rate.NewLimiter(limit, burst),
		maxTries:        max(cfg.MaxAttempts, 1),
		initialInterval: cfg.InitialInterval,
		maxInterval:     cfg.MaxInterval,
		logger:          logger.Named("resilient"),
	}
}

func (p *Policy) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.initialInterval > 0 {
		b.InitialInterval = p.initialInterval
	}
	if p.maxInterval > 0 {
		b.MaxInterval = p.maxInterval
	}
	return b
}

// do runs op under the policy.
func do[T any](ctx context.Context, p *Policy, what string, op func(context.Context) (T, error)) (T, error) {
	attempt := 0
	return backoff.Retry(ctx, func() (T, error) {
		attempt++
		if err := p.limiter.Wait(ctx); err != nil {
			var zero T
			return zero, backoff.Permanent(err)
		}
		result, err := op(ctx)
		if err != nil && !apperror.IsTransient(err) {
			return result, backoff.Permanent(err)
		}
		return result, err
	},
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(p.maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			p.logger.Warn("provider call failed, retrying",
				zap.String("call", what),
				zap.Int("attempt", attempt),
				zap.Duration("next_retry", next),
				zap.Error(err),
			)
		}),
	)
}

// Embedder is a ports.Embedder with rate limiting and retries.
type Embedder struct {
	next   ports.Embedder
	policy *Policy
}

// NewEmbedder wraps next.
func NewEmbedder(next ports.Embedder, policy *Policy) *Embedder {
	return &Embedder{next: next, policy: policy}
}

// Embed generates a vector embedding for the given text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return do(ctx, e.policy, "embed", func(ctx context.Context) ([]float32, error) {
		return e.next.Embed(ctx, text)
	})
}

// EmbedBatch generates vector embeddings for multiple texts.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return do(ctx, e.policy, "embed_batch", func(ctx context.Context) ([][]float32, error) {
		return e.next.EmbedBatch(ctx, texts)
	})
}

// Summarizer is a ports.Summarizer with rate limiting and retries.
type Summarizer struct {
	next   ports.Summarizer
	policy *Policy
}

// NewSummarizer wraps next.
func NewSummarizer(next ports.Summarizer, policy *Policy) *Summarizer {
	return &Summarizer{next: next, policy: policy}
}

// Summarize condenses an entity's text.
func (s *Summarizer) Summarize(ctx context.Context, ref entities.EntityRef, text string) (string, error) {
	return do(ctx, s.policy, "summarize", func(ctx context.Context) (string, error) {
		return s.next.Summarize(ctx, ref, text)
	})
}
