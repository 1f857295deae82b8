// Package openai provides a Summarizer implementation using OpenAI chat models.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/ersonp/lore-graph/internal/domain/apperror"
	"github.com/ersonp/lore-graph/internal/domain/entities"
	"github.com/ersonp/lore-graph/internal/infrastructure/config"
	embedopenai "github.com/ersonp/lore-graph/internal/infrastructure/embedder/openai"
)

const summaryPrompt = `You summarize entries of a fictional world's lore for a knowledge graph.

Write one or two plain sentences that capture who or what the entry is and why it matters.
Do not invent facts that are not in the entry. Do not use markdown, lists or quotes.`

// maxSummaryTokens bounds the completion length.
const maxSummaryTokens = 120

// Summarizer implements ports.Summarizer using an OpenAI chat model.
type Summarizer struct {
	client *openai.Client
	model  string
}

// NewSummarizer creates a new OpenAI summarizer.
func NewSummarizer(cfg config.LLMConfig) (*Summarizer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}
	return newSummarizer(openai.DefaultConfig(cfg.APIKey), cfg.Model), nil
}

func newSummarizer(clientCfg openai.ClientConfig, model string) *Summarizer {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Summarizer{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}
}

// Summarize condenses an entity's canonical text into a short summary.
func (s *Summarizer) Summarize(ctx context.Context, ref entities.EntityRef, text string) (string, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: summaryPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf("Entry type: %s\n\n%s", ref.Type, text),
			},
		},
		Temperature: 0.2,
		MaxTokens:   maxSummaryTokens,
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", embedopenai.ClassifyError(fmt.Errorf("calling OpenAI: %w", err))
	}

	if len(resp.Choices) == 0 {
		return "", apperror.Provider(errors.New("no response from OpenAI"), false)
	}

	summary := cleanSummary(resp.Choices[0].Message.Content)
	if summary == "" {
		return "", apperror.Provider(errors.New("empty summary from OpenAI"), false)
	}
	return summary, nil
}

// cleanSummary removes code fences, wrapping quotes and line breaks.
func cleanSummary(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		if nl := strings.IndexByte(content, '\n'); nl >= 0 && !strings.Contains(content[:nl], " ") {
			content = content[nl+1:]
		}
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	}

	content = strings.Join(strings.Fields(content), " ")
	if len(content) >= 2 && content[0] == '"' && content[len(content)-1] == '"' {
		content = content[1 : len(content)-1]
	}

	return strings.TrimSpace(content)
}
