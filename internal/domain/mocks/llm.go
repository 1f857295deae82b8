package mocks

import (
	"context"
	"strings"
	"sync"

	"github.com/ersonp/lore-graph/internal/domain/entities"
)

// Summarizer is a mock implementation of ports.Summarizer.
type Summarizer struct {
	// Result, when set, is returned for every call.
	Result string
	Err    error

	mu        sync.Mutex
	CallCount int
}

// Summarize returns Result, or the first line of text.
func (m *Summarizer) Summarize(_ context.Context, ref entities.EntityRef, text string) (string, error) {
	m.mu.Lock()
	m.CallCount++
	m.mu.Unlock()

	if m.Err != nil {
		return "", m.Err
	}
	if m.Result != "" {
		return m.Result, nil
	}
	first, _, _ := strings.Cut(text, "\n")
	return "summary of " + ref.String() + ": " + first, nil
}

// Calls returns the number of Summarize calls.
func (m *Summarizer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}
